package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/natours/tour-booking/internal/core/domain"
)

const (
	statusFail  = "fail"
	statusError = "error"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"status": "fail|error", "message": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		status := statusFail
		if code >= http.StatusInternalServerError {
			status = statusError
		}
		_ = c.JSON(code, errorResponse{Status: status, Message: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, rate limiting, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Wrapped variants first; they also match their parent kind.
	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusUnauthorized, "Your token has expired! Please log in again."
	case errors.Is(err, domain.ErrPasswordChanged):
		return http.StatusUnauthorized, "User recently changed password! Please log in again."
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, "You are not logged in! Please log in to get access."
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "You do not have permission to perform this action"
	case errors.Is(err, domain.ErrIncorrectPassword):
		return http.StatusUnauthorized, "Your current password is incorrect."
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Incorrect email or password"
	case errors.Is(err, domain.ErrInvalidResetToken):
		return http.StatusBadRequest, "Token is invalid or has expired"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "This email is already in use. Please use another one!"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "No user found with that ID"
	case errors.Is(err, domain.ErrValidation):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return http.StatusBadRequest, ve.Message
		}
		return http.StatusBadRequest, "Invalid input data."
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	if errors.Is(err, domain.ErrDeliveryFailure) {
		return http.StatusInternalServerError, "There was an error sending the email. Try again later!"
	}
	return http.StatusInternalServerError, "internal server error"
}
