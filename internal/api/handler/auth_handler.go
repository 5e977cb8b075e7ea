package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/natours/tour-booking/internal/api/middleware"
	"github.com/natours/tour-booking/internal/core/ports"
)

const resetPasswordPath = "/api/v1/users/resetPassword"

type AuthHandler struct {
	authService ports.AuthService
	baseURL     string
}

// NewAuthHandler creates an AuthHandler. baseURL prefixes the links placed in
// emails; when empty it is derived from each request.
func NewAuthHandler(authService ports.AuthService, baseURL string) *AuthHandler {
	return &AuthHandler{authService: authService, baseURL: strings.TrimRight(baseURL, "/")}
}

// Signup creates a new account and logs it in.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Account details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/v1/users/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.authService.Signup(c.Request().Context(), ports.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		AccountURL:      h.base(c) + "/me",
	})
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusCreated, res)
}

// Login authenticates with email and password.
//
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/v1/users/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, res)
}

// Logout overwrites the session cookie with an already expired token.
//
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /api/v1/users/logout [get]
func (h *AuthHandler) Logout(c echo.Context) error {
	token, err := h.authService.LogoutToken()
	if err != nil {
		return err
	}
	setSessionCookie(c, token, time.Now().Add(logoutCookieTTL))
	return c.JSON(http.StatusOK, messageResponse{Status: statusSuccess})
}

// ForgotPassword emails a password reset link.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account email"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /api/v1/users/forgotPassword [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.authService.ForgotPassword(c.Request().Context(), ports.ForgotPasswordInput{
		Email:        req.Email,
		ResetURLBase: h.base(c) + resetPasswordPath,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Status: statusSuccess, Message: "Token sent to email!"})
}

// ResetPassword sets a new password using an emailed reset token.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  path      string                true  "Reset token"
// @Param        body   body      resetPasswordRequest  true  "New password"
// @Success      200    {object}  authResponse
// @Failure      400    {object}  errorResponse
// @Router       /api/v1/users/resetPassword/{token} [patch]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.authService.ResetPassword(c.Request().Context(), c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, res)
}

// UpdatePassword changes the password of the logged-in user.
//
// @Summary      Update my password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updatePasswordRequest  true  "Current and new password"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/v1/users/updateMyPassword [patch]
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req updatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.authService.UpdatePassword(c.Request().Context(), ports.UpdatePasswordInput{
		UserID:          user.ID,
		CurrentPassword: req.PasswordCurrent,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, res)
}

// Session reports the optional identity resolved by IsLoggedIn.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  userResponse
// @Router       /api/v1/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	user, _ := middleware.CurrentUser(c)
	return c.JSON(http.StatusOK, userResponse{Status: statusSuccess, Data: userData{User: user}})
}

func (h *AuthHandler) sendToken(c echo.Context, code int, res *ports.AuthResult) error {
	setSessionCookie(c, res.Token, res.ExpiresAt)
	return c.JSON(code, authResponse{
		Status:    statusSuccess,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Data:      userData{User: res.User},
	})
}

func (h *AuthHandler) base(c echo.Context) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	return c.Scheme() + "://" + c.Request().Host
}
