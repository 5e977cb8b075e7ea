package middleware

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

const (
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "jwt"
	// UserKey is the echo context key the resolved user is stored under.
	UserKey = "user"

	bearerPrefix = "Bearer "
)

// Protect requires a valid, fresh session token and attaches its user to the
// request. Requests without one stop here.
func Protect(auth ports.SessionAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c)
			if token == "" {
				return domain.ErrNotAuthenticated
			}

			user, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			attach(c, user)
			return next(c)
		}
	}
}

// IsLoggedIn attaches the session user when there is one and otherwise lets
// the request through anonymously. It never fails the request.
func IsLoggedIn(auth ports.SessionAuthenticator, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c)
			if token == "" {
				return next(c)
			}

			user, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				if !errors.Is(err, domain.ErrNotAuthenticated) {
					log.Warn().Err(err).Str("path", c.Path()).Msg("optional session lookup failed")
				}
				return next(c)
			}

			attach(c, user)
			return next(c)
		}
	}
}

// CurrentUser returns the user attached by Protect or IsLoggedIn.
func CurrentUser(c echo.Context) (*domain.User, bool) {
	u, ok := c.Get(UserKey).(*domain.User)
	return u, ok && u != nil
}

// extractToken prefers a "Bearer <token>" Authorization header and falls back
// to the session cookie.
func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func attach(c echo.Context, u *domain.User) {
	c.Set(UserKey, u)
	c.SetRequest(c.Request().WithContext(domain.WithUser(c.Request().Context(), u)))
}
