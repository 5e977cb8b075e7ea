package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/natours/tour-booking/internal/api/middleware"
)

// logoutCookieTTL keeps the overwritten cookie around just long enough to
// replace the old session in the browser.
const logoutCookieTTL = 10 * time.Second

// setSessionCookie stores token in the httpOnly session cookie. The Secure
// flag follows the scheme the client used, including behind a TLS proxy.
func setSessionCookie(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
}
