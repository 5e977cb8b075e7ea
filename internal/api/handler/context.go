package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/natours/tour-booking/internal/api/middleware"
	"github.com/natours/tour-booking/internal/core/domain"
)

// currentUser returns the user attached by the Protect middleware. Handlers
// behind Protect can rely on it; a missing user means the route was wired
// without the middleware and is reported as not authenticated.
func currentUser(c echo.Context) (*domain.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, domain.ErrNotAuthenticated
	}
	return u, nil
}
