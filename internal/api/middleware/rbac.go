package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/natours/tour-booking/internal/core/domain"
)

// RestrictTo admits only users whose role is in roles. It must be mounted
// after Protect. An unknown role in roles is a wiring bug and panics.
func RestrictTo(roles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			panic(fmt.Sprintf("middleware: RestrictTo called with unknown role %q", r))
		}
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return domain.ErrNotAuthenticated
			}
			if _, ok := allowed[user.Role]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
