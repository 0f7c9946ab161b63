package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/web"
)

// WrongRoleMessage is shown when a page is requested without the right role.
const WrongRoleMessage = "Please log in with the correct role."

// Allow reports whether a request with session s (present when ok) may use a
// page that requires role. Admin sessions get no implicit access to other
// roles' pages.
func Allow(s Session, ok bool, required Role) bool {
	return ok && s.Email != "" && s.Role == required
}

// RequireRole returns middleware that only admits sessions of role. Other
// requests are redirected to the role's login page.
func RequireRole(role Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, ok := SessionFromContext(c.Request().Context())
			if !Allow(s, ok, role) {
				return web.Redirect(c, role.LoginPath(), web.LevelWarning, WrongRoleMessage)
			}
			return next(c)
		}
	}
}
