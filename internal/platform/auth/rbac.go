package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Registry roles. Coordinators manage donor and recipient records and drive
// match workflows; clinicians read. Admin passes every check.
const (
	RoleAdmin       = "admin"
	RoleCoordinator = "coordinator"
	RoleClinician   = "clinician"
)

// RequireRole guards a route group with a role allowlist. The request passes
// when the caller holds any listed role or the admin role.
func RequireRole(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if roleAllowed(RolesFromContext(c.Request().Context()), allowed) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				"required role: "+strings.Join(allowed, " or "))
		}
	}
}

func roleAllowed(held, allowed []string) bool {
	for _, h := range held {
		if h == RoleAdmin {
			return true
		}
		for _, a := range allowed {
			if h == a {
				return true
			}
		}
	}
	return false
}
