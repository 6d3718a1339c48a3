package auth

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin     = "admin"
	RoleLabTech   = "lab_tech"
	RolePhysician = "physician"
)

// RequireRole lets the request through when the caller holds any of roles.
// Admin satisfies every role check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(RolesFromContext(c.Request().Context()), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether held contains admin or one of required.
func HasRole(held []string, required ...string) bool {
	for _, has := range held {
		if has == RoleAdmin || slices.Contains(required, has) {
			return true
		}
	}
	return false
}
