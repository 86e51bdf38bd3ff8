package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coaching-practice/internal/authz"
	"github.com/iliyamo/coaching-practice/internal/service"
)

// RequireRole aborts with 403 "Operation not permitted" unless the user put
// on the context by CookieAuth holds one of roles.  Routes without
// CookieAuth in front are rejected as unauthenticated.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := CurrentUser(c)
			if u == nil {
				return service.ErrCredentials
			}
			if err := authz.RequireRole(authz.SubjectOf(*u), roles...); err != nil {
				return service.ErrNotPermitted
			}
			return next(c)
		}
	}
}
