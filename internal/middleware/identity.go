package middleware

// identity.go holds the context plumbing shared by the middleware and the
// handlers: where the authenticated user lives in the echo context and how
// to read it back.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coaching-practice/internal/model"
)

// userKey is the echo context key holding the authenticated *model.User.
const userKey = "user"

// SetUser stores the authenticated user on the context.
func SetUser(c echo.Context, u *model.User) { c.Set(userKey, u) }

// CurrentUser returns the user stored by CookieAuth, or nil on public routes.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(userKey).(*model.User)
	return u
}

// userID returns the caller's username, or "anon" when unauthenticated.
func userID(c echo.Context) string {
	if u := CurrentUser(c); u != nil && u.Username != "" {
		return u.Username
	}
	return "anon"
}
