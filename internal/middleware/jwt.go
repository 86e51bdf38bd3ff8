package middleware // reusable HTTP middleware for the echo router

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coaching-practice/internal/model"
	"github.com/iliyamo/coaching-practice/internal/service"
)

// SessionCookie names the cookie carrying the signed session token.
const SessionCookie = "jwt_token"

// SessionResolver turns a raw session token into its user.
type SessionResolver interface {
	ResolveSession(ctx context.Context, raw string) (*model.User, error)
}

// CookieAuth validates the session cookie and stores the resolved user on
// the context.  Failures are returned as service errors so the central error
// handler renders them: a missing or invalid token is 401 and a disabled
// account 400.  The user is looked up on every request.
func CookieAuth(sessions SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				return service.ErrCredentials
			}
			u, err := sessions.ResolveSession(c.Request().Context(), cookie.Value)
			if err != nil {
				return err
			}
			SetUser(c, u)
			return next(c)
		}
	}
}
