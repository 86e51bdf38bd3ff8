package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coaching-practice/internal/middleware"
	"github.com/iliyamo/coaching-practice/internal/model"
	"github.com/iliyamo/coaching-practice/internal/utils"
)

// Authenticator is what the auth and settings endpoints need from the
// session layer; *service.AuthService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	IssueSession(u *model.User) (utils.AccessToken, error)
	ExpiredSession(u *model.User) (utils.AccessToken, error)
	ChangePassword(ctx context.Context, u *model.User, current, next string) error
}

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	TTL    time.Duration
	Secure bool
}

// AuthHandler serves /auth.
type AuthHandler struct {
	Auth   Authenticator
	Cookie CookieConfig
}

func NewAuthHandler(auth Authenticator, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{Auth: auth, Cookie: cookie}
}

// ----- DTOs -----

type tokenReq struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type profile struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Disabled  bool   `json:"disabled"`
	Role      string `json:"role"`
}

func profileOf(u *model.User) profile {
	return profile{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Disabled:  u.Disabled,
		Role:      u.Role,
	}
}

// setSession writes the session cookie.  Max-Age is always the session TTL,
// also for the expired logout token.
func (h *AuthHandler) setSession(c echo.Context, tok utils.AccessToken) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    tok.Token,
		Path:     "/",
		MaxAge:   int(h.Cookie.TTL / time.Second),
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Token: verify credentials, set the session cookie, return the profile.
func (h *AuthHandler) Token(c echo.Context) error {
	var req tokenReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Auth.Authenticate(ctx, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		return err
	}
	tok, err := h.Auth.IssueSession(u)
	if err != nil {
		return err
	}
	h.setSession(c, tok)
	return c.JSON(http.StatusOK, profileOf(u))
}

// Login: refresh the cookie of an already authenticated user.
func (h *AuthHandler) Login(c echo.Context) error {
	u := middleware.CurrentUser(c)
	tok, err := h.Auth.IssueSession(u)
	if err != nil {
		return err
	}
	h.setSession(c, tok)
	return c.JSON(http.StatusOK, profileOf(u))
}

// Logout: overwrite the cookie with an already expired token.
func (h *AuthHandler) Logout(c echo.Context) error {
	tok, err := h.Auth.ExpiredSession(middleware.CurrentUser(c))
	if err != nil {
		return err
	}
	h.setSession(c, tok)
	return c.JSON(http.StatusOK, message{"Successfully logged out"})
}
