package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coaching-practice/internal/middleware"
	"github.com/iliyamo/coaching-practice/internal/model"
	"github.com/iliyamo/coaching-practice/internal/service"
)

// UserManager is implemented by *service.UserService.
type UserManager interface {
	Create(ctx context.Context, actor *model.User, in service.NewUser) (string, error)
	ListAll(ctx context.Context, actor *model.User, limit, skip int) ([]service.UserDetails, error)
}

// UserHandler serves /users.
type UserHandler struct {
	Users UserManager
}

func NewUserHandler(users UserManager) *UserHandler { return &UserHandler{Users: users} }

type createUserReq struct {
	Username  string `json:"username" form:"username" validate:"required"`
	Email     string `json:"email" form:"email" validate:"required"`
	FirstName string `json:"first_name" form:"first_name" validate:"required"`
	LastName  string `json:"last_name" form:"last_name" validate:"required"`
	Role      string `json:"role" form:"role" validate:"required,oneof=admin coach"`
}

// Create adds an account and returns its one-time password.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	pw, err := h.Users.Create(ctx, middleware.CurrentUser(c), service.NewUser{
		Username:  strings.TrimSpace(req.Username),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"password": pw})
}

// ListAll returns every account with its clients.
func (h *UserHandler) ListAll(c echo.Context) error {
	p, err := bindPage(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Users.ListAll(ctx, middleware.CurrentUser(c), p.Limit, p.Skip)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}
