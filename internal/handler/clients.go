package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coaching-practice/internal/middleware"
	"github.com/iliyamo/coaching-practice/internal/model"
	"github.com/iliyamo/coaching-practice/internal/service"
)

// ClientManager is implemented by *service.ClientService.
type ClientManager interface {
	Create(ctx context.Context, actor *model.User, in service.NewClient, dq [][]string) (uint64, error)
	AssignCoach(ctx context.Context, actor *model.User, clientID uint64, coach string) (*model.ClientCoachView, error)
	Get(ctx context.Context, actor *model.User, clientID uint64) (*model.ClientCoachView, error)
	ListOwned(ctx context.Context, actor *model.User) ([]model.ClientName, error)
	ListAll(ctx context.Context, actor *model.User, limit, skip int) ([]model.Client, error)
}

// ClientHandler serves /clients.
type ClientHandler struct {
	Clients ClientManager
}

func NewClientHandler(clients ClientManager) *ClientHandler { return &ClientHandler{Clients: clients} }

type createClientReq struct {
	FirstName       string `json:"first_name" form:"first_name" validate:"required"`
	LastName        string `json:"last_name" form:"last_name" validate:"required"`
	Email           string `json:"email" form:"email" validate:"required"`
	MobilePhone     string `json:"mobile_phone" form:"mobile_phone" validate:"required"`
	Sex             string `json:"sex" form:"sex" validate:"required"`
	Age             int    `json:"age" form:"age" validate:"gte=0"`
	CurrentLocation string `json:"current_location" form:"current_location" validate:"required"`
	DQ              grid   `json:"dq" form:"dq" validate:"required"`
}

type assignCoachReq struct {
	CoachUsername string `json:"coach_username" form:"coach_username" validate:"required"`
	ClientID      string `json:"client_id" form:"client_id" validate:"required"`
}

// List returns the caller's own clients.
func (h *ClientHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	clients, err := h.Clients.ListOwned(ctx, middleware.CurrentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clients)
}

// Details returns one client with its coach's name.
func (h *ClientHandler) Details(c echo.Context) error {
	id, err := clientIDParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	view, err := h.Clients.Get(ctx, middleware.CurrentUser(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Create stores a client with its discovery questionnaire.
func (h *ClientHandler) Create(c echo.Context) error {
	var req createClientReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Clients.Create(ctx, middleware.CurrentUser(c), service.NewClient{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		MobilePhone:     req.MobilePhone,
		Sex:             req.Sex,
		Age:             req.Age,
		CurrentLocation: req.CurrentLocation,
	}, req.DQ)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"client_id": id})
}

// AssignCoach sets the coach of a client.
func (h *ClientHandler) AssignCoach(c echo.Context) error {
	var req assignCoachReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	id, err := strconv.ParseUint(req.ClientID, 10, 64)
	if err != nil {
		// not a number, so it cannot name an existing client
		return service.ErrClientNotFound
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	view, err := h.Clients.AssignCoach(ctx, middleware.CurrentUser(c), id, req.CoachUsername)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// ListAll returns every client.
func (h *ClientHandler) ListAll(c echo.Context) error {
	p, err := bindPage(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	clients, err := h.Clients.ListAll(ctx, middleware.CurrentUser(c), p.Limit, p.Skip)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clients)
}
