package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coaching-practice/internal/middleware"
	"github.com/iliyamo/coaching-practice/internal/model"
)

// maxLogBody caps the size of a coaching log document.
const maxLogBody = 1 << 20

// CoachingLogManager is implemented by *service.CoachingLogService.
type CoachingLogManager interface {
	Create(ctx context.Context, actor *model.User, clientID uint64, data json.RawMessage) (*model.CoachingLog, *model.Reimbursement, error)
	Edit(ctx context.Context, actor *model.User, clientID uint64, data json.RawMessage) (*model.CoachingLog, error)
	List(ctx context.Context, actor *model.User, clientID uint64) ([]model.CoachingLog, error)
}

// CoachingLogHandler serves /coaching-log.  Create and edit take the log
// document itself as the JSON request body.
type CoachingLogHandler struct {
	Logs CoachingLogManager
}

func NewCoachingLogHandler(logs CoachingLogManager) *CoachingLogHandler {
	return &CoachingLogHandler{Logs: logs}
}

func readDocument(c echo.Context) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxLogBody+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if len(body) > maxLogBody {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Coaching log too large")
	}
	return body, nil
}

// List returns the client's logs in creation order.
func (h *CoachingLogHandler) List(c echo.Context) error {
	id, err := clientIDParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	logs, err := h.Logs.List(ctx, middleware.CurrentUser(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, logs)
}

// Create appends a log and locks the previous one.
func (h *CoachingLogHandler) Create(c echo.Context) error {
	id, err := clientIDParam(c)
	if err != nil {
		return err
	}
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, _, err := h.Logs.Create(ctx, middleware.CurrentUser(c), id, doc); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message{"Successfully created coaching log"})
}

// Edit overwrites the latest unlocked log.
func (h *CoachingLogHandler) Edit(c echo.Context) error {
	id, err := clientIDParam(c)
	if err != nil {
		return err
	}
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Logs.Edit(ctx, middleware.CurrentUser(c), id, doc); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message{"Successfully edited coaching log"})
}
