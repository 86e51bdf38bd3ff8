package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// requestTimeout bounds every store round trip made by a handler.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// bindValid binds the request into dst and validates it.
func bindValid(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid request body")
	}
	return c.Validate(dst)
}

func clientIDParam(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("client_id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid client id")
	}
	return id, nil
}

// page reads limit and skip.  A missing limit means -1, no limit.
type page struct {
	Limit int `query:"limit"`
	Skip  int `query:"skip" validate:"gte=0"`
}

func bindPage(c echo.Context) (page, error) {
	p := page{Limit: -1}
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &p); err != nil {
		return p, echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid pagination")
	}
	if p.Limit < -1 {
		return p, echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid pagination")
	}
	return p, c.Validate(&p)
}

// grid is a 2-D text array accepted either as JSON or as a form field
// holding JSON text.
type grid [][]string

func (g *grid) UnmarshalParam(s string) error {
	var v [][]string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return errors.New("dq must be a JSON array of string arrays")
	}
	if v == nil {
		return errors.New("dq must be a JSON array of string arrays")
	}
	*g = v
	return nil
}

// message is the body of the plain acknowledgement responses.
type message struct {
	Message string `json:"message"`
}
