package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coaching-practice/internal/logger"
	"github.com/iliyamo/coaching-practice/internal/service"
)

// statusOf maps a service error kind to its HTTP status.
var statusOf = map[service.Kind]int{
	service.KindUnauthenticated: http.StatusUnauthorized,
	service.KindInactive:        http.StatusBadRequest,
	service.KindForbidden:       http.StatusForbidden,
	service.KindNotFound:        http.StatusNotFound,
	service.KindConflict:        http.StatusConflict,
	service.KindInvalid:         http.StatusUnprocessableEntity,
}

// ErrorHandler renders every error as {"detail": "..."}.  Unauthenticated
// responses carry WWW-Authenticate: Bearer.  Unexpected errors are logged and
// reported as a generic 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := "Internal server error"

	var (
		se *service.Error
		he *echo.HTTPError
		ve validator.ValidationErrors
	)
	switch {
	case errors.As(err, &se):
		code = statusOf[se.Kind]
		detail = se.Detail
	case errors.As(err, &ve):
		code = http.StatusUnprocessableEntity
		detail = validationDetail(ve)
	case errors.As(err, &he):
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			detail = msg
		} else {
			detail = http.StatusText(code)
		}
	}
	if code == 0 {
		code = http.StatusInternalServerError
	}
	if code >= http.StatusInternalServerError {
		log := logger.Get()
		log.Error().Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("request failed")
	}
	if code == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, echo.Map{"detail": detail})
	}
	if err != nil {
		log := logger.Get()
		log.Error().Err(err).Msg("write error response")
	}
}

func validationDetail(ve validator.ValidationErrors) string {
	if len(ve) == 0 {
		return "Invalid request"
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return "Field required: " + fe.Field()
	case "oneof":
		return "Invalid value for " + fe.Field() + ": must be one of " + fe.Param()
	}
	return "Invalid value for " + fe.Field()
}
