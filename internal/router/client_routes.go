package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coaching-practice/internal/handler"
	"github.com/iliyamo/coaching-practice/internal/middleware"
	"github.com/iliyamo/coaching-practice/internal/model"
)

// RegisterClients registers /clients.  Every route needs a session; the
// management routes are admin only.  Ownership of a single client is checked
// by the service layer.
func RegisterClients(e *echo.Echo, h *handler.ClientHandler, auth echo.MiddlewareFunc) {
	g := e.Group("/clients", auth)
	g.GET("/list", h.List)
	g.GET("/details/:client_id", h.Details)

	admin := middleware.RequireRole(model.RoleAdmin)
	g.POST("/create", h.Create, admin)
	g.POST("/assign-coach", h.AssignCoach, admin)
	g.GET("/list-all", h.ListAll, admin)
}

// RegisterCoachingLog registers /coaching-log.  Only the assigned coach may
// write; the coach or an admin may read.
func RegisterCoachingLog(e *echo.Echo, h *handler.CoachingLogHandler, auth echo.MiddlewareFunc) {
	g := e.Group("/coaching-log", auth)
	g.GET("/list/:client_id", h.List)
	g.POST("/create/:client_id", h.Create)
	g.PUT("/edit/:client_id", h.Edit)
}

// RegisterUsers registers the admin-only /users routes.
func RegisterUsers(e *echo.Echo, h *handler.UserHandler, auth echo.MiddlewareFunc) {
	g := e.Group("/users", auth, middleware.RequireRole(model.RoleAdmin))
	g.POST("/create", h.Create)
	g.GET("/list-all", h.ListAll)
}
