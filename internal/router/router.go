package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/coaching-practice/internal/config"
	"github.com/iliyamo/coaching-practice/internal/handler"
	"github.com/iliyamo/coaching-practice/internal/logger"
	"github.com/iliyamo/coaching-practice/internal/metrics"
	"github.com/iliyamo/coaching-practice/internal/middleware"
)

// Deps is everything the routes need.  Redis may be nil, in which case the
// credential endpoints are not rate limited.
type Deps struct {
	Sessions middleware.SessionResolver
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Clients  *handler.ClientHandler
	Logs     *handler.CoachingLogHandler

	RateLimit config.RateLimitConfig
	Redis     redis.Scripter
	Ready     map[string]handler.Pinger

	AllowedOrigins []string
}

// New builds the echo instance with the shared middleware stack and every
// route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = handler.NewValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger())
	if len(d.AllowedOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     d.AllowedOrigins,
			AllowCredentials: true,
		}))
	}
	e.Use(metrics.Middleware())

	RegisterRoutes(e, d.Ready)
	limiter := middleware.NewTokenBucket(d.RateLimit, d.Redis)
	auth := middleware.CookieAuth(d.Sessions)
	RegisterAuth(e, d.Auth, auth, limiter)
	RegisterClients(e, d.Clients, auth)
	RegisterCoachingLog(e, d.Logs, auth)
	RegisterUsers(e, d.Users, auth)
	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log := logger.Get()
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			u := middleware.CurrentUser(c)
			if u != nil {
				ev = ev.Str("user", u.Username)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// RegisterRoutes registers routes that do not require authentication:
// liveness, readiness and the Prometheus exposition.
func RegisterRoutes(e *echo.Echo, ready map[string]handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/healthz/ready", handler.Ready(ready))
	e.GET("/metrics", metrics.Handler())
}

// RegisterAuth registers /auth and /settings.  Only /auth/token is reachable
// without a session; the credential checking endpoints are rate limited.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/token", a.Token, limiter)
	g.POST("/login", a.Login, auth)
	g.POST("/logout", a.Logout, auth)

	e.POST("/settings/change-password", a.ChangePassword, auth, limiter)
}
