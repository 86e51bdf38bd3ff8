package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health is the liveness probe used by load balancers; it only proves the
// process is serving.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sql.DB and RedisPinger.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RedisPinger adapts a redis client to Pinger.
type RedisPinger struct{ Client *redis.Client }

func (r RedisPinger) PingContext(ctx context.Context) error { return r.Client.Ping(ctx).Err() }

// Ready reports 200 when every dependency answers a ping and 503 otherwise.
// Optional dependencies that are not configured are passed as nil and
// reported as "disabled".
func Ready(deps map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps))
		for name, p := range deps {
			if p == nil {
				checks[name] = "disabled"
				continue
			}
			if err := p.PingContext(ctx); err != nil {
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "up"
		}
		return c.JSON(status, echo.Map{"status": http.StatusText(status), "checks": checks})
	}
}
