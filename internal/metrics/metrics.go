// Package metrics defines and registers the custom Prometheus metrics of the
// coaching-practice API.  Metrics are registered with the default registry
// on package init and exposed by the /metrics route.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coaching"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginsTotal counts credential checks at /auth/token.
// Label:
//   - result: "success" or "failure"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of credential logins, by result.",
	},
	[]string{"result"},
)

// ── Domain metrics ────────────────────────────────────────────────────────────

// ClientsCreatedTotal counts created clients.
// Label:
//   - id_source: "random" or "auto_increment"
var ClientsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clients_created_total",
		Help:      "Total number of clients created, by how the id was assigned.",
	},
	[]string{"id_source"},
)

// CoachingLogsCreatedTotal counts committed coaching logs.
var CoachingLogsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coaching_logs_created_total",
		Help:      "Total number of coaching logs created.",
	},
)

// EventsPublishFailuresTotal counts coaching_log.created events that could
// not be delivered to the broker.
var EventsPublishFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_publish_failures_total",
		Help:      "Total number of domain events that failed to publish.",
	},
)

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// RequestDuration measures handler latency.
// Labels:
//   - method, route (the registered path, not the raw URL), status
var RequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests by route and status.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

// Middleware records RequestDuration for every request.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				// commit the response so the recorded status is the real one
				c.Error(err)
			}
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			RequestDuration.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler serves the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
