package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "locator",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "locator",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
	}, []string{"method", "path"})

	// LocationResults counts chain and provider reads by how they ended.
	LocationResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "locator",
		Subsystem: "location",
		Name:      "results_total",
		Help:      "Location reads by endpoint and result",
	}, []string{"endpoint", "result"})

	// FixesInjected counts fixes accepted by POST /v1/fixes.
	FixesInjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "locator",
		Subsystem: "location",
		Name:      "fixes_injected_total",
		Help:      "Fixes injected through the API",
	}, []string{"provider"})
)

// unmatchedRoute labels requests that reached no handler.
const unmatchedRoute = "unmatched"

// MetricsMiddleware records request count and latency by route pattern.
// Label values are copied out of fasthttp's request buffers, which are
// reused once the handler returns.
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		// Without a matching handler the route is this middleware's own.
		path := c.Route().Path
		if path == "" || path == "/" {
			path = unmatchedRoute
		}
		path = utils.CopyString(path)
		method := utils.CopyString(c.Method())
		code := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		status := strconv.Itoa(code)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		return err
	}
}

// MetricsHandler serves the default Prometheus registry, which also holds
// the OpenTelemetry prometheus exporter's instruments.
func MetricsHandler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
