// Package api exposes a location.Manager over HTTP.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/timeout"

	"github.com/jonwraymond/locator/auth"
	"github.com/jonwraymond/locator/health"
	"github.com/jonwraymond/locator/location"
	"github.com/jonwraymond/locator/observe"
	"github.com/jonwraymond/locator/provider"
)

// Deps carries the services the routes use.
type Deps struct {
	Manager *location.Manager
	Chain   location.Chain

	// Injector enables POST /v1/fixes and PUT /v1/providers/:provider/status.
	Injector provider.Injector

	// Auth, when set, requires a bearer token on every /v1 route.
	Auth *auth.JWTAuthenticator

	Health *health.Aggregator
	Logger observe.Logger

	// RequestTimeout bounds each /v1 read. Default: 2 minutes.
	RequestTimeout time.Duration

	// LiveTimeout is the live request timeout when ?timeout is absent.
	// Default: 30 seconds
	LiveTimeout time.Duration
}

// SetupRoutes registers metrics, health and /v1 routes on app.
func SetupRoutes(app *fiber.App, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = observe.NopLogger()
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 2 * time.Minute
	}
	if deps.LiveTimeout <= 0 {
		deps.LiveTimeout = 30 * time.Second
	}

	app.Use(MetricsMiddleware())
	app.Get("/metrics", MetricsHandler())

	if deps.Health != nil {
		health.Mount(app, deps.Health)
	}

	h := &handlers{deps: deps}
	v1 := app.Group("/v1")
	if deps.Auth != nil {
		v1.Use(auth.Middleware(deps.Auth))
	}

	v1.Get("/location", timeout.NewWithContext(h.chain, deps.RequestTimeout))
	v1.Get("/providers/:provider/last", timeout.NewWithContext(h.lastKnown, deps.RequestTimeout))
	v1.Get("/providers/:provider/live", timeout.NewWithContext(h.live, deps.RequestTimeout))

	if deps.Injector != nil {
		v1.Post("/fixes", h.injectFix)
		v1.Put("/providers/:provider/status", h.setStatus)
	}
}
