package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/jonwraymond/locator/auth"
	"github.com/jonwraymond/locator/location"
	"github.com/jonwraymond/locator/observe"
	"github.com/jonwraymond/locator/store"
)

type handlers struct {
	deps Deps
}

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	// Location is the rejected fix of a location_too_old failure.
	Location *location.Location `json:"location,omitempty"`
}

// statusFor maps a location failure to an HTTP status.
func statusFor(err error) int {
	switch location.KindOf(err) {
	case location.KindPermissionDenied:
		return fiber.StatusForbidden
	case location.KindProviderDisabled:
		return fiber.StatusServiceUnavailable
	case location.KindLocationTooOld:
		return fiber.StatusNotFound
	case location.KindRequestTimeout:
		return fiber.StatusGatewayTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusBadGateway
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: msg})
}

// respond writes loc as 200, a nil loc as 204, or err mapped by statusFor.
func (h *handlers) respond(c *fiber.Ctx, endpoint string, loc *location.Location, err error) error {
	if err != nil {
		kind := location.KindOf(err)
		LocationResults.WithLabelValues(endpoint, kind.String()).Inc()

		code := statusFor(err)
		if code == fiber.StatusBadGateway {
			h.deps.Logger.Warn(c.UserContext(), "location read failed",
				observe.Field{Key: "endpoint", Value: endpoint},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}

		body := errorBody{Error: err.Error(), Kind: kind.String()}
		var le *location.Error
		if errors.As(err, &le) {
			body.Location = le.Location
		}
		return c.Status(code).JSON(body)
	}

	if loc == nil {
		LocationResults.WithLabelValues(endpoint, "none").Inc()
		return c.SendStatus(fiber.StatusNoContent)
	}
	LocationResults.WithLabelValues(endpoint, "found").Inc()
	return c.JSON(loc)
}

// providerParam returns the :provider route parameter. The value is copied
// because it outlives the request in listener and status maps.
func providerParam(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("provider"))
}

// durationQuery parses the named query parameter, returning def when absent.
func durationQuery(c *fiber.Ctx, name string, def time.Duration) (time.Duration, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, errors.New(name + " must be a non-negative duration such as 30s")
	}
	return d, nil
}

// chain runs the configured fallback chain.
func (h *handlers) chain(c *fiber.Ctx) error {
	loc, err := h.deps.Manager.Execute(c.UserContext(), h.deps.Chain)
	return h.respond(c, "chain", loc, err)
}

// lastKnown serves GET /v1/providers/:provider/last?max_age=1h.
func (h *handlers) lastKnown(c *fiber.Ctx) error {
	p := providerParam(c)
	if err := store.ValidateProvider(p); err != nil {
		return badRequest(c, err.Error())
	}
	maxAge, err := durationQuery(c, "max_age", 0)
	if err != nil {
		return badRequest(c, err.Error())
	}

	loc, err := h.deps.Manager.LastKnown(c.UserContext(), p, location.FromDuration(maxAge))
	return h.respond(c, "last_known", loc, err)
}

// live serves GET /v1/providers/:provider/live?timeout=10s&ignore_disabled=true.
func (h *handlers) live(c *fiber.Ctx) error {
	p := providerParam(c)
	if err := store.ValidateProvider(p); err != nil {
		return badRequest(c, err.Error())
	}
	wait, err := durationQuery(c, "timeout", h.deps.LiveTimeout)
	if err != nil {
		return badRequest(c, err.Error())
	}

	loc, err := h.deps.Manager.RequestLocation(c.UserContext(), p, location.LiveOptions{
		Timeout:        location.FromDuration(wait),
		IgnoreDisabled: c.QueryBool("ignore_disabled"),
	})
	return h.respond(c, "live", loc, err)
}

// canInject reports whether the caller may write. Without auth anyone may.
func (h *handlers) canInject(c *fiber.Ctx) bool {
	return h.deps.Auth == nil || auth.IdentityFromContext(c.UserContext()).HasScope(auth.ScopeFine)
}

func (h *handlers) injectFix(c *fiber.Ctx) error {
	if !h.canInject(c) {
		return c.Status(fiber.StatusForbidden).JSON(errorBody{Error: auth.ErrForbidden.Error()})
	}

	var loc location.Location
	if err := c.BodyParser(&loc); err != nil {
		return badRequest(c, "invalid fix: "+err.Error())
	}
	if err := store.ValidateProvider(loc.Provider); err != nil {
		return badRequest(c, err.Error())
	}
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return badRequest(c, "latitude must be within ±90 and longitude within ±180")
	}
	if loc.Time.After(time.Now()) {
		return badRequest(c, "fix time is in the future")
	}
	// The elapsed reading is always stamped by the backend's own clock.
	loc.ElapsedRealtime = 0

	if err := h.deps.Injector.Publish(c.UserContext(), loc); err != nil {
		if errors.Is(err, location.ErrProviderDisabled) {
			return c.Status(fiber.StatusConflict).JSON(errorBody{Error: err.Error(), Kind: location.KindProviderDisabled.String()})
		}
		h.deps.Logger.Error(c.UserContext(), "fix injection failed",
			observe.Field{Key: "provider", Value: loc.Provider},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return c.Status(fiber.StatusBadGateway).JSON(errorBody{Error: err.Error()})
	}

	FixesInjected.WithLabelValues(loc.Provider).Inc()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

type statusRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *handlers) setStatus(c *fiber.Ctx) error {
	if !h.canInject(c) {
		return c.Status(fiber.StatusForbidden).JSON(errorBody{Error: auth.ErrForbidden.Error()})
	}

	p := providerParam(c)
	var req statusRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return badRequest(c, `body must be {"enabled": true|false}`)
	}
	if err := h.deps.Injector.PublishStatus(p, *req.Enabled); err != nil {
		if errors.Is(err, store.ErrInvalidProvider) || errors.Is(err, store.ErrProviderTooLong) {
			return badRequest(c, err.Error())
		}
		return c.Status(fiber.StatusBadGateway).JSON(errorBody{Error: err.Error()})
	}

	h.deps.Logger.Info(c.UserContext(), "provider status changed",
		observe.Field{Key: "provider", Value: p},
		observe.Field{Key: "enabled", Value: *req.Enabled},
	)
	return c.SendStatus(fiber.StatusNoContent)
}
