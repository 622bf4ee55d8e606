package health

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthResponse is the JSON body of the detailed health endpoint.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Uptime    string                   `json:"uptime,omitempty"`
	Timestamp string                   `json:"timestamp"`
	Checks    map[string]CheckResponse `json:"checks,omitempty"`
}

// CheckResponse is the JSON body for a single check.
type CheckResponse struct {
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func newCheckResponse(r Result) CheckResponse {
	resp := CheckResponse{
		Status:   r.Status.String(),
		Message:  r.Message,
		Duration: r.Duration.String(),
		Details:  r.Details,
	}
	if r.Error != nil {
		resp.Error = r.Error.Error()
	}
	return resp
}

func statusCode(s Status) int {
	if s == StatusUnhealthy {
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusOK
}

// Liveness answers as long as the process serves HTTP.
func Liveness() fiber.Handler {
	startedAt := time.Now()
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": StatusHealthy.String(),
			"uptime": time.Since(startedAt).String(),
		})
	}
}

// Readiness runs every check and answers 503 when the aggregate is unhealthy.
// A degraded aggregate is still ready.
func Readiness(agg *Aggregator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := agg.CheckAll(ctx)
		overall := OverallStatus(results)

		checks := make(map[string]string, len(results))
		for name, r := range results {
			checks[name] = r.Status.String()
		}

		status := "ready"
		if overall == StatusUnhealthy {
			status = "not ready"
		}
		return c.Status(statusCode(overall)).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}

// Detailed reports every check with its message, details and duration.
// The optional :name route parameter narrows the report to one checker.
func Detailed(agg *Aggregator) fiber.Handler {
	startedAt := time.Now()
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
		defer cancel()

		var results map[string]Result
		if name := c.Params("name"); name != "" {
			r, err := agg.Check(ctx, name)
			if err != nil {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
			}
			results = map[string]Result{name: r}
		} else {
			results = agg.CheckAll(ctx)
		}

		overall := OverallStatus(results)
		resp := HealthResponse{
			Status:    overall.String(),
			Uptime:    time.Since(startedAt).String(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    make(map[string]CheckResponse, len(results)),
		}
		for name, r := range results {
			resp.Checks[name] = newCheckResponse(r)
		}
		return c.Status(statusCode(overall)).JSON(resp)
	}
}

// Mount registers /healthz, /readyz, /health and /health/:name on router.
func Mount(router fiber.Router, agg *Aggregator) {
	router.Get("/healthz", Liveness())
	router.Get("/readyz", Readiness(agg))
	router.Get("/health", Detailed(agg))
	router.Get("/health/:name", Detailed(agg))
}
