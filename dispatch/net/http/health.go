package http

import (
	"github.com/gofiber/fiber/v2"
)

// Core is the dispatcher surface the HTTP layer exposes. *dispatch.Dispatcher
// satisfies it.
type Core interface {
	QueueDepth() int
	IsCircuitOpen() bool
	ResetCircuit()
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status      string `json:"status"`
	QueueDepth  int    `json:"queue_depth"`
	CircuitOpen bool   `json:"circuit_open"`
}

// Register mounts the dispatcher operational endpoints on app:
//
//	GET  /health         dispatcher health and queue/breaker status
//	POST /circuit/reset  force the circuit breaker closed
func Register(app *fiber.App, core Core) {
	app.Get("/health", HealthHandler(core))
	app.Post("/circuit/reset", CircuitResetHandler(core))
}

// HealthHandler reports queue depth and breaker status. The status degrades
// to "degraded" while the breaker is open; the endpoint itself always
// answers 200 so orchestrators do not restart a process that is merely
// waiting out a downstream outage.
func HealthHandler(core Core) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := "healthy"
		if core.IsCircuitOpen() {
			status = "degraded"
		}

		return c.Status(fiber.StatusOK).JSON(HealthResponse{
			Status:      status,
			QueueDepth:  core.QueueDepth(),
			CircuitOpen: core.IsCircuitOpen(),
		})
	}
}

// CircuitResetHandler forces the breaker closed. Responds 204 regardless of
// the prior breaker state; the reset is idempotent.
func CircuitResetHandler(core Core) fiber.Handler {
	return func(c *fiber.Ctx) error {
		core.ResetCircuit()

		return c.SendStatus(fiber.StatusNoContent)
	}
}
