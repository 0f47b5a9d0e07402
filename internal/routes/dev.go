package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/personal-bank/personal_bank/internal/settlement"
)

// RegisterDevRoutes exposes the simulated chain. Only mounted in development.
func RegisterDevRoutes(r fiber.Router, h *settlement.DevHandler) {
	dev := r.Group("/dev")
	dev.Post("/fund", h.Fund)
	dev.Post("/payments", h.Pay)
	dev.Get("/accounts/:address", h.Balance)
}
