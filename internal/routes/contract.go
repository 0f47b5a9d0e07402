package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/personal-bank/personal_bank/internal/bank"
)

// RegisterContractRoutes wires the depositor-facing contract endpoints. On withdrawals the rate
// limiter and idempotency cache come after callerAuth, so both are keyed on the verified caller
// and unsigned requests never touch another depositor's quota or cached responses.
func RegisterContractRoutes(r fiber.Router, h *bank.Handler, callerAuth, rateLimiter, idempotency fiber.Handler) {
	r.Get("/contract", h.Contract)
	r.Post("/deposits", idempotency, h.Deposit)
	r.Post("/withdrawals", callerAuth, rateLimiter, idempotency, h.Withdraw)
	r.Get("/depositors/:address", h.Depositor)
}

// RegisterAuditRoutes wires operator-only read endpoints.
func RegisterAuditRoutes(r fiber.Router, h *bank.Handler, operatorAuth fiber.Handler) {
	audit := r.Group("/audit", operatorAuth)
	audit.Get("/depositors/:address", h.AuditDepositor)
}
