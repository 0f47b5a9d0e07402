package settlement

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/personal-bank/personal_bank/internal/account"
)

// DevHandler drives the simulated chain over HTTP so a development deployment can be exercised
// end to end.
type DevHandler struct {
	chain *Memory
}

func NewDevHandler(chain *Memory) *DevHandler {
	return &DevHandler{chain: chain}
}

type fundRequest struct {
	Address account.Address `json:"address"`
	Amount  uint64          `json:"amount"`
}

// Fund mints test funds into an address.
func (h *DevHandler) Fund(c *fiber.Ctx) error {
	var req fundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Address.IsZero() {
		return fiber.NewError(http.StatusBadRequest, "address is required")
	}
	if err := h.chain.Fund(req.Address, req.Amount); err != nil {
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(fiber.Map{
		"address": req.Address.String(),
		"balance": h.chain.Balance(req.Address),
	})
}

type payRequest struct {
	From   account.Address `json:"from"`
	To     account.Address `json:"to"`
	Amount uint64          `json:"amount"`
}

// Pay moves funds between simulated accounts and returns the confirmed payment, whose id can
// then be submitted as a deposit.
func (h *DevHandler) Pay(c *fiber.Ctx) error {
	var req payRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.From.IsZero() || req.To.IsZero() {
		return fiber.NewError(http.StatusBadRequest, "from and to are required")
	}
	p, err := h.chain.Pay(c.UserContext(), req.From, req.To, req.Amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"payment_id":   p.ID,
		"sender":       p.Sender.String(),
		"receiver":     p.Receiver.String(),
		"amount":       p.Amount,
		"round":        p.Round,
		"confirmed_at": p.ConfirmedAt,
	})
}

// Balance reports an address's simulated on-chain balance.
func (h *DevHandler) Balance(c *fiber.Ctx) error {
	addr, err := account.Parse(c.Params("address"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"address": addr.String(), "balance": h.chain.Balance(addr)})
}
