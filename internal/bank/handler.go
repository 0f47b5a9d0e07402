package bank

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/personal-bank/personal_bank/internal/account"
	"github.com/personal-bank/personal_bank/internal/middleware"
	"github.com/personal-bank/personal_bank/internal/money"
	"github.com/personal-bank/personal_bank/internal/settlement"
)

// Handler exposes the contract over HTTP.
type Handler struct {
	service    *Service
	payments   settlement.Observer
	minBalance uint64
}

// NewHandler constructs a contract handler. payments resolves the payment ids clients submit
// for crediting.
func NewHandler(service *Service, payments settlement.Observer, minBalance uint64) *Handler {
	return &Handler{service: service, payments: payments, minBalance: minBalance}
}

// Contract describes where deposits must be sent.
func (h *Handler) Contract(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"address":             h.service.Address().String(),
		"min_balance":         h.minBalance,
		"min_balance_display": money.Format(h.minBalance),
	})
}

type depositRequest struct {
	PaymentID string `json:"payment_id"`
}

// Deposit credits a confirmed payment to the contract. Sender, receiver and amount come from
// the settlement layer, never from the request body.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if req.PaymentID == "" {
		return fiber.NewError(http.StatusBadRequest, "payment_id is required")
	}

	payment, err := h.payments.Observe(c.UserContext(), req.PaymentID)
	if err != nil {
		if errors.Is(err, settlement.ErrPaymentNotFound) {
			return fiber.NewError(http.StatusNotFound, "payment not found")
		}
		return fiber.NewError(http.StatusBadGateway, "payment lookup failed")
	}

	total, err := h.service.Deposit(c.UserContext(), payment)
	if err != nil {
		return contractError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"account":         payment.Sender.String(),
		"payment_id":      payment.ID,
		"amount":          payment.Amount,
		"balance":         total,
		"balance_display": money.Format(total),
	})
}

// Withdraw pays the authenticated caller's balance back to them.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "caller not authenticated")
	}

	amount, err := h.service.Withdraw(c.UserContext(), caller)
	if err != nil {
		return contractError(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account":        caller.String(),
		"amount":         amount,
		"amount_display": money.Format(amount),
	})
}

// Depositor reports whether an address has deposited and its tracked balance.
func (h *Handler) Depositor(c *fiber.Ctx) error {
	acct, err := account.Parse(c.Params("address"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	balance, exists, err := h.service.Balance(c.UserContext(), acct)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"address":         acct.String(),
		"exists":          exists,
		"balance":         balance,
		"balance_display": money.Format(balance),
	})
}

// AuditDepositor returns the deposit and withdrawal totals behind a balance.
func (h *Handler) AuditDepositor(c *fiber.Ctx) error {
	acct, err := account.Parse(c.Params("address"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	audit, err := h.service.Audit(c.UserContext(), acct)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	journal, err := h.service.Withdrawals(c.UserContext(), acct)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	history := make([]fiber.Map, 0, len(journal))
	for _, w := range journal {
		history = append(history, fiber.Map{
			"id":             w.ID,
			"amount":         w.Amount,
			"settlement_ref": w.SettlementRef,
			"withdrawn_at":   w.WithdrawnAt,
		})
	}

	return c.JSON(fiber.Map{
		"address":     acct.String(),
		"exists":      audit.Exists,
		"balance":     audit.Balance,
		"deposited":   audit.Deposited.String(),
		"withdrawn":   audit.Withdrawn.String(),
		"deposits":    audit.Deposits,
		"withdrawals": audit.Withdrawals,
		"consistent":  audit.Deposited.Sub(audit.Withdrawn).Equal(money.FromMicro(audit.Balance)),
		"history":     history,
	})
}

func contractError(err error) error {
	switch {
	case errors.Is(err, ErrWrongReceiver), errors.Is(err, ErrSelfDeposit), errors.Is(err, ErrNonPositiveAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoDepositFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicatePayment):
		return fiber.NewError(http.StatusConflict, "payment already credited")
	case errors.Is(err, ErrOverflow):
		return fiber.NewError(http.StatusUnprocessableEntity, "balance overflow")
	case errors.Is(err, ErrTransferFailed):
		return fiber.NewError(http.StatusBadGateway, "transfer failed")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
