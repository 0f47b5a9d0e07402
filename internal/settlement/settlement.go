package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/personal-bank/personal_bank/internal/account"
)

var (
	// ErrPaymentNotFound is returned when no confirmed payment carries the requested id.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInsufficientLiquidity occurs when a payout would take the sender below its minimum balance.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrInsufficientFunds occurs when a payer cannot cover a payment.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrRejected indicates the settlement layer refused the payout outright.
	ErrRejected = errors.New("payout rejected")
)

// Payment is a confirmed value transfer observed on the settlement layer. Values are only
// produced by an Observer, never assembled from caller input.
type Payment struct {
	ID          string
	Sender      account.Address
	Receiver    account.Address
	Amount      uint64
	Round       uint64
	ConfirmedAt time.Time
}

// Payout asks the settlement layer to move funds out of Sender's custody.
type Payout struct {
	Sender   account.Address
	Receiver account.Address
	Amount   uint64
	// Fee charged to Sender for the payout itself. The bank always sends zero; the
	// enclosing request covers it.
	Fee  uint64
	Note string
}

// Receipt confirms a submitted payout.
type Receipt struct {
	TxID   string
	Amount uint64
	Round  uint64
}

// Observer resolves payment ids to confirmed payments.
type Observer interface {
	Observe(ctx context.Context, id string) (Payment, error)
}

// Submitter issues outbound payouts and reports the outcome synchronously.
type Submitter interface {
	Submit(ctx context.Context, payout Payout) (Receipt, error)
}

// Settlement is the full boundary with the system of record that moves value.
type Settlement interface {
	Observer
	Submitter
}
