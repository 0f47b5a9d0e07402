package balances

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/personal-bank/personal_bank/internal/account"
)

var (
	// ErrOverflow occurs when crediting would exceed the largest representable amount.
	ErrOverflow = errors.New("balance overflow")

	// ErrPaymentConsumed indicates the settlement payment was already credited to a depositor.
	ErrPaymentConsumed = errors.New("payment already credited")
)

// Deposit records one credited inbound payment.
type Deposit struct {
	PaymentID string
	Account   account.Address
	Amount    uint64
}

// Withdrawal records one completed payout of a depositor's balance.
type Withdrawal struct {
	ID      string
	Account account.Address
	Amount  uint64
	// SettlementRef is the settlement transaction id of the payout.
	SettlementRef string
	WithdrawnAt   time.Time
}

// Audit summarises an account's history. Balance always equals Deposited minus Withdrawn.
type Audit struct {
	Account     account.Address
	Exists      bool
	Balance     uint64
	Deposited   decimal.Decimal
	Withdrawn   decimal.Decimal
	Deposits    int
	Withdrawals int
}

// Tx is the view of the store inside one atomic scope.
type Tx interface {
	// Exists reports whether an entry was ever created for the account.
	Exists(ctx context.Context, acct account.Address) (bool, error)
	// Get returns the balance and whether the entry exists. Absent entries report (0, false).
	Get(ctx context.Context, acct account.Address) (uint64, bool, error)
	// Set creates or overwrites the entry.
	Set(ctx context.Context, acct account.Address, amount uint64) error
	// Increment creates the entry with delta or adds delta to it, returning the new value.
	Increment(ctx context.Context, acct account.Address, delta uint64) (uint64, error)
	// RecordDeposit remembers a credited payment. It fails with ErrPaymentConsumed for a known payment id.
	RecordDeposit(ctx context.Context, d Deposit) error
	// RecordWithdrawal appends to the withdrawal journal.
	RecordWithdrawal(ctx context.Context, w Withdrawal) error
}

// Store is the durable depositor mapping owned by the bank contract.
//
// The Tx methods on Store itself each run in their own atomic scope. Atomic runs fn with
// exclusive access to acct's entry; everything fn writes becomes visible together when fn
// returns nil and is discarded otherwise.
type Store interface {
	Tx
	Atomic(ctx context.Context, acct account.Address, fn func(tx Tx) error) error
	Audit(ctx context.Context, acct account.Address) (Audit, error)
	// Withdrawals lists acct's withdrawal journal, oldest first.
	Withdrawals(ctx context.Context, acct account.Address) ([]Withdrawal, error)
}
