package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/personal-bank/personal_bank/internal/account"
	"github.com/personal-bank/personal_bank/internal/balances"
	"github.com/personal-bank/personal_bank/internal/logging"
	"github.com/personal-bank/personal_bank/internal/notification"
	"github.com/personal-bank/personal_bank/internal/settlement"
)

// Service is the bank contract. It owns the depositor store; nothing else writes to it.
type Service struct {
	app      account.Address
	store    balances.Store
	payouts  settlement.Submitter
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the contract for the account app. notifier and logger may be nil.
func NewService(app account.Address, store balances.Store, payouts settlement.Submitter, notifier notification.Notifier, logger *slog.Logger) (*Service, error) {
	if app.IsZero() {
		return nil, fmt.Errorf("contract address is required")
	}
	if store == nil {
		return nil, fmt.Errorf("balance store is required")
	}
	if payouts == nil {
		return nil, fmt.Errorf("settlement submitter is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		app:      app,
		store:    store,
		payouts:  payouts,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Address returns the contract account that deposits must be paid to.
func (s *Service) Address() account.Address {
	return s.app
}

// Deposit credits a confirmed inbound payment to its sender and returns the sender's new total.
// The payment must come from a settlement Observer.
func (s *Service) Deposit(ctx context.Context, payment settlement.Payment) (uint64, error) {
	if payment.Receiver != s.app {
		return 0, ErrWrongReceiver
	}
	if payment.Sender == s.app {
		return 0, ErrSelfDeposit
	}
	if payment.Amount == 0 {
		return 0, ErrNonPositiveAmount
	}

	var total uint64
	err := s.store.Atomic(ctx, payment.Sender, func(tx balances.Tx) error {
		if err := tx.RecordDeposit(ctx, balances.Deposit{
			PaymentID: payment.ID,
			Account:   payment.Sender,
			Amount:    payment.Amount,
		}); err != nil {
			return err
		}
		var err error
		total, err = tx.Increment(ctx, payment.Sender, payment.Amount)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deposit %s: %w", payment.ID, err)
	}

	s.logger.InfoContext(ctx, "deposit credited",
		slog.String("account", payment.Sender.String()),
		slog.String("payment_id", payment.ID),
		slog.Uint64("amount", payment.Amount),
		slog.Uint64("balance", total),
	)
	s.notify(ctx, notification.Message{
		Kind:      notification.KindDeposit,
		Account:   payment.Sender.String(),
		Amount:    payment.Amount,
		Balance:   total,
		Reference: payment.ID,
	})

	return total, nil
}

// Withdraw pays caller's whole balance back to caller and resets the entry to zero.
//
// The entry is kept after a withdrawal, so a second withdrawal succeeds and returns zero
// without submitting a payout.
func (s *Service) Withdraw(ctx context.Context, caller account.Address) (uint64, error) {
	var (
		receipt   settlement.Receipt
		submitted bool
	)

	err := s.store.Atomic(ctx, caller, func(tx balances.Tx) error {
		amount, ok, err := tx.Get(ctx, caller)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoDepositFound
		}
		if amount == 0 {
			return nil
		}

		if err := tx.Set(ctx, caller, 0); err != nil {
			return err
		}

		// Only store writes follow the payout; the journal row needs its receipt.
		withdrawalID := uuid.NewString()
		receipt, err = s.payouts.Submit(ctx, settlement.Payout{
			Sender:   s.app,
			Receiver: caller,
			Amount:   amount,
			Fee:      0,
			Note:     "withdraw:" + withdrawalID,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		submitted = true

		return tx.RecordWithdrawal(ctx, balances.Withdrawal{
			ID:            withdrawalID,
			Account:       caller,
			Amount:        receipt.Amount,
			SettlementRef: receipt.TxID,
			WithdrawnAt:   s.now(),
		})
	})
	if err != nil {
		if submitted {
			s.logger.ErrorContext(ctx, "payout settled but balance reset not committed",
				slog.String("account", caller.String()),
				slog.String("tx_id", receipt.TxID),
				slog.Uint64("amount", receipt.Amount),
				slog.Any("error", err),
			)
		}
		if errors.Is(err, ErrNoDepositFound) {
			return 0, err
		}
		return 0, fmt.Errorf("withdraw %s: %w", caller, err)
	}
	if !submitted {
		s.logger.DebugContext(ctx, "withdrawal of empty balance", slog.String("account", caller.String()))
		return 0, nil
	}

	s.logger.InfoContext(ctx, "withdrawal completed",
		slog.String("account", caller.String()),
		slog.String("tx_id", receipt.TxID),
		slog.Uint64("amount", receipt.Amount),
	)
	s.notify(ctx, notification.Message{
		Kind:      notification.KindWithdrawal,
		Account:   caller.String(),
		Amount:    receipt.Amount,
		Reference: receipt.TxID,
	})

	return receipt.Amount, nil
}

// Balance returns the tracked balance for acct and whether acct ever deposited.
func (s *Service) Balance(ctx context.Context, acct account.Address) (uint64, bool, error) {
	return s.store.Get(ctx, acct)
}

// Audit returns the deposit and withdrawal history summary for acct.
func (s *Service) Audit(ctx context.Context, acct account.Address) (balances.Audit, error) {
	return s.store.Audit(ctx, acct)
}

// Withdrawals returns acct's withdrawal journal with the settlement reference of each payout.
func (s *Service) Withdrawals(ctx context.Context, acct account.Address) ([]balances.Withdrawal, error) {
	return s.store.Withdrawals(ctx, acct)
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}
