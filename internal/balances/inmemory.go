package balances

import (
	"context"
	"math/bits"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/personal-bank/personal_bank/internal/account"
	"github.com/personal-bank/personal_bank/internal/money"
)

type inMemoryStore struct {
	mu          sync.Mutex
	entries     map[account.Address]uint64
	deposits    map[string]Deposit
	withdrawals []Withdrawal
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests and development.
// A single mutex serialises every atomic scope.
func NewInMemory() Store {
	return &inMemoryStore{
		entries:  make(map[account.Address]uint64),
		deposits: make(map[string]Deposit),
	}
}

func (s *inMemoryStore) Atomic(_ context.Context, _ account.Address, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:    s,
		entries:  make(map[account.Address]uint64),
		deposits: make(map[string]Deposit),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *inMemoryStore) Exists(ctx context.Context, acct account.Address) (bool, error) {
	var exists bool
	err := s.Atomic(ctx, acct, func(tx Tx) error {
		var err error
		exists, err = tx.Exists(ctx, acct)
		return err
	})
	return exists, err
}

func (s *inMemoryStore) Get(ctx context.Context, acct account.Address) (uint64, bool, error) {
	var (
		amount uint64
		ok     bool
	)
	err := s.Atomic(ctx, acct, func(tx Tx) error {
		var err error
		amount, ok, err = tx.Get(ctx, acct)
		return err
	})
	return amount, ok, err
}

func (s *inMemoryStore) Set(ctx context.Context, acct account.Address, amount uint64) error {
	return s.Atomic(ctx, acct, func(tx Tx) error {
		return tx.Set(ctx, acct, amount)
	})
}

func (s *inMemoryStore) Increment(ctx context.Context, acct account.Address, delta uint64) (uint64, error) {
	var total uint64
	err := s.Atomic(ctx, acct, func(tx Tx) error {
		var err error
		total, err = tx.Increment(ctx, acct, delta)
		return err
	})
	return total, err
}

func (s *inMemoryStore) RecordDeposit(ctx context.Context, d Deposit) error {
	return s.Atomic(ctx, d.Account, func(tx Tx) error {
		return tx.RecordDeposit(ctx, d)
	})
}

func (s *inMemoryStore) RecordWithdrawal(ctx context.Context, w Withdrawal) error {
	return s.Atomic(ctx, w.Account, func(tx Tx) error {
		return tx.RecordWithdrawal(ctx, w)
	})
}

func (s *inMemoryStore) Audit(_ context.Context, acct account.Address) (Audit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, exists := s.entries[acct]
	out := Audit{
		Account:   acct,
		Exists:    exists,
		Balance:   balance,
		Deposited: decimal.Zero,
		Withdrawn: decimal.Zero,
	}
	for _, d := range s.deposits {
		if d.Account != acct {
			continue
		}
		out.Deposited = out.Deposited.Add(money.FromMicro(d.Amount))
		out.Deposits++
	}
	for _, w := range s.withdrawals {
		if w.Account != acct {
			continue
		}
		out.Withdrawn = out.Withdrawn.Add(money.FromMicro(w.Amount))
		out.Withdrawals++
	}
	return out, nil
}

func (s *inMemoryStore) Withdrawals(_ context.Context, acct account.Address) ([]Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Withdrawal
	for _, w := range s.withdrawals {
		if w.Account == acct {
			out = append(out, w)
		}
	}
	return out, nil
}

// memoryTx stages writes until the surrounding Atomic call commits them.
type memoryTx struct {
	store       *inMemoryStore
	entries     map[account.Address]uint64
	deposits    map[string]Deposit
	withdrawals []Withdrawal
}

func (tx *memoryTx) Exists(ctx context.Context, acct account.Address) (bool, error) {
	_, ok, err := tx.Get(ctx, acct)
	return ok, err
}

func (tx *memoryTx) Get(_ context.Context, acct account.Address) (uint64, bool, error) {
	if amount, ok := tx.entries[acct]; ok {
		return amount, true, nil
	}
	amount, ok := tx.store.entries[acct]
	return amount, ok, nil
}

func (tx *memoryTx) Set(_ context.Context, acct account.Address, amount uint64) error {
	tx.entries[acct] = amount
	return nil
}

func (tx *memoryTx) Increment(ctx context.Context, acct account.Address, delta uint64) (uint64, error) {
	current, ok, err := tx.Get(ctx, acct)
	if err != nil {
		return 0, err
	}
	if !ok {
		tx.entries[acct] = delta
		return delta, nil
	}
	total, carry := bits.Add64(current, delta, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	tx.entries[acct] = total
	return total, nil
}

func (tx *memoryTx) RecordDeposit(_ context.Context, d Deposit) error {
	if _, ok := tx.deposits[d.PaymentID]; ok {
		return ErrPaymentConsumed
	}
	if _, ok := tx.store.deposits[d.PaymentID]; ok {
		return ErrPaymentConsumed
	}
	tx.deposits[d.PaymentID] = d
	return nil
}

func (tx *memoryTx) RecordWithdrawal(_ context.Context, w Withdrawal) error {
	tx.withdrawals = append(tx.withdrawals, w)
	return nil
}

func (tx *memoryTx) commit() {
	for acct, amount := range tx.entries {
		tx.store.entries[acct] = amount
	}
	for id, d := range tx.deposits {
		tx.store.deposits[id] = d
	}
	tx.store.withdrawals = append(tx.store.withdrawals, tx.withdrawals...)
}
