package settlement

import (
	"context"
	"fmt"
	"math/bits"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/personal-bank/personal_bank/internal/account"
)

// Memory simulates a single-node chain: account balances, confirmed payments and rounds.
// It stands in for a local development network.
type Memory struct {
	mu         sync.Mutex
	app        account.Address
	minBalance uint64
	balances   map[account.Address]uint64
	payments   map[string]Payment
	round      uint64
	now        func() time.Time
}

var _ Settlement = (*Memory)(nil)

// NewMemory creates a simulated chain on which app is the bank contract's account. Payouts
// from app must leave at least minBalance behind.
func NewMemory(app account.Address, minBalance uint64) *Memory {
	return &Memory{
		app:        app,
		minBalance: minBalance,
		balances:   make(map[account.Address]uint64),
		payments:   make(map[string]Payment),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Fund mints amount into addr, like a dispenser on a development network.
func (m *Memory) Fund(addr account.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credit(addr, amount)
}

// Balance returns the on-chain balance of addr.
func (m *Memory) Balance(addr account.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[addr]
}

// Pay transfers amount from one account to another and returns the confirmed payment.
func (m *Memory) Pay(_ context.Context, from, to account.Address, amount uint64) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[from] < amount {
		return Payment{}, fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, m.balances[from], amount)
	}
	if err := m.move(from, to, amount); err != nil {
		return Payment{}, err
	}
	return m.confirm(from, to, amount), nil
}

// Observe returns a confirmed payment by transaction id.
func (m *Memory) Observe(_ context.Context, id string) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return Payment{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
	}
	return p, nil
}

// Submit pays out of the contract account.
func (m *Memory) Submit(_ context.Context, payout Payout) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if payout.Sender != m.app {
		return Receipt{}, fmt.Errorf("%w: sender %s is not the contract", ErrRejected, payout.Sender)
	}
	if payout.Receiver.IsZero() {
		return Receipt{}, fmt.Errorf("%w: zero receiver", ErrRejected)
	}

	need, carry := bits.Add64(payout.Amount, payout.Fee, 0)
	if carry != 0 {
		return Receipt{}, fmt.Errorf("%w: amount plus fee overflows", ErrRejected)
	}
	available := m.balances[m.app]
	if available < m.minBalance || available-m.minBalance < need {
		return Receipt{}, fmt.Errorf("%w: contract holds %d, reserve %d, needs %d", ErrInsufficientLiquidity, available, m.minBalance, need)
	}

	if err := m.move(m.app, payout.Receiver, payout.Amount); err != nil {
		return Receipt{}, err
	}
	m.balances[m.app] -= payout.Fee

	p := m.confirm(m.app, payout.Receiver, payout.Amount)
	return Receipt{TxID: p.ID, Amount: p.Amount, Round: p.Round}, nil
}

func (m *Memory) credit(addr account.Address, amount uint64) error {
	total, carry := bits.Add64(m.balances[addr], amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: balance of %s overflows", ErrRejected, addr)
	}
	m.balances[addr] = total
	return nil
}

// move assumes the caller checked from's balance.
func (m *Memory) move(from, to account.Address, amount uint64) error {
	if from == to {
		return nil
	}
	if err := m.credit(to, amount); err != nil {
		return err
	}
	m.balances[from] -= amount
	return nil
}

func (m *Memory) confirm(from, to account.Address, amount uint64) Payment {
	m.round++
	p := Payment{
		ID:          uuid.NewString(),
		Sender:      from,
		Receiver:    to,
		Amount:      amount,
		Round:       m.round,
		ConfirmedAt: m.now(),
	}
	m.payments[p.ID] = p
	return p
}
