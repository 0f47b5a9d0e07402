package balances

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/bits"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/personal-bank/personal_bank/internal/account"
)

//go:embed schema.sql
var schema string

// Migrate creates the depositor tables when they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Store = (*PostgresStore)(nil)

// PostgresStore persists depositor balances in PostgreSQL. Amounts travel as text and are
// stored as NUMERIC(20,0) so the full uint64 range survives.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed balance store.
func NewPostgres(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Atomic runs fn in one SQL transaction holding a transaction-scoped advisory lock on acct.
func (s *PostgresStore) Atomic(ctx context.Context, acct account.Address, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, acct.Hex()); err != nil {
		return fmt.Errorf("lock account %s: %w", acct, err)
	}

	if err := fn(&postgresTx{q: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Exists reports whether acct has a depositor entry.
func (s *PostgresStore) Exists(ctx context.Context, acct account.Address) (bool, error) {
	return (&postgresTx{q: s.db}).Exists(ctx, acct)
}

// Get returns the stored balance for acct.
func (s *PostgresStore) Get(ctx context.Context, acct account.Address) (uint64, bool, error) {
	return (&postgresTx{q: s.db}).Get(ctx, acct)
}

// Set overwrites the balance for acct.
func (s *PostgresStore) Set(ctx context.Context, acct account.Address, amount uint64) error {
	return s.Atomic(ctx, acct, func(tx Tx) error {
		return tx.Set(ctx, acct, amount)
	})
}

// Increment adds delta to the balance for acct.
func (s *PostgresStore) Increment(ctx context.Context, acct account.Address, delta uint64) (uint64, error) {
	var total uint64
	err := s.Atomic(ctx, acct, func(tx Tx) error {
		var err error
		total, err = tx.Increment(ctx, acct, delta)
		return err
	})
	return total, err
}

// RecordDeposit stores a credited payment id.
func (s *PostgresStore) RecordDeposit(ctx context.Context, d Deposit) error {
	return s.Atomic(ctx, d.Account, func(tx Tx) error {
		return tx.RecordDeposit(ctx, d)
	})
}

// RecordWithdrawal appends to the withdrawal journal.
func (s *PostgresStore) RecordWithdrawal(ctx context.Context, w Withdrawal) error {
	return s.Atomic(ctx, w.Account, func(tx Tx) error {
		return tx.RecordWithdrawal(ctx, w)
	})
}

// Audit summarises the deposit and withdrawal history of acct.
func (s *PostgresStore) Audit(ctx context.Context, acct account.Address) (Audit, error) {
	out := Audit{Account: acct}

	balance, exists, err := s.Get(ctx, acct)
	if err != nil {
		return Audit{}, err
	}
	out.Balance = balance
	out.Exists = exists

	const depositsQuery = `SELECT COALESCE(SUM(amount), 0)::text, COUNT(*) FROM deposit_payments WHERE account = $1`
	var deposited string
	if err := s.db.QueryRow(ctx, depositsQuery, acct.Bytes()).Scan(&deposited, &out.Deposits); err != nil {
		return Audit{}, err
	}
	if out.Deposited, err = decimal.NewFromString(deposited); err != nil {
		return Audit{}, fmt.Errorf("parse deposited total: %w", err)
	}

	const withdrawalsQuery = `SELECT COALESCE(SUM(amount), 0)::text, COUNT(*) FROM withdrawals WHERE account = $1`
	var withdrawn string
	if err := s.db.QueryRow(ctx, withdrawalsQuery, acct.Bytes()).Scan(&withdrawn, &out.Withdrawals); err != nil {
		return Audit{}, err
	}
	if out.Withdrawn, err = decimal.NewFromString(withdrawn); err != nil {
		return Audit{}, fmt.Errorf("parse withdrawn total: %w", err)
	}

	return out, nil
}

// Withdrawals lists the withdrawal journal of acct, oldest first.
func (s *PostgresStore) Withdrawals(ctx context.Context, acct account.Address) ([]Withdrawal, error) {
	rows, err := s.db.Query(ctx, `SELECT id::text, amount::text, settlement_ref, withdrawn_at
        FROM withdrawals WHERE account = $1 ORDER BY withdrawn_at, id`, acct.Bytes())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Withdrawal
	for rows.Next() {
		w := Withdrawal{Account: acct}
		var amount string
		if err := rows.Scan(&w.ID, &amount, &w.SettlementRef, &w.WithdrawnAt); err != nil {
			return nil, err
		}
		if w.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
			return nil, fmt.Errorf("parse withdrawal amount: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

type postgresTx struct {
	q querier
}

func (t *postgresTx) Exists(ctx context.Context, acct account.Address) (bool, error) {
	_, ok, err := t.Get(ctx, acct)
	return ok, err
}

func (t *postgresTx) Get(ctx context.Context, acct account.Address) (uint64, bool, error) {
	const query = `SELECT amount::text FROM depositors WHERE account = $1`
	var raw string
	if err := t.q.QueryRow(ctx, query, acct.Bytes()).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	amount, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse balance for %s: %w", acct, err)
	}
	return amount, true, nil
}

func (t *postgresTx) Set(ctx context.Context, acct account.Address, amount uint64) error {
	_, err := t.q.Exec(ctx, `INSERT INTO depositors (account, amount) VALUES ($1, $2::text::numeric)
        ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()`,
		acct.Bytes(), strconv.FormatUint(amount, 10))
	return err
}

func (t *postgresTx) Increment(ctx context.Context, acct account.Address, delta uint64) (uint64, error) {
	current, _, err := t.Get(ctx, acct)
	if err != nil {
		return 0, err
	}
	total, carry := bits.Add64(current, delta, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	if err := t.Set(ctx, acct, total); err != nil {
		return 0, err
	}
	return total, nil
}

func (t *postgresTx) RecordDeposit(ctx context.Context, d Deposit) error {
	cmd, err := t.q.Exec(ctx, `INSERT INTO deposit_payments (payment_id, account, amount) VALUES ($1, $2, $3::text::numeric)
        ON CONFLICT (payment_id) DO NOTHING`, d.PaymentID, d.Account.Bytes(), strconv.FormatUint(d.Amount, 10))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPaymentConsumed
	}
	return nil
}

func (t *postgresTx) RecordWithdrawal(ctx context.Context, w Withdrawal) error {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `INSERT INTO withdrawals (id, account, amount, settlement_ref, withdrawn_at)
        VALUES ($1, $2, $3::text::numeric, $4, $5)`,
		id, w.Account.Bytes(), strconv.FormatUint(w.Amount, 10), w.SettlementRef, w.WithdrawnAt.UTC())
	return err
}
