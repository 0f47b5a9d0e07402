// Package bank implements the personal bank contract: depositors pay the contract account and
// may later withdraw their whole tracked balance.
package bank

import (
	"errors"

	"github.com/personal-bank/personal_bank/internal/balances"
)

var (
	// ErrWrongReceiver rejects a deposit whose payment was not made to the contract account.
	ErrWrongReceiver = errors.New("receiver must be the contract address")

	// ErrSelfDeposit rejects a payment sent by the contract account to itself. No funds enter
	// custody, so nothing may be credited.
	ErrSelfDeposit = errors.New("contract cannot deposit to itself")

	// ErrNonPositiveAmount rejects a deposit of zero.
	ErrNonPositiveAmount = errors.New("deposit amount must be greater than zero")

	// ErrNoDepositFound rejects a withdrawal by an account that never deposited.
	ErrNoDepositFound = errors.New("no deposits found for this account")

	// ErrOverflow rejects a deposit that would overflow the depositor's balance.
	ErrOverflow = balances.ErrOverflow

	// ErrTransferFailed indicates the settlement layer did not accept the payout.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrDuplicatePayment rejects a payment that was already credited.
	ErrDuplicatePayment = balances.ErrPaymentConsumed
)
