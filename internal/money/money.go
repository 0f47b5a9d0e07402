// Package money converts micro-unit ledger amounts to decimal whole units.
package money

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of one whole unit (1 unit = 1_000_000 micro-units).
const Decimals = 6

// FromMicro converts a micro-unit amount to a decimal in micro-units without loss.
func FromMicro(amount uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0)
}

// Units returns amount expressed in whole units.
func Units(amount uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -Decimals)
}

// Format renders amount as whole units with all six decimals, e.g. "1.500000".
func Format(amount uint64) string {
	return Units(amount).StringFixed(Decimals)
}
