package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// RateScale is the fixed-point denominator used for per-period interest
// rates. A rate of RateScale equals 100% per period.
const RateScale = 1_000_000_000_000

// BasisPoints is the denominator for fee and risk parameters expressed in
// basis points.
const BasisPoints = 10_000

// ErrOverflow is returned whenever an intermediate or final value cannot be
// represented losslessly in 64 bits. Callers must treat it as fatal for the
// surrounding operation.
var ErrOverflow = errors.New("fixedpoint: arithmetic overflow")

// ErrDivisionByZero is returned when a zero denominator is supplied.
var ErrDivisionByZero = errors.New("fixedpoint: division by zero")

// MulDiv computes floor(a*b/denom) with a 256-bit intermediate product so the
// multiplication can never wrap.
func MulDiv(a, b, denom uint64) (uint64, error) {
	if denom == 0 {
		return 0, ErrDivisionByZero
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient := product.Div(product, uint256.NewInt(denom))
	if !quotient.IsUint64() {
		return 0, ErrOverflow
	}
	return quotient.Uint64(), nil
}

// MulBps applies a basis-point factor to an amount, flooring the result.
func MulBps(amount, bps uint64) (uint64, error) {
	return MulDiv(amount, bps, BasisPoints)
}

// Compound grows principal by ratePerPeriod (scaled by RateScale) over the
// given number of periods: principal * (1 + rate/RateScale)^periods. The
// growth is applied iteratively in integer space; each step floors, matching
// the accrual semantics of the ledger.
func Compound(principal, ratePerPeriod, periods uint64) (uint64, error) {
	if principal == 0 || ratePerPeriod == 0 || periods == 0 {
		return principal, nil
	}
	amount := uint256.NewInt(principal)
	rate := uint256.NewInt(ratePerPeriod)
	scale := uint256.NewInt(RateScale)
	interest := new(uint256.Int)
	for i := uint64(0); i < periods; i++ {
		interest.Mul(amount, rate)
		interest.Div(interest, scale)
		amount.Add(amount, interest)
		if !amount.IsUint64() {
			return 0, ErrOverflow
		}
	}
	return amount.Uint64(), nil
}

// Add returns a+b, failing instead of wrapping.
func Add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, failing when b exceeds a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}
