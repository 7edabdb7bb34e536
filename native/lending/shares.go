package lending

import (
	"errors"

	"lendex/native/fixedpoint"
)

// Share conversion for one side of a bank. Deposits and borrows each carry
// an independent (totalUnderlying, totalShares) pair; the exchange rate is
// totalUnderlying/totalShares and moves only through accrual.
//
// Rounding always floors in the pool's favor: minting floors against the
// depositor and redemption floors against the redeemer, so dust accrues to
// the pool and can never mint phantom value.

// DepositToShares converts an underlying amount into shares to mint. The
// bootstrap deposit (zero shares outstanding) mints 1:1.
func DepositToShares(amount, totalUnderlying, totalShares uint64) (uint64, error) {
	if totalShares == 0 {
		return amount, nil
	}
	if totalUnderlying == 0 {
		// Shares outstanding against an empty pool violates the share
		// invariant; refuse rather than mint unbacked shares.
		return 0, ErrMathOverflow
	}
	shares, err := fixedpoint.MulDiv(amount, totalShares, totalUnderlying)
	if err != nil {
		return 0, mapOverflow(err)
	}
	return shares, nil
}

// SharesToAmount converts shares into the underlying amount they redeem
// for at the current exchange rate.
func SharesToAmount(shares, totalUnderlying, totalShares uint64) (uint64, error) {
	if totalShares == 0 {
		return 0, nil
	}
	amount, err := fixedpoint.MulDiv(shares, totalUnderlying, totalShares)
	if err != nil {
		return 0, mapOverflow(err)
	}
	return amount, nil
}

// AmountToShares converts a target underlying amount into the share count
// that redeems for at most that amount, for withdraw and repay requests.
func AmountToShares(amount, totalUnderlying, totalShares uint64) (uint64, error) {
	if totalShares == 0 || totalUnderlying == 0 {
		return 0, nil
	}
	shares, err := fixedpoint.MulDiv(amount, totalShares, totalUnderlying)
	if err != nil {
		return 0, mapOverflow(err)
	}
	return shares, nil
}

func mapOverflow(err error) error {
	if errors.Is(err, fixedpoint.ErrOverflow) || errors.Is(err, fixedpoint.ErrDivisionByZero) {
		return ErrMathOverflow
	}
	return err
}
