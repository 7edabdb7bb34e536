package lending

import "lendex/native/fixedpoint"

// SecondsPerYear is the accrual year: 365 days, no leap handling.
const SecondsPerYear = 365 * 24 * 3600

// ratePerPeriod derives the fixed-point per-period rate from an annualized
// basis-point rate and the bank's compounding period.
func ratePerPeriod(annualRateBps uint64, period int64) (uint64, error) {
	if annualRateBps == 0 || period <= 0 || period > SecondsPerYear {
		return 0, nil
	}
	periodsPerYear := uint64(SecondsPerYear / period)
	if periodsPerYear == 0 {
		return 0, nil
	}
	scaled, err := fixedpoint.MulDiv(annualRateBps, fixedpoint.RateScale, fixedpoint.BasisPoints)
	if err != nil {
		return 0, mapOverflow(err)
	}
	return scaled / periodsPerYear, nil
}

// accrueSide advances one side of a bank to now. It compounds the side's
// underlying total once per whole elapsed period and advances lastUpdated
// by exactly the periods applied, keeping period boundaries aligned so
// frequent calls cannot drift or game the schedule. Shares never change
// here; accrual moves the exchange rate.
func accrueSide(total, annualRateBps uint64, lastUpdated, period, now int64) (newTotal uint64, newLastUpdated int64, changed bool, err error) {
	if period <= 0 || now <= lastUpdated {
		return total, lastUpdated, false, nil
	}
	elapsedPeriods := (now - lastUpdated) / period
	if elapsedPeriods == 0 {
		return total, lastUpdated, false, nil
	}
	rate, err := ratePerPeriod(annualRateBps, period)
	if err != nil {
		return 0, 0, false, err
	}
	newLastUpdated = lastUpdated + elapsedPeriods*period
	if rate == 0 || total == 0 {
		return total, newLastUpdated, newLastUpdated != lastUpdated, nil
	}
	compounded, err := fixedpoint.Compound(total, rate, uint64(elapsedPeriods))
	if err != nil {
		return 0, 0, false, mapOverflow(err)
	}
	return compounded, newLastUpdated, true, nil
}

// accrueBank brings both sides of a bank current as of now. The caller is
// responsible for persisting the bank within the same atomic unit as the
// operation that triggered accrual.
func accrueBank(bank *Bank, now int64) error {
	if bank == nil {
		return ErrUnknownBank
	}
	deposited, lastDep, _, err := accrueSide(bank.TotalDeposited, bank.DepositInterestRate, bank.LastUpdatedDeposited, bank.InterestAccrualPeriod, now)
	if err != nil {
		return err
	}
	borrowed, lastBor, _, err := accrueSide(bank.TotalBorrowed, bank.BorrowInterestRate, bank.LastUpdatedBorrowed, bank.InterestAccrualPeriod, now)
	if err != nil {
		return err
	}
	bank.TotalDeposited = deposited
	bank.LastUpdatedDeposited = lastDep
	bank.TotalBorrowed = borrowed
	bank.LastUpdatedBorrowed = lastBor
	return nil
}
