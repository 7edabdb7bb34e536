package lending

import (
	"errors"
	"math"
	"math/big"

	"github.com/holiman/uint256"

	"lendex/native/oracle"
)

// USD values are tracked at a fixed 1e-18 scale: a quote with price P and
// exponent E prices one token unit at P*10^E USD, so an amount values at
// amount * P * 10^(18+E) scaled units. Sums and comparisons stay in
// uint256; division only happens when converting a USD value back into
// tokens during liquidation.

const usdScale = 18

var pow10Table = buildPow10()

func buildPow10() [usdScale + 1]*uint256.Int {
	var table [usdScale + 1]*uint256.Int
	value := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := 0; i <= usdScale; i++ {
		table[i] = new(uint256.Int).Set(value)
		value.Mul(value, ten)
	}
	return table
}

// priceFunc resolves a validated quote for a bank symbol.
type priceFunc func(symbol string) (oracle.Quote, error)

// accountHealth aggregates a user's USD exposure across every bank they
// participate in. The bps-weighted sums keep the per-bank liquidation
// threshold and max-LTV applied without any lossy division.
type accountHealth struct {
	// collateralValue and borrowValue are 1e-18-scaled USD totals.
	collateralValue *uint256.Int
	borrowValue     *uint256.Int
	// adjustedCollateral is the sum of value*liquidationThreshold in bps.
	adjustedCollateral *uint256.Int
	// borrowLimit is the sum of value*maxLTV in bps.
	borrowLimit *uint256.Int
}

func newAccountHealth() *accountHealth {
	return &accountHealth{
		collateralValue:    new(uint256.Int),
		borrowValue:        new(uint256.Int),
		adjustedCollateral: new(uint256.Int),
		borrowLimit:        new(uint256.Int),
	}
}

// usdValue prices an amount with a quote, failing on exponents the fixed
// scale cannot represent.
func usdValue(amount uint64, quote oracle.Quote) (*uint256.Int, error) {
	if quote.Price <= 0 || quote.Exponent > 0 || quote.Exponent < -usdScale {
		return nil, ErrInvalidPriceFeed
	}
	value := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(quote.Price)))
	return value.Mul(value, pow10Table[usdScale+int(quote.Exponent)]), nil
}

// usdToAmount converts a 1e-18-scaled USD value into tokens at the quoted
// price, flooring in the pool's favor.
func usdToAmount(value *uint256.Int, quote oracle.Quote) (uint64, error) {
	if quote.Price <= 0 || quote.Exponent > 0 || quote.Exponent < -usdScale {
		return 0, ErrInvalidPriceFeed
	}
	unit := new(uint256.Int).Mul(uint256.NewInt(uint64(quote.Price)), pow10Table[usdScale+int(quote.Exponent)])
	if unit.IsZero() {
		return 0, ErrInvalidPriceFeed
	}
	amount := new(uint256.Int).Div(value, unit)
	if !amount.IsUint64() {
		return 0, ErrMathOverflow
	}
	return amount.Uint64(), nil
}

func mulBpsWide(value *uint256.Int, bps uint64) *uint256.Int {
	return new(uint256.Int).Mul(value, uint256.NewInt(bps))
}

// buildAccountHealth values every position of one owner at current oracle
// prices. Banks must already be accrued; prices are fetched once per bank.
func buildAccountHealth(positions []*UserPosition, banks map[string]*Bank, price priceFunc) (*accountHealth, error) {
	health := newAccountHealth()
	quotes := make(map[string]oracle.Quote)
	for _, position := range positions {
		if position == nil || (position.DepositedShares == 0 && position.BorrowedShares == 0) {
			continue
		}
		bank, ok := banks[position.MintAddress]
		if !ok || bank == nil {
			return nil, ErrUnknownBank
		}
		quote, ok := quotes[bank.Symbol]
		if !ok {
			fetched, err := price(bank.Symbol)
			if err != nil {
				return nil, mapOracleError(err)
			}
			quote = fetched
			quotes[bank.Symbol] = quote
		}
		if position.DepositedShares > 0 {
			amount, err := SharesToAmount(position.DepositedShares, bank.TotalDeposited, bank.TotalDepositedShares)
			if err != nil {
				return nil, err
			}
			value, err := usdValue(amount, quote)
			if err != nil {
				return nil, err
			}
			health.collateralValue.Add(health.collateralValue, value)
			health.adjustedCollateral.Add(health.adjustedCollateral, mulBpsWide(value, bank.LiquidationThreshold))
			health.borrowLimit.Add(health.borrowLimit, mulBpsWide(value, bank.MaxLTV))
		}
		if position.BorrowedShares > 0 {
			amount, err := SharesToAmount(position.BorrowedShares, bank.TotalBorrowed, bank.TotalBorrowedShares)
			if err != nil {
				return nil, err
			}
			value, err := usdValue(amount, quote)
			if err != nil {
				return nil, err
			}
			health.borrowValue.Add(health.borrowValue, value)
		}
	}
	return health, nil
}

// liquidatable reports whether the position set is below the liquidation
// threshold: adjustedCollateral < borrowValue (both bps-scaled).
func (h *accountHealth) liquidatable() bool {
	if h == nil || h.borrowValue.IsZero() {
		return false
	}
	scaledBorrow := mulBpsWide(h.borrowValue, 10_000)
	return h.adjustedCollateral.Cmp(scaledBorrow) < 0
}

// borrowAllowed gates a new borrow of the given USD value against the
// max-LTV limit: (borrowValue + addition) must stay within borrowLimit.
func (h *accountHealth) borrowAllowed(addition *uint256.Int) bool {
	if h == nil {
		return false
	}
	projected := new(uint256.Int).Add(h.borrowValue, addition)
	return mulBpsWide(projected, 10_000).Cmp(h.borrowLimit) <= 0
}

// withdrawAllowed gates removing collateral valued at the given USD value
// weighted by the bank's liquidation threshold. With no outstanding
// borrows every withdrawal passes.
func (h *accountHealth) withdrawAllowed(removedAdjusted *uint256.Int) bool {
	if h == nil {
		return false
	}
	if h.borrowValue.IsZero() {
		return true
	}
	if h.adjustedCollateral.Cmp(removedAdjusted) < 0 {
		return false
	}
	remaining := new(uint256.Int).Sub(h.adjustedCollateral, removedAdjusted)
	return remaining.Cmp(mulBpsWide(h.borrowValue, 10_000)) >= 0
}

// HealthFactor renders the ratio for display. Positions with no borrows
// report +Inf. Display only; accounting never consumes this value.
func (h *accountHealth) HealthFactor() float64 {
	if h == nil || h.borrowValue.IsZero() {
		return math.Inf(1)
	}
	adjusted := new(uint256.Int).Div(h.adjustedCollateral, uint256.NewInt(10_000))
	ratio := new(big.Rat).SetFrac(adjusted.ToBig(), h.borrowValue.ToBig())
	value, _ := ratio.Float64()
	return value
}

func mapOracleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, oracle.ErrStale):
		return ErrStalePrice
	default:
		return ErrInvalidPriceFeed
	}
}
