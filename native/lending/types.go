package lending

// Bank captures the per-asset pool state. All token quantities are in the
// asset's smallest unit; rates and risk parameters are basis points.
type Bank struct {
	// Authority is the signer identity that created the bank. Immutable.
	Authority string `json:"authority"`
	// MintAddress identifies the underlying fungible asset. At most one
	// bank exists per mint.
	MintAddress string `json:"mintAddress"`
	// Symbol is the pricing symbol used to resolve the bank's oracle feed.
	Symbol string `json:"symbol"`

	// TotalDeposited and TotalBorrowed are the absolute underlying totals
	// currently accounted for. TotalBorrowed never exceeds TotalDeposited.
	TotalDeposited uint64 `json:"totalDeposited"`
	TotalBorrowed  uint64 `json:"totalBorrowed"`
	// Share totals on each side. Zero iff the corresponding total is zero.
	TotalDepositedShares uint64 `json:"totalDepositedShares"`
	TotalBorrowedShares  uint64 `json:"totalBorrowedShares"`

	// Annualized rates in basis points, read-only during accrual.
	DepositInterestRate uint64 `json:"depositInterestRate"`
	BorrowInterestRate  uint64 `json:"borrowInterestRate"`

	// Epoch seconds of the last accrual pass, tracked per side.
	LastUpdatedDeposited int64 `json:"lastUpdatedDeposited"`
	LastUpdatedBorrowed  int64 `json:"lastUpdatedBorrowed"`
	// InterestAccrualPeriod is the compounding period in seconds.
	InterestAccrualPeriod int64 `json:"interestAccrualPeriod"`

	// Risk parameters, basis points.
	LiquidationThreshold   uint64 `json:"liquidationThreshold"`
	LiquidationBonus       uint64 `json:"liquidationBonus"`
	LiquidationCloseFactor uint64 `json:"liquidationCloseFactor"`
	MaxLTV                 uint64 `json:"maxLtv"`

	// Fee parameters, basis points.
	DepositFee    uint64 `json:"depositFee"`
	WithdrawalFee uint64 `json:"withdrawalFee"`
	// MinDeposit is the smallest accepted deposit in the underlying unit.
	MinDeposit uint64 `json:"minDeposit"`

	// Display metadata, no accounting role.
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Clone returns a copy safe for mutation before a whole-record write.
func (b *Bank) Clone() *Bank {
	if b == nil {
		return nil
	}
	clone := *b
	return &clone
}

// AvailableLiquidity returns the underlying amount the pool can still lend
// or pay out.
func (b *Bank) AvailableLiquidity() uint64 {
	if b == nil || b.TotalBorrowed >= b.TotalDeposited {
		return 0
	}
	return b.TotalDeposited - b.TotalBorrowed
}

// UserPosition records a participant's claim and liability against one
// bank, keyed by (owner, mint). The share balances are authoritative; the
// absolute Deposited/Borrowed fields are caches recomputed from shares at
// the bank's current exchange rate on every write.
type UserPosition struct {
	Owner       string `json:"owner"`
	MintAddress string `json:"mintAddress"`

	Deposited       uint64 `json:"deposited"`
	DepositedShares uint64 `json:"depositedShares"`
	Borrowed        uint64 `json:"borrowed"`
	BorrowedShares  uint64 `json:"borrowedShares"`

	LastUpdatedDeposited int64 `json:"lastUpdatedDeposited"`
	LastUpdatedBorrowed  int64 `json:"lastUpdatedBorrowed"`
}

// Clone returns a copy safe for mutation before a whole-record write.
func (p *UserPosition) Clone() *UserPosition {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// State is the persistence boundary the engine operates against. Lookups
// return (nil, nil) when a record does not exist; writes replace whole
// records so invariants stay atomic per record.
type State interface {
	GetBank(mint string) (*Bank, error)
	PutBank(bank *Bank) error
	ListBanks() ([]*Bank, error)
	GetPosition(owner, mint string) (*UserPosition, error)
	PutPosition(position *UserPosition) error
	ListPositions(owner string) ([]*UserPosition, error)
}
