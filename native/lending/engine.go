package lending

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"lendex/native/fixedpoint"
	"lendex/native/oracle"
)

var (
	errNilState  = errors.New("lending engine: state not configured")
	errNilOracle = errors.New("lending engine: price source not configured")
)

// PriceSource supplies validated quotes and feed registrations. The
// oracle gateway implements it; tests substitute fakes.
type PriceSource interface {
	GetPrice(symbol string, now int64) (oracle.Quote, error)
	RegisterFeed(symbol, feedID string) error
}

// Engine orchestrates the ledger operations: it accrues interest on every
// touched bank, converts amounts through the share ledger, applies the
// risk gates and commits whole-record state updates. Operations either
// fully commit or fail with one coded error; no partial mutation is
// observable through State. A single mutex serializes operations, so the
// engine is safe for concurrent callers.
type Engine struct {
	mu     sync.Mutex
	state  State
	prices PriceSource
	now    func() int64
}

// NewEngine wires the engine to its persistence and oracle collaborators.
func NewEngine(state State, prices PriceSource) *Engine {
	return &Engine{state: state, prices: prices, now: func() int64 { return time.Now().Unix() }}
}

// SetClock overrides the time source. Used by tests and by deployments
// that derive time from an external ordering service.
func (e *Engine) SetClock(now func() int64) {
	if e == nil || now == nil {
		return
	}
	e.now = now
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.prices == nil {
		return errNilOracle
	}
	return nil
}

// InitBankParams carries the creation-time configuration for a bank.
type InitBankParams struct {
	Authority   string `json:"authority"`
	MintAddress string `json:"mintAddress"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Description string `json:"description"`

	DepositInterestRate   uint64 `json:"depositInterestRate"`
	BorrowInterestRate    uint64 `json:"borrowInterestRate"`
	InterestAccrualPeriod int64  `json:"interestAccrualPeriod"`

	LiquidationThreshold   uint64 `json:"liquidationThreshold"`
	LiquidationBonus       uint64 `json:"liquidationBonus"`
	LiquidationCloseFactor uint64 `json:"liquidationCloseFactor"`
	MaxLTV                 uint64 `json:"maxLtv"`

	DepositFee    uint64 `json:"depositFee"`
	WithdrawalFee uint64 `json:"withdrawalFee"`
	MinDeposit    uint64 `json:"minDeposit"`
}

func (p InitBankParams) validate() error {
	if strings.TrimSpace(p.MintAddress) == "" {
		return fmt.Errorf("lending: mint address required")
	}
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("lending: pricing symbol required")
	}
	if p.InterestAccrualPeriod <= 0 || p.InterestAccrualPeriod > SecondsPerYear {
		return fmt.Errorf("lending: accrual period must be within (0, one year]")
	}
	if p.LiquidationThreshold == 0 || p.LiquidationThreshold > fixedpoint.BasisPoints {
		return fmt.Errorf("lending: liquidation threshold must be within (0, 10000] bps")
	}
	if p.MaxLTV == 0 || p.MaxLTV > p.LiquidationThreshold {
		return fmt.Errorf("lending: max LTV must be within (0, liquidation threshold] bps")
	}
	if p.LiquidationCloseFactor == 0 || p.LiquidationCloseFactor > fixedpoint.BasisPoints {
		return fmt.Errorf("lending: liquidation close factor must be within (0, 10000] bps")
	}
	if p.DepositFee >= fixedpoint.BasisPoints || p.WithdrawalFee >= fixedpoint.BasisPoints {
		return fmt.Errorf("lending: fees must be below 10000 bps")
	}
	return nil
}

// InitBank creates the pool record for a mint. At most one bank may exist
// per mint.
func (e *Engine) InitBank(params InitBankParams) (*Bank, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := params.validate(); err != nil {
		return nil, err
	}
	existing, err := e.state.GetBank(params.MintAddress)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateBank
	}
	now := e.now()
	bank := &Bank{
		Authority:              strings.TrimSpace(params.Authority),
		MintAddress:            strings.TrimSpace(params.MintAddress),
		Symbol:                 strings.ToUpper(strings.TrimSpace(params.Symbol)),
		Name:                   strings.TrimSpace(params.Name),
		Description:            strings.TrimSpace(params.Description),
		DepositInterestRate:    params.DepositInterestRate,
		BorrowInterestRate:     params.BorrowInterestRate,
		InterestAccrualPeriod:  params.InterestAccrualPeriod,
		LastUpdatedDeposited:   now,
		LastUpdatedBorrowed:    now,
		LiquidationThreshold:   params.LiquidationThreshold,
		LiquidationBonus:       params.LiquidationBonus,
		LiquidationCloseFactor: params.LiquidationCloseFactor,
		MaxLTV:                 params.MaxLTV,
		DepositFee:             params.DepositFee,
		WithdrawalFee:          params.WithdrawalFee,
		MinDeposit:             params.MinDeposit,
	}
	if err := e.state.PutBank(bank); err != nil {
		return nil, err
	}
	return bank.Clone(), nil
}

// InitUser creates the zero-state position for (owner, mint). Idempotent:
// an existing position is returned unchanged.
func (e *Engine) InitUser(owner, mint string) (*UserPosition, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	owner = strings.TrimSpace(owner)
	mint = strings.TrimSpace(mint)
	if owner == "" || mint == "" {
		return nil, fmt.Errorf("lending: owner and mint required")
	}
	bank, err := e.state.GetBank(mint)
	if err != nil {
		return nil, err
	}
	if bank == nil {
		return nil, ErrUnknownBank
	}
	existing, err := e.state.GetPosition(owner, mint)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing.Clone(), nil
	}
	now := e.now()
	position := &UserPosition{
		Owner:                owner,
		MintAddress:          mint,
		LastUpdatedDeposited: now,
		LastUpdatedBorrowed:  now,
	}
	if err := e.state.PutPosition(position); err != nil {
		return nil, err
	}
	return position.Clone(), nil
}

// StoreSymbolFeedID registers or replaces the oracle feed identifier for a
// symbol. Pure metadata write; no risk computation.
func (e *Engine) StoreSymbolFeedID(symbol, feedID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prices.RegisterFeed(symbol, feedID)
}

// userWorld is the gathered, accrued view of everything an operation may
// touch: the owner's positions and every relevant bank, all cloned so the
// operation can mutate freely and commit at the end.
type userWorld struct {
	positions []*UserPosition
	banks     map[string]*Bank
}

func (w *userWorld) position(owner, mint string) *UserPosition {
	for _, p := range w.positions {
		if p.Owner == owner && p.MintAddress == mint {
			return p
		}
	}
	return nil
}

// loadUserWorld clones the owner's positions plus the named banks and
// accrues every bank as of now. Prices and totals an operation reads all
// come from this snapshot, never from a second fetch of state.
func (e *Engine) loadUserWorld(owner string, now int64, extraMints ...string) (*userWorld, error) {
	positions, err := e.state.ListPositions(owner)
	if err != nil {
		return nil, err
	}
	world := &userWorld{banks: make(map[string]*Bank)}
	for _, p := range positions {
		if p == nil {
			continue
		}
		world.positions = append(world.positions, p.Clone())
	}
	wanted := make(map[string]struct{})
	for _, p := range world.positions {
		wanted[p.MintAddress] = struct{}{}
	}
	for _, mint := range extraMints {
		if mint = strings.TrimSpace(mint); mint != "" {
			wanted[mint] = struct{}{}
		}
	}
	for mint := range wanted {
		bank, err := e.state.GetBank(mint)
		if err != nil {
			return nil, err
		}
		if bank == nil {
			return nil, ErrUnknownBank
		}
		accrued := bank.Clone()
		if err := accrueBank(accrued, now); err != nil {
			return nil, err
		}
		world.banks[mint] = accrued
	}
	return world, nil
}

func (e *Engine) commitWorld(world *userWorld, positions ...*UserPosition) error {
	for _, bank := range world.banks {
		if err := e.state.PutBank(bank); err != nil {
			return err
		}
	}
	for _, position := range positions {
		if err := e.state.PutPosition(position); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) priceFn(now int64) priceFunc {
	return func(symbol string) (oracle.Quote, error) {
		return e.prices.GetPrice(symbol, now)
	}
}

func (e *Engine) ensurePosition(world *userWorld, owner, mint string, now int64) *UserPosition {
	if position := world.position(owner, mint); position != nil {
		return position
	}
	position := &UserPosition{
		Owner:                owner,
		MintAddress:          mint,
		LastUpdatedDeposited: now,
		LastUpdatedBorrowed:  now,
	}
	world.positions = append(world.positions, position)
	return position
}

// refreshDepositCache recomputes the cached absolute deposit value from
// shares at the bank's current exchange rate.
func refreshDepositCache(position *UserPosition, bank *Bank) error {
	amount, err := SharesToAmount(position.DepositedShares, bank.TotalDeposited, bank.TotalDepositedShares)
	if err != nil {
		return err
	}
	position.Deposited = amount
	return nil
}

func refreshBorrowCache(position *UserPosition, bank *Bank) error {
	amount, err := SharesToAmount(position.BorrowedShares, bank.TotalBorrowed, bank.TotalBorrowedShares)
	if err != nil {
		return err
	}
	position.Borrowed = amount
	return nil
}

// DepositResult reports the share mint and fee taken by a deposit.
type DepositResult struct {
	MintedShares uint64        `json:"mintedShares"`
	Fee          uint64        `json:"fee"`
	Bank         *Bank         `json:"bank"`
	Position     *UserPosition `json:"position"`
}

// Deposit credits the pool with amount and mints deposit shares for the
// net of the deposit fee. The fee stays in the pool unminted, accruing to
// existing shareholders.
func (e *Engine) Deposit(owner, mint string, amount uint64) (*DepositResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	owner, mint = strings.TrimSpace(owner), strings.TrimSpace(mint)
	if owner == "" || mint == "" || amount == 0 {
		return nil, ErrInvalidDepositAmount
	}
	now := e.now()
	world, err := e.loadUserWorld(owner, now, mint)
	if err != nil {
		return nil, err
	}
	bank := world.banks[mint]
	if amount < bank.MinDeposit {
		return nil, ErrInvalidDepositAmount
	}
	fee, err := fixedpoint.MulBps(amount, bank.DepositFee)
	if err != nil {
		return nil, mapOverflow(err)
	}
	net := amount - fee
	shares, err := DepositToShares(net, bank.TotalDeposited, bank.TotalDepositedShares)
	if err != nil {
		return nil, err
	}
	if shares == 0 {
		return nil, ErrInvalidDepositAmount
	}
	if bank.TotalDeposited, err = fixedpoint.Add(bank.TotalDeposited, amount); err != nil {
		return nil, mapOverflow(err)
	}
	if bank.TotalDepositedShares, err = fixedpoint.Add(bank.TotalDepositedShares, shares); err != nil {
		return nil, mapOverflow(err)
	}
	position := e.ensurePosition(world, owner, mint, now)
	if position.DepositedShares, err = fixedpoint.Add(position.DepositedShares, shares); err != nil {
		return nil, mapOverflow(err)
	}
	if err := refreshDepositCache(position, bank); err != nil {
		return nil, err
	}
	position.LastUpdatedDeposited = now
	if err := e.commitWorld(world, position); err != nil {
		return nil, err
	}
	return &DepositResult{MintedShares: shares, Fee: fee, Bank: bank.Clone(), Position: position.Clone()}, nil
}

// WithdrawResult reports the share burn, payout and fee of a withdrawal.
type WithdrawResult struct {
	BurnedShares uint64        `json:"burnedShares"`
	Payout       uint64        `json:"payout"`
	Fee          uint64        `json:"fee"`
	Bank         *Bank         `json:"bank"`
	Position     *UserPosition `json:"position"`
}

// Withdraw redeems deposit shares for amount, gated so the remaining
// collateral keeps every outstanding borrow above the liquidation
// threshold. The withdrawal fee is deducted from the payout and retained
// by the pool.
func (e *Engine) Withdraw(owner, mint string, amount uint64) (*WithdrawResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	owner, mint = strings.TrimSpace(owner), strings.TrimSpace(mint)
	if owner == "" || mint == "" || amount == 0 {
		return nil, ErrInvalidWithdrawAmount
	}
	now := e.now()
	world, err := e.loadUserWorld(owner, now, mint)
	if err != nil {
		return nil, err
	}
	bank := world.banks[mint]
	position := world.position(owner, mint)
	if position == nil || position.DepositedShares == 0 {
		return nil, ErrOverWithdrawRequest
	}
	shares, err := AmountToShares(amount, bank.TotalDeposited, bank.TotalDepositedShares)
	if err != nil {
		return nil, err
	}
	if shares == 0 {
		return nil, ErrInvalidWithdrawAmount
	}
	if shares > position.DepositedShares {
		return nil, ErrOverWithdrawRequest
	}
	if amount > bank.AvailableLiquidity() {
		return nil, ErrInsufficientLiquidity
	}
	if hasBorrows(world.positions) {
		health, err := buildAccountHealth(world.positions, world.banks, e.priceFn(now))
		if err != nil {
			return nil, err
		}
		quote, err := e.prices.GetPrice(bank.Symbol, now)
		if err != nil {
			return nil, mapOracleError(err)
		}
		removedValue, err := usdValue(amount, quote)
		if err != nil {
			return nil, err
		}
		if !health.withdrawAllowed(mulBpsWide(removedValue, bank.LiquidationThreshold)) {
			return nil, ErrWithdrawExceedsCollateral
		}
	}
	fee, err := fixedpoint.MulBps(amount, bank.WithdrawalFee)
	if err != nil {
		return nil, mapOverflow(err)
	}
	payout := amount - fee
	if bank.TotalDeposited, err = fixedpoint.Sub(bank.TotalDeposited, payout); err != nil {
		return nil, mapOverflow(err)
	}
	if bank.TotalDepositedShares, err = fixedpoint.Sub(bank.TotalDepositedShares, shares); err != nil {
		return nil, mapOverflow(err)
	}
	// The last redeemer may leave retained fee dust behind with no shares
	// outstanding; sweep it so shares==0 implies total==0.
	if bank.TotalDepositedShares == 0 {
		bank.TotalDeposited = 0
	}
	if position.DepositedShares, err = fixedpoint.Sub(position.DepositedShares, shares); err != nil {
		return nil, mapOverflow(err)
	}
	if err := refreshDepositCache(position, bank); err != nil {
		return nil, err
	}
	position.LastUpdatedDeposited = now
	if err := e.commitWorld(world, position); err != nil {
		return nil, err
	}
	return &WithdrawResult{BurnedShares: shares, Payout: payout, Fee: fee, Bank: bank.Clone(), Position: position.Clone()}, nil
}

func hasBorrows(positions []*UserPosition) bool {
	for _, p := range positions {
		if p != nil && p.BorrowedShares > 0 {
			return true
		}
	}
	return false
}

// BorrowResult reports the borrow-share mint of a borrow.
type BorrowResult struct {
	MintedShares uint64        `json:"mintedShares"`
	Bank         *Bank         `json:"bank"`
	Position     *UserPosition `json:"position"`
}

// Borrow draws amount from the borrow bank against the owner's collateral
// across all banks, gated by available liquidity and the max-LTV limit at
// current oracle prices. Both named banks are accrued and validated in the
// same atomic unit.
func (e *Engine) Borrow(owner, mintBorrow, mintCollateral string, amount uint64) (*BorrowResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	owner, mintBorrow, mintCollateral = strings.TrimSpace(owner), strings.TrimSpace(mintBorrow), strings.TrimSpace(mintCollateral)
	if owner == "" || mintBorrow == "" || mintCollateral == "" || amount == 0 {
		return nil, ErrOverBorrowRequest
	}
	now := e.now()
	world, err := e.loadUserWorld(owner, now, mintBorrow, mintCollateral)
	if err != nil {
		return nil, err
	}
	bank := world.banks[mintBorrow]
	if amount > bank.AvailableLiquidity() {
		return nil, ErrOverBorrowableAmount
	}
	health, err := buildAccountHealth(world.positions, world.banks, e.priceFn(now))
	if err != nil {
		return nil, err
	}
	quote, err := e.prices.GetPrice(bank.Symbol, now)
	if err != nil {
		return nil, mapOracleError(err)
	}
	addition, err := usdValue(amount, quote)
	if err != nil {
		return nil, err
	}
	if !health.borrowAllowed(addition) {
		return nil, ErrBorrowAmountTooLarge
	}
	shares, err := DepositToShares(amount, bank.TotalBorrowed, bank.TotalBorrowedShares)
	if err != nil {
		return nil, err
	}
	if shares == 0 {
		// Floor against the borrower: dust borrows still owe a share.
		shares = 1
	}
	if bank.TotalBorrowed, err = fixedpoint.Add(bank.TotalBorrowed, amount); err != nil {
		return nil, mapOverflow(err)
	}
	if bank.TotalBorrowedShares, err = fixedpoint.Add(bank.TotalBorrowedShares, shares); err != nil {
		return nil, mapOverflow(err)
	}
	position := e.ensurePosition(world, owner, mintBorrow, now)
	if position.BorrowedShares, err = fixedpoint.Add(position.BorrowedShares, shares); err != nil {
		return nil, mapOverflow(err)
	}
	if err := refreshBorrowCache(position, bank); err != nil {
		return nil, err
	}
	position.LastUpdatedBorrowed = now
	if err := e.commitWorld(world, position); err != nil {
		return nil, err
	}
	return &BorrowResult{MintedShares: shares, Bank: bank.Clone(), Position: position.Clone()}, nil
}

// RepayResult reports the repaid amount after capping at outstanding debt.
type RepayResult struct {
	Repaid       uint64        `json:"repaid"`
	BurnedShares uint64        `json:"burnedShares"`
	Bank         *Bank         `json:"bank"`
	Position     *UserPosition `json:"position"`
}

// Repay retires up to amount of the owner's debt on the borrow bank,
// capped at the outstanding balance. Repaying with no outstanding debt
// fails with OverRepayRequest.
func (e *Engine) Repay(owner, mintBorrow, mintCollateral string, amount uint64) (*RepayResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	owner, mintBorrow, mintCollateral = strings.TrimSpace(owner), strings.TrimSpace(mintBorrow), strings.TrimSpace(mintCollateral)
	if owner == "" || mintBorrow == "" || mintCollateral == "" || amount == 0 {
		return nil, ErrOverRepayRequest
	}
	now := e.now()
	world, err := e.loadUserWorld(owner, now, mintBorrow, mintCollateral)
	if err != nil {
		return nil, err
	}
	bank := world.banks[mintBorrow]
	position := world.position(owner, mintBorrow)
	if position == nil || position.BorrowedShares == 0 {
		return nil, ErrOverRepayRequest
	}
	owed, err := SharesToAmount(position.BorrowedShares, bank.TotalBorrowed, bank.TotalBorrowedShares)
	if err != nil {
		return nil, err
	}
	if owed == 0 {
		return nil, ErrOverRepayRequest
	}
	repaid := amount
	if repaid > owed {
		repaid = owed
	}
	var shares uint64
	if repaid == owed {
		shares = position.BorrowedShares
	} else {
		if shares, err = AmountToShares(repaid, bank.TotalBorrowed, bank.TotalBorrowedShares); err != nil {
			return nil, err
		}
		if shares > position.BorrowedShares {
			shares = position.BorrowedShares
		}
	}
	if bank.TotalBorrowed, err = fixedpoint.Sub(bank.TotalBorrowed, repaid); err != nil {
		return nil, mapOverflow(err)
	}
	if bank.TotalBorrowedShares, err = fixedpoint.Sub(bank.TotalBorrowedShares, shares); err != nil {
		return nil, mapOverflow(err)
	}
	if bank.TotalBorrowedShares == 0 {
		bank.TotalBorrowed = 0
	}
	if position.BorrowedShares, err = fixedpoint.Sub(position.BorrowedShares, shares); err != nil {
		return nil, mapOverflow(err)
	}
	if err := refreshBorrowCache(position, bank); err != nil {
		return nil, err
	}
	position.LastUpdatedBorrowed = now
	if err := e.commitWorld(world, position); err != nil {
		return nil, err
	}
	return &RepayResult{Repaid: repaid, BurnedShares: shares, Bank: bank.Clone(), Position: position.Clone()}, nil
}

// LiquidationResult reports the repaid debt and seized collateral of a
// liquidation.
type LiquidationResult struct {
	Repaid           uint64  `json:"repaid"`
	RepaidShares     uint64  `json:"repaidShares"`
	SeizedCollateral uint64  `json:"seizedCollateral"`
	SeizedShares     uint64  `json:"seizedShares"`
	HealthFactor     float64 `json:"healthFactor"`
}

// Liquidate lets a third party repay part of an unhealthy borrower's debt
// in exchange for collateral worth the repaid value plus the liquidation
// bonus, both valued at current oracle prices. The repayment is capped at
// the close factor share of the outstanding debt; repayAmount zero
// requests the maximum. Healthy positions reject with HealthyAccount.
func (e *Engine) Liquidate(liquidator, borrower, mintBorrow, mintCollateral string, repayAmount uint64) (*LiquidationResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	liquidator, borrower = strings.TrimSpace(liquidator), strings.TrimSpace(borrower)
	mintBorrow, mintCollateral = strings.TrimSpace(mintBorrow), strings.TrimSpace(mintCollateral)
	if liquidator == "" || borrower == "" || liquidator == borrower || mintBorrow == "" || mintCollateral == "" {
		return nil, fmt.Errorf("lending: liquidator must differ from borrower")
	}
	now := e.now()
	world, err := e.loadUserWorld(borrower, now, mintBorrow, mintCollateral)
	if err != nil {
		return nil, err
	}
	borrowBank := world.banks[mintBorrow]
	collateralBank := world.banks[mintCollateral]
	borrowPos := world.position(borrower, mintBorrow)
	collateralPos := world.position(borrower, mintCollateral)
	if borrowPos == nil || borrowPos.BorrowedShares == 0 || collateralPos == nil || collateralPos.DepositedShares == 0 {
		return nil, ErrHealthyAccount
	}
	health, err := buildAccountHealth(world.positions, world.banks, e.priceFn(now))
	if err != nil {
		return nil, err
	}
	if !health.liquidatable() {
		return nil, ErrHealthyAccount
	}
	owed, err := SharesToAmount(borrowPos.BorrowedShares, borrowBank.TotalBorrowed, borrowBank.TotalBorrowedShares)
	if err != nil {
		return nil, err
	}
	maxRepay, err := fixedpoint.MulBps(owed, borrowBank.LiquidationCloseFactor)
	if err != nil {
		return nil, mapOverflow(err)
	}
	if maxRepay == 0 {
		maxRepay = owed
	}
	repaid := repayAmount
	if repaid == 0 || repaid > maxRepay {
		repaid = maxRepay
	}
	borrowQuote, err := e.prices.GetPrice(borrowBank.Symbol, now)
	if err != nil {
		return nil, mapOracleError(err)
	}
	collateralQuote, err := e.prices.GetPrice(collateralBank.Symbol, now)
	if err != nil {
		return nil, mapOracleError(err)
	}
	repaidValue, err := usdValue(repaid, borrowQuote)
	if err != nil {
		return nil, err
	}
	seizeValue := mulBpsWide(repaidValue, fixedpoint.BasisPoints+borrowBank.LiquidationBonus)
	seizeValue.Div(seizeValue, uint256.NewInt(fixedpoint.BasisPoints))
	seized, err := usdToAmount(seizeValue, collateralQuote)
	if err != nil {
		return nil, err
	}
	collateralAmount, err := SharesToAmount(collateralPos.DepositedShares, collateralBank.TotalDeposited, collateralBank.TotalDepositedShares)
	if err != nil {
		return nil, err
	}
	if seized > collateralAmount {
		seized = collateralAmount
	}
	if seized > collateralBank.AvailableLiquidity() {
		return nil, ErrInsufficientLiquidity
	}
	var seizedShares uint64
	if seized == collateralAmount {
		seizedShares = collateralPos.DepositedShares
	} else {
		if seizedShares, err = AmountToShares(seized, collateralBank.TotalDeposited, collateralBank.TotalDepositedShares); err != nil {
			return nil, err
		}
		if seizedShares > collateralPos.DepositedShares {
			seizedShares = collateralPos.DepositedShares
		}
	}
	var repaidShares uint64
	if repaid == owed {
		repaidShares = borrowPos.BorrowedShares
	} else {
		if repaidShares, err = AmountToShares(repaid, borrowBank.TotalBorrowed, borrowBank.TotalBorrowedShares); err != nil {
			return nil, err
		}
		if repaidShares > borrowPos.BorrowedShares {
			repaidShares = borrowPos.BorrowedShares
		}
	}

	if borrowBank.TotalBorrowed, err = fixedpoint.Sub(borrowBank.TotalBorrowed, repaid); err != nil {
		return nil, mapOverflow(err)
	}
	if borrowBank.TotalBorrowedShares, err = fixedpoint.Sub(borrowBank.TotalBorrowedShares, repaidShares); err != nil {
		return nil, mapOverflow(err)
	}
	if borrowBank.TotalBorrowedShares == 0 {
		borrowBank.TotalBorrowed = 0
	}
	if collateralBank.TotalDeposited, err = fixedpoint.Sub(collateralBank.TotalDeposited, seized); err != nil {
		return nil, mapOverflow(err)
	}
	if collateralBank.TotalDepositedShares, err = fixedpoint.Sub(collateralBank.TotalDepositedShares, seizedShares); err != nil {
		return nil, mapOverflow(err)
	}
	if collateralBank.TotalDepositedShares == 0 {
		collateralBank.TotalDeposited = 0
	}
	if borrowPos.BorrowedShares, err = fixedpoint.Sub(borrowPos.BorrowedShares, repaidShares); err != nil {
		return nil, mapOverflow(err)
	}
	if collateralPos.DepositedShares, err = fixedpoint.Sub(collateralPos.DepositedShares, seizedShares); err != nil {
		return nil, mapOverflow(err)
	}
	if err := refreshBorrowCache(borrowPos, borrowBank); err != nil {
		return nil, err
	}
	if err := refreshDepositCache(collateralPos, collateralBank); err != nil {
		return nil, err
	}
	borrowPos.LastUpdatedBorrowed = now
	collateralPos.LastUpdatedDeposited = now
	if err := e.commitWorld(world, borrowPos, collateralPos); err != nil {
		return nil, err
	}
	return &LiquidationResult{
		Repaid:           repaid,
		RepaidShares:     repaidShares,
		SeizedCollateral: seized,
		SeizedShares:     seizedShares,
		HealthFactor:     health.HealthFactor(),
	}, nil
}

// PortfolioHealth is the display snapshot of a user's aggregate risk.
type PortfolioHealth struct {
	CollateralValueUsd string  `json:"collateralValueUsd"`
	BorrowValueUsd     string  `json:"borrowValueUsd"`
	HealthFactor       float64 `json:"healthFactor"`
}

// Health values the owner's portfolio at current oracle prices. The USD
// strings are 1e-18-scaled integers; the health factor is display-only.
func (e *Engine) Health(owner string) (*PortfolioHealth, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	world, err := e.loadUserWorld(owner, now)
	if err != nil {
		return nil, err
	}
	health, err := buildAccountHealth(world.positions, world.banks, e.priceFn(now))
	if err != nil {
		return nil, err
	}
	return &PortfolioHealth{
		CollateralValueUsd: health.collateralValue.Dec(),
		BorrowValueUsd:     health.borrowValue.Dec(),
		HealthFactor:       health.HealthFactor(),
	}, nil
}

// Accrue brings a bank current without any other mutation. Exposed for
// keepers and tests; every ledger operation performs the same accrual
// implicitly.
func (e *Engine) Accrue(mint string) (*Bank, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	bank, err := e.state.GetBank(mint)
	if err != nil {
		return nil, err
	}
	if bank == nil {
		return nil, ErrUnknownBank
	}
	accrued := bank.Clone()
	if err := accrueBank(accrued, e.now()); err != nil {
		return nil, err
	}
	if err := e.state.PutBank(accrued); err != nil {
		return nil, err
	}
	return accrued.Clone(), nil
}

// Bank returns the stored bank for a mint.
func (e *Engine) Bank(mint string) (*Bank, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	bank, err := e.state.GetBank(mint)
	if err != nil {
		return nil, err
	}
	if bank == nil {
		return nil, ErrUnknownBank
	}
	return bank.Clone(), nil
}

// Banks lists every configured bank.
func (e *Engine) Banks() ([]*Bank, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ListBanks()
}

// Positions lists the owner's positions.
func (e *Engine) Positions(owner string) ([]*UserPosition, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ListPositions(owner)
}
