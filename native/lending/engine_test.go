package lending

import (
	"errors"
	"math"
	"testing"

	"lendex/native/oracle"
)

type mockState struct {
	banks     map[string]*Bank
	positions map[string]*UserPosition
}

func newMockState() *mockState {
	return &mockState{banks: make(map[string]*Bank), positions: make(map[string]*UserPosition)}
}

func (m *mockState) GetBank(mint string) (*Bank, error) {
	bank, ok := m.banks[mint]
	if !ok {
		return nil, nil
	}
	return bank.Clone(), nil
}

func (m *mockState) PutBank(bank *Bank) error {
	m.banks[bank.MintAddress] = bank.Clone()
	return nil
}

func (m *mockState) ListBanks() ([]*Bank, error) {
	out := make([]*Bank, 0, len(m.banks))
	for _, bank := range m.banks {
		out = append(out, bank.Clone())
	}
	return out, nil
}

func positionKey(owner, mint string) string { return owner + "|" + mint }

func (m *mockState) GetPosition(owner, mint string) (*UserPosition, error) {
	position, ok := m.positions[positionKey(owner, mint)]
	if !ok {
		return nil, nil
	}
	return position.Clone(), nil
}

func (m *mockState) PutPosition(position *UserPosition) error {
	m.positions[positionKey(position.Owner, position.MintAddress)] = position.Clone()
	return nil
}

func (m *mockState) ListPositions(owner string) ([]*UserPosition, error) {
	var out []*UserPosition
	for _, position := range m.positions {
		if position.Owner == owner {
			out = append(out, position.Clone())
		}
	}
	return out, nil
}

type fixture struct {
	engine *Engine
	state  *mockState
	source *oracle.StaticSource
	now    int64
}

func (f *fixture) advance(seconds int64) { f.now += seconds }

func (f *fixture) setPrice(symbol string, price int64) {
	f.source.SetPrice(oracle.Quote{Symbol: symbol, Price: price, Exponent: 0, PublishTime: f.now})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{state: newMockState(), source: oracle.NewStaticSource(), now: 1_700_000_000}
	gateway, err := oracle.NewGateway(f.source, oracle.NewMemoryRegistry(), 0)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	f.engine = NewEngine(f.state, gateway)
	f.engine.SetClock(func() int64 { return f.now })
	return f
}

func (f *fixture) mustInitBank(t *testing.T, params InitBankParams) *Bank {
	t.Helper()
	bank, err := f.engine.InitBank(params)
	if err != nil {
		t.Fatalf("init bank %s: %v", params.MintAddress, err)
	}
	if err := f.engine.StoreSymbolFeedID(params.Symbol, "feed-"+params.Symbol); err != nil {
		t.Fatalf("register feed %s: %v", params.Symbol, err)
	}
	return bank
}

func baseBank(mint, symbol string) InitBankParams {
	return InitBankParams{
		Authority:              "authority",
		MintAddress:            mint,
		Symbol:                 symbol,
		DepositInterestRate:    500,
		BorrowInterestRate:     1000,
		InterestAccrualPeriod:  86_400,
		LiquidationThreshold:   8_000,
		LiquidationBonus:       1_000,
		LiquidationCloseFactor: 5_000,
		MaxLTV:                 7_500,
	}
}

// newMarket sets up a USDC bank at $1 and a SOL bank at $100, with a lender
// providing 10,000 USDC of liquidity.
func newMarket(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.mustInitBank(t, baseBank("usdc-mint", "USDC"))
	f.mustInitBank(t, baseBank("sol-mint", "SOL"))
	f.setPrice("USDC", 1)
	f.setPrice("SOL", 100)
	if _, err := f.engine.Deposit("lender", "usdc-mint", 10_000); err != nil {
		t.Fatalf("seed usdc liquidity: %v", err)
	}
	return f
}

func TestInitBankValidation(t *testing.T) {
	f := newFixture(t)
	f.mustInitBank(t, baseBank("usdc-mint", "USDC"))
	if _, err := f.engine.InitBank(baseBank("usdc-mint", "USDC")); !errors.Is(err, ErrDuplicateBank) {
		t.Fatalf("duplicate bank: got %v", err)
	}
	bad := baseBank("other-mint", "OTHER")
	bad.MaxLTV = 9_000 // above liquidation threshold
	if _, err := f.engine.InitBank(bad); err == nil {
		t.Fatal("expected max LTV validation error")
	}
	bad = baseBank("other-mint", "OTHER")
	bad.InterestAccrualPeriod = 0
	if _, err := f.engine.InitBank(bad); err == nil {
		t.Fatal("expected accrual period validation error")
	}
}

func TestInitUserIdempotent(t *testing.T) {
	f := newFixture(t)
	f.mustInitBank(t, baseBank("usdc-mint", "USDC"))
	first, err := f.engine.InitUser("alice", "usdc-mint")
	if err != nil {
		t.Fatalf("init user: %v", err)
	}
	f.advance(3_600)
	second, err := f.engine.InitUser("alice", "usdc-mint")
	if err != nil {
		t.Fatalf("init user again: %v", err)
	}
	if second.LastUpdatedDeposited != first.LastUpdatedDeposited {
		t.Fatalf("second init mutated position: %+v vs %+v", second, first)
	}
	if _, err := f.engine.InitUser("alice", "missing-mint"); !errors.Is(err, ErrUnknownBank) {
		t.Fatalf("unknown mint: got %v", err)
	}
}

func TestDepositMintsSharesOneToOne(t *testing.T) {
	f := newFixture(t)
	f.mustInitBank(t, baseBank("usdc-mint", "USDC"))
	res, err := f.engine.Deposit("alice", "usdc-mint", 1_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.MintedShares != 1_000 || res.Fee != 0 {
		t.Fatalf("bootstrap mint: got shares=%d fee=%d", res.MintedShares, res.Fee)
	}
	if res.Bank.TotalDeposited != 1_000 || res.Bank.TotalDepositedShares != 1_000 {
		t.Fatalf("bank totals: %+v", res.Bank)
	}
	if res.Position.Deposited != 1_000 || res.Position.DepositedShares != 1_000 {
		t.Fatalf("position: %+v", res.Position)
	}
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t)
	params := baseBank("usdc-mint", "USDC")
	params.MinDeposit = 100
	f.mustInitBank(t, params)
	if _, err := f.engine.Deposit("alice", "usdc-mint", 0); !errors.Is(err, ErrInvalidDepositAmount) {
		t.Fatalf("zero deposit: got %v", err)
	}
	if _, err := f.engine.Deposit("alice", "usdc-mint", 99); !errors.Is(err, ErrInvalidDepositAmount) {
		t.Fatalf("below minimum: got %v", err)
	}
	if _, err := f.engine.Deposit("alice", "missing-mint", 100); !errors.Is(err, ErrUnknownBank) {
		t.Fatalf("unknown mint: got %v", err)
	}
}

func TestDepositFeeAccruesToPool(t *testing.T) {
	f := newFixture(t)
	params := baseBank("fee-mint", "FEE")
	params.DepositFee = 100 // 1%
	f.mustInitBank(t, params)
	f.setPrice("FEE", 1)

	res, err := f.engine.Deposit("alice", "fee-mint", 100)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Fee != 1 || res.MintedShares != 99 {
		t.Fatalf("fee mint: got shares=%d fee=%d", res.MintedShares, res.Fee)
	}
	// Gross amount enters the pool, only the net mints shares, so the fee
	// raises the exchange rate for the existing holder.
	if res.Bank.TotalDeposited != 100 || res.Bank.TotalDepositedShares != 99 {
		t.Fatalf("bank totals: %+v", res.Bank)
	}
	res2, err := f.engine.Deposit("bob", "fee-mint", 1_000)
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	// net 990 at rate 100/99 mints floor(990*99/100) = 980 shares.
	if res2.Fee != 10 || res2.MintedShares != 980 {
		t.Fatalf("second mint: got shares=%d fee=%d", res2.MintedShares, res2.Fee)
	}
	if res2.Bank.TotalDeposited != 1_100 || res2.Bank.TotalDepositedShares != 1_079 {
		t.Fatalf("bank totals after second deposit: %+v", res2.Bank)
	}
}

func TestWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.mustInitBank(t, baseBank("usdc-mint", "USDC"))
	if _, err := f.engine.Deposit("alice", "usdc-mint", 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	res, err := f.engine.Withdraw("alice", "usdc-mint", 400)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Payout != 400 || res.BurnedShares != 400 || res.Fee != 0 {
		t.Fatalf("partial withdraw: %+v", res)
	}
	res, err = f.engine.Withdraw("alice", "usdc-mint", 600)
	if err != nil {
		t.Fatalf("full withdraw: %v", err)
	}
	if res.Bank.TotalDeposited != 0 || res.Bank.TotalDepositedShares != 0 {
		t.Fatalf("bank not emptied: %+v", res.Bank)
	}
	if res.Position.DepositedShares != 0 || res.Position.Deposited != 0 {
		t.Fatalf("position not emptied: %+v", res.Position)
	}
}

func TestWithdrawFeeRetainedAndSwept(t *testing.T) {
	f := newFixture(t)
	params := baseBank("wfee-mint", "WFEE")
	params.WithdrawalFee = 100 // 1%
	f.mustInitBank(t, params)
	f.setPrice("WFEE", 1)

	if _, err := f.engine.Deposit("alice", "wfee-mint", 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	res, err := f.engine.Withdraw("alice", "wfee-mint", 100)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// Shares burn for the gross amount, the pool only pays out the net.
	if res.BurnedShares != 100 || res.Fee != 1 || res.Payout != 99 {
		t.Fatalf("fee withdraw: %+v", res)
	}
	if res.Bank.TotalDeposited != 901 || res.Bank.TotalDepositedShares != 900 {
		t.Fatalf("bank totals: %+v", res.Bank)
	}
	// Last redeemer drains the pool; residual fee dust sweeps to zero so
	// zero shares always means a zero total.
	res, err = f.engine.Withdraw("alice", "wfee-mint", 901)
	if err != nil {
		t.Fatalf("final withdraw: %v", err)
	}
	if res.BurnedShares != 900 || res.Payout != 892 {
		t.Fatalf("final withdraw: %+v", res)
	}
	if res.Bank.TotalDeposited != 0 || res.Bank.TotalDepositedShares != 0 {
		t.Fatalf("sweep failed: %+v", res.Bank)
	}
}

func TestWithdrawOverRequest(t *testing.T) {
	f := newFixture(t)
	f.mustInitBank(t, baseBank("usdc-mint", "USDC"))
	if _, err := f.engine.Withdraw("alice", "usdc-mint", 100); !errors.Is(err, ErrOverWithdrawRequest) {
		t.Fatalf("no position: got %v", err)
	}
	if _, err := f.engine.Deposit("alice", "usdc-mint", 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.engine.Withdraw("alice", "usdc-mint", 501); !errors.Is(err, ErrOverWithdrawRequest) {
		t.Fatalf("over withdraw: got %v", err)
	}
	if _, err := f.engine.Withdraw("alice", "usdc-mint", 0); !errors.Is(err, ErrInvalidWithdrawAmount) {
		t.Fatalf("zero withdraw: got %v", err)
	}
}

func TestWithdrawBlockedByOutstandingBorrow(t *testing.T) {
	f := newMarket(t)
	if _, err := f.engine.Deposit("alice", "sol-mint", 10); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if _, err := f.engine.Borrow("alice", "usdc-mint", "sol-mint", 700); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// Collateral $1000 at threshold 80% covers $800. Removing 2 SOL drops
	// coverage to $640, below the $700 debt.
	if _, err := f.engine.Withdraw("alice", "sol-mint", 2); !errors.Is(err, ErrWithdrawExceedsCollateral) {
		t.Fatalf("unsafe withdraw: got %v", err)
	}
	if _, err := f.engine.Withdraw("alice", "sol-mint", 1); err != nil {
		t.Fatalf("safe withdraw: %v", err)
	}
}

func TestWithdrawInsufficientLiquidity(t *testing.T) {
	f := newMarket(t)
	if _, err := f.engine.Deposit("alice", "sol-mint", 200); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if _, err := f.engine.Borrow("alice", "usdc-mint", "sol-mint", 9_500); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// The lender's 10,000 USDC claim is intact but only 500 remain lendable.
	if _, err := f.engine.Withdraw("lender", "usdc-mint", 1_000); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("illiquid withdraw: got %v", err)
	}
	if _, err := f.engine.Withdraw("lender", "usdc-mint", 500); err != nil {
		t.Fatalf("liquid withdraw: %v", err)
	}
}

func TestBorrowGateAtMaxLTV(t *testing.T) {
	f := newMarket(t)
	if _, err := f.engine.Deposit("alice", "sol-mint", 10); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	// $1000 collateral at 75% max LTV allows exactly $750.
	if _, err := f.engine.Borrow("alice", "usdc-mint", "sol-mint", 751); !errors.Is(err, ErrBorrowAmountTooLarge) {
		t.Fatalf("over-limit borrow: got %v", err)
	}
	res, err := f.engine.Borrow("alice", "usdc-mint", "sol-mint", 750)
	if err != nil {
		t.Fatalf("at-limit borrow: %v", err)
	}
	if res.MintedShares != 750 || res.Position.Borrowed != 750 {
		t.Fatalf("borrow result: %+v", res)
	}
	if res.Bank.TotalBorrowed > res.Bank.TotalDeposited {
		t.Fatalf("solvency violated: %+v", res.Bank)
	}
	// The limit is exhausted; even one more unit fails.
	if _, err := f.engine.Borrow("alice", "usdc-mint", "sol-mint", 1); !errors.Is(err, ErrBorrowAmountTooLarge) {
		t.Fatalf("post-limit borrow: got %v", err)
	}
}

func TestBorrowOverBorrowableAmount(t *testing.T) {
	f := newMarket(t)
	if _, err := f.engine.Deposit("whale", "sol-mint", 10_000); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	// Collateral supports far more than the pool holds.
	if _, err := f.engine.Borrow("whale", "usdc-mint", "sol-mint", 10_001); !errors.Is(err, ErrOverBorrowableAmount) {
		t.Fatalf("over liquidity: got %v", err)
	}
}

func TestRepayCapsAtOutstandingDebt(t *testing.T) {
	f := newMarket(t)
	if _, err := f.engine.Deposit("alice", "sol-mint", 10); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if _, err := f.engine.Borrow("alice", "usdc-mint", "sol-mint", 500); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	res, err := f.engine.Repay("alice", "usdc-mint", "sol-mint", 10_000)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if res.Repaid != 500 || res.Position.BorrowedShares != 0 {
		t.Fatalf("capped repay: %+v", res)
	}
	if res.Bank.TotalBorrowed != 0 || res.Bank.TotalBorrowedShares != 0 {
		t.Fatalf("bank debt not cleared: %+v", res.Bank)
	}
	if _, err := f.engine.Repay("alice", "usdc-mint", "sol-mint", 1); !errors.Is(err, ErrOverRepayRequest) {
		t.Fatalf("repay with no debt: got %v", err)
	}
}

func TestAccrualCompoundsPerPeriod(t *testing.T) {
	f := newFixture(t)
	params := baseBank("usdc-mint", "USDC")
	params.BorrowInterestRate = 3_650 // one basis point of RateScale per day
	params.DepositInterestRate = 0
	f.mustInitBank(t, params)
	f.setPrice("USDC", 1)
	if _, err := f.engine.Deposit("lender", "usdc-mint", 2_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.engine.Deposit("alice", "sol-mint-unused", 1); !errors.Is(err, ErrUnknownBank) {
		t.Fatalf("sanity: %v", err)
	}
	if _, err := f.engine.Borrow("lender", "usdc-mint", "usdc-mint", 1_000_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	start := f.now

	// A partial period accrues nothing.
	f.advance(86_399)
	bank, err := f.engine.Accrue("usdc-mint")
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if bank.TotalBorrowed != 1_000_000 || bank.LastUpdatedBorrowed != start {
		t.Fatalf("partial period accrued: %+v", bank)
	}

	// One whole period: 3650 bps / 365 periods = 0.1% on the borrow side.
	f.advance(1)
	bank, err = f.engine.Accrue("usdc-mint")
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if bank.TotalBorrowed != 1_001_000 {
		t.Fatalf("borrow side: got %d want 1001000", bank.TotalBorrowed)
	}
	if bank.LastUpdatedBorrowed != start+86_400 {
		t.Fatalf("last updated drifted: got %d want %d", bank.LastUpdatedBorrowed, start+86_400)
	}
	if bank.TotalDeposited != 2_000_000 {
		t.Fatalf("deposit side moved at zero rate: %+v", bank)
	}

	// Re-accruing at the same instant is a no-op.
	again, err := f.engine.Accrue("usdc-mint")
	if err != nil {
		t.Fatalf("accrue again: %v", err)
	}
	if again.TotalBorrowed != bank.TotalBorrowed || again.LastUpdatedBorrowed != bank.LastUpdatedBorrowed {
		t.Fatalf("accrual not idempotent: %+v vs %+v", again, bank)
	}
}

func TestAccrualRaisesDebtWithoutNewShares(t *testing.T) {
	f := newMarket(t)
	if _, err := f.engine.Deposit("alice", "sol-mint", 70); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if _, err := f.engine.Borrow("alice", "usdc-mint", "sol-mint", 5_000); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	f.advance(30 * 86_400)
	res, err := f.engine.Repay("alice", "usdc-mint", "sol-mint", 1_000_000)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	// 10% annual compounded daily over 30 days grows the debt; the share
	// count is untouched until the repay burns it.
	if res.Repaid <= 5_000 {
		t.Fatalf("no interest accrued: repaid %d", res.Repaid)
	}
	if res.Position.BorrowedShares != 0 {
		t.Fatalf("debt not cleared: %+v", res.Position)
	}
}

func TestLiquidateUnhealthyPosition(t *testing.T) {
	f := newMarket(t)
	if _, err := f.engine.Deposit("alice", "sol-mint", 10); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	if _, err := f.engine.Borrow("alice", "usdc-mint", "sol-mint", 750); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := f.engine.Liquidate("liquidator", "alice", "usdc-mint", "sol-mint", 0); !errors.Is(err, ErrHealthyAccount) {
		t.Fatalf("healthy liquidation: got %v", err)
	}

	// SOL drops to $90: coverage $900*0.8=$720 against $750 debt.
	f.setPrice("SOL", 90)
	res, err := f.engine.Liquidate("liquidator", "alice", "usdc-mint", "sol-mint", 0)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	// Close factor 50% caps the repay at 375 USDC; the 10% bonus makes the
	// seizure worth $412.50, which floors to 4 SOL at $90.
	if res.Repaid != 375 {
		t.Fatalf("repaid: got %d want 375", res.Repaid)
	}
	if res.SeizedCollateral != 4 {
		t.Fatalf("seized: got %d want 4", res.SeizedCollateral)
	}
	if res.HealthFactor >= 1 {
		t.Fatalf("health factor not below 1: %f", res.HealthFactor)
	}

	positions, err := f.engine.Positions("alice")
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	for _, position := range positions {
		switch position.MintAddress {
		case "sol-mint":
			if position.DepositedShares != 6 {
				t.Fatalf("collateral shares: %+v", position)
			}
		case "usdc-mint":
			if position.Borrowed != 375 {
				t.Fatalf("remaining debt: %+v", position)
			}
		}
	}
}

func TestLiquidateRejectsSelf(t *testing.T) {
	f := newMarket(t)
	if _, err := f.engine.Liquidate("alice", "alice", "usdc-mint", "sol-mint", 0); err == nil {
		t.Fatal("expected self-liquidation rejection")
	}
}

func TestStalePriceBlocksValuation(t *testing.T) {
	f := &fixture{state: newMockState(), source: oracle.NewStaticSource(), now: 1_700_000_000}
	gateway, err := oracle.NewGateway(f.source, oracle.NewMemoryRegistry(), 60)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	f.engine = NewEngine(f.state, gateway)
	f.engine.SetClock(func() int64 { return f.now })
	f.mustInitBank(t, baseBank("usdc-mint", "USDC"))
	f.mustInitBank(t, baseBank("sol-mint", "SOL"))
	f.setPrice("USDC", 1)
	f.setPrice("SOL", 100)
	if _, err := f.engine.Deposit("lender", "usdc-mint", 10_000); err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	if _, err := f.engine.Deposit("alice", "sol-mint", 10); err != nil {
		t.Fatalf("deposit collateral: %v", err)
	}
	f.advance(120)
	if _, err := f.engine.Borrow("alice", "usdc-mint", "sol-mint", 100); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("stale borrow: got %v", err)
	}
	f.setPrice("SOL", 100)
	f.setPrice("USDC", 1)
	if _, err := f.engine.Borrow("alice", "usdc-mint", "sol-mint", 100); err != nil {
		t.Fatalf("fresh borrow: %v", err)
	}
}

func TestUnmappedSymbolIsInvalidPriceFeed(t *testing.T) {
	f := newFixture(t)
	params := baseBank("unk-mint", "UNPRICED")
	if _, err := f.engine.InitBank(params); err != nil {
		t.Fatalf("init bank: %v", err)
	}
	f.mustInitBank(t, baseBank("usdc-mint", "USDC"))
	f.setPrice("USDC", 1)
	if _, err := f.engine.Deposit("lender", "usdc-mint", 1_000); err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	if _, err := f.engine.Deposit("alice", "unk-mint", 10); err != nil {
		t.Fatalf("deposit needs no price: %v", err)
	}
	if _, err := f.engine.Borrow("alice", "usdc-mint", "unk-mint", 1); !errors.Is(err, ErrInvalidPriceFeed) {
		t.Fatalf("unmapped symbol: got %v", err)
	}
}

func TestHealthSnapshot(t *testing.T) {
	f := newMarket(t)
	if _, err := f.engine.Deposit("alice", "sol-mint", 10); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	health, err := f.engine.Health("alice")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !math.IsInf(health.HealthFactor, 1) {
		t.Fatalf("no-borrow health factor: %f", health.HealthFactor)
	}
	if _, err := f.engine.Borrow("alice", "usdc-mint", "sol-mint", 400); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	health, err = f.engine.Health("alice")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	// $800 adjusted collateral over $400 debt.
	if health.HealthFactor != 2 {
		t.Fatalf("health factor: got %f want 2", health.HealthFactor)
	}
	if health.BorrowValueUsd != "400000000000000000000" {
		t.Fatalf("borrow value: %s", health.BorrowValueUsd)
	}
}

func TestErrorCodesStable(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{ErrBorrowAmountTooLarge, "BorrowAmountTooLarge"},
		{ErrWithdrawExceedsCollateral, "WithdrawAmountExceedsCollateralValue"},
		{ErrOverWithdrawRequest, "OverWithdrawRequest"},
		{ErrMathOverflow, "MathOverflow"},
		{ErrOverBorrowRequest, "OverBorrowRequest"},
		{ErrOverRepayRequest, "OverRepayRequest"},
		{ErrHealthyAccount, "HealthyAccount"},
		{ErrOverBorrowableAmount, "OverBorrowableAmount"},
		{ErrInvalidPriceFeed, "InvalidPriceFeed"},
	}
	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.code {
			t.Fatalf("code for %v: got %q want %q", tc.err, got, tc.code)
		}
	}
	if got := CodeOf(errors.New("other")); got != "" {
		t.Fatalf("foreign error code: %q", got)
	}
}
