package fixedpoint

import (
	"errors"
	"math"
	"testing"
)

func TestMulDivExact(t *testing.T) {
	got, err := MulDiv(1_000, 250, 100)
	if err != nil {
		t.Fatalf("mul div: %v", err)
	}
	if got != 2_500 {
		t.Fatalf("unexpected result: got %d want 2500", got)
	}
}

func TestMulDivFloors(t *testing.T) {
	got, err := MulDiv(7, 3, 2)
	if err != nil {
		t.Fatalf("mul div: %v", err)
	}
	if got != 10 {
		t.Fatalf("expected floor division, got %d", got)
	}
}

func TestMulDivWideIntermediate(t *testing.T) {
	// a*b overflows 64 bits but the quotient fits.
	got, err := MulDiv(math.MaxUint64, 2, 4)
	if err != nil {
		t.Fatalf("mul div: %v", err)
	}
	if got != math.MaxUint64/2 {
		t.Fatalf("unexpected quotient: %d", got)
	}
}

func TestMulDivOverflow(t *testing.T) {
	if _, err := MulDiv(math.MaxUint64, 3, 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestMulDivZeroDenominator(t *testing.T) {
	if _, err := MulDiv(1, 1, 0); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
}

func TestCompoundSinglePeriod(t *testing.T) {
	// 5% annualized with daily periods: 500 bps over 365 periods.
	rate := uint64(500) * RateScale / BasisPoints / 365
	got, err := Compound(10_000_000_000, rate, 1)
	if err != nil {
		t.Fatalf("compound: %v", err)
	}
	want := uint64(10_000_000_000) + 10_000_000_000*rate/RateScale
	if got != want {
		t.Fatalf("unexpected compound result: got %d want %d", got, want)
	}
}

func TestCompoundZeroPeriodsNoop(t *testing.T) {
	got, err := Compound(1_000, RateScale/100, 0)
	if err != nil {
		t.Fatalf("compound: %v", err)
	}
	if got != 1_000 {
		t.Fatalf("expected principal unchanged, got %d", got)
	}
}

func TestCompoundMonotonic(t *testing.T) {
	rate := uint64(RateScale / 1_000) // 0.1% per period
	prev := uint64(1_000_000)
	for periods := uint64(1); periods <= 10; periods++ {
		got, err := Compound(1_000_000, rate, periods)
		if err != nil {
			t.Fatalf("compound at %d periods: %v", periods, err)
		}
		if got < prev {
			t.Fatalf("compound not monotonic at %d periods: %d < %d", periods, got, prev)
		}
		prev = got
	}
}

func TestCompoundOverflow(t *testing.T) {
	if _, err := Compound(math.MaxUint64, RateScale, 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestAddSubGuards(t *testing.T) {
	if _, err := Add(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected add overflow, got %v", err)
	}
	if _, err := Sub(1, 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected sub underflow, got %v", err)
	}
	sum, err := Add(40, 2)
	if err != nil || sum != 42 {
		t.Fatalf("add: got %d err %v", sum, err)
	}
}
