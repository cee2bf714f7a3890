package beast

import (
	"errors"
	"math"
	"testing"
)

func TestAccrueRewards(t *testing.T) {
	// A zero anchor accrues nothing; the first activity only starts the clock.
	if got, err := AccrueRewards(0, 1_700_000_000, 10); err != nil || got != 0 {
		t.Fatalf("zero anchor: got %d err %v", got, err)
	}
	if got, err := AccrueRewards(1000, 1000, 10); err != nil || got != 0 {
		t.Fatalf("no elapsed time: got %d err %v", got, err)
	}
	if got, err := AccrueRewards(1000, 1360, 10); err != nil || got != 3600 {
		t.Fatalf("360s at rate 10: got %d err %v", got, err)
	}

	// A clock running backwards is an underflow, never a silent zero.
	if _, err := AccrueRewards(2000, 1999, 10); !errors.Is(err, ErrArithmeticUnderflow) {
		t.Fatalf("expected ErrArithmeticUnderflow, got %v", err)
	}

	// Elapsed * rate past the uint64 ceiling fails loudly.
	if _, err := AccrueRewards(1, math.MaxInt64, math.MaxUint64); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}

func TestCheckedMath(t *testing.T) {
	if got, err := checkedAdd(3, 4); err != nil || got != 7 {
		t.Fatalf("add: got %d err %v", got, err)
	}
	if _, err := checkedAdd(math.MaxUint64, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected add overflow, got %v", err)
	}
	if got, err := checkedSub(10, 4); err != nil || got != 6 {
		t.Fatalf("sub: got %d err %v", got, err)
	}
	if _, err := checkedSub(4, 10); !errors.Is(err, ErrArithmeticUnderflow) {
		t.Fatalf("expected sub underflow, got %v", err)
	}
	if got, err := checkedMul(6, 7); err != nil || got != 42 {
		t.Fatalf("mul: got %d err %v", got, err)
	}
	if got, err := checkedMul(0, math.MaxUint64); err != nil || got != 0 {
		t.Fatalf("mul by zero: got %d err %v", got, err)
	}
	if _, err := checkedMul(math.MaxUint64, 2); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected mul overflow, got %v", err)
	}
	if got, err := checkedPow(2, 10); err != nil || got != 1024 {
		t.Fatalf("pow: got %d err %v", got, err)
	}
	if got, err := checkedPow(7, 0); err != nil || got != 1 {
		t.Fatalf("pow zero exponent: got %d err %v", got, err)
	}
	if _, err := checkedPow(2, 64); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected pow overflow, got %v", err)
	}
}
