package beast

import "math"

func checkedAdd(a, b uint64) (uint64, error) {
	if math.MaxUint64-a < b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticUnderflow
	}
	return a - b, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, ErrArithmeticOverflow
	}
	return a * b, nil
}

// checkedPow raises base to exp by repeated checked multiplication. Exponents
// here are generation counters, so the loop stays tiny.
func checkedPow(base uint64, exp uint8) (uint64, error) {
	result := uint64(1)
	for i := uint8(0); i < exp; i++ {
		next, err := checkedMul(result, base)
		if err != nil {
			return 0, err
		}
		result = next
	}
	return result, nil
}
