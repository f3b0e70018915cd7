package math

import (
	"errors"
	"math"
)

var ErrOverflowUint64 = errors.New("uint64 overflow")
var ErrOverflowInt64 = errors.New("int64 overflow")

// SafeAddUint64 adds two uint64 integers.
// If there is an overflow this will return an error.
func SafeAddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflowUint64
	}
	return a + b, nil
}

// SafeSubUint64 subtracts b from a.
// If the result would underflow this will return an error.
func SafeSubUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflowUint64
	}
	return a - b, nil
}

// SafeMulUint64 multiplies two uint64 integers.
// If there is an overflow this will return an error.
func SafeMulUint64(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, ErrOverflowUint64
	}
	return a * b, nil
}

// SafeConvertInt64 takes a uint64 and checks if it overflows int64.
// If there is an overflow this will panic.
func SafeConvertInt64(a uint64) int64 {
	if a > math.MaxInt64 {
		panic(ErrOverflowInt64)
	}
	return int64(a)
}
