package memutils

import (
	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

const (
	// CreatedFillPattern is written across freshly-allocated memory when DebugMargin is nonzero, so that
	// reads of uninitialized memory are easy to spot
	CreatedFillPattern byte = 0xDC
	// DestroyedFillPattern is written across memory just before it is released when DebugMargin is nonzero
	DestroyedFillPattern byte = 0xEF
)

func CheckPow2[T constraints.Integer](number T, name string) error {
	if number <= 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp[T constraints.Integer](value T, alignment uint) T {
	return (value + T(alignment) - 1) &^ (T(alignment) - 1)
}

func AlignDown[T constraints.Integer](value T, alignment uint) T {
	return value &^ (T(alignment) - 1)
}

// Fill writes pattern across every byte of data
func Fill(data []byte, pattern byte) {
	for i := range data {
		data[i] = pattern
	}
}
