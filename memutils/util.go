package memutils

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer
}

// CheckPow2 returns an error wrapping PowerOfTwoError if number is not a positive power of two.
// name is used to identify the offending value in the error message.
func CheckPow2[T Number](number T, name string) error {
	if number <= 0 {
		return cerrors.Wrapf(NonPositiveError, "%s is %d", name, number)
	}
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}

// Log2 returns the base-2 logarithm of a power of two. The result is meaningless for other values.
func Log2(value int) uint {
	return uint(bits.TrailingZeros64(uint64(value)))
}

// NextPow2 returns the smallest power of two that is greater than or equal to value. Values less
// than one round up to one.
func NextPow2(value int) int {
	if value <= 1 {
		return 1
	}
	return 1 << (64 - bits.LeadingZeros64(uint64(value-1)))
}
