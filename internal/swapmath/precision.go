/*

Shared integer-exact swap math. All helpers operate on cosmossdk.io/math big
integers with explicit precision handling; outputs round down, in the pool's
favour.

*/

package swapmath

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrPrecisionOverflow  = errors.New("value overflows during precision adjustment")
	ErrZeroReserve        = errors.New("one of the pool reserves is zero")
	ErrZeroOfferAmount    = errors.New("offer amount is zero")
	ErrConvergenceFailure = errors.New("newton iteration did not converge")
	ErrDrainedPool        = errors.New("requested amount exceeds pool liquidity")
)

// AdjustPrecision rescales value from currentPrecision decimal places to
// newPrecision. Scaling up multiplies by a power of ten and fails on
// overflow; scaling down integer-divides, discarding dust.
func AdjustPrecision(value sdkmath.Int, currentPrecision, newPrecision uint8) (sdkmath.Int, error) {
	if currentPrecision == newPrecision {
		return value, nil
	}
	if currentPrecision < newPrecision {
		factor := pow10(newPrecision - currentPrecision)
		// Int panics past 256 bits; reject before multiplying.
		if value.BigInt().BitLen()+factor.BigInt().BitLen() > 255 {
			return sdkmath.Int{}, fmt.Errorf("%w: %s at precision %d -> %d",
				ErrPrecisionOverflow, value, currentPrecision, newPrecision)
		}
		return value.Mul(factor), nil
	}
	return value.Quo(pow10(currentPrecision - newPrecision)), nil
}

// CheckSwapParameters rejects swaps against an empty pool or with a zero
// offer amount.
func CheckSwapParameters(offerPool, askPool, offerAmount sdkmath.Int) error {
	if offerPool.IsZero() || askPool.IsZero() {
		return ErrZeroReserve
	}
	if offerAmount.IsZero() {
		return ErrZeroOfferAmount
	}
	return nil
}

func pow10(exp uint8) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, int(exp))
}

// ceilDiv divides a by b rounding up. Both operands must be positive.
func ceilDiv(a, b sdkmath.Int) sdkmath.Int {
	return a.Add(b).Sub(sdkmath.OneInt()).Quo(b)
}

// absDiff returns |a - b|.
func absDiff(a, b sdkmath.Int) sdkmath.Int {
	if a.GT(b) {
		return a.Sub(b)
	}
	return b.Sub(a)
}
