package swapmath

import (
	sdkmath "cosmossdk.io/math"
)

// SwapResult carries the three components of a constant-product swap
// computation.
type SwapResult struct {
	ReturnAmount     sdkmath.Int
	SpreadAmount     sdkmath.Int
	CommissionAmount sdkmath.Int
}

// ComputeSwap solves the constant-product equation x*y = k for the ask-side
// output of a swap. The gross return floors, spread saturates at zero, and
// commission floors against the trader.
func ComputeSwap(offerPool, askPool, offerAmount sdkmath.Int, commissionRate sdkmath.LegacyDec) (SwapResult, error) {
	if err := CheckSwapParameters(offerPool, askPool, offerAmount); err != nil {
		return SwapResult{}, err
	}

	cp := offerPool.Mul(askPool)
	grossReturn := askPool.Sub(cp.Quo(offerPool.Add(offerAmount)))

	// Spread against the pre-swap spot price, saturating: rounding can push
	// the ideal return below the gross return by one unit.
	idealReturn := offerAmount.Mul(askPool).Quo(offerPool)
	spread := idealReturn.Sub(grossReturn)
	if spread.IsNegative() {
		spread = sdkmath.ZeroInt()
	}

	commission := commissionRate.MulInt(grossReturn).TruncateInt()

	return SwapResult{
		ReturnAmount:     grossReturn.Sub(commission),
		SpreadAmount:     spread,
		CommissionAmount: commission,
	}, nil
}

// ComputeOfferAmount inverts ComputeSwap: given a desired net ask amount it
// returns the offer required, rounding up so the pool never under-collects.
func ComputeOfferAmount(offerPool, askPool, askAmount sdkmath.Int, commissionRate sdkmath.LegacyDec) (SwapResult, error) {
	if err := CheckSwapParameters(offerPool, askPool, askAmount); err != nil {
		return SwapResult{}, err
	}

	one := sdkmath.LegacyOneDec()
	beforeCommission := sdkmath.LegacyNewDecFromInt(askAmount).
		Quo(one.Sub(commissionRate)).
		Ceil().TruncateInt()
	if beforeCommission.GTE(askPool) {
		return SwapResult{}, ErrDrainedPool
	}

	cp := offerPool.Mul(askPool)
	offerAmount := ceilDiv(cp, askPool.Sub(beforeCommission)).Sub(offerPool)

	spread := offerAmount.Mul(askPool).Quo(offerPool).Sub(beforeCommission)
	if spread.IsNegative() {
		spread = sdkmath.ZeroInt()
	}

	return SwapResult{
		ReturnAmount:     offerAmount,
		SpreadAmount:     spread,
		CommissionAmount: beforeCommission.Sub(askAmount),
	}, nil
}
