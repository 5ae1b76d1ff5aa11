package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/types"
)

// AssertMaxSpread enforces the trader's spread limit. With a belief price
// the expected return is offer/belief and the shortfall ratio is checked;
// without one the realised spread ratio is checked directly. A nil maxSpread
// falls back to DefaultSlippage; anything above MaxAllowedSlippage is
// rejected outright.
func AssertMaxSpread(beliefPrice, maxSpread *sdkmath.LegacyDec, offerAmount, returnAmount, spreadAmount sdkmath.Int) error {
	spread := DefaultSlippage
	if maxSpread != nil {
		spread = *maxSpread
	}
	if spread.IsNegative() || spread.GT(MaxAllowedSlippage) {
		return types.ErrAllowedSpreadAssertion
	}

	if beliefPrice != nil {
		if !beliefPrice.IsPositive() {
			return fmt.Errorf("belief price must be positive: %w", types.ErrMaxSpreadAssertion)
		}
		expected := sdkmath.LegacyNewDecFromInt(offerAmount).Quo(*beliefPrice).TruncateInt()
		if returnAmount.LT(expected) {
			shortfall := sdkmath.LegacyNewDecFromInt(expected.Sub(returnAmount)).
				Quo(sdkmath.LegacyNewDecFromInt(expected))
			if shortfall.GT(spread) {
				return types.ErrMaxSpreadAssertion
			}
		}
		return nil
	}

	gross := returnAmount.Add(spreadAmount)
	if gross.IsZero() {
		return types.ErrMaxSpreadAssertion
	}
	ratio := sdkmath.LegacyNewDecFromInt(spreadAmount).Quo(sdkmath.LegacyNewDecFromInt(gross))
	if ratio.GT(spread) {
		return types.ErrMaxSpreadAssertion
	}
	return nil
}

// AssertSlippageTolerance guards a two-sided provide: after discounting the
// deposit ratio by the tolerance, both directions must stay within the pool
// ratio. A nil tolerance applies DefaultSlippage.
func AssertSlippageTolerance(tolerance *sdkmath.LegacyDec, deposit0, deposit1, pool0, pool1 sdkmath.Int) error {
	tol := DefaultSlippage
	if tolerance != nil {
		tol = *tolerance
	}
	if tol.GT(MaxAllowedSlippage) {
		return types.ErrMaxSlippageAssertion
	}

	oneMinus := sdkmath.LegacyOneDec().Sub(tol)
	d0 := sdkmath.LegacyNewDecFromInt(deposit0)
	d1 := sdkmath.LegacyNewDecFromInt(deposit1)
	p0 := sdkmath.LegacyNewDecFromInt(pool0)
	p1 := sdkmath.LegacyNewDecFromInt(pool1)

	if d0.Mul(oneMinus).Mul(p1).GT(d1.Mul(p0)) ||
		d1.Mul(oneMinus).Mul(p0).GT(d0.Mul(p1)) {
		return types.ErrMaxSlippageAssertion
	}
	return nil
}
