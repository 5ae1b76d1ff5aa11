package swapmath

import (
	sdkmath "cosmossdk.io/math"
)

const (
	// AmpPrecision scales the amplification coefficient so it can promote in
	// sub-integer steps.
	AmpPrecision = 100

	// nCoins is fixed: every pool in this family holds exactly two assets.
	nCoins = 2

	maxIterations = 64
)

// ComputeD runs the Newton iteration for the two-asset stable invariant
//
//	A*n^n*(x+y) + D = A*D*n^n + D^(n+1) / (n^n * x * y)
//
// leverage is amp (already scaled by AmpPrecision) times the coin count.
// Convergence within 64 iterations is guaranteed for any non-degenerate
// reserves; failure past that is fatal.
func ComputeD(leverage uint64, amountA, amountB sdkmath.Int) (sdkmath.Int, error) {
	sum := amountA.Add(amountB)
	if sum.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	lev := sdkmath.NewIntFromUint64(leverage)
	ampPrec := sdkmath.NewInt(AmpPrecision)
	d := sum

	for i := 0; i < maxIterations; i++ {
		dProduct := d.Mul(d).Quo(amountA.MulRaw(nCoins)).Mul(d).Quo(amountB.MulRaw(nCoins))

		dPrev := d
		numerator := lev.Mul(sum).Quo(ampPrec).Add(dProduct.MulRaw(nCoins)).Mul(d)
		denominator := lev.Sub(ampPrec).Mul(d).Quo(ampPrec).Add(dProduct.MulRaw(nCoins + 1))
		d = numerator.Quo(denominator)

		if absDiff(d, dPrev).LTE(sdkmath.OneInt()) {
			return d, nil
		}
	}
	return sdkmath.Int{}, ErrConvergenceFailure
}

// calcY solves the invariant for the counterpart reserve given the new value
// of the swapped-in reserve and a fixed D. The iteration
//
//	y = (y^2 + c) / (2y + b - D)
//
// with c = D^3*AmpPrecision / (4*newAmount*leverage) and
// b = newAmount + D*AmpPrecision/leverage converges quadratically.
func calcY(leverage uint64, newAmount, d sdkmath.Int) (sdkmath.Int, error) {
	if newAmount.IsZero() || d.IsZero() {
		return sdkmath.Int{}, ErrZeroReserve
	}

	lev := sdkmath.NewIntFromUint64(leverage)
	ampPrec := sdkmath.NewInt(AmpPrecision)

	c := d.Mul(d).Quo(newAmount).Mul(d).Mul(ampPrec).Quo(lev.MulRaw(nCoins * nCoins))
	b := newAmount.Add(d.Mul(ampPrec).Quo(lev))

	y := d
	for i := 0; i < maxIterations; i++ {
		yPrev := y
		y = y.Mul(y).Add(c).Quo(y.MulRaw(2).Add(b).Sub(d))
		if absDiff(y, yPrev).LTE(sdkmath.OneInt()) {
			return y, nil
		}
	}
	return sdkmath.Int{}, ErrConvergenceFailure
}

// CalcAskAmount returns the gross ask-side output of a stable swap before
// commission. amp carries AmpPrecision.
func CalcAskAmount(offerPool, askPool, offerAmount sdkmath.Int, amp uint64) (sdkmath.Int, error) {
	if err := CheckSwapParameters(offerPool, askPool, offerAmount); err != nil {
		return sdkmath.Int{}, err
	}

	leverage := amp * nCoins
	d, err := ComputeD(leverage, offerPool, askPool)
	if err != nil {
		return sdkmath.Int{}, err
	}

	newAskPool, err := calcY(leverage, offerPool.Add(offerAmount), d)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return askPool.Sub(newAskPool), nil
}

// CalcOfferAmount is the dual of CalcAskAmount: the offer required to draw
// askAmount (gross, before commission) out of the ask side.
func CalcOfferAmount(offerPool, askPool, askAmount sdkmath.Int, amp uint64) (sdkmath.Int, error) {
	if err := CheckSwapParameters(offerPool, askPool, askAmount); err != nil {
		return sdkmath.Int{}, err
	}
	if askAmount.GTE(askPool) {
		return sdkmath.Int{}, ErrDrainedPool
	}

	leverage := amp * nCoins
	d, err := ComputeD(leverage, offerPool, askPool)
	if err != nil {
		return sdkmath.Int{}, err
	}

	newOfferPool, err := calcY(leverage, askPool.Sub(askAmount), d)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return newOfferPool.Sub(offerPool), nil
}
