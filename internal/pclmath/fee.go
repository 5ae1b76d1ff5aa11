package pclmath

import (
	sdkmath "cosmossdk.io/math"
)

// ln(2) to 18 decimal places.
var ln2 = sdkmath.LegacyMustNewDecFromStr("0.693147180559945309")

// DynamicFee interpolates between midFee (charged near balance) and outFee
// (charged far from it). The balance metric 4*x0*x1/(x0+x1)^2 is 1 when the
// xp balances are equal and decays towards 0 as they diverge; feeGamma
// controls how quickly the fee ramps up.
func DynamicFee(x0, x1, midFee, outFee, feeGamma sdkmath.LegacyDec) sdkmath.LegacyDec {
	sum := x0.Add(x1)
	if sum.IsZero() {
		return midFee
	}
	balance := four.Mul(x0).Mul(x1).Quo(sum.Mul(sum))
	weight := feeGamma.Quo(feeGamma.Add(sdkmath.LegacyOneDec()).Sub(balance))
	return weight.Mul(midFee).Add(sdkmath.LegacyOneDec().Sub(weight).Mul(outFee))
}

// Halfpow computes 0.5^(elapsed/halfTime), the decay coefficient of the
// moving-average price oracle. The integer part is exact halving; the
// fractional remainder uses a truncated Taylor expansion of exp(-r*ln2),
// accurate to well under 1e-12 on [0, 1).
func Halfpow(elapsed, halfTime uint64) sdkmath.LegacyDec {
	if halfTime == 0 || elapsed == 0 {
		if elapsed == 0 {
			return sdkmath.LegacyOneDec()
		}
		return sdkmath.LegacyZeroDec()
	}

	halvings := elapsed / halfTime
	if halvings > 60 {
		return sdkmath.LegacyZeroDec()
	}

	result := sdkmath.LegacyOneDec()
	for i := uint64(0); i < halvings; i++ {
		result = result.Quo(two)
	}

	remainder := elapsed % halfTime
	if remainder == 0 {
		return result
	}

	// exp(-x) with x = remainder/halfTime * ln2, x in (0, ln2)
	x := ln2.MulInt64(int64(remainder)).QuoInt64(int64(halfTime))
	term := sdkmath.LegacyOneDec()
	expSum := sdkmath.LegacyOneDec()
	for n := int64(1); n <= 12; n++ {
		term = term.Mul(x).QuoInt64(n).Neg()
		expSum = expSum.Add(term)
	}
	return result.Mul(expSum)
}
