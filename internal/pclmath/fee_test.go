package pclmath

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestDynamicFee(t *testing.T) {
	midFee := sdkmath.LegacyMustNewDecFromStr("0.0026")
	outFee := sdkmath.LegacyMustNewDecFromStr("0.0045")
	feeGamma := sdkmath.LegacyMustNewDecFromStr("0.00023")

	x := sdkmath.LegacyNewDec(100_000_000_000)

	// balanced pool charges exactly the mid fee
	fee := DynamicFee(x, x, midFee, outFee, feeGamma)
	require.Equal(t, midFee, fee)

	// the post-swap imbalance from the reference trade
	fee = DynamicFee(
		sdkmath.LegacyNewDec(100_100_000_000),
		sdkmath.LegacyMustNewDecFromStr("99900001251.21"),
		midFee, outFee, feeGamma)
	requireWithin(t, sdkmath.LegacyMustNewDecFromStr("0.002608225"), fee,
		sdkmath.LegacyMustNewDecFromStr("0.0000001"))

	// extreme imbalance approaches the out fee
	fee = DynamicFee(x, sdkmath.LegacyNewDec(1_000_000), midFee, outFee, feeGamma)
	require.True(t, fee.GT(sdkmath.LegacyMustNewDecFromStr("0.0044")))
	require.True(t, fee.LTE(outFee))

	// empty pool falls back to the mid fee
	fee = DynamicFee(sdkmath.LegacyZeroDec(), sdkmath.LegacyZeroDec(), midFee, outFee, feeGamma)
	require.Equal(t, midFee, fee)
}

func TestHalfpow(t *testing.T) {
	require.Equal(t, sdkmath.LegacyOneDec(), Halfpow(0, 600))
	require.Equal(t, sdkmath.LegacyMustNewDecFromStr("0.5"), Halfpow(600, 600))
	require.Equal(t, sdkmath.LegacyMustNewDecFromStr("0.25"), Halfpow(1200, 600))

	// fractional exponent: 0.5^(100/600)
	requireWithin(t, sdkmath.LegacyMustNewDecFromStr("0.890898718140339"),
		Halfpow(100, 600), sdkmath.LegacyMustNewDecFromStr("0.000000000001"))

	// past 60 halvings the coefficient is indistinguishable from zero
	require.True(t, Halfpow(60_000, 600).IsZero())

	// a zero half time decays instantly
	require.True(t, Halfpow(10, 0).IsZero())
}

func TestHalfpowMonotonic(t *testing.T) {
	prev := sdkmath.LegacyOneDec()
	for _, elapsed := range []uint64{1, 50, 150, 400, 600, 900, 1800} {
		cur := Halfpow(elapsed, 600)
		require.True(t, cur.LT(prev), "elapsed %d", elapsed)
		prev = cur
	}
}
