package swapmath

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

const testAmp = 100 * AmpPrecision

func TestComputeD(t *testing.T) {
	d, err := ComputeD(testAmp*2, sdkmath.NewInt(100_000_000), sdkmath.NewInt(100_000_000))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(200_000_000), d)

	// D sits between the sum and twice the geometric mean for skewed pools
	d, err = ComputeD(testAmp*2, sdkmath.NewInt(100_000_000), sdkmath.NewInt(50_000_000))
	require.NoError(t, err)
	require.True(t, d.LT(sdkmath.NewInt(150_000_000)))
	require.True(t, d.GT(sdkmath.NewInt(141_000_000)))

	d, err = ComputeD(testAmp*2, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.NoError(t, err)
	require.True(t, d.IsZero())
}

func TestCalcAskAmount(t *testing.T) {
	offerPool := sdkmath.NewInt(100_000_000)
	askPool := sdkmath.NewInt(100_000_000)

	// draining half the invariant still returns over 93% thanks to the
	// flat region of the curve
	out, err := CalcAskAmount(offerPool, askPool, sdkmath.NewInt(100_000_000), testAmp)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(93_411_277), out)

	// small trades track the 1:1 price almost exactly
	out, err = CalcAskAmount(offerPool, askPool, sdkmath.NewInt(1_000_000), testAmp)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(999_901), out)

	// deep pool, tiny trade: sub-basis-point slippage
	out, err = CalcAskAmount(sdkmath.NewInt(100_000_000_000), sdkmath.NewInt(100_000_000_000),
		sdkmath.NewInt(100_000_000), testAmp)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(99_999_010), out)
}

func TestCalcOfferAmount(t *testing.T) {
	offerPool := sdkmath.NewInt(100_000_000)
	askPool := sdkmath.NewInt(100_000_000)

	in, err := CalcOfferAmount(offerPool, askPool, sdkmath.NewInt(93_411_277), testAmp)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100_000_000), in)

	_, err = CalcOfferAmount(offerPool, askPool, askPool, testAmp)
	require.ErrorIs(t, err, ErrDrainedPool)
}

func TestStableRoundTripNeverUndershoots(t *testing.T) {
	offerPool := sdkmath.NewInt(250_000_000)
	askPool := sdkmath.NewInt(180_000_000)

	for _, amount := range []int64{1_000, 500_000, 40_000_000} {
		out, err := CalcAskAmount(offerPool, askPool, sdkmath.NewInt(amount), testAmp)
		require.NoError(t, err)

		in, err := CalcOfferAmount(offerPool, askPool, out, testAmp)
		require.NoError(t, err)
		require.True(t, absDiff(in, sdkmath.NewInt(amount)).LTE(sdkmath.NewInt(2)),
			"amount %d: got offer %s", amount, in)
	}
}

func TestAdjustPrecision(t *testing.T) {
	v, err := AdjustPrecision(sdkmath.NewInt(1_500), 3, 6)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1_500_000), v)

	v, err = AdjustPrecision(sdkmath.NewInt(1_500_999), 6, 3)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1_500), v)

	v, err = AdjustPrecision(sdkmath.NewInt(42), 6, 6)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(42), v)

	huge := sdkmath.NewIntWithDecimal(1, 75)
	_, err = AdjustPrecision(huge, 0, 18)
	require.ErrorIs(t, err, ErrPrecisionOverflow)
}
