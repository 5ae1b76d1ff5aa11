package swapmath

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestComputeSwap(t *testing.T) {
	offerPool := sdkmath.NewInt(100_000_100)
	askPool := sdkmath.NewInt(100_000_100)
	offer := sdkmath.NewInt(100_000)

	res, err := ComputeSwap(offerPool, askPool, offer, sdkmath.LegacyZeroDec())
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(99_901), res.ReturnAmount)
	require.Equal(t, sdkmath.NewInt(99), res.SpreadAmount)
	require.True(t, res.CommissionAmount.IsZero())

	res, err = ComputeSwap(offerPool, askPool, offer, sdkmath.LegacyMustNewDecFromStr("0.003"))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(99_602), res.ReturnAmount)
	require.Equal(t, sdkmath.NewInt(99), res.SpreadAmount)
	require.Equal(t, sdkmath.NewInt(299), res.CommissionAmount)
}

func TestComputeSwapSpreadSaturates(t *testing.T) {
	// 1-unit trade where rounding pushes the ideal return below the gross
	res, err := ComputeSwap(sdkmath.NewInt(1000), sdkmath.NewInt(3), sdkmath.NewInt(1), sdkmath.LegacyZeroDec())
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1), res.ReturnAmount)
	require.True(t, res.SpreadAmount.IsZero())
}

func TestComputeSwapParameterChecks(t *testing.T) {
	_, err := ComputeSwap(sdkmath.ZeroInt(), sdkmath.NewInt(100), sdkmath.NewInt(10), sdkmath.LegacyZeroDec())
	require.ErrorIs(t, err, ErrZeroReserve)

	_, err = ComputeSwap(sdkmath.NewInt(100), sdkmath.NewInt(100), sdkmath.ZeroInt(), sdkmath.LegacyZeroDec())
	require.ErrorIs(t, err, ErrZeroOfferAmount)
}

func TestComputeOfferAmountRoundTrip(t *testing.T) {
	offerPool := sdkmath.NewInt(100_000_000)
	askPool := sdkmath.NewInt(100_000_000)
	rate := sdkmath.LegacyMustNewDecFromStr("0.003")

	fwd, err := ComputeSwap(offerPool, askPool, sdkmath.NewInt(100_000), rate)
	require.NoError(t, err)

	rev, err := ComputeOfferAmount(offerPool, askPool, fwd.ReturnAmount, rate)
	require.NoError(t, err)
	require.True(t, rev.ReturnAmount.GTE(sdkmath.NewInt(100_000)))
	require.True(t, rev.ReturnAmount.Sub(sdkmath.NewInt(100_000)).LTE(sdkmath.NewInt(2)))
}

func TestComputeOfferAmountDrainedPool(t *testing.T) {
	_, err := ComputeOfferAmount(sdkmath.NewInt(1000), sdkmath.NewInt(1000), sdkmath.NewInt(1000), sdkmath.LegacyZeroDec())
	require.ErrorIs(t, err, ErrDrainedPool)
}
