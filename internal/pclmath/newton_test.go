package pclmath

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

var (
	testAmp   = sdkmath.LegacyNewDec(40)
	testGamma = sdkmath.LegacyMustNewDecFromStr("0.000145")
)

func requireWithin(t *testing.T, expected, actual, tolerance sdkmath.LegacyDec) {
	t.Helper()
	diff := expected.Sub(actual).Abs()
	require.True(t, diff.LTE(tolerance), "expected %s within %s of %s (diff %s)",
		actual, tolerance, expected, diff)
}

func TestNewtonDBalanced(t *testing.T) {
	x := sdkmath.LegacyNewDec(100_000_000_000)

	d, err := NewtonD(x, x, testAmp, testGamma)
	require.NoError(t, err)
	// at perfect balance the invariant degenerates to D = 2x
	requireWithin(t, sdkmath.LegacyNewDec(200_000_000_000), d, sdkmath.LegacyMustNewDecFromStr("0.01"))
}

func TestNewtonDRejectsEmptyBalances(t *testing.T) {
	x := sdkmath.LegacyNewDec(100_000_000_000)
	_, err := NewtonD(sdkmath.LegacyZeroDec(), x, testAmp, testGamma)
	require.ErrorIs(t, err, ErrZeroBalance)
}

func TestNewtonYSwapOutput(t *testing.T) {
	d := sdkmath.LegacyNewDec(200_000_000_000)
	xAfter := sdkmath.LegacyNewDec(100_100_000_000)

	y, err := NewtonY(d, xAfter, testAmp, testGamma)
	require.NoError(t, err)
	requireWithin(t, sdkmath.LegacyMustNewDecFromStr("99900001251.21"), y, sdkmath.LegacyNewDec(1))

	out := sdkmath.LegacyNewDec(100_000_000_000).Sub(y)
	requireWithin(t, sdkmath.LegacyMustNewDecFromStr("99998748.79"), out, sdkmath.LegacyNewDec(1))
}

func TestNewtonRoundTrip(t *testing.T) {
	x0 := sdkmath.LegacyNewDec(130_000_000_000)
	x1 := sdkmath.LegacyNewDec(74_000_000_000)

	d, err := NewtonD(x0, x1, testAmp, testGamma)
	require.NoError(t, err)

	// solving for either balance at that D must reproduce it
	y, err := NewtonY(d, x0, testAmp, testGamma)
	require.NoError(t, err)
	requireWithin(t, x1, y, sdkmath.LegacyNewDec(1))

	y, err = NewtonY(d, x1, testAmp, testGamma)
	require.NoError(t, err)
	requireWithin(t, x0, y, sdkmath.LegacyNewDec(1))
}
