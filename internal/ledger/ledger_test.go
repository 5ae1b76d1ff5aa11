package ledger

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/keelswap/keel/internal/types"
)

func TestBankApplyIsAtomic(t *testing.T) {
	bank := NewBank()
	uluna := types.NewNativeAsset("uluna")
	bank.Mint("a", types.NewAsset(uluna, sdkmath.NewInt(100)))

	err := bank.Apply([]Transfer{
		{From: "a", To: "b", Asset: types.NewAsset(uluna, sdkmath.NewInt(60))},
		{From: "a", To: "c", Asset: types.NewAsset(uluna, sdkmath.NewInt(60))},
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// the first leg must have been rolled back
	require.Equal(t, sdkmath.NewInt(100), bank.Balance("a", uluna))
	require.True(t, bank.Balance("b", uluna).IsZero())
}

func TestBankSupplyTracksMintAndBurn(t *testing.T) {
	bank := NewBank()
	lp := types.NewNativeAsset("factory/keel1pool/lp")

	bank.Mint("a", types.NewAsset(lp, sdkmath.NewInt(500)))
	require.Equal(t, sdkmath.NewInt(500), bank.Supply(lp.ID()))

	require.NoError(t, bank.Burn("a", types.NewAsset(lp, sdkmath.NewInt(200))))
	require.Equal(t, sdkmath.NewInt(300), bank.Supply(lp.ID()))

	err := bank.Burn("a", types.NewAsset(lp, sdkmath.NewInt(1000)))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestBalanceTracker(t *testing.T) {
	tr := NewBalanceTracker()
	tr.Record("uluna", 10, sdkmath.NewInt(100))
	tr.Record("uluna", 20, sdkmath.NewInt(250))

	// same-height snapshots overwrite
	tr.Record("uluna", 20, sdkmath.NewInt(300))

	bal, ok := tr.BalanceAt("uluna", 15)
	require.True(t, ok)
	require.Equal(t, sdkmath.NewInt(100), bal)

	bal, ok = tr.BalanceAt("uluna", 20)
	require.True(t, ok)
	require.Equal(t, sdkmath.NewInt(300), bal)

	_, ok = tr.BalanceAt("uluna", 5)
	require.False(t, ok)

	_, ok = tr.BalanceAt("uusd", 15)
	require.False(t, ok)
}

func TestFactoryFeeRegistry(t *testing.T) {
	f := NewFactory("keel1factory")
	require.Equal(t, "keel1factory", f.Addr())

	// unregistered pair types swap for free
	info := f.FeeInfo(types.PairTypeStable)
	require.True(t, info.TotalFeeRate.IsZero())

	f.SetFeeInfo(types.PairTypeStable, FeeInfo{
		TotalFeeRate: sdkmath.LegacyMustNewDecFromStr("0.0005"),
		MakerFeeRate: sdkmath.LegacyMustNewDecFromStr("0.5"),
		FeeAddress:   "keel1maker",
	})
	info = f.FeeInfo(types.PairTypeStable)
	require.Equal(t, sdkmath.LegacyMustNewDecFromStr("0.0005"), info.TotalFeeRate)

	require.False(t, f.IsPairTypeBlacklisted(types.PairTypeXyk))
	f.SetPairTypeBlacklisted(types.PairTypeXyk, true)
	require.True(t, f.IsPairTypeBlacklisted(types.PairTypeXyk))
	f.SetPairTypeBlacklisted(types.PairTypeXyk, false)
	require.False(t, f.IsPairTypeBlacklisted(types.PairTypeXyk))
}
