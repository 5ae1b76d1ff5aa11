package xyk

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/types"
)

const (
	poolAddr    = "keel1pool"
	factoryAddr = "keel1factory"
	makerAddr   = "keel1maker"
	alice       = "keel1alice"
	bob         = "keel1bob"
)

type fixture struct {
	t       *testing.T
	bank    *ledger.Bank
	factory *ledger.Factory
	pool    *Pool
	uluna   types.AssetInfo
	uusd    types.AssetInfo
}

func newFixture(t *testing.T, totalFee, makerFee string) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		bank:    ledger.NewBank(),
		factory: ledger.NewFactory(factoryAddr),
		uluna:   types.NewNativeAsset("uluna"),
		uusd:    types.NewNativeAsset("uusd"),
	}
	f.factory.SetFeeInfo(types.PairTypeXyk, ledger.FeeInfo{
		TotalFeeRate: sdkmath.LegacyMustNewDecFromStr(totalFee),
		MakerFeeRate: sdkmath.LegacyMustNewDecFromStr(makerFee),
		FeeAddress:   makerAddr,
	})

	p, err := NewPool(InstantiateMsg{
		Addr:               poolAddr,
		AssetInfos:         [2]types.AssetInfo{f.uluna, f.uusd},
		Owner:              alice,
		TrackAssetBalances: true,
	}, f.factory, f.bank)
	require.NoError(t, err)
	f.pool = p
	return f
}

// attach mints coins to the sender and lands them on the pool the way the
// host delivers message funds, returning the matching MsgInfo.
func (f *fixture) attach(sender string, coins ...sdk.Coin) ledger.MsgInfo {
	f.t.Helper()
	for _, c := range coins {
		asset := types.NewNativeCoinAsset(c)
		f.bank.Mint(sender, asset)
		require.NoError(f.t, f.bank.Send(sender, poolAddr, asset))
	}
	return ledger.MsgInfo{Sender: sender, Funds: sdk.NewCoins(coins...)}
}

func (f *fixture) provide(sender string, env ledger.Env, amount0, amount1 int64) sdkmath.Int {
	f.t.Helper()
	info := f.attach(sender,
		sdk.NewCoin("uluna", sdkmath.NewInt(amount0)),
		sdk.NewCoin("uusd", sdkmath.NewInt(amount1)),
	)
	share, err := f.pool.ProvideLiquidity(env, info, ProvideMsg{
		Assets: []types.Asset{
			types.NewAsset(f.uluna, sdkmath.NewInt(amount0)),
			types.NewAsset(f.uusd, sdkmath.NewInt(amount1)),
		},
	})
	require.NoError(f.t, err)
	return share
}

func env(height, time uint64) ledger.Env {
	return ledger.Env{BlockHeight: height, BlockTime: time, Contract: poolAddr}
}

func TestProvideInitialLocksMinimumLiquidity(t *testing.T) {
	f := newFixture(t, "0", "0")

	share := f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)
	require.Equal(t, sdkmath.NewInt(99_999_000), share)

	lp := types.NewNativeAsset(f.pool.LpDenom())
	require.Equal(t, sdkmath.NewInt(99_999_000), f.bank.Balance(alice, lp))
	require.Equal(t, sdkmath.NewInt(1000), f.bank.Balance(poolAddr, lp))
	require.Equal(t, sdkmath.NewInt(100_000_000), f.pool.TotalShare())
}

func TestProvideInitialBelowMinimum(t *testing.T) {
	f := newFixture(t, "0", "0")

	info := f.attach(alice,
		sdk.NewCoin("uluna", sdkmath.NewInt(500)),
		sdk.NewCoin("uusd", sdkmath.NewInt(500)),
	)
	_, err := f.pool.ProvideLiquidity(env(10, 1000), info, ProvideMsg{
		Assets: []types.Asset{
			types.NewAsset(f.uluna, sdkmath.NewInt(500)),
			types.NewAsset(f.uusd, sdkmath.NewInt(500)),
		},
	})
	require.ErrorIs(t, err, types.ErrMinimumLiquidityAmount)
}

func TestProvideProportional(t *testing.T) {
	f := newFixture(t, "0", "0")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)

	share := f.provide(bob, env(11, 1005), 100, 100)
	require.Equal(t, sdkmath.NewInt(100), share)
	require.Equal(t, sdkmath.NewInt(100_000_100), f.pool.TotalShare())
}

func TestProvideRejectsDoubledAndForeignAssets(t *testing.T) {
	f := newFixture(t, "0", "0")

	info := f.attach(alice, sdk.NewCoin("uluna", sdkmath.NewInt(200)))
	_, err := f.pool.ProvideLiquidity(env(10, 1000), info, ProvideMsg{
		Assets: []types.Asset{
			types.NewAsset(f.uluna, sdkmath.NewInt(100)),
			types.NewAsset(f.uluna, sdkmath.NewInt(100)),
		},
	})
	require.ErrorIs(t, err, types.ErrDoublingAssets)

	info = f.attach(alice, sdk.NewCoin("uatom", sdkmath.NewInt(100)))
	_, err = f.pool.ProvideLiquidity(env(10, 1000), info, ProvideMsg{
		Assets: []types.Asset{
			types.NewAsset(types.NewNativeAsset("uatom"), sdkmath.NewInt(100)),
		},
	})
	require.ErrorIs(t, err, types.ErrAssetMismatch)
}

func TestProvideMinLpViolation(t *testing.T) {
	f := newFixture(t, "0", "0")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)

	minLp := sdkmath.NewInt(101)
	info := f.attach(bob,
		sdk.NewCoin("uluna", sdkmath.NewInt(100)),
		sdk.NewCoin("uusd", sdkmath.NewInt(100)),
	)
	_, err := f.pool.ProvideLiquidity(env(11, 1005), info, ProvideMsg{
		Assets: []types.Asset{
			types.NewAsset(f.uluna, sdkmath.NewInt(100)),
			types.NewAsset(f.uusd, sdkmath.NewInt(100)),
		},
		MinLpToReceive: &minLp,
	})
	var violation *types.ProvideSlippageViolation
	require.ErrorAs(t, err, &violation)
	require.Equal(t, sdkmath.NewInt(100), violation.Got)
}

func TestProvideSlippageToleranceGuard(t *testing.T) {
	f := newFixture(t, "0", "0")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)

	// heavily lopsided deposit against a balanced pool
	info := f.attach(bob,
		sdk.NewCoin("uluna", sdkmath.NewInt(10_000)),
		sdk.NewCoin("uusd", sdkmath.NewInt(100)),
	)
	_, err := f.pool.ProvideLiquidity(env(11, 1005), info, ProvideMsg{
		Assets: []types.Asset{
			types.NewAsset(f.uluna, sdkmath.NewInt(10_000)),
			types.NewAsset(f.uusd, sdkmath.NewInt(100)),
		},
	})
	require.ErrorIs(t, err, types.ErrMaxSlippageAssertion)
}

func TestSwapNoFee(t *testing.T) {
	f := newFixture(t, "0", "0")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)
	f.provide(bob, env(11, 1005), 100, 100)

	info := f.attach(bob, sdk.NewCoin("uluna", sdkmath.NewInt(100_000)))
	outcome, err := f.pool.Swap(env(12, 1010), info, SwapMsg{
		OfferAsset: types.NewAsset(f.uluna, sdkmath.NewInt(100_000)),
	})
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(99_901), outcome.AskAsset.Amount)
	require.Equal(t, sdkmath.NewInt(99), outcome.SpreadAmount)
	require.True(t, outcome.CommissionAmount.IsZero())
	require.Equal(t, sdkmath.NewInt(99_901), f.bank.Balance(bob, f.uusd))
}

func TestSwapWithCommissionAndMakerFee(t *testing.T) {
	f := newFixture(t, "0.003", "0.5")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)
	f.provide(bob, env(11, 1005), 100, 100)

	info := f.attach(bob, sdk.NewCoin("uluna", sdkmath.NewInt(100_000)))
	outcome, err := f.pool.Swap(env(12, 1010), info, SwapMsg{
		OfferAsset: types.NewAsset(f.uluna, sdkmath.NewInt(100_000)),
	})
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(99_602), outcome.AskAsset.Amount)
	require.Equal(t, sdkmath.NewInt(99), outcome.SpreadAmount)
	require.Equal(t, sdkmath.NewInt(299), outcome.CommissionAmount)
	require.Equal(t, sdkmath.NewInt(149), outcome.MakerFeeAmount)
	require.Equal(t, sdkmath.NewInt(149), f.bank.Balance(makerAddr, f.uusd))
	// commission dust above the maker cut stays in the pool
	require.Equal(t, sdkmath.NewInt(100_000_100-99_602-149), f.bank.Balance(poolAddr, f.uusd))
}

func TestSwapFeeShareSplit(t *testing.T) {
	f := newFixture(t, "0.003", "0.5")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)
	f.provide(bob, env(11, 1005), 100, 100)
	require.NoError(t, f.pool.EnableFeeShare(alice, 1000, "keel1partner"))

	info := f.attach(bob, sdk.NewCoin("uluna", sdkmath.NewInt(100_000)))
	outcome, err := f.pool.Swap(env(12, 1010), info, SwapMsg{
		OfferAsset: types.NewAsset(f.uluna, sdkmath.NewInt(100_000)),
	})
	require.NoError(t, err)
	// 10% of 299 floors to 29; maker takes half the 270 remainder
	require.Equal(t, sdkmath.NewInt(29), outcome.ShareFeeAmount)
	require.Equal(t, sdkmath.NewInt(135), outcome.MakerFeeAmount)
	require.Equal(t, sdkmath.NewInt(29), f.bank.Balance("keel1partner", f.uusd))
}

func TestFeeShareBounds(t *testing.T) {
	f := newFixture(t, "0.003", "0")
	require.ErrorIs(t, f.pool.EnableFeeShare(alice, 1001, "keel1partner"), types.ErrFeeShareOutOfBounds)
	require.ErrorIs(t, f.pool.EnableFeeShare(bob, 100, "keel1partner"), types.ErrUnauthorized)
	require.NoError(t, f.pool.EnableFeeShare(alice, 100, "keel1partner"))
	require.NoError(t, f.pool.DisableFeeShare(alice))
	require.Nil(t, f.pool.Config().FeeShare)
}

func TestSwapMaxSpreadAssertion(t *testing.T) {
	f := newFixture(t, "0", "0")
	f.provide(alice, env(10, 1000), 1_000_000, 1_000_000)

	// 10% of the pool moves the price far past the default tolerance
	info := f.attach(bob, sdk.NewCoin("uluna", sdkmath.NewInt(100_000)))
	_, err := f.pool.Swap(env(11, 1005), info, SwapMsg{
		OfferAsset: types.NewAsset(f.uluna, sdkmath.NewInt(100_000)),
	})
	require.ErrorIs(t, err, types.ErrMaxSpreadAssertion)

	// an out-of-range limit is rejected before anything runs
	tooLoose := sdkmath.LegacyMustNewDecFromStr("0.6")
	info = ledger.MsgInfo{Sender: bob, Funds: sdk.NewCoins(sdk.NewCoin("uluna", sdkmath.NewInt(100_000)))}
	_, err = f.pool.Swap(env(11, 1005), info, SwapMsg{
		OfferAsset: types.NewAsset(f.uluna, sdkmath.NewInt(100_000)),
		MaxSpread:  &tooLoose,
	})
	require.ErrorIs(t, err, types.ErrAllowedSpreadAssertion)
}

func TestSimulateMatchesSwap(t *testing.T) {
	f := newFixture(t, "0.003", "0")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)
	f.provide(bob, env(11, 1005), 100, 100)

	sim, err := f.pool.Simulate(env(12, 1010), types.NewAsset(f.uluna, sdkmath.NewInt(100_000)))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(99_602), sim.ReturnAmount)
	require.Equal(t, sdkmath.NewInt(99), sim.SpreadAmount)
	require.Equal(t, sdkmath.NewInt(299), sim.CommissionAmount)
}

func TestReverseSimulateRoundTrip(t *testing.T) {
	f := newFixture(t, "0.003", "0")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)

	sim, err := f.pool.Simulate(env(12, 1010), types.NewAsset(f.uluna, sdkmath.NewInt(100_000)))
	require.NoError(t, err)

	rev, err := f.pool.ReverseSimulate(env(12, 1010), types.NewAsset(f.uusd, sim.ReturnAmount))
	require.NoError(t, err)
	// the required offer never undershoots what produced the ask
	require.True(t, rev.OfferAmount.GTE(sdkmath.NewInt(100_000)))
	// and stays within a couple of units of rounding
	require.True(t, rev.OfferAmount.Sub(sdkmath.NewInt(100_000)).LTE(sdkmath.NewInt(2)))
}

func TestWithdrawLiquidity(t *testing.T) {
	f := newFixture(t, "0", "0")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)
	f.provide(bob, env(11, 1005), 100, 100)

	lpDenom := f.pool.LpDenom()
	info := f.attach(bob, sdk.NewCoin(lpDenom, sdkmath.NewInt(100)))
	refunds, err := f.pool.WithdrawLiquidity(env(12, 1010), info, WithdrawMsg{})
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), refunds[0].Amount)
	require.Equal(t, sdkmath.NewInt(100), refunds[1].Amount)
	require.Equal(t, sdkmath.NewInt(100_000_000), f.pool.TotalShare())
	require.Equal(t, sdkmath.NewInt(100), f.bank.Balance(bob, f.uluna))
}

func TestWithdrawMinimumsViolation(t *testing.T) {
	f := newFixture(t, "0", "0")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)
	f.provide(bob, env(11, 1005), 100, 100)

	info := f.attach(bob, sdk.NewCoin(f.pool.LpDenom(), sdkmath.NewInt(100)))
	_, err := f.pool.WithdrawLiquidity(env(12, 1010), info, WithdrawMsg{
		MinAssetsToReceive: []types.Asset{
			types.NewAsset(f.uluna, sdkmath.NewInt(101)),
			types.NewAsset(f.uusd, sdkmath.NewInt(100)),
		},
	})
	var violation *types.WithdrawSlippageViolation
	require.ErrorAs(t, err, &violation)
	require.Equal(t, "uluna", violation.AssetID)
}

func TestTwapAccumulation(t *testing.T) {
	f := newFixture(t, "0", "0")
	f.provide(alice, env(10, 100), 100_000_000, 100_000_000)

	info := f.attach(bob, sdk.NewCoin("uluna", sdkmath.NewInt(100_000)))
	_, err := f.pool.Swap(env(11, 200), info, SwapMsg{
		OfferAsset: types.NewAsset(f.uluna, sdkmath.NewInt(100_000)),
	})
	require.NoError(t, err)

	// 100 elapsed seconds at a 1:1 price
	cfg := f.pool.Config()
	require.Equal(t, sdkmath.NewInt(100_000_000), cfg.Price0CumulativeLast)
	require.Equal(t, sdkmath.NewInt(100_000_000), cfg.Price1CumulativeLast)
	require.Equal(t, uint64(200), cfg.BlockTimeLast)

	// the query projects forward without persisting
	resp := f.pool.CumulativePrices(env(12, 260))
	require.True(t, resp.CumulativePrices[0].Cumulative.GT(cfg.Price0CumulativeLast))
	require.True(t, resp.CumulativePrices[1].Cumulative.GT(cfg.Price1CumulativeLast))
	require.Equal(t, uint64(200), f.pool.Config().BlockTimeLast)
}

func TestAssetBalanceTracking(t *testing.T) {
	f := newFixture(t, "0", "0")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)
	f.provide(bob, env(20, 1050), 100, 100)

	bal := f.pool.AssetBalanceAt(f.uluna, 15)
	require.NotNil(t, bal)
	require.Equal(t, sdkmath.NewInt(100_000_000), *bal)

	bal = f.pool.AssetBalanceAt(f.uluna, 25)
	require.NotNil(t, bal)
	require.Equal(t, sdkmath.NewInt(100_000_100), *bal)

	require.Nil(t, f.pool.AssetBalanceAt(f.uluna, 5))
}

func TestOwnershipHandover(t *testing.T) {
	f := newFixture(t, "0", "0")

	require.ErrorIs(t, f.pool.ProposeNewOwner(env(1, 100), bob, bob, 100), types.ErrUnauthorized)
	require.NoError(t, f.pool.ProposeNewOwner(env(1, 100), alice, bob, 100))

	// expired claim
	require.ErrorIs(t, f.pool.ClaimOwnership(env(2, 300), bob), types.ErrOwnershipProposalExpired)

	require.NoError(t, f.pool.ProposeNewOwner(env(3, 400), alice, bob, 100))
	require.NoError(t, f.pool.ClaimOwnership(env(4, 450), bob))
	require.NoError(t, f.pool.EnableFeeShare(bob, 100, "keel1partner"))
	require.ErrorIs(t, f.pool.EnableFeeShare(alice, 100, "keel1partner"), types.ErrUnauthorized)
}

type stubStaker struct {
	addr     string
	deposits []sdkmath.Int
	fail     bool
}

func (s *stubStaker) DepositFor(_ ledger.Env, _ string, amount sdkmath.Int, _ string) error {
	if s.fail {
		return errors.New("deposit rejected")
	}
	s.deposits = append(s.deposits, amount)
	return nil
}

func (s *stubStaker) Addr() string { return s.addr }

func TestProvideAutoStake(t *testing.T) {
	f := newFixture(t, "0", "0")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)

	staker := &stubStaker{addr: "keel1incentives"}
	f.pool.SetAutoStaker(staker)

	info := f.attach(bob,
		sdk.NewCoin("uluna", sdkmath.NewInt(100)),
		sdk.NewCoin("uusd", sdkmath.NewInt(100)),
	)
	share, err := f.pool.ProvideLiquidity(env(11, 1005), info, ProvideMsg{
		Assets: []types.Asset{
			types.NewAsset(f.uluna, sdkmath.NewInt(100)),
			types.NewAsset(f.uusd, sdkmath.NewInt(100)),
		},
		AutoStake: true,
	})
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), share)
	require.Len(t, staker.deposits, 1)
	lp := types.NewNativeAsset(f.pool.LpDenom())
	require.Equal(t, sdkmath.NewInt(100), f.bank.Balance(staker.addr, lp))
	require.True(t, f.bank.Balance(bob, lp).IsZero())
}

func TestProvideAutoStakeFailure(t *testing.T) {
	f := newFixture(t, "0", "0")
	f.provide(alice, env(10, 1000), 100_000_000, 100_000_000)
	f.pool.SetAutoStaker(&stubStaker{addr: "keel1incentives", fail: true})

	info := f.attach(bob,
		sdk.NewCoin("uluna", sdkmath.NewInt(100)),
		sdk.NewCoin("uusd", sdkmath.NewInt(100)),
	)
	_, err := f.pool.ProvideLiquidity(env(11, 1005), info, ProvideMsg{
		Assets: []types.Asset{
			types.NewAsset(f.uluna, sdkmath.NewInt(100)),
			types.NewAsset(f.uusd, sdkmath.NewInt(100)),
		},
		AutoStake: true,
	})
	require.ErrorIs(t, err, types.ErrAutoStakeError)
}
