package pcl

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/types"
)

const (
	poolAddr    = "keel1pcl"
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
	uusdc   types.AssetInfo
}

func defaultParams() PoolParams {
	return PoolParams{
		MidFee:               sdkmath.LegacyMustNewDecFromStr("0.0026"),
		OutFee:               sdkmath.LegacyMustNewDecFromStr("0.0045"),
		FeeGamma:             sdkmath.LegacyMustNewDecFromStr("0.00023"),
		RepegProfitThreshold: sdkmath.LegacyMustNewDecFromStr("0.01"),
		MinPriceScaleDelta:   sdkmath.LegacyMustNewDecFromStr("0.000005"),
		AllowedXcpProfitDrop: sdkmath.LegacyMustNewDecFromStr("0.1"),
		MaHalfTime:           600,
	}
}

func defaultAmpGamma() AmpGamma {
	return AmpGamma{
		Amp:   sdkmath.LegacyNewDec(40),
		Gamma: sdkmath.LegacyMustNewDecFromStr("0.000145"),
	}
}

func newFixture(t *testing.T, priceScale string, params PoolParams) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		bank:    ledger.NewBank(),
		factory: ledger.NewFactory(factoryAddr),
		uluna:   types.NewNativeAsset("uluna"),
		uusdc:   types.NewNativeAsset("uusdc"),
	}
	f.factory.SetFeeInfo(types.PairTypeConcentrated, ledger.FeeInfo{
		TotalFeeRate: sdkmath.LegacyZeroDec(),
		MakerFeeRate: sdkmath.LegacyZeroDec(),
		FeeAddress:   makerAddr,
	})

	p, err := NewPool(env(1, 100), InstantiateMsg{
		Addr:               poolAddr,
		AssetInfos:         [2]types.AssetInfo{f.uluna, f.uusdc},
		Owner:              alice,
		AmpGamma:           defaultAmpGamma(),
		Params:             params,
		PriceScale:         sdkmath.LegacyMustNewDecFromStr(priceScale),
		Precisions:         [2]uint8{6, 6},
		TrackAssetBalances: true,
	}, f.factory, f.bank)
	require.NoError(t, err)
	f.pool = p
	return f
}

func (f *fixture) attach(sender string, coins ...sdk.Coin) ledger.MsgInfo {
	f.t.Helper()
	for _, c := range coins {
		asset := types.NewNativeCoinAsset(c)
		f.bank.Mint(sender, asset)
		require.NoError(f.t, f.bank.Send(sender, poolAddr, asset))
	}
	return ledger.MsgInfo{Sender: sender, Funds: sdk.NewCoins(coins...)}
}

func (f *fixture) provide(sender string, e ledger.Env, uluna, uusdc int64) sdkmath.Int {
	f.t.Helper()
	var coins []sdk.Coin
	var assets []types.Asset
	if uluna > 0 {
		coins = append(coins, sdk.NewCoin("uluna", sdkmath.NewInt(uluna)))
		assets = append(assets, types.NewAsset(f.uluna, sdkmath.NewInt(uluna)))
	}
	if uusdc > 0 {
		coins = append(coins, sdk.NewCoin("uusdc", sdkmath.NewInt(uusdc)))
		assets = append(assets, types.NewAsset(f.uusdc, sdkmath.NewInt(uusdc)))
	}
	info := f.attach(sender, coins...)
	share, err := f.pool.ProvideLiquidity(e, info, ProvideMsg{Assets: assets})
	require.NoError(f.t, err)
	return share
}

func (f *fixture) swap(sender string, e ledger.Env, denom string, amount int64, maxSpread string) (*pool.SwapOutcome, error) {
	f.t.Helper()
	info := f.attach(sender, sdk.NewCoin(denom, sdkmath.NewInt(amount)))
	spread := sdkmath.LegacyMustNewDecFromStr(maxSpread)
	var offerInfo types.AssetInfo
	if denom == "uluna" {
		offerInfo = f.uluna
	} else {
		offerInfo = f.uusdc
	}
	return f.pool.Swap(e, info, SwapMsg{
		OfferAsset: types.NewAsset(offerInfo, sdkmath.NewInt(amount)),
		MaxSpread:  &spread,
	})
}

func env(height, time uint64) ledger.Env {
	return ledger.Env{BlockHeight: height, BlockTime: time, Contract: poolAddr}
}

func requireDecInDelta(t *testing.T, expected string, actual sdkmath.LegacyDec, delta float64) {
	t.Helper()
	want := sdkmath.LegacyMustNewDecFromStr(expected)
	require.InDelta(t, want.MustFloat64(), actual.MustFloat64(), delta,
		"expected %s, got %s", expected, actual)
}

func TestInstantiateValidation(t *testing.T) {
	bank := ledger.NewBank()
	factory := ledger.NewFactory(factoryAddr)
	base := InstantiateMsg{
		Addr:       poolAddr,
		AssetInfos: [2]types.AssetInfo{types.NewNativeAsset("uluna"), types.NewNativeAsset("uusdc")},
		Owner:      alice,
		AmpGamma:   defaultAmpGamma(),
		Params:     defaultParams(),
		PriceScale: sdkmath.LegacyNewDec(2),
		Precisions: [2]uint8{6, 6},
	}

	var paramErr *types.IncorrectPoolParam

	msg := base
	msg.AmpGamma.Amp = sdkmath.LegacyZeroDec()
	_, err := NewPool(env(1, 100), msg, factory, bank)
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "amp", paramErr.Name)

	msg = base
	msg.AmpGamma.Gamma = sdkmath.LegacyMustNewDecFromStr("0.5")
	_, err = NewPool(env(1, 100), msg, factory, bank)
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "gamma", paramErr.Name)

	msg = base
	msg.Params.MidFee = sdkmath.LegacyMustNewDecFromStr("0.9")
	_, err = NewPool(env(1, 100), msg, factory, bank)
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "mid_fee", paramErr.Name)

	msg = base
	msg.PriceScale = sdkmath.LegacyZeroDec()
	_, err = NewPool(env(1, 100), msg, factory, bank)
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "price_scale", paramErr.Name)
}

func TestProvideInitialAtParity(t *testing.T) {
	f := newFixture(t, "1", defaultParams())

	share := f.provide(alice, env(2, 100), 100_000_000_000, 100_000_000_000)
	require.Equal(t, sdkmath.NewInt(99_999_999_000), share)
	// minimum liquidity stays locked with the pool
	require.Equal(t, sdkmath.NewInt(1000),
		f.bank.Balance(poolAddr, types.NewNativeAsset(f.pool.LpDenom())))
	require.Equal(t, sdkmath.NewInt(100_000_000_000), f.pool.TotalShare())
}

func TestProvideInitialAtPriceScaleTwo(t *testing.T) {
	f := newFixture(t, "2", defaultParams())

	// both sides carry equal value at the peg, so shares reflect the full
	// pool value discounted by sqrt(2)
	share := f.provide(alice, env(2, 100), 100_000_000_000, 50_000_000_000)
	require.InDelta(t, 70_710_677_118, share.Int64(), 2)
}

func TestProvideSubsequentBalanced(t *testing.T) {
	f := newFixture(t, "2", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 50_000_000_000)

	total := f.pool.TotalShare()
	share := f.provide(bob, env(3, 100), 1_000_000_000, 500_000_000)
	want := total.QuoRaw(100)
	require.InDelta(t, want.Int64(), share.Int64(), 2)
}

func TestSimulateProvideMatchesProvide(t *testing.T) {
	f := newFixture(t, "2", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 50_000_000_000)

	assets := []types.Asset{
		types.NewAsset(f.uluna, sdkmath.NewInt(1_000_000_000)),
		types.NewAsset(f.uusdc, sdkmath.NewInt(500_000_000)),
	}
	expected, err := f.pool.SimulateProvide(env(3, 100), assets)
	require.NoError(t, err)

	share := f.provide(bob, env(3, 100), 1_000_000_000, 500_000_000)
	require.Equal(t, expected, share)
}

func TestSimulateWithdraw(t *testing.T) {
	f := newFixture(t, "1", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 100_000_000_000)

	refunds, err := f.pool.SimulateWithdraw(sdkmath.NewInt(1_000_000_000))
	require.NoError(t, err)
	require.True(t, refunds[0].Amount.IsPositive())
	require.Equal(t, refunds[0].Amount, refunds[1].Amount)
}

func TestProvideMinLpViolation(t *testing.T) {
	f := newFixture(t, "1", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 100_000_000_000)

	minLp := sdkmath.NewInt(2_000_000_000)
	info := f.attach(bob,
		sdk.NewCoin("uluna", sdkmath.NewInt(1_000_000_000)),
		sdk.NewCoin("uusdc", sdkmath.NewInt(1_000_000_000)))
	_, err := f.pool.ProvideLiquidity(env(3, 100), info, ProvideMsg{
		Assets: []types.Asset{
			types.NewAsset(f.uluna, sdkmath.NewInt(1_000_000_000)),
			types.NewAsset(f.uusdc, sdkmath.NewInt(1_000_000_000)),
		},
		MinLpToReceive: &minLp,
	})
	var violation *types.ProvideSlippageViolation
	require.ErrorAs(t, err, &violation)
	require.True(t, violation.Got.LT(minLp))
}

func TestSwapAtParity(t *testing.T) {
	f := newFixture(t, "1", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 100_000_000_000)

	outcome, err := f.swap(bob, env(3, 200), "uluna", 100_000_000, "0.02")
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(99_737_929), outcome.AskAsset.Amount)
	require.Equal(t, sdkmath.NewInt(260_819), outcome.CommissionAmount)
	require.Equal(t, sdkmath.NewInt(1251), outcome.SpreadAmount)
	require.Equal(t, sdkmath.NewInt(99_737_929),
		f.bank.Balance(bob, f.uusdc))
}

func TestSwapAtPriceScaleTwo(t *testing.T) {
	f := newFixture(t, "2", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 50_000_000_000)

	outcome, err := f.swap(bob, env(3, 200), "uluna", 100_000_000, "0.02")
	require.NoError(t, err)
	// half the parity figure: the ask asset is twice as valuable
	require.InDelta(t, 49_868_965, outcome.AskAsset.Amount.Int64(), 2)
	require.InDelta(t, 130_409, outcome.CommissionAmount.Int64(), 2)
	require.InDelta(t, 625, outcome.SpreadAmount.Int64(), 2)
}

func TestSwapUpdatesLastPriceAndOracle(t *testing.T) {
	f := newFixture(t, "2", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 50_000_000_000)

	_, err := f.swap(bob, env(3, 200), "uluna", 100_000_000, "0.02")
	require.NoError(t, err)

	state := f.pool.PriceStateView()
	requireDecInDelta(t, "2.000025024", state.LastPrice, 1e-6)
	// 100 seconds into a 600 second half time keeps most of the old value
	requireDecInDelta(t, "2.00000273", state.PriceOracle, 1e-7)
	require.Equal(t, uint64(200), state.LastPriceUpdateTs)
	require.True(t, state.PriceOracle.LT(state.LastPrice))
	require.True(t, state.PriceOracle.GT(sdkmath.LegacyNewDec(2)))
}

func TestSwapAccruesXcpProfit(t *testing.T) {
	f := newFixture(t, "1", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 100_000_000_000)

	_, err := f.swap(bob, env(3, 200), "uluna", 100_000_000, "0.02")
	require.NoError(t, err)

	state := f.pool.PriceStateView()
	require.True(t, state.XcpProfit.GT(sdkmath.LegacyOneDec()))
	requireDecInDelta(t, "1.0000013041", state.XcpProfit, 1e-9)
	require.True(t, state.XcpProfitReal.Equal(state.XcpProfit))
}

func TestRepegBelowThresholdKeepsScale(t *testing.T) {
	f := newFixture(t, "2", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 50_000_000_000)

	_, err := f.swap(bob, env(3, 200), "uluna", 100_000_000, "0.02")
	require.NoError(t, err)

	require.True(t, f.pool.PriceStateView().PriceScale.Equal(sdkmath.LegacyNewDec(2)))
}

func TestRepegMovesScaleTowardsOracle(t *testing.T) {
	params := defaultParams()
	params.RepegProfitThreshold = sdkmath.LegacyMustNewDecFromStr("0.000001")
	f := newFixture(t, "2", params)
	f.provide(alice, env(2, 100), 100_000_000_000, 50_000_000_000)

	_, err := f.swap(bob, env(3, 200), "uluna", 100_000_000, "0.02")
	require.NoError(t, err)

	state := f.pool.PriceStateView()
	// the oracle barely moved, so one step reaches it exactly
	require.True(t, state.PriceScale.Equal(state.PriceOracle),
		"scale %s oracle %s", state.PriceScale, state.PriceOracle)
	require.True(t, state.PriceScale.GT(sdkmath.LegacyNewDec(2)))
	requireDecInDelta(t, "2.00000273", state.PriceScale, 1e-7)
}

func TestSimulateMatchesSwap(t *testing.T) {
	f := newFixture(t, "2", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 50_000_000_000)

	sim, err := f.pool.Simulate(env(3, 200), types.NewAsset(f.uluna, sdkmath.NewInt(100_000_000)))
	require.NoError(t, err)

	outcome, err := f.swap(bob, env(3, 200), "uluna", 100_000_000, "0.02")
	require.NoError(t, err)
	require.Equal(t, sim.ReturnAmount, outcome.AskAsset.Amount)
	require.Equal(t, sim.CommissionAmount, outcome.CommissionAmount)
	require.Equal(t, sim.SpreadAmount, outcome.SpreadAmount)
}

func TestReverseSimulateCoversAsk(t *testing.T) {
	f := newFixture(t, "2", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 50_000_000_000)

	ask := sdkmath.NewInt(49_868_965)
	rev, err := f.pool.ReverseSimulate(env(3, 200), types.NewAsset(f.uusdc, ask))
	require.NoError(t, err)
	require.InDelta(t, 100_000_000, rev.OfferAmount.Int64(), 3000)

	sim, err := f.pool.Simulate(env(3, 200), types.NewAsset(f.uluna, rev.OfferAmount))
	require.NoError(t, err)
	require.True(t, sim.ReturnAmount.GTE(ask),
		"offer %s returned only %s for ask %s", rev.OfferAmount, sim.ReturnAmount, ask)
	require.True(t, sim.ReturnAmount.LTE(ask.AddRaw(2000)))
}

func TestSwapMaxSpreadAssertion(t *testing.T) {
	f := newFixture(t, "1", defaultParams())
	f.provide(alice, env(2, 100), 1_000_000_000, 1_000_000_000)

	// a trade of pool scale concentrates heavy slippage
	_, err := f.swap(bob, env(3, 200), "uluna", 900_000_000, "0.005")
	require.ErrorIs(t, err, types.ErrMaxSpreadAssertion)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t, "1", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 100_000_000_000)

	lp := types.NewNativeAsset(f.pool.LpDenom())
	burn := sdk.NewCoin(f.pool.LpDenom(), sdkmath.NewInt(10_000_000_000))
	require.NoError(t, f.bank.Send(alice, poolAddr, types.NewNativeCoinAsset(burn)))
	info := ledger.MsgInfo{Sender: alice, Funds: sdk.NewCoins(burn)}

	refunds, err := f.pool.WithdrawLiquidity(env(3, 200), info, WithdrawMsg{})
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(10_000_000_000), refunds[0].Amount)
	require.Equal(t, sdkmath.NewInt(10_000_000_000), refunds[1].Amount)
	require.Equal(t, sdkmath.NewInt(90_000_000_000), f.pool.TotalShare())
	require.Equal(t, sdkmath.NewInt(1000), f.bank.Balance(poolAddr, lp))
}

func TestWithdrawMinimumsViolation(t *testing.T) {
	f := newFixture(t, "1", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 100_000_000_000)

	burn := sdk.NewCoin(f.pool.LpDenom(), sdkmath.NewInt(1_000_000))
	require.NoError(t, f.bank.Send(alice, poolAddr, types.NewNativeCoinAsset(burn)))
	info := ledger.MsgInfo{Sender: alice, Funds: sdk.NewCoins(burn)}

	_, err := f.pool.WithdrawLiquidity(env(3, 200), info, WithdrawMsg{
		MinAssetsToReceive: []types.Asset{
			types.NewAsset(f.uluna, sdkmath.NewInt(2_000_000)),
			types.NewAsset(f.uusdc, sdkmath.NewInt(1)),
		},
	})
	var violation *types.WithdrawSlippageViolation
	require.ErrorAs(t, err, &violation)
	require.Equal(t, "uluna", violation.AssetID)
}

func TestTwapAccumulation(t *testing.T) {
	f := newFixture(t, "1", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 100_000_000_000)

	resp := f.pool.CumulativePrices(env(3, 200))
	require.Equal(t, sdkmath.NewInt(100_000_000), resp.CumulativePrices[0].Cumulative)
	require.Equal(t, sdkmath.NewInt(100_000_000), resp.CumulativePrices[1].Cumulative)
}

func TestAmpGammaPromotion(t *testing.T) {
	f := newFixture(t, "1", defaultParams())
	t0 := uint64(100 + minChangingTime)

	next := AmpGamma{
		Amp:   sdkmath.LegacyNewDec(80),
		Gamma: sdkmath.LegacyMustNewDecFromStr("0.000145"),
	}

	err := f.pool.Promote(env(2, t0), bob, next, t0+2*minChangingTime)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	err = f.pool.Promote(env(2, t0), alice, next, t0+minChangingTime/2)
	require.ErrorIs(t, err, types.ErrMinAmpChangingTimeAssertion)

	tooBig := next
	tooBig.Amp = sdkmath.LegacyNewDec(401)
	err = f.pool.Promote(env(2, t0), alice, tooBig, t0+2*minChangingTime)
	require.ErrorIs(t, err, types.ErrMaxAmpChangeAssertion)

	require.NoError(t, f.pool.Promote(env(2, t0), alice, next, t0+2*minChangingTime))

	halfway := f.pool.CurrentAmpGamma(t0 + minChangingTime)
	requireDecInDelta(t, "60", halfway.Amp, 1e-9)

	done := f.pool.CurrentAmpGamma(t0 + 3*minChangingTime)
	require.True(t, done.Amp.Equal(next.Amp))
}

func TestAmpGammaPromotionCooldown(t *testing.T) {
	f := newFixture(t, "1", defaultParams())

	next := AmpGamma{
		Amp:   sdkmath.LegacyNewDec(80),
		Gamma: sdkmath.LegacyMustNewDecFromStr("0.000145"),
	}

	// the schedule seeded at instantiation has not aged a full window yet
	err := f.pool.Promote(env(2, 100), alice, next, 100+2*minChangingTime)
	require.ErrorIs(t, err, types.ErrMinAmpChangingTimeAssertion)

	t0 := uint64(100 + minChangingTime)
	require.NoError(t, f.pool.Promote(env(3, t0), alice, next, t0+minChangingTime))

	// back-to-back promotions inside the window are rejected
	err = f.pool.Promote(env(3, t0), alice, next, t0+2*minChangingTime)
	require.ErrorIs(t, err, types.ErrMinAmpChangingTimeAssertion)
	err = f.pool.Promote(env(4, t0+minChangingTime/2), alice, next, t0+2*minChangingTime)
	require.ErrorIs(t, err, types.ErrMinAmpChangingTimeAssertion)

	done := t0 + minChangingTime
	require.NoError(t, f.pool.Promote(env(5, done), alice, next, done+minChangingTime))
}

func TestAmpGammaStopChanging(t *testing.T) {
	f := newFixture(t, "1", defaultParams())
	t0 := uint64(100 + minChangingTime)

	next := AmpGamma{
		Amp:   sdkmath.LegacyNewDec(80),
		Gamma: sdkmath.LegacyMustNewDecFromStr("0.00029"),
	}
	require.NoError(t, f.pool.Promote(env(2, t0), alice, next, t0+2*minChangingTime))
	require.NoError(t, f.pool.StopChangingAmpGamma(env(3, t0+minChangingTime), alice))

	frozen := f.pool.CurrentAmpGamma(t0 + 10*minChangingTime)
	requireDecInDelta(t, "60", frozen.Amp, 1e-9)
	requireDecInDelta(t, "0.0002175", frozen.Gamma, 1e-12)
}

func TestUpdateParams(t *testing.T) {
	f := newFixture(t, "1", defaultParams())

	newMid := sdkmath.LegacyMustNewDecFromStr("0.003")
	err := f.pool.UpdateParams(bob, UpdateParamsMsg{MidFee: &newMid})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	lowOut := sdkmath.LegacyMustNewDecFromStr("0.001")
	err = f.pool.UpdateParams(alice, UpdateParamsMsg{OutFee: &lowOut})
	var paramErr *types.IncorrectPoolParam
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "out_fee", paramErr.Name)

	require.NoError(t, f.pool.UpdateParams(alice, UpdateParamsMsg{MidFee: &newMid}))
	require.True(t, f.pool.Params().MidFee.Equal(newMid))
}
