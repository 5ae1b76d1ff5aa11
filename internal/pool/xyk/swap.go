package xyk

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/swapmath"
	"github.com/keelswap/keel/internal/types"
)

// SwapMsg carries the swap parameters. Native offers arrive as attached
// funds; wrapped-token offers are pulled from the sender the way a cw20
// send hook would deliver them.
type SwapMsg struct {
	OfferAsset  types.Asset
	BeliefPrice *sdkmath.LegacyDec
	MaxSpread   *sdkmath.LegacyDec
	To          string
}

// Swap executes a constant-product swap.
func (p *Pool) Swap(env ledger.Env, info ledger.MsgInfo, msg SwapMsg) (*pool.SwapOutcome, error) {
	offerIdx, err := p.assetIndex(msg.OfferAsset.Info)
	if err != nil {
		return nil, err
	}
	askIdx := 1 - offerIdx
	askInfo := p.pair.AssetInfos[askIdx]

	if !msg.OfferAsset.Amount.IsPositive() {
		return nil, types.ErrInvalidZeroAmount
	}
	if msg.OfferAsset.Info.IsNative() {
		attached := info.AttachedAmount(msg.OfferAsset.Info.NativeToken.Denom)
		if !attached.Amount.Equal(msg.OfferAsset.Amount) {
			return nil, fmt.Errorf("%w: declared %s, attached %s of %s",
				types.ErrInvalidAsset, msg.OfferAsset.Amount, attached.Amount, msg.OfferAsset.Info.ID())
		}
	}

	reserves := p.preOpReserves(info)
	offerPool := reserves[offerIdx]
	askPool := reserves[askIdx]

	feeInfo := p.feeInfo()
	result, err := swapmath.ComputeSwap(offerPool, askPool, msg.OfferAsset.Amount, feeInfo.TotalFeeRate)
	if err != nil {
		return nil, err
	}

	err = pool.AssertMaxSpread(msg.BeliefPrice, msg.MaxSpread,
		msg.OfferAsset.Amount, result.ReturnAmount, result.SpreadAmount)
	if err != nil {
		return nil, err
	}

	if !msg.OfferAsset.Info.IsNative() {
		err = p.bank.Apply([]ledger.Transfer{{
			From:  info.Sender,
			To:    p.pair.ContractAddr,
			Asset: msg.OfferAsset,
		}})
		if err != nil {
			return nil, err
		}
	}

	receiver := msg.To
	if receiver == "" {
		receiver = info.Sender
	}

	split := pool.SplitCommission(result.CommissionAmount, askInfo,
		p.cfg.FeeShare, feeInfo.MakerFeeRate, feeInfo.FeeAddress, p.pair.ContractAddr)

	transfers := append([]ledger.Transfer{{
		From:  p.pair.ContractAddr,
		To:    receiver,
		Asset: types.NewAsset(askInfo, result.ReturnAmount),
	}}, split.Transfers...)
	if err := p.bank.Apply(transfers); err != nil {
		return nil, err
	}

	p.cfg.AccumulatePrices(env.BlockTime, reserves[0], reserves[1])
	p.recordBalances(env.BlockHeight)

	outcome := &pool.SwapOutcome{
		OfferAsset:       msg.OfferAsset,
		AskAsset:         types.NewAsset(askInfo, result.ReturnAmount),
		SpreadAmount:     result.SpreadAmount,
		CommissionAmount: result.CommissionAmount,
		MakerFeeAmount:   split.MakerFee,
		ShareFeeAmount:   split.ShareFee,
		TaxAmount:        sdkmath.ZeroInt(),
		Receiver:         receiver,
	}
	poolLogger.Info().
		Str("pool", p.pair.ContractAddr).
		Str("offer", outcome.OfferAsset.String()).
		Str("ask", outcome.AskAsset.String()).
		Str("spread", outcome.SpreadAmount.String()).
		Str("commission", outcome.CommissionAmount.String()).
		Msg("Swap executed")
	return outcome, nil
}

// Simulate answers Simulation{offer_asset} without touching state.
func (p *Pool) Simulate(_ ledger.Env, offerAsset types.Asset) (*pool.SimulationResponse, error) {
	offerIdx, err := p.assetIndex(offerAsset.Info)
	if err != nil {
		return nil, err
	}
	reserves := p.reserves()

	result, err := swapmath.ComputeSwap(reserves[offerIdx], reserves[1-offerIdx],
		offerAsset.Amount, p.feeInfo().TotalFeeRate)
	if err != nil {
		return nil, err
	}
	return &pool.SimulationResponse{
		ReturnAmount:     result.ReturnAmount,
		SpreadAmount:     result.SpreadAmount,
		CommissionAmount: result.CommissionAmount,
	}, nil
}

// ReverseSimulate answers ReverseSimulation{ask_asset}.
func (p *Pool) ReverseSimulate(_ ledger.Env, askAsset types.Asset) (*pool.ReverseSimulationResponse, error) {
	askIdx, err := p.assetIndex(askAsset.Info)
	if err != nil {
		return nil, err
	}
	reserves := p.reserves()

	result, err := swapmath.ComputeOfferAmount(reserves[1-askIdx], reserves[askIdx],
		askAsset.Amount, p.feeInfo().TotalFeeRate)
	if err != nil {
		return nil, err
	}
	return &pool.ReverseSimulationResponse{
		OfferAmount:      result.ReturnAmount,
		SpreadAmount:     result.SpreadAmount,
		CommissionAmount: result.CommissionAmount,
	}, nil
}

// PoolState answers Pool{}: reserves and total share.
func (p *Pool) PoolState() pool.PoolResponse {
	reserves := p.reserves()
	return pool.PoolResponse{
		Assets: [2]types.Asset{
			types.NewAsset(p.pair.AssetInfos[0], reserves[0]),
			types.NewAsset(p.pair.AssetInfos[1], reserves[1]),
		},
		TotalShare: p.TotalShare(),
	}
}

// CumulativePrices answers CumulativePrices{} with both directed
// accumulators.
func (p *Pool) CumulativePrices(env ledger.Env) pool.CumulativePricesResponse {
	state := p.PoolState()

	// project the accumulators forward to now without persisting
	cfg := p.cfg
	cfg.AccumulatePrices(env.BlockTime, state.Assets[0].Amount, state.Assets[1].Amount)

	return pool.CumulativePricesResponse{
		Assets:     state.Assets,
		TotalShare: state.TotalShare,
		CumulativePrices: [2]pool.CumulativePrice{
			{From: p.pair.AssetInfos[0], To: p.pair.AssetInfos[1], Cumulative: cfg.Price0CumulativeLast},
			{From: p.pair.AssetInfos[1], To: p.pair.AssetInfos[0], Cumulative: cfg.Price1CumulativeLast},
		},
	}
}

// SimulateProvide answers SimulateProvide{assets, slippage_tolerance}: the
// LP amount a provide would mint right now.
func (p *Pool) SimulateProvide(assets []types.Asset, slippageTolerance *sdkmath.LegacyDec) (sdkmath.Int, error) {
	deposits := [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}
	for _, asset := range assets {
		idx, err := p.assetIndex(asset.Info)
		if err != nil {
			return sdkmath.Int{}, err
		}
		deposits[idx] = asset.Amount
	}

	reserves := p.reserves()
	totalShare := p.TotalShare()
	if totalShare.IsZero() {
		share := isqrt(deposits[0].Mul(deposits[1])).SubRaw(pool.MinimumLiquidityAmount)
		if !share.IsPositive() {
			return sdkmath.Int{}, types.ErrMinimumLiquidityAmount
		}
		return share, nil
	}

	if deposits[0].IsPositive() && deposits[1].IsPositive() {
		err := pool.AssertSlippageTolerance(slippageTolerance, deposits[0], deposits[1], reserves[0], reserves[1])
		if err != nil {
			return sdkmath.Int{}, err
		}
	}
	return sdkmath.MinInt(
		deposits[0].Mul(totalShare).Quo(reserves[0]),
		deposits[1].Mul(totalShare).Quo(reserves[1]),
	), nil
}

// SimulateWithdraw answers SimulateWithdraw{lp_amount}.
func (p *Pool) SimulateWithdraw(lpAmount sdkmath.Int) ([2]types.Asset, error) {
	return p.ShareAssets(lpAmount)
}
