package stable

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/swapmath"
	"github.com/keelswap/keel/internal/types"
)

// SwapMsg carries the swap parameters.
type SwapMsg struct {
	OfferAsset  types.Asset
	BeliefPrice *sdkmath.LegacyDec
	MaxSpread   *sdkmath.LegacyDec
	To          string
}

// Swap executes a stableswap trade. Spread is measured against the 1:1
// ideal price of correlated assets; the dominant term for small trades is
// plain rounding.
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
	feeInfo := p.feeInfo()

	result, err := p.computeSwap(env.BlockTime, reserves, offerIdx, msg.OfferAsset.Amount, feeInfo.TotalFeeRate)
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

	p.accumulatePrices(env, reserves)
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

// computeSwap prices offerAmount against the invariant at the current amp.
// All figures in the result are in raw ask-asset units.
func (p *Pool) computeSwap(blockTime uint64, reserves [2]sdkmath.Int, offerIdx int,
	offerAmount sdkmath.Int, commissionRate sdkmath.LegacyDec) (swapmath.SwapResult, error) {

	askIdx := 1 - offerIdx

	norm, err := p.normalizedReserves(reserves)
	if err != nil {
		return swapmath.SwapResult{}, err
	}
	offerNorm, err := p.normalize(offerAmount, offerIdx)
	if err != nil {
		return swapmath.SwapResult{}, err
	}

	grossNorm, err := swapmath.CalcAskAmount(norm[offerIdx], norm[askIdx], offerNorm, p.CurrentAmp(blockTime))
	if err != nil {
		return swapmath.SwapResult{}, err
	}

	// correlated assets trade at an ideal 1:1, so the spread is whatever
	// the curve withholds
	spreadNorm := offerNorm.Sub(grossNorm)
	if spreadNorm.IsNegative() {
		spreadNorm = sdkmath.ZeroInt()
	}

	gross, err := p.denormalize(grossNorm, askIdx)
	if err != nil {
		return swapmath.SwapResult{}, err
	}
	spread, err := p.denormalize(spreadNorm, askIdx)
	if err != nil {
		return swapmath.SwapResult{}, err
	}

	commission := commissionRate.MulInt(gross).TruncateInt()
	return swapmath.SwapResult{
		ReturnAmount:     gross.Sub(commission),
		SpreadAmount:     spread,
		CommissionAmount: commission,
	}, nil
}

// Simulate answers Simulation{offer_asset} without touching state.
func (p *Pool) Simulate(env ledger.Env, offerAsset types.Asset) (*pool.SimulationResponse, error) {
	offerIdx, err := p.assetIndex(offerAsset.Info)
	if err != nil {
		return nil, err
	}
	result, err := p.computeSwap(env.BlockTime, p.reserves(), offerIdx, offerAsset.Amount, p.feeInfo().TotalFeeRate)
	if err != nil {
		return nil, err
	}
	return &pool.SimulationResponse{
		ReturnAmount:     result.ReturnAmount,
		SpreadAmount:     result.SpreadAmount,
		CommissionAmount: result.CommissionAmount,
	}, nil
}

// ReverseSimulate answers ReverseSimulation{ask_asset}: the offer required
// to receive askAsset net of commission.
func (p *Pool) ReverseSimulate(env ledger.Env, askAsset types.Asset) (*pool.ReverseSimulationResponse, error) {
	askIdx, err := p.assetIndex(askAsset.Info)
	if err != nil {
		return nil, err
	}
	offerIdx := 1 - askIdx
	if !askAsset.Amount.IsPositive() {
		return nil, types.ErrInvalidZeroAmount
	}

	rate := p.feeInfo().TotalFeeRate
	beforeCommission := sdkmath.LegacyNewDecFromInt(askAsset.Amount).
		Quo(sdkmath.LegacyOneDec().Sub(rate)).
		Ceil().TruncateInt()

	norm, err := p.normalizedReserves(p.reserves())
	if err != nil {
		return nil, err
	}
	askNorm, err := p.normalize(beforeCommission, askIdx)
	if err != nil {
		return nil, err
	}

	offerNorm, err := swapmath.CalcOfferAmount(norm[offerIdx], norm[askIdx], askNorm, p.CurrentAmp(env.BlockTime))
	if err != nil {
		return nil, err
	}

	offer, err := p.denormalize(offerNorm, offerIdx)
	if err != nil {
		return nil, err
	}
	// denormalizing discards dust against the trader; round the raw offer
	// up instead so the pool never under-collects
	if p.precisions[offerIdx] < p.greatestPrecision() {
		rescaled, err := p.normalize(offer, offerIdx)
		if err != nil {
			return nil, err
		}
		if rescaled.LT(offerNorm) {
			offer = offer.AddRaw(1)
		}
	}

	spreadNorm := offerNorm.Sub(askNorm)
	if spreadNorm.IsNegative() {
		spreadNorm = sdkmath.ZeroInt()
	}
	spread, err := p.denormalize(spreadNorm, askIdx)
	if err != nil {
		return nil, err
	}

	return &pool.ReverseSimulationResponse{
		OfferAmount:      offer,
		SpreadAmount:     spread,
		CommissionAmount: beforeCommission.Sub(askAsset.Amount),
	}, nil
}

// PoolState answers Pool{}.
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
// accumulators projected to now.
func (p *Pool) CumulativePrices(env ledger.Env) pool.CumulativePricesResponse {
	state := p.PoolState()

	cfg := p.cfg
	price0, price1 := p.probePrices(env.BlockTime, [2]sdkmath.Int{state.Assets[0].Amount, state.Assets[1].Amount})
	cfg.AccumulatePricesWith(env.BlockTime, price0, price1)

	return pool.CumulativePricesResponse{
		Assets:     state.Assets,
		TotalShare: state.TotalShare,
		CumulativePrices: [2]pool.CumulativePrice{
			{From: p.pair.AssetInfos[0], To: p.pair.AssetInfos[1], Cumulative: cfg.Price0CumulativeLast},
			{From: p.pair.AssetInfos[1], To: p.pair.AssetInfos[0], Cumulative: cfg.Price1CumulativeLast},
		},
	}
}

// probePrices derives the directed TWAP prices by pricing one whole unit
// of each asset through the curve. Zero when the pool cannot quote.
func (p *Pool) probePrices(blockTime uint64, reserves [2]sdkmath.Int) (sdkmath.Int, sdkmath.Int) {
	norm, err := p.normalizedReserves(reserves)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt()
	}

	probe := sdkmath.NewIntWithDecimal(1, int(p.greatestPrecision()))
	amp := p.CurrentAmp(blockTime)
	precision := sdkmath.NewInt(pool.TwapPrecision)

	out0, err := swapmath.CalcAskAmount(norm[0], norm[1], probe, amp)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt()
	}
	out1, err := swapmath.CalcAskAmount(norm[1], norm[0], probe, amp)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt()
	}
	return out0.Mul(precision).Quo(probe), out1.Mul(precision).Quo(probe)
}

// accumulatePrices advances the TWAP accumulators from pre-operation
// reserves using probe-derived prices.
func (p *Pool) accumulatePrices(env ledger.Env, reserves [2]sdkmath.Int) {
	price0, price1 := p.probePrices(env.BlockTime, reserves)
	p.cfg.AccumulatePricesWith(env.BlockTime, price0, price1)
}
