package pcl

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/pclmath"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/types"
)

// SwapMsg carries the swap parameters.
type SwapMsg struct {
	OfferAsset  types.Asset
	BeliefPrice *sdkmath.LegacyDec
	MaxSpread   *sdkmath.LegacyDec
	To          string
}

// swapQuote is one priced trade, all real-unit figures in raw ask-asset
// units and xp-space figures alongside for price and profit tracking.
type swapQuote struct {
	ReturnAmount     sdkmath.Int
	SpreadAmount     sdkmath.Int
	CommissionAmount sdkmath.Int
	FeeRate          sdkmath.LegacyDec
	dxXp             sdkmath.LegacyDec
	dyXp             sdkmath.LegacyDec
}

// Swap executes a trade along the concentrated curve. After settlement the
// pool folds fee profit into the xcp counters, updates the internal price
// oracle and, when enough profit has accrued, repegs the price scale.
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
	quote, err := p.computeSwap(env.BlockTime, reserves, offerIdx, msg.OfferAsset.Amount)
	if err != nil {
		return nil, err
	}

	err = pool.AssertMaxSpread(msg.BeliefPrice, msg.MaxSpread,
		msg.OfferAsset.Amount, quote.ReturnAmount, quote.SpreadAmount)
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

	feeInfo := p.feeInfo()
	split := pool.SplitCommission(quote.CommissionAmount, askInfo,
		p.cfg.FeeShare, feeInfo.MakerFeeRate, feeInfo.FeeAddress, p.pair.ContractAddr)

	transfers := append([]ledger.Transfer{{
		From:  p.pair.ContractAddr,
		To:    receiver,
		Asset: types.NewAsset(askInfo, quote.ReturnAmount),
	}}, split.Transfers...)
	if err := p.bank.Apply(transfers); err != nil {
		return nil, err
	}

	// the marginal price realised by this trade, quoted as units of asset 0
	// per unit of asset 1
	var lastPrice sdkmath.LegacyDec
	if offerIdx == 0 {
		lastPrice = p.price.PriceScale.Mul(quote.dxXp).Quo(quote.dyXp)
	} else {
		lastPrice = p.price.PriceScale.Mul(quote.dyXp).Quo(quote.dxXp)
	}

	p.accumulatePrices(env)

	if err := p.afterTrade(env.BlockTime, lastPrice); err != nil {
		return nil, err
	}
	p.recordBalances(env.BlockHeight)

	outcome := &pool.SwapOutcome{
		OfferAsset:       msg.OfferAsset,
		AskAsset:         types.NewAsset(askInfo, quote.ReturnAmount),
		SpreadAmount:     quote.SpreadAmount,
		CommissionAmount: quote.CommissionAmount,
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
		Str("fee_rate", quote.FeeRate.String()).
		Msg("Swap executed")
	return outcome, nil
}

// computeSwap prices offerAmount through the invariant. The trade is priced
// in xp space, where both sides carry equal value at the current price
// scale, then mapped back to raw ask units. The fee is dynamic in the
// post-swap imbalance.
func (p *Pool) computeSwap(blockTime uint64, reserves [2]sdkmath.Int, offerIdx int,
	offerAmount sdkmath.Int) (swapQuote, error) {

	askIdx := 1 - offerIdx

	xp, err := p.toXp(reserves, p.price.PriceScale)
	if err != nil {
		return swapQuote{}, err
	}

	ag := p.CurrentAmpGamma(blockTime)
	d, err := pclmath.NewtonD(xp[0], xp[1], ag.Amp, ag.Gamma)
	if err != nil {
		return swapQuote{}, err
	}

	offerNorm, err := p.normalize(offerAmount, offerIdx)
	if err != nil {
		return swapQuote{}, err
	}
	dxXp := sdkmath.LegacyNewDecFromInt(offerNorm)
	if offerIdx == 1 {
		dxXp = dxXp.Mul(p.price.PriceScale)
	}

	var newXp [2]sdkmath.LegacyDec
	newXp[offerIdx] = xp[offerIdx].Add(dxXp)
	newXp[askIdx], err = pclmath.NewtonY(d, newXp[offerIdx], ag.Amp, ag.Gamma)
	if err != nil {
		return swapQuote{}, err
	}

	dyXp := xp[askIdx].Sub(newXp[askIdx])
	if !dyXp.IsPositive() {
		return swapQuote{}, types.ErrSwapNonPositiveReturn
	}

	// xp space is value-normalized, so the ideal 1:1 exchange makes the
	// spread the value the curve withholds
	spreadXp := dxXp.Sub(dyXp)
	if spreadXp.IsNegative() {
		spreadXp = sdkmath.LegacyZeroDec()
	}

	feeRate := pclmath.DynamicFee(newXp[0], newXp[1],
		p.params.MidFee, p.params.OutFee, p.params.FeeGamma)

	grossReal := p.fromXpValue(dyXp, askIdx)
	spreadReal := p.fromXpValue(spreadXp, askIdx)

	gross, err := p.denormalizeDec(grossReal, askIdx)
	if err != nil {
		return swapQuote{}, err
	}
	spread, err := p.denormalizeDec(spreadReal, askIdx)
	if err != nil {
		return swapQuote{}, err
	}
	commission, err := p.denormalizeDec(grossReal.Mul(feeRate), askIdx)
	if err != nil {
		return swapQuote{}, err
	}

	return swapQuote{
		ReturnAmount:     gross.Sub(commission),
		SpreadAmount:     spread,
		CommissionAmount: commission,
		FeeRate:          feeRate,
		dxXp:             dxXp,
		dyXp:             dyXp,
	}, nil
}

// fromXpValue maps an xp-space value back to normalized units of asset idx.
func (p *Pool) fromXpValue(v sdkmath.LegacyDec, idx int) sdkmath.LegacyDec {
	if idx == 1 {
		return v.Quo(p.price.PriceScale)
	}
	return v
}

// denormalizeDec floors a normalized Dec quantity down to raw asset units.
func (p *Pool) denormalizeDec(v sdkmath.LegacyDec, idx int) (sdkmath.Int, error) {
	return p.denormalize(v.TruncateInt(), idx)
}

// afterTrade folds realized fee profit into the xcp counters, advances the
// price oracle and repegs the price scale when profit allows. Reserves must
// already reflect the trade.
func (p *Pool) afterTrade(blockTime uint64, lastPrice sdkmath.LegacyDec) error {
	xp, err := p.toXp(p.reserves(), p.price.PriceScale)
	if err != nil {
		return err
	}
	ag := p.CurrentAmpGamma(blockTime)
	d, err := pclmath.NewtonD(xp[0], xp[1], ag.Amp, ag.Gamma)
	if err != nil {
		return err
	}
	if err := p.trackProfit(d); err != nil {
		return err
	}

	canRepeg := blockTime > p.price.LastPriceUpdateTs
	p.updateOracle(blockTime, lastPrice)

	if canRepeg && p.price.XcpProfitReal.Sub(sdkmath.LegacyOneDec()).GT(p.params.RepegProfitThreshold) {
		p.tryRepeg(blockTime, ag)
	}
	return nil
}

// tryRepeg moves the price scale one bounded step towards the oracle and
// commits only when the resulting drop in realised profit stays within the
// allowed budget. A rejected step leaves all state untouched.
func (p *Pool) tryRepeg(blockTime uint64, ag AmpGamma) {
	oracle := p.price.PriceOracle
	scale := p.price.PriceScale
	if oracle.Equal(scale) {
		return
	}

	step := p.params.MinPriceScaleDelta
	ratio := oracle.Quo(scale)
	var newScale sdkmath.LegacyDec
	switch {
	case ratio.GT(sdkmath.LegacyOneDec().Add(step)):
		newScale = scale.Mul(sdkmath.LegacyOneDec().Add(step))
	case ratio.LT(sdkmath.LegacyOneDec().Sub(step)):
		newScale = scale.Mul(sdkmath.LegacyOneDec().Sub(step))
	default:
		newScale = oracle
	}

	xp, err := p.toXp(p.reserves(), newScale)
	if err != nil {
		return
	}
	d, err := pclmath.NewtonD(xp[0], xp[1], ag.Amp, ag.Gamma)
	if err != nil {
		return
	}
	newXcp, err := xcpAt(d, newScale)
	if err != nil {
		return
	}

	totalShare := p.TotalShare()
	if totalShare.IsZero() || !p.xcpPerShare.IsPositive() {
		return
	}
	newPerShare := newXcp.Quo(sdkmath.LegacyNewDecFromInt(totalShare))
	newProfitReal := p.price.XcpProfitReal.Mul(newPerShare.Quo(p.xcpPerShare))

	drop := p.price.XcpProfitReal.Sub(newProfitReal)
	if drop.GT(p.params.AllowedXcpProfitDrop) {
		poolLogger.Debug().
			Str("pool", p.pair.ContractAddr).
			Str("rejected_scale", newScale.String()).
			Str("profit_drop", drop.String()).
			Msg("Repeg rejected")
		return
	}

	p.price.PriceScale = newScale
	p.price.XcpProfitReal = newProfitReal
	p.xcpPerShare = newPerShare
	poolLogger.Info().
		Str("pool", p.pair.ContractAddr).
		Str("price_scale", newScale.String()).
		Str("price_oracle", oracle.String()).
		Uint64("block_time", blockTime).
		Msg("Price scale repegged")
}

// Simulate answers Simulation{offer_asset} without touching state.
func (p *Pool) Simulate(env ledger.Env, offerAsset types.Asset) (*pool.SimulationResponse, error) {
	offerIdx, err := p.assetIndex(offerAsset.Info)
	if err != nil {
		return nil, err
	}
	if !offerAsset.Amount.IsPositive() {
		return nil, types.ErrInvalidZeroAmount
	}
	quote, err := p.computeSwap(env.BlockTime, p.reserves(), offerIdx, offerAsset.Amount)
	if err != nil {
		return nil, err
	}
	return &pool.SimulationResponse{
		ReturnAmount:     quote.ReturnAmount,
		SpreadAmount:     quote.SpreadAmount,
		CommissionAmount: quote.CommissionAmount,
	}, nil
}

// ReverseSimulate answers ReverseSimulation{ask_asset}: the offer required
// to receive askAsset net of commission. The fee is approximated at the
// pre-swap imbalance, and every rounding step goes against the trader, so
// offering the result never yields less than asked.
func (p *Pool) ReverseSimulate(env ledger.Env, askAsset types.Asset) (*pool.ReverseSimulationResponse, error) {
	askIdx, err := p.assetIndex(askAsset.Info)
	if err != nil {
		return nil, err
	}
	offerIdx := 1 - askIdx
	if !askAsset.Amount.IsPositive() {
		return nil, types.ErrInvalidZeroAmount
	}

	xp, err := p.toXp(p.reserves(), p.price.PriceScale)
	if err != nil {
		return nil, err
	}
	ag := p.CurrentAmpGamma(env.BlockTime)
	d, err := pclmath.NewtonD(xp[0], xp[1], ag.Amp, ag.Gamma)
	if err != nil {
		return nil, err
	}

	// the fee depends on the post-swap imbalance which depends on the gross
	// amount; one refinement pass closes the loop tightly enough that the
	// ceil rounding below covers the residual
	feeRate := pclmath.DynamicFee(xp[0], xp[1],
		p.params.MidFee, p.params.OutFee, p.params.FeeGamma)

	var gross sdkmath.Int
	var dxXp, dyXp sdkmath.LegacyDec
	for iter := 0; iter < 2; iter++ {
		gross = sdkmath.LegacyNewDecFromInt(askAsset.Amount).
			Quo(sdkmath.LegacyOneDec().Sub(feeRate)).
			Ceil().TruncateInt()

		grossNorm, err := p.normalize(gross, askIdx)
		if err != nil {
			return nil, err
		}
		dyXp = sdkmath.LegacyNewDecFromInt(grossNorm)
		if askIdx == 1 {
			dyXp = dyXp.Mul(p.price.PriceScale)
		}
		if dyXp.GTE(xp[askIdx]) {
			return nil, fmt.Errorf("%w: ask amount exceeds pool depth", types.ErrSwapNonPositiveReturn)
		}

		newAskXp := xp[askIdx].Sub(dyXp)
		newOfferXp, err := pclmath.NewtonY(d, newAskXp, ag.Amp, ag.Gamma)
		if err != nil {
			return nil, err
		}
		dxXp = newOfferXp.Sub(xp[offerIdx])
		if !dxXp.IsPositive() {
			return nil, types.ErrSwapNonPositiveReturn
		}

		var postXp [2]sdkmath.LegacyDec
		postXp[askIdx] = newAskXp
		postXp[offerIdx] = newOfferXp
		postFee := pclmath.DynamicFee(postXp[0], postXp[1],
			p.params.MidFee, p.params.OutFee, p.params.FeeGamma)
		if !postFee.GT(feeRate) {
			break
		}
		feeRate = postFee
	}

	offerNorm := p.fromXpValue(dxXp, offerIdx).Ceil().TruncateInt()
	offer, err := p.denormalize(offerNorm, offerIdx)
	if err != nil {
		return nil, err
	}
	if p.precisions[offerIdx] < p.greatestPrecision() {
		rescaled, err := p.normalize(offer, offerIdx)
		if err != nil {
			return nil, err
		}
		if rescaled.LT(offerNorm) {
			offer = offer.AddRaw(1)
		}
	}

	spreadXp := dxXp.Sub(dyXp)
	if spreadXp.IsNegative() {
		spreadXp = sdkmath.LegacyZeroDec()
	}
	spread, err := p.denormalizeDec(p.fromXpValue(spreadXp, askIdx), askIdx)
	if err != nil {
		return nil, err
	}

	return &pool.ReverseSimulationResponse{
		OfferAmount:      offer,
		SpreadAmount:     spread,
		CommissionAmount: gross.Sub(askAsset.Amount),
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
	price0, price1 := p.twapPrices()
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

// twapPrices derives both directed per-second prices from the last traded
// price. LastPrice quotes asset 0 per asset 1, so the asset0->asset1 leg is
// its inverse.
func (p *Pool) twapPrices() (sdkmath.Int, sdkmath.Int) {
	if !p.price.LastPrice.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt()
	}
	precision := sdkmath.LegacyNewDec(pool.TwapPrecision)
	price0 := precision.Quo(p.price.LastPrice).TruncateInt()
	price1 := precision.Mul(p.price.LastPrice).TruncateInt()
	return price0, price1
}

// accumulatePrices advances the TWAP accumulators at the price in effect
// before the current operation.
func (p *Pool) accumulatePrices(env ledger.Env) {
	price0, price1 := p.twapPrices()
	p.cfg.AccumulatePricesWith(env.BlockTime, price0, price1)
}
