package pcl

import (
	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/types"
)

// Parameter limits. Amp and gamma bound the curve family; the ma half time
// is capped at a week so the oracle cannot be frozen.
var (
	ampMin = sdkmath.LegacyOneDec()
	ampMax = sdkmath.LegacyNewDec(3000)

	gammaMin = sdkmath.LegacyNewDecWithPrec(1, 8) // 1e-8
	gammaMax = sdkmath.LegacyMustNewDecFromStr("0.02")

	feeMin = sdkmath.LegacyNewDecWithPrec(1, 8)
	feeMax = sdkmath.LegacyMustNewDecFromStr("0.5")

	maHalfTimeMin = uint64(1)
	maHalfTimeMax = uint64(7 * 24 * 3600)
)

// PoolParams is the tunable fee and repeg parameterisation of a
// concentrated pool.
type PoolParams struct {
	MidFee               sdkmath.LegacyDec `json:"mid_fee"`
	OutFee               sdkmath.LegacyDec `json:"out_fee"`
	FeeGamma             sdkmath.LegacyDec `json:"fee_gamma"`
	RepegProfitThreshold sdkmath.LegacyDec `json:"repeg_profit_threshold"`
	MinPriceScaleDelta   sdkmath.LegacyDec `json:"min_price_scale_delta"`
	AllowedXcpProfitDrop sdkmath.LegacyDec `json:"allowed_xcp_profit_drop"`
	MaHalfTime           uint64            `json:"ma_half_time"`
}

// Validate checks every parameter against its limits.
func (p PoolParams) Validate() error {
	if p.MidFee.LT(feeMin) || p.MidFee.GT(feeMax) {
		return &types.IncorrectPoolParam{Name: "mid_fee", Min: feeMin.String(), Max: feeMax.String()}
	}
	if p.OutFee.LT(p.MidFee) || p.OutFee.GT(feeMax) {
		return &types.IncorrectPoolParam{Name: "out_fee", Min: p.MidFee.String(), Max: feeMax.String()}
	}
	if !p.FeeGamma.IsPositive() || p.FeeGamma.GT(sdkmath.LegacyOneDec()) {
		return &types.IncorrectPoolParam{Name: "fee_gamma", Min: "0", Max: "1"}
	}
	if p.RepegProfitThreshold.IsNegative() || p.RepegProfitThreshold.GT(sdkmath.LegacyMustNewDecFromStr("0.1")) {
		return &types.IncorrectPoolParam{Name: "repeg_profit_threshold", Min: "0", Max: "0.1"}
	}
	if !p.MinPriceScaleDelta.IsPositive() || p.MinPriceScaleDelta.GT(sdkmath.LegacyOneDec()) {
		return &types.IncorrectPoolParam{Name: "min_price_scale_delta", Min: "0", Max: "1"}
	}
	if p.AllowedXcpProfitDrop.IsNegative() || p.AllowedXcpProfitDrop.GT(sdkmath.LegacyOneDec()) {
		return &types.IncorrectPoolParam{Name: "allowed_xcp_profit_drop", Min: "0", Max: "1"}
	}
	if p.MaHalfTime < maHalfTimeMin || p.MaHalfTime > maHalfTimeMax {
		return &types.IncorrectPoolParam{Name: "ma_half_time", Min: "1", Max: "604800"}
	}
	return nil
}

// UpdateParamsMsg patches a subset of the fee and repeg parameters; nil
// fields keep their current value.
type UpdateParamsMsg struct {
	MidFee               *sdkmath.LegacyDec
	OutFee               *sdkmath.LegacyDec
	FeeGamma             *sdkmath.LegacyDec
	RepegProfitThreshold *sdkmath.LegacyDec
	MinPriceScaleDelta   *sdkmath.LegacyDec
	AllowedXcpProfitDrop *sdkmath.LegacyDec
	MaHalfTime           *uint64
}

func (p PoolParams) apply(msg UpdateParamsMsg) PoolParams {
	if msg.MidFee != nil {
		p.MidFee = *msg.MidFee
	}
	if msg.OutFee != nil {
		p.OutFee = *msg.OutFee
	}
	if msg.FeeGamma != nil {
		p.FeeGamma = *msg.FeeGamma
	}
	if msg.RepegProfitThreshold != nil {
		p.RepegProfitThreshold = *msg.RepegProfitThreshold
	}
	if msg.MinPriceScaleDelta != nil {
		p.MinPriceScaleDelta = *msg.MinPriceScaleDelta
	}
	if msg.AllowedXcpProfitDrop != nil {
		p.AllowedXcpProfitDrop = *msg.AllowedXcpProfitDrop
	}
	if msg.MaHalfTime != nil {
		p.MaHalfTime = *msg.MaHalfTime
	}
	return p
}
