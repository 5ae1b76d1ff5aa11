package pool

import (
	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/types"
)

// SimulationResponse answers Simulation{offer_asset}.
type SimulationResponse struct {
	ReturnAmount     sdkmath.Int `json:"return_amount"`
	SpreadAmount     sdkmath.Int `json:"spread_amount"`
	CommissionAmount sdkmath.Int `json:"commission_amount"`
}

// ReverseSimulationResponse answers ReverseSimulation{ask_asset}.
type ReverseSimulationResponse struct {
	OfferAmount      sdkmath.Int `json:"offer_amount"`
	SpreadAmount     sdkmath.Int `json:"spread_amount"`
	CommissionAmount sdkmath.Int `json:"commission_amount"`
}

// PoolResponse answers Pool{}: current reserves and circulating LP supply.
type PoolResponse struct {
	Assets     [2]types.Asset `json:"assets"`
	TotalShare sdkmath.Int    `json:"total_share"`
}

// CumulativePrice is one directed accumulator sample.
type CumulativePrice struct {
	From       types.AssetInfo `json:"from"`
	To         types.AssetInfo `json:"to"`
	Cumulative sdkmath.Int     `json:"cumulative"`
}

// CumulativePricesResponse answers CumulativePrices{}.
type CumulativePricesResponse struct {
	Assets           [2]types.Asset     `json:"assets"`
	TotalShare       sdkmath.Int        `json:"total_share"`
	CumulativePrices [2]CumulativePrice `json:"cumulative_prices"`
}

// SwapOutcome summarises an executed swap for receipts and logs.
type SwapOutcome struct {
	OfferAsset       types.Asset
	AskAsset         types.Asset
	SpreadAmount     sdkmath.Int
	CommissionAmount sdkmath.Int
	MakerFeeAmount   sdkmath.Int
	ShareFeeAmount   sdkmath.Int
	TaxAmount        sdkmath.Int
	Receiver         string
}
