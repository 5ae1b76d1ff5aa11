/*

This file contains the default parameters a deployment starts from. Fee
rates follow the levels the major Cosmos DEX deployments converged on;
the concentrated-pool defaults are the parameter set commonly used for
volatile large-cap pairs.

*/

package config

import (
	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/pool/pcl"
	"github.com/keelswap/keel/internal/types"
)

// DefaultFeeInfos is the factory fee table applied at startup. The maker
// rate is the fraction of the commission forwarded to the fee collector.
func DefaultFeeInfos(makerAddr string) map[types.PairType]ledger.FeeInfo {
	return map[types.PairType]ledger.FeeInfo{
		types.PairTypeXyk: {
			TotalFeeRate: sdkmath.LegacyMustNewDecFromStr("0.003"),
			MakerFeeRate: sdkmath.LegacyMustNewDecFromStr("0.3333"),
			FeeAddress:   makerAddr,
		},
		types.PairTypeStable: {
			TotalFeeRate: sdkmath.LegacyMustNewDecFromStr("0.0005"),
			MakerFeeRate: sdkmath.LegacyMustNewDecFromStr("0.5"),
			FeeAddress:   makerAddr,
		},
		// concentrated pools price their fee dynamically; the factory rate
		// only feeds the maker split
		types.PairTypeConcentrated: {
			TotalFeeRate: sdkmath.LegacyZeroDec(),
			MakerFeeRate: sdkmath.LegacyMustNewDecFromStr("0.5"),
			FeeAddress:   makerAddr,
		},
	}
}

// DefaultConcentratedParams is the starting parameter set for volatile
// large-cap concentrated pairs.
var DefaultConcentratedParams = pcl.PoolParams{
	MidFee:               sdkmath.LegacyMustNewDecFromStr("0.0026"),
	OutFee:               sdkmath.LegacyMustNewDecFromStr("0.0045"),
	FeeGamma:             sdkmath.LegacyMustNewDecFromStr("0.00023"),
	RepegProfitThreshold: sdkmath.LegacyMustNewDecFromStr("0.000002"),
	MinPriceScaleDelta:   sdkmath.LegacyMustNewDecFromStr("0.000146"),
	AllowedXcpProfitDrop: sdkmath.LegacyMustNewDecFromStr("0.000001"),
	MaHalfTime:           600,
}

// DefaultConcentratedAmpGamma is the starting curve shape for volatile
// large-cap concentrated pairs.
var DefaultConcentratedAmpGamma = pcl.AmpGamma{
	Amp:   sdkmath.LegacyNewDec(40),
	Gamma: sdkmath.LegacyMustNewDecFromStr("0.000145"),
}

// DenomPrecisions maps well-known denoms to their display precision.
// Concentrated pools need these to normalise reserves; denoms missing
// here default to 6.
var DenomPrecisions = map[string]uint8{
	"uluna":  6,
	"uusdc":  6,
	"uusdt":  6,
	"uatom":  6,
	"uosmo":  6,
	"untrn":  6,
	"inj":    18,
	"wbtc":   8,
	"weth":   18,
	"uastro": 6,
}

// PrecisionFor returns the registered precision for denom, or 6.
func PrecisionFor(denom string) uint8 {
	if p, ok := DenomPrecisions[denom]; ok {
		return p
	}
	return 6
}
