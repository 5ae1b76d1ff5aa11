/*

Shared chassis for the pool family: common config, TWAP accrual, ownership
transfer, spread and slippage assertions, and commission splitting. The
concrete pool flavours (xyk, stable, pcl) build on top of this package.

*/

package pool

import (
	sdkmath "cosmossdk.io/math"
)

const (
	// MinimumLiquidityAmount is locked to the pool itself on the first
	// provide so the share supply can never be fully drained.
	MinimumLiquidityAmount = 1000

	// TwapPrecision is the fixed 6-digit precision of the cumulative price
	// accumulators.
	TwapPrecision = 1_000_000

	// MaxFeeShareBps caps the optional commission share cut.
	MaxFeeShareBps = 1000
)

var (
	// DefaultSlippage is the max spread applied when the caller supplies
	// none.
	DefaultSlippage = sdkmath.LegacyNewDecWithPrec(5, 3) // 0.005

	// MaxAllowedSlippage bounds both max_spread and slippage_tolerance.
	MaxAllowedSlippage = sdkmath.LegacyNewDecWithPrec(5, 1) // 0.5
)
