package pool

import (
	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/types"
)

// CommissionSplit is the outcome of carving the swap commission: the
// fee-share cut, the maker cut, and the transfers realising both. Whatever
// remains stays in the pool backing the LP shares.
type CommissionSplit struct {
	ShareFee  sdkmath.Int
	MakerFee  sdkmath.Int
	Transfers []ledger.Transfer
}

// SplitCommission carves commission into the fee-share cut (bps of the full
// commission) and the maker cut (maker rate applied to the remainder). Both
// floor, so dust stays with the pool.
func SplitCommission(commission sdkmath.Int, askInfo types.AssetInfo,
	feeShare *FeeShare, makerRate sdkmath.LegacyDec, makerAddr, poolAddr string) CommissionSplit {

	split := CommissionSplit{
		ShareFee: sdkmath.ZeroInt(),
		MakerFee: sdkmath.ZeroInt(),
	}
	if commission.IsZero() {
		return split
	}

	remaining := commission
	if feeShare != nil {
		split.ShareFee = commission.MulRaw(int64(feeShare.Bps)).QuoRaw(10_000)
		if split.ShareFee.IsPositive() {
			split.Transfers = append(split.Transfers, ledger.Transfer{
				From:  poolAddr,
				To:    feeShare.Recipient,
				Asset: types.NewAsset(askInfo, split.ShareFee),
			})
			remaining = remaining.Sub(split.ShareFee)
		}
	}

	if makerAddr != "" && makerRate.IsPositive() {
		split.MakerFee = makerRate.MulInt(remaining).TruncateInt()
		if split.MakerFee.IsPositive() {
			split.Transfers = append(split.Transfers, ledger.Transfer{
				From:  poolAddr,
				To:    makerAddr,
				Asset: types.NewAsset(askInfo, split.MakerFee),
			})
		}
	}
	return split
}
