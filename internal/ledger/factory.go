package ledger

import (
	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/types"
)

// FeeInfo is the fee parameterisation the factory hands a pool: the total
// commission rate charged on swaps and the fraction of that commission
// forwarded to the protocol fee address.
type FeeInfo struct {
	TotalFeeRate sdkmath.LegacyDec
	MakerFeeRate sdkmath.LegacyDec
	FeeAddress   string
}

// Factory is the in-process view of the pair registry: per-pair-type fee
// parameters and the pair-type blacklist. Pools only read from it.
type Factory struct {
	addr      string
	fees      map[types.PairType]FeeInfo
	blacklist map[types.PairType]bool
}

// NewFactory builds a factory view at the given address.
func NewFactory(addr string) *Factory {
	return &Factory{
		addr:      addr,
		fees:      make(map[types.PairType]FeeInfo),
		blacklist: make(map[types.PairType]bool),
	}
}

// Addr returns the factory contract address.
func (f *Factory) Addr() string {
	return f.addr
}

// SetFeeInfo registers fee parameters for a pair type.
func (f *Factory) SetFeeInfo(pairType types.PairType, info FeeInfo) {
	f.fees[pairType] = info
}

// FeeInfo returns the fee parameters for a pair type; an unregistered type
// gets zero fees and no maker cut.
func (f *Factory) FeeInfo(pairType types.PairType) FeeInfo {
	if info, ok := f.fees[pairType]; ok {
		return info
	}
	return FeeInfo{
		TotalFeeRate: sdkmath.LegacyZeroDec(),
		MakerFeeRate: sdkmath.LegacyZeroDec(),
	}
}

// SetPairTypeBlacklisted toggles a pair type's blacklist entry.
func (f *Factory) SetPairTypeBlacklisted(pairType types.PairType, blocked bool) {
	f.blacklist[pairType] = blocked
}

// IsPairTypeBlacklisted reports whether a pair type is blacklisted.
func (f *Factory) IsPairTypeBlacklisted(pairType types.PairType) bool {
	return f.blacklist[pairType]
}
