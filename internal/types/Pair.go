/*

Pair identity types. A pair is a deployed pool instance: its contract address,
its two asset infos, the pool flavour, and the denom of the LP share token
minted for its liquidity providers.

*/

package types

import "strings"

// PairType is the pool flavour tag. Custom flavours carry an arbitrary name
// prefixed with "custom-" so they stay distinguishable from built-ins.
type PairType string

const (
	PairTypeXyk          PairType = "xyk"
	PairTypeStable       PairType = "stable"
	PairTypeConcentrated PairType = "concentrated"
)

// CustomPairType builds a custom flavour tag.
func CustomPairType(name string) PairType {
	return PairType("custom-" + name)
}

// IsCustom reports whether the pair type is a custom flavour.
func (p PairType) IsCustom() bool {
	return strings.HasPrefix(string(p), "custom-")
}

// PairInfo identifies one deployed pool.
type PairInfo struct {
	ContractAddr   string       `json:"contract_addr"`
	AssetInfos     [2]AssetInfo `json:"asset_infos"`
	PairType       PairType     `json:"pair_type"`
	LiquidityToken string       `json:"liquidity_token"`
}

// Contains reports whether one of the pair's assets matches info.
func (p PairInfo) Contains(info AssetInfo) bool {
	return p.AssetInfos[0].Equal(info) || p.AssetInfos[1].Equal(info)
}
