/*

Asset primitives shared by every pool and the incentives engine. An asset is
either a native coin (identified by denom) or a token contract (identified by
contract address); the tagged shape mirrors the wire-level JSON used by the
factory and pair contracts.

*/

package types

import (
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// NativeToken identifies a coin handled by the host bank module.
type NativeToken struct {
	Denom string `json:"denom"`
}

// Token identifies a contract-managed (wrapped) token.
type Token struct {
	ContractAddr string `json:"contract_addr"`
}

// AssetInfo is the tagged variant {native(denom) | token(contract_addr)}.
// Exactly one of the two pointers is set on a valid value.
type AssetInfo struct {
	NativeToken *NativeToken `json:"native_token,omitempty"`
	Token       *Token       `json:"token,omitempty"`
}

// NewNativeAsset builds an AssetInfo for a native denom.
func NewNativeAsset(denom string) AssetInfo {
	return AssetInfo{NativeToken: &NativeToken{Denom: denom}}
}

// NewTokenAsset builds an AssetInfo for a token contract.
func NewTokenAsset(contractAddr string) AssetInfo {
	return AssetInfo{Token: &Token{ContractAddr: contractAddr}}
}

// IsNative reports whether the asset lives in the host bank module.
func (a AssetInfo) IsNative() bool {
	return a.NativeToken != nil
}

// ID returns the canonical identifier: the denom for native assets, the
// contract address for tokens. IDs are unique across both variants because
// contract addresses are bech32 strings and never valid denoms.
func (a AssetInfo) ID() string {
	if a.NativeToken != nil {
		return a.NativeToken.Denom
	}
	if a.Token != nil {
		return a.Token.ContractAddr
	}
	return ""
}

// Equal compares two asset infos by variant and identifier.
func (a AssetInfo) Equal(other AssetInfo) bool {
	return a.IsNative() == other.IsNative() && a.ID() == other.ID()
}

func (a AssetInfo) String() string {
	return a.ID()
}

// Validate rejects malformed infos: both or neither variant set, or an
// empty identifier.
func (a AssetInfo) Validate() error {
	if a.NativeToken != nil && a.Token != nil {
		return fmt.Errorf("%w: both native and token variants set", ErrInvalidAsset)
	}
	if a.ID() == "" {
		return fmt.Errorf("%w: empty asset identifier", ErrInvalidAsset)
	}
	if strings.TrimSpace(a.ID()) != a.ID() {
		return fmt.Errorf("%w: identifier has surrounding whitespace", ErrInvalidAsset)
	}
	return nil
}

// Asset couples an AssetInfo with an amount.
type Asset struct {
	Info   AssetInfo   `json:"info"`
	Amount sdkmath.Int `json:"amount"`
}

// NewAsset builds an Asset from an info and amount.
func NewAsset(info AssetInfo, amount sdkmath.Int) Asset {
	return Asset{Info: info, Amount: amount}
}

// NewNativeCoinAsset converts an sdk.Coin into a native Asset.
func NewNativeCoinAsset(coin sdk.Coin) Asset {
	return Asset{Info: NewNativeAsset(coin.Denom), Amount: coin.Amount}
}

// ToCoin converts a native asset into an sdk.Coin. Token assets cannot be
// represented as coins and return an error.
func (a Asset) ToCoin() (sdk.Coin, error) {
	if !a.Info.IsNative() {
		return sdk.Coin{}, fmt.Errorf("%w: token asset %s cannot be converted to a coin", ErrInvalidAsset, a.Info.ID())
	}
	return sdk.Coin{Denom: a.Info.NativeToken.Denom, Amount: a.Amount}, nil
}

func (a Asset) String() string {
	return a.Amount.String() + a.Info.ID()
}

// ValidateAssetInfos checks a creation-time asset-info pair: exactly two
// entries, each valid, and no duplicates.
func ValidateAssetInfos(infos []AssetInfo) error {
	if len(infos) != 2 {
		return ErrInvalidNumberOfAssets
	}
	for _, info := range infos {
		if err := info.Validate(); err != nil {
			return err
		}
	}
	if infos[0].Equal(infos[1]) {
		return ErrDoublingAssets
	}
	return nil
}
