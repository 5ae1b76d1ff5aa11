package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/types"
)

// FeeShare is the optional cut of the swap commission routed to an external
// recipient, in basis points of the commission.
type FeeShare struct {
	Bps       uint16 `json:"bps"`
	Recipient string `json:"recipient"`
}

// Validate bounds the share at MaxFeeShareBps and requires a recipient.
func (f FeeShare) Validate() error {
	if f.Bps == 0 || f.Bps > MaxFeeShareBps {
		return fmt.Errorf("%w: %d bps, maximum %d", types.ErrFeeShareOutOfBounds, f.Bps, MaxFeeShareBps)
	}
	if f.Recipient == "" {
		return fmt.Errorf("%w: empty recipient", types.ErrFeeShareOutOfBounds)
	}
	return nil
}

// Config is the state every pool flavour persists: the factory reference,
// the TWAP accumulators, and the balance-tracking flag.
type Config struct {
	FactoryAddr          string
	BlockTimeLast        uint64
	Price0CumulativeLast sdkmath.Int
	Price1CumulativeLast sdkmath.Int
	TrackAssetBalances   bool
	FeeShare             *FeeShare
}

// NewConfig initialises a pool config with zeroed accumulators.
func NewConfig(factoryAddr string, trackBalances bool) Config {
	return Config{
		FactoryAddr:          factoryAddr,
		Price0CumulativeLast: sdkmath.ZeroInt(),
		Price1CumulativeLast: sdkmath.ZeroInt(),
		TrackAssetBalances:   trackBalances,
	}
}
