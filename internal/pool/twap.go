package pool

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// twapModulus is 2^128: the accumulators wrap on u128 by contract.
var twapModulus = sdkmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128))

// AccumulatePrices advances the TWAP accumulators from the pre-operation
// reserves. Skips entirely when no time elapsed; advances only the clock
// when either reserve is empty.
func (c *Config) AccumulatePrices(blockTime uint64, reserve0, reserve1 sdkmath.Int) {
	if blockTime <= c.BlockTimeLast {
		if c.BlockTimeLast == 0 {
			c.BlockTimeLast = blockTime
		}
		return
	}
	elapsed := sdkmath.NewIntFromUint64(blockTime - c.BlockTimeLast)
	c.BlockTimeLast = blockTime

	if reserve0.IsZero() || reserve1.IsZero() {
		return
	}

	precision := sdkmath.NewInt(TwapPrecision)
	c.Price0CumulativeLast = wrappingAdd(c.Price0CumulativeLast,
		elapsed.Mul(precision).Mul(reserve1).Quo(reserve0))
	c.Price1CumulativeLast = wrappingAdd(c.Price1CumulativeLast,
		elapsed.Mul(precision).Mul(reserve0).Quo(reserve1))
}

// AccumulatePricesWith advances the accumulators from externally derived
// per-second price quantities, used by pool flavours whose spot price is not
// a raw reserve ratio.
func (c *Config) AccumulatePricesWith(blockTime uint64, price0, price1 sdkmath.Int) {
	if blockTime <= c.BlockTimeLast {
		if c.BlockTimeLast == 0 {
			c.BlockTimeLast = blockTime
		}
		return
	}
	elapsed := sdkmath.NewIntFromUint64(blockTime - c.BlockTimeLast)
	c.BlockTimeLast = blockTime

	if price0.IsZero() || price1.IsZero() {
		return
	}

	c.Price0CumulativeLast = wrappingAdd(c.Price0CumulativeLast, elapsed.Mul(price0))
	c.Price1CumulativeLast = wrappingAdd(c.Price1CumulativeLast, elapsed.Mul(price1))
}

func wrappingAdd(a, b sdkmath.Int) sdkmath.Int {
	return a.Add(b).Mod(twapModulus)
}
