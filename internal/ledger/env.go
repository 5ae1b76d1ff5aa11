/*

The ledger package models the deterministic transactional host the pools run
inside: account balances, LP denom supply, block context, and the factory
registry that hands out fee parameters. Every pool operation is a total
function from (state, message, attached funds) to (state', transfers); the
bank applies transfer batches atomically so a failed operation leaves no
trace.

*/

package ledger

import (
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Env is the block context an operation executes under. BlockTime is unix
// seconds and non-decreasing across blocks.
type Env struct {
	BlockHeight uint64
	BlockTime   uint64
	Contract    string
}

// MsgInfo identifies the caller and the funds attached to the call.
type MsgInfo struct {
	Sender string
	Funds  sdk.Coins
}

// AttachedAmount returns the amount of denom attached to the message, zero
// if absent.
func (m MsgInfo) AttachedAmount(denom string) sdk.Coin {
	for _, c := range m.Funds {
		if c.Denom == denom {
			return c
		}
	}
	return sdk.Coin{Denom: denom, Amount: sdkmath.ZeroInt()}
}
