package incentives

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/types"
)

// Position is one user's stake in one LP token. Indexes snapshot the
// per-reward global index at the last settlement; the gap times the staked
// amount is what the user is owed.
type Position struct {
	Amount  sdkmath.Int                  `json:"amount"`
	Indexes map[string]sdkmath.LegacyDec `json:"indexes"`
}

func newPosition() *Position {
	return &Position{
		Amount:  sdkmath.ZeroInt(),
		Indexes: make(map[string]sdkmath.LegacyDec),
	}
}

func (e *Engine) position(lp, user string) *Position {
	users, ok := e.positions[lp]
	if !ok {
		users = make(map[string]*Position)
		e.positions[lp] = users
	}
	pos, ok := users[user]
	if !ok {
		pos = newPosition()
		users[user] = pos
	}
	return pos
}

// Deposit stakes the attached LP tokens for the sender or a recipient.
// The LP coin must ride along with the message.
func (e *Engine) Deposit(env ledger.Env, info ledger.MsgInfo, lp, recipient string) error {
	amount := info.AttachedAmount(lp).Amount
	if !amount.IsPositive() {
		return types.ErrInvalidZeroAmount
	}
	if recipient == "" {
		recipient = info.Sender
	}
	return e.stake(env, lp, recipient, amount)
}

// DepositFor books an auto-staked amount for recipient; the pool has
// already minted the LP tokens to the engine. Satisfies the pools'
// AutoStaker interface.
func (e *Engine) DepositFor(env ledger.Env, lpDenom string, amount sdkmath.Int, recipient string) error {
	if !amount.IsPositive() {
		return types.ErrInvalidZeroAmount
	}
	return e.stake(env, lpDenom, recipient, amount)
}

func (e *Engine) stake(env ledger.Env, lp, user string, amount sdkmath.Int) error {
	e.updatePool(lp, env.BlockTime)
	pi := e.pools[lp]
	pos := e.position(lp, user)

	if err := e.settle(env, lp, user, pi, pos); err != nil {
		return err
	}

	pos.Amount = pos.Amount.Add(amount)
	pi.TotalStaked = pi.TotalStaked.Add(amount)

	engineLogger.Info().
		Str("lp", lp).
		Str("user", user).
		Str("amount", amount.String()).
		Str("total_staked", pi.TotalStaked.String()).
		Msg("LP staked")
	return nil
}

// Withdraw unstakes part of a position and pays out pending rewards.
func (e *Engine) Withdraw(env ledger.Env, sender, lp string, amount sdkmath.Int) error {
	if !amount.IsPositive() {
		return types.ErrInvalidZeroAmount
	}
	users, ok := e.positions[lp]
	if !ok {
		return types.ErrPositionDoesntExist
	}
	pos, ok := users[sender]
	if !ok {
		return types.ErrPositionDoesntExist
	}
	if amount.GT(pos.Amount) {
		return fmt.Errorf("%w: staked %s, requested %s", types.ErrAmountExceedsBalance, pos.Amount, amount)
	}

	e.updatePool(lp, env.BlockTime)
	pi := e.pools[lp]

	if err := e.settle(env, lp, sender, pi, pos); err != nil {
		return err
	}

	pos.Amount = pos.Amount.Sub(amount)
	pi.TotalStaked = pi.TotalStaked.Sub(amount)
	if pos.Amount.IsZero() {
		delete(users, sender)
	}

	err := e.bank.Apply([]ledger.Transfer{{
		From:  e.cfg.Addr,
		To:    sender,
		Asset: types.NewAsset(types.NewNativeAsset(lp), amount),
	}})
	if err != nil {
		return err
	}

	engineLogger.Info().
		Str("lp", lp).
		Str("user", sender).
		Str("amount", amount.String()).
		Msg("LP unstaked")
	return nil
}

// ClaimRewards settles pending rewards across several LP tokens at once.
// Listing the same token twice is rejected rather than silently deduped.
func (e *Engine) ClaimRewards(env ledger.Env, sender string, lpTokens []string) error {
	if len(lpTokens) == 0 {
		return types.ErrWrongAssetLength
	}
	seen := make(map[string]bool, len(lpTokens))
	for _, lp := range lpTokens {
		if seen[lp] {
			return fmt.Errorf("%w: %s listed twice", types.ErrDuplicatedPoolFound, lp)
		}
		seen[lp] = true
	}

	for _, lp := range lpTokens {
		users, ok := e.positions[lp]
		if !ok {
			return types.ErrPositionDoesntExist
		}
		pos, ok := users[sender]
		if !ok {
			return types.ErrPositionDoesntExist
		}
		e.updatePool(lp, env.BlockTime)
		if err := e.settle(env, lp, sender, e.pools[lp], pos); err != nil {
			return err
		}
	}
	return nil
}

// settle pays out every reward accrued since the user's last index
// snapshot and refreshes the snapshots. Emission rewards are paid from the
// vesting account, external rewards from the engine escrow. Fractions
// below one token unit stay behind.
func (e *Engine) settle(env ledger.Env, lp, user string, pi *PoolInfo, pos *Position) error {
	var transfers []ledger.Transfer
	rewards := append(append([]*RewardInfo{}, pi.Rewards...), pi.FinishedRewards...)
	for _, r := range rewards {
		key := r.Asset.ID()
		last, ok := pos.Indexes[key]
		if !ok {
			last = sdkmath.LegacyZeroDec()
		}
		pos.Indexes[key] = r.Index

		if pos.Amount.IsZero() || !r.Index.GT(last) {
			continue
		}
		pending := r.Index.Sub(last).MulInt(pos.Amount).TruncateInt()
		if !pending.IsPositive() {
			continue
		}
		from := e.cfg.Addr
		if !r.IsExternal {
			from = e.cfg.VestingAddr
		}
		transfers = append(transfers, ledger.Transfer{
			From:  from,
			To:    user,
			Asset: types.NewAsset(r.Asset, pending),
		})
	}
	if len(transfers) == 0 {
		return nil
	}
	if err := e.bank.Apply(transfers); err != nil {
		return err
	}
	for _, tr := range transfers {
		engineLogger.Debug().
			Str("lp", lp).
			Str("user", user).
			Str("reward", tr.Asset.String()).
			Msg("Reward paid")
	}
	return nil
}

// Deposited answers Deposit{lp, user}: the staked amount, zero when no
// position exists.
func (e *Engine) Deposited(lp, user string) sdkmath.Int {
	if users, ok := e.positions[lp]; ok {
		if pos, ok := users[user]; ok {
			return pos.Amount
		}
	}
	return sdkmath.ZeroInt()
}

// PendingRewards projects what a claim right now would pay, without
// persisting the accrual.
func (e *Engine) PendingRewards(env ledger.Env, lp, user string) []types.Asset {
	users, ok := e.positions[lp]
	if !ok {
		return nil
	}
	pos, ok := users[user]
	if !ok {
		return nil
	}

	var out []types.Asset
	for _, r := range e.PoolRewards(env, lp) {
		last, ok := pos.Indexes[r.Asset.ID()]
		if !ok {
			last = sdkmath.LegacyZeroDec()
		}
		if !r.Index.GT(last) {
			continue
		}
		pending := r.Index.Sub(last).MulInt(pos.Amount).TruncateInt()
		if pending.IsPositive() {
			out = append(out, types.NewAsset(r.Asset, pending))
		}
	}
	return out
}

// TotalStaked answers the pool-wide staked amount for an LP token.
func (e *Engine) TotalStaked(lp string) sdkmath.Int {
	if pi, ok := e.pools[lp]; ok {
		return pi.TotalStaked
	}
	return sdkmath.ZeroInt()
}
