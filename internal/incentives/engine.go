package incentives

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/logger"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/types"
)

var engineLogger = logger.GetForComponent("incentives")

// Config is the engine's static wiring. Emission rewards are paid from the
// vesting account; external rewards from the engine's own escrow.
type Config struct {
	Addr               string
	Owner              string
	Guardian           string
	VestingAddr        string
	EmissionToken      types.AssetInfo
	TokensPerSecond    sdkmath.LegacyDec
	IncentivizationFee sdk.Coin
	FeeReceiver        string
}

// Engine distributes protocol emissions and external reward schedules
// across staked LP positions.
type Engine struct {
	cfg     Config
	owner   pool.Ownership
	bank    *ledger.Bank
	factory *ledger.Factory

	pools     map[string]*PoolInfo
	positions map[string]map[string]*Position
	// lp denom -> pair metadata, fed by the host when pools are created
	pairs map[string]types.PairInfo

	active     []PoolAllocation
	totalAlloc sdkmath.Int
	blocked    map[string]types.AssetInfo
}

// NewEngine wires the engine against the ledger.
func NewEngine(cfg Config, factory *ledger.Factory, bank *ledger.Bank) (*Engine, error) {
	if cfg.TokensPerSecond.IsNil() || cfg.TokensPerSecond.IsNegative() {
		return nil, &types.IncorrectPoolParam{Name: "tokens_per_second", Min: "0", Max: "inf"}
	}
	e := &Engine{
		cfg:         cfg,
		owner:       pool.NewOwnership(cfg.Owner),
		bank:        bank,
		factory:     factory,
		pools:       make(map[string]*PoolInfo),
		positions:   make(map[string]map[string]*Position),
		pairs:       make(map[string]types.PairInfo),
		totalAlloc:  sdkmath.ZeroInt(),
		blocked:     make(map[string]types.AssetInfo),
	}
	engineLogger.Info().
		Str("addr", cfg.Addr).
		Str("emission_token", cfg.EmissionToken.ID()).
		Str("tokens_per_second", cfg.TokensPerSecond.String()).
		Msg("Incentives engine instantiated")
	return e, nil
}

// Addr returns the engine account; pools use it as the auto-stake target.
func (e *Engine) Addr() string {
	return e.cfg.Addr
}

// Config exposes the engine wiring for queries.
func (e *Engine) Config() Config {
	return e.cfg
}

// RegisterPair teaches the engine the pair behind an LP denom so blocked
// token and pair-type screening can inspect it.
func (e *Engine) RegisterPair(pair types.PairInfo) {
	e.pairs[pair.LiquidityToken] = pair
}

// poolInfo returns (creating on first use) the state for an LP token.
func (e *Engine) poolInfo(lp string, now uint64) *PoolInfo {
	pi, ok := e.pools[lp]
	if !ok {
		pi = newPoolInfo(now)
		e.pools[lp] = pi
	}
	return pi
}

func (e *Engine) allocPoints(lp string) sdkmath.Int {
	for _, ap := range e.active {
		if ap.LpToken == lp {
			return ap.AllocPoints
		}
	}
	return sdkmath.ZeroInt()
}

// updatePool advances the lazy accrual of every reward on lp up to now.
func (e *Engine) updatePool(lp string, now uint64) {
	pi := e.poolInfo(lp, now)
	if now <= pi.LastUpdateTs {
		return
	}
	from, to := pi.LastUpdateTs, now

	for _, r := range pi.Rewards {
		delta := r.emitted(from, to)
		if !r.IsExternal {
			delta = delta.Add(e.emissionDelta(lp, from, to))
		}
		r.accrue(delta, pi.TotalStaked)
	}

	// expired externals free their reward-token slot; the frozen index
	// stays claimable
	pi.finishRewards(now)

	// the emission reward entry materialises on the first accrual of an
	// active pool
	alloc := e.allocPoints(lp)
	if alloc.IsPositive() && pi.reward(e.cfg.EmissionToken) == nil {
		r := newRewardInfo(e.cfg.EmissionToken, false)
		r.accrue(e.emissionDelta(lp, from, to), pi.TotalStaked)
		pi.Rewards = append(pi.Rewards, r)
	}

	pi.LastUpdateTs = now
}

// emissionDelta is the protocol emission owed to lp over [from, to).
func (e *Engine) emissionDelta(lp string, from, to uint64) sdkmath.LegacyDec {
	alloc := e.allocPoints(lp)
	if !alloc.IsPositive() || !e.totalAlloc.IsPositive() || to <= from {
		return sdkmath.LegacyZeroDec()
	}
	return e.cfg.TokensPerSecond.
		MulInt64(int64(to - from)).
		MulInt(alloc).
		QuoInt(e.totalAlloc)
}

// Incentivize funds an external reward schedule on lp. The schedule starts
// at the next epoch boundary and spans durationPeriods whole epochs; the
// per-second rate is the attached amount spread over that window. The
// incentivization fee is due only when the reward token is new to the pool.
func (e *Engine) Incentivize(env ledger.Env, info ledger.MsgInfo, lp string,
	reward types.Asset, durationPeriods uint64) error {

	if durationPeriods == 0 {
		return &types.IncorrectPoolParam{Name: "duration_periods", Min: "1", Max: "inf"}
	}
	if !reward.Amount.IsPositive() {
		return types.ErrInvalidZeroAmount
	}
	if _, ok := e.blocked[reward.Info.ID()]; ok {
		return fmt.Errorf("%w: %s", types.ErrBlockedToken, reward.Info.ID())
	}

	e.updatePool(lp, env.BlockTime)
	pi := e.pools[lp]

	existing := pi.reward(reward.Info)
	if existing == nil && len(pi.Rewards) >= MaxRewardTokens {
		return types.ErrTooManyRewardTokens
	}

	if reward.Info.IsNative() {
		required := reward.Amount
		// the fee coin rides along in the same denom and must not eat
		// into the escrowed schedule
		if fee := e.cfg.IncentivizationFee; existing == nil && !fee.IsNil() &&
			fee.Amount.IsPositive() && fee.Denom == reward.Info.NativeToken.Denom {
			required = required.Add(fee.Amount)
		}
		attached := info.AttachedAmount(reward.Info.NativeToken.Denom)
		if attached.Amount.LT(required) {
			return fmt.Errorf("%w: schedule and fee need %s, attached %s of %s",
				types.ErrInvalidAsset, required, attached.Amount, reward.Info.ID())
		}
	}

	if existing == nil {
		if err := e.collectIncentivizationFee(info); err != nil {
			return err
		}
	}

	if !reward.Info.IsNative() {
		err := e.bank.Apply([]ledger.Transfer{{
			From:  info.Sender,
			To:    e.cfg.Addr,
			Asset: reward,
		}})
		if err != nil {
			return err
		}
	}

	start := nextEpochBoundary(env.BlockTime)
	end := start + durationPeriods*EpochLength
	rps := sdkmath.LegacyNewDecFromInt(reward.Amount).QuoInt64(int64(end - start))

	if existing == nil {
		// a token seen before continues from its frozen index, so user
		// snapshots keep lining up
		if existing = pi.takeFinished(reward.Info); existing == nil {
			existing = newRewardInfo(reward.Info, !reward.Info.Equal(e.cfg.EmissionToken))
		}
		pi.Rewards = append(pi.Rewards, existing)
	}
	existing.Schedules = append(existing.Schedules, Schedule{Rps: rps, StartTs: start, EndTs: end})

	engineLogger.Info().
		Str("lp", lp).
		Str("reward", reward.String()).
		Uint64("start_ts", start).
		Uint64("end_ts", end).
		Str("rps", rps.String()).
		Msg("External incentive scheduled")
	return nil
}

func (e *Engine) collectIncentivizationFee(info ledger.MsgInfo) error {
	fee := e.cfg.IncentivizationFee
	if fee.IsNil() || fee.Amount.IsZero() {
		return nil
	}
	attached := info.AttachedAmount(fee.Denom)
	if attached.Amount.LT(fee.Amount) {
		return fmt.Errorf("%w: %s required", types.ErrIncentivizationFeeExpected, fee)
	}
	return e.bank.Apply([]ledger.Transfer{{
		From:  e.cfg.Addr,
		To:    e.cfg.FeeReceiver,
		Asset: types.NewAsset(types.NewNativeAsset(fee.Denom), fee.Amount),
	}})
}

// RemoveRewardFromPool deregisters an external reward; the unspent future
// emission goes to receiver. With bypassUpcoming only the schedules already
// running are cut, upcoming ones survive. Accrued indexes stay claimable.
func (e *Engine) RemoveRewardFromPool(env ledger.Env, sender, lp string,
	rewardInfo types.AssetInfo, receiver string, bypassUpcoming bool) error {

	if err := e.owner.AssertOwner(sender); err != nil {
		return err
	}
	e.updatePool(lp, env.BlockTime)
	pi := e.pools[lp]

	r := pi.reward(rewardInfo)
	if r == nil || !r.IsExternal {
		return fmt.Errorf("%w: no external reward %s on %s", types.ErrNonSupported, rewardInfo.ID(), lp)
	}

	refund := r.unspent(env.BlockTime, bypassUpcoming).TruncateInt()

	if bypassUpcoming {
		var kept []Schedule
		for _, s := range r.Schedules {
			if s.StartTs > env.BlockTime {
				kept = append(kept, s)
			}
		}
		r.Schedules = kept
	} else {
		r.Schedules = nil
	}

	if len(r.Schedules) == 0 {
		pi.removeReward(rewardInfo)
		if !r.Index.IsZero() || !r.Orphaned.IsZero() {
			pi.FinishedRewards = append(pi.FinishedRewards, r)
		}
	}

	if refund.IsPositive() {
		err := e.bank.Apply([]ledger.Transfer{{
			From:  e.cfg.Addr,
			To:    receiver,
			Asset: types.NewAsset(rewardInfo, refund),
		}})
		if err != nil {
			return err
		}
	}
	engineLogger.Info().
		Str("lp", lp).
		Str("reward", rewardInfo.ID()).
		Str("refund", refund.String()).
		Msg("External reward removed")
	return nil
}

// ClaimOrphanedRewards sends emissions that accrued with no stake to
// receiver; owner only. A cap bounds the amount taken per reward.
func (e *Engine) ClaimOrphanedRewards(sender, receiver string, capPerReward *sdkmath.Int) error {
	if err := e.owner.AssertOwner(sender); err != nil {
		return err
	}

	var transfers []ledger.Transfer
	for _, pi := range e.pools {
		rewards := append(append([]*RewardInfo{}, pi.Rewards...), pi.FinishedRewards...)
		for _, r := range rewards {
			amount := r.Orphaned.TruncateInt()
			if capPerReward != nil && amount.GT(*capPerReward) {
				amount = *capPerReward
			}
			if !amount.IsPositive() {
				continue
			}
			r.Orphaned = r.Orphaned.Sub(sdkmath.LegacyNewDecFromInt(amount))
			from := e.cfg.Addr
			if !r.IsExternal {
				from = e.cfg.VestingAddr
			}
			transfers = append(transfers, ledger.Transfer{
				From:  from,
				To:    receiver,
				Asset: types.NewAsset(r.Asset, amount),
			})
		}
	}
	if len(transfers) == 0 {
		return types.ErrNoOrphanedRewards
	}
	return e.bank.Apply(transfers)
}

// SetTokensPerSecond changes the protocol emission rate; owner only. Every
// active pool is checkpointed at the old rate first.
func (e *Engine) SetTokensPerSecond(env ledger.Env, sender string, amount sdkmath.LegacyDec) error {
	if err := e.owner.AssertOwner(sender); err != nil {
		return err
	}
	if amount.IsNegative() {
		return &types.IncorrectPoolParam{Name: "tokens_per_second", Min: "0", Max: "inf"}
	}
	for _, ap := range e.active {
		e.updatePool(ap.LpToken, env.BlockTime)
	}
	e.cfg.TokensPerSecond = amount
	return nil
}

// PoolAllocation assigns emission weight to one LP token.
type PoolAllocation struct {
	LpToken     string      `json:"lp_token"`
	AllocPoints sdkmath.Int `json:"alloc_points"`
}

// SetupPools replaces the set of emission-receiving pools; owner only.
func (e *Engine) SetupPools(env ledger.Env, sender string, pools []PoolAllocation) error {
	if err := e.owner.AssertOwner(sender); err != nil {
		return err
	}
	if len(pools) > CheckpointGeneratorsLimit {
		return types.ErrGeneratorsLimitExceeded
	}

	seen := make(map[string]bool, len(pools))
	for _, p := range pools {
		if seen[p.LpToken] {
			return fmt.Errorf("%w: %s", types.ErrDuplicatedPoolFound, p.LpToken)
		}
		seen[p.LpToken] = true
		if !p.AllocPoints.IsPositive() {
			return fmt.Errorf("%w: %s", types.ErrZeroAllocPoint, p.LpToken)
		}
		if err := e.screenPair(p.LpToken); err != nil {
			return err
		}
	}

	// checkpoint old and new generators at the old weights
	for _, ap := range e.active {
		e.updatePool(ap.LpToken, env.BlockTime)
	}
	for _, p := range pools {
		e.updatePool(p.LpToken, env.BlockTime)
	}

	e.active = e.active[:0]
	e.totalAlloc = sdkmath.ZeroInt()
	for _, p := range pools {
		e.active = append(e.active, PoolAllocation{LpToken: p.LpToken, AllocPoints: p.AllocPoints})
		e.totalAlloc = e.totalAlloc.Add(p.AllocPoints)
	}
	engineLogger.Info().
		Int("pools", len(pools)).
		Str("total_alloc", e.totalAlloc.String()).
		Msg("Active pools replaced")
	return nil
}

// screenPair rejects pools whose pair contains a blocked token or whose
// pair type is blacklisted.
func (e *Engine) screenPair(lp string) error {
	pair, ok := e.pairs[lp]
	if !ok {
		return nil
	}
	for _, ai := range pair.AssetInfos {
		if _, blocked := e.blocked[ai.ID()]; blocked {
			return fmt.Errorf("%w: %s", types.ErrBlockedToken, ai.ID())
		}
	}
	if e.factory.IsPairTypeBlacklisted(pair.PairType) {
		return fmt.Errorf("%w: %s", types.ErrBlockedPairType, pair.PairType)
	}
	return nil
}

// DeactivatePool zeroes a pool's allocation points; factory only.
func (e *Engine) DeactivatePool(env ledger.Env, sender, lp string) error {
	if sender != e.factory.Addr() {
		return types.ErrUnauthorized
	}
	e.deactivate(env, lp)
	return nil
}

func (e *Engine) deactivate(env ledger.Env, lp string) {
	for i, ap := range e.active {
		if ap.LpToken != lp {
			continue
		}
		e.updatePool(lp, env.BlockTime)
		e.totalAlloc = e.totalAlloc.Sub(ap.AllocPoints)
		e.active = append(e.active[:i], e.active[i+1:]...)
		engineLogger.Info().Str("lp", lp).Msg("Pool deactivated")
		return
	}
}

// UpdateBlockedTokensList edits the blocked-token set; owner or guardian.
// Blocking a token immediately strips emissions from every active pool
// whose pair contains it.
func (e *Engine) UpdateBlockedTokensList(env ledger.Env, sender string, add, remove []types.AssetInfo) error {
	if sender != e.cfg.Owner && sender != e.cfg.Guardian {
		return types.ErrUnauthorized
	}

	seen := make(map[string]bool, len(add)+len(remove))
	for _, ai := range append(append([]types.AssetInfo{}, add...), remove...) {
		if seen[ai.ID()] {
			return fmt.Errorf("%w: %s", types.ErrDoublingAssets, ai.ID())
		}
		seen[ai.ID()] = true
	}

	for _, ai := range add {
		if ai.Equal(e.cfg.EmissionToken) {
			return fmt.Errorf("%w: the emission token cannot be blocked", types.ErrInvalidAsset)
		}
		e.blocked[ai.ID()] = ai
	}
	for _, ai := range remove {
		delete(e.blocked, ai.ID())
	}

	for _, ai := range add {
		for _, ap := range append([]PoolAllocation{}, e.active...) {
			pair, ok := e.pairs[ap.LpToken]
			if !ok {
				continue
			}
			if pair.AssetInfos[0].Equal(ai) || pair.AssetInfos[1].Equal(ai) {
				e.deactivate(env, ap.LpToken)
			}
		}
	}
	return nil
}

// DeactivateBlacklistedPools strips emissions from active pools whose pair
// type the factory has since blacklisted. Permissionless: it only enforces
// factory state.
func (e *Engine) DeactivateBlacklistedPools(env ledger.Env, pairTypes []types.PairType) error {
	for _, pt := range pairTypes {
		if !e.factory.IsPairTypeBlacklisted(pt) {
			return fmt.Errorf("%w: %s is not blacklisted", types.ErrBlockedPairType, pt)
		}
	}
	for _, pt := range pairTypes {
		for _, ap := range append([]PoolAllocation{}, e.active...) {
			pair, ok := e.pairs[ap.LpToken]
			if !ok {
				continue
			}
			if pair.PairType == pt {
				e.deactivate(env, ap.LpToken)
			}
		}
	}
	return nil
}

// ProposeNewOwner, DropOwnershipProposal and ClaimOwnership expose the
// shared handover flow.
func (e *Engine) ProposeNewOwner(env ledger.Env, sender, newOwner string, expiresIn uint64) error {
	return e.owner.Propose(sender, newOwner, expiresIn, env.BlockTime)
}

func (e *Engine) DropOwnershipProposal(sender string) error {
	return e.owner.Drop(sender)
}

func (e *Engine) ClaimOwnership(env ledger.Env, sender string) error {
	if err := e.owner.Claim(sender, env.BlockTime); err != nil {
		return err
	}
	e.cfg.Owner = e.owner.Owner
	return nil
}

// ActivePools lists the emission-receiving pools and their weights.
func (e *Engine) ActivePools() []PoolAllocation {
	out := make([]PoolAllocation, 0, len(e.active))
	for _, ap := range e.active {
		out = append(out, PoolAllocation{LpToken: ap.LpToken, AllocPoints: ap.AllocPoints})
	}
	return out
}

// PoolRewards lists the reward state on one LP token, accrual projected to
// now without persisting.
func (e *Engine) PoolRewards(env ledger.Env, lp string) []RewardInfo {
	pi, ok := e.pools[lp]
	if !ok {
		return nil
	}
	out := make([]RewardInfo, 0, len(pi.Rewards))
	for _, r := range pi.Rewards {
		projected := *r
		delta := r.emitted(pi.LastUpdateTs, env.BlockTime)
		if !r.IsExternal {
			delta = delta.Add(e.emissionDelta(lp, pi.LastUpdateTs, env.BlockTime))
		}
		if delta.IsPositive() && pi.TotalStaked.IsPositive() {
			projected.Index = r.Index.Add(delta.Quo(sdkmath.LegacyNewDecFromInt(pi.TotalStaked)))
		}
		out = append(out, projected)
	}
	// finished entries carry their frozen index, nothing left to project
	for _, r := range pi.FinishedRewards {
		out = append(out, *r)
	}
	return out
}
