/*

Cross-pool incentives engine. LP tokens staked here earn two kinds of
rewards: protocol emissions, split across active pools by allocation
points, and external schedules anyone can fund. Accrual is lazy: a pool's
reward indexes advance only when someone touches it, and emissions that
accrue while nothing is staked land in an orphaned bucket the owner can
reclaim.

*/

package incentives

import (
	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/types"
)

const (
	// EpochLength is one reward epoch, seconds. External schedules start
	// and end on epoch boundaries.
	EpochLength = 604_800

	// EpochsStart anchors the epoch grid (Mon Oct 9 2023 00:00:00 UTC).
	EpochsStart = 1_696_809_600

	// MaxRewardTokens caps distinct reward tokens per pool.
	MaxRewardTokens = 5

	// CheckpointGeneratorsLimit bounds how many pools one call may
	// checkpoint.
	CheckpointGeneratorsLimit = 30
)

// nextEpochBoundary returns the first epoch boundary at or after now.
func nextEpochBoundary(now uint64) uint64 {
	if now <= EpochsStart {
		return EpochsStart
	}
	elapsed := now - EpochsStart
	periods := elapsed / EpochLength
	if elapsed%EpochLength != 0 {
		periods++
	}
	return EpochsStart + periods*EpochLength
}

// Schedule is one funded emission window. Multiple schedules on the same
// reward compose additively wherever they overlap.
type Schedule struct {
	Rps     sdkmath.LegacyDec `json:"rps"`
	StartTs uint64            `json:"start_ts"`
	EndTs   uint64            `json:"end_ts"`
}

// overlap returns the emission of this schedule over [from, to).
func (s Schedule) overlap(from, to uint64) sdkmath.LegacyDec {
	lo := from
	if s.StartTs > lo {
		lo = s.StartTs
	}
	hi := to
	if s.EndTs < hi {
		hi = s.EndTs
	}
	if hi <= lo {
		return sdkmath.LegacyZeroDec()
	}
	return s.Rps.MulInt64(int64(hi - lo))
}

// RewardInfo is the per-pool state of one reward token.
type RewardInfo struct {
	Asset      types.AssetInfo   `json:"asset"`
	Schedules  []Schedule        `json:"schedules"`
	Index      sdkmath.LegacyDec `json:"index"`
	Orphaned   sdkmath.LegacyDec `json:"orphaned"`
	IsExternal bool              `json:"is_external"`
}

func newRewardInfo(asset types.AssetInfo, external bool) *RewardInfo {
	return &RewardInfo{
		Asset:      asset,
		Index:      sdkmath.LegacyZeroDec(),
		Orphaned:   sdkmath.LegacyZeroDec(),
		IsExternal: external,
	}
}

// emitted returns the scheduled emission over [from, to).
func (r *RewardInfo) emitted(from, to uint64) sdkmath.LegacyDec {
	total := sdkmath.LegacyZeroDec()
	for _, s := range r.Schedules {
		total = total.Add(s.overlap(from, to))
	}
	return total
}

// endTs is the end of the last schedule, zero when none exist.
func (r *RewardInfo) endTs() uint64 {
	var end uint64
	for _, s := range r.Schedules {
		if s.EndTs > end {
			end = s.EndTs
		}
	}
	return end
}

// finished reports whether every schedule has run out. The index is frozen
// from then on; users still claim against it.
func (r *RewardInfo) finished(now uint64) bool {
	return r.IsExternal && now >= r.endTs()
}

// unspent returns the emission still owed after now, optionally skipping
// schedules that have not started yet.
func (r *RewardInfo) unspent(now uint64, skipUpcoming bool) sdkmath.LegacyDec {
	total := sdkmath.LegacyZeroDec()
	for _, s := range r.Schedules {
		if skipUpcoming && s.StartTs > now {
			continue
		}
		from := now
		if s.StartTs > from {
			from = s.StartTs
		}
		if s.EndTs > from {
			total = total.Add(s.Rps.MulInt64(int64(s.EndTs - from)))
		}
	}
	return total
}

// accrue folds delta reward tokens into the pool: the index when stake is
// present, the orphaned bucket otherwise.
func (r *RewardInfo) accrue(delta sdkmath.LegacyDec, totalStaked sdkmath.Int) {
	if !delta.IsPositive() {
		return
	}
	if totalStaked.IsZero() {
		r.Orphaned = r.Orphaned.Add(delta)
		return
	}
	r.Index = r.Index.Add(delta.Quo(sdkmath.LegacyNewDecFromInt(totalStaked)))
}

// PoolInfo is the engine's view of one LP token. Rewards whose schedules
// have all run out move to FinishedRewards: the frozen index stays
// claimable but the entry no longer occupies a reward-token slot.
type PoolInfo struct {
	LastUpdateTs    uint64        `json:"last_update_ts"`
	TotalStaked     sdkmath.Int   `json:"total_lp_staked"`
	Rewards         []*RewardInfo `json:"rewards"`
	FinishedRewards []*RewardInfo `json:"finished_reward_indexes"`
}

func newPoolInfo(now uint64) *PoolInfo {
	return &PoolInfo{
		LastUpdateTs: now,
		TotalStaked:  sdkmath.ZeroInt(),
	}
}

func (pi *PoolInfo) reward(asset types.AssetInfo) *RewardInfo {
	for _, r := range pi.Rewards {
		if r.Asset.Equal(asset) {
			return r
		}
	}
	return nil
}

func (pi *PoolInfo) removeReward(asset types.AssetInfo) {
	for i, r := range pi.Rewards {
		if r.Asset.Equal(asset) {
			pi.Rewards = append(pi.Rewards[:i], pi.Rewards[i+1:]...)
			return
		}
	}
}

// finishRewards moves every reward that ran out before now into the
// finished list, freeing its reward-token slot.
func (pi *PoolInfo) finishRewards(now uint64) {
	kept := pi.Rewards[:0]
	for _, r := range pi.Rewards {
		if r.finished(now) {
			r.Schedules = nil
			pi.FinishedRewards = append(pi.FinishedRewards, r)
			continue
		}
		kept = append(kept, r)
	}
	pi.Rewards = kept
}

// takeFinished removes and returns the finished entry for asset, nil when
// there is none. Re-incentivizing resurrects the entry so the index keeps
// its history.
func (pi *PoolInfo) takeFinished(asset types.AssetInfo) *RewardInfo {
	for i, r := range pi.FinishedRewards {
		if r.Asset.Equal(asset) {
			pi.FinishedRewards = append(pi.FinishedRewards[:i], pi.FinishedRewards[i+1:]...)
			return r
		}
	}
	return nil
}
