// ./internal/state/snapshot_store.go
package state

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/keelswap/keel/internal/types"
)

// SavePoolSnapshot persists a pool state snapshot to the database.
func SavePoolSnapshot(snapshot types.PoolSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	reservesJSON, err := json.Marshal(snapshot.Reserves)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal reserves: %w", err)
	}

	var extrasJSON []byte
	if snapshot.Extras != nil {
		extrasJSON, err = json.Marshal(snapshot.Extras)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal extras: %w", err)
		}
	}

	query := `
		INSERT INTO pool_snapshots (
			snapshot_timestamp, block_height, pool_addr, pair_type,
			reserves, total_share, extras
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.Timestamp, snapshot.BlockHeight, snapshot.PoolAddr, snapshot.PairType,
		reservesJSON, snapshot.TotalShare, extrasJSON,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save pool snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshot_id", snapshotID).
		Str("pool", snapshot.PoolAddr).
		Uint64("height", snapshot.BlockHeight).
		Msg("Pool snapshot saved to database")

	return snapshotID, nil
}

// LatestPoolSnapshot returns the most recent snapshot of one pool.
func LatestPoolSnapshot(poolAddr string) (*types.PoolSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT snapshot_id, snapshot_timestamp, block_height, pool_addr, pair_type,
			reserves, total_share::TEXT, extras
		FROM pool_snapshots
		WHERE pool_addr = $1
		ORDER BY snapshot_id DESC
		LIMIT 1;
	`

	var (
		s           types.PoolSnapshot
		reservesRaw []byte
		extrasRaw   []byte
	)
	err := DB.QueryRow(query, poolAddr).Scan(
		&s.SnapshotID, &s.Timestamp, &s.BlockHeight, &s.PoolAddr, &s.PairType,
		&reservesRaw, &s.TotalShare, &extrasRaw,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest pool snapshot: %w", err)
	}

	if err := json.Unmarshal(reservesRaw, &s.Reserves); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reserves: %w", err)
	}
	if len(extrasRaw) > 0 {
		if err := json.Unmarshal(extrasRaw, &s.Extras); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extras: %w", err)
		}
	}
	return &s, nil
}

// SaveRewardClaim persists the record of one incentives claim.
func SaveRewardClaim(claim types.RewardClaimRecord) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	rewardsJSON, err := json.Marshal(claim.Rewards)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal rewards: %w", err)
	}

	query := `
		INSERT INTO reward_claims (
			claim_timestamp, block_height, lp_token, user_addr, rewards
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING claim_id;
	`

	var claimID int64
	err = DB.QueryRow(
		query,
		claim.Timestamp, claim.BlockHeight, claim.LpToken, claim.User, rewardsJSON,
	).Scan(&claimID)
	if err != nil {
		return 0, fmt.Errorf("failed to save reward claim: %w", err)
	}

	log.Debug().
		Int64("claim_id", claimID).
		Str("lp_token", claim.LpToken).
		Str("user", claim.User).
		Msg("Reward claim saved to database")

	return claimID, nil
}
