package ledger

import (
	"sort"

	sdkmath "cosmossdk.io/math"
)

type heightPoint struct {
	height  uint64
	balance sdkmath.Int
}

// BalanceTracker keeps per-asset balance snapshots keyed by block height,
// used by pools instantiated with track_asset_balances. Heights are recorded
// in non-decreasing order because block heights only grow.
type BalanceTracker struct {
	points map[string][]heightPoint
}

// NewBalanceTracker returns an empty tracker.
func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{points: make(map[string][]heightPoint)}
}

// Record stores the balance of assetID at height, overwriting an earlier
// snapshot taken in the same block.
func (t *BalanceTracker) Record(assetID string, height uint64, balance sdkmath.Int) {
	pts := t.points[assetID]
	if n := len(pts); n > 0 && pts[n-1].height == height {
		pts[n-1].balance = balance
		return
	}
	t.points[assetID] = append(pts, heightPoint{height: height, balance: balance})
}

// BalanceAt returns the last recorded balance at or below height. The second
// return is false when no snapshot exists that early (or the asset was never
// tracked), which queries surface as null.
func (t *BalanceTracker) BalanceAt(assetID string, height uint64) (sdkmath.Int, bool) {
	pts, ok := t.points[assetID]
	if !ok || len(pts) == 0 {
		return sdkmath.Int{}, false
	}
	// first index with height strictly above the query
	idx := sort.Search(len(pts), func(i int) bool { return pts[i].height > height })
	if idx == 0 {
		return sdkmath.Int{}, false
	}
	return pts[idx-1].balance, true
}
