package types

import "time"

// SwapReceipt is the persisted record of one executed swap. Amounts are
// kept as decimal strings so arbitrary-precision integers survive the
// round trip through the database.
type SwapReceipt struct {
	ReceiptID        int64     `json:"receipt_id"`
	Timestamp        time.Time `json:"timestamp"`
	BlockHeight      uint64    `json:"block_height"`
	PoolAddr         string    `json:"pool_addr"`
	PairType         PairType  `json:"pair_type"`
	Sender           string    `json:"sender"`
	Receiver         string    `json:"receiver"`
	OfferDenom       string    `json:"offer_denom"`
	OfferAmount      string    `json:"offer_amount"`
	AskDenom         string    `json:"ask_denom"`
	ReturnAmount     string    `json:"return_amount"`
	SpreadAmount     string    `json:"spread_amount"`
	CommissionAmount string    `json:"commission_amount"`
	MakerFeeAmount   string    `json:"maker_fee_amount"`
	FeeShareAmount   string    `json:"fee_share_amount"`
}

// ReserveRecord is one asset leg inside a pool snapshot.
type ReserveRecord struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// PoolSnapshot captures a pool's externally visible state at one block.
// Extras holds pair-type specific state, e.g. the price state of a
// concentrated pool.
type PoolSnapshot struct {
	SnapshotID  int64           `json:"snapshot_id"`
	Timestamp   time.Time       `json:"timestamp"`
	BlockHeight uint64          `json:"block_height"`
	PoolAddr    string          `json:"pool_addr"`
	PairType    PairType        `json:"pair_type"`
	Reserves    []ReserveRecord `json:"reserves"`
	TotalShare  string          `json:"total_share"`
	Extras      map[string]any  `json:"extras,omitempty"`
}

// RewardClaimRecord is the persisted record of one incentives claim.
type RewardClaimRecord struct {
	ClaimID     int64           `json:"claim_id"`
	Timestamp   time.Time       `json:"timestamp"`
	BlockHeight uint64          `json:"block_height"`
	LpToken     string          `json:"lp_token"`
	User        string          `json:"user"`
	Rewards     []ReserveRecord `json:"rewards"`
}
