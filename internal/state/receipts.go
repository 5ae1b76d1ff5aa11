// ./internal/state/receipts.go
package state

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keelswap/keel/internal/types"
)

// SaveSwapReceipt persists the record of one executed swap.
func SaveSwapReceipt(receipt types.SwapReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO swap_receipts (
			swap_timestamp, block_height, pool_addr, pair_type,
			sender, receiver,
			offer_denom, offer_amount, ask_denom, return_amount,
			spread_amount, commission_amount, maker_fee_amount, fee_share_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING receipt_id;
	`

	var receiptID int64
	err := DB.QueryRow(
		query,
		receipt.Timestamp, receipt.BlockHeight, receipt.PoolAddr, receipt.PairType,
		receipt.Sender, receipt.Receiver,
		receipt.OfferDenom, receipt.OfferAmount, receipt.AskDenom, receipt.ReturnAmount,
		receipt.SpreadAmount, receipt.CommissionAmount, receipt.MakerFeeAmount, receipt.FeeShareAmount,
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to save swap receipt: %w", err)
	}

	log.Debug().
		Int64("receipt_id", receiptID).
		Str("pool", receipt.PoolAddr).
		Str("offer", receipt.OfferAmount+receipt.OfferDenom).
		Str("return", receipt.ReturnAmount+receipt.AskDenom).
		Msg("Swap receipt saved to database")

	return receiptID, nil
}

// RecentSwapReceipts returns the latest swaps on one pool, newest first.
func RecentSwapReceipts(poolAddr string, limit int) ([]types.SwapReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT receipt_id, swap_timestamp, block_height, pool_addr, pair_type,
			sender, receiver,
			offer_denom, offer_amount::TEXT, ask_denom, return_amount::TEXT,
			spread_amount::TEXT, commission_amount::TEXT,
			maker_fee_amount::TEXT, fee_share_amount::TEXT
		FROM swap_receipts
		WHERE pool_addr = $1
		ORDER BY receipt_id DESC
		LIMIT $2;
	`

	rows, err := DB.Query(query, poolAddr, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query swap receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.SwapReceipt
	for rows.Next() {
		var r types.SwapReceipt
		err := rows.Scan(
			&r.ReceiptID, &r.Timestamp, &r.BlockHeight, &r.PoolAddr, &r.PairType,
			&r.Sender, &r.Receiver,
			&r.OfferDenom, &r.OfferAmount, &r.AskDenom, &r.ReturnAmount,
			&r.SpreadAmount, &r.CommissionAmount, &r.MakerFeeAmount, &r.FeeShareAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan swap receipt row: %w", err)
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// DenomVolume is an aggregated offer-side volume for one denom.
type DenomVolume struct {
	Denom  string `json:"denom"`
	Volume string `json:"volume"`
	Swaps  int    `json:"swaps"`
}

// PoolVolumeSince aggregates offer-side swap volume per denom on one pool
// since the given time.
func PoolVolumeSince(poolAddr string, since time.Time) ([]DenomVolume, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT offer_denom, COALESCE(SUM(offer_amount), 0)::TEXT, COUNT(*)
		FROM swap_receipts
		WHERE pool_addr = $1 AND swap_timestamp >= $2
		GROUP BY offer_denom
		ORDER BY offer_denom;
	`

	rows, err := DB.Query(query, poolAddr, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool volume: %w", err)
	}
	defer rows.Close()

	var out []DenomVolume
	for rows.Next() {
		var v DenomVolume
		if err := rows.Scan(&v.Denom, &v.Volume, &v.Swaps); err != nil {
			return nil, fmt.Errorf("failed to scan volume row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
