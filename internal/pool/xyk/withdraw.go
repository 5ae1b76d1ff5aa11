package xyk

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/types"
)

// WithdrawMsg carries the withdrawal parameters. The burned amount is the LP
// coin attached to the message; only balanced withdrawals are supported.
type WithdrawMsg struct {
	MinAssetsToReceive []types.Asset
}

// WithdrawLiquidity burns the attached LP shares and refunds the
// proportional amount of both reserves.
func (p *Pool) WithdrawLiquidity(env ledger.Env, info ledger.MsgInfo, msg WithdrawMsg) ([2]types.Asset, error) {
	var refunds [2]types.Asset

	amount := info.AttachedAmount(p.pair.LiquidityToken).Amount
	if amount.IsZero() {
		return refunds, types.ErrInvalidZeroAmount
	}

	totalShare := p.TotalShare()
	reserves := p.reserves()

	for i, ai := range p.pair.AssetInfos {
		refunds[i] = types.NewAsset(ai, reserves[i].Mul(amount).Quo(totalShare))
	}

	if err := p.assertWithdrawMinimums(msg.MinAssetsToReceive, refunds); err != nil {
		return refunds, err
	}

	// attached LP coins were credited to the pool; burn them there
	lpAsset := types.NewAsset(types.NewNativeAsset(p.pair.LiquidityToken), amount)
	if err := p.bank.Burn(p.pair.ContractAddr, lpAsset); err != nil {
		return refunds, err
	}

	var transfers []ledger.Transfer
	for _, refund := range refunds {
		if refund.Amount.IsPositive() {
			transfers = append(transfers, ledger.Transfer{
				From:  p.pair.ContractAddr,
				To:    info.Sender,
				Asset: refund,
			})
		}
	}
	if err := p.bank.Apply(transfers); err != nil {
		return refunds, err
	}

	p.cfg.AccumulatePrices(env.BlockTime, reserves[0], reserves[1])
	p.recordBalances(env.BlockHeight)

	poolLogger.Info().
		Str("pool", p.pair.ContractAddr).
		Str("burned", amount.String()).
		Str("refund0", refunds[0].String()).
		Str("refund1", refunds[1].String()).
		Msg("Liquidity withdrawn")
	return refunds, nil
}

// assertWithdrawMinimums enforces the caller's per-asset minimums. Entries
// are order-insensitive; duplicates and foreign assets are rejected.
func (p *Pool) assertWithdrawMinimums(minimums []types.Asset, refunds [2]types.Asset) error {
	if len(minimums) == 0 {
		return nil
	}
	if len(minimums) != 2 {
		return types.ErrWrongAssetLength
	}
	if minimums[0].Info.Equal(minimums[1].Info) {
		return types.ErrDoublingAssets
	}
	for _, minimum := range minimums {
		idx, err := p.assetIndex(minimum.Info)
		if err != nil {
			return err
		}
		if refunds[idx].Amount.LT(minimum.Amount) {
			return &types.WithdrawSlippageViolation{
				AssetID: minimum.Info.ID(),
				Got:     refunds[idx].Amount,
				Want:    minimum.Amount,
			}
		}
	}
	return nil
}

// ShareAssets answers Share{amount}: the assets refundable for burning the
// given LP amount at the current reserves.
func (p *Pool) ShareAssets(amount sdkmath.Int) ([2]types.Asset, error) {
	var out [2]types.Asset
	totalShare := p.TotalShare()
	if totalShare.IsZero() {
		return out, fmt.Errorf("%w: no shares outstanding", types.ErrInvalidZeroAmount)
	}
	reserves := p.reserves()
	for i, ai := range p.pair.AssetInfos {
		out[i] = types.NewAsset(ai, reserves[i].Mul(amount).Quo(totalShare))
	}
	return out, nil
}
