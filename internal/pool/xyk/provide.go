package xyk

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/types"
)

// ProvideMsg carries the liquidity-provision parameters.
type ProvideMsg struct {
	Assets            []types.Asset
	SlippageTolerance *sdkmath.LegacyDec
	AutoStake         bool
	Receiver          string
	MinLpToReceive    *sdkmath.Int
}

// ProvideLiquidity deposits up to two assets and mints LP shares. The first
// provide locks MinimumLiquidityAmount to the pool itself; later provides
// mint min(d0*T/p0, d1*T/p1) and enforce the slippage-tolerance ratio guard.
func (p *Pool) ProvideLiquidity(env ledger.Env, info ledger.MsgInfo, msg ProvideMsg) (sdkmath.Int, error) {
	deposits, err := p.alignDeposits(info, msg.Assets)
	if err != nil {
		return sdkmath.Int{}, err
	}

	reserves := p.preOpReserves(info)
	totalShare := p.TotalShare()

	if deposits[0].IsZero() && deposits[1].IsZero() {
		return sdkmath.Int{}, types.ErrInvalidZeroAmount
	}
	if totalShare.IsZero() && (deposits[0].IsZero() || deposits[1].IsZero()) {
		return sdkmath.Int{}, types.ErrInvalidZeroAmount
	}

	var share sdkmath.Int
	if totalShare.IsZero() {
		share = isqrt(deposits[0].Mul(deposits[1])).SubRaw(pool.MinimumLiquidityAmount)
		if !share.IsPositive() {
			return sdkmath.Int{}, types.ErrMinimumLiquidityAmount
		}
	} else {
		if deposits[0].IsPositive() && deposits[1].IsPositive() {
			err = pool.AssertSlippageTolerance(msg.SlippageTolerance,
				deposits[0], deposits[1], reserves[0], reserves[1])
			if err != nil {
				return sdkmath.Int{}, err
			}
		}
		share0 := deposits[0].Mul(totalShare).Quo(reserves[0])
		share1 := deposits[1].Mul(totalShare).Quo(reserves[1])
		share = sdkmath.MinInt(share0, share1)
		if !share.IsPositive() {
			return sdkmath.Int{}, types.ErrLiquidityAmountTooSmall
		}
	}

	if msg.MinLpToReceive != nil && share.LT(*msg.MinLpToReceive) {
		return sdkmath.Int{}, &types.ProvideSlippageViolation{Got: share, Want: *msg.MinLpToReceive}
	}

	// pull token-contract deposits; natives arrived with the message
	if err := p.pullTokenDeposits(info.Sender, deposits); err != nil {
		return sdkmath.Int{}, err
	}

	lpInfo := types.NewNativeAsset(p.pair.LiquidityToken)
	if totalShare.IsZero() {
		// permanently locked
		p.bank.Mint(p.pair.ContractAddr, types.NewAsset(lpInfo, sdkmath.NewInt(pool.MinimumLiquidityAmount)))
	}

	receiver := msg.Receiver
	if receiver == "" {
		receiver = info.Sender
	}

	if msg.AutoStake {
		if p.staker == nil {
			return sdkmath.Int{}, types.ErrAutoStakeError
		}
		p.bank.Mint(p.staker.Addr(), types.NewAsset(lpInfo, share))
		if err := p.staker.DepositFor(env, p.pair.LiquidityToken, share, receiver); err != nil {
			return sdkmath.Int{}, fmt.Errorf("%w: %w", types.ErrAutoStakeError, err)
		}
	} else {
		p.bank.Mint(receiver, types.NewAsset(lpInfo, share))
	}

	p.cfg.AccumulatePrices(env.BlockTime, reserves[0], reserves[1])
	p.recordBalances(env.BlockHeight)

	poolLogger.Info().
		Str("pool", p.pair.ContractAddr).
		Str("deposit0", deposits[0].String()).
		Str("deposit1", deposits[1].String()).
		Str("share", share.String()).
		Str("receiver", receiver).
		Msg("Liquidity provided")
	return share, nil
}

// alignDeposits validates the declared assets against the pair and returns
// amounts in pair order. Native declarations must match the attached funds
// exactly.
func (p *Pool) alignDeposits(info ledger.MsgInfo, assets []types.Asset) ([2]sdkmath.Int, error) {
	deposits := [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}
	if len(assets) == 0 || len(assets) > 2 {
		return deposits, types.ErrWrongAssetLength
	}
	if len(assets) == 2 && assets[0].Info.Equal(assets[1].Info) {
		return deposits, types.ErrDoublingAssets
	}

	for _, asset := range assets {
		idx, err := p.assetIndex(asset.Info)
		if err != nil {
			return deposits, err
		}
		if asset.Amount.IsNegative() {
			return deposits, types.ErrInvalidZeroAmount
		}
		if asset.Info.IsNative() {
			attached := info.AttachedAmount(asset.Info.NativeToken.Denom)
			if !attached.Amount.Equal(asset.Amount) {
				return deposits, fmt.Errorf("%w: declared %s, attached %s of %s",
					types.ErrInvalidAsset, asset.Amount, attached.Amount, asset.Info.ID())
			}
		}
		deposits[idx] = asset.Amount
	}
	return deposits, nil
}

// pullTokenDeposits moves contract-token deposits from the sender into the
// pool; the bank rejects the batch atomically if the sender is short.
func (p *Pool) pullTokenDeposits(sender string, deposits [2]sdkmath.Int) error {
	var transfers []ledger.Transfer
	for i, ai := range p.pair.AssetInfos {
		if !ai.IsNative() && deposits[i].IsPositive() {
			transfers = append(transfers, ledger.Transfer{
				From:  sender,
				To:    p.pair.ContractAddr,
				Asset: types.NewAsset(ai, deposits[i]),
			})
		}
	}
	return p.bank.Apply(transfers)
}
