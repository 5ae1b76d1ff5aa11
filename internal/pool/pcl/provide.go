package pcl

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/pclmath"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/swapmath"
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

// ProvideLiquidity deposits up to two assets and mints LP shares
// proportional to the growth of xcp, the constant-product-equivalent pool
// value at the current price scale. The first provide locks the minimum
// liquidity amount to the pool itself.
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

	ag := p.CurrentAmpGamma(env.BlockTime)

	var share sdkmath.Int
	if totalShare.IsZero() {
		xp, err := p.toXp(deposits, p.price.PriceScale)
		if err != nil {
			return sdkmath.Int{}, err
		}
		d, err := pclmath.NewtonD(xp[0], xp[1], ag.Amp, ag.Gamma)
		if err != nil {
			return sdkmath.Int{}, err
		}
		xcp, err := xcpAt(d, p.price.PriceScale)
		if err != nil {
			return sdkmath.Int{}, err
		}
		minted, err := swapmath.AdjustPrecision(xcp.TruncateInt(), p.greatestPrecision(), LpPrecision)
		if err != nil {
			return sdkmath.Int{}, err
		}
		share = minted.SubRaw(pool.MinimumLiquidityAmount)
		if !share.IsPositive() {
			return sdkmath.Int{}, types.ErrMinimumLiquidityAmount
		}
	} else {
		xpBefore, err := p.toXp(reserves, p.price.PriceScale)
		if err != nil {
			return sdkmath.Int{}, err
		}
		after := [2]sdkmath.Int{reserves[0].Add(deposits[0]), reserves[1].Add(deposits[1])}
		xpAfter, err := p.toXp(after, p.price.PriceScale)
		if err != nil {
			return sdkmath.Int{}, err
		}

		if deposits[0].IsPositive() && deposits[1].IsPositive() {
			err = pool.AssertSlippageTolerance(msg.SlippageTolerance,
				xpAfter[0].Sub(xpBefore[0]).TruncateInt(),
				xpAfter[1].Sub(xpBefore[1]).TruncateInt(),
				xpBefore[0].TruncateInt(), xpBefore[1].TruncateInt())
			if err != nil {
				return sdkmath.Int{}, err
			}
		}

		dBefore, err := pclmath.NewtonD(xpBefore[0], xpBefore[1], ag.Amp, ag.Gamma)
		if err != nil {
			return sdkmath.Int{}, err
		}
		dAfter, err := pclmath.NewtonD(xpAfter[0], xpAfter[1], ag.Amp, ag.Gamma)
		if err != nil {
			return sdkmath.Int{}, err
		}
		if dAfter.LTE(dBefore) {
			return sdkmath.Int{}, types.ErrLiquidityAmountTooSmall
		}
		// price scale is unchanged, so xcp growth reduces to D growth
		share = sdkmath.LegacyNewDecFromInt(totalShare).
			Mul(dAfter.Sub(dBefore)).Quo(dBefore).TruncateInt()
		if !share.IsPositive() {
			return sdkmath.Int{}, types.ErrLiquidityAmountTooSmall
		}
	}

	if msg.MinLpToReceive != nil && share.LT(*msg.MinLpToReceive) {
		return sdkmath.Int{}, &types.ProvideSlippageViolation{Got: share, Want: *msg.MinLpToReceive}
	}

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

	p.accumulatePrices(env)
	if err := p.rebaseline(env.BlockTime); err != nil {
		return sdkmath.Int{}, err
	}
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

// SimulateProvide answers SimulateProvide{assets}: the LP amount a provide
// would mint right now.
func (p *Pool) SimulateProvide(env ledger.Env, assets []types.Asset) (sdkmath.Int, error) {
	deposits := [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}
	if len(assets) == 0 || len(assets) > 2 {
		return sdkmath.Int{}, types.ErrWrongAssetLength
	}
	for _, asset := range assets {
		idx, err := p.assetIndex(asset.Info)
		if err != nil {
			return sdkmath.Int{}, err
		}
		deposits[idx] = asset.Amount
	}

	totalShare := p.TotalShare()
	if totalShare.IsZero() && (deposits[0].IsZero() || deposits[1].IsZero()) {
		return sdkmath.Int{}, types.ErrInvalidZeroAmount
	}
	ag := p.CurrentAmpGamma(env.BlockTime)

	if totalShare.IsZero() {
		xp, err := p.toXp(deposits, p.price.PriceScale)
		if err != nil {
			return sdkmath.Int{}, err
		}
		d, err := pclmath.NewtonD(xp[0], xp[1], ag.Amp, ag.Gamma)
		if err != nil {
			return sdkmath.Int{}, err
		}
		xcp, err := xcpAt(d, p.price.PriceScale)
		if err != nil {
			return sdkmath.Int{}, err
		}
		minted, err := swapmath.AdjustPrecision(xcp.TruncateInt(), p.greatestPrecision(), LpPrecision)
		if err != nil {
			return sdkmath.Int{}, err
		}
		share := minted.SubRaw(pool.MinimumLiquidityAmount)
		if !share.IsPositive() {
			return sdkmath.Int{}, types.ErrMinimumLiquidityAmount
		}
		return share, nil
	}

	reserves := p.reserves()
	xpBefore, err := p.toXp(reserves, p.price.PriceScale)
	if err != nil {
		return sdkmath.Int{}, err
	}
	after := [2]sdkmath.Int{reserves[0].Add(deposits[0]), reserves[1].Add(deposits[1])}
	xpAfter, err := p.toXp(after, p.price.PriceScale)
	if err != nil {
		return sdkmath.Int{}, err
	}
	dBefore, err := pclmath.NewtonD(xpBefore[0], xpBefore[1], ag.Amp, ag.Gamma)
	if err != nil {
		return sdkmath.Int{}, err
	}
	dAfter, err := pclmath.NewtonD(xpAfter[0], xpAfter[1], ag.Amp, ag.Gamma)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if dAfter.LTE(dBefore) {
		return sdkmath.Int{}, types.ErrLiquidityAmountTooSmall
	}
	return sdkmath.LegacyNewDecFromInt(totalShare).
		Mul(dAfter.Sub(dBefore)).Quo(dBefore).TruncateInt(), nil
}

// rebaseline resets the per-share xcp yardstick after the share supply
// changed. Mints and burns move total value and supply together, so they
// must not register as profit.
func (p *Pool) rebaseline(blockTime uint64) error {
	totalShare := p.TotalShare()
	if totalShare.IsZero() {
		p.xcpPerShare = sdkmath.LegacyZeroDec()
		return nil
	}
	xp, err := p.toXp(p.reserves(), p.price.PriceScale)
	if err != nil {
		return err
	}
	ag := p.CurrentAmpGamma(blockTime)
	d, err := pclmath.NewtonD(xp[0], xp[1], ag.Amp, ag.Gamma)
	if err != nil {
		return err
	}
	xcp, err := xcpAt(d, p.price.PriceScale)
	if err != nil {
		return err
	}
	p.xcpPerShare = xcp.Quo(sdkmath.LegacyNewDecFromInt(totalShare))
	return nil
}

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
