package stable

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/swapmath"
	"github.com/keelswap/keel/internal/types"
)

// AutoStaker routes freshly minted LP shares into the incentives engine on
// behalf of a receiver.
type AutoStaker interface {
	DepositFor(env ledger.Env, lpDenom string, amount sdkmath.Int, recipient string) error
	Addr() string
}

// ProvideMsg carries the liquidity-provision parameters. The slippage
// tolerance field accepted by other pool flavours is deliberately absent:
// share accounting through the invariant already prices imbalance.
type ProvideMsg struct {
	Assets         []types.Asset
	AutoStake      bool
	Receiver       string
	MinLpToReceive *sdkmath.Int
}

// ProvideLiquidity deposits up to two assets and mints LP shares
// proportional to the invariant growth. Imbalanced deposits are allowed
// once the pool is seeded; the curve itself charges the imbalance.
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

	var normDeposits, normReserves [2]sdkmath.Int
	for i := range deposits {
		if normDeposits[i], err = p.normalize(deposits[i], i); err != nil {
			return sdkmath.Int{}, err
		}
		if normReserves[i], err = p.normalize(reserves[i], i); err != nil {
			return sdkmath.Int{}, err
		}
	}

	var share sdkmath.Int
	if totalShare.IsZero() {
		// unlike the constant-product flavour no shares are locked: the
		// precision adjustment is the only haircut
		root := isqrt(normDeposits[0].Mul(normDeposits[1]))
		share, err = swapmath.AdjustPrecision(root, p.greatestPrecision(), LpPrecision)
		if err != nil {
			return sdkmath.Int{}, err
		}
		if !share.IsPositive() {
			return sdkmath.Int{}, types.ErrMinimumLiquidityAmount
		}
	} else {
		leverage := p.CurrentAmp(env.BlockTime) * 2
		dBefore, err := swapmath.ComputeD(leverage, normReserves[0], normReserves[1])
		if err != nil {
			return sdkmath.Int{}, err
		}
		dAfter, err := swapmath.ComputeD(leverage,
			normReserves[0].Add(normDeposits[0]), normReserves[1].Add(normDeposits[1]))
		if err != nil {
			return sdkmath.Int{}, err
		}
		if dAfter.LTE(dBefore) {
			return sdkmath.Int{}, types.ErrLiquidityAmountTooSmall
		}
		share = totalShare.Mul(dAfter.Sub(dBefore)).Quo(dBefore)
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

	p.accumulatePrices(env, reserves)
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

	reserves := p.reserves()
	totalShare := p.TotalShare()
	if totalShare.IsZero() && (deposits[0].IsZero() || deposits[1].IsZero()) {
		return sdkmath.Int{}, types.ErrInvalidZeroAmount
	}

	var err error
	var normDeposits, normReserves [2]sdkmath.Int
	for i := range deposits {
		if normDeposits[i], err = p.normalize(deposits[i], i); err != nil {
			return sdkmath.Int{}, err
		}
		if normReserves[i], err = p.normalize(reserves[i], i); err != nil {
			return sdkmath.Int{}, err
		}
	}

	if totalShare.IsZero() {
		root := isqrt(normDeposits[0].Mul(normDeposits[1]))
		share, err := swapmath.AdjustPrecision(root, p.greatestPrecision(), LpPrecision)
		if err != nil {
			return sdkmath.Int{}, err
		}
		if !share.IsPositive() {
			return sdkmath.Int{}, types.ErrMinimumLiquidityAmount
		}
		return share, nil
	}

	leverage := p.CurrentAmp(env.BlockTime) * 2
	dBefore, err := swapmath.ComputeD(leverage, normReserves[0], normReserves[1])
	if err != nil {
		return sdkmath.Int{}, err
	}
	dAfter, err := swapmath.ComputeD(leverage,
		normReserves[0].Add(normDeposits[0]), normReserves[1].Add(normDeposits[1]))
	if err != nil {
		return sdkmath.Int{}, err
	}
	if dAfter.LTE(dBefore) {
		return sdkmath.Int{}, types.ErrLiquidityAmountTooSmall
	}
	return totalShare.Mul(dAfter.Sub(dBefore)).Quo(dBefore), nil
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

// SetAutoStaker wires the incentives engine in after both contracts exist.
func (p *Pool) SetAutoStaker(s AutoStaker) {
	p.staker = s
}
