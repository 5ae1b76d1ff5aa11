/*

Stableswap pool for tightly correlated assets. Swaps price against the
StableSwap invariant

	A*n^n*(x+y) + D = A*D*n^n + D^(n+1) / (n^n * x * y)

with reserves normalised to a common precision before any math runs, so a
6-decimal and an 18-decimal asset share one curve.

*/

package stable

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/logger"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/swapmath"
	"github.com/keelswap/keel/internal/types"
)

var poolLogger = logger.GetForComponent("stable_pool")

// LpPrecision is the decimal precision of minted LP shares.
const LpPrecision = 6

// Pool is one deployed stableswap pair.
type Pool struct {
	pair       types.PairInfo
	cfg        pool.Config
	owner      pool.Ownership
	amp        AmpState
	precisions [2]uint8
	bank       *ledger.Bank
	factory    *ledger.Factory
	tracker    *ledger.BalanceTracker
	staker     AutoStaker
}

// InstantiateMsg carries the pool creation parameters. Amp is unscaled;
// Precisions are the decimal places of the two assets in pair order.
type InstantiateMsg struct {
	Addr               string
	AssetInfos         [2]types.AssetInfo
	Owner              string
	Amp                uint64
	Precisions         [2]uint8
	TrackAssetBalances bool
}

// NewPool validates the pair and amp and wires the pool into the ledger.
func NewPool(env ledger.Env, msg InstantiateMsg, factory *ledger.Factory, bank *ledger.Bank) (*Pool, error) {
	if err := types.ValidateAssetInfos(msg.AssetInfos[:]); err != nil {
		return nil, err
	}
	if msg.Amp == 0 || msg.Amp > MaxAmp {
		return nil, types.ErrIncorrectAmp
	}

	p := &Pool{
		pair: types.PairInfo{
			ContractAddr:   msg.Addr,
			AssetInfos:     msg.AssetInfos,
			PairType:       types.PairTypeStable,
			LiquidityToken: "factory/" + msg.Addr + "/lp",
		},
		cfg:        pool.NewConfig(factory.Addr(), msg.TrackAssetBalances),
		owner:      pool.NewOwnership(msg.Owner),
		amp:        newAmpState(msg.Amp, env.BlockTime),
		precisions: msg.Precisions,
		bank:       bank,
		factory:    factory,
	}
	if msg.TrackAssetBalances {
		p.tracker = ledger.NewBalanceTracker()
	}

	poolLogger.Info().
		Str("pool", msg.Addr).
		Uint64("amp", msg.Amp).
		Str("pair", msg.AssetInfos[0].ID()+"/"+msg.AssetInfos[1].ID()).
		Msg("Stable pool instantiated")
	return p, nil
}

// Pair returns the pair metadata.
func (p *Pool) Pair() types.PairInfo {
	return p.pair
}

// LpDenom returns the LP share denom.
func (p *Pool) LpDenom() string {
	return p.pair.LiquidityToken
}

// TotalShare returns the circulating LP supply, locked shares included.
func (p *Pool) TotalShare() sdkmath.Int {
	return p.bank.Supply(p.pair.LiquidityToken)
}

// CurrentAmp returns the amp value in effect at blockTime, scaled by
// AmpPrecision.
func (p *Pool) CurrentAmp(blockTime uint64) uint64 {
	return p.amp.Current(blockTime)
}

// StartChangingAmp schedules an amp promotion; owner only.
func (p *Pool) StartChangingAmp(env ledger.Env, sender string, nextAmp, nextAmpTime uint64) error {
	if err := p.owner.AssertOwner(sender); err != nil {
		return err
	}
	if err := p.amp.startChanging(nextAmp, nextAmpTime, env.BlockTime); err != nil {
		return err
	}
	poolLogger.Info().
		Str("pool", p.pair.ContractAddr).
		Uint64("next_amp", nextAmp).
		Uint64("next_amp_time", nextAmpTime).
		Msg("Amp promotion scheduled")
	return nil
}

// StopChangingAmp freezes a running amp promotion; owner only.
func (p *Pool) StopChangingAmp(env ledger.Env, sender string) error {
	if err := p.owner.AssertOwner(sender); err != nil {
		return err
	}
	p.amp.stopChanging(env.BlockTime)
	return nil
}

func (p *Pool) greatestPrecision() uint8 {
	if p.precisions[0] > p.precisions[1] {
		return p.precisions[0]
	}
	return p.precisions[1]
}

// normalize rescales a raw amount of asset idx to the greatest precision.
func (p *Pool) normalize(amount sdkmath.Int, idx int) (sdkmath.Int, error) {
	return swapmath.AdjustPrecision(amount, p.precisions[idx], p.greatestPrecision())
}

// denormalize rescales an amount at the greatest precision back to asset
// idx, discarding dust.
func (p *Pool) denormalize(amount sdkmath.Int, idx int) (sdkmath.Int, error) {
	return swapmath.AdjustPrecision(amount, p.greatestPrecision(), p.precisions[idx])
}

func (p *Pool) reserves() [2]sdkmath.Int {
	return [2]sdkmath.Int{
		p.bank.Balance(p.pair.ContractAddr, p.pair.AssetInfos[0]),
		p.bank.Balance(p.pair.ContractAddr, p.pair.AssetInfos[1]),
	}
}

func (p *Pool) preOpReserves(info ledger.MsgInfo) [2]sdkmath.Int {
	res := p.reserves()
	for i, ai := range p.pair.AssetInfos {
		if ai.IsNative() {
			attached := info.AttachedAmount(ai.NativeToken.Denom)
			res[i] = res[i].Sub(attached.Amount)
		}
	}
	return res
}

// normalizedReserves returns reserves at the greatest precision.
func (p *Pool) normalizedReserves(raw [2]sdkmath.Int) ([2]sdkmath.Int, error) {
	var out [2]sdkmath.Int
	for i, r := range raw {
		n, err := p.normalize(r, i)
		if err != nil {
			return out, err
		}
		out[i] = n
	}
	return out, nil
}

func (p *Pool) assetIndex(info types.AssetInfo) (int, error) {
	switch {
	case p.pair.AssetInfos[0].Equal(info):
		return 0, nil
	case p.pair.AssetInfos[1].Equal(info):
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: %s", types.ErrAssetMismatch, info.ID())
	}
}

func (p *Pool) recordBalances(height uint64) {
	if p.tracker == nil {
		return
	}
	for _, ai := range p.pair.AssetInfos {
		p.tracker.Record(ai.ID(), height, p.bank.Balance(p.pair.ContractAddr, ai))
	}
}

// AssetBalanceAt returns the pool's balance of the asset at the given block
// height, nil when tracking is disabled or no snapshot that early exists.
func (p *Pool) AssetBalanceAt(info types.AssetInfo, height uint64) *sdkmath.Int {
	if p.tracker == nil {
		return nil
	}
	bal, ok := p.tracker.BalanceAt(info.ID(), height)
	if !ok {
		return nil
	}
	return &bal
}

// ProposeNewOwner, DropOwnershipProposal and ClaimOwnership expose the
// shared handover flow.
func (p *Pool) ProposeNewOwner(env ledger.Env, sender, newOwner string, expiresIn uint64) error {
	return p.owner.Propose(sender, newOwner, expiresIn, env.BlockTime)
}

func (p *Pool) DropOwnershipProposal(sender string) error {
	return p.owner.Drop(sender)
}

func (p *Pool) ClaimOwnership(env ledger.Env, sender string) error {
	return p.owner.Claim(sender, env.BlockTime)
}

// EnableFeeShare switches on the commission share cut; owner only.
func (p *Pool) EnableFeeShare(sender string, bps uint16, recipient string) error {
	if err := p.owner.AssertOwner(sender); err != nil {
		return err
	}
	share := pool.FeeShare{Bps: bps, Recipient: recipient}
	if err := share.Validate(); err != nil {
		return err
	}
	p.cfg.FeeShare = &share
	return nil
}

// DisableFeeShare removes the commission share cut; owner only.
func (p *Pool) DisableFeeShare(sender string) error {
	if err := p.owner.AssertOwner(sender); err != nil {
		return err
	}
	p.cfg.FeeShare = nil
	return nil
}

// Config exposes the common pool state for queries.
func (p *Pool) Config() pool.Config {
	return p.cfg
}

func (p *Pool) feeInfo() ledger.FeeInfo {
	return p.factory.FeeInfo(p.pair.PairType)
}

func isqrt(v sdkmath.Int) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(new(big.Int).Sqrt(v.BigInt()))
}
