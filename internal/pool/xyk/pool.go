/*

Constant-product (x*y = k) two-asset pool. Reserves are never stored
redundantly: every operation reads the authoritative balances from the bank
and subtracts in-flight attached funds to recover the pre-operation state.

*/

package xyk

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/logger"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/types"
)

var poolLogger = logger.GetForComponent("xyk_pool")

// AutoStaker routes freshly minted LP shares into the incentives engine on
// behalf of a receiver.
type AutoStaker interface {
	DepositFor(env ledger.Env, lpDenom string, amount sdkmath.Int, recipient string) error
	Addr() string
}

// Pool is one deployed constant-product pair.
type Pool struct {
	pair    types.PairInfo
	cfg     pool.Config
	owner   pool.Ownership
	bank    *ledger.Bank
	factory *ledger.Factory
	tracker *ledger.BalanceTracker
	staker  AutoStaker
}

// InstantiateMsg carries the pool creation parameters.
type InstantiateMsg struct {
	Addr               string
	AssetInfos         [2]types.AssetInfo
	Owner              string
	TrackAssetBalances bool
}

// NewPool validates the asset pair and wires the pool into the host ledger.
// The LP share denom is derived from the pool address the way the token
// factory would derive it.
func NewPool(msg InstantiateMsg, factory *ledger.Factory, bank *ledger.Bank) (*Pool, error) {
	if err := types.ValidateAssetInfos(msg.AssetInfos[:]); err != nil {
		return nil, err
	}

	p := &Pool{
		pair: types.PairInfo{
			ContractAddr:   msg.Addr,
			AssetInfos:     msg.AssetInfos,
			PairType:       types.PairTypeXyk,
			LiquidityToken: "factory/" + msg.Addr + "/lp",
		},
		cfg:     pool.NewConfig(factory.Addr(), msg.TrackAssetBalances),
		owner:   pool.NewOwnership(msg.Owner),
		bank:    bank,
		factory: factory,
	}
	if msg.TrackAssetBalances {
		p.tracker = ledger.NewBalanceTracker()
	}

	poolLogger.Info().
		Str("pool", msg.Addr).
		Str("asset0", msg.AssetInfos[0].ID()).
		Str("asset1", msg.AssetInfos[1].ID()).
		Msg("Instantiated constant-product pool")
	return p, nil
}

// SetAutoStaker wires the incentives engine for auto-stake provides.
func (p *Pool) SetAutoStaker(staker AutoStaker) {
	p.staker = staker
}

// Pair returns the pool's identity.
func (p *Pool) Pair() types.PairInfo {
	return p.pair
}

// LpDenom returns the LP share denom.
func (p *Pool) LpDenom() string {
	return p.pair.LiquidityToken
}

// TotalShare returns the circulating LP supply (the minimum-liquidity lockup
// included).
func (p *Pool) TotalShare() sdkmath.Int {
	return p.bank.Supply(p.pair.LiquidityToken)
}

// reserves reads the authoritative balances of both pair assets.
func (p *Pool) reserves() [2]sdkmath.Int {
	return [2]sdkmath.Int{
		p.bank.Balance(p.pair.ContractAddr, p.pair.AssetInfos[0]),
		p.bank.Balance(p.pair.ContractAddr, p.pair.AssetInfos[1]),
	}
}

// preOpReserves subtracts in-flight attached native funds so computations
// see the state before the message's coins landed.
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

// assetIndex resolves an asset info against the pair.
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

// recordBalances snapshots post-operation balances when tracking is on.
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

// feeInfo reads the factory's fee parameters for this pair type.
func (p *Pool) feeInfo() ledger.FeeInfo {
	return p.factory.FeeInfo(p.pair.PairType)
}

func isqrt(v sdkmath.Int) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(new(big.Int).Sqrt(v.BigInt()))
}
