/*

Concentrated-liquidity pool. Liquidity is pinned around a moving price scale:
reserves are mapped into a common value space

	xp = [pool0, pool1 * price_scale]

where the invariant blends constant-sum and constant-product behaviour
through amp and gamma. Fees are dynamic in the xp imbalance, and realised
profit (tracked as xcp, the constant-product equivalent of D) pays for
repegging the price scale towards the oracle.

*/

package pcl

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/logger"
	"github.com/keelswap/keel/internal/pclmath"
	"github.com/keelswap/keel/internal/pool"
	"github.com/keelswap/keel/internal/swapmath"
	"github.com/keelswap/keel/internal/types"
)

var poolLogger = logger.GetForComponent("pcl_pool")

// LpPrecision is the decimal precision of minted LP shares.
const LpPrecision = 6

// AutoStaker routes freshly minted LP shares into the incentives engine on
// behalf of a receiver.
type AutoStaker interface {
	DepositFor(env ledger.Env, lpDenom string, amount sdkmath.Int, recipient string) error
	Addr() string
}

// PriceState is the moving-peg state of the pool.
type PriceState struct {
	PriceScale        sdkmath.LegacyDec `json:"price_scale"`
	LastPrice         sdkmath.LegacyDec `json:"last_prices"`
	PriceOracle       sdkmath.LegacyDec `json:"price_oracle"`
	LastPriceUpdateTs uint64            `json:"last_price_update_ts"`
	XcpProfit         sdkmath.LegacyDec `json:"xcp_profit"`
	XcpProfitReal     sdkmath.LegacyDec `json:"xcp_profit_real"`
}

// Pool is one deployed concentrated pair.
type Pool struct {
	pair       types.PairInfo
	cfg        pool.Config
	owner      pool.Ownership
	params     PoolParams
	ampGamma   AmpGammaState
	price      PriceState
	precisions [2]uint8
	// xcp per LP share at the last state-changing operation, the yardstick
	// for profit accounting
	xcpPerShare sdkmath.LegacyDec
	bank        *ledger.Bank
	factory     *ledger.Factory
	tracker     *ledger.BalanceTracker
	staker      AutoStaker
}

// InstantiateMsg carries the pool creation parameters. PriceScale is the
// initial peg: units of asset 0 per unit of asset 1 in the common precision.
type InstantiateMsg struct {
	Addr               string
	AssetInfos         [2]types.AssetInfo
	Owner              string
	AmpGamma           AmpGamma
	Params             PoolParams
	PriceScale         sdkmath.LegacyDec
	Precisions         [2]uint8
	TrackAssetBalances bool
}

// NewPool validates parameters and wires the pool into the ledger.
func NewPool(env ledger.Env, msg InstantiateMsg, factory *ledger.Factory, bank *ledger.Bank) (*Pool, error) {
	if err := types.ValidateAssetInfos(msg.AssetInfos[:]); err != nil {
		return nil, err
	}
	if err := msg.AmpGamma.validate(); err != nil {
		return nil, err
	}
	if err := msg.Params.Validate(); err != nil {
		return nil, err
	}
	if !msg.PriceScale.IsPositive() {
		return nil, &types.IncorrectPoolParam{Name: "price_scale", Min: "0", Max: "inf"}
	}

	p := &Pool{
		pair: types.PairInfo{
			ContractAddr:   msg.Addr,
			AssetInfos:     msg.AssetInfos,
			PairType:       types.PairTypeConcentrated,
			LiquidityToken: "factory/" + msg.Addr + "/lp",
		},
		cfg:      pool.NewConfig(factory.Addr(), msg.TrackAssetBalances),
		owner:    pool.NewOwnership(msg.Owner),
		params:   msg.Params,
		ampGamma: newAmpGammaState(msg.AmpGamma, env.BlockTime),
		price: PriceState{
			PriceScale:        msg.PriceScale,
			LastPrice:         msg.PriceScale,
			PriceOracle:       msg.PriceScale,
			LastPriceUpdateTs: env.BlockTime,
			XcpProfit:         sdkmath.LegacyOneDec(),
			XcpProfitReal:     sdkmath.LegacyOneDec(),
		},
		precisions:  msg.Precisions,
		xcpPerShare: sdkmath.LegacyZeroDec(),
		bank:        bank,
		factory:     factory,
	}
	// the TWAP price derives from LastPrice rather than reserves, so the
	// clock must start at instantiation or the first accrual would span
	// from the epoch
	p.cfg.BlockTimeLast = env.BlockTime
	if msg.TrackAssetBalances {
		p.tracker = ledger.NewBalanceTracker()
	}

	poolLogger.Info().
		Str("pool", msg.Addr).
		Str("amp", msg.AmpGamma.Amp.String()).
		Str("gamma", msg.AmpGamma.Gamma.String()).
		Str("price_scale", msg.PriceScale.String()).
		Msg("Concentrated pool instantiated")
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

// PriceStateView exposes the peg state for queries.
func (p *Pool) PriceStateView() PriceState {
	return p.price
}

// Params exposes the fee and repeg parameters.
func (p *Pool) Params() PoolParams {
	return p.params
}

// CurrentAmpGamma returns the (amp, gamma) in effect at blockTime.
func (p *Pool) CurrentAmpGamma(blockTime uint64) AmpGamma {
	return p.ampGamma.Current(blockTime)
}

// UpdateParams patches fee and repeg parameters; owner only.
func (p *Pool) UpdateParams(sender string, msg UpdateParamsMsg) error {
	if err := p.owner.AssertOwner(sender); err != nil {
		return err
	}
	next := p.params.apply(msg)
	if err := next.Validate(); err != nil {
		return err
	}
	p.params = next
	return nil
}

// Promote schedules an amp/gamma promotion; owner only.
func (p *Pool) Promote(env ledger.Env, sender string, next AmpGamma, futureTime uint64) error {
	if err := p.owner.AssertOwner(sender); err != nil {
		return err
	}
	if err := p.ampGamma.promote(next, futureTime, env.BlockTime); err != nil {
		return err
	}
	poolLogger.Info().
		Str("pool", p.pair.ContractAddr).
		Str("next_amp", next.Amp.String()).
		Str("next_gamma", next.Gamma.String()).
		Uint64("future_time", futureTime).
		Msg("Amp/gamma promotion scheduled")
	return nil
}

// StopChangingAmpGamma freezes a running promotion; owner only.
func (p *Pool) StopChangingAmpGamma(env ledger.Env, sender string) error {
	if err := p.owner.AssertOwner(sender); err != nil {
		return err
	}
	p.ampGamma.stop(env.BlockTime)
	return nil
}

func (p *Pool) greatestPrecision() uint8 {
	if p.precisions[0] > p.precisions[1] {
		return p.precisions[0]
	}
	return p.precisions[1]
}

func (p *Pool) normalize(amount sdkmath.Int, idx int) (sdkmath.Int, error) {
	return swapmath.AdjustPrecision(amount, p.precisions[idx], p.greatestPrecision())
}

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

// toXp maps raw reserves into the common value space at the given price
// scale.
func (p *Pool) toXp(raw [2]sdkmath.Int, priceScale sdkmath.LegacyDec) ([2]sdkmath.LegacyDec, error) {
	var xp [2]sdkmath.LegacyDec
	n0, err := p.normalize(raw[0], 0)
	if err != nil {
		return xp, err
	}
	n1, err := p.normalize(raw[1], 1)
	if err != nil {
		return xp, err
	}
	xp[0] = sdkmath.LegacyNewDecFromInt(n0)
	xp[1] = sdkmath.LegacyNewDecFromInt(n1).Mul(priceScale)
	return xp, nil
}

// xcpAt is the constant-product-equivalent value of the pool at invariant d
// and the given price scale.
func xcpAt(d, priceScale sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	root, err := priceScale.ApproxSqrt()
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return d.Quo(two.Mul(root)), nil
}

var two = sdkmath.LegacyNewDec(2)

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

// SetAutoStaker wires the incentives engine in after both contracts exist.
func (p *Pool) SetAutoStaker(s AutoStaker) {
	p.staker = s
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

// updateOracle folds lastPrice into the EMA and stamps the sample time.
func (p *Pool) updateOracle(blockTime uint64, lastPrice sdkmath.LegacyDec) {
	alpha := pclmath.Halfpow(blockTime-p.price.LastPriceUpdateTs, p.params.MaHalfTime)
	p.price.PriceOracle = p.price.PriceOracle.Mul(alpha).
		Add(lastPrice.Mul(sdkmath.LegacyOneDec().Sub(alpha)))
	p.price.LastPrice = lastPrice
	p.price.LastPriceUpdateTs = blockTime
}

// trackProfit folds the xcp-per-share growth since the last touch into both
// profit counters. Call after the ledger reflects the new reserves, before
// any repeg.
func (p *Pool) trackProfit(d sdkmath.LegacyDec) error {
	totalShare := p.TotalShare()
	if totalShare.IsZero() {
		return nil
	}
	xcp, err := xcpAt(d, p.price.PriceScale)
	if err != nil {
		return err
	}
	perShare := xcp.Quo(sdkmath.LegacyNewDecFromInt(totalShare))
	if p.xcpPerShare.IsPositive() {
		growth := perShare.Quo(p.xcpPerShare)
		p.price.XcpProfit = p.price.XcpProfit.Mul(growth)
		p.price.XcpProfitReal = p.price.XcpProfitReal.Mul(growth)
	}
	p.xcpPerShare = perShare
	return nil
}
