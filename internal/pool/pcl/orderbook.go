/*

Orderbook integration: a concentrated pool variant that mirrors part of its
liquidity as resting limit orders on an external exchange. Executed orders
are reconciled back into the curve as virtual swaps, so the oracle, profit
and repeg machinery see exchange flow the same way they see direct swaps.

*/

package pcl

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/pclmath"
	"github.com/keelswap/keel/internal/types"
)

// maxOrdersNumber bounds the ladder size per side.
const maxOrdersNumber = 30

// Order is one resting limit order: price quoted as units of asset 0 per
// unit of asset 1, amount in raw units of the asset being sold.
type Order struct {
	IsBuy  bool
	Price  sdkmath.LegacyDec
	Amount sdkmath.Int
}

// Orderbook is the external exchange surface the pool trades against.
type Orderbook interface {
	// Deposited reports the pool funds currently sitting on the exchange,
	// resting orders included.
	Deposited() [2]sdkmath.Int
	// CancelOrders pulls every resting order and returns the freed funds to
	// the pool address.
	CancelOrders(env ledger.Env) error
	// PostOrders places a fresh ladder from pool funds.
	PostOrders(env ledger.Env, orders []Order) error
}

// OrderbookConfig tunes the mirrored ladder.
type OrderbookConfig struct {
	// LiquidityPercent is the share of each reserve mirrored to the book.
	LiquidityPercent sdkmath.LegacyDec
	// OrdersNumber is the ladder depth per side.
	OrdersNumber uint8
	// MinBaseOrderSize and MinQuoteOrderSize suppress dust orders.
	MinBaseOrderSize  sdkmath.Int
	MinQuoteOrderSize sdkmath.Int
}

func (c OrderbookConfig) validate() error {
	one := sdkmath.LegacyOneDec()
	if !c.LiquidityPercent.IsPositive() || c.LiquidityPercent.GT(one) {
		return &types.IncorrectPoolParam{Name: "liquidity_percent", Min: "0", Max: "1"}
	}
	if c.OrdersNumber == 0 || c.OrdersNumber > maxOrdersNumber {
		return &types.IncorrectPoolParam{Name: "orders_number", Min: "1", Max: "30"}
	}
	if c.MinBaseOrderSize.IsNegative() || c.MinQuoteOrderSize.IsNegative() {
		return &types.IncorrectPoolParam{Name: "min_order_size", Min: "0", Max: "inf"}
	}
	return nil
}

// OrderbookPool is a concentrated pool mirroring liquidity to an external
// orderbook. Asset 0 is the base asset, asset 1 the quote.
type OrderbookPool struct {
	*Pool
	book    Orderbook
	obCfg   OrderbookConfig
	enabled bool
	// exchange-side balances right after the last repost; the drift since
	// then is executed order flow
	lastDeposited [2]sdkmath.Int
}

// NewOrderbookPool wraps an instantiated pool with an orderbook mirror. The
// integration starts disabled.
func NewOrderbookPool(p *Pool, book Orderbook, cfg OrderbookConfig) (*OrderbookPool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &OrderbookPool{
		Pool:          p,
		book:          book,
		obCfg:         cfg,
		lastDeposited: [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()},
	}, nil
}

// Enabled reports whether the mirror is live.
func (p *OrderbookPool) Enabled() bool {
	return p.enabled
}

// OrderbookSettings exposes the ladder configuration.
func (p *OrderbookPool) OrderbookSettings() OrderbookConfig {
	return p.obCfg
}

// EnableOrderbook turns the mirror on and posts the first ladder; owner
// only.
func (p *OrderbookPool) EnableOrderbook(env ledger.Env, sender string) error {
	if err := p.owner.AssertOwner(sender); err != nil {
		return err
	}
	if p.enabled {
		return nil
	}
	p.enabled = true
	if err := p.repost(env); err != nil {
		p.enabled = false
		return err
	}
	poolLogger.Info().
		Str("pool", p.pair.ContractAddr).
		Msg("Orderbook integration enabled")
	return nil
}

// DisableOrderbook cancels the ladder and turns the mirror off; owner only.
func (p *OrderbookPool) DisableOrderbook(env ledger.Env, sender string) error {
	if err := p.owner.AssertOwner(sender); err != nil {
		return err
	}
	if !p.enabled {
		return nil
	}
	if err := p.Reconcile(env); err != nil {
		return err
	}
	if err := p.book.CancelOrders(env); err != nil {
		return err
	}
	p.enabled = false
	p.lastDeposited = [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}
	poolLogger.Info().
		Str("pool", p.pair.ContractAddr).
		Msg("Orderbook integration disabled")
	return nil
}

// WithdrawFromOrderbook pulls stranded exchange-side funds back to the
// pool. Permissionless, but only once the integration is off: while it is
// live the sync cycle owns those funds.
func (p *OrderbookPool) WithdrawFromOrderbook(env ledger.Env, sender string) error {
	if p.enabled {
		return fmt.Errorf("%w: orderbook integration is still enabled", types.ErrNonSupported)
	}
	if err := p.book.CancelOrders(env); err != nil {
		return err
	}
	p.lastDeposited = [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}
	poolLogger.Info().
		Str("pool", p.pair.ContractAddr).
		Str("sender", sender).
		Msg("Orderbook funds withdrawn")
	return nil
}

// Sync is the per-block maintenance step: reconcile executed order flow
// into the curve, then cancel and repost the ladder around the possibly
// repegged price scale.
func (p *OrderbookPool) Sync(env ledger.Env) error {
	if !p.enabled {
		return nil
	}
	if err := p.Reconcile(env); err != nil {
		return err
	}
	if err := p.book.CancelOrders(env); err != nil {
		return err
	}
	return p.repost(env)
}

// Reconcile folds executed order flow into the pool state. The drift of
// exchange-side balances since the last repost is one aggregate trade:
// whatever the book paid out was offered by takers, whatever it gained was
// bought. That trade runs through the same oracle, profit and repeg path as
// a direct swap.
func (p *OrderbookPool) Reconcile(env ledger.Env) error {
	current := p.book.Deposited()
	delta0 := current[0].Sub(p.lastDeposited[0])
	delta1 := current[1].Sub(p.lastDeposited[1])
	p.lastDeposited = current

	if delta0.IsZero() && delta1.IsZero() {
		return nil
	}
	// one-sided drift is a deposit adjustment, not a trade; no price signal
	if delta0.IsZero() || delta1.IsZero() || delta0.IsNegative() == delta1.IsNegative() {
		return nil
	}

	norm0, err := p.normalize(delta0.Abs(), 0)
	if err != nil {
		return err
	}
	norm1, err := p.normalize(delta1.Abs(), 1)
	if err != nil {
		return err
	}
	// the realised execution price of the aggregate fill, asset 0 per
	// asset 1; orientation cancels out of the ratio
	lastPrice := sdkmath.LegacyNewDecFromInt(norm0).Quo(sdkmath.LegacyNewDecFromInt(norm1))

	p.accumulatePrices(env)
	if err := p.afterTrade(env.BlockTime, lastPrice); err != nil {
		return err
	}
	p.recordBalances(env.BlockHeight)
	return nil
}

// repost rebuilds the resting ladder: OrdersNumber orders per side, the
// mirrored liquidity split evenly across them, spaced from the price scale
// by multiples of the current dynamic fee.
func (p *OrderbookPool) repost(env ledger.Env) error {
	reserves := p.reserves()
	if reserves[0].IsZero() || reserves[1].IsZero() {
		return nil
	}

	xp, err := p.toXp(reserves, p.price.PriceScale)
	if err != nil {
		return err
	}
	halfSpread := pclmath.DynamicFee(xp[0], xp[1],
		p.params.MidFee, p.params.OutFee, p.params.FeeGamma)

	levels := int64(p.obCfg.OrdersNumber)
	sellSlice := p.obCfg.LiquidityPercent.MulInt(reserves[0]).TruncateInt().QuoRaw(levels)
	buySlice := p.obCfg.LiquidityPercent.MulInt(reserves[1]).TruncateInt().QuoRaw(levels)

	scale := p.price.PriceScale
	var orders []Order
	for i := int64(1); i <= levels; i++ {
		offset := halfSpread.MulInt64(i)
		if sellSlice.GTE(p.obCfg.MinBaseOrderSize) && sellSlice.IsPositive() {
			orders = append(orders, Order{
				IsBuy:  false,
				Price:  scale.Mul(sdkmath.LegacyOneDec().Add(offset)),
				Amount: sellSlice,
			})
		}
		if buySlice.GTE(p.obCfg.MinQuoteOrderSize) && buySlice.IsPositive() {
			orders = append(orders, Order{
				IsBuy:  true,
				Price:  scale.Mul(sdkmath.LegacyOneDec().Sub(offset)),
				Amount: buySlice,
			})
		}
	}
	if len(orders) == 0 {
		return nil
	}
	if err := p.book.PostOrders(env, orders); err != nil {
		return err
	}
	p.lastDeposited = p.book.Deposited()
	return nil
}
