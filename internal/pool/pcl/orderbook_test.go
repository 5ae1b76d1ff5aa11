package pcl

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/keelswap/keel/internal/ledger"
	"github.com/keelswap/keel/internal/types"
)

// stubBook records posted ladders and lets tests move the exchange-side
// balances to simulate fills.
type stubBook struct {
	deposited [2]sdkmath.Int
	orders    []Order
	cancelled int
}

func newStubBook() *stubBook {
	return &stubBook{deposited: [2]sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}}
}

func (b *stubBook) Deposited() [2]sdkmath.Int {
	return b.deposited
}

func (b *stubBook) CancelOrders(ledger.Env) error {
	b.cancelled++
	b.orders = nil
	return nil
}

func (b *stubBook) PostOrders(_ ledger.Env, orders []Order) error {
	b.orders = orders
	return nil
}

func defaultOrderbookConfig() OrderbookConfig {
	return OrderbookConfig{
		LiquidityPercent:  sdkmath.LegacyMustNewDecFromStr("0.1"),
		OrdersNumber:      5,
		MinBaseOrderSize:  sdkmath.NewInt(1000),
		MinQuoteOrderSize: sdkmath.NewInt(1000),
	}
}

func newOrderbookFixture(t *testing.T) (*fixture, *OrderbookPool, *stubBook) {
	t.Helper()
	f := newFixture(t, "1", defaultParams())
	f.provide(alice, env(2, 100), 100_000_000_000, 100_000_000_000)

	book := newStubBook()
	obp, err := NewOrderbookPool(f.pool, book, defaultOrderbookConfig())
	require.NoError(t, err)
	return f, obp, book
}

func TestOrderbookConfigValidation(t *testing.T) {
	f := newFixture(t, "1", defaultParams())
	var paramErr *types.IncorrectPoolParam

	cfg := defaultOrderbookConfig()
	cfg.LiquidityPercent = sdkmath.LegacyZeroDec()
	_, err := NewOrderbookPool(f.pool, newStubBook(), cfg)
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "liquidity_percent", paramErr.Name)

	cfg = defaultOrderbookConfig()
	cfg.OrdersNumber = 0
	_, err = NewOrderbookPool(f.pool, newStubBook(), cfg)
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "orders_number", paramErr.Name)

	cfg = defaultOrderbookConfig()
	cfg.OrdersNumber = maxOrdersNumber + 1
	_, err = NewOrderbookPool(f.pool, newStubBook(), cfg)
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "orders_number", paramErr.Name)
}

func TestOrderbookEnableIsOwnerGated(t *testing.T) {
	_, obp, _ := newOrderbookFixture(t)

	require.ErrorIs(t, obp.EnableOrderbook(env(3, 200), bob), types.ErrUnauthorized)
	require.False(t, obp.Enabled())

	require.NoError(t, obp.EnableOrderbook(env(3, 200), alice))
	require.True(t, obp.Enabled())

	require.ErrorIs(t, obp.DisableOrderbook(env(4, 300), bob), types.ErrUnauthorized)
	require.NoError(t, obp.DisableOrderbook(env(4, 300), alice))
	require.False(t, obp.Enabled())
}

func TestOrderbookLadder(t *testing.T) {
	_, obp, book := newOrderbookFixture(t)
	require.NoError(t, obp.EnableOrderbook(env(3, 200), alice))

	// five levels per side, a tenth of each reserve split evenly
	require.Len(t, book.orders, 10)
	slice := sdkmath.NewInt(2_000_000_000)

	one := sdkmath.LegacyOneDec()
	for i, order := range book.orders {
		require.Equal(t, slice, order.Amount)
		if order.IsBuy {
			require.True(t, order.Price.LT(one), "buy order %d priced %s", i, order.Price)
		} else {
			require.True(t, order.Price.GT(one), "sell order %d priced %s", i, order.Price)
		}
	}
	// the innermost orders sit one fee step off the peg
	requireDecInDelta(t, "1.0026", book.orders[0].Price, 1e-6)
	requireDecInDelta(t, "0.9974", book.orders[1].Price, 1e-6)
}

func TestOrderbookWithdrawGate(t *testing.T) {
	_, obp, book := newOrderbookFixture(t)
	require.NoError(t, obp.EnableOrderbook(env(3, 200), alice))

	err := obp.WithdrawFromOrderbook(env(4, 300), bob)
	require.ErrorIs(t, err, types.ErrNonSupported)

	require.NoError(t, obp.DisableOrderbook(env(4, 300), alice))
	// permissionless once disabled
	require.NoError(t, obp.WithdrawFromOrderbook(env(5, 400), bob))
	require.Empty(t, book.orders)
}

func TestOrderbookReconcileRegistersFill(t *testing.T) {
	_, obp, book := newOrderbookFixture(t)
	require.NoError(t, obp.EnableOrderbook(env(3, 200), alice))

	// takers bought base off the ladder at a premium
	book.deposited[0] = book.deposited[0].SubRaw(100_000_000)
	book.deposited[1] = book.deposited[1].AddRaw(100_260_000)

	require.NoError(t, obp.Sync(env(4, 300)))

	state := obp.PriceStateView()
	requireDecInDelta(t, "0.997406", state.LastPrice, 1e-5)
	require.True(t, state.PriceOracle.LT(sdkmath.LegacyOneDec()))
	require.True(t, state.PriceOracle.GT(sdkmath.LegacyMustNewDecFromStr("0.997")))
	require.Equal(t, uint64(300), state.LastPriceUpdateTs)

	// the ladder was rebuilt after reconciling
	require.Len(t, book.orders, 10)
	require.GreaterOrEqual(t, book.cancelled, 1)
}
