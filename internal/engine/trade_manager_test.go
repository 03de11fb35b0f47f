package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal-bot/internal/database"
	"trade-journal-bot/internal/events"
	"trade-journal-bot/internal/signal"
)

func openTestTrade(t *testing.T, orders *OrderManager, trades *TradeManager, params OrderParams) *database.Trade {
	t.Helper()
	ctx := context.Background()
	order, err := orders.PlaceOrder(ctx, params)
	require.NoError(t, err)
	trade, err := trades.OpenFromOrder(ctx, order, order.Entry, time.Now().UTC())
	require.NoError(t, err)
	return trade
}

func TestOpenFromOrderIdempotent(t *testing.T) {
	_, orders, trades := newTestManagers(t, &stubProvider{})
	ctx := context.Background()

	order, err := orders.PlaceOrder(ctx, longParams())
	require.NoError(t, err)

	first, err := trades.OpenFromOrder(ctx, order, 100, time.Now().UTC())
	require.NoError(t, err)
	second, err := trades.OpenFromOrder(ctx, order, 100, time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	all, err := trades.List(ctx, database.TradeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCheckOpenClosesLongAtStop(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 94}}
	store, orders, trades := newTestManagers(t, provider)
	trade := openTestTrade(t, orders, trades, longParams()) // entry 100, stop 95
	ctx := context.Background()

	outcome := trades.CheckOpen(ctx)
	assert.Equal(t, 1, outcome.Transitioned)

	got, err := store.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, database.TradeStatusClosed, got.Status)
	require.NotNil(t, got.Exit)
	assert.Equal(t, 95.0, *got.Exit, "close at the stop level, not the tick price")
	require.NotNil(t, got.ExitReason)
	assert.Equal(t, "stop", *got.ExitReason)
	require.NotNil(t, got.RealizedR)
	assert.InDelta(t, -1.0, *got.RealizedR, 1e-9)
}

func TestCheckOpenClosesLongAtTarget(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 111}}
	store, orders, trades := newTestManagers(t, provider)
	trade := openTestTrade(t, orders, trades, longParams()) // take 110
	ctx := context.Background()

	trades.CheckOpen(ctx)

	got, _ := store.GetTrade(ctx, trade.ID)
	require.NotNil(t, got.ExitReason)
	assert.Equal(t, "target", *got.ExitReason)
	require.NotNil(t, got.RealizedR)
	assert.InDelta(t, 2.0, *got.RealizedR, 1e-9) // (110-100)/5
}

func TestCheckOpenClosesShortSideAware(t *testing.T) {
	// Short: stop above entry, target below.
	params := OrderParams{
		Symbol:    "ETHUSDT",
		Side:      string(signal.Short),
		Timeframe: "1h",
		Entry:     100,
		Stop:      105,
		Take:      90,
		Size:      1,
	}
	provider := &stubProvider{prices: map[string]float64{"ETHUSDT": 89}}
	store, orders, trades := newTestManagers(t, provider)
	trade := openTestTrade(t, orders, trades, params)
	ctx := context.Background()

	trades.CheckOpen(ctx)

	got, _ := store.GetTrade(ctx, trade.ID)
	require.NotNil(t, got.ExitReason)
	assert.Equal(t, "target", *got.ExitReason)
	require.NotNil(t, got.RealizedR)
	assert.InDelta(t, 2.0, *got.RealizedR, 1e-9) // (90-100)*-1/5
}

func TestCheckOpenHoldsBetweenLevels(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 102}}
	store, orders, trades := newTestManagers(t, provider)
	trade := openTestTrade(t, orders, trades, longParams())
	ctx := context.Background()

	outcome := trades.CheckOpen(ctx)
	assert.Equal(t, 0, outcome.Transitioned)

	got, _ := store.GetTrade(ctx, trade.ID)
	assert.Equal(t, database.TradeStatusOpen, got.Status)
}

func TestTTLForceClose(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 102}}
	store, orders, trades := newTestManagers(t, provider)
	trade := openTestTrade(t, orders, trades, longParams())
	ctx := context.Background()

	trades.now = func() time.Time { return time.Now().UTC().Add(25 * time.Hour) }
	outcome := trades.CheckOpen(ctx)
	assert.Equal(t, 1, outcome.Transitioned)

	got, _ := store.GetTrade(ctx, trade.ID)
	assert.Equal(t, database.TradeStatusClosed, got.Status)
	require.NotNil(t, got.ExitReason)
	assert.Equal(t, "ttl", *got.ExitReason)
	require.NotNil(t, got.Exit)
	assert.Equal(t, 102.0, *got.Exit, "ttl close uses the current price")
}

func TestStaleTradePastStopClosesAtStop(t *testing.T) {
	// The trade is past its ttl AND the price has passed the stop. The
	// level check wins: exit at the stop, not at the tick price.
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 94}}
	store, orders, trades := newTestManagers(t, provider)
	trade := openTestTrade(t, orders, trades, longParams()) // stop 95
	ctx := context.Background()

	trades.now = func() time.Time { return time.Now().UTC().Add(25 * time.Hour) }
	trades.CheckOpen(ctx)

	got, _ := store.GetTrade(ctx, trade.ID)
	assert.Equal(t, database.TradeStatusClosed, got.Status)
	require.NotNil(t, got.ExitReason)
	assert.Equal(t, "stop", *got.ExitReason, "ttl is a fallback, not a preemption")
	require.NotNil(t, got.Exit)
	assert.Equal(t, 95.0, *got.Exit)
	require.NotNil(t, got.RealizedR)
	assert.InDelta(t, -1.0, *got.RealizedR, 1e-9)
}

func TestCheckOpenSecondTickIsQuiet(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 94}}
	_, orders, trades := newTestManagers(t, provider)
	openTestTrade(t, orders, trades, longParams())
	ctx := context.Background()

	first := trades.CheckOpen(ctx)
	assert.Equal(t, 1, first.Transitioned)

	// The price has not moved; a second tick sees no open trades and makes
	// no further transitions.
	second := trades.CheckOpen(ctx)
	assert.Equal(t, 0, second.Checked)
	assert.Equal(t, 0, second.Transitioned)
}

func TestCloseIsTerminal(t *testing.T) {
	_, orders, trades := newTestManagers(t, &stubProvider{prices: map[string]float64{"BTCUSDT": 102}})
	trade := openTestTrade(t, orders, trades, longParams())
	ctx := context.Background()

	_, err := trades.Close(ctx, trade.ID, 108, "manual")
	require.NoError(t, err)

	_, err = trades.Close(ctx, trade.ID, 109, "manual")
	assert.ErrorIs(t, err, ErrTradeNotOpen)
}

func TestRiskAccountingPnL(t *testing.T) {
	store := database.NewMemoryStore()
	provider := &stubProvider{}
	trades := NewTradeManager(store, provider, events.NewBus(), TradeConfig{RiskPerTrade: 50}, zerolog.Nop())
	orders := NewOrderManager(store, provider, trades, events.NewBus(), zerolog.Nop())
	trade := openTestTrade(t, orders, trades, longParams())
	ctx := context.Background()

	closed, err := trades.Close(ctx, trade.ID, 110, "manual")
	require.NoError(t, err)
	require.NotNil(t, closed.PnL)
	assert.InDelta(t, 100.0, *closed.PnL, 1e-9) // +2R at 50 risk per trade
}

func TestNotionalAccountingPnL(t *testing.T) {
	store := database.NewMemoryStore()
	provider := &stubProvider{}
	trades := NewTradeManager(store, provider, events.NewBus(), TradeConfig{Accounting: "notional"}, zerolog.Nop())
	orders := NewOrderManager(store, provider, trades, events.NewBus(), zerolog.Nop())
	trade := openTestTrade(t, orders, trades, longParams()) // size 2
	ctx := context.Background()

	closed, err := trades.Close(ctx, trade.ID, 110, "manual")
	require.NoError(t, err)
	require.NotNil(t, closed.PnL)
	assert.InDelta(t, 20.0, *closed.PnL, 1e-9) // (110-100) * 2
}

func TestStats(t *testing.T) {
	_, orders, trades := newTestManagers(t, &stubProvider{})
	ctx := context.Background()

	win := openTestTrade(t, orders, trades, longParams())
	_, err := trades.Close(ctx, win.ID, 110, "target")
	require.NoError(t, err)

	lossParams := longParams()
	lossParams.Symbol = "ETHUSDT"
	loss := openTestTrade(t, orders, trades, lossParams)
	_, err = trades.Close(ctx, loss.ID, 95, "stop")
	require.NoError(t, err)

	stillOpenParams := longParams()
	stillOpenParams.Symbol = "SOLUSDT"
	openTestTrade(t, orders, trades, stillOpenParams)

	stats, err := trades.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Open)
	assert.Equal(t, 2, stats.Closed)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.InDelta(t, 50.0, stats.WinRate, 1e-9)
	assert.InDelta(t, 1.0, stats.TotalR, 1e-9) // +2R then -1R
	assert.InDelta(t, 2.0, stats.BestR, 1e-9)
	assert.InDelta(t, -1.0, stats.WorstR, 1e-9)
	assert.Equal(t, 1, stats.ByReason["target"])
	assert.Equal(t, 1, stats.ByReason["stop"])
}
