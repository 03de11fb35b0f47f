package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal-bot/internal/database"
	"trade-journal-bot/internal/events"
	"trade-journal-bot/internal/market"
	"trade-journal-bot/internal/signal"
)

// stubProvider serves fixed prices per symbol.
type stubProvider struct {
	prices map[string]float64
	err    error
}

func (p *stubProvider) GetKlines(_ context.Context, _, _ string, _ int) ([]market.Candle, error) {
	panic("not used")
}

func (p *stubProvider) GetCurrentPrice(_ context.Context, symbol string) (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.prices[symbol], nil
}

func newTestManagers(t *testing.T, provider *stubProvider) (*database.MemoryStore, *OrderManager, *TradeManager) {
	t.Helper()
	store := database.NewMemoryStore()
	bus := events.NewBus()
	trades := NewTradeManager(store, provider, bus, TradeConfig{}, zerolog.Nop())
	orders := NewOrderManager(store, provider, trades, bus, zerolog.Nop())
	return store, orders, trades
}

func longParams() OrderParams {
	return OrderParams{
		Symbol:    "BTCUSDT",
		Side:      string(signal.Long),
		Timeframe: "1h",
		Entry:     100,
		Stop:      95,
		Take:      110,
		Size:      2,
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	_, orders, _ := newTestManagers(t, &stubProvider{})
	ctx := context.Background()

	t.Run("long with stop above entry", func(t *testing.T) {
		params := longParams()
		params.Stop = 101
		_, err := orders.PlaceOrder(ctx, params)
		assert.ErrorIs(t, err, ErrInvalidLevels)
	})

	t.Run("short with take above entry", func(t *testing.T) {
		params := longParams()
		params.Side = string(signal.Short)
		params.Stop = 105
		params.Take = 110
		_, err := orders.PlaceOrder(ctx, params)
		assert.ErrorIs(t, err, ErrInvalidLevels)
	})

	t.Run("zero risk per unit", func(t *testing.T) {
		params := longParams()
		params.Stop = 100
		_, err := orders.PlaceOrder(ctx, params)
		assert.ErrorIs(t, err, ErrInvalidLevels)
	})

	t.Run("order of magnitude mismatch is rejected not rescaled", func(t *testing.T) {
		params := longParams()
		params.Stop = 9.5 // looks like a misplaced decimal point
		_, err := orders.PlaceOrder(ctx, params)
		assert.ErrorIs(t, err, ErrInvalidLevels)
	})

	t.Run("unknown side", func(t *testing.T) {
		params := longParams()
		params.Side = "SIDEWAYS"
		_, err := orders.PlaceOrder(ctx, params)
		assert.ErrorIs(t, err, ErrInvalidLevels)
	})
}

func TestPlaceOrderDefaultsAndTTL(t *testing.T) {
	_, orders, _ := newTestManagers(t, &stubProvider{})

	params := longParams()
	params.Size = 0
	params.Mode = ""
	order, err := orders.PlaceOrder(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, database.OrderStatusPending, order.Status)
	assert.Equal(t, database.ModeSupervised, order.Mode)
	assert.Equal(t, 1.0, order.Size)
	assert.Equal(t, 6*time.Hour, order.ExpiresAt.Sub(order.CreatedAt), "1h timeframe carries a 6h ttl")
}

func TestCheckPendingFillsAtEntry(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 99.5}}
	store, orders, _ := newTestManagers(t, provider)
	ctx := context.Background()

	order, err := orders.PlaceOrder(ctx, longParams())
	require.NoError(t, err)

	outcome := orders.CheckPending(ctx)
	assert.Equal(t, 1, outcome.Checked)
	assert.Equal(t, 1, outcome.Transitioned)
	assert.Equal(t, 0, outcome.Failed)

	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, database.OrderStatusFilled, got.Status)
	require.NotNil(t, got.FilledAt)

	trade, err := store.GetTradeByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, database.TradeStatusOpen, trade.Status)
	assert.Equal(t, 100.0, trade.Entry, "limit fill uses the entry price, not the tick price")
	assert.Equal(t, order.Size, trade.Size)
}

func TestCheckPendingSecondTickIsQuiet(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 99.5}}
	_, orders, _ := newTestManagers(t, provider)
	ctx := context.Background()

	_, err := orders.PlaceOrder(ctx, longParams())
	require.NoError(t, err)

	first := orders.CheckPending(ctx)
	assert.Equal(t, 1, first.Transitioned)

	// The fill already happened; with no price change a second tick has
	// nothing pending and transitions nothing.
	second := orders.CheckPending(ctx)
	assert.Equal(t, 0, second.Checked)
	assert.Equal(t, 0, second.Transitioned)
	assert.Equal(t, 0, second.Failed)
}

func TestCheckPendingHoldsAboveEntry(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 104}}
	store, orders, _ := newTestManagers(t, provider)
	ctx := context.Background()

	order, err := orders.PlaceOrder(ctx, longParams())
	require.NoError(t, err)

	outcome := orders.CheckPending(ctx)
	assert.Equal(t, 0, outcome.Transitioned)

	got, _ := store.GetOrder(ctx, order.ID)
	assert.Equal(t, database.OrderStatusPending, got.Status)
}

func TestExpiryBeatsFill(t *testing.T) {
	// Price satisfies the fill condition, but the order is already past its
	// ttl: expiry wins and no trade is created.
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 99}}
	store, orders, _ := newTestManagers(t, provider)
	ctx := context.Background()

	order, err := orders.PlaceOrder(ctx, longParams())
	require.NoError(t, err)

	orders.now = func() time.Time { return time.Now().UTC().Add(7 * time.Hour) }
	outcome := orders.CheckPending(ctx)
	assert.Equal(t, 1, outcome.Transitioned)

	got, _ := store.GetOrder(ctx, order.ID)
	assert.Equal(t, database.OrderStatusExpired, got.Status)
	require.NotNil(t, got.Reason)

	_, err = store.GetTradeByOrderID(ctx, order.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

// flakyStore injects failures into selected writes.
type flakyStore struct {
	*database.MemoryStore
	failCreateTrade  bool
	failUpdateStatus int
}

func (s *flakyStore) CreateTrade(ctx context.Context, trade *database.Trade) error {
	if s.failCreateTrade {
		return errors.New("injected trade write failure")
	}
	return s.MemoryStore.CreateTrade(ctx, trade)
}

func (s *flakyStore) UpdateOrderStatus(ctx context.Context, id, status, reason string, filledAt *time.Time) error {
	if s.failUpdateStatus > 0 {
		s.failUpdateStatus--
		return errors.New("injected status write failure")
	}
	return s.MemoryStore.UpdateOrderStatus(ctx, id, status, reason, filledAt)
}

func TestFillFailsClosedWhenTradeCannotBeCreated(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 99}}
	store := &flakyStore{MemoryStore: database.NewMemoryStore(), failCreateTrade: true}
	bus := events.NewBus()
	trades := NewTradeManager(store, provider, bus, TradeConfig{}, zerolog.Nop())
	orders := NewOrderManager(store, provider, trades, bus, zerolog.Nop())
	ctx := context.Background()

	order, err := orders.PlaceOrder(ctx, longParams())
	require.NoError(t, err)

	outcome := orders.CheckPending(ctx)
	assert.Equal(t, 1, outcome.Failed)
	assert.Equal(t, 0, outcome.Transitioned)

	got, _ := store.GetOrder(ctx, order.ID)
	assert.Equal(t, database.OrderStatusPending, got.Status, "order must stay pending when the trade write fails")
}

func TestFillRetryNeverDoublesTheTrade(t *testing.T) {
	// First tick: the trade is created but the order status write fails.
	// Second tick: the fill retries, finds the existing trade and only
	// flips the status. Exactly one trade exists throughout.
	provider := &stubProvider{prices: map[string]float64{"BTCUSDT": 99}}
	store := &flakyStore{MemoryStore: database.NewMemoryStore(), failUpdateStatus: 1}
	bus := events.NewBus()
	trades := NewTradeManager(store, provider, bus, TradeConfig{}, zerolog.Nop())
	orders := NewOrderManager(store, provider, trades, bus, zerolog.Nop())
	ctx := context.Background()

	order, err := orders.PlaceOrder(ctx, longParams())
	require.NoError(t, err)

	first := orders.CheckPending(ctx)
	assert.Equal(t, 1, first.Failed)

	second := orders.CheckPending(ctx)
	assert.Equal(t, 1, second.Transitioned)

	got, _ := store.GetOrder(ctx, order.ID)
	assert.Equal(t, database.OrderStatusFilled, got.Status)

	all, err := store.ListTrades(ctx, database.TradeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCancel(t *testing.T) {
	store, orders, _ := newTestManagers(t, &stubProvider{})
	ctx := context.Background()

	order, err := orders.PlaceOrder(ctx, longParams())
	require.NoError(t, err)

	require.NoError(t, orders.Cancel(ctx, order.ID, "changed my mind"))

	got, _ := store.GetOrder(ctx, order.ID)
	assert.Equal(t, database.OrderStatusCanceled, got.Status)
	require.NotNil(t, got.Reason)
	assert.Equal(t, "changed my mind", *got.Reason)

	// Terminal orders reject further transitions.
	assert.ErrorIs(t, orders.Cancel(ctx, order.ID, ""), ErrOrderNotPending)

	// Unknown IDs surface as not found.
	assert.ErrorIs(t, orders.Cancel(ctx, "missing", ""), database.ErrNotFound)
}

func TestPromoteSignal(t *testing.T) {
	store, orders, _ := newTestManagers(t, &stubProvider{})
	ctx := context.Background()

	sig := signal.Signal{
		Symbol:    "ETHUSDT",
		Timeframe: "15m",
		Side:      signal.Long,
		Entry:     2000,
		Stop:      1950,
		Take:      2120,
	}
	order, err := orders.PromoteSignal(ctx, sig, database.ModeStrict, 3)
	require.NoError(t, err)

	assert.Equal(t, "signal", order.Executor)
	assert.Equal(t, database.ModeStrict, order.Mode)
	assert.Equal(t, 3.0, order.Size)
	assert.Equal(t, 2*time.Hour, order.ExpiresAt.Sub(order.CreatedAt))

	got, _ := store.GetOrder(ctx, order.ID)
	assert.Equal(t, database.OrderStatusPending, got.Status)
}
