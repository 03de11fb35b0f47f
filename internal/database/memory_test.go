package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(symbol string) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      "LONG",
		Timeframe: "1h",
		Entry:     100,
		Stop:      95,
		Take:      110,
		Size:      1,
		Status:    OrderStatusPending,
		Mode:      ModeSupervised,
		CreatedAt: now,
		ExpiresAt: now.Add(6 * time.Hour),
	}
}

func TestMemoryStoreOrders(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	order := testOrder("BTCUSDT")
	require.NoError(t, store.CreateOrder(ctx, order))

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := store.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		got.Symbol = "MUTATED"

		again, err := store.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, "BTCUSDT", again.Symbol)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := store.GetOrder(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list filters by status and symbol", func(t *testing.T) {
		other := testOrder("ETHUSDT")
		other.Status = OrderStatusCanceled
		require.NoError(t, store.CreateOrder(ctx, other))

		pending, err := store.ListOrders(ctx, OrderFilter{Status: OrderStatusPending})
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		eth, err := store.ListOrders(ctx, OrderFilter{Symbol: "ETHUSDT"})
		require.NoError(t, err)
		assert.Len(t, eth, 1)
	})

	t.Run("status update", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, store.UpdateOrderStatus(ctx, order.ID, OrderStatusFilled, "filled", &now))

		got, err := store.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, OrderStatusFilled, got.Status)
		require.NotNil(t, got.FilledAt)
		require.NotNil(t, got.Reason)
		assert.Equal(t, "filled", *got.Reason)
	})

	t.Run("status update on missing order", func(t *testing.T) {
		assert.ErrorIs(t, store.UpdateOrderStatus(ctx, "nope", OrderStatusCanceled, "", nil), ErrNotFound)
	})
}

func TestMemoryStoreTrades(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	orderID := uuid.NewString()
	trade := &Trade{
		ID:       uuid.NewString(),
		OrderID:  &orderID,
		Symbol:   "BTCUSDT",
		Side:     "LONG",
		Entry:    100,
		Stop:     95,
		Take:     110,
		Size:     1,
		Status:   TradeStatusOpen,
		OpenedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateTrade(ctx, trade))

	t.Run("lookup by order id", func(t *testing.T) {
		got, err := store.GetTradeByOrderID(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, trade.ID, got.ID)

		_, err = store.GetTradeByOrderID(ctx, "unrelated")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("close is guarded by open status", func(t *testing.T) {
		closedAt := time.Now().UTC()
		require.NoError(t, store.CloseTrade(ctx, trade.ID, 110, "target", closedAt, 2.0, 10))

		got, err := store.GetTrade(ctx, trade.ID)
		require.NoError(t, err)
		assert.Equal(t, TradeStatusClosed, got.Status)
		require.NotNil(t, got.Exit)
		assert.Equal(t, 110.0, *got.Exit)
		require.NotNil(t, got.RealizedR)
		assert.Equal(t, 2.0, *got.RealizedR)

		// Second close fails: the trade is no longer open.
		assert.ErrorIs(t, store.CloseTrade(ctx, trade.ID, 111, "manual", closedAt, 2.2, 11), ErrNotFound)
	})
}
