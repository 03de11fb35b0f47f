package engine

import (
	"context"
	"time"

	"trade-journal-bot/internal/database"
)

// RecordStore is the persistence contract the engine is built against.
// *database.Repository (PostgreSQL) and *database.MemoryStore both satisfy
// it. Writes are at-least-once; the engine never assumes multi-record
// transactions.
type RecordStore interface {
	CreateOrder(ctx context.Context, order *database.Order) error
	GetOrder(ctx context.Context, id string) (*database.Order, error)
	ListOrders(ctx context.Context, filter database.OrderFilter) ([]*database.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status, reason string, filledAt *time.Time) error

	CreateTrade(ctx context.Context, trade *database.Trade) error
	GetTrade(ctx context.Context, id string) (*database.Trade, error)
	GetTradeByOrderID(ctx context.Context, orderID string) (*database.Trade, error)
	ListTrades(ctx context.Context, filter database.TradeFilter) ([]*database.Trade, error)
	CloseTrade(ctx context.Context, id string, exit float64, reason string, closedAt time.Time, realizedR, pnl float64) error
}
