package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("database: record not found")

// Repository provides data access for orders and trades. Writes are
// at-least-once: callers retry on the next tick when a write fails.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// ORDERS
// ============================================================================

// CreateOrder inserts a new order.
func (r *Repository) CreateOrder(ctx context.Context, order *Order) error {
	query := `
		INSERT INTO orders (id, symbol, side, timeframe, entry, stop, take, size, status, mode, executor, reason, created_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	order.UpdatedAt = time.Now().UTC()
	_, err := r.db.Pool.Exec(
		ctx, query,
		order.ID, order.Symbol, order.Side, order.Timeframe, order.Entry, order.Stop, order.Take,
		order.Size, order.Status, order.Mode, order.Executor, order.Reason,
		order.CreatedAt, order.ExpiresAt, order.UpdatedAt,
	)
	return err
}

// GetOrder retrieves an order by ID.
func (r *Repository) GetOrder(ctx context.Context, id string) (*Order, error) {
	query := orderSelect + ` WHERE id = $1`
	row := r.db.Pool.QueryRow(ctx, query, id)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return order, err
}

// ListOrders retrieves orders matching the filter, newest first.
func (r *Repository) ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	query := orderSelect
	var conds []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		conds = append(conds, fmt.Sprintf("symbol = $%d", len(args)))
	}
	if filter.Mode != "" {
		args = append(args, filter.Mode)
		conds = append(conds, fmt.Sprintf("mode = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UpdateOrderStatus persists an order transition with its audit reason.
// filledAt is only set for fills.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id, status, reason string, filledAt *time.Time) error {
	query := `
		UPDATE orders
		SET status = $2, reason = $3, filled_at = COALESCE($4, filled_at), updated_at = $5
		WHERE id = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query, id, status, reason, filledAt, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const orderSelect = `
	SELECT id, symbol, side, timeframe, entry, stop, take, size, status, mode, executor, reason,
	       created_at, filled_at, expires_at, updated_at
	FROM orders`

func scanOrder(row pgx.Row) (*Order, error) {
	order := &Order{}
	err := row.Scan(
		&order.ID, &order.Symbol, &order.Side, &order.Timeframe, &order.Entry, &order.Stop,
		&order.Take, &order.Size, &order.Status, &order.Mode, &order.Executor, &order.Reason,
		&order.CreatedAt, &order.FilledAt, &order.ExpiresAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ============================================================================
// TRADES
// ============================================================================

// CreateTrade inserts a new trade.
func (r *Repository) CreateTrade(ctx context.Context, trade *Trade) error {
	query := `
		INSERT INTO trades (id, order_id, symbol, side, entry, stop, take, size, status, opened_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	trade.UpdatedAt = time.Now().UTC()
	_, err := r.db.Pool.Exec(
		ctx, query,
		trade.ID, trade.OrderID, trade.Symbol, trade.Side, trade.Entry, trade.Stop, trade.Take,
		trade.Size, trade.Status, trade.OpenedAt, trade.UpdatedAt,
	)
	return err
}

// GetTrade retrieves a trade by ID.
func (r *Repository) GetTrade(ctx context.Context, id string) (*Trade, error) {
	query := tradeSelect + ` WHERE id = $1`
	row := r.db.Pool.QueryRow(ctx, query, id)
	trade, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return trade, err
}

// GetTradeByOrderID retrieves the trade derived from an order, if any.
// An order has at most one derived trade.
func (r *Repository) GetTradeByOrderID(ctx context.Context, orderID string) (*Trade, error) {
	query := tradeSelect + ` WHERE order_id = $1`
	row := r.db.Pool.QueryRow(ctx, query, orderID)
	trade, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return trade, err
}

// ListTrades retrieves trades matching the filter, newest first.
func (r *Repository) ListTrades(ctx context.Context, filter TradeFilter) ([]*Trade, error) {
	query := tradeSelect
	var conds []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		conds = append(conds, fmt.Sprintf("symbol = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY opened_at DESC"

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// CloseTrade persists the single terminal transition of a trade.
func (r *Repository) CloseTrade(ctx context.Context, id string, exit float64, reason string, closedAt time.Time, realizedR, pnl float64) error {
	query := `
		UPDATE trades
		SET status = $2, exit = $3, exit_reason = $4, closed_at = $5, realized_r = $6, pnl = $7, updated_at = $8
		WHERE id = $1 AND status = $9
	`
	tag, err := r.db.Pool.Exec(ctx, query, id, TradeStatusClosed, exit, reason, closedAt, realizedR, pnl, time.Now().UTC(), TradeStatusOpen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const tradeSelect = `
	SELECT id, order_id, symbol, side, entry, stop, take, size, status, exit, exit_reason,
	       opened_at, closed_at, realized_r, pnl, updated_at
	FROM trades`

func scanTrade(row pgx.Row) (*Trade, error) {
	trade := &Trade{}
	err := row.Scan(
		&trade.ID, &trade.OrderID, &trade.Symbol, &trade.Side, &trade.Entry, &trade.Stop,
		&trade.Take, &trade.Size, &trade.Status, &trade.Exit, &trade.ExitReason,
		&trade.OpenedAt, &trade.ClosedAt, &trade.RealizedR, &trade.PnL, &trade.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return trade, nil
}
