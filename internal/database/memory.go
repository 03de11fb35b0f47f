package database

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory record store implementing the same surface
// as Repository. Used for dry-run mode and tests; no durability.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
	trades map[string]*Trade
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*Order),
		trades: make(map[string]*Trade),
	}
}

// CreateOrder stores a copy of the order.
func (m *MemoryStore) CreateOrder(_ context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.UpdatedAt = time.Now().UTC()
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

// GetOrder returns a copy of the order or ErrNotFound.
func (m *MemoryStore) GetOrder(_ context.Context, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *order
	return &cp, nil
}

// ListOrders returns copies of orders matching the filter.
func (m *MemoryStore) ListOrders(_ context.Context, filter OrderFilter) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Order
	for _, order := range m.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.Symbol != "" && order.Symbol != filter.Symbol {
			continue
		}
		if filter.Mode != "" && order.Mode != filter.Mode {
			continue
		}
		cp := *order
		out = append(out, &cp)
	}
	return out, nil
}

// UpdateOrderStatus applies a status transition to a stored order.
func (m *MemoryStore) UpdateOrderStatus(_ context.Context, id, status, reason string, filledAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.Status = status
	order.Reason = &reason
	if filledAt != nil {
		order.FilledAt = filledAt
	}
	order.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateTrade stores a copy of the trade.
func (m *MemoryStore) CreateTrade(_ context.Context, trade *Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	trade.UpdatedAt = time.Now().UTC()
	cp := *trade
	m.trades[trade.ID] = &cp
	return nil
}

// GetTrade returns a copy of the trade or ErrNotFound.
func (m *MemoryStore) GetTrade(_ context.Context, id string) (*Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trade, ok := m.trades[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *trade
	return &cp, nil
}

// GetTradeByOrderID returns the trade derived from an order, if any.
func (m *MemoryStore) GetTradeByOrderID(_ context.Context, orderID string) (*Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, trade := range m.trades {
		if trade.OrderID != nil && *trade.OrderID == orderID {
			cp := *trade
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListTrades returns copies of trades matching the filter.
func (m *MemoryStore) ListTrades(_ context.Context, filter TradeFilter) ([]*Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Trade
	for _, trade := range m.trades {
		if filter.Status != "" && trade.Status != filter.Status {
			continue
		}
		if filter.Symbol != "" && trade.Symbol != filter.Symbol {
			continue
		}
		cp := *trade
		out = append(out, &cp)
	}
	return out, nil
}

// CloseTrade applies the terminal transition to a stored open trade.
func (m *MemoryStore) CloseTrade(_ context.Context, id string, exit float64, reason string, closedAt time.Time, realizedR, pnl float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	trade, ok := m.trades[id]
	if !ok || trade.Status != TradeStatusOpen {
		return ErrNotFound
	}
	trade.Status = TradeStatusClosed
	trade.Exit = &exit
	trade.ExitReason = &reason
	trade.ClosedAt = &closedAt
	trade.RealizedR = &realizedR
	trade.PnL = &pnl
	trade.UpdatedAt = time.Now().UTC()
	return nil
}
