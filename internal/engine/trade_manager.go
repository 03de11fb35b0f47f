package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trade-journal-bot/internal/database"
	"trade-journal-bot/internal/events"
	"trade-journal-bot/internal/market"
	"trade-journal-bot/internal/monitoring"
	"trade-journal-bot/internal/signal"
)

// TradeConfig tunes the trade lifecycle.
type TradeConfig struct {
	// TTL force-closes trades still open after this long. Zero means the
	// 24h default.
	TTL time.Duration `json:"ttl"`

	// Accounting selects how PnL is derived: "risk" sizes PnL off
	// RiskPerTrade and the realized R multiple, "notional" uses
	// (exit-entry)*size*direction.
	Accounting   string  `json:"accounting"`
	RiskPerTrade float64 `json:"risk_per_trade"`
}

func (c *TradeConfig) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.Accounting == "" {
		c.Accounting = "risk"
	}
	if c.RiskPerTrade <= 0 {
		c.RiskPerTrade = 100
	}
}

// TradeManager opens trades from filled orders and drives the single
// OPEN -> CLOSED transition.
type TradeManager struct {
	store    RecordStore
	provider market.Provider
	bus      *events.Bus
	config   TradeConfig
	logger   zerolog.Logger
	now      func() time.Time
}

// NewTradeManager creates a trade lifecycle manager.
func NewTradeManager(store RecordStore, provider market.Provider, bus *events.Bus, config TradeConfig, logger zerolog.Logger) *TradeManager {
	config.applyDefaults()
	return &TradeManager{
		store:    store,
		provider: provider,
		bus:      bus,
		config:   config,
		logger:   logger.With().Str("component", "trade_manager").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OpenFromOrder opens the trade derived from a filling order. At most one
// trade ever exists per order: if one already does, it is returned as-is.
func (tm *TradeManager) OpenFromOrder(ctx context.Context, order *database.Order, fill float64, openedAt time.Time) (*database.Trade, error) {
	existing, err := tm.store.GetTradeByOrderID(ctx, order.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("looking up trade for order %s: %w", order.ID, err)
	}

	orderID := order.ID
	trade := &database.Trade{
		ID:       uuid.NewString(),
		OrderID:  &orderID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Entry:    fill,
		Stop:     order.Stop,
		Take:     order.Take,
		Size:     order.Size,
		Status:   database.TradeStatusOpen,
		OpenedAt: openedAt,
	}

	if err := tm.store.CreateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("creating trade: %w", err)
	}

	tm.logger.Info().
		Str("trade_id", trade.ID).
		Str("order_id", order.ID).
		Str("symbol", trade.Symbol).
		Float64("entry", trade.Entry).
		Msg("trade opened")
	tm.bus.Publish(events.EventTradeOpened, map[string]interface{}{
		"trade_id": trade.ID, "order_id": order.ID, "symbol": trade.Symbol,
	})

	return trade, nil
}

// Get returns one trade by ID.
func (tm *TradeManager) Get(ctx context.Context, id string) (*database.Trade, error) {
	return tm.store.GetTrade(ctx, id)
}

// List returns trades matching the filter.
func (tm *TradeManager) List(ctx context.Context, filter database.TradeFilter) ([]*database.Trade, error) {
	return tm.store.ListTrades(ctx, filter)
}

// Close performs the terminal transition on an open trade. Closing an
// already-closed trade returns ErrTradeNotOpen.
func (tm *TradeManager) Close(ctx context.Context, id string, exit float64, reason string) (*database.Trade, error) {
	trade, err := tm.store.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	if trade.Status != database.TradeStatusOpen {
		return nil, ErrTradeNotOpen
	}

	closedAt := tm.now()
	realizedR := realizedMultiple(trade, exit)
	pnl := tm.pnl(trade, exit, realizedR)

	if err := tm.store.CloseTrade(ctx, id, exit, reason, closedAt, realizedR, pnl); err != nil {
		return nil, fmt.Errorf("closing trade: %w", err)
	}

	monitoring.RecordTradeClosed(reason)
	tm.logger.Info().
		Str("trade_id", id).
		Str("symbol", trade.Symbol).
		Str("reason", reason).
		Float64("exit", exit).
		Float64("realized_r", realizedR).
		Msg("trade closed")
	tm.bus.Publish(events.EventTradeClosed, map[string]interface{}{
		"trade_id": id, "symbol": trade.Symbol, "reason": reason, "realized_r": realizedR,
	})

	return tm.store.GetTrade(ctx, id)
}

// CheckOpen evaluates every OPEN trade once: TTL first, then the
// side-aware stop and target checks against the latest price. One failing
// symbol never blocks the rest of the tick.
func (tm *TradeManager) CheckOpen(ctx context.Context) TickOutcome {
	outcome := TickOutcome{}

	open, err := tm.store.ListTrades(ctx, database.TradeFilter{Status: database.TradeStatusOpen})
	if err != nil {
		tm.logger.Error().Err(err).Msg("listing open trades failed")
		outcome.Failed++
		return outcome
	}

	now := tm.now()
	remaining := len(open)
	for _, trade := range open {
		outcome.Checked++
		closed, err := tm.checkTrade(ctx, trade, now)
		if err != nil {
			outcome.Failed++
			tm.logger.Warn().Err(err).Str("trade_id", trade.ID).Msg("trade check failed")
			continue
		}
		if closed {
			outcome.Transitioned++
			remaining--
		}
	}

	monitoring.SetOpenTrades(remaining)
	return outcome
}

func (tm *TradeManager) checkTrade(ctx context.Context, trade *database.Trade, now time.Time) (bool, error) {
	price, err := tm.provider.GetCurrentPrice(ctx, trade.Symbol)
	if err != nil {
		return false, err
	}

	// Stop has priority when a single tick price satisfies both levels.
	long := trade.Side == string(signal.Long)
	switch {
	case long && price <= trade.Stop, !long && price >= trade.Stop:
		if _, err := tm.Close(ctx, trade.ID, trade.Stop, "stop"); err != nil {
			return false, err
		}
		return true, nil
	case long && price >= trade.Take, !long && price <= trade.Take:
		if _, err := tm.Close(ctx, trade.ID, trade.Take, "target"); err != nil {
			return false, err
		}
		return true, nil
	}

	// TTL is the fallback when neither level fired.
	if now.Sub(trade.OpenedAt) >= tm.config.TTL {
		if _, err := tm.Close(ctx, trade.ID, price, "ttl"); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// realizedMultiple computes the signed R multiple for an exit:
// (exit - entry) * direction / |entry - stop|.
func realizedMultiple(trade *database.Trade, exit float64) float64 {
	risk := math.Abs(trade.Entry - trade.Stop)
	if risk == 0 {
		return 0
	}
	direction := 1.0
	if trade.Side == string(signal.Short) {
		direction = -1.0
	}
	return (exit - trade.Entry) * direction / risk
}

func (tm *TradeManager) pnl(trade *database.Trade, exit, realizedR float64) float64 {
	if tm.config.Accounting == "notional" {
		direction := 1.0
		if trade.Side == string(signal.Short) {
			direction = -1.0
		}
		return (exit - trade.Entry) * trade.Size * direction
	}
	return realizedR * tm.config.RiskPerTrade
}

// TradeStats summarizes closed-trade performance.
type TradeStats struct {
	Total    int            `json:"total"`
	Open     int            `json:"open"`
	Closed   int            `json:"closed"`
	Wins     int            `json:"wins"`
	Losses   int            `json:"losses"`
	WinRate  float64        `json:"win_rate"`
	TotalR   float64        `json:"total_r"`
	AvgR     float64        `json:"avg_r"`
	BestR    float64        `json:"best_r"`
	WorstR   float64        `json:"worst_r"`
	TotalPnL float64        `json:"total_pnl"`
	ByReason map[string]int `json:"by_reason"`
}

// Stats aggregates performance across all recorded trades.
func (tm *TradeManager) Stats(ctx context.Context) (*TradeStats, error) {
	trades, err := tm.store.ListTrades(ctx, database.TradeFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing trades: %w", err)
	}

	stats := &TradeStats{ByReason: make(map[string]int)}
	for _, trade := range trades {
		stats.Total++
		if trade.Status == database.TradeStatusOpen {
			stats.Open++
			continue
		}

		stats.Closed++
		r := 0.0
		if trade.RealizedR != nil {
			r = *trade.RealizedR
		}
		if r > 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
		stats.TotalR += r
		if stats.Closed == 1 || r > stats.BestR {
			stats.BestR = r
		}
		if stats.Closed == 1 || r < stats.WorstR {
			stats.WorstR = r
		}
		if trade.PnL != nil {
			stats.TotalPnL += *trade.PnL
		}
		if trade.ExitReason != nil {
			stats.ByReason[*trade.ExitReason]++
		}
	}

	if stats.Closed > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Closed) * 100
		stats.AvgR = stats.TotalR / float64(stats.Closed)
	}

	return stats, nil
}
