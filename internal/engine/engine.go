// Package engine ties detection to the order and trade lifecycles. It owns
// the periodic scan and monitoring tasks and the promotion policy deciding
// which signals become orders.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trade-journal-bot/internal/database"
	"trade-journal-bot/internal/events"
	"trade-journal-bot/internal/monitoring"
	"trade-journal-bot/internal/signal"
)

// Config tunes the engine loops and promotion policy.
type Config struct {
	// ScanInterval is how often the signal sweep runs. Default 5m.
	ScanInterval time.Duration `json:"scan_interval"`
	// MonitorInterval is the cadence of the order and trade monitor
	// tasks. Default 30s.
	MonitorInterval time.Duration `json:"monitor_interval"`

	// Mode selects the promotion policy: supervised, strict or explore.
	Mode string `json:"mode"`
	// StrictConfidence is the auto-promotion floor in strict mode.
	// Default 70.
	StrictConfidence int `json:"strict_confidence"`
	// StrictTags is the minimum confluence tag count in strict mode.
	// Default 3.
	StrictTags int `json:"strict_tags"`
	// OrderSize is the position size attached to promoted orders.
	OrderSize float64 `json:"order_size"`
}

func (c *Config) applyDefaults() {
	if c.ScanInterval <= 0 {
		c.ScanInterval = 5 * time.Minute
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = 30 * time.Second
	}
	if c.Mode == "" {
		c.Mode = database.ModeSupervised
	}
	if c.StrictConfidence <= 0 {
		c.StrictConfidence = 70
	}
	if c.StrictTags <= 0 {
		c.StrictTags = 3
	}
	if c.OrderSize <= 0 {
		c.OrderSize = 1
	}
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	Running     bool                `json:"running"`
	Mode        string              `json:"mode"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	LastScan    *signal.SweepResult `json:"last_scan,omitempty"`
	LastSignals []signal.Signal     `json:"last_signals"`
}

// Engine is the top-level coordinator.
type Engine struct {
	aggregator *signal.Aggregator
	orders     *OrderManager
	trades     *TradeManager
	scheduler  *Scheduler
	bus        *events.Bus
	config     Config
	logger     zerolog.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	lastScan  *signal.SweepResult
}

// New creates an engine and registers its periodic tasks.
func New(aggregator *signal.Aggregator, orders *OrderManager, trades *TradeManager, bus *events.Bus, config Config, logger zerolog.Logger) *Engine {
	config.applyDefaults()
	e := &Engine{
		aggregator: aggregator,
		orders:     orders,
		trades:     trades,
		scheduler:  NewScheduler(logger),
		bus:        bus,
		config:     config,
		logger:     logger.With().Str("component", "engine").Logger(),
	}

	e.scheduler.Register("signal_scan", config.ScanInterval, func(ctx context.Context) {
		if _, err := e.ScanForSignals(ctx); err != nil {
			e.logger.Error().Err(err).Msg("scheduled scan failed")
		}
	})
	e.scheduler.Register("order_monitor", config.MonitorInterval, func(ctx context.Context) {
		e.orders.CheckPending(ctx)
	})
	e.scheduler.Register("trade_monitor", config.MonitorInterval, func(ctx context.Context) {
		e.trades.CheckOpen(ctx)
	})

	return e
}

// Start launches the periodic tasks. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.startedAt = time.Now().UTC()
	e.mu.Unlock()

	e.scheduler.Start(ctx)
	e.logger.Info().Str("mode", e.config.Mode).Msg("engine started")
	e.bus.Publish(events.EventEngineStarted, map[string]interface{}{"mode": e.config.Mode})
}

// Stop halts the periodic tasks and waits for in-flight ticks to finish.
// Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.scheduler.Stop()
	e.logger.Info().Msg("engine stopped")
	e.bus.Publish(events.EventEngineStopped, nil)
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := Status{
		Running:     e.running,
		Mode:        e.config.Mode,
		LastSignals: []signal.Signal{},
	}
	if e.running {
		startedAt := e.startedAt
		status.StartedAt = &startedAt
	}
	if e.lastScan != nil {
		status.LastScan = e.lastScan
		status.LastSignals = e.lastScan.Signals
	}
	return status
}

// Mode returns the configured promotion mode.
func (e *Engine) Mode() string {
	return e.config.Mode
}

// Orders exposes the order manager for the API layer.
func (e *Engine) Orders() *OrderManager { return e.orders }

// Trades exposes the trade manager for the API layer.
func (e *Engine) Trades() *TradeManager { return e.trades }

// ScanForSignals runs one sweep, records it, and applies the promotion
// policy to the result.
func (e *Engine) ScanForSignals(ctx context.Context) (*signal.SweepResult, error) {
	result := e.aggregator.Sweep(ctx)

	monitoring.RecordScan(result.SymbolsFailed, result.Duration.Seconds())
	for _, sig := range result.Signals {
		monitoring.RecordSignal(sig.Symbol, string(sig.Side))
		e.bus.Publish(events.EventSignalFound, map[string]interface{}{
			"symbol": sig.Symbol, "side": string(sig.Side), "confidence": sig.Confidence,
		})
	}

	e.mu.Lock()
	e.lastScan = result
	e.mu.Unlock()

	e.bus.Publish(events.EventScanCompleted, map[string]interface{}{
		"signals": len(result.Signals), "failed": result.SymbolsFailed,
	})

	e.promote(ctx, result.Signals)
	return result, nil
}

// promote auto-promotes signals according to the configured mode.
// Supervised mode never promotes; strict requires high confidence and
// broad confluence; explore promotes everything that passed the filters.
func (e *Engine) promote(ctx context.Context, signals []signal.Signal) {
	if e.config.Mode == database.ModeSupervised {
		return
	}

	for _, sig := range signals {
		if e.config.Mode == database.ModeStrict {
			if sig.Confidence < e.config.StrictConfidence || len(sig.Tags) < e.config.StrictTags {
				continue
			}
		}

		order, err := e.orders.PromoteSignal(ctx, sig, e.config.Mode, e.config.OrderSize)
		if err != nil {
			e.logger.Warn().Err(err).Str("symbol", sig.Symbol).Msg("signal promotion failed")
			continue
		}
		e.logger.Info().
			Str("order_id", order.ID).
			Str("symbol", sig.Symbol).
			Int("confidence", sig.Confidence).
			Msg("signal promoted to order")
	}
}
