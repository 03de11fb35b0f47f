package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trade-journal-bot/internal/database"
	"trade-journal-bot/internal/events"
	"trade-journal-bot/internal/market"
	"trade-journal-bot/internal/monitoring"
	"trade-journal-bot/internal/signal"
)

// orderTTL returns the pending-order lifetime for a timeframe, measured
// from creation.
func orderTTL(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return 15 * time.Minute
	case "5m":
		return 30 * time.Minute
	case "15m":
		return 2 * time.Hour
	case "30m":
		return 3 * time.Hour
	case "1h":
		return 6 * time.Hour
	case "4h":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// OrderParams describes a new order. Orders from promoted signals and
// manual orders go through the same validation.
type OrderParams struct {
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Timeframe string  `json:"timeframe"`
	Entry     float64 `json:"entry"`
	Stop      float64 `json:"stop"`
	Take      float64 `json:"take"`
	Size      float64 `json:"size"`
	Mode      string  `json:"mode"`
	Executor  string  `json:"executor"`
}

// OrderManager advances orders through PENDING -> FILLED/CANCELED/EXPIRED.
type OrderManager struct {
	store    RecordStore
	provider market.Provider
	trades   *TradeManager
	bus      *events.Bus
	logger   zerolog.Logger
	now      func() time.Time
}

// NewOrderManager creates an order lifecycle manager.
func NewOrderManager(store RecordStore, provider market.Provider, trades *TradeManager, bus *events.Bus, logger zerolog.Logger) *OrderManager {
	return &OrderManager{
		store:    store,
		provider: provider,
		trades:   trades,
		bus:      bus,
		logger:   logger.With().Str("component", "order_manager").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrder validates params, persists a new PENDING order and publishes
// the placement event.
func (om *OrderManager) PlaceOrder(ctx context.Context, params OrderParams) (*database.Order, error) {
	if err := validateLevels(params.Side, params.Entry, params.Stop, params.Take); err != nil {
		return nil, err
	}
	if params.Size <= 0 {
		params.Size = 1
	}
	if params.Mode == "" {
		params.Mode = database.ModeSupervised
	}

	now := om.now()
	order := &database.Order{
		ID:        uuid.NewString(),
		Symbol:    params.Symbol,
		Side:      params.Side,
		Timeframe: params.Timeframe,
		Entry:     params.Entry,
		Stop:      params.Stop,
		Take:      params.Take,
		Size:      params.Size,
		Status:    database.OrderStatusPending,
		Mode:      params.Mode,
		Executor:  params.Executor,
		CreatedAt: now,
		ExpiresAt: now.Add(orderTTL(params.Timeframe)),
	}

	if err := om.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	om.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("side", order.Side).
		Float64("entry", order.Entry).
		Msg("order placed")
	om.bus.Publish(events.EventOrderPlaced, map[string]interface{}{
		"order_id": order.ID, "symbol": order.Symbol, "side": order.Side,
	})

	return order, nil
}

// PromoteSignal converts a detected signal into a pending order.
func (om *OrderManager) PromoteSignal(ctx context.Context, sig signal.Signal, mode string, size float64) (*database.Order, error) {
	return om.PlaceOrder(ctx, OrderParams{
		Symbol:    sig.Symbol,
		Side:      string(sig.Side),
		Timeframe: sig.Timeframe,
		Entry:     sig.Entry,
		Stop:      sig.Stop,
		Take:      sig.Take,
		Size:      size,
		Mode:      mode,
		Executor:  "signal",
	})
}

// Get returns one order by ID.
func (om *OrderManager) Get(ctx context.Context, id string) (*database.Order, error) {
	return om.store.GetOrder(ctx, id)
}

// List returns orders matching the filter.
func (om *OrderManager) List(ctx context.Context, filter database.OrderFilter) ([]*database.Order, error) {
	return om.store.ListOrders(ctx, filter)
}

// Cancel transitions a PENDING order to CANCELED. Terminal orders are
// rejected, never silently re-applied.
func (om *OrderManager) Cancel(ctx context.Context, id, reason string) error {
	order, err := om.store.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if order.Terminal() {
		return ErrOrderNotPending
	}
	if reason == "" {
		reason = "canceled manually"
	}

	if err := om.store.UpdateOrderStatus(ctx, id, database.OrderStatusCanceled, reason, nil); err != nil {
		return fmt.Errorf("canceling order: %w", err)
	}

	monitoring.RecordOrderTransition(database.OrderStatusCanceled)
	om.logger.Info().Str("order_id", id).Str("reason", reason).Msg("order canceled")
	om.bus.Publish(events.EventOrderCanceled, map[string]interface{}{"order_id": id, "reason": reason})
	return nil
}

// TickOutcome is the aggregate result of one monitoring tick.
type TickOutcome struct {
	Checked      int `json:"checked"`
	Transitioned int `json:"transitioned"`
	Failed       int `json:"failed"`
}

// CheckPending evaluates every PENDING order once. A fetch or persistence
// error on one order never blocks the rest of the tick.
func (om *OrderManager) CheckPending(ctx context.Context) TickOutcome {
	outcome := TickOutcome{}

	pending, err := om.store.ListOrders(ctx, database.OrderFilter{Status: database.OrderStatusPending})
	if err != nil {
		om.logger.Error().Err(err).Msg("listing pending orders failed")
		outcome.Failed++
		return outcome
	}

	now := om.now()
	for _, order := range pending {
		outcome.Checked++
		transitioned, err := om.checkOrder(ctx, order, now)
		if err != nil {
			outcome.Failed++
			om.logger.Warn().Err(err).Str("order_id", order.ID).Msg("order check failed")
			continue
		}
		if transitioned {
			outcome.Transitioned++
		}
	}

	return outcome
}

// checkOrder applies the order state machine for one tick: expiry first,
// then the limit-style fill check. Filling and opening the derived trade
// form one logical step; if the trade cannot be created the order stays
// PENDING and is retried next tick.
func (om *OrderManager) checkOrder(ctx context.Context, order *database.Order, now time.Time) (bool, error) {
	if now.After(order.ExpiresAt) {
		reason := fmt.Sprintf("ttl exceeded after %s", now.Sub(order.CreatedAt).Round(time.Second))
		if err := om.store.UpdateOrderStatus(ctx, order.ID, database.OrderStatusExpired, reason, nil); err != nil {
			return false, fmt.Errorf("expiring order: %w", err)
		}
		monitoring.RecordOrderTransition(database.OrderStatusExpired)
		om.logger.Info().Str("order_id", order.ID).Str("symbol", order.Symbol).Msg("order expired")
		om.bus.Publish(events.EventOrderExpired, map[string]interface{}{"order_id": order.ID})
		return true, nil
	}

	price, err := om.provider.GetCurrentPrice(ctx, order.Symbol)
	if err != nil {
		return false, err
	}

	hit := (order.Side == string(signal.Long) && price <= order.Entry) ||
		(order.Side == string(signal.Short) && price >= order.Entry)
	if !hit {
		return false, nil
	}

	// Limit-style fill at the entry price, not the tick price.
	if _, err := om.trades.OpenFromOrder(ctx, order, order.Entry, now); err != nil {
		return false, fmt.Errorf("opening trade for fill: %w", err)
	}

	reason := fmt.Sprintf("filled at entry %.8f (tick price %.8f)", order.Entry, price)
	if err := om.store.UpdateOrderStatus(ctx, order.ID, database.OrderStatusFilled, reason, &now); err != nil {
		// The derived trade exists; OpenFromOrder is idempotent per order,
		// so retrying the status write next tick cannot double-open.
		return false, fmt.Errorf("marking order filled: %w", err)
	}

	monitoring.RecordOrderTransition(database.OrderStatusFilled)
	om.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Float64("fill", order.Entry).
		Msg("order filled")
	om.bus.Publish(events.EventOrderFilled, map[string]interface{}{
		"order_id": order.ID, "symbol": order.Symbol, "fill": order.Entry,
	})
	return true, nil
}

// validateLevels enforces order geometry: positive prices, a stop on the
// loss side, a target on the profit side, non-zero risk, and no
// order-of-magnitude mismatch between entry and stop/take. Prices that
// look like unit mistakes are rejected outright rather than rescaled.
func validateLevels(side string, entry, stop, take float64) error {
	if entry <= 0 || stop <= 0 || take <= 0 {
		return fmt.Errorf("%w: prices must be positive", ErrInvalidLevels)
	}
	if entry == stop {
		return fmt.Errorf("%w: risk per unit is zero", ErrInvalidLevels)
	}

	for _, level := range []float64{stop, take} {
		ratio := level / entry
		if ratio >= 10 || ratio <= 0.1 {
			return fmt.Errorf("%w: level %.8f differs from entry %.8f by an order of magnitude", ErrInvalidLevels, level, entry)
		}
	}

	switch side {
	case string(signal.Long):
		if stop >= entry || take <= entry {
			return fmt.Errorf("%w: long requires stop < entry < take", ErrInvalidLevels)
		}
	case string(signal.Short):
		if stop <= entry || take >= entry {
			return fmt.Errorf("%w: short requires take < entry < stop", ErrInvalidLevels)
		}
	default:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidLevels, side)
	}

	return nil
}
