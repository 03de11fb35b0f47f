package database

import (
	"time"
)

// Order statuses. PENDING is the only non-terminal state; FILLED, CANCELED
// and EXPIRED are terminal and immutable.
const (
	OrderStatusPending  = "PENDING"
	OrderStatusFilled   = "FILLED"
	OrderStatusCanceled = "CANCELED"
	OrderStatusExpired  = "EXPIRED"
)

// Trade statuses. A trade transitions OPEN -> CLOSED exactly once.
const (
	TradeStatusOpen   = "OPEN"
	TradeStatusClosed = "CLOSED"
)

// Promotion modes controlling how signals become orders.
const (
	ModeSupervised = "supervised" // manual promotion only
	ModeStrict     = "strict"     // auto-promote high-confluence signals
	ModeExplore    = "explore"    // auto-promote any passing signal
)

// Order is a persisted pending entry derived from a promoted signal or
// placed manually. Its lifetime is bounded by a timeframe-dependent TTL.
type Order struct {
	ID        string     `json:"id"`
	Symbol    string     `json:"symbol"`
	Side      string     `json:"side"` // LONG or SHORT
	Timeframe string     `json:"timeframe"`
	Entry     float64    `json:"entry"`
	Stop      float64    `json:"stop"`
	Take      float64    `json:"take"`
	Size      float64    `json:"size"`
	Status    string     `json:"status"`
	Mode      string     `json:"mode"`
	Executor  string     `json:"executor"`
	Reason    *string    `json:"reason,omitempty"` // audit note for the last transition
	CreatedAt time.Time  `json:"created_at"`
	FilledAt  *time.Time `json:"filled_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Terminal reports whether the order has reached a terminal status.
func (o *Order) Terminal() bool {
	return o.Status != OrderStatusPending
}

// Trade is an open position created when an order fills. Exit, realized R
// and PnL are set by the single terminal transition to CLOSED.
type Trade struct {
	ID         string     `json:"id"`
	OrderID    *string    `json:"order_id,omitempty"`
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"`
	Entry      float64    `json:"entry"`
	Stop       float64    `json:"stop"`
	Take       float64    `json:"take"`
	Size       float64    `json:"size"`
	Status     string     `json:"status"`
	Exit       *float64   `json:"exit,omitempty"`
	ExitReason *string    `json:"exit_reason,omitempty"` // "stop", "target", "ttl" or "manual"
	OpenedAt   time.Time  `json:"opened_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	RealizedR  *float64   `json:"realized_r,omitempty"`
	PnL        *float64   `json:"pnl,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// OrderFilter narrows order listings. Empty fields match everything.
type OrderFilter struct {
	Status string
	Symbol string
	Mode   string
}

// TradeFilter narrows trade listings. Empty fields match everything.
type TradeFilter struct {
	Status string
	Symbol string
}
