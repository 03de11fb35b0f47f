package engine

import "errors"

var (
	// ErrOrderNotPending rejects transitions on orders already in a
	// terminal status.
	ErrOrderNotPending = errors.New("engine: order is not pending")

	// ErrTradeNotOpen rejects a second close on an already-closed trade.
	ErrTradeNotOpen = errors.New("engine: trade is not open")

	// ErrInvalidLevels rejects orders whose entry/stop/take geometry fails
	// validation.
	ErrInvalidLevels = errors.New("engine: invalid order price levels")
)
