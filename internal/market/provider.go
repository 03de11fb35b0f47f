package market

import "context"

// Provider is the candle/price feed the engine is built against. The
// Binance REST client is the production implementation; tests use fakes.
type Provider interface {
	// GetKlines returns up to limit candles ordered by open time ascending.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	// GetCurrentPrice returns the latest traded price for symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}
