package market

import "fmt"

// FetchError wraps a transient failure talking to the exchange. Callers
// skip the affected symbol for the current tick instead of aborting.
type FetchError struct {
	Op     string // "klines" or "price"
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("market: %s fetch failed for %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
