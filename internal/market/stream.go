package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultStreamURL = "wss://stream.binance.com:9443"

// PriceStream subscribes to the combined miniTicker websocket stream and
// keeps the price cache warm so monitoring ticks read fresh prices without
// extra REST calls. The stream is best-effort: the engine works without it.
type PriceStream struct {
	streamURL string
	symbols   []string
	cache     *PriceCache
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPriceStream creates a stream for the given symbols. An empty
// streamURL selects the public endpoint.
func NewPriceStream(streamURL string, symbols []string, cache *PriceCache, logger zerolog.Logger) *PriceStream {
	if streamURL == "" {
		streamURL = defaultStreamURL
	}
	return &PriceStream{
		streamURL: streamURL,
		symbols:   symbols,
		cache:     cache,
		logger:    logger.With().Str("component", "price_stream").Logger(),
	}
}

// Start launches the read loop. Calling Start on a running stream is a no-op.
func (ps *PriceStream) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.running || len(ps.symbols) == 0 || ps.cache == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	ps.cancel = cancel
	ps.running = true
	ps.wg.Add(1)
	go ps.run(ctx)
}

// Stop closes the connection and waits for the read loop to exit.
func (ps *PriceStream) Stop() {
	ps.mu.Lock()
	if !ps.running {
		ps.mu.Unlock()
		return
	}
	ps.running = false
	ps.cancel()
	ps.mu.Unlock()
	ps.wg.Wait()
}

func (ps *PriceStream) run(ctx context.Context) {
	defer ps.wg.Done()

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := ps.readLoop(ctx); err != nil && ctx.Err() == nil {
			ps.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("price stream disconnected")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (ps *PriceStream) readLoop(ctx context.Context) error {
	streams := make([]string, len(ps.symbols))
	for i, s := range ps.symbols {
		streams[i] = strings.ToLower(s) + "@miniTicker"
	}
	endpoint := fmt.Sprintf("%s/stream?streams=%s", ps.streamURL, strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dialing stream: %w", err)
	}
	defer conn.Close()

	ps.logger.Info().Int("symbols", len(ps.symbols)).Msg("price stream connected")

	// Close the connection when the context is cancelled so ReadMessage
	// unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var envelope struct {
			Data struct {
				Symbol string `json:"s"`
				Close  string `json:"c"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil {
			continue
		}
		if envelope.Data.Symbol == "" {
			continue
		}
		price, err := strconv.ParseFloat(envelope.Data.Close, 64)
		if err != nil {
			continue
		}
		ps.cache.Set(ctx, envelope.Data.Symbol, price)
	}
}
