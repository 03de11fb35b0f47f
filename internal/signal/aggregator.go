package signal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trade-journal-bot/internal/market"
)

// AggregatorConfig controls the symbol/timeframe sweep.
type AggregatorConfig struct {
	Symbols       []string `json:"symbols"`
	Timeframes    []string `json:"timeframes"`
	CandleLimit   int      `json:"candle_limit"`    // bars fetched per pair, default 120
	MinConfidence int      `json:"min_confidence"`  // 0 disables the filter
	MaxPerSymbol  int      `json:"max_per_symbol"`  // 0 = unlimited
	RankBy        string   `json:"rank_by"`         // "confidence" (default) or "recency"
	AllowedTags   []Tag    `json:"allowed_tags"`    // empty = all tags pass
	WorkerCount   int      `json:"worker_count"`    // default 4
}

func (c *AggregatorConfig) applyDefaults() {
	if c.CandleLimit <= 0 {
		c.CandleLimit = 120
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.RankBy == "" {
		c.RankBy = "confidence"
	}
	if len(c.Timeframes) == 0 {
		c.Timeframes = []string{"5m", "15m", "1h"}
	}
}

// SweepResult is the aggregate outcome of one scan cycle.
type SweepResult struct {
	Signals        []Signal      `json:"signals"`
	SymbolsScanned int           `json:"symbols_scanned"`
	SymbolsFailed  int           `json:"symbols_failed"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// Aggregator fans the detector out across a symbol/timeframe matrix,
// deduplicates the candidates and applies ranking and filters.
type Aggregator struct {
	provider market.Provider
	detector *Detector
	cfg      AggregatorConfig
	logger   zerolog.Logger
}

// NewAggregator creates an aggregator over the given provider and detector.
func NewAggregator(provider market.Provider, detector *Detector, cfg AggregatorConfig, logger zerolog.Logger) *Aggregator {
	cfg.applyDefaults()
	return &Aggregator{
		provider: provider,
		detector: detector,
		cfg:      cfg,
		logger:   logger.With().Str("component", "aggregator").Logger(),
	}
}

// Sweep runs one full scan cycle. A failed fetch for one symbol never
// aborts the sweep for others: the symbol is counted as failed and the
// sweep continues.
func (a *Aggregator) Sweep(ctx context.Context) *SweepResult {
	start := time.Now()

	symbolChan := make(chan string, len(a.cfg.Symbols))
	resultChan := make(chan []Signal, len(a.cfg.Symbols))
	failedChan := make(chan string, len(a.cfg.Symbols))

	var wg sync.WaitGroup
	for i := 0; i < a.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				signals, err := a.scanSymbol(ctx, symbol)
				if err != nil {
					a.logger.Warn().Err(err).Str("symbol", symbol).Msg("symbol scan failed")
					failedChan <- symbol
					continue
				}
				resultChan <- signals
			}
		}()
	}

	for _, symbol := range a.cfg.Symbols {
		symbolChan <- symbol
	}
	close(symbolChan)

	wg.Wait()
	close(resultChan)
	close(failedChan)

	var candidates []Signal
	for batch := range resultChan {
		candidates = append(candidates, batch...)
	}
	failed := 0
	for range failedChan {
		failed++
	}

	signals := a.filter(a.dedupe(candidates))

	result := &SweepResult{
		Signals:        signals,
		SymbolsScanned: len(a.cfg.Symbols),
		SymbolsFailed:  failed,
		StartedAt:      start.UTC(),
		Duration:       time.Since(start),
	}

	a.logger.Info().
		Int("scanned", result.SymbolsScanned).
		Int("failed", result.SymbolsFailed).
		Int("signals", len(result.Signals)).
		Dur("duration", result.Duration).
		Msg("scan sweep completed")

	return result
}

// scanSymbol runs the detector across every configured timeframe for one
// symbol. The first fetch failure marks the whole symbol as failed.
func (a *Aggregator) scanSymbol(ctx context.Context, symbol string) ([]Signal, error) {
	var signals []Signal
	for _, timeframe := range a.cfg.Timeframes {
		candles, err := a.provider.GetKlines(ctx, symbol, timeframe, a.cfg.CandleLimit)
		if err != nil {
			return nil, err
		}
		signals = append(signals, a.detector.Detect(symbol, timeframe, candles)...)
	}
	return signals, nil
}

// dedupe collapses candidates sharing (symbol, timeframe, side), keeping
// the one with the latest createdAt.
func (a *Aggregator) dedupe(candidates []Signal) []Signal {
	byKey := make(map[string]Signal, len(candidates))
	for _, sig := range candidates {
		if existing, ok := byKey[sig.Key()]; ok && !sig.CreatedAt.After(existing.CreatedAt) {
			continue
		}
		byKey[sig.Key()] = sig
	}

	out := make([]Signal, 0, len(byKey))
	for _, sig := range byKey {
		out = append(out, sig)
	}
	return out
}

// filter applies the confidence floor, tag allow-list and per-symbol cap,
// then orders the final set by confidence descending.
func (a *Aggregator) filter(signals []Signal) []Signal {
	var kept []Signal
	for _, sig := range signals {
		if sig.Confidence < a.cfg.MinConfidence {
			continue
		}
		if !a.tagsAllowed(sig) {
			continue
		}
		kept = append(kept, sig)
	}

	if a.cfg.RankBy == "recency" {
		sort.Slice(kept, func(i, j int) bool { return kept[i].CreatedAt.After(kept[j].CreatedAt) })
	} else {
		sort.Slice(kept, func(i, j int) bool { return kept[i].Confidence > kept[j].Confidence })
	}

	if a.cfg.MaxPerSymbol > 0 {
		perSymbol := make(map[string]int)
		capped := kept[:0]
		for _, sig := range kept {
			if perSymbol[sig.Symbol] >= a.cfg.MaxPerSymbol {
				continue
			}
			perSymbol[sig.Symbol]++
			capped = append(capped, sig)
		}
		kept = capped
	}

	return kept
}

func (a *Aggregator) tagsAllowed(sig Signal) bool {
	if len(a.cfg.AllowedTags) == 0 {
		return true
	}
	for _, allowed := range a.cfg.AllowedTags {
		if sig.HasTag(allowed) {
			return true
		}
	}
	return false
}
