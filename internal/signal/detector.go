package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"trade-journal-bot/internal/indicator"
	"trade-journal-bot/internal/market"
)

// Bias is an externally supplied market-direction hint.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasNeutral Bias = "neutral"
	BiasBearish Bias = "bearish"
)

// minDetectBars is the smallest candle window the detector will evaluate.
const minDetectBars = 60

// Per-rule minimum risk/reward thresholds.
const (
	rrConfluence  = 2.0
	rrFibPullback = 1.5
	rrFVGRetest   = 1.8
	rrSRBounce    = 1.5
	rrRSIRevert   = 2.0
)

// DetectorConfig holds the strategy configuration: per-rule enable flags,
// per-factor confidence weights (0-1) and the market bias hint.
type DetectorConfig struct {
	EnableFib   bool `json:"enable_fib"`
	EnableFVG   bool `json:"enable_fvg"`
	EnableSR    bool `json:"enable_sr"`
	EnableTrend bool `json:"enable_trend"`
	EnableRSI   bool `json:"enable_rsi"`

	TrendWeight float64 `json:"trend_weight"`
	FVGWeight   float64 `json:"fvg_weight"`
	SRWeight    float64 `json:"sr_weight"`
	RSIWeight   float64 `json:"rsi_weight"`
	RRWeight    float64 `json:"rr_weight"`

	Bias Bias `json:"bias"`

	SwingLookback int     `json:"swing_lookback"`  // pivot window, default 5
	MinGapPercent float64 `json:"min_gap_percent"` // FVG size floor, default 0.1
}

// DefaultDetectorConfig returns a configuration with every rule enabled,
// full weights and a neutral bias.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		EnableFib:     true,
		EnableFVG:     true,
		EnableSR:      true,
		EnableTrend:   true,
		EnableRSI:     true,
		TrendWeight:   1.0,
		FVGWeight:     1.0,
		SRWeight:      1.0,
		RSIWeight:     1.0,
		RRWeight:      1.0,
		Bias:          BiasNeutral,
		SwingLookback: 5,
		MinGapPercent: 0.1,
	}
}

func (c *DetectorConfig) applyDefaults() {
	if c.SwingLookback <= 0 {
		c.SwingLookback = 5
	}
	if c.MinGapPercent <= 0 {
		c.MinGapPercent = 0.1
	}
	if c.Bias == "" {
		c.Bias = BiasNeutral
	}
}

// Detector evaluates one symbol's candle series against the confluence
// rule set and emits candidate signals.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a detector for the given strategy configuration.
func NewDetector(cfg DetectorConfig) *Detector {
	cfg.applyDefaults()
	return &Detector{cfg: cfg}
}

// snapshot caches the per-call indicator outputs shared across rules.
type snapshot struct {
	price     float64
	slope     float64
	rsi       float64
	swing     *indicator.Swing
	gaps      []indicator.FVG
	pivots    []indicator.Pivot
	lows      []float64
	highs     []float64
	createdAt time.Time
}

func (s *snapshot) trendUp() bool   { return s.slope > 0 }
func (s *snapshot) trendDown() bool { return s.slope < 0 }

// Detect runs the rule set over a candle series. Rules are evaluated in
// confluence-strength order and at most one signal per side is emitted.
// Short series produce no signals.
func (d *Detector) Detect(symbol, timeframe string, candles []market.Candle) []Signal {
	if len(candles) < minDetectBars {
		return nil
	}

	closes := market.Closes(candles)
	ema50 := indicator.EMA(closes, 50)
	rsiSeries := indicator.RSI(closes, 14)

	snap := &snapshot{
		price:     closes[len(closes)-1],
		slope:     indicator.Slope(ema50, 10),
		rsi:       rsiSeries[len(rsiSeries)-1],
		highs:     market.Highs(candles),
		lows:      market.Lows(candles),
		createdAt: time.Now().UTC(),
	}
	snap.pivots = indicator.Pivots(snap.highs, snap.lows, d.cfg.SwingLookback)
	snap.swing = indicator.LastSwing(snap.pivots)
	snap.gaps = indicator.UnfilledFVGs(indicator.DetectFVGs(candles, d.cfg.MinGapPercent), candles)

	var signals []Signal
	for _, side := range []Side{Long, Short} {
		if sig := d.detectSide(symbol, timeframe, side, snap); sig != nil {
			signals = append(signals, *sig)
		}
	}

	return signals
}

type rule func(side Side, snap *snapshot) (entry, stop, take float64, threshold float64, tags []Tag, reason string, ok bool)

func (d *Detector) detectSide(symbol, timeframe string, side Side, snap *snapshot) *Signal {
	rules := []rule{
		d.fibConfluenceRule,
		d.fibPullbackRule,
		d.fvgRetestRule,
		d.srProximityRule,
		d.rsiReversionRule,
	}

	for _, r := range rules {
		entry, stop, take, threshold, tags, reason, ok := r(side, snap)
		if !ok {
			continue
		}
		rr, defined := RiskReward(entry, stop, take)
		if !defined || rr < threshold {
			continue
		}
		return &Signal{
			ID:         uuid.NewString(),
			Symbol:     symbol,
			Timeframe:  timeframe,
			Side:       side,
			Entry:      entry,
			Stop:       stop,
			Take:       take,
			Confidence: d.confidence(side, snap, tags, rr),
			Tags:       tags,
			Reason:     reason,
			CreatedAt:  snap.createdAt,
		}
	}

	return nil
}

// fibConfluenceRule: 0.618-0.786 retracement zone confluent with an
// unfilled FVG of matching polarity, trend agreement and a neutral-leaning
// RSI band. Strongest setup, strictest risk/reward.
func (d *Detector) fibConfluenceRule(side Side, snap *snapshot) (float64, float64, float64, float64, []Tag, string, bool) {
	if !d.cfg.EnableFib || !d.cfg.EnableFVG || !d.cfg.EnableTrend || snap.swing == nil {
		return 0, 0, 0, 0, nil, "", false
	}
	if !d.inGoldenPocket(side, snap) || !d.trendAgrees(side, snap) {
		return 0, 0, 0, 0, nil, "", false
	}
	if side == Long && (snap.rsi < 40 || snap.rsi > 70) {
		return 0, 0, 0, 0, nil, "", false
	}
	if side == Short && (snap.rsi < 30 || snap.rsi > 60) {
		return 0, 0, 0, 0, nil, "", false
	}
	gap := d.gapAtPrice(side, snap)
	if gap == nil {
		return 0, 0, 0, 0, nil, "", false
	}

	entry := snap.price
	var stop, take float64
	if side == Long {
		stop, take = snap.swing.Low.Price, snap.swing.High.Price
	} else {
		stop, take = snap.swing.High.Price, snap.swing.Low.Price
	}
	reason := fmt.Sprintf("0.618-0.786 retracement inside %s FVG [%.4f, %.4f] with trend agreement, RSI %.1f",
		gap.Kind, gap.Bottom, gap.Top, snap.rsi)
	return entry, stop, take, rrConfluence, []Tag{TagFib, TagFVG, TagTrend, TagRSI}, reason, true
}

// fibPullbackRule: golden-pocket retracement with trend agreement but no
// FVG confirmation. Weaker setup, lower risk/reward floor.
func (d *Detector) fibPullbackRule(side Side, snap *snapshot) (float64, float64, float64, float64, []Tag, string, bool) {
	if !d.cfg.EnableFib || snap.swing == nil {
		return 0, 0, 0, 0, nil, "", false
	}
	if !d.inGoldenPocket(side, snap) || !d.trendAgrees(side, snap) {
		return 0, 0, 0, 0, nil, "", false
	}

	entry := snap.price
	var stop, take float64
	if side == Long {
		stop, take = snap.swing.Low.Price, snap.swing.High.Price
	} else {
		stop, take = snap.swing.High.Price, snap.swing.Low.Price
	}
	reason := fmt.Sprintf("0.618-0.786 pullback of swing %.4f-%.4f with trend agreement",
		snap.swing.Low.Price, snap.swing.High.Price)
	return entry, stop, take, rrFibPullback, []Tag{TagFib, TagTrend}, reason, true
}

// fvgRetestRule: price re-entered an open gap of matching polarity with
// the trend. Stop beyond the gap, target a fixed 2x reward multiple.
func (d *Detector) fvgRetestRule(side Side, snap *snapshot) (float64, float64, float64, float64, []Tag, string, bool) {
	if !d.cfg.EnableFVG || !d.cfg.EnableTrend || !d.trendAgrees(side, snap) {
		return 0, 0, 0, 0, nil, "", false
	}
	gap := d.gapAtPrice(side, snap)
	if gap == nil {
		return 0, 0, 0, 0, nil, "", false
	}

	entry := snap.price
	var stop, take float64
	if side == Long {
		stop = gap.Bottom
		take = entry + 2.0*(entry-stop)
	} else {
		stop = gap.Top
		take = entry - 2.0*(stop-entry)
	}
	reason := fmt.Sprintf("retest of open %s FVG [%.4f, %.4f] with trend agreement", gap.Kind, gap.Bottom, gap.Top)
	return entry, stop, take, rrFVGRetest, []Tag{TagFVG, TagTrend}, reason, true
}

// srProximityRule: price within 0.5% of the most recent pivot level,
// bouncing off support (long) or rejecting resistance (short).
func (d *Detector) srProximityRule(side Side, snap *snapshot) (float64, float64, float64, float64, []Tag, string, bool) {
	if !d.cfg.EnableSR || len(snap.pivots) == 0 {
		return 0, 0, 0, 0, nil, "", false
	}

	pivot := snap.pivots[len(snap.pivots)-1]
	if side == Long && pivot.High {
		return 0, 0, 0, 0, nil, "", false
	}
	if side == Short && !pivot.High {
		return 0, 0, 0, 0, nil, "", false
	}

	dist := math.Abs(snap.price-pivot.Price) / pivot.Price
	if dist > 0.005 {
		return 0, 0, 0, 0, nil, "", false
	}

	entry := snap.price
	var stop, take float64
	if side == Long {
		stop = pivot.Price * (1 - 0.005)
		if stop >= entry {
			return 0, 0, 0, 0, nil, "", false
		}
		take = entry + 2.0*(entry-stop)
	} else {
		stop = pivot.Price * (1 + 0.005)
		if stop <= entry {
			return 0, 0, 0, 0, nil, "", false
		}
		take = entry - 2.0*(stop-entry)
	}

	tags := []Tag{TagSR}
	if d.trendAgrees(side, snap) {
		tags = append(tags, TagTrend)
	}
	kind := "support"
	if pivot.High {
		kind = "resistance"
	}
	reason := fmt.Sprintf("price within %.2f%% of %s pivot at %.4f", dist*100, kind, pivot.Price)
	return entry, stop, take, rrSRBounce, tags, reason, true
}

// rsiReversionRule: oversold/overbought extreme against the prevailing
// trend, anticipating mean reversion. Stop at the recent extreme, target a
// 2.5x reward multiple.
func (d *Detector) rsiReversionRule(side Side, snap *snapshot) (float64, float64, float64, float64, []Tag, string, bool) {
	if !d.cfg.EnableRSI {
		return 0, 0, 0, 0, nil, "", false
	}

	entry := snap.price
	var stop, take float64
	if side == Long {
		if snap.rsi >= 30 || !snap.trendDown() {
			return 0, 0, 0, 0, nil, "", false
		}
		stop = lowest(snap.lows, 10)
		if stop >= entry {
			return 0, 0, 0, 0, nil, "", false
		}
		take = entry + 2.5*(entry-stop)
	} else {
		if snap.rsi <= 70 || !snap.trendUp() {
			return 0, 0, 0, 0, nil, "", false
		}
		stop = highest(snap.highs, 10)
		if stop <= entry {
			return 0, 0, 0, 0, nil, "", false
		}
		take = entry - 2.5*(stop-entry)
	}

	reason := fmt.Sprintf("RSI extreme %.1f against prevailing trend, mean reversion", snap.rsi)
	return entry, stop, take, rrRSIRevert, []Tag{TagRSI}, reason, true
}

// inGoldenPocket reports whether price sits inside the 0.618-0.786
// retracement band of the last swing, for the given side.
func (d *Detector) inGoldenPocket(side Side, snap *snapshot) bool {
	sw := snap.swing
	if sw == nil {
		return false
	}
	if side == Long {
		// Bullish leg low->high, price pulling back down from the high.
		if !sw.Bullish() {
			return false
		}
		upper := indicator.Fib(sw.High.Price, sw.Low.Price, 0.618)
		lower := indicator.Fib(sw.High.Price, sw.Low.Price, 0.786)
		return snap.price >= lower && snap.price <= upper
	}
	// Bearish leg high->low, price retracing up from the low.
	if sw.Bullish() {
		return false
	}
	lower := indicator.Fib(sw.Low.Price, sw.High.Price, 0.618)
	upper := indicator.Fib(sw.Low.Price, sw.High.Price, 0.786)
	return snap.price >= lower && snap.price <= upper
}

func (d *Detector) trendAgrees(side Side, snap *snapshot) bool {
	if !d.cfg.EnableTrend {
		return true
	}
	if side == Long {
		return snap.trendUp()
	}
	return snap.trendDown()
}

// gapAtPrice returns an unfilled gap of matching polarity containing the
// current price, or nil.
func (d *Detector) gapAtPrice(side Side, snap *snapshot) *indicator.FVG {
	want := indicator.BullishFVG
	if side == Short {
		want = indicator.BearishFVG
	}
	for i := len(snap.gaps) - 1; i >= 0; i-- {
		g := snap.gaps[i]
		if g.Kind == want && g.Contains(snap.price) {
			return &g
		}
	}
	return nil
}

// confidence scores a matched rule: weighted base components plus a
// risk/reward bonus capped at 40 points, clamped to [0,100], with a flat
// +10 when the side matches the configured market bias.
func (d *Detector) confidence(side Side, snap *snapshot, tags []Tag, rr float64) int {
	score := 0.0

	for _, t := range tags {
		switch t {
		case TagTrend:
			score += 20 * d.cfg.TrendWeight
		case TagFVG:
			score += 20 * d.cfg.FVGWeight
		case TagSR:
			score += 15 * d.cfg.SRWeight
		}
	}

	score += math.Abs(snap.rsi-50) / 50 * 15 * d.cfg.RSIWeight

	bonus := rr * 10
	if bonus > 40 {
		bonus = 40
	}
	score += bonus * d.cfg.RRWeight

	if (side == Long && d.cfg.Bias == BiasBullish) || (side == Short && d.cfg.Bias == BiasBearish) {
		score += 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}

func lowest(values []float64, n int) float64 {
	if len(values) == 0 {
		return 0
	}
	if n > len(values) {
		n = len(values)
	}
	min := values[len(values)-n]
	for _, v := range values[len(values)-n:] {
		if v < min {
			min = v
		}
	}
	return min
}

func highest(values []float64, n int) float64 {
	if len(values) == 0 {
		return 0
	}
	if n > len(values) {
		n = len(values)
	}
	max := values[len(values)-n]
	for _, v := range values[len(values)-n:] {
		if v > max {
			max = v
		}
	}
	return max
}
