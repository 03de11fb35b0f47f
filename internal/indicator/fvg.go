package indicator

import "trade-journal-bot/internal/market"

// FVGKind represents the polarity of a fair value gap.
type FVGKind string

const (
	BullishFVG FVGKind = "bullish"
	BearishFVG FVGKind = "bearish"
)

// FVG is a 3-bar imbalance: a price band that was skipped without trading,
// inferred from non-overlapping wicks across bars i-2 and i.
type FVG struct {
	Kind   FVGKind
	Top    float64
	Bottom float64
	Index  int // index of the middle (gap-creating) candle
}

// Contains reports whether price sits inside the gap band.
func (g FVG) Contains(price float64) bool {
	return price >= g.Bottom && price <= g.Top
}

// DetectFVGs scans a candle series for fair value gaps. A bullish gap
// exists when candle i-2's high is below candle i's low (mirrored for
// bearish). Gaps smaller than minGapPercent of price are ignored.
func DetectFVGs(candles []market.Candle, minGapPercent float64) []FVG {
	if len(candles) < 3 {
		return nil
	}
	if minGapPercent <= 0 {
		minGapPercent = 0.1
	}

	var gaps []FVG
	for i := 2; i < len(candles); i++ {
		c1 := candles[i-2]
		c3 := candles[i]

		if c1.High < c3.Low {
			gapSize := (c3.Low - c1.High) / c1.High * 100
			if gapSize >= minGapPercent {
				gaps = append(gaps, FVG{
					Kind:   BullishFVG,
					Top:    c3.Low,
					Bottom: c1.High,
					Index:  i - 1,
				})
			}
		}

		if c1.Low > c3.High {
			gapSize := (c1.Low - c3.High) / c3.High * 100
			if gapSize >= minGapPercent {
				gaps = append(gaps, FVG{
					Kind:   BearishFVG,
					Top:    c1.Low,
					Bottom: c3.High,
					Index:  i - 1,
				})
			}
		}
	}

	return gaps
}

// UnfilledFVGs drops gaps that later price action has fully traded
// through. A retest wick into the band keeps the gap open; only a close
// beyond the far boundary (below the bottom for bullish, above the top for
// bearish) fills it.
func UnfilledFVGs(gaps []FVG, candles []market.Candle) []FVG {
	var open []FVG
	for _, g := range gaps {
		filled := false
		for i := g.Index + 2; i < len(candles); i++ {
			if g.Kind == BullishFVG && candles[i].Close < g.Bottom {
				filled = true
				break
			}
			if g.Kind == BearishFVG && candles[i].Close > g.Top {
				filled = true
				break
			}
		}
		if !filled {
			open = append(open, g)
		}
	}
	return open
}
