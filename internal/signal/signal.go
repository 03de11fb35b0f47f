// Package signal implements setup detection and aggregation. A Signal is a
// pure computed view over candle data: recomputed every scan cycle, never
// mutated in place, and only made durable by promotion to an order.
package signal

import (
	"fmt"
	"math"
	"time"
)

// Side is the direction of a setup.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Tag labels the strategy component that contributed to a signal.
type Tag string

const (
	TagFib   Tag = "FIB"
	TagFVG   Tag = "FVG"
	TagSR    Tag = "SR"
	TagTrend Tag = "TREND"
	TagRSI   Tag = "RSI"
)

// Signal is a candidate trade setup produced by the detector.
type Signal struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Side       Side      `json:"side"`
	Entry      float64   `json:"entry"`
	Stop       float64   `json:"stop"`
	Take       float64   `json:"take"`
	Confidence int       `json:"confidence"`
	Tags       []Tag     `json:"tags"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// Key returns the dedup identity: two signals with the same key describe
// the same setup and the newer one wins.
func (s Signal) Key() string {
	return fmt.Sprintf("%s|%s|%s", s.Symbol, s.Timeframe, s.Side)
}

// HasTag reports whether the signal carries the given strategy tag.
func (s Signal) HasTag(tag Tag) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// RiskReward computes |take-entry| / |entry-stop|. The second return is
// false when the risk per unit is zero, in which case the ratio is
// undefined and the setup must be discarded.
func RiskReward(entry, stop, take float64) (float64, bool) {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0, false
	}
	return math.Abs(take-entry) / risk, true
}
