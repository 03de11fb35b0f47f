package indicator

// Pivot is a local extreme that strictly dominates all bars within a
// symmetric lookback window.
type Pivot struct {
	Index int
	Price float64
	High  bool
}

// Swing is the most recent alternating pivot pair, defining a directional
// price range (low→high is a bullish leg, high→low bearish).
type Swing struct {
	High Pivot
	Low  Pivot
}

// Bullish reports whether the swing leg runs from the low up to the high.
func (s Swing) Bullish() bool {
	return s.Low.Index < s.High.Index
}

// Range returns the swing height.
func (s Swing) Range() float64 {
	return s.High.Price - s.Low.Price
}

// Pivots detects swing highs and lows. A bar is a pivot high iff its high
// strictly exceeds every other high within ±lookback bars (mirrored for
// lows). Bars too close to either edge for a full window are skipped.
func Pivots(highs, lows []float64, lookback int) []Pivot {
	if lookback <= 0 || len(highs) != len(lows) || len(highs) < 2*lookback+1 {
		return nil
	}

	var pivots []Pivot
	for i := lookback; i < len(highs)-lookback; i++ {
		isHigh, isLow := true, true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if highs[j] >= highs[i] {
				isHigh = false
			}
			if lows[j] <= lows[i] {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			pivots = append(pivots, Pivot{Index: i, Price: highs[i], High: true})
		}
		if isLow {
			pivots = append(pivots, Pivot{Index: i, Price: lows[i], High: false})
		}
	}

	return pivots
}

// LastSwing returns the most recent alternating high→low or low→high pivot
// pair, or nil when fewer than two alternating pivots exist.
func LastSwing(pivots []Pivot) *Swing {
	if len(pivots) < 2 {
		return nil
	}

	last := pivots[len(pivots)-1]
	for i := len(pivots) - 2; i >= 0; i-- {
		if pivots[i].High == last.High {
			continue
		}
		swing := &Swing{}
		if last.High {
			swing.High = last
			swing.Low = pivots[i]
		} else {
			swing.High = pivots[i]
			swing.Low = last
		}
		return swing
	}

	return nil
}
