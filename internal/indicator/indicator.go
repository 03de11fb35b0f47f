// Package indicator provides the stateless technical-analysis math used by
// the setup detector. Every function tolerates short input by returning a
// neutral or zero default, since live windows are short right after startup.
package indicator

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// EMA calculates the exponential moving average series. The first value
// seeds the average and the smoothing factor is 2/(period+1). Output length
// equals input length.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}

	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]

	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}

	return out
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// RSI calculates the Wilder-style relative strength index series. Output
// length equals input length; positions without enough history are neutral
// (50), and a zero average loss yields 100.
func RSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = 50
	}
	if period <= 0 || len(values) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}

	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ============================================================================
// FIBONACCI
// ============================================================================

// Fib interpolates between a and b at the given ratio.
func Fib(a, b, ratio float64) float64 {
	return a + (b-a)*ratio
}

// ============================================================================
// TREND SLOPE
// ============================================================================

// Slope returns the least-squares linear regression slope over the last
// period samples. The sign indicates trend direction. Short series return 0.
func Slope(values []float64, period int) float64 {
	if period <= 1 || len(values) < period {
		return 0
	}

	window := values[len(values)-period:]
	n := float64(period)

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range window {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}

	return (n*sumXY - sumX*sumY) / denom
}
