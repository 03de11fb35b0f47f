package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMA(t *testing.T) {
	t.Run("matches hand-computed series", func(t *testing.T) {
		// k = 2/(2+1) = 2/3
		out := EMA([]float64{1, 2, 3}, 2)
		require.Len(t, out, 3)
		assert.InDelta(t, 1.0, out[0], 1e-9)
		assert.InDelta(t, 5.0/3.0, out[1], 1e-9)
		assert.InDelta(t, 3.0*2.0/3.0+5.0/9.0, out[2], 1e-9)
	})

	t.Run("constant input stays constant", func(t *testing.T) {
		out := EMA([]float64{42, 42, 42, 42}, 10)
		for _, v := range out {
			assert.InDelta(t, 42.0, v, 1e-9)
		}
	})

	t.Run("empty input returns nil", func(t *testing.T) {
		assert.Nil(t, EMA(nil, 5))
		assert.Nil(t, EMA([]float64{1, 2}, 0))
	})
}

func TestRSI(t *testing.T) {
	t.Run("output length equals input length", func(t *testing.T) {
		values := make([]float64, 100)
		for i := range values {
			values[i] = float64(i%7) + 100
		}
		out := RSI(values, 14)
		assert.Len(t, out, len(values))
	})

	t.Run("values stay within 0..100", func(t *testing.T) {
		values := []float64{100, 95, 103, 97, 110, 90, 105, 99, 108, 94,
			101, 96, 107, 93, 102, 98, 106, 92, 104, 100}
		for _, v := range RSI(values, 14) {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	})

	t.Run("monotonic rise yields 100", func(t *testing.T) {
		values := make([]float64, 30)
		for i := range values {
			values[i] = 100 + float64(i)
		}
		out := RSI(values, 14)
		assert.InDelta(t, 100.0, out[len(out)-1], 1e-9)
	})

	t.Run("short input is neutral", func(t *testing.T) {
		out := RSI([]float64{1, 2, 3}, 14)
		for _, v := range out {
			assert.InDelta(t, 50.0, v, 1e-9)
		}
	})
}

func TestFib(t *testing.T) {
	assert.InDelta(t, 69.1, Fib(100, 50, 0.618), 1e-9)
	assert.InDelta(t, 107.64, Fib(120, 100, 0.618), 1e-9)
	assert.InDelta(t, 104.28, Fib(120, 100, 0.786), 1e-9)
	assert.InDelta(t, 100.0, Fib(100, 50, 0), 1e-9)
	assert.InDelta(t, 50.0, Fib(100, 50, 1), 1e-9)
}

func TestSlope(t *testing.T) {
	t.Run("linear rise", func(t *testing.T) {
		values := []float64{1, 3, 5, 7, 9, 11}
		assert.InDelta(t, 2.0, Slope(values, 5), 1e-9)
	})

	t.Run("linear fall", func(t *testing.T) {
		values := []float64{11, 9, 7, 5, 3, 1}
		assert.InDelta(t, -2.0, Slope(values, 5), 1e-9)
	})

	t.Run("flat series", func(t *testing.T) {
		values := []float64{5, 5, 5, 5, 5}
		assert.InDelta(t, 0.0, Slope(values, 5), 1e-9)
	})

	t.Run("short series returns zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Slope([]float64{1, 2}, 5))
	})
}

func TestPivots(t *testing.T) {
	t.Run("detects strict pivot high", func(t *testing.T) {
		highs := []float64{10, 11, 15, 11, 10}
		lows := []float64{9, 10, 12, 10, 9}
		pivots := Pivots(highs, lows, 2)
		require.Len(t, pivots, 1)
		assert.True(t, pivots[0].High)
		assert.Equal(t, 2, pivots[0].Index)
		assert.Equal(t, 15.0, pivots[0].Price)
	})

	t.Run("detects strict pivot low", func(t *testing.T) {
		highs := []float64{6, 5, 3, 5, 6}
		lows := []float64{5, 4, 2, 4, 5}
		pivots := Pivots(highs, lows, 2)
		require.Len(t, pivots, 1)
		assert.False(t, pivots[0].High)
		assert.Equal(t, 2.0, pivots[0].Price)
	})

	t.Run("equal neighbor is not a pivot", func(t *testing.T) {
		highs := []float64{10, 15, 15, 11, 10}
		lows := []float64{9, 10, 10, 10, 9}
		assert.Empty(t, Pivots(highs, lows, 2))
	})

	t.Run("too short returns nil", func(t *testing.T) {
		assert.Nil(t, Pivots([]float64{1, 2, 3}, []float64{1, 2, 3}, 2))
	})
}

func TestLastSwing(t *testing.T) {
	t.Run("bullish leg low to high", func(t *testing.T) {
		pivots := []Pivot{
			{Index: 2, Price: 100, High: false},
			{Index: 8, Price: 120, High: true},
		}
		swing := LastSwing(pivots)
		require.NotNil(t, swing)
		assert.True(t, swing.Bullish())
		assert.Equal(t, 100.0, swing.Low.Price)
		assert.Equal(t, 120.0, swing.High.Price)
		assert.Equal(t, 20.0, swing.Range())
	})

	t.Run("bearish leg high to low", func(t *testing.T) {
		pivots := []Pivot{
			{Index: 2, Price: 120, High: true},
			{Index: 8, Price: 100, High: false},
		}
		swing := LastSwing(pivots)
		require.NotNil(t, swing)
		assert.False(t, swing.Bullish())
	})

	t.Run("skips same-polarity pivots", func(t *testing.T) {
		pivots := []Pivot{
			{Index: 1, Price: 95, High: false},
			{Index: 4, Price: 118, High: true},
			{Index: 9, Price: 121, High: true},
		}
		swing := LastSwing(pivots)
		require.NotNil(t, swing)
		assert.Equal(t, 121.0, swing.High.Price)
		assert.Equal(t, 95.0, swing.Low.Price)
	})

	t.Run("single pivot yields no swing", func(t *testing.T) {
		assert.Nil(t, LastSwing([]Pivot{{Index: 1, Price: 100}}))
		assert.Nil(t, LastSwing(nil))
	})
}
