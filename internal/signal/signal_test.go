package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalKey(t *testing.T) {
	a := Signal{Symbol: "BTCUSDT", Timeframe: "1h", Side: Long}
	b := Signal{Symbol: "BTCUSDT", Timeframe: "1h", Side: Long, Confidence: 90}
	c := Signal{Symbol: "BTCUSDT", Timeframe: "1h", Side: Short}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, "BTCUSDT|1h|LONG", a.Key())
}

func TestHasTag(t *testing.T) {
	sig := Signal{Tags: []Tag{TagFib, TagTrend}}
	assert.True(t, sig.HasTag(TagFib))
	assert.True(t, sig.HasTag(TagTrend))
	assert.False(t, sig.HasTag(TagFVG))
}

func TestRiskReward(t *testing.T) {
	t.Run("long geometry", func(t *testing.T) {
		rr, ok := RiskReward(106, 100, 120)
		require.True(t, ok)
		assert.InDelta(t, 14.0/6.0, rr, 1e-9)
	})

	t.Run("short geometry", func(t *testing.T) {
		rr, ok := RiskReward(100, 105, 90)
		require.True(t, ok)
		assert.InDelta(t, 2.0, rr, 1e-9)
	})

	t.Run("zero risk is undefined", func(t *testing.T) {
		_, ok := RiskReward(100, 100, 120)
		assert.False(t, ok)
	})
}
