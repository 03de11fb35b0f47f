package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, "https://api.binance.com", cfg.BinanceConfig.BaseURL)
	assert.Equal(t, 8080, cfg.ServerConfig.Port)
	assert.Equal(t, "supervised", cfg.EngineConfig.Mode)
	assert.Equal(t, []string{"5m", "15m", "1h"}, cfg.ScanConfig.Timeframes)
	assert.NotEmpty(t, cfg.ScanConfig.Symbols)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Run("bad engine mode", func(t *testing.T) {
		cfg := validConfig()
		cfg.EngineConfig.Mode = "yolo"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad timeframe", func(t *testing.T) {
		cfg := validConfig()
		cfg.ScanConfig.Timeframes = []string{"7m"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad rank_by", func(t *testing.T) {
		cfg := validConfig()
		cfg.ScanConfig.RankBy = "vibes"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := validConfig()
		cfg.ServerConfig.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad accounting", func(t *testing.T) {
		cfg := validConfig()
		cfg.TradeConfig.Accounting = "imaginary"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bias values", func(t *testing.T) {
		cfg := validConfig()
		cfg.ScanConfig.Bias = "LONG"
		assert.NoError(t, cfg.Validate())
		cfg.ScanConfig.Bias = "sideways"
		assert.Error(t, cfg.Validate())
	})
}
