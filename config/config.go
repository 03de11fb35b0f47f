// Package config loads runtime configuration from an optional JSON file
// with environment variable overrides. Environment variables always win.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BinanceConfig  BinanceConfig  `json:"binance"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	ServerConfig   ServerConfig   `json:"server"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	ScanConfig     ScanConfig     `json:"scan"`
	EngineConfig   EngineConfig   `json:"engine"`
	TradeConfig    TradeConfig    `json:"trade"`
}

// BinanceConfig holds market data endpoints. No API keys: the engine only
// reads public market data.
type BinanceConfig struct {
	BaseURL      string `json:"base_url"`
	WSBaseURL    string `json:"ws_base_url"`
	StreamPrices bool   `json:"stream_prices"` // keep a live miniTicker stream warm in the price cache
}

// DatabaseConfig holds PostgreSQL settings. When URL is empty the engine
// runs on the in-memory store.
type DatabaseConfig struct {
	URL      string `json:"url"`
	MaxConns int    `json:"max_conns"`
}

// RedisConfig holds Redis settings for the price cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	CacheTTL int    `json:"cache_ttl"` // seconds
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // seconds
	WriteTimeout    int    `json:"write_timeout"`    // seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // seconds
}

type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // console writer when false
}

// ScanConfig controls the sweep matrix and filters.
type ScanConfig struct {
	Symbols       []string `json:"symbols"`
	Timeframes    []string `json:"timeframes"`
	CandleLimit   int      `json:"candle_limit"`
	MinConfidence int      `json:"min_confidence"`
	MaxPerSymbol  int      `json:"max_per_symbol"`
	RankBy        string   `json:"rank_by"` // "confidence" or "recency"
	WorkerCount   int      `json:"worker_count"`
	Bias          string   `json:"bias"` // "", "LONG" or "SHORT"
}

// EngineConfig controls the periodic loops and the promotion policy.
type EngineConfig struct {
	Mode             string        `json:"mode"` // supervised, strict, explore
	ScanInterval     time.Duration `json:"scan_interval"`
	MonitorInterval  time.Duration `json:"monitor_interval"`
	StrictConfidence int           `json:"strict_confidence"`
	StrictTags       int           `json:"strict_tags"`
	OrderSize        float64       `json:"order_size"`
	AutoStart        bool          `json:"auto_start"`
}

// TradeConfig controls trade closing.
type TradeConfig struct {
	TTL          time.Duration `json:"ttl"`
	Accounting   string        `json:"accounting"` // "risk" or "notional"
	RiskPerTrade float64       `json:"risk_per_trade"`
}

func Load() (*Config, error) {
	// .env is optional; real environment variables still take precedence.
	_ = godotenv.Load()

	cfg, err := loadFromFile(getEnvOrDefault("CONFIG_FILE", "config.json"))
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.BinanceConfig.WSBaseURL = getEnvOrDefault("BINANCE_WS_BASE_URL", cfg.BinanceConfig.WSBaseURL)
	if v := os.Getenv("STREAM_PRICES"); v != "" {
		cfg.BinanceConfig.StreamPrices = v == "true"
	}

	cfg.DatabaseConfig.URL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseConfig.URL)
	cfg.DatabaseConfig.MaxConns = getEnvIntOrDefault("DATABASE_MAX_CONNS", cfg.DatabaseConfig.MaxConns)

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.CacheTTL = getEnvIntOrDefault("REDIS_CACHE_TTL", cfg.RedisConfig.CacheTTL)

	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.LoggingConfig.JSONFormat = v == "true"
	}

	if v := os.Getenv("SCAN_SYMBOLS"); v != "" {
		cfg.ScanConfig.Symbols = splitList(v)
	}
	if v := os.Getenv("SCAN_TIMEFRAMES"); v != "" {
		cfg.ScanConfig.Timeframes = splitList(v)
	}
	cfg.ScanConfig.CandleLimit = getEnvIntOrDefault("SCAN_CANDLE_LIMIT", cfg.ScanConfig.CandleLimit)
	cfg.ScanConfig.MinConfidence = getEnvIntOrDefault("SCAN_MIN_CONFIDENCE", cfg.ScanConfig.MinConfidence)
	cfg.ScanConfig.MaxPerSymbol = getEnvIntOrDefault("SCAN_MAX_PER_SYMBOL", cfg.ScanConfig.MaxPerSymbol)
	cfg.ScanConfig.RankBy = getEnvOrDefault("SCAN_RANK_BY", cfg.ScanConfig.RankBy)
	cfg.ScanConfig.WorkerCount = getEnvIntOrDefault("SCAN_WORKER_COUNT", cfg.ScanConfig.WorkerCount)
	cfg.ScanConfig.Bias = getEnvOrDefault("SCAN_BIAS", cfg.ScanConfig.Bias)

	cfg.EngineConfig.Mode = getEnvOrDefault("ENGINE_MODE", cfg.EngineConfig.Mode)
	cfg.EngineConfig.ScanInterval = getEnvDurationOrDefault("ENGINE_SCAN_INTERVAL", cfg.EngineConfig.ScanInterval)
	cfg.EngineConfig.MonitorInterval = getEnvDurationOrDefault("ENGINE_MONITOR_INTERVAL", cfg.EngineConfig.MonitorInterval)
	cfg.EngineConfig.StrictConfidence = getEnvIntOrDefault("ENGINE_STRICT_CONFIDENCE", cfg.EngineConfig.StrictConfidence)
	cfg.EngineConfig.StrictTags = getEnvIntOrDefault("ENGINE_STRICT_TAGS", cfg.EngineConfig.StrictTags)
	cfg.EngineConfig.OrderSize = getEnvFloatOrDefault("ENGINE_ORDER_SIZE", cfg.EngineConfig.OrderSize)
	if v := os.Getenv("ENGINE_AUTO_START"); v != "" {
		cfg.EngineConfig.AutoStart = v == "true"
	}

	cfg.TradeConfig.TTL = getEnvDurationOrDefault("TRADE_TTL", cfg.TradeConfig.TTL)
	cfg.TradeConfig.Accounting = getEnvOrDefault("TRADE_ACCOUNTING", cfg.TradeConfig.Accounting)
	cfg.TradeConfig.RiskPerTrade = getEnvFloatOrDefault("TRADE_RISK_PER_TRADE", cfg.TradeConfig.RiskPerTrade)
}

func applyDefaults(cfg *Config) {
	if cfg.BinanceConfig.BaseURL == "" {
		cfg.BinanceConfig.BaseURL = "https://api.binance.com"
	}
	if cfg.BinanceConfig.WSBaseURL == "" {
		cfg.BinanceConfig.WSBaseURL = "wss://stream.binance.com:9443"
	}
	if cfg.DatabaseConfig.MaxConns <= 0 {
		cfg.DatabaseConfig.MaxConns = 10
	}
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.CacheTTL <= 0 {
		cfg.RedisConfig.CacheTTL = 10
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ReadTimeout <= 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout <= 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}
	if cfg.ServerConfig.ShutdownTimeout <= 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if len(cfg.ScanConfig.Symbols) == 0 {
		cfg.ScanConfig.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"}
	}
	if len(cfg.ScanConfig.Timeframes) == 0 {
		cfg.ScanConfig.Timeframes = []string{"5m", "15m", "1h"}
	}
	if cfg.EngineConfig.Mode == "" {
		cfg.EngineConfig.Mode = "supervised"
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.EngineConfig.Mode {
	case "supervised", "strict", "explore":
	default:
		return fmt.Errorf("invalid engine mode %q", c.EngineConfig.Mode)
	}

	switch c.ScanConfig.RankBy {
	case "", "confidence", "recency":
	default:
		return fmt.Errorf("invalid rank_by %q", c.ScanConfig.RankBy)
	}

	switch c.ScanConfig.Bias {
	case "", "LONG", "SHORT":
	default:
		return fmt.Errorf("invalid scan bias %q", c.ScanConfig.Bias)
	}

	switch c.TradeConfig.Accounting {
	case "", "risk", "notional":
	default:
		return fmt.Errorf("invalid trade accounting %q", c.TradeConfig.Accounting)
	}

	if c.ServerConfig.Port < 0 || c.ServerConfig.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.ServerConfig.Port)
	}

	for _, tf := range c.ScanConfig.Timeframes {
		switch tf {
		case "1m", "5m", "15m", "30m", "1h", "4h", "1d":
		default:
			return fmt.Errorf("unsupported timeframe %q", tf)
		}
	}

	return nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
