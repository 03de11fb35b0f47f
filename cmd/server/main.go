package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trade-journal-bot/config"
	"trade-journal-bot/internal/api"
	"trade-journal-bot/internal/database"
	"trade-journal-bot/internal/engine"
	"trade-journal-bot/internal/events"
	"trade-journal-bot/internal/market"
	"trade-journal-bot/internal/signal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Msg("starting trade journal engine")

	bus := events.NewBus()

	// Persistence: PostgreSQL when configured, in-memory otherwise.
	var store engine.RecordStore
	if cfg.DatabaseConfig.URL != "" {
		db, err := database.NewDB(database.Config{
			URL:      cfg.DatabaseConfig.URL,
			MaxConns: cfg.DatabaseConfig.MaxConns,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(ctx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		cancel()

		store = database.NewRepository(db)
	} else {
		logger.Warn().Msg("no DATABASE_URL configured, using in-memory store")
		store = database.NewMemoryStore()
	}

	// Market data: REST client, optionally fronted by a Redis price cache
	// kept warm by a miniTicker stream.
	var provider market.Provider = market.NewClient(cfg.BinanceConfig.BaseURL)
	var priceCache *market.PriceCache
	if cfg.RedisConfig.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer redisClient.Close()

		priceCache = market.NewPriceCache(redisClient, time.Duration(cfg.RedisConfig.CacheTTL)*time.Second, logger)
		provider = market.NewCachedProvider(provider, priceCache)
	}

	var stream *market.PriceStream
	if cfg.BinanceConfig.StreamPrices && priceCache != nil {
		stream = market.NewPriceStream(cfg.BinanceConfig.WSBaseURL, cfg.ScanConfig.Symbols, priceCache, logger)
		stream.Start()
		defer stream.Stop()
	}

	detectorCfg := signal.DefaultDetectorConfig()
	switch cfg.ScanConfig.Bias {
	case "LONG":
		detectorCfg.Bias = signal.BiasBullish
	case "SHORT":
		detectorCfg.Bias = signal.BiasBearish
	}
	detector := signal.NewDetector(detectorCfg)

	aggregator := signal.NewAggregator(provider, detector, signal.AggregatorConfig{
		Symbols:       cfg.ScanConfig.Symbols,
		Timeframes:    cfg.ScanConfig.Timeframes,
		CandleLimit:   cfg.ScanConfig.CandleLimit,
		MinConfidence: cfg.ScanConfig.MinConfidence,
		MaxPerSymbol:  cfg.ScanConfig.MaxPerSymbol,
		RankBy:        cfg.ScanConfig.RankBy,
		WorkerCount:   cfg.ScanConfig.WorkerCount,
	}, logger)

	trades := engine.NewTradeManager(store, provider, bus, engine.TradeConfig{
		TTL:          cfg.TradeConfig.TTL,
		Accounting:   cfg.TradeConfig.Accounting,
		RiskPerTrade: cfg.TradeConfig.RiskPerTrade,
	}, logger)
	orders := engine.NewOrderManager(store, provider, trades, bus, logger)

	eng := engine.New(aggregator, orders, trades, bus, engine.Config{
		ScanInterval:     cfg.EngineConfig.ScanInterval,
		MonitorInterval:  cfg.EngineConfig.MonitorInterval,
		Mode:             cfg.EngineConfig.Mode,
		StrictConfidence: cfg.EngineConfig.StrictConfidence,
		StrictTags:       cfg.EngineConfig.StrictTags,
		OrderSize:        cfg.EngineConfig.OrderSize,
	}, logger)

	if cfg.EngineConfig.AutoStart {
		eng.Start(context.Background())
	}

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		ReadTimeout:    time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
		ProductionMode: strings.EqualFold(os.Getenv("GIN_MODE"), "release"),
	}, eng, bus, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	ossignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("api server failed")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	eng.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	logger.Info().Msg("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.JSONFormat {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
