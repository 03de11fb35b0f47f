// Package api exposes the engine over HTTP: signal sweeps, order and trade
// lifecycles, engine control and a websocket event feed.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"trade-journal-bot/internal/engine"
	"trade-journal-bot/internal/events"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ProductionMode bool
}

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	engine     *engine.Engine
	bus        *events.Bus
	hub        *eventHub
	config     ServerConfig
	logger     zerolog.Logger
}

// NewServer creates the API server and registers all routes.
func NewServer(config ServerConfig, eng *engine.Engine, bus *events.Bus, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if config.AllowedOrigins == "" || config.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(config.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router: router,
		engine: eng,
		bus:    bus,
		hub:    newEventHub(logger),
		config: config,
		logger: logger.With().Str("component", "api").Logger(),
	}

	// Every engine event fans out to websocket clients.
	bus.SubscribeAll(s.hub.broadcast)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/signals", s.handleGetSignals)
		v1.POST("/signals/scan", s.handleScan)

		v1.GET("/orders", s.handleListOrders)
		v1.POST("/orders", s.handlePlaceOrder)
		v1.GET("/orders/:id", s.handleGetOrder)
		v1.POST("/orders/:id/cancel", s.handleCancelOrder)
		v1.POST("/orders/promote", s.handlePromoteSignal)

		v1.GET("/trades", s.handleListTrades)
		v1.GET("/trades/stats", s.handleTradeStats)
		v1.GET("/trades/:id", s.handleGetTrade)
		v1.POST("/trades/:id/close", s.handleCloseTrade)

		v1.GET("/engine/status", s.handleEngineStatus)
		v1.POST("/engine/start", s.handleEngineStart)
		v1.POST("/engine/stop", s.handleEngineStop)
	}
}

// Start runs the HTTP server until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("api server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
