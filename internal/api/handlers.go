package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trade-journal-bot/internal/database"
	"trade-journal-bot/internal/engine"
	"trade-journal-bot/internal/signal"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// ---- Signals ----

func (s *Server) handleGetSignals(c *gin.Context) {
	status := s.engine.Status()
	c.JSON(http.StatusOK, gin.H{
		"signals":   status.LastSignals,
		"last_scan": status.LastScan,
	})
}

func (s *Server) handleScan(c *gin.Context) {
	result, err := s.engine.ScanForSignals(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ---- Orders ----

func (s *Server) handleListOrders(c *gin.Context) {
	filter := database.OrderFilter{
		Status: c.Query("status"),
		Symbol: c.Query("symbol"),
		Mode:   c.Query("mode"),
	}
	orders, err := s.engine.Orders().List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (s *Server) handlePlaceOrder(c *gin.Context) {
	var params engine.OrderParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	params.Executor = "manual"

	order, err := s.engine.Orders().PlaceOrder(c.Request.Context(), params)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidLevels) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (s *Server) handleGetOrder(c *gin.Context) {
	order, err := s.engine.Orders().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	err := s.engine.Orders().Cancel(c.Request.Context(), c.Param("id"), body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, engine.ErrOrderNotPending):
			c.JSON(http.StatusConflict, gin.H{"error": "order is not pending"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

// handlePromoteSignal turns a signal payload into a pending order. Used by
// the dashboard in supervised mode.
func (s *Server) handlePromoteSignal(c *gin.Context) {
	var body struct {
		Signal signal.Signal `json:"signal"`
		Size   float64       `json:"size"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	order, err := s.engine.Orders().PromoteSignal(c.Request.Context(), body.Signal, s.engine.Mode(), body.Size)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidLevels) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ---- Trades ----

func (s *Server) handleListTrades(c *gin.Context) {
	filter := database.TradeFilter{
		Status: c.Query("status"),
		Symbol: c.Query("symbol"),
	}
	trades, err := s.engine.Trades().List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) handleGetTrade(c *gin.Context) {
	trade, err := s.engine.Trades().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "trade not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) handleCloseTrade(c *gin.Context) {
	var body struct {
		Exit float64 `json:"exit" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exit price is required"})
		return
	}

	trade, err := s.engine.Trades().Close(c.Request.Context(), c.Param("id"), body.Exit, "manual")
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "trade not found"})
		case errors.Is(err, engine.ErrTradeNotOpen):
			c.JSON(http.StatusConflict, gin.H{"error": "trade is not open"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) handleTradeStats(c *gin.Context) {
	stats, err := s.engine.Trades().Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ---- Engine control ----

func (s *Server) handleEngineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleEngineStart(c *gin.Context) {
	// The engine outlives the request, so it must not inherit its context.
	s.engine.Start(context.Background())
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleEngineStop(c *gin.Context) {
	s.engine.Stop()
	c.JSON(http.StatusOK, s.engine.Status())
}
