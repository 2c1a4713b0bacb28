package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signalboard/config"
	"signalboard/pkg/logger"
	"signalboard/scheduler"
	"signalboard/services/signals"
)

// SignalController handles signal history and on-demand analysis endpoints.
type SignalController struct {
	engine *signals.Engine
	runner *scheduler.Runner
}

// NewSignalController creates a signal controller.
func NewSignalController(engine *signals.Engine, runner *scheduler.Runner) *SignalController {
	return &SignalController{engine: engine, runner: runner}
}

// GetSignals returns recent persisted signals.
// GET /api/v1/signals
func (ctrl *SignalController) GetSignals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := ctrl.engine.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"signals": records,
	})
}

// Analyze runs one analysis cycle on demand and returns the fresh batch.
// POST /analyze
func (ctrl *SignalController) Analyze(c *gin.Context) {
	sigs, err := ctrl.runner.RunCycle(c.Request.Context())
	if err != nil {
		logger.Error("On-demand analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signals": sigs})
}

// GetConfig returns the public runtime configuration.
// GET /config
func (ctrl *SignalController) GetConfig(c *gin.Context) {
	cfg := config.AppConfig
	c.JSON(http.StatusOK, gin.H{
		"symbols":    cfg.Symbols,
		"period":     cfg.Period,
		"interval":   cfg.Interval,
		"auto_trade": cfg.AutoTrade,
	})
}
