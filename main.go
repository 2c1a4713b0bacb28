package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"signalboard/config"
	"signalboard/models"
	"signalboard/pkg/logger"
	"signalboard/routes"
	"signalboard/scheduler"
	"signalboard/services/marketdata"
	"signalboard/services/push"
	"signalboard/services/signals"
	"signalboard/services/stream"
	"signalboard/services/trading"
)

func main() {
	logger.Init()
	defer logger.GetLogger().Sync()

	logger.Info("Signalboard server starting...")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Config load failed", zap.Error(err))
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB()
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}

	if err := runMigrations(db); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}

	keys, err := push.EnsureVAPIDKeys(cfg.VAPIDSubject, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	if err != nil {
		// Push stays disabled until keys are provided; the stream still works.
		logger.Warn("VAPID keys unavailable, push disabled", zap.Error(err))
		keys = nil
	}

	broadcaster := stream.NewBroadcaster()
	defer broadcaster.Close()

	store := push.NewStore(db)
	dispatcher := push.NewDispatcher(store, keys)
	engine := signals.NewEngine(db, cfg.Equity, cfg.RiskPct, cfg.Interval)
	fetcher := marketdata.NewFetcher()
	broker := trading.NewBroker(cfg.AlpacaKey, cfg.AlpacaSecret, cfg.AlpacaBaseURL)
	runner := scheduler.NewRunner(cfg, fetcher, engine, broadcaster, dispatcher, broker)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	setupHealthEndpoints(router)
	routes.SetupRoutes(router, engine, runner, broadcaster, store, keys)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
		// No WriteTimeout: /events connections stay open indefinitely.
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	jobScheduler := scheduler.NewScheduler(runner, cfg.CycleSeconds)
	jobScheduler.Start()

	gracefulShutdown(server, jobScheduler)
}

// runMigrations runs all database migrations.
func runMigrations(db *gorm.DB) error {
	if err := models.MigrateSignalModels(db); err != nil {
		return err
	}
	return models.MigrateSubscriptionModels(db)
}

// setupHealthEndpoints sets up the root and liveness endpoints.
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Signalboard API",
			"version": "1.0.0",
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// corsMiddleware returns a CORS middleware handler.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise.
		path := c.Request.URL.Path
		if path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if c.Writer.Status() >= 400 || duration > time.Second {
			logger.Warn("Request",
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("duration", duration))
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server.
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("Shutting down gracefully...", zap.String("signal", sig.String()))

	jobScheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if config.DB != nil {
		if sqlDB, err := config.DB.DB(); err == nil {
			sqlDB.Close()
			logger.Info("Database connection closed")
		}
	}

	logger.Info("Server shutdown completed")
}
