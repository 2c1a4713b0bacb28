// Command relay runs the local notification relay. It issues push
// subscriptions whose endpoints point back at itself and turns delivered
// push messages into desktop notifications.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"signalboard/client/relay"
	"signalboard/pkg/logger"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8800", "listen address")
	baseURL := flag.String("base-url", "", "public base URL for issued endpoints (defaults to http://<addr>)")
	flag.Parse()

	logger.Init()
	defer logger.GetLogger().Sync()

	base := *baseURL
	if base == "" {
		base = "http://" + *addr
	}

	r := relay.New(base, nil)

	server := &http.Server{
		Addr:              *addr,
		Handler:           r.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		logger.Info("Notification relay listening", zap.String("addr", *addr), zap.String("base_url", base))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Relay server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Relay shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Relay forced to shutdown", zap.Error(err))
	}
}
