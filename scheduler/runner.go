package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"signalboard/config"
	"signalboard/models"
	"signalboard/pkg/logger"
	"signalboard/services/marketdata"
	"signalboard/services/push"
	"signalboard/services/signals"
	"signalboard/services/stream"
	"signalboard/services/trading"
)

// Runner executes one analysis cycle: fetch history, generate signals,
// persist, broadcast, notify, and optionally trade.
type Runner struct {
	cfg         *config.Config
	fetcher     *marketdata.Fetcher
	engine      *signals.Engine
	broadcaster *stream.Broadcaster
	dispatcher  *push.Dispatcher
	broker      *trading.Broker
}

// NewRunner wires the cycle dependencies together.
func NewRunner(cfg *config.Config, fetcher *marketdata.Fetcher, engine *signals.Engine,
	broadcaster *stream.Broadcaster, dispatcher *push.Dispatcher, broker *trading.Broker) *Runner {
	return &Runner{
		cfg:         cfg,
		fetcher:     fetcher,
		engine:      engine,
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		broker:      broker,
	}
}

// RunCycle runs one full analysis pass over the configured symbols. A failed
// fetch degrades that symbol to a no-data HOLD; nothing in the cycle is
// allowed to take the process down.
func (r *Runner) RunCycle(ctx context.Context) ([]models.Signal, error) {
	history := make(map[string][]models.Candle, len(r.cfg.Symbols))
	for _, symbol := range r.cfg.Symbols {
		candles, err := r.fetcher.History(ctx, symbol, r.cfg.Period, r.cfg.Interval)
		if err != nil {
			logger.Warn("History fetch failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		history[symbol] = candles
	}

	sigs := r.engine.AnalyzeAll(history, r.cfg.Symbols, time.Now().UTC())

	for _, sig := range sigs {
		if err := r.engine.Save(sig); err != nil {
			logger.Error("Failed to persist signal", zap.String("symbol", sig.Symbol), zap.Error(err))
		}
	}

	if err := r.broadcaster.PublishSignals(sigs); err != nil {
		logger.Error("Failed to broadcast signals", zap.Error(err))
	}

	notified, traded := 0, 0
	for _, sig := range sigs {
		if r.cfg.AutoTrade {
			ok, err := r.broker.SubmitOrder(ctx, sig)
			if err != nil {
				logger.Warn("Order submission failed", zap.String("symbol", sig.Symbol), zap.Error(err))
			} else if ok {
				traded++
			}
		}
		notified += r.dispatcher.SendToAll(ctx, push.SignalPayload(sig))
	}

	logger.Info("Cycle completed",
		zap.Int("signals", len(sigs)),
		zap.Int("trades", traded),
		zap.Int("push_sent", notified))
	return sigs, nil
}
