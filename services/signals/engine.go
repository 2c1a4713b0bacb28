// Package signals turns candle history into trading signals by majority
// vote across the strategy set, with confidence, price levels and position
// sizing attached.
package signals

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"signalboard/models"
	"signalboard/services/analysis"
)

const (
	engineName = "multi-strategy-v1"

	// Minimum history before any strategy is trusted.
	minCloses = 50

	baseStopPct   = 0.02 // 2% stop distance
	takeProfitPct = 0.04 // 4% target, 2R
)

// Engine generates and persists trading signals.
type Engine struct {
	db        *gorm.DB
	equity    float64
	riskPct   float64
	timeframe string
}

// NewEngine creates a signal engine. db may be nil when persistence is not
// wanted (tests, one-off analysis).
func NewEngine(db *gorm.DB, equity, riskPct float64, timeframe string) *Engine {
	return &Engine{
		db:        db,
		equity:    equity,
		riskPct:   riskPct,
		timeframe: timeframe,
	}
}

// Analyze produces a signal for one symbol from its candle history. It never
// fails: missing or short history degrades to a HOLD with a reason.
func (e *Engine) Analyze(symbol string, candles []models.Candle, now time.Time) models.Signal {
	if len(candles) == 0 {
		return models.Signal{
			Timestamp: now,
			Symbol:    symbol,
			Action:    models.ActionHold,
			Reason:    "no_data",
			Engine:    engineName,
		}
	}

	closes := models.Closes(candles)
	if len(closes) < minCloses {
		return models.Signal{
			Timestamp: now,
			Symbol:    symbol,
			Action:    models.ActionHold,
			Reason:    "insufficient_data",
			Engine:    engineName,
		}
	}

	votes := analysis.Votes(closes)

	buyVotes, sellVotes := 0, 0
	for _, v := range votes {
		switch v.Vote {
		case models.ActionBuy:
			buyVotes++
		case models.ActionSell:
			sellVotes++
		}
	}
	totalVotes := len(votes)

	action := models.ActionHold
	if buyVotes > sellVotes {
		action = models.ActionBuy
	} else if sellVotes > buyVotes {
		action = models.ActionSell
	}

	var confidence int
	if action != models.ActionHold {
		winning := buyVotes
		if sellVotes > winning {
			winning = sellVotes
		}
		confidence = int(math.Round(float64(winning) / float64(totalVotes) * 100))
	} else {
		confidence = int(math.Round((1 - math.Abs(float64(buyVotes-sellVotes))/float64(totalVotes)) * 100))
	}

	entry := closes[len(closes)-1]

	sig := models.Signal{
		Timestamp:     now,
		Symbol:        symbol,
		Action:        action,
		StrategyVotes: votes,
		Confidence:    confidence,
		Timeframe:     e.timeframe,
		EntryPrice:    decimalPtr(entry, 6),
		Engine:        engineName,
		OrderType:     "MARKET",
	}

	trading := action == models.ActionBuy || action == models.ActionSell
	if trading {
		sig.StopLossPct = decimalPtr(baseStopPct*100, 2)
		sig.TakeProfitPct = decimalPtr(takeProfitPct*100, 2)
		if action == models.ActionSell {
			sig.StopLossPrice = decimalPtr(entry*(1+baseStopPct), 6)
			sig.TakeProfitPrice = decimalPtr(entry*(1-takeProfitPct), 6)
		} else {
			sig.StopLossPrice = decimalPtr(entry*(1-baseStopPct), 6)
			sig.TakeProfitPrice = decimalPtr(entry*(1+takeProfitPct), 6)
		}
	}

	sig.Quantity, sig.PositionPercent = e.positionSize(entry, trading)
	return sig
}

// positionSize derives order quantity and portfolio share from the
// configured equity and risk-per-trade percentage.
func (e *Engine) positionSize(entry float64, trading bool) (int64, *decimal.Decimal) {
	if !trading || entry <= 0 || e.equity <= 0 {
		return 0, decimalPtr(0, 2)
	}

	riskCapital := e.equity * (e.riskPct / 100)
	riskPerUnit := entry * baseStopPct
	if riskPerUnit < 1e-8 {
		riskPerUnit = 1e-8
	}

	quantity := int64(math.Floor(riskCapital / riskPerUnit))
	if quantity < 1 {
		quantity = 1
	}

	positionPct := float64(quantity) * entry / e.equity * 100
	return quantity, decimalPtr(positionPct, 2)
}

// AnalyzeAll generates one signal per symbol from pre-fetched history.
func (e *Engine) AnalyzeAll(history map[string][]models.Candle, symbols []string, now time.Time) []models.Signal {
	out := make([]models.Signal, 0, len(symbols))
	for _, symbol := range symbols {
		out = append(out, e.Analyze(symbol, history[symbol], now))
	}
	return out
}

// Save persists a generated signal.
func (e *Engine) Save(sig models.Signal) error {
	if e.db == nil {
		return nil
	}
	rec := models.NewSignalRecord(sig)
	return e.db.Create(&rec).Error
}

// Recent returns the newest persisted signals, capped at limit.
func (e *Engine) Recent(limit int) ([]models.SignalRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var records []models.SignalRecord
	err := e.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

func decimalPtr(v float64, places int32) *decimal.Decimal {
	d := decimal.NewFromFloat(v).Round(places)
	return &d
}
