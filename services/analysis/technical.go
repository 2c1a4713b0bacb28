// Package analysis computes strategy votes from price history using
// technical indicators.
package analysis

import (
	"github.com/markcheno/go-talib"

	"signalboard/models"
)

// Strategy names, in the order votes are reported.
const (
	StrategyRSI       = "RSI"
	StrategyMACD      = "MACD"
	StrategySMACross  = "SMA_CROSS"
	StrategyBollinger = "BOLLINGER"
	StrategyMomentum  = "MOMENTUM"
)

// Indicator parameters.
const (
	rsiPeriod      = 14
	macdFast       = 12
	macdSlow       = 26
	macdSignal     = 9
	smaShortPeriod = 50
	smaLongPeriod  = 200
	bbPeriod       = 20
	bbDeviations   = 2.0
	rocPeriod      = 10
	rocThresholdPct = 1.0
)

// Votes runs every strategy over the close series and returns the votes in
// fixed reporting order.
func Votes(closes []float64) models.VoteList {
	return models.VoteList{
		{Strategy: StrategyRSI, Vote: rsiVote(closes)},
		{Strategy: StrategyMACD, Vote: macdVote(closes)},
		{Strategy: StrategySMACross, Vote: smaCrossVote(closes)},
		{Strategy: StrategyBollinger, Vote: bollingerVote(closes)},
		{Strategy: StrategyMomentum, Vote: momentumVote(closes)},
	}
}

// rsiVote signals on RSI crossing back out of the 30/70 zones, with 25/75
// overextension as weaker standalone triggers.
func rsiVote(closes []float64) string {
	if len(closes) < rsiPeriod+2 {
		return models.ActionHold
	}
	rsi := talib.Rsi(closes, rsiPeriod)
	prev, curr := rsi[len(rsi)-2], rsi[len(rsi)-1]

	switch {
	case prev < 30 && curr >= 30:
		return models.ActionBuy
	case prev > 70 && curr <= 70:
		return models.ActionSell
	case curr < 25:
		return models.ActionBuy
	case curr > 75:
		return models.ActionSell
	}
	return models.ActionHold
}

// macdVote signals on the MACD line crossing its signal line.
func macdVote(closes []float64) string {
	if len(closes) < macdSlow+macdSignal+1 {
		return models.ActionHold
	}
	macd, signal, _ := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	n := len(macd)
	prevCross := macd[n-2] - signal[n-2]
	currCross := macd[n-1] - signal[n-1]

	if prevCross <= 0 && currCross > 0 {
		return models.ActionBuy
	}
	if prevCross >= 0 && currCross < 0 {
		return models.ActionSell
	}
	return models.ActionHold
}

// smaCrossVote signals on the 50/200 golden and death crosses.
func smaCrossVote(closes []float64) string {
	if len(closes) < smaLongPeriod+1 {
		return models.ActionHold
	}
	smaShort := talib.Sma(closes, smaShortPeriod)
	smaLong := talib.Sma(closes, smaLongPeriod)
	n := len(closes)
	prevCross := smaShort[n-2] - smaLong[n-2]
	currCross := smaShort[n-1] - smaLong[n-1]

	if prevCross <= 0 && currCross > 0 {
		return models.ActionBuy
	}
	if prevCross >= 0 && currCross < 0 {
		return models.ActionSell
	}
	return models.ActionHold
}

// bollingerVote signals when price touches the outer bands.
func bollingerVote(closes []float64) string {
	if len(closes) < bbPeriod+1 {
		return models.ActionHold
	}
	upper, _, lower := talib.BBands(closes, bbPeriod, bbDeviations, bbDeviations, talib.SMA)
	n := len(closes)
	price := closes[n-1]

	if price <= lower[n-1] {
		return models.ActionBuy
	}
	if price >= upper[n-1] {
		return models.ActionSell
	}
	return models.ActionHold
}

// momentumVote signals on 10-bar rate of change beyond ±1%.
func momentumVote(closes []float64) string {
	if len(closes) < rocPeriod+1 {
		return models.ActionHold
	}
	roc := talib.Roc(closes, rocPeriod)
	curr := roc[len(roc)-1]

	if curr > rocThresholdPct {
		return models.ActionBuy
	}
	if curr < -rocThresholdPct {
		return models.ActionSell
	}
	return models.ActionHold
}
