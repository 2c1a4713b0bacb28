// Package marketdata fetches OHLCV history for the signal engine. Crypto
// pairs come from Binance, everything else from the Yahoo Finance chart API.
package marketdata

import (
	"context"
	"strings"

	"signalboard/models"
)

// Source provides candle history for a symbol.
type Source interface {
	History(ctx context.Context, symbol, period, interval string) ([]models.Candle, error)
}

// Fetcher routes symbols to the right data source.
type Fetcher struct {
	crypto Source
	equity Source
}

// NewFetcher creates a fetcher with the default Binance and Yahoo sources.
func NewFetcher() *Fetcher {
	return &Fetcher{
		crypto: NewBinanceSource(),
		equity: NewYahooSource(),
	}
}

// NewFetcherWithSources creates a fetcher with explicit sources, used in tests.
func NewFetcherWithSources(crypto, equity Source) *Fetcher {
	return &Fetcher{crypto: crypto, equity: equity}
}

// History fetches candle history for one symbol.
func (f *Fetcher) History(ctx context.Context, symbol, period, interval string) ([]models.Candle, error) {
	if IsCryptoSymbol(symbol) {
		return f.crypto.History(ctx, symbol, period, interval)
	}
	return f.equity.History(ctx, symbol, period, interval)
}

// IsCryptoSymbol reports whether a symbol names a crypto pair
// ("BTC-USD", "ETHUSDT" style).
func IsCryptoSymbol(symbol string) bool {
	s := strings.ToUpper(symbol)
	return strings.HasSuffix(s, "-USD") || strings.HasSuffix(s, "USDT")
}

// periodBars maps a history period and bar interval to a candle count.
func periodBars(period, interval string) int {
	days := 180
	switch period {
	case "1mo":
		days = 30
	case "3mo":
		days = 90
	case "6mo":
		days = 180
	case "1y":
		days = 365
	case "2y":
		days = 730
	}

	switch interval {
	case "1h":
		// Bounded so intraday requests stay within exchange limits.
		bars := days * 24
		if bars > 1000 {
			bars = 1000
		}
		return bars
	default:
		return days
	}
}
