package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"signalboard/models"
)

// BinanceSource fetches candle history from the Binance spot API. No API key
// is needed for public kline data.
type BinanceSource struct {
	client *binance.Client
}

// NewBinanceSource creates an unauthenticated Binance source.
func NewBinanceSource() *BinanceSource {
	return &BinanceSource{client: binance.NewClient("", "")}
}

// History fetches klines for a crypto symbol.
func (s *BinanceSource) History(ctx context.Context, symbol, period, interval string) ([]models.Candle, error) {
	pair := ToBinanceSymbol(symbol)
	limit := periodBars(period, interval)

	klines, err := s.client.NewKlinesService().
		Symbol(pair).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines for %s: %w", pair, err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		open, err1 := strconv.ParseFloat(k.Open, 64)
		high, err2 := strconv.ParseFloat(k.High, 64)
		low, err3 := strconv.ParseFloat(k.Low, 64)
		closePrice, err4 := strconv.ParseFloat(k.Close, 64)
		volume, err5 := strconv.ParseFloat(k.Volume, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		candles = append(candles, models.Candle{
			Symbol:    symbol,
			OpenTime:  time.UnixMilli(k.OpenTime),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			CloseTime: time.UnixMilli(k.CloseTime),
		})
	}
	return candles, nil
}

// ToBinanceSymbol converts a "BTC-USD" style symbol to Binance pair
// notation ("BTCUSDT").
func ToBinanceSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	if strings.HasSuffix(s, "-USD") {
		return strings.TrimSuffix(s, "-USD") + "USDT"
	}
	return strings.ReplaceAll(s, "-", "")
}
