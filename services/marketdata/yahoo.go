package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"signalboard/models"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// YahooSource fetches candle history from the public Yahoo Finance v8
// chart API.
type YahooSource struct {
	baseURL string
	client  *http.Client
}

// NewYahooSource creates a Yahoo chart API source.
func NewYahooSource() *YahooSource {
	return &YahooSource{
		baseURL: yahooChartURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// NewYahooSourceWithURL creates a source against a custom base URL, used in tests.
func NewYahooSourceWithURL(baseURL string) *YahooSource {
	s := NewYahooSource()
	s.baseURL = baseURL
	return s
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History fetches candles for an equity symbol.
func (s *YahooSource) History(ctx context.Context, symbol, period, interval string) ([]models.Candle, error) {
	reqURL := fmt.Sprintf("%s%s?range=%s&interval=%s",
		s.baseURL, url.PathEscape(symbol), url.QueryEscape(period), url.QueryEscape(interval))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "signalboard/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo chart request for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo chart for %s: status %d", symbol, resp.StatusCode)
	}

	var parsed yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("yahoo chart decode for %s: %w", symbol, err)
	}

	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart for %s: %s", symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo chart for %s: empty result", symbol)
	}

	result := parsed.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	candles := make([]models.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		c := models.Candle{
			Symbol:   symbol,
			OpenTime: time.Unix(ts, 0),
			Close:    *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			c.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			c.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			c.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			c.Volume = *quote.Volume[i]
		}
		c.CloseTime = c.OpenTime
		candles = append(candles, c)
	}
	return candles, nil
}
