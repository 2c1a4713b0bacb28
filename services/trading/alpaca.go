// Package trading submits broker orders for actionable signals.
package trading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"signalboard/models"
	"signalboard/pkg/logger"
)

// Broker submits market orders to the Alpaca trading API. With no API keys
// configured the broker is disabled and every submit is a no-op.
type Broker struct {
	key     string
	secret  string
	baseURL string
	client  *http.Client
}

// NewBroker creates an Alpaca broker client.
func NewBroker(key, secret, baseURL string) *Broker {
	return &Broker{
		key:     key,
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether API credentials are configured.
func (b *Broker) Enabled() bool {
	return b.key != "" && b.secret != ""
}

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         int64  `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

// SubmitOrder places a market order for an actionable signal. HOLD signals
// and zero quantities are skipped. Returns true when an order was placed.
func (b *Broker) SubmitOrder(ctx context.Context, sig models.Signal) (bool, error) {
	if !b.Enabled() {
		return false, nil
	}

	var side string
	switch sig.Action {
	case models.ActionBuy:
		side = "buy"
	case models.ActionSell:
		side = "sell"
	default:
		return false, nil
	}
	if sig.Quantity <= 0 {
		logger.Debug("No trade for signal without quantity", zap.String("symbol", sig.Symbol))
		return false, nil
	}

	order := orderRequest{
		Symbol:      ToAlpacaSymbol(sig.Symbol),
		Qty:         sig.Quantity,
		Side:        side,
		Type:        "market",
		TimeInForce: "gtc",
	}
	body, err := json.Marshal(order)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v2/orders", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("APCA-API-KEY-ID", b.key)
	req.Header.Set("APCA-API-SECRET-KEY", b.secret)

	resp, err := b.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return false, fmt.Errorf("order rejected with status %d", resp.StatusCode)
	}

	logger.Info("Order submitted",
		zap.String("symbol", order.Symbol),
		zap.String("side", side),
		zap.Int64("qty", order.Qty))
	return true, nil
}

// ToAlpacaSymbol converts a "BTC-USD" style symbol to Alpaca crypto
// notation ("BTCUSD"); equities pass through unchanged.
func ToAlpacaSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	if strings.HasSuffix(s, "-USD") {
		return strings.ReplaceAll(s, "-", "")
	}
	return s
}
