package trading

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"signalboard/models"
)

func TestToAlpacaSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"BTC-USD", "BTCUSD"},
		{"eth-usd", "ETHUSD"},
		{"AAPL", "AAPL"},
		{"msft", "MSFT"},
	}
	for _, tt := range tests {
		if got := ToAlpacaSymbol(tt.symbol); got != tt.want {
			t.Errorf("ToAlpacaSymbol(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestBrokerDisabledWithoutCredentials(t *testing.T) {
	b := NewBroker("", "", "https://paper-api.alpaca.markets")
	if b.Enabled() {
		t.Error("broker with no credentials must be disabled")
	}

	placed, err := b.SubmitOrder(context.Background(), models.Signal{
		Symbol: "AAPL", Action: models.ActionBuy, Quantity: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if placed {
		t.Error("disabled broker must not place orders")
	}
}

func TestSubmitOrderSkipsHoldAndZeroQty(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	b := NewBroker("key", "secret", server.URL)

	placed, err := b.SubmitOrder(context.Background(), models.Signal{
		Symbol: "AAPL", Action: models.ActionHold, Quantity: 5,
	})
	if err != nil || placed {
		t.Errorf("hold signal: placed=%v err=%v", placed, err)
	}

	placed, err = b.SubmitOrder(context.Background(), models.Signal{
		Symbol: "AAPL", Action: models.ActionBuy, Quantity: 0,
	})
	if err != nil || placed {
		t.Errorf("zero quantity: placed=%v err=%v", placed, err)
	}

	if called {
		t.Error("no HTTP request expected for skipped signals")
	}
}

func TestSubmitOrderSendsMarketOrder(t *testing.T) {
	var got orderRequest
	var gotKey, gotSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/orders" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotKey = r.Header.Get("APCA-API-KEY-ID")
		gotSecret = r.Header.Get("APCA-API-SECRET-KEY")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode order: %v", err)
		}
		w.Write([]byte(`{"id":"order-1"}`))
	}))
	defer server.Close()

	b := NewBroker("key", "secret", server.URL)
	placed, err := b.SubmitOrder(context.Background(), models.Signal{
		Symbol: "BTC-USD", Action: models.ActionSell, Quantity: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !placed {
		t.Fatal("expected order to be placed")
	}

	if gotKey != "key" || gotSecret != "secret" {
		t.Errorf("auth headers wrong: %q / %q", gotKey, gotSecret)
	}
	if got.Symbol != "BTCUSD" || got.Side != "sell" || got.Qty != 3 {
		t.Errorf("order = %+v", got)
	}
	if got.Type != "market" || got.TimeInForce != "gtc" {
		t.Errorf("order type/tif = %q / %q", got.Type, got.TimeInForce)
	}
}

func TestSubmitOrderRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"insufficient buying power"}`, http.StatusForbidden)
	}))
	defer server.Close()

	b := NewBroker("key", "secret", server.URL)
	placed, err := b.SubmitOrder(context.Background(), models.Signal{
		Symbol: "AAPL", Action: models.ActionBuy, Quantity: 1,
	})
	if err == nil {
		t.Error("expected error for rejected order")
	}
	if placed {
		t.Error("rejected order must not report as placed")
	}
}
