package board

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"signalboard/models"
)

func dec(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func sampleSignal(ts time.Time, symbol, action string) models.Signal {
	return models.Signal{
		Timestamp:  ts,
		Symbol:     symbol,
		Action:     action,
		Confidence: 60,
		EntryPrice: dec("123.456789"),
		Quantity:   5,
		StrategyVotes: models.VoteList{
			{Strategy: "RSI", Vote: "BUY"},
			{Strategy: "MACD", Vote: "HOLD"},
		},
	}
}

func TestUpsertInsertsNewRowsAtTop(t *testing.T) {
	b := New()
	t0 := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	b.Upsert(sampleSignal(t0, "AAPL", "BUY"))
	b.Upsert(sampleSignal(t0.Add(time.Minute), "MSFT", "SELL"))
	b.Upsert(sampleSignal(t0.Add(2*time.Minute), "BTC-USD", "HOLD"))

	rows := b.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	want := []string{"BTC-USD", "MSFT", "AAPL"}
	for i, symbol := range want {
		if rows[i].Symbol != symbol {
			t.Errorf("row %d: expected %s, got %s", i, symbol, rows[i].Symbol)
		}
	}
}

func TestUpsertSameKeyUpdatesInPlace(t *testing.T) {
	b := New()
	t0 := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	b.Upsert(sampleSignal(t0, "AAPL", "BUY"))
	b.Upsert(sampleSignal(t0.Add(time.Minute), "MSFT", "SELL"))

	// Same key, different action: the row changes but neither count nor
	// position does.
	updated := sampleSignal(t0, "AAPL", "SELL")
	b.Upsert(updated)

	rows := b.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after update, got %d", len(rows))
	}
	if rows[0].Symbol != "MSFT" {
		t.Errorf("expected MSFT to stay on top, got %s", rows[0].Symbol)
	}
	if rows[1].Action != "SELL" {
		t.Errorf("expected AAPL row updated to SELL, got %s", rows[1].Action)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	b := New()
	sig := sampleSignal(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), "AAPL", "BUY")

	first := *b.Upsert(sig)
	second := *b.Upsert(sig)

	if b.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", b.Len())
	}
	if first != second {
		t.Errorf("re-applying the same signal changed the row:\n%+v\n%+v", first, second)
	}
}

func TestRowFormatting(t *testing.T) {
	sig := models.Signal{
		Timestamp:       time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC),
		Symbol:          "ETH-USD",
		Action:          "BUY",
		Confidence:      80,
		EntryPrice:      dec("2501.5"),
		TakeProfitPrice: dec("2601.56"),
		StopLossPrice:   dec("2451.47"),
		PositionPercent: dec("12.5"),
		Quantity:        2,
		StrategyVotes: models.VoteList{
			{Strategy: "RSI", Vote: "BUY"},
			{Strategy: "MACD", Vote: "BUY"},
			{Strategy: "MOMENTUM", Vote: "HOLD"},
		},
	}

	b := New()
	row := b.Upsert(sig)

	checks := []struct {
		name, got, want string
	}{
		{"time", row.Time, "2026-08-29 14:30:00"},
		{"entry", row.EntryPrice, "2501.5000"},
		{"take profit", row.TakeProfit, "2601.5600"},
		{"stop loss", row.StopLoss, "2451.4700"},
		{"position pct", row.PositionPct, "12.50%"},
		{"quantity", row.Quantity, "2"},
		{"confidence", row.Confidence, "80%"},
		{"votes", row.Votes, "RSI:BUY MACD:BUY MOMENTUM:HOLD"},
		{"class", row.ActionClass, ClassBuy},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %q, got %q", c.name, c.want, c.got)
		}
	}
}

func TestMissingOptionalFieldsRenderEmpty(t *testing.T) {
	sig := models.Signal{
		Timestamp: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		Symbol:    "AAPL",
		Action:    "HOLD",
	}

	b := New()
	row := b.Upsert(sig)

	if row.EntryPrice != "" {
		t.Errorf("missing entry price should render empty, got %q", row.EntryPrice)
	}
	if row.TakeProfit != "" || row.StopLoss != "" || row.PositionPct != "" {
		t.Errorf("missing optionals should render empty, got tp=%q sl=%q pos=%q",
			row.TakeProfit, row.StopLoss, row.PositionPct)
	}
	if row.Quantity != "0" {
		t.Errorf("missing quantity should render 0, got %q", row.Quantity)
	}
	if row.Confidence != "0%" {
		t.Errorf("missing confidence should render 0%%, got %q", row.Confidence)
	}
	if row.Votes != "" {
		t.Errorf("missing votes should render empty, got %q", row.Votes)
	}
}

func TestActionClass(t *testing.T) {
	tests := []struct {
		action string
		want   string
	}{
		{"BUY", ClassBuy},
		{"SELL", ClassSell},
		{"HOLD", ClassHold},
		{"", ClassHold},
		{"buy", ClassHold},
		{"WAIT", ClassHold},
	}
	for _, tt := range tests {
		if got := ActionClass(tt.action); got != tt.want {
			t.Errorf("ActionClass(%q) = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func mustMessage(t *testing.T, msgType string, payload interface{}) models.StreamMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return models.StreamMessage{Type: msgType, Data: data}
}

func TestApplySingleAndBatch(t *testing.T) {
	b := New()
	t0 := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	single := mustMessage(t, models.MessageTypeSignal, sampleSignal(t0, "AAPL", "BUY"))
	if err := b.Apply(single); err != nil {
		t.Fatalf("apply single: %v", err)
	}

	batch := mustMessage(t, models.MessageTypeSignals, []models.Signal{
		sampleSignal(t0.Add(time.Minute), "MSFT", "SELL"),
		sampleSignal(t0.Add(time.Minute), "BTC-USD", "HOLD"),
	})
	if err := b.Apply(batch); err != nil {
		t.Fatalf("apply batch: %v", err)
	}

	if b.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", b.Len())
	}
}

func TestApplyStaleBatchOverwritesNewerRow(t *testing.T) {
	// A batch entry sharing a key with an existing row replaces it, even if
	// the existing row came from a later single update. Last write wins.
	b := New()
	t0 := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	fresh := sampleSignal(t0, "AAPL", "SELL")
	if err := b.Apply(mustMessage(t, models.MessageTypeSignal, fresh)); err != nil {
		t.Fatal(err)
	}

	stale := sampleSignal(t0, "AAPL", "BUY")
	if err := b.Apply(mustMessage(t, models.MessageTypeSignals, []models.Signal{stale})); err != nil {
		t.Fatal(err)
	}

	row := b.Get(stale.Key())
	if row == nil {
		t.Fatal("row disappeared")
	}
	if row.Action != "BUY" {
		t.Errorf("expected the batch write to win, got action %s", row.Action)
	}
}

func TestApplyIgnoresHeartbeatAndUnknown(t *testing.T) {
	b := New()

	heartbeat := models.StreamMessage{Type: models.MessageTypeHeartbeat, TS: "2026-08-29T10:00:00Z"}
	if err := b.Apply(heartbeat); err != nil {
		t.Fatalf("heartbeat should be ignored, got %v", err)
	}

	unknown := models.StreamMessage{Type: "stats", Data: json.RawMessage(`{"uptime":42}`)}
	if err := b.Apply(unknown); err != nil {
		t.Fatalf("unknown type should be ignored, got %v", err)
	}

	if b.Len() != 0 {
		t.Errorf("expected empty board, got %d rows", b.Len())
	}
}

func TestApplyMalformedDataReturnsError(t *testing.T) {
	b := New()

	bad := models.StreamMessage{Type: models.MessageTypeSignal, Data: json.RawMessage(`"not an object"`)}
	if err := b.Apply(bad); err == nil {
		t.Error("expected error for malformed signal data")
	}

	badBatch := models.StreamMessage{Type: models.MessageTypeSignals, Data: json.RawMessage(`{}`)}
	if err := b.Apply(badBatch); err == nil {
		t.Error("expected error for malformed batch data")
	}

	if b.Len() != 0 {
		t.Errorf("malformed messages must not add rows, got %d", b.Len())
	}
}

func TestDistinctTimestampsSameSymbolAreSeparateRows(t *testing.T) {
	b := New()
	t0 := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	b.Upsert(sampleSignal(t0, "AAPL", "BUY"))
	b.Upsert(sampleSignal(t0.Add(time.Hour), "AAPL", "SELL"))

	if b.Len() != 2 {
		t.Errorf("same symbol at different timestamps should be 2 rows, got %d", b.Len())
	}
}
