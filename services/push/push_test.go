package push

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"signalboard/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	if err := models.MigrateSubscriptionModels(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleSub(endpoint string) models.PushSubscription {
	return models.PushSubscription{
		Endpoint: endpoint,
		Keys:     models.SubscriptionKeys{P256dh: "p256dh-key", Auth: "auth-secret"},
	}
}

func TestStoreAddAndList(t *testing.T) {
	store := NewStore(testDB(t))

	if err := store.Add(sampleSub("https://push.example/one")); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(sampleSub("https://push.example/two")); err != nil {
		t.Fatal(err)
	}

	subs, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(subs))
	}
	if subs[0].Keys.P256dh != "p256dh-key" || subs[0].Keys.Auth != "auth-secret" {
		t.Errorf("keys not round-tripped: %+v", subs[0].Keys)
	}
}

func TestStoreAddDeduplicatesByEndpoint(t *testing.T) {
	store := NewStore(testDB(t))

	for i := 0; i < 3; i++ {
		if err := store.Add(sampleSub("https://push.example/same")); err != nil {
			t.Fatal(err)
		}
	}

	n, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 subscription after duplicates, got %d", n)
	}
}

func TestStoreAddRejectsEmptyEndpoint(t *testing.T) {
	store := NewStore(testDB(t))
	if err := store.Add(models.PushSubscription{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestStoreRemove(t *testing.T) {
	store := NewStore(testDB(t))

	for i := 0; i < 3; i++ {
		if err := store.Add(sampleSub(fmt.Sprintf("https://push.example/%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Remove("https://push.example/1"); err != nil {
		t.Fatal(err)
	}

	n, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 subscriptions after removal, got %d", n)
	}

	subs, _ := store.List()
	for _, sub := range subs {
		if sub.Endpoint == "https://push.example/1" {
			t.Error("removed endpoint still listed")
		}
	}
}

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func TestSignalPayload(t *testing.T) {
	sig := models.Signal{
		Symbol:     "AAPL",
		Action:     models.ActionBuy,
		Confidence: 80,
		EntryPrice: decPtr(123.456789),
		Quantity:   5,
	}

	payload := SignalPayload(sig)
	if payload["title"] != "Signal BUY AAPL" {
		t.Errorf("title = %v", payload["title"])
	}
	if payload["body"] != "Price 123.4568 • Qty 5 • 80%" {
		t.Errorf("body = %v", payload["body"])
	}
	if payload["symbol"] != "AAPL" || payload["action"] != models.ActionBuy {
		t.Errorf("symbol/action wrong: %v / %v", payload["symbol"], payload["action"])
	}
}

func TestSignalPayloadWithoutEntryPrice(t *testing.T) {
	sig := models.Signal{Symbol: "MSFT", Action: models.ActionHold}

	payload := SignalPayload(sig)
	if payload["title"] != "Signal HOLD MSFT" {
		t.Errorf("title = %v", payload["title"])
	}
	if _, ok := payload["body"]; ok {
		t.Error("no body expected without an entry price")
	}
	if _, ok := payload["entry_price"]; ok {
		t.Error("no entry_price expected")
	}
}

func TestDispatcherDisabledWithoutKeys(t *testing.T) {
	store := NewStore(testDB(t))
	if err := store.Add(sampleSub("https://push.example/one")); err != nil {
		t.Fatal(err)
	}

	d := NewDispatcher(store, nil)
	if sent := d.SendToAll(nil, map[string]string{"title": "x"}); sent != 0 {
		t.Errorf("disabled dispatcher sent %d", sent)
	}

	// The subscription must survive a disabled dispatch.
	n, _ := store.Count()
	if n != 1 {
		t.Errorf("subscription count = %d, want 1", n)
	}
}

func TestEnsureVAPIDKeysFromEnv(t *testing.T) {
	keys, err := EnsureVAPIDKeys("mailto:ops@example.com", "pub-key", "priv-key")
	if err != nil {
		t.Fatal(err)
	}
	if keys.Subject != "mailto:ops@example.com" {
		t.Errorf("subject = %q", keys.Subject)
	}
	if keys.PublicKey != "pub-key" || keys.PrivateKey != "priv-key" {
		t.Errorf("keys not taken from env: %+v", keys)
	}
}
