package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"

	"signalboard/models"
)

type notifyCapture struct {
	mu     sync.Mutex
	titles []string
	bodies []string
	icons  []string
}

func (n *notifyCapture) notify(title, body, icon string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	n.bodies = append(n.bodies, body)
	n.icons = append(n.icons, icon)
	return nil
}

func (n *notifyCapture) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

// newTestRelay starts an HTTP server around a relay whose base URL is the
// server's own address, so issued endpoints route back into it.
func newTestRelay(t *testing.T) (*Relay, *notifyCapture, *httptest.Server) {
	t.Helper()
	capture := &notifyCapture{}

	var r *Relay
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.Handler().ServeHTTP(w, req)
	}))
	t.Cleanup(server.Close)

	r = New(server.URL, capture.notify)
	return r, capture, server
}

func TestRegisterIssuesDistinctSubscriptions(t *testing.T) {
	r, _, server := newTestRelay(t)

	serverKey := []byte("application-server-key")
	first, err := r.Register(serverKey)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := r.Register(serverKey)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if !strings.HasPrefix(first.Endpoint, server.URL+"/push/") {
		t.Errorf("endpoint %q does not point at the relay", first.Endpoint)
	}
	if first.Endpoint == second.Endpoint {
		t.Error("two registrations produced the same endpoint")
	}

	p256dh, err := base64.RawURLEncoding.DecodeString(first.Keys.P256dh)
	if err != nil {
		t.Fatalf("p256dh is not url-safe base64: %v", err)
	}
	// Uncompressed P-256 point: 0x04 prefix plus two 32 byte coordinates.
	if len(p256dh) != 65 || p256dh[0] != 0x04 {
		t.Errorf("p256dh is not an uncompressed P-256 point, got %d bytes", len(p256dh))
	}

	auth, err := base64.RawURLEncoding.DecodeString(first.Keys.Auth)
	if err != nil {
		t.Fatalf("auth is not url-safe base64: %v", err)
	}
	if len(auth) != 16 {
		t.Errorf("auth secret should be 16 bytes, got %d", len(auth))
	}
}

func TestRegisterEndpointRejectsBadRequests(t *testing.T) {
	_, _, server := newTestRelay(t)

	resp, err := http.Post(server.URL+"/register", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing key should be rejected, got %d", resp.StatusCode)
	}

	resp, err = http.Post(server.URL+"/register", "application/json", strings.NewReader(`not json`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid JSON should be rejected, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	_, _, server := newTestRelay(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

// registerOverHTTP runs a registration through the HTTP surface the way the
// enrollment flow does.
func registerOverHTTP(t *testing.T, serverURL string, serverKey []byte) models.PushSubscription {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"applicationServerKey": base64.RawURLEncoding.EncodeToString(serverKey),
	})
	resp, err := http.Post(serverURL+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register returned %d", resp.StatusCode)
	}
	var sub models.PushSubscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		t.Fatal(err)
	}
	return sub
}

// sendPush encrypts and delivers a payload through the real web push
// library, exercising the full aes128gcm path end to end.
func sendPush(t *testing.T, sub models.PushSubscription, payload []byte) {
	t.Helper()

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	resp, err := webpush.SendNotificationWithContext(context.Background(), payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      "mailto:ops@example.com",
		VAPIDPublicKey:  publicKey,
		VAPIDPrivateKey: privateKey,
		TTL:             30,
	})
	if err != nil {
		t.Fatalf("send push: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("push delivery returned %d", resp.StatusCode)
	}
}

func TestPushRoundTripDecryptsAndNotifies(t *testing.T) {
	_, capture, server := newTestRelay(t)
	sub := registerOverHTTP(t, server.URL, []byte("server-key"))

	sendPush(t, sub, []byte(`{"title":"Signal BUY AAPL","body":"Price 123.45","symbol":"AAPL","action":"BUY"}`))

	if capture.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", capture.count())
	}
	if capture.titles[0] != "Signal BUY AAPL" {
		t.Errorf("title = %q", capture.titles[0])
	}
	if capture.bodies[0] != "Price 123.45" {
		t.Errorf("body = %q", capture.bodies[0])
	}
}

func TestPushPayloadDefaults(t *testing.T) {
	_, capture, server := newTestRelay(t)
	sub := registerOverHTTP(t, server.URL, []byte("server-key"))

	// Only action and symbol set: title falls back to the default and the
	// body is synthesized from the pair.
	sendPush(t, sub, []byte(`{"action":"BUY","symbol":"ETH"}`))

	if capture.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", capture.count())
	}
	if capture.titles[0] != models.DefaultNotificationTitle {
		t.Errorf("title = %q, want %q", capture.titles[0], models.DefaultNotificationTitle)
	}
	if capture.bodies[0] != "BUY ETH" {
		t.Errorf("body = %q, want %q", capture.bodies[0], "BUY ETH")
	}
	if capture.icons[0] != models.DefaultNotificationIcon {
		t.Errorf("icon = %q, want %q", capture.icons[0], models.DefaultNotificationIcon)
	}
}

func TestPushNonJSONPayloadFallsBackToDefaults(t *testing.T) {
	_, capture, server := newTestRelay(t)
	sub := registerOverHTTP(t, server.URL, []byte("server-key"))

	sendPush(t, sub, []byte("plain text payload"))

	if capture.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", capture.count())
	}
	if capture.titles[0] != models.DefaultNotificationTitle {
		t.Errorf("title = %q", capture.titles[0])
	}
	if capture.bodies[0] != models.DefaultNotificationBody {
		t.Errorf("body = %q", capture.bodies[0])
	}
}

func TestPushUnknownTokenIs404(t *testing.T) {
	_, capture, server := newTestRelay(t)

	resp, err := http.Post(server.URL+"/push/deadbeef", "application/octet-stream", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if capture.count() != 0 {
		t.Error("no notification should fire for an unknown token")
	}
}

func TestPushGarbageBodyIsRejected(t *testing.T) {
	_, capture, server := newTestRelay(t)
	sub := registerOverHTTP(t, server.URL, []byte("server-key"))

	resp, err := http.Post(sub.Endpoint, "application/octet-stream",
		bytes.NewReader(bytes.Repeat([]byte{0xab}, 120)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for undecryptable body, got %d", resp.StatusCode)
	}
	if capture.count() != 0 {
		t.Error("no notification should fire for an undecryptable delivery")
	}
}

func TestStripPadding(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    []byte
		wantErr bool
	}{
		{"final record delimiter", []byte{'h', 'i', 0x02}, []byte("hi"), false},
		{"delimiter with zero padding", []byte{'h', 'i', 0x02, 0, 0, 0}, []byte("hi"), false},
		{"non-final delimiter tolerated", []byte{'h', 'i', 0x01}, []byte("hi"), false},
		{"all padding", []byte{0, 0, 0}, nil, true},
		{"missing delimiter", []byte{'h', 'i', 0x07}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stripPadding(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
