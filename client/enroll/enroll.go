// Package enroll implements the push enrollment flow: check that the local
// relay is available, fetch the server's VAPID key, register a subscription
// with the relay, and hand the subscription back to the server.
package enroll

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"signalboard/models"
	"signalboard/pkg/logger"
)

// ErrUnsupported means the notification relay is not running, so push
// enrollment cannot work on this machine. It is not retryable from the UI.
var ErrUnsupported = errors.New("notification relay unavailable")

// ErrAlreadyEnrolled is returned when Enroll is called twice in one session.
var ErrAlreadyEnrolled = errors.New("already enrolled")

// DecodeServerKey converts a URL-safe base64 application server key into
// raw bytes. URL-safe characters are substituted first and padding is
// restored before decoding.
func DecodeServerKey(s string) ([]byte, error) {
	t := strings.ReplaceAll(s, "-", "+")
	t = strings.ReplaceAll(t, "_", "/")
	if rem := len(t) % 4; rem != 0 {
		t += strings.Repeat("=", 4-rem)
	}
	return base64.StdEncoding.DecodeString(t)
}

// EncodeServerKey is the inverse of DecodeServerKey: raw bytes to URL-safe
// base64 without padding.
func EncodeServerKey(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Flow carries the state of one enrollment. Enrollment is one-way within a
// session: once it succeeds the flow stays enrolled until the process exits.
type Flow struct {
	serverURL string
	relayURL  string
	client    *http.Client
	enrolled  bool
}

// NewFlow creates an enrollment flow against the given server and relay
// base URLs.
func NewFlow(serverURL, relayURL string) *Flow {
	return &Flow{
		serverURL: strings.TrimRight(serverURL, "/"),
		relayURL:  strings.TrimRight(relayURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Enrolled reports whether enrollment has completed this session.
func (f *Flow) Enrolled() bool {
	return f.enrolled
}

// Enroll runs the full flow. On success the flow is marked enrolled. Any
// step failure leaves the flow unenrolled so the user can retry, except
// ErrUnsupported which indicates the relay is missing entirely.
func (f *Flow) Enroll(ctx context.Context) error {
	if f.enrolled {
		return ErrAlreadyEnrolled
	}

	if err := f.checkRelay(ctx); err != nil {
		logger.Warn("Notification relay not reachable", zap.Error(err))
		return ErrUnsupported
	}

	rawKey, err := f.fetchServerKey(ctx)
	if err != nil {
		logger.Error("Fetching VAPID key failed", zap.Error(err))
		return fmt.Errorf("fetch server key: %w", err)
	}

	sub, err := f.register(ctx, rawKey)
	if err != nil {
		logger.Error("Relay registration failed", zap.Error(err))
		return fmt.Errorf("register with relay: %w", err)
	}

	if err := f.subscribe(ctx, sub); err != nil {
		logger.Error("Server subscription failed", zap.Error(err))
		return fmt.Errorf("subscribe on server: %w", err)
	}

	f.enrolled = true
	logger.Info("Push enrollment completed", zap.String("endpoint", sub.Endpoint))
	return nil
}

// checkRelay verifies the relay process is alive.
func (f *Flow) checkRelay(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.relayURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay health returned %s", resp.Status)
	}
	return nil
}

// fetchServerKey fetches and decodes the server's public VAPID key.
func (f *Flow) fetchServerKey(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.serverURL+"/vapid", nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vapid endpoint returned %s", resp.Status)
	}

	var body struct {
		PublicKey *string `json:"publicKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.PublicKey == nil || *body.PublicKey == "" {
		return nil, errors.New("server has no VAPID key configured")
	}

	raw, err := DecodeServerKey(*body.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode server key: %w", err)
	}
	return raw, nil
}

// register asks the relay for a push subscription bound to the server key.
func (f *Flow) register(ctx context.Context, rawKey []byte) (models.PushSubscription, error) {
	var sub models.PushSubscription

	payload, err := json.Marshal(map[string]string{
		"applicationServerKey": EncodeServerKey(rawKey),
	})
	if err != nil {
		return sub, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.relayURL+"/register", bytes.NewReader(payload))
	if err != nil {
		return sub, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return sub, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return sub, fmt.Errorf("relay register returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return sub, err
	}
	if sub.Endpoint == "" {
		return sub, errors.New("relay returned empty endpoint")
	}
	return sub, nil
}

// subscribe posts the subscription to the server.
func (f *Flow) subscribe(ctx context.Context, sub models.PushSubscription) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.serverURL+"/subscribe", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("subscribe returned %s", resp.Status)
	}
	return nil
}
