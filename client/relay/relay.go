// Package relay implements the local notification relay: a small HTTP
// service that issues push subscriptions pointing at itself, decrypts
// incoming push deliveries and raises desktop notifications.
package relay

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"signalboard/models"
	"signalboard/pkg/logger"
)

const (
	authSecretLen = 16
	tokenLen      = 16
	maxBodyBytes  = 64 * 1024
)

// NotifyFunc raises one desktop notification.
type NotifyFunc func(title, body, icon string) error

// subscription holds the key material for one issued endpoint.
type subscription struct {
	priv      *ecdh.PrivateKey
	auth      []byte
	serverKey []byte
}

// Relay issues subscriptions and handles push deliveries addressed to them.
type Relay struct {
	baseURL string
	notify  NotifyFunc

	mu   sync.Mutex
	subs map[string]*subscription
}

// New creates a relay whose endpoints live under baseURL. A nil notify
// falls back to desktop notifications via beeep.
func New(baseURL string, notify NotifyFunc) *Relay {
	if notify == nil {
		notify = beeep.Notify
	}
	return &Relay{
		baseURL: strings.TrimRight(baseURL, "/"),
		notify:  notify,
		subs:    make(map[string]*subscription),
	}
}

// Register creates a fresh subscription bound to the given application
// server key and returns the push subscription to hand to the server.
func (r *Relay) Register(serverKey []byte) (models.PushSubscription, error) {
	var sub models.PushSubscription

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return sub, err
	}

	auth := make([]byte, authSecretLen)
	if _, err := rand.Read(auth); err != nil {
		return sub, err
	}

	tokenBytes := make([]byte, tokenLen)
	if _, err := rand.Read(tokenBytes); err != nil {
		return sub, err
	}
	token := hex.EncodeToString(tokenBytes)

	r.mu.Lock()
	r.subs[token] = &subscription{priv: priv, auth: auth, serverKey: serverKey}
	r.mu.Unlock()

	sub = models.PushSubscription{
		Endpoint: r.baseURL + "/push/" + token,
		Keys: models.SubscriptionKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}

	logger.Info("Issued push subscription", zap.String("endpoint", sub.Endpoint))
	return sub, nil
}

// Handler returns the relay's HTTP surface.
func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", r.handleHealth)
	mux.HandleFunc("POST /register", r.handleRegister)
	mux.HandleFunc("POST /push/{token}", r.handlePush)
	return mux
}

// handleHealth reports relay liveness.
// GET /healthz
func (r *Relay) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleRegister issues a new subscription.
// POST /register
func (r *Relay) handleRegister(w http.ResponseWriter, req *http.Request) {
	var body struct {
		ApplicationServerKey string `json:"applicationServerKey"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.ApplicationServerKey == "" {
		http.Error(w, "applicationServerKey is required", http.StatusBadRequest)
		return
	}

	serverKey, err := base64.RawURLEncoding.DecodeString(body.ApplicationServerKey)
	if err != nil {
		http.Error(w, "invalid applicationServerKey", http.StatusBadRequest)
		return
	}

	sub, err := r.Register(serverKey)
	if err != nil {
		logger.Error("Subscription issue failed", zap.Error(err))
		http.Error(w, "could not create subscription", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sub)
}

// handlePush decrypts one delivery and raises a notification. Each event is
// handled on its own; no state survives between deliveries beyond the
// subscription keys.
// POST /push/{token}
func (r *Relay) handlePush(w http.ResponseWriter, req *http.Request) {
	token := req.PathValue("token")

	r.mu.Lock()
	sub := r.subs[token]
	r.mu.Unlock()

	if sub == nil {
		http.Error(w, "unknown subscription", http.StatusNotFound)
		return
	}

	body, err := readBody(w, req)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	var payload models.NotificationPayload
	if len(body) > 0 {
		plain, err := decryptPush(sub.priv, sub.auth, body)
		if err != nil {
			logger.Warn("Push decryption failed", zap.Error(err))
			http.Error(w, "decryption failed", http.StatusBadRequest)
			return
		}
		// Unparseable payloads fall back to the defaults, same as an
		// empty delivery.
		if err := json.Unmarshal(plain, &payload); err != nil {
			logger.Warn("Push payload is not JSON, using defaults", zap.Error(err))
			payload = models.NotificationPayload{}
		}
	}

	title := payload.NotificationTitle()
	text := payload.NotificationBody()
	if err := r.notify(title, text, payload.NotificationIcon()); err != nil {
		logger.Error("Desktop notification failed", zap.Error(err))
	}

	logger.Info("Push delivered",
		zap.String("title", title),
		zap.String("body", text),
		zap.String("symbol", payload.Symbol),
		zap.String("action", payload.Action))

	w.WriteHeader(http.StatusCreated)
}

func readBody(w http.ResponseWriter, req *http.Request) ([]byte, error) {
	limited := http.MaxBytesReader(w, req.Body, maxBodyBytes)
	defer limited.Close()
	return io.ReadAll(limited)
}
