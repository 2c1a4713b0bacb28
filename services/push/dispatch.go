package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"signalboard/models"
	"signalboard/pkg/logger"
)

const pushTTL = 60 // seconds a push service may hold an undelivered message

// Dispatcher sends web-push notifications to every stored subscription.
type Dispatcher struct {
	store *Store
	keys  *VAPIDKeys
}

// NewDispatcher creates a dispatcher. keys may be nil, which disables push
// entirely (every send reports zero deliveries).
func NewDispatcher(store *Store, keys *VAPIDKeys) *Dispatcher {
	return &Dispatcher{store: store, keys: keys}
}

// SignalPayload builds the notification payload for a generated signal.
func SignalPayload(sig models.Signal) map[string]interface{} {
	payload := map[string]interface{}{
		"title":  fmt.Sprintf("Signal %s %s", sig.Action, sig.Symbol),
		"symbol": sig.Symbol,
		"action": sig.Action,
	}
	if sig.EntryPrice != nil {
		payload["entry_price"] = sig.EntryPrice
		payload["body"] = fmt.Sprintf("Price %s • Qty %d • %d%%",
			sig.EntryPrice.StringFixed(4), sig.Quantity, sig.Confidence)
	}
	payload["quantity"] = sig.Quantity
	if sig.PositionPercent != nil {
		payload["position_percent"] = sig.PositionPercent
	}
	if sig.TakeProfitPrice != nil {
		payload["take_profit_price"] = sig.TakeProfitPrice
	}
	if sig.StopLossPrice != nil {
		payload["stop_loss_price"] = sig.StopLossPrice
	}
	return payload
}

// SendToAll pushes a payload to every subscription and returns how many
// deliveries were accepted. Subscriptions that a push service rejects are
// removed from the store.
func (d *Dispatcher) SendToAll(ctx context.Context, payload interface{}) int {
	if d.keys == nil {
		return 0
	}

	subs, err := d.store.List()
	if err != nil {
		logger.Error("Failed to list push subscriptions", zap.Error(err))
		return 0
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to encode push payload", zap.Error(err))
		return 0
	}

	sent := 0
	for _, sub := range subs {
		if err := d.send(ctx, sub, data); err != nil {
			logger.Warn("Push delivery failed, removing subscription",
				zap.String("endpoint", sub.Endpoint), zap.Error(err))
			if removeErr := d.store.Remove(sub.Endpoint); removeErr != nil {
				logger.Error("Failed to remove subscription", zap.Error(removeErr))
			}
			continue
		}
		sent++
	}
	return sent
}

func (d *Dispatcher) send(ctx context.Context, sub models.PushSubscription, data []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      d.keys.Subject,
		VAPIDPublicKey:  d.keys.PublicKey,
		VAPIDPrivateKey: d.keys.PrivateKey,
		TTL:             pushTTL,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
