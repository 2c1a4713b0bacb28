// Package stream fans generated signals out to event-stream subscribers.
package stream

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"signalboard/models"
	"signalboard/pkg/logger"
)

const (
	// HeartbeatInterval is how often an idle stream connection receives a
	// liveness message.
	HeartbeatInterval = 25 * time.Second

	subscriberBuffer = 16
)

// Subscriber is one attached stream client. C delivers encoded stream
// messages; it is closed when the broadcaster shuts down.
type Subscriber struct {
	C chan []byte
}

// Broadcaster owns the subscriber set. A single goroutine serializes all
// registration and fan-out, so no locks guard the set.
type Broadcaster struct {
	register    chan *Subscriber
	unregister  chan *Subscriber
	broadcast   chan []byte
	shutdown    chan struct{}
	subscribers map[*Subscriber]bool
}

// NewBroadcaster creates a broadcaster and starts its hub goroutine.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan []byte, 64),
		shutdown:    make(chan struct{}),
		subscribers: make(map[*Subscriber]bool),
	}
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	for {
		select {
		case sub := <-b.register:
			b.subscribers[sub] = true
			logger.Debug("Stream subscriber attached", zap.Int("subscribers", len(b.subscribers)))

		case sub := <-b.unregister:
			if b.subscribers[sub] {
				delete(b.subscribers, sub)
				close(sub.C)
			}

		case data := <-b.broadcast:
			for sub := range b.subscribers {
				select {
				case sub.C <- data:
				default:
					// Subscriber cannot keep up; drop it rather than
					// block every other stream.
					delete(b.subscribers, sub)
					close(sub.C)
					logger.Warn("Dropped slow stream subscriber")
				}
			}

		case <-b.shutdown:
			for sub := range b.subscribers {
				delete(b.subscribers, sub)
				close(sub.C)
			}
			return
		}
	}
}

// Subscribe attaches a new stream client.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{C: make(chan []byte, subscriberBuffer)}
	select {
	case b.register <- sub:
	case <-b.shutdown:
		close(sub.C)
	}
	return sub
}

// Unsubscribe detaches a stream client.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	select {
	case b.unregister <- sub:
	case <-b.shutdown:
	}
}

// Publish encodes a stream message and fans it out to every subscriber.
func (b *Broadcaster) Publish(msg models.StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case b.broadcast <- data:
	case <-b.shutdown:
	}
	return nil
}

// PublishSignals broadcasts a batch of signals as one "signals" message.
func (b *Broadcaster) PublishSignals(sigs []models.Signal) error {
	data, err := json.Marshal(sigs)
	if err != nil {
		return err
	}
	return b.Publish(models.StreamMessage{
		Type: models.MessageTypeSignals,
		Data: data,
	})
}

// PublishSignal broadcasts a single signal as a "signal" message.
func (b *Broadcaster) PublishSignal(sig models.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return b.Publish(models.StreamMessage{
		Type: models.MessageTypeSignal,
		Data: data,
	})
}

// Heartbeat returns an encoded liveness message.
func Heartbeat() []byte {
	data, _ := json.Marshal(models.StreamMessage{
		Type: models.MessageTypeHeartbeat,
		TS:   time.Now().UTC().Format(time.RFC3339),
	})
	return data
}

// Close shuts the hub down and closes every subscriber channel.
func (b *Broadcaster) Close() {
	close(b.shutdown)
}
