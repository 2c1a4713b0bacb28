// Package stream consumes the server's text/event-stream endpoint and turns
// raw events into typed stream messages.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"signalboard/models"
	"signalboard/pkg/logger"
)

// Status reports the connection lifecycle to the UI.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
)

// String returns the display label for the status line.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected, retrying"
	default:
		return "unknown"
	}
}

// maximum accepted size for a single event payload.
const maxEventSize = 1 << 20

// Config configures a stream client.
type Config struct {
	// URL is the full events endpoint, e.g. http://localhost:8000/events.
	URL string

	// Handler receives every well-formed message, including heartbeats.
	Handler func(models.StreamMessage)

	// OnStatus, if set, is called on every connection state change.
	OnStatus func(Status)

	// HTTPClient defaults to a client with no overall timeout; the stream
	// response stays open for the lifetime of the connection.
	HTTPClient *http.Client

	// Backoff overrides the reconnect policy. The default ramps from one
	// second up to a thirty second cap with jitter.
	Backoff *backoff.Backoff
}

// Client is a reconnecting consumer of one event stream.
type Client struct {
	url      string
	handler  func(models.StreamMessage)
	onStatus func(Status)
	http     *http.Client
	retry    *backoff.Backoff
}

// New creates a stream client. Handler must be non-nil.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	retry := cfg.Backoff
	if retry == nil {
		retry = &backoff.Backoff{
			Min:    time.Second,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		}
	}
	onStatus := cfg.OnStatus
	if onStatus == nil {
		onStatus = func(Status) {}
	}
	return &Client{
		url:      cfg.URL,
		handler:  cfg.Handler,
		onStatus: onStatus,
		http:     httpClient,
		retry:    retry,
	}
}

// Run connects and consumes events until the context is cancelled. Every
// transport failure triggers a reconnect after a capped exponential delay;
// the delay resets once a connection is established.
func (c *Client) Run(ctx context.Context) error {
	for {
		c.onStatus(StatusConnecting)

		err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.onStatus(StatusDisconnected)
		delay := c.retry.Duration()
		logger.Warn("Stream disconnected, reconnecting",
			zap.String("url", c.url),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// consume opens one connection and reads events until it breaks.
func (c *Client) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream endpoint returned %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/event-stream") {
		return fmt.Errorf("unexpected content type %q", ct)
	}

	c.retry.Reset()
	c.onStatus(StatusConnected)
	logger.Info("Stream connected", zap.String("url", c.url))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		// A blank line terminates the pending event.
		if line == "" {
			if len(data) > 0 {
				c.dispatch(strings.Join(data, "\n"))
				data = data[:0]
			}
			continue
		}

		// Comment lines keep the connection warm and carry no data.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		if field == "data" {
			data = append(data, value)
		}
		// event, id and retry fields are accepted but unused.
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("stream closed by server")
}

// dispatch decodes one event payload. Malformed payloads are logged and
// dropped; they never tear down the connection.
func (c *Client) dispatch(raw string) {
	var msg models.StreamMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		logger.Warn("Dropping malformed stream event", zap.Error(err))
		return
	}
	c.handler(msg)
}

// splitField splits an SSE line into field name and value, trimming the
// single optional space after the colon.
func splitField(line string) (string, string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field := line[:idx]
	value := line[idx+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}
