package controllers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"signalboard/services/stream"
)

// StreamController serves the /events server-sent event stream.
type StreamController struct {
	broadcaster *stream.Broadcaster
}

// NewStreamController creates a stream controller.
func NewStreamController(broadcaster *stream.Broadcaster) *StreamController {
	return &StreamController{broadcaster: broadcaster}
}

// Events streams signal messages to one client until it disconnects.
// GET /events
func (ctrl *StreamController) Events(c *gin.Context) {
	sub := ctrl.broadcaster.Subscribe()
	defer ctrl.broadcaster.Unsubscribe(sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Initial heartbeat so the client sees the connection as established
	// before the first cycle completes.
	c.SSEvent("message", string(stream.Heartbeat()))
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	heartbeat := time.NewTicker(stream.HeartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case data, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("message", string(data))
			return true
		case <-heartbeat.C:
			c.SSEvent("message", string(stream.Heartbeat()))
			return true
		}
	})
}
