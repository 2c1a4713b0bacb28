package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signalboard/models"
	"signalboard/pkg/logger"
	"signalboard/services/push"
)

// PushController handles push-subscription endpoints.
type PushController struct {
	store *push.Store
	keys  *push.VAPIDKeys
}

// NewPushController creates a push controller. keys may be nil when push is
// disabled.
func NewPushController(store *push.Store, keys *push.VAPIDKeys) *PushController {
	return &PushController{store: store, keys: keys}
}

// GetVAPIDKey returns the server's public push key.
// GET /vapid
func (ctrl *PushController) GetVAPIDKey(c *gin.Context) {
	if ctrl.keys == nil {
		c.JSON(http.StatusOK, gin.H{"publicKey": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": ctrl.keys.PublicKey})
}

// Subscribe stores a push subscription submitted by a client.
// POST /subscribe
func (ctrl *PushController) Subscribe(c *gin.Context) {
	var sub models.PushSubscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription"})
		return
	}
	if sub.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subscription endpoint is required"})
		return
	}

	if err := ctrl.store.Add(sub); err != nil {
		logger.Error("Failed to store subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
