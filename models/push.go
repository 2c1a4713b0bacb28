package models

import (
	"time"

	"gorm.io/gorm"
)

// SubscriptionKeys are the client keys of a push subscription: the P-256
// public key (p256dh) and the auth secret, both url-safe base64.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is the opaque credential issued by a notification relay
// and mirrored to the server for dispatch bookkeeping.
type PushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscriptionRecord is the persisted form of a push subscription,
// deduplicated by endpoint.
type SubscriptionRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Endpoint  string    `gorm:"uniqueIndex;not null" json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscription converts a record back to its wire form.
func (r SubscriptionRecord) Subscription() PushSubscription {
	return PushSubscription{
		Endpoint: r.Endpoint,
		Keys:     SubscriptionKeys{P256dh: r.P256dh, Auth: r.Auth},
	}
}

// Default notification content applied when the payload omits fields.
const (
	DefaultNotificationTitle = "Trading Signal"
	DefaultNotificationBody  = "New signal"
	DefaultNotificationIcon  = "assets/icon.png"
	DefaultNotificationBadge = "assets/badge.png"
)

// NotificationPayload is the known shape of a push payload. Unknown fields
// are preserved by the relay as raw data alongside this view.
type NotificationPayload struct {
	Title  string `json:"title,omitempty"`
	Body   string `json:"body,omitempty"`
	Icon   string `json:"icon,omitempty"`
	Badge  string `json:"badge,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Action string `json:"action,omitempty"`
	URL    string `json:"url,omitempty"`
}

// NotificationTitle returns the payload title or the generic default.
func (p NotificationPayload) NotificationTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return DefaultNotificationTitle
}

// NotificationBody returns the payload body, "<action> <symbol>" when both
// are present, else the generic default.
func (p NotificationPayload) NotificationBody() string {
	if p.Body != "" {
		return p.Body
	}
	if p.Action != "" && p.Symbol != "" {
		return p.Action + " " + p.Symbol
	}
	return DefaultNotificationBody
}

// NotificationIcon returns the payload icon path or the default asset.
func (p NotificationPayload) NotificationIcon() string {
	if p.Icon != "" {
		return p.Icon
	}
	return DefaultNotificationIcon
}

// MigrateSubscriptionModels runs database migrations for push subscriptions.
func MigrateSubscriptionModels(db *gorm.DB) error {
	return db.AutoMigrate(&SubscriptionRecord{})
}
