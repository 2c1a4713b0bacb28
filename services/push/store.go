package push

import (
	"errors"

	"gorm.io/gorm"

	"signalboard/models"
)

// Store persists push subscriptions, deduplicated by endpoint.
type Store struct {
	db *gorm.DB
}

// NewStore creates a subscription store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Add saves a subscription unless its endpoint is already known.
func (s *Store) Add(sub models.PushSubscription) error {
	if sub.Endpoint == "" {
		return errors.New("subscription endpoint is empty")
	}

	var existing models.SubscriptionRecord
	err := s.db.Where("endpoint = ?", sub.Endpoint).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	rec := models.SubscriptionRecord{
		Endpoint: sub.Endpoint,
		P256dh:   sub.Keys.P256dh,
		Auth:     sub.Keys.Auth,
	}
	return s.db.Create(&rec).Error
}

// List returns every stored subscription.
func (s *Store) List() ([]models.PushSubscription, error) {
	var records []models.SubscriptionRecord
	if err := s.db.Find(&records).Error; err != nil {
		return nil, err
	}
	subs := make([]models.PushSubscription, len(records))
	for i, rec := range records {
		subs[i] = rec.Subscription()
	}
	return subs, nil
}

// Count returns the number of stored subscriptions.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.Model(&models.SubscriptionRecord{}).Count(&n).Error
	return n, err
}

// Remove deletes the subscription with the given endpoint.
func (s *Store) Remove(endpoint string) error {
	return s.db.Where("endpoint = ?", endpoint).Delete(&models.SubscriptionRecord{}).Error
}
