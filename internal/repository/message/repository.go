package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/zapcampaign/zapcampaign/internal/cache"
	"github.com/zapcampaign/zapcampaign/internal/domain"
)

type Repository interface {
	CreateMessageRecord(ctx context.Context, msg *domain.Message) error
	RecordRecipientOutcome(ctx context.Context, messageID, address string, outcome domain.OutcomeStatus, deliveryID string) error
	UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) error
	ListMessages(ctx context.Context, ownerID string) ([]domain.Message, error)
	CacheDelivery(ctx context.Context, deliveryID string, sentAt time.Time) error
}

type repo struct {
	db    *gorm.DB
	cache cache.Cache
}

func NewMessageRepository(db *gorm.DB, cache cache.Cache) Repository {
	return &repo{db: db, cache: cache}
}

// CreateMessageRecord persists the message together with a pending
// outcome row per recipient in one transaction.
func (r *repo) CreateMessageRecord(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(msg).Error
	})
}

// RecordRecipientOutcome marks one recipient row of a message with its
// final send outcome.
func (r *repo) RecordRecipientOutcome(ctx context.Context, messageID, address string, outcome domain.OutcomeStatus, deliveryID string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"outcome":    int(outcome),
		"updated_at": &now,
	}
	if deliveryID != "" {
		updates["delivery_id"] = deliveryID
	}
	return r.db.WithContext(ctx).
		Model(&domain.RecipientOutcome{}).
		Where("message_id = ? AND address = ?", messageID, address).
		Updates(updates).Error
}

// UpdateMessageStatus moves a message to the given lifecycle status.
func (r *repo) UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]any{"status": int(status), "updated_at": &now}).Error
}

// ListMessages returns an owner's messages with their per-recipient
// outcomes, newest first.
func (r *repo) ListMessages(ctx context.Context, ownerID string) ([]domain.Message, error) {
	var messages []domain.Message
	q := r.db.WithContext(ctx).Preload("Recipients").Order("created_at DESC")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	err := q.Find(&messages).Error
	return messages, err
}

// CacheDelivery writes an acknowledged delivery id to cache
func (r *repo) CacheDelivery(ctx context.Context, deliveryID string, sentAt time.Time) error {
	key := fmt.Sprintf("delivery:%s", deliveryID)

	value := map[string]any{
		"deliveryId": deliveryID,
		"sentAt":     sentAt,
	}

	jsonVal, _ := json.Marshal(value)
	// Expire after 24 hours to keep memory clean
	return r.cache.Set(ctx, key, string(jsonVal), 24*time.Hour)
}
