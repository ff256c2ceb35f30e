// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the append-only
// Notification audit log.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-remind-backend/internal/domain"
)

// CreateNotification appends one audit row describing an outbound attempt.
// Rows are immutable after this insert.
func CreateNotification(ctx context.Context, db *gorm.DB, n domain.Notification) (*domain.Notification, error) {
	n.ID = uuid.NewString()
	now := time.Now().UTC()
	if n.SentAt.IsZero() {
		n.SentAt = now
	}
	n.CreatedAt = now
	if err := db.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// CountNotifications returns the total audit rows for a user, for pagination.
func CountNotifications(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListNotificationsPage returns a page of a user's audit rows, newest first.
func ListNotificationsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sent_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountNotificationsForEvent returns the audit rows recorded against a single
// event, any outcome. Used by tests asserting dispatch-once behavior.
func CountNotificationsForEvent(ctx context.Context, db *gorm.DB, eventID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("event_id = ?", eventID).
		Count(&total).Error
	return total, err
}
