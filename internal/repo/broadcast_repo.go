// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Broadcast
// aggregate and its per-contact delivery rows.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-remind-backend/internal/domain"
)

// CreateBroadcast inserts a pending broadcast row.
func CreateBroadcast(ctx context.Context, db *gorm.DB, content string) (*domain.Broadcast, error) {
	b := &domain.Broadcast{
		ID:        uuid.NewString(),
		Content:   content,
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// AddBroadcastContact attaches a recipient row to a broadcast.
func AddBroadcastContact(ctx context.Context, db *gorm.DB, broadcastID, phone string) (*domain.BroadcastContact, error) {
	c := &domain.BroadcastContact{
		ID:          uuid.NewString(),
		BroadcastID: broadcastID,
		Phone:       phone,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListPendingBroadcasts returns broadcasts whose aggregate status has not yet
// rolled up to "sent".
func ListPendingBroadcasts(ctx context.Context, db *gorm.DB) ([]domain.Broadcast, error) {
	var out []domain.Broadcast
	err := db.WithContext(ctx).
		Where("status = ?", domain.StatusPending).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListPendingBroadcastContacts returns the contact rows of one broadcast that
// are still awaiting a first (or retried) send.
func ListPendingBroadcastContacts(ctx context.Context, db *gorm.DB, broadcastID string) ([]domain.BroadcastContact, error) {
	var out []domain.BroadcastContact
	err := db.WithContext(ctx).
		Where("message_id = ? AND status = ?", broadcastID, domain.StatusPending).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// SetBroadcastContactStatus moves one contact row to the given delivery state.
func SetBroadcastContactStatus(ctx context.Context, db *gorm.DB, contactID, status string) error {
	return db.WithContext(ctx).
		Model(&domain.BroadcastContact{}).
		Where("id = ?", contactID).
		Update("status", status).Error
}

// IncrementBroadcastContactAttempts bumps the attempt counter of a contact row.
func IncrementBroadcastContactAttempts(ctx context.Context, db *gorm.DB, contactID string) error {
	return db.WithContext(ctx).
		Model(&domain.BroadcastContact{}).
		Where("id = ?", contactID).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

// CountBroadcastContactsNotSent reports how many contact rows of a broadcast
// are in any state other than "sent". Zero means the aggregate may roll up.
func CountBroadcastContactsNotSent(ctx context.Context, db *gorm.DB, broadcastID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.BroadcastContact{}).
		Where("message_id = ? AND status <> ?", broadcastID, domain.StatusSent).
		Count(&n).Error
	return n, err
}

// SetBroadcastStatus updates the aggregate status of a broadcast.
func SetBroadcastStatus(ctx context.Context, db *gorm.DB, broadcastID, status string) error {
	return db.WithContext(ctx).
		Model(&domain.Broadcast{}).
		Where("id = ?", broadcastID).
		Update("status", status).Error
}
