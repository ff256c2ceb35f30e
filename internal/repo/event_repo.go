// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Event model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an event is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-remind-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateEvent inserts a new Event row owned by userID. The event ID is a
// randomly generated UUID (string), and CreatedAt is set to UTC.
func CreateEvent(ctx context.Context, db *gorm.DB, userID, title, eventDate, eventType string, daysToNotify int) (*domain.Event, error) {
	e := &domain.Event{
		ID:           uuid.NewString(),
		Title:        title,
		EventDate:    eventDate,
		DaysToNotify: daysToNotify,
		EventType:    eventType,
		UserID:       userID,
		Notified:     domain.NotifiedPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// ListPendingEvents returns every event whose notified marker is still in the
// pending (empty) state, regardless of owner. The reminder scheduler scans
// this set once per tick.
func ListPendingEvents(ctx context.Context, db *gorm.DB) ([]domain.Event, error) {
	var out []domain.Event
	err := db.WithContext(ctx).
		Where("notified = ?", domain.NotifiedPending).
		Order("event_date asc").
		Find(&out).Error
	return out, err
}

// GetEventNotified re-reads only the notified column of a single event. The
// scheduler uses it as a double-check after acquiring the dispatch guard.
// Returns ErrNotFound when the event does not exist.
func GetEventNotified(ctx context.Context, db *gorm.DB, id string) (string, error) {
	var row struct {
		Notified string
	}
	err := db.WithContext(ctx).
		Model(&domain.Event{}).
		Select("notified").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return "", err
	}
	return row.Notified, nil
}

// MarkEventNotified sets the notified marker of an event. It reports
// ErrNotFound when no row was updated, which the scheduler treats as a
// failed dispatch rather than retrying.
func MarkEventNotified(ctx context.Context, db *gorm.DB, id, value string) error {
	res := db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("id = ?", id).
		Update("notified", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUserEvents returns all of a user's events ordered by date.
func ListUserEvents(ctx context.Context, db *gorm.DB, userID string) ([]domain.Event, error) {
	var out []domain.Event
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("event_date asc").
		Find(&out).Error
	return out, err
}

// ListUserEventsBetween returns a user's events with start <= event_date < end.
// Dates are compared as "2006-01-02" strings, matching the column encoding.
func ListUserEventsBetween(ctx context.Context, db *gorm.DB, userID, start, end string) ([]domain.Event, error) {
	var out []domain.Event
	err := db.WithContext(ctx).
		Where("user_id = ? AND event_date >= ? AND event_date < ?", userID, start, end).
		Order("event_date asc").
		Find(&out).Error
	return out, err
}

// ListUserEventsFrom returns a user's events with event_date >= start.
func ListUserEventsFrom(ctx context.Context, db *gorm.DB, userID, start string) ([]domain.Event, error) {
	var out []domain.Event
	err := db.WithContext(ctx).
		Where("user_id = ? AND event_date >= ?", userID, start).
		Order("event_date asc").
		Find(&out).Error
	return out, err
}
