// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the RSVP Invite
// aggregate, its per-contact delivery rows, and reply correlation.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-remind-backend/internal/domain"
)

// CreateInvite inserts a pending RSVP invitation.
func CreateInvite(ctx context.Context, db *gorm.DB, title, message string) (*domain.Invite, error) {
	inv := &domain.Invite{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(inv).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

// AddInviteContact attaches an invitee row to an invitation. Seq is assigned
// from the current table maximum so later rows always sort after earlier ones;
// reply correlation depends on that ordering.
func AddInviteContact(ctx context.Context, db *gorm.DB, inviteID, phone string) (*domain.InviteContact, error) {
	c := &domain.InviteContact{
		ID:           uuid.NewString(),
		InviteID:     inviteID,
		Phone:        phone,
		InviteStatus: domain.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&domain.InviteContact{}).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		c.Seq = maxSeq + 1
		return tx.Create(c).Error
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListPendingInvites returns invitations whose aggregate status has not yet
// rolled up to "sent".
func ListPendingInvites(ctx context.Context, db *gorm.DB) ([]domain.Invite, error) {
	var out []domain.Invite
	err := db.WithContext(ctx).
		Where("status = ?", domain.StatusPending).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListPendingInviteContacts returns the invitee rows of one invitation that
// are still awaiting a first (or retried) send.
func ListPendingInviteContacts(ctx context.Context, db *gorm.DB, inviteID string) ([]domain.InviteContact, error) {
	var out []domain.InviteContact
	err := db.WithContext(ctx).
		Where("rsvp_id = ? AND invite_status = ?", inviteID, domain.StatusPending).
		Order("seq asc").
		Find(&out).Error
	return out, err
}

// SetInviteContactStatus moves one invitee row to the given delivery state.
func SetInviteContactStatus(ctx context.Context, db *gorm.DB, contactID, status string) error {
	return db.WithContext(ctx).
		Model(&domain.InviteContact{}).
		Where("id = ?", contactID).
		Update("invite_status", status).Error
}

// IncrementInviteContactAttempts bumps the attempt counter of an invitee row.
func IncrementInviteContactAttempts(ctx context.Context, db *gorm.DB, contactID string) error {
	return db.WithContext(ctx).
		Model(&domain.InviteContact{}).
		Where("id = ?", contactID).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

// CountInviteContactsNotSent reports how many invitee rows of an invitation
// are in any state other than "sent". Zero means the aggregate may roll up.
func CountInviteContactsNotSent(ctx context.Context, db *gorm.DB, inviteID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.InviteContact{}).
		Where("rsvp_id = ? AND invite_status <> ?", inviteID, domain.StatusSent).
		Count(&n).Error
	return n, err
}

// SetInviteStatus updates the aggregate status of an invitation.
func SetInviteStatus(ctx context.Context, db *gorm.DB, inviteID, status string) error {
	return db.WithContext(ctx).
		Model(&domain.Invite{}).
		Where("id = ?", inviteID).
		Update("status", status).Error
}

// LatestSentInviteContactByPhone resolves an inbound reply to the most recent
// delivered invitation for that phone number. Newer rows win ties (seq desc),
// so a reply always lands on the latest outstanding invite.
// Returns ErrNotFound when the phone has no delivered invitation.
func LatestSentInviteContactByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.InviteContact, error) {
	var c domain.InviteContact
	err := db.WithContext(ctx).
		Where("contact_phone = ? AND invite_status = ?", phone, domain.StatusSent).
		Order("seq desc").
		Limit(1).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetInviteContactResponse records the invitee's yes/no answer.
func SetInviteContactResponse(ctx context.Context, db *gorm.DB, contactID, response string) error {
	res := db.WithContext(ctx).
		Model(&domain.InviteContact{}).
		Where("id = ?", contactID).
		Update("response", response)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
