// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Profile model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-remind-backend/internal/domain"
)

// CreateProfile inserts a profile row. The id is supplied by the caller
// because it doubles as the user id across the schema.
func CreateProfile(ctx context.Context, db *gorm.DB, id, fullName, phone string) (*domain.Profile, error) {
	p := &domain.Profile{
		ID:          id,
		FullName:    fullName,
		PhoneNumber: phone,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetProfile fetches a profile by user id, or ErrNotFound if missing.
func GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfileByPhone resolves the profile registered under a bare phone number
// (no channel prefix). Inbound webhook traffic is correlated to users this way.
func GetProfileByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("phone_number = ?", phone).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
