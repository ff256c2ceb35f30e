// Package services implements the business logic of the reminder backend:
// the daily reminder scheduler, the two fan-out dispatchers, RSVP reply
// correlation, and the AI assistant. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

var (
	// ErrProfileNotFound indicates that no profile row exists for a user id
	// or phone number.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNoPhoneNumber is returned when a profile exists but has no phone
	// number to deliver to.
	ErrNoPhoneNumber = errors.New("profile has no phone number")

	// ErrAlreadyNotified is returned when the post-guard double-check finds
	// the event was handled by a concurrent runner.
	ErrAlreadyNotified = errors.New("event already notified")

	// ErrInviteNotFound indicates an inbound RSVP reply that matches no
	// delivered invitation for the replying phone number.
	ErrInviteNotFound = errors.New("no matching invitation")

	// ErrSendFailed wraps a messaging-gateway failure after the attempt has
	// been recorded in the audit log.
	ErrSendFailed = errors.New("message send failed")
)
