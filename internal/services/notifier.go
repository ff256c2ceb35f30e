// Package services – NotifierService
//
// NotifierService is the single path for one-off outbound sends that must be
// audited: event reminders, test notifications, and RSVP confirmations. It
// normalizes the destination address, calls the messaging gateway, and appends
// one Notification row per attempt regardless of outcome.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-remind-backend/internal/domain"
	"github.com/tbourn/go-remind-backend/internal/messaging"
	"github.com/tbourn/go-remind-backend/internal/repo"
)

// NotifierService sends audited one-off WhatsApp messages.
type NotifierService struct {
	DB      *gorm.DB
	Gateway messaging.Gateway
}

// NewNotifierService constructs a NotifierService.
func NewNotifierService(db *gorm.DB, gw messaging.Gateway) *NotifierService {
	return &NotifierService{DB: db, Gateway: gw}
}

// Send delivers body to the user's phone number and records the attempt.
//
// The audit row is written for both outcomes: success carries the gateway SID
// and delivery status "sent", failure carries status "failed" and no SID. An
// audit-insert error is logged but never masks the send result; the send
// already happened.
func (s *NotifierService) Send(ctx context.Context, userID string, eventID *string, notifType, phone, body string) error {
	tr := otel.Tracer("services/NotifierService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("notification.type", notifType),
		),
	)
	defer span.End()

	bare := messaging.NormalizePhone(phone)

	sid, err := s.Gateway.Send(ctx, bare, body)

	n := domain.Notification{
		UserID:      userID,
		EventID:     eventID,
		Type:        notifType,
		Content:     body,
		PhoneNumber: bare,
		SentAt:      time.Now().UTC(),
	}
	if err != nil {
		n.DeliveryStatus = domain.DeliveryFailed
		log.Error().Err(err).
			Str("user_id", userID).
			Str("type", notifType).
			Msg("whatsapp send failed")
	} else {
		n.DeliveryStatus = domain.DeliverySent
		n.MessageSID = &sid
		log.Info().
			Str("user_id", userID).
			Str("type", notifType).
			Str("sid", sid).
			Msg("whatsapp message sent")
	}

	if _, logErr := repo.CreateNotification(ctx, s.DB, n); logErr != nil {
		log.Error().Err(logErr).
			Str("user_id", userID).
			Str("type", notifType).
			Msg("failed to append notification audit row")
	}

	if err != nil {
		return ErrSendFailed
	}
	return nil
}
