// Package services – RSVPService
//
// RSVPService correlates inbound "rsvp: yes/no" replies with the most recent
// delivered invitation for the replying phone number and records the answer.
// Every outcome maps to a polite textual reply; malformed input is a
// clarification prompt, never an error.
package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"

	"github.com/tbourn/go-remind-backend/internal/domain"
	"github.com/tbourn/go-remind-backend/internal/messaging"
	"github.com/tbourn/go-remind-backend/internal/repo"
)

// Fixed user-facing reply texts.
const (
	rsvpClarification = "Sorry, I didn't understand your RSVP response. Please reply with 'rsvp: yes' or 'rsvp: no'."
	rsvpConfirmation  = "Thanks for your response! Your RSVP has been recorded."
	rsvpNoInvite      = "Sorry, we could not find your RSVP invitation. Please ensure you are replying from the same WhatsApp number you received the invite on."
	rsvpStoreError    = "Sorry, there was an error recording your RSVP. Please try again later."
)

// rsvpRE extracts the yes/no answer; matching is case-insensitive and
// tolerates whitespace after the colon.
var rsvpRE = regexp.MustCompile(`(?i)rsvp:\s*(yes|no)`)

// IsRSVPReply reports whether an inbound message should be routed to the RSVP
// correlator rather than the assistant.
func IsRSVPReply(body string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(body)), "rsvp:")
}

// RSVPService records invitees' yes/no answers.
type RSVPService struct {
	DB      *gorm.DB
	Gateway messaging.Gateway
}

// NewRSVPService constructs an RSVPService.
func NewRSVPService(db *gorm.DB, gw messaging.Gateway) *RSVPService {
	return &RSVPService{DB: db, Gateway: gw}
}

// HandleReply processes one inbound reply and returns the text to echo back
// through the webhook envelope.
//
// The confirmation push back to the invitee is best effort: a gateway failure
// is logged and the webhook reply still confirms, since the answer itself was
// recorded.
func (s *RSVPService) HandleReply(ctx context.Context, from, body string) string {
	tr := otel.Tracer("services/RSVPService")
	ctx, span := tr.Start(ctx, "HandleReply")
	defer span.End()

	phone := messaging.NormalizePhone(from)

	m := rsvpRE.FindStringSubmatch(body)
	if m == nil {
		return rsvpClarification
	}
	answer := strings.ToLower(m[1])

	contact, err := repo.LatestSentInviteContactByPhone(ctx, s.DB, phone)
	if err != nil {
		if err == repo.ErrNotFound {
			log.Info().Str("phone", phone).Msg("rsvp reply with no delivered invitation")
			return rsvpNoInvite
		}
		log.Error().Err(err).Str("phone", phone).Msg("rsvp correlation query failed")
		return rsvpStoreError
	}

	if err := repo.SetInviteContactResponse(ctx, s.DB, contact.ID, answer); err != nil {
		log.Error().Err(err).Str("contact_id", contact.ID).Msg("failed to record rsvp response")
		return rsvpStoreError
	}
	log.Info().
		Str("contact_id", contact.ID).
		Str("invite_id", contact.InviteID).
		Str("response", answer).
		Msg("rsvp response recorded")

	// Best-effort confirmation push; the TwiML reply already confirms.
	if _, err := s.Gateway.Send(ctx, phone, rsvpConfirmation); err != nil {
		log.Warn().Err(err).Str("phone", phone).Msg("rsvp confirmation send failed")
	} else if p, perr := repo.GetProfileByPhone(ctx, s.DB, phone); perr == nil {
		// Invitees are not always registered users; audit only when they are.
		if _, aerr := repo.CreateNotification(ctx, s.DB, domain.Notification{
			UserID:         p.ID,
			Type:           domain.NotificationRSVPConfirm,
			Content:        rsvpConfirmation,
			PhoneNumber:    phone,
			DeliveryStatus: domain.DeliverySent,
		}); aerr != nil {
			log.Warn().Err(aerr).Str("phone", phone).Msg("rsvp confirmation audit insert failed")
		}
	}
	return rsvpConfirmation
}
