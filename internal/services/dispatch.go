// Package services – DispatchService
//
// DispatchService is the generic fan-out engine. Both broadcast messages and
// RSVP invitations are aggregates that own per-contact delivery rows; the
// engine advances each pending contact through the
// pending → processing → sent state machine and rolls the aggregate up to
// "sent" once a re-read shows every contact delivered.
//
// Failure handling is per contact: a failed send reverts that row to pending
// and the next tick retries it. One stubborn contact never blocks the others
// or any other aggregate; the aggregate simply stays pending until a later
// tick observes full delivery.
package services

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-remind-backend/internal/domain"
	"github.com/tbourn/go-remind-backend/internal/messaging"
	"github.com/tbourn/go-remind-backend/internal/repo"
)

// Dispatch kinds, used in logs and metric labels.
const (
	KindBroadcast = "broadcast"
	KindRSVP      = "rsvp"
)

// FanoutAggregate is the engine's view of one pending aggregate: its id and
// the message body every contact receives.
type FanoutAggregate struct {
	ID   string
	Body string
}

// FanoutContact is the engine's view of one undelivered contact row.
type FanoutContact struct {
	ID    string
	Phone string
}

// FanoutSource adapts one aggregate/contact collection pair to the engine.
// Implementations hold the *gorm.DB and translate to the concrete tables.
type FanoutSource interface {
	// Kind names the collection pair for logs and metrics.
	Kind() string
	// PendingAggregates lists aggregates whose status has not rolled up yet.
	PendingAggregates(ctx context.Context) ([]FanoutAggregate, error)
	// PendingContacts lists an aggregate's contacts awaiting (re)delivery.
	PendingContacts(ctx context.Context, aggregateID string) ([]FanoutContact, error)
	// SetContactStatus moves a contact row to the given delivery state.
	SetContactStatus(ctx context.Context, contactID, status string) error
	// IncrementAttempts bumps the contact's attempt counter.
	IncrementAttempts(ctx context.Context, contactID string) error
	// CountNotSent counts the aggregate's contacts in any non-sent state.
	CountNotSent(ctx context.Context, aggregateID string) (int64, error)
	// SetAggregateStatus updates the aggregate's rolled-up status.
	SetAggregateStatus(ctx context.Context, aggregateID, status string) error
}

// DispatchService drives one FanoutSource against the messaging gateway.
type DispatchService struct {
	Source  FanoutSource
	Gateway messaging.Gateway
}

// NewDispatchService constructs a dispatcher for the given source.
func NewDispatchService(source FanoutSource, gw messaging.Gateway) *DispatchService {
	return &DispatchService{Source: source, Gateway: gw}
}

// RunTick executes one dispatcher pass over every pending aggregate.
//
// Contacts of one aggregate are processed sequentially; the roll-up re-check
// therefore always happens after every attempt of this tick has settled.
// Data-store errors skip the affected record and surface on the next tick.
func (d *DispatchService) RunTick(ctx context.Context) error {
	tr := otel.Tracer("services/DispatchService")
	ctx, span := tr.Start(ctx, "RunTick")
	defer span.End()
	span.SetAttributes(attribute.String("dispatch.kind", d.Source.Kind()))

	kind := d.Source.Kind()
	lg := log.With().Str("kind", kind).Logger()

	aggregates, err := d.Source.PendingAggregates(ctx)
	if err != nil {
		lg.Error().Err(err).Msg("fanout: pending aggregates query failed")
		return err
	}
	if len(aggregates) == 0 {
		return nil
	}

	for _, agg := range aggregates {
		contacts, err := d.Source.PendingContacts(ctx, agg.ID)
		if err != nil {
			lg.Error().Err(err).Str("aggregate_id", agg.ID).Msg("fanout: pending contacts query failed")
			continue
		}
		if len(contacts) == 0 {
			// Nothing to try this pass. Contacts stuck in "processing" from a
			// crashed run, or reverted after this scan, keep the aggregate
			// pending; the roll-up below still fires once all are sent.
			d.rollUp(ctx, lg, agg.ID)
			continue
		}

		for _, c := range contacts {
			d.sendOne(ctx, lg, agg, c)
		}
		d.rollUp(ctx, lg, agg.ID)
	}
	return nil
}

// sendOne advances a single contact: processing → gateway → sent, or back to
// pending on failure.
func (d *DispatchService) sendOne(ctx context.Context, lg zerolog.Logger, agg FanoutAggregate, c FanoutContact) {
	kind := d.Source.Kind()

	if err := d.Source.SetContactStatus(ctx, c.ID, domain.StatusProcessing); err != nil {
		lg.Error().Err(err).Str("contact_id", c.ID).Msg("fanout: could not mark contact processing")
		return
	}
	if err := d.Source.IncrementAttempts(ctx, c.ID); err != nil {
		lg.Warn().Err(err).Str("contact_id", c.ID).Msg("fanout: attempt counter update failed")
	}

	sid, err := d.Gateway.Send(ctx, c.Phone, agg.Body)
	if err != nil {
		fanoutAttempts.WithLabelValues(kind, "failed").Inc()
		lg.Warn().Err(err).Str("contact_id", c.ID).Msg("fanout: send failed, reverting to pending")
		// Revert so the next tick retries. A revert failure leaves the row in
		// "processing"; it will not be retried until an operator intervenes,
		// which beats double delivery.
		if rerr := d.Source.SetContactStatus(ctx, c.ID, domain.StatusPending); rerr != nil {
			lg.Error().Err(rerr).Str("contact_id", c.ID).Msg("fanout: revert to pending failed")
		}
		return
	}

	if err := d.Source.SetContactStatus(ctx, c.ID, domain.StatusSent); err != nil {
		lg.Error().Err(err).Str("contact_id", c.ID).Msg("fanout: could not mark contact sent")
		return
	}
	fanoutAttempts.WithLabelValues(kind, "sent").Inc()
	lg.Info().Str("contact_id", c.ID).Str("sid", sid).Msg("fanout: contact delivered")
}

// rollUp re-reads the aggregate's contacts and promotes the aggregate to
// "sent" iff none remain undelivered.
func (d *DispatchService) rollUp(ctx context.Context, lg zerolog.Logger, aggregateID string) {
	remaining, err := d.Source.CountNotSent(ctx, aggregateID)
	if err != nil {
		lg.Error().Err(err).Str("aggregate_id", aggregateID).Msg("fanout: roll-up count failed")
		return
	}
	if remaining > 0 {
		lg.Info().Str("aggregate_id", aggregateID).Int64("remaining", remaining).Msg("fanout: aggregate still pending")
		return
	}
	if err := d.Source.SetAggregateStatus(ctx, aggregateID, domain.StatusSent); err != nil {
		lg.Error().Err(err).Str("aggregate_id", aggregateID).Msg("fanout: aggregate status update failed")
		return
	}
	fanoutCompleted.WithLabelValues(d.Source.Kind()).Inc()
	lg.Info().Str("aggregate_id", aggregateID).Msg("fanout: aggregate fully delivered")
}

//
// Sources
//

// BroadcastSource adapts the messages/message_contact tables.
type BroadcastSource struct {
	DB *gorm.DB
}

// Kind implements FanoutSource.
func (BroadcastSource) Kind() string { return KindBroadcast }

// PendingAggregates implements FanoutSource.
func (s BroadcastSource) PendingAggregates(ctx context.Context) ([]FanoutAggregate, error) {
	rows, err := repo.ListPendingBroadcasts(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := make([]FanoutAggregate, 0, len(rows))
	for _, b := range rows {
		body := b.Content
		if body == "" {
			body = "Reminder!"
		}
		out = append(out, FanoutAggregate{ID: b.ID, Body: body})
	}
	return out, nil
}

// PendingContacts implements FanoutSource.
func (s BroadcastSource) PendingContacts(ctx context.Context, aggregateID string) ([]FanoutContact, error) {
	rows, err := repo.ListPendingBroadcastContacts(ctx, s.DB, aggregateID)
	if err != nil {
		return nil, err
	}
	out := make([]FanoutContact, 0, len(rows))
	for _, c := range rows {
		out = append(out, FanoutContact{ID: c.ID, Phone: c.Phone})
	}
	return out, nil
}

// SetContactStatus implements FanoutSource.
func (s BroadcastSource) SetContactStatus(ctx context.Context, contactID, status string) error {
	return repo.SetBroadcastContactStatus(ctx, s.DB, contactID, status)
}

// IncrementAttempts implements FanoutSource.
func (s BroadcastSource) IncrementAttempts(ctx context.Context, contactID string) error {
	return repo.IncrementBroadcastContactAttempts(ctx, s.DB, contactID)
}

// CountNotSent implements FanoutSource.
func (s BroadcastSource) CountNotSent(ctx context.Context, aggregateID string) (int64, error) {
	return repo.CountBroadcastContactsNotSent(ctx, s.DB, aggregateID)
}

// SetAggregateStatus implements FanoutSource.
func (s BroadcastSource) SetAggregateStatus(ctx context.Context, aggregateID, status string) error {
	return repo.SetBroadcastStatus(ctx, s.DB, aggregateID, status)
}

// InviteSource adapts the rsvp/rsvp_contact_status tables. The invitation
// body appends the reply instructions every invitee needs.
type InviteSource struct {
	DB *gorm.DB
}

// Kind implements FanoutSource.
func (InviteSource) Kind() string { return KindRSVP }

// PendingAggregates implements FanoutSource.
func (s InviteSource) PendingAggregates(ctx context.Context) ([]FanoutAggregate, error) {
	rows, err := repo.ListPendingInvites(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := make([]FanoutAggregate, 0, len(rows))
	for _, inv := range rows {
		title := inv.Title
		if title == "" {
			title = "Event"
		}
		body := title + "\n" + inv.Message +
			"\n\nIf attending, respond by replying 'rsvp: yes'. If not, reply 'rsvp: no'."
		out = append(out, FanoutAggregate{ID: inv.ID, Body: body})
	}
	return out, nil
}

// PendingContacts implements FanoutSource.
func (s InviteSource) PendingContacts(ctx context.Context, aggregateID string) ([]FanoutContact, error) {
	rows, err := repo.ListPendingInviteContacts(ctx, s.DB, aggregateID)
	if err != nil {
		return nil, err
	}
	out := make([]FanoutContact, 0, len(rows))
	for _, c := range rows {
		out = append(out, FanoutContact{ID: c.ID, Phone: c.Phone})
	}
	return out, nil
}

// SetContactStatus implements FanoutSource.
func (s InviteSource) SetContactStatus(ctx context.Context, contactID, status string) error {
	return repo.SetInviteContactStatus(ctx, s.DB, contactID, status)
}

// IncrementAttempts implements FanoutSource.
func (s InviteSource) IncrementAttempts(ctx context.Context, contactID string) error {
	return repo.IncrementInviteContactAttempts(ctx, s.DB, contactID)
}

// CountNotSent implements FanoutSource.
func (s InviteSource) CountNotSent(ctx context.Context, aggregateID string) (int64, error) {
	return repo.CountInviteContactsNotSent(ctx, s.DB, aggregateID)
}

// SetAggregateStatus implements FanoutSource.
func (s InviteSource) SetAggregateStatus(ctx context.Context, aggregateID, status string) error {
	return repo.SetInviteStatus(ctx, s.DB, aggregateID, status)
}
