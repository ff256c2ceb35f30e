// Package services – ReminderService
//
// ReminderService owns the daily reminder pass: it scans events whose
// notified marker is still pending, expires the ones whose notification date
// has already passed, and dispatches exactly one reminder for the ones due
// today. RunCheck is safe to invoke concurrently and repeatedly - the timer
// loop and the manual admin trigger share it.
//
// Duplicate protection is layered:
//  1. the in-process Guard serializes concurrent attempts per event id;
//  2. a re-read of the notified column after acquiring the guard catches
//     events a concurrent runner already handled;
//  3. the event is marked "Yes" before the send. A crash between mark and
//     send drops that reminder instead of ever risking a duplicate; this
//     direction is intentional.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-remind-backend/internal/domain"
	"github.com/tbourn/go-remind-backend/internal/repo"
)

// ReminderService dispatches due event reminders.
type ReminderService struct {
	DB       *gorm.DB
	Notifier *NotifierService
	Guard    *Guard

	// Now is the clock; tests pin it. Defaults to time.Now.
	Now func() time.Time
}

// NewReminderService constructs a ReminderService sharing the given guard.
func NewReminderService(db *gorm.DB, notifier *NotifierService, guard *Guard) *ReminderService {
	return &ReminderService{
		DB:       db,
		Notifier: notifier,
		Guard:    guard,
		Now:      time.Now,
	}
}

// CheckResult summarizes one reminder pass for logs and the admin endpoint.
type CheckResult struct {
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
}

// RunCheck executes one reminder pass. Data-store errors abort the pass (the
// next tick retries, nothing was marked); per-event failures are counted and
// never stop the remaining events.
func (s *ReminderService) RunCheck(ctx context.Context) (CheckResult, error) {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, "RunCheck")
	defer span.End()

	runID := uuid.NewString()[:8]
	lg := log.With().Str("run_id", runID).Logger()

	reminderChecks.Inc()

	var res CheckResult
	today := s.today()

	pending, err := repo.ListPendingEvents(ctx, s.DB)
	if err != nil {
		lg.Error().Err(err).Msg("reminder check: pending events query failed")
		return res, err
	}
	lg.Info().Int("pending", len(pending)).Str("date", today.Format("2006-01-02")).Msg("reminder check started")

	var due []domain.Event
	for _, ev := range pending {
		eventDate, err := ev.Date()
		if err != nil {
			lg.Warn().Str("event_id", ev.ID).Str("event_date", ev.EventDate).Msg("unparsable event date, skipping")
			res.Skipped++
			continue
		}
		notifyDate := eventDate.AddDate(0, 0, -ev.DaysToNotify)

		switch {
		case today.Equal(notifyDate):
			due = append(due, ev)
		case today.After(notifyDate):
			// Expired before it was ever dispatched. No guard needed: "No" is
			// monotone and writing it twice is harmless.
			if err := repo.MarkEventNotified(ctx, s.DB, ev.ID, domain.NotifiedNo); err != nil {
				lg.Error().Err(err).Str("event_id", ev.ID).Msg("failed to expire overdue event")
				continue
			}
			reminderOutcomes.WithLabelValues("expired").Inc()
			res.Expired++
			lg.Info().Str("event_id", ev.ID).Str("title", ev.Title).Msg("notification date passed, marked No")
		}
	}
	res.Due = len(due)
	if len(due) == 0 {
		lg.Info().Msg("no events due for notification today")
		span.SetAttributes(attribute.Int("reminder.due", 0))
		return res, nil
	}

	for _, ev := range due {
		switch s.dispatchOne(ctx, lg, ev) {
		case dispatchSent:
			reminderOutcomes.WithLabelValues("sent").Inc()
			res.Sent++
		case dispatchSkipped:
			reminderOutcomes.WithLabelValues("skipped").Inc()
			res.Skipped++
		default:
			reminderOutcomes.WithLabelValues("failed").Inc()
			res.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("reminder.due", res.Due),
		attribute.Int("reminder.sent", res.Sent),
		attribute.Int("reminder.failed", res.Failed),
	)
	lg.Info().
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("expired", res.Expired).
		Msg("reminder check completed")
	return res, nil
}

type dispatchOutcome int

const (
	dispatchSent dispatchOutcome = iota
	dispatchFailed
	dispatchSkipped
)

// dispatchOne handles a single due event under the guard. The guard is
// released on every path.
func (s *ReminderService) dispatchOne(ctx context.Context, lg zerolog.Logger, ev domain.Event) dispatchOutcome {
	if !s.Guard.TryAcquire(ev.ID) {
		lg.Info().Str("event_id", ev.ID).Msg("event already being processed elsewhere, skipping")
		return dispatchSkipped
	}
	defer s.Guard.Release(ev.ID)

	// Double-check: a concurrent runner may have marked the event between the
	// pending scan and our guard acquisition.
	notified, err := repo.GetEventNotified(ctx, s.DB, ev.ID)
	if err != nil {
		lg.Error().Err(err).Str("event_id", ev.ID).Msg("double-check read failed")
		return dispatchFailed
	}
	if notified != domain.NotifiedPending {
		lg.Info().Str("event_id", ev.ID).Str("notified", notified).Msg("event already notified, skipping")
		return dispatchSkipped
	}

	// Mark before send: favors at-most-one-send over guaranteed delivery.
	if err := repo.MarkEventNotified(ctx, s.DB, ev.ID, domain.NotifiedYes); err != nil {
		lg.Warn().Err(err).Str("event_id", ev.ID).Msg("could not mark event Yes, skipping dispatch")
		return dispatchFailed
	}

	profile, err := repo.GetProfile(ctx, s.DB, ev.UserID)
	if err != nil {
		lg.Warn().Err(err).Str("event_id", ev.ID).Str("user_id", ev.UserID).Msg("no profile for event owner")
		return dispatchFailed
	}
	if profile.PhoneNumber == "" {
		lg.Warn().Str("event_id", ev.ID).Str("user_id", ev.UserID).Msg("profile has no phone number")
		return dispatchFailed
	}

	body := s.formatReminder(ev, profile)
	eventID := ev.ID
	if err := s.Notifier.Send(ctx, ev.UserID, &eventID, domain.NotificationEventReminder, profile.PhoneNumber, body); err != nil {
		lg.Warn().Str("event_id", ev.ID).Str("title", ev.Title).Msg("reminder dispatch failed")
		return dispatchFailed
	}
	lg.Info().Str("event_id", ev.ID).Str("title", ev.Title).Msg("reminder dispatched")
	return dispatchSent
}

// formatReminder renders the outbound reminder text.
func (s *ReminderService) formatReminder(ev domain.Event, p *domain.Profile) string {
	name := p.FullName
	if name == "" {
		name = "User"
	}
	dateText := ev.EventDate
	if d, err := ev.Date(); err == nil {
		dateText = d.Format("January 2, 2006")
	}
	return fmt.Sprintf(
		"🔔 Event Reminder\n\nHi %s!\n\nYou have an upcoming %s:\n📅 %s\n📆 Date: %s\n\nDon't forget to prepare for this important event!\n\nBest regards,\nRemindMe",
		name, ev.TypeLabel(), ev.Title, dateText,
	)
}

// today truncates the clock to a calendar date in UTC.
func (s *ReminderService) today() time.Time {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
