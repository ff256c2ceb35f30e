// Package services – AssistantService
//
// AssistantService answers free-form user questions about their own events.
// It keeps a per-user conversation session in memory, enriches each prompt
// with the user's event data (a full listing plus, for schedule-shaped
// queries, a filtered listing for the detected period), and delegates text
// generation to the genai.Completer.
//
// The session mutex is held only for map/session reads and writes, never
// across the model call.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-remind-backend/internal/domain"
	"github.com/tbourn/go-remind-backend/internal/genai"
	"github.com/tbourn/go-remind-backend/internal/repo"
)

// Fallback replies returned instead of propagating AI failures.
const (
	aiUnavailableReply = "I'm sorry, the AI service is currently unavailable. Please try again later."
	aiErrorReply       = "I'm sorry, I couldn't process your request at the moment. Please try again."
)

// defaultMaxHistoryTurns bounds per-user session growth. The window keeps the
// most recent turns; older ones fall off.
const defaultMaxHistoryTurns = 40

// session is one user's in-memory conversation state. Lost on restart.
type session struct {
	lastActivity time.Time
	history      []genai.Turn
}

// AssistantService produces context-enriched generative replies.
type AssistantService struct {
	DB        *gorm.DB
	Completer genai.Completer

	// MaxHistoryTurns caps session history length; <= 0 uses the default.
	MaxHistoryTurns int

	// Now is the clock; tests pin it. Defaults to time.Now.
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewAssistantService constructs an AssistantService.
func NewAssistantService(db *gorm.DB, completer genai.Completer) *AssistantService {
	return &AssistantService{
		DB:              db,
		Completer:       completer,
		MaxHistoryTurns: defaultMaxHistoryTurns,
		Now:             time.Now,
		sessions:        make(map[string]*session),
	}
}

// HandleQuery answers one user message and returns the reply text. Failures
// of the AI collaborator never surface as errors; the caller always gets a
// displayable string.
func (s *AssistantService) HandleQuery(ctx context.Context, userID, phone, text string) string {
	tr := otel.Tracer("services/AssistantService")
	ctx, span := tr.Start(ctx, "HandleQuery",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if s.Completer == nil {
		assistantReplies.WithLabelValues("fallback").Inc()
		return aiUnavailableReply
	}

	history := s.touchSession(userID)

	eventsContext := s.buildEventContext(ctx, userID, text)
	enriched := text +
		"\n\nContext: You are an AI assistant for RemindMe, a reminder app. " +
		"You have access to the user's event database. Use this information to " +
		"answer their questions about events, schedules, reminders, etc." +
		eventsContext

	reply, err := s.Completer.Complete(ctx, history, enriched)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("assistant completion failed")
		assistantReplies.WithLabelValues("fallback").Inc()
		return aiErrorReply
	}

	s.appendTurns(userID,
		genai.Turn{Role: genai.RoleUser, Text: text},
		genai.Turn{Role: genai.RoleModel, Text: reply},
	)

	if _, err := repo.CreateNotification(ctx, s.DB, domain.Notification{
		UserID:         userID,
		Type:           domain.NotificationAIResponse,
		Content:        reply,
		PhoneNumber:    phone,
		DeliveryStatus: domain.DeliverySent,
	}); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("ai response audit insert failed")
	}

	assistantReplies.WithLabelValues("answered").Inc()
	return reply
}

// PruneIdle drops sessions idle for longer than maxIdle and returns how many
// were evicted. The daily scheduler calls this to bound memory.
func (s *AssistantService) PruneIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		if sess.lastActivity.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// touchSession returns a snapshot of the user's history, creating the session
// on first contact and refreshing its activity timestamp.
func (s *AssistantService) touchSession(userID string) []genai.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{}
		s.sessions[userID] = sess
		log.Info().Str("user_id", userID).Msg("started new conversation session")
	}
	sess.lastActivity = s.now()
	snapshot := make([]genai.Turn, len(sess.history))
	copy(snapshot, sess.history)
	return snapshot
}

// appendTurns records the exchange and trims the window.
func (s *AssistantService) appendTurns(userID string, turns ...genai.Turn) {
	maxTurns := s.MaxHistoryTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxHistoryTurns
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return
	}
	sess.history = append(sess.history, turns...)
	if n := len(sess.history); n > maxTurns {
		sess.history = append(sess.history[:0:0], sess.history[n-maxTurns:]...)
	}
}

func (s *AssistantService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

//
// Event context building
//

// buildEventContext assembles the listing block appended to the prompt.
// Data-store failures degrade to an empty-events context rather than aborting
// the reply.
func (s *AssistantService) buildEventContext(ctx context.Context, userID, text string) string {
	today := s.today()

	all, err := repo.ListUserEvents(ctx, s.DB, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("event context query failed")
		all = nil
	}

	var b strings.Builder
	if len(all) == 0 {
		b.WriteString("\n\nYou have no events in your database.")
	} else {
		b.WriteString("\n\nHere are ALL your events from the database:\n")
		for _, ev := range all {
			b.WriteString(formatEventLine(ev, today))
		}
		fmt.Fprintf(&b, "\nTotal: %d event(s) in your database.", len(all))
	}

	if !hasScheduleKeywords(text) {
		return b.String()
	}

	filtered, period := s.filterEvents(ctx, userID, text, today, all)
	if len(filtered) == 0 {
		fmt.Fprintf(&b, "\n\nNo events found for %s.", period)
		return b.String()
	}
	fmt.Fprintf(&b, "\n\nFiltered events for %s:\n", period)
	for _, ev := range filtered {
		b.WriteString(formatEventLine(ev, today))
	}
	fmt.Fprintf(&b, "\nFiltered total: %d event(s) for %s", len(filtered), period)
	return b.String()
}

// formatEventLine renders one "- Title (type) on January 2, 2006 (in N days)" line.
func formatEventLine(ev domain.Event, today time.Time) string {
	dateText := ev.EventDate
	annotation := ""
	if d, err := ev.Date(); err == nil {
		dateText = d.Format("January 2, 2006")
		days := int(d.Sub(today).Hours() / 24)
		switch {
		case days == 0:
			annotation = " (today)"
		case days == 1:
			annotation = " (tomorrow)"
		case days > 1:
			annotation = fmt.Sprintf(" (in %d days)", days)
		default:
			annotation = fmt.Sprintf(" (%d days ago)", -days)
		}
	}
	return fmt.Sprintf("- %s (%s) on %s%s\n", ev.Title, ev.TypeLabel(), dateText, annotation)
}

// monthsByName maps lowercase English month names to their number.
var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// scheduleKeywords gate the filtered listing; month names count too.
var scheduleKeywords = []string{
	"event", "events", "schedule", "calendar", "reminder",
	"deadline", "appointment", "meeting", "month", "week",
}

func hasScheduleKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range scheduleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for name := range monthsByName {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

// queryIntent is the detected period of a schedule-shaped query.
type queryIntent struct {
	kind  string     // "specific_month", "current_month", "next_month", "current_week", "upcoming", "all"
	month time.Month // only for specific_month
}

// classifyQuery applies the keyword rules in fixed precedence order. Later
// rules are reached only when every earlier group fails to match, so the
// bare "month" shortcut intentionally routes "next month" phrasing typed
// without those exact words to the current month.
func classifyQuery(text string) queryIntent {
	lower := strings.ToLower(text)

	for name, m := range monthsByName {
		if strings.Contains(lower, name) {
			return queryIntent{kind: "specific_month", month: m}
		}
	}
	if containsAny(lower, "this month", "current month", "month") {
		return queryIntent{kind: "current_month"}
	}
	if containsAny(lower, "next month", "following month") {
		return queryIntent{kind: "next_month"}
	}
	if containsAny(lower, "this week", "current week", "week") {
		return queryIntent{kind: "current_week"}
	}
	if containsAny(lower, "upcoming", "future", "coming", "ahead") {
		return queryIntent{kind: "upcoming"}
	}
	if containsAny(lower, "all", "everything", "list") {
		return queryIntent{kind: "all"}
	}
	return queryIntent{kind: "current_month"}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// monthTitle renders a month name with English title casing.
var monthTitle = cases.Title(language.English)

// filterEvents re-queries the user's events for the detected period and
// returns them with a human period label.
func (s *AssistantService) filterEvents(ctx context.Context, userID, text string, today time.Time, all []domain.Event) ([]domain.Event, string) {
	intent := classifyQuery(text)

	monthWindow := func(year int, m time.Month) (string, string) {
		start := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
		return start.Format("2006-01-02"), start.AddDate(0, 1, 0).Format("2006-01-02")
	}

	switch intent.kind {
	case "specific_month":
		year := today.Year()
		// A month earlier in the calendar than the current one means next year.
		if intent.month < today.Month() {
			year++
		}
		start, end := monthWindow(year, intent.month)
		events := s.eventsBetween(ctx, userID, start, end)
		return events, fmt.Sprintf("%s %d", monthTitle.String(intent.month.String()), year)

	case "next_month":
		next := today.AddDate(0, 0, -today.Day()+1).AddDate(0, 1, 0)
		start, end := monthWindow(next.Year(), next.Month())
		events := s.eventsBetween(ctx, userID, start, end)
		return events, next.Format("January 2006")

	case "current_week":
		// Monday of the current week.
		offset := (int(today.Weekday()) + 6) % 7
		weekStart := today.AddDate(0, 0, -offset)
		events := s.eventsBetween(ctx, userID, weekStart.Format("2006-01-02"), weekStart.AddDate(0, 0, 7).Format("2006-01-02"))
		return events, fmt.Sprintf("this week (starting %s)", weekStart.Format("January 2"))

	case "upcoming":
		events, err := repo.ListUserEventsFrom(ctx, s.DB, userID, today.Format("2006-01-02"))
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("upcoming events query failed")
			events = nil
		}
		return events, "upcoming"

	case "all":
		return all, "all time"

	default: // current_month
		start, end := monthWindow(today.Year(), today.Month())
		events := s.eventsBetween(ctx, userID, start, end)
		return events, today.Format("January 2006")
	}
}

func (s *AssistantService) eventsBetween(ctx context.Context, userID, start, end string) []domain.Event {
	events, err := repo.ListUserEventsBetween(ctx, s.DB, userID, start, end)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("filtered events query failed")
		return nil
	}
	return events
}

func (s *AssistantService) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
