package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-remind-backend/internal/domain"
	"github.com/tbourn/go-remind-backend/internal/genai"
	"github.com/tbourn/go-remind-backend/internal/repo"
)

// fakeCompleter records the prompt and history it was called with.
type fakeCompleter struct {
	reply   string
	err     error
	lastMsg string
	history []genai.Turn
	calls   int
}

func (f *fakeCompleter) Complete(_ context.Context, history []genai.Turn, message string) (string, error) {
	f.calls++
	f.lastMsg = message
	f.history = append([]genai.Turn(nil), history...)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestHandleQuery_NilCompleter_StaticFallback(t *testing.T) {
	db := newServiceDB(t)
	svc := NewAssistantService(db, nil)

	got := svc.HandleQuery(context.Background(), "u1", "+301", "hello")
	if got != aiUnavailableReply {
		t.Fatalf("want unavailable fallback, got %q", got)
	}
}

func TestHandleQuery_CompleterError_ApologyFallback(t *testing.T) {
	db := newServiceDB(t)
	fc := &fakeCompleter{err: errors.New("model overloaded")}
	svc := NewAssistantService(db, fc)

	got := svc.HandleQuery(context.Background(), "u1", "+301", "hello")
	if got != aiErrorReply {
		t.Fatalf("want error fallback, got %q", got)
	}

	// Failed turns are not recorded in the session.
	if h := svc.touchSession("u1"); len(h) != 0 {
		t.Fatalf("failed exchange must not enter history, got %d turns", len(h))
	}
}

func TestHandleQuery_EnrichesPromptWithEvents(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	// Today is March 7; the event is in 4 days.
	repo.CreateEvent(ctx, db, "u1", "Dentist", "2026-03-11", domain.EventTypeDeadline, 0)

	fc := &fakeCompleter{reply: "You have one event."}
	svc := NewAssistantService(db, fc)
	svc.Now = fixedClock(2026, time.March, 7)

	got := svc.HandleQuery(ctx, "u1", "+301", "What's my schedule this month?")
	if got != "You have one event." {
		t.Fatalf("unexpected reply %q", got)
	}

	prompt := fc.lastMsg
	for _, want := range []string{
		"Here are ALL your events from the database:",
		"- Dentist (deadline) on March 11, 2026 (in 4 days)",
		"Total: 1 event(s) in your database.",
		"Filtered events for March 2026:",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}

	// The exchange is audited as an ai_response row.
	var rows []domain.Notification
	db.Find(&rows, "user_id = ? AND type = ?", "u1", domain.NotificationAIResponse)
	if len(rows) != 1 || rows[0].Content != "You have one event." {
		t.Fatalf("want 1 audit row with the reply, got %+v", rows)
	}
}

func TestHandleQuery_NoEvents_SaysSo(t *testing.T) {
	db := newServiceDB(t)
	fc := &fakeCompleter{reply: "ok"}
	svc := NewAssistantService(db, fc)
	svc.Now = fixedClock(2026, time.March, 7)

	svc.HandleQuery(context.Background(), "u1", "+301", "hi there")
	if !strings.Contains(fc.lastMsg, "You have no events in your database.") {
		t.Fatalf("prompt missing empty-events note:\n%s", fc.lastMsg)
	}
	// Not a schedule-shaped query: no filtered section.
	if strings.Contains(fc.lastMsg, "Filtered") {
		t.Fatalf("unexpected filtered section:\n%s", fc.lastMsg)
	}
}

func TestHandleQuery_HistoryCarriesAcrossTurns(t *testing.T) {
	db := newServiceDB(t)
	fc := &fakeCompleter{reply: "sure"}
	svc := NewAssistantService(db, fc)

	svc.HandleQuery(context.Background(), "u1", "+301", "first question")
	svc.HandleQuery(context.Background(), "u1", "+301", "second question")

	if len(fc.history) != 2 {
		t.Fatalf("second call must see 2 prior turns, got %d", len(fc.history))
	}
	if fc.history[0].Role != genai.RoleUser || fc.history[0].Text != "first question" {
		t.Fatalf("unexpected first turn: %+v", fc.history[0])
	}
	if fc.history[1].Role != genai.RoleModel || fc.history[1].Text != "sure" {
		t.Fatalf("unexpected second turn: %+v", fc.history[1])
	}
}

func TestHandleQuery_HistoryWindowTrims(t *testing.T) {
	db := newServiceDB(t)
	fc := &fakeCompleter{reply: "ok"}
	svc := NewAssistantService(db, fc)
	svc.MaxHistoryTurns = 4

	for i := 0; i < 5; i++ {
		svc.HandleQuery(context.Background(), "u1", "+301", "question")
	}
	if h := svc.touchSession("u1"); len(h) != 4 {
		t.Fatalf("history must be trimmed to 4 turns, got %d", len(h))
	}
}

func TestHandleQuery_SessionsAreIsolatedPerUser(t *testing.T) {
	db := newServiceDB(t)
	fc := &fakeCompleter{reply: "ok"}
	svc := NewAssistantService(db, fc)

	svc.HandleQuery(context.Background(), "u1", "+301", "from u1")
	svc.HandleQuery(context.Background(), "u2", "+302", "from u2")

	// u2's call must not have seen u1's history.
	if len(fc.history) != 0 {
		t.Fatalf("sessions leaked across users: %+v", fc.history)
	}
}

func TestPruneIdle_EvictsStaleSessions(t *testing.T) {
	db := newServiceDB(t)
	fc := &fakeCompleter{reply: "ok"}
	svc := NewAssistantService(db, fc)

	now := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }
	svc.HandleQuery(context.Background(), "u1", "+301", "hello")

	now = now.Add(48 * time.Hour)
	if evicted := svc.PruneIdle(24 * time.Hour); evicted != 1 {
		t.Fatalf("want 1 evicted session, got %d", evicted)
	}
	if evicted := svc.PruneIdle(24 * time.Hour); evicted != 0 {
		t.Fatalf("second prune must evict nothing, got %d", evicted)
	}
}

func TestClassifyQuery_PrecedenceOrder(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"show my December plans", "specific_month"},
		{"what's on this month", "current_month"},
		// The bare "month" shortcut outranks the next-month rule.
		{"what about next month", "current_month"},
		{"my schedule for the following weeks... next month", "current_month"},
		{"what's due this week", "current_week"},
		{"anything upcoming?", "upcoming"},
		{"show everything", "all"},
		{"what do I have", "current_month"},
	}
	for _, tc := range cases {
		if got := classifyQuery(tc.text); got.kind != tc.want {
			t.Errorf("classifyQuery(%q).kind = %q, want %q", tc.text, got.kind, tc.want)
		}
	}
}

func TestClassifyQuery_SpecificMonthRollsToNextYear(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	// Asking for January while in March 2026 must target January 2027.
	repo.CreateEvent(ctx, db, "u1", "NY resolutions", "2027-01-05", domain.EventTypeDeadline, 0)
	repo.CreateEvent(ctx, db, "u1", "Last year", "2026-01-05", domain.EventTypeDeadline, 0)

	svc := NewAssistantService(db, &fakeCompleter{reply: "ok"})
	svc.Now = fixedClock(2026, time.March, 7)

	today := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	events, period := svc.filterEvents(ctx, "u1", "my january events", today, nil)
	if period != "January 2027" {
		t.Fatalf("want period January 2027, got %q", period)
	}
	if len(events) != 1 || events[0].Title != "NY resolutions" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestFilterEvents_CurrentWeekStartsMonday(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	// March 7 2026 is a Saturday; the week runs March 2 (Monday) .. March 8.
	repo.CreateEvent(ctx, db, "u1", "in-week", "2026-03-02", domain.EventTypeDeadline, 0)
	repo.CreateEvent(ctx, db, "u1", "next-week", "2026-03-09", domain.EventTypeDeadline, 0)

	svc := NewAssistantService(db, &fakeCompleter{reply: "ok"})
	today := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	events, period := svc.filterEvents(ctx, "u1", "what's due this week", today, nil)
	if !strings.Contains(period, "March 2") {
		t.Fatalf("week label must name the Monday, got %q", period)
	}
	if len(events) != 1 || events[0].Title != "in-week" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestFormatEventLine_Annotations(t *testing.T) {
	today := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		date string
		want string
	}{
		{"2026-03-07", "(today)"},
		{"2026-03-08", "(tomorrow)"},
		{"2026-03-11", "(in 4 days)"},
		{"2026-03-05", "(2 days ago)"},
	}
	for _, tc := range cases {
		line := formatEventLine(domain.Event{Title: "x", EventDate: tc.date, EventType: domain.EventTypeDeadline}, today)
		if !strings.Contains(line, tc.want) {
			t.Errorf("line for %s missing %q: %s", tc.date, tc.want, line)
		}
	}
}
