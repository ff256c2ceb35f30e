// Package scheduler runs the background timer loops: one daily reminder pass
// at a configured wall-clock time and one fixed-interval loop per fan-out
// dispatcher. Every tick is wrapped in panic recovery and top-level error
// logging so a bad pass can never kill its loop; the loops themselves stop
// only when their context is cancelled.
package scheduler

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
)

// TickFunc executes one pass of a background job.
type TickFunc func(ctx context.Context) error

// Scheduler owns the goroutines of all registered loops.
type Scheduler struct {
	// Now is the clock; tests pin it. Defaults to time.Now.
	Now func() time.Time

	done chan struct{}
	jobs int
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{Now: time.Now, done: make(chan struct{})}
}

// Every registers a fixed-interval loop. The first tick fires after one full
// interval, matching the behavior of an interval trigger.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, fn TickFunc) {
	s.jobs++
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Info().Str("job", name).Dur("interval", interval).Msg("interval loop started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Str("job", name).Msg("interval loop stopped")
				return
			case <-ticker.C:
				s.runTick(ctx, name, fn)
			}
		}
	}()
}

// DailyAt registers a loop that fires once per day at hh:mm local time. A
// fire that is already past for today schedules for tomorrow.
func (s *Scheduler) DailyAt(ctx context.Context, name string, hour, minute int, fn TickFunc) {
	s.jobs++
	go func() {
		log.Info().Str("job", name).Int("hour", hour).Int("minute", minute).Msg("daily loop started")
		for {
			wait := s.untilNext(hour, minute)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Info().Str("job", name).Msg("daily loop stopped")
				return
			case <-timer.C:
				s.runTick(ctx, name, fn)
			}
		}
	}()
}

// runTick executes one pass, converting panics and errors into log entries.
func (s *Scheduler) runTick(ctx context.Context, name string, fn TickFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("job", name).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("tick panicked")
		}
	}()
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("job", name).Msg("tick failed")
	}
}

// untilNext computes the wait until the next hh:mm occurrence.
func (s *Scheduler) untilNext(hour, minute int) time.Duration {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
