package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-remind-backend/internal/repo"
)

// newServiceDB opens a migrated throwaway SQLite database through the
// production open path (pragmas, pool, tracing plugin) so service tests run
// against the same engine configuration the binary uses.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := repo.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeSend records one gateway call.
type fakeSend struct {
	To   string
	Body string
}

// fakeGateway is a concurrency-safe Gateway stub. failuresFor maps a phone
// number to how many times Send should fail for it before succeeding.
type fakeGateway struct {
	mu          sync.Mutex
	sent        []fakeSend
	failuresFor map[string]int
	calls       int
}

func (g *fakeGateway) Send(_ context.Context, to, body string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failuresFor != nil && g.failuresFor[to] > 0 {
		g.failuresFor[to]--
		return "", fmt.Errorf("gateway unavailable for %s", to)
	}
	g.sent = append(g.sent, fakeSend{To: to, Body: body})
	return fmt.Sprintf("SM%04d", g.calls), nil
}

// Sent returns a snapshot of successful sends.
func (g *fakeGateway) Sent() []fakeSend {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]fakeSend, len(g.sent))
	copy(out, g.sent)
	return out
}

// Calls returns the total number of Send invocations, failures included.
func (g *fakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fixedClock pins a service clock to a calendar date.
func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 9, 30, 0, 0, time.UTC)
	}
}
