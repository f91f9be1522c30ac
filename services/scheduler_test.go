package services

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nexora/vcfpool/database"
	"github.com/nexora/vcfpool/models"
	"github.com/nexora/vcfpool/repository"
)

// closeRecorder, tetiklenen kapanışları kaydeden CloseFunc.
type closeRecorder struct {
	mu     sync.Mutex
	closed []string
	fired  chan string
}

func newCloseRecorder() *closeRecorder {
	return &closeRecorder{fired: make(chan string, 16)}
}

func (r *closeRecorder) fn(sessionID string) {
	r.mu.Lock()
	r.closed = append(r.closed, sessionID)
	r.mu.Unlock()
	r.fired <- sessionID
}

func (r *closeRecorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case id := <-r.fired:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("close callback was not invoked")
		return ""
	}
}

func newSchedulerFixture(t *testing.T) (*Scheduler, repository.SessionRepository, *closeRecorder) {
	t.Helper()

	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		t.Fatalf("failed to open embedded migrations: %v", err)
	}
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), migrationsFS)
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := repository.NewSQLiteSessionRepo(db.Conn)
	recorder := newCloseRecorder()

	s := NewScheduler(repo)
	s.OnExpire(recorder.fn)
	t.Cleanup(s.Stop)

	return s, repo, recorder
}

func seedActiveSession(t *testing.T, repo repository.SessionRepository, id string, expiresAt time.Time) {
	t.Helper()
	err := repo.Create(context.Background(), &models.Session{
		ID:              id,
		OwnerID:         "owner-1",
		Title:           "Pool",
		DurationMinutes: 30,
		Status:          models.StatusActive,
		ExpiresAt:       expiresAt,
		CreatedAt:       expiresAt.Add(-30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("failed to seed session %s: %v", id, err)
	}
}

func TestScheduleFiresAtExpiry(t *testing.T) {
	s, _, recorder := newSchedulerFixture(t)

	s.Schedule("A1B2C3D4", time.Now().Add(50*time.Millisecond))

	if got := recorder.wait(t); got != "A1B2C3D4" {
		t.Errorf("closed %q, want A1B2C3D4", got)
	}
}

// Geçmiş bir expires_at ile Schedule hemen tetiklenir — duration=0
// havuzların yolu budur.
func TestSchedulePastExpiryFiresImmediately(t *testing.T) {
	s, _, recorder := newSchedulerFixture(t)

	s.Schedule("A1B2C3D4", time.Now().Add(-time.Minute))

	recorder.wait(t)
}

// Aynı havuz için ikinci Schedule eskisini iptal eder — callback bir kez çalışır.
func TestScheduleReplacesExistingTimer(t *testing.T) {
	s, _, recorder := newSchedulerFixture(t)

	s.Schedule("A1B2C3D4", time.Now().Add(30*time.Millisecond))
	s.Schedule("A1B2C3D4", time.Now().Add(80*time.Millisecond))

	recorder.wait(t)

	// Eski timer da ateşlemiş olsaydı ikinci bir event gelirdi
	select {
	case id := <-recorder.fired:
		t.Errorf("callback fired twice for %s", id)
	case <-time.After(150 * time.Millisecond):
	}
}

// Callback, timer kurulduktan SONRA kaydedilse bile timer goroutine'iyle
// yarışmadan devreye girer — OnExpire ve expire aynı mutex'i paylaşır.
func TestOnExpireRegisteredAfterSchedule(t *testing.T) {
	_, repo, _ := newSchedulerFixture(t)

	s := NewScheduler(repo)
	t.Cleanup(s.Stop)
	recorder := newCloseRecorder()

	s.Schedule("A1B2C3D4", time.Now().Add(60*time.Millisecond))
	s.OnExpire(recorder.fn)

	if got := recorder.wait(t); got != "A1B2C3D4" {
		t.Errorf("closed %q, want A1B2C3D4", got)
	}
}

func TestStopCancelsPendingTimers(t *testing.T) {
	s, _, recorder := newSchedulerFixture(t)

	s.Schedule("A1B2C3D4", time.Now().Add(40*time.Millisecond))
	s.Stop()

	select {
	case id := <-recorder.fired:
		t.Errorf("callback fired for %s after Stop", id)
	case <-time.After(120 * time.Millisecond):
	}
}

func TestRecoverClosesOverdueAndRearmsFuture(t *testing.T) {
	s, repo, recorder := newSchedulerFixture(t)

	now := time.Now().UTC()
	seedActiveSession(t, repo, "OVERDUE1", now.Add(-time.Hour))
	seedActiveSession(t, repo, "FUTURE01", now.Add(time.Hour))

	if err := s.Recover(context.Background()); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}

	// Süresi geçmiş havuz hemen kapatılır (ayrı goroutine'de)
	if got := recorder.wait(t); got != "OVERDUE1" {
		t.Errorf("closed %q, want OVERDUE1", got)
	}

	// Geleceğe dönük havuz için timer kurulmuş olmalı
	s.mu.Lock()
	_, armed := s.timers["FUTURE01"]
	s.mu.Unlock()
	if !armed {
		t.Error("no timer re-armed for FUTURE01")
	}
}

// Sweep, timer'ı her nasılsa kaybolmuş süresi geçmiş havuzları yakalar.
func TestSweepClosesOverdueSessions(t *testing.T) {
	s, repo, recorder := newSchedulerFixture(t)

	now := time.Now().UTC()
	seedActiveSession(t, repo, "OVERDUE1", now.Add(-time.Minute))
	seedActiveSession(t, repo, "FUTURE01", now.Add(time.Hour))

	s.sweep()

	if got := recorder.wait(t); got != "OVERDUE1" {
		t.Errorf("closed %q, want OVERDUE1", got)
	}

	select {
	case id := <-recorder.fired:
		t.Errorf("sweep closed non-overdue session %s", id)
	case <-time.After(100 * time.Millisecond):
	}
}
