// Package services — Scheduler: havuz yaşam döngüsü zamanlayıcısı.
//
// Her havuz oluşturulduğunda süresi kadar sonraya tek seferlik bir timer
// kurulur; timer dolunca kapanış callback'i çalışır. Kapanışın kendisi
// compare-and-swap olduğu için duplicate bir tetikleme (timer + sweep,
// veya timer + manuel kapatma) zararsızdır.
//
// In-process timer'lar restart'ta kaybolur. Bu yüzden iki güvenlik ağı var:
//  1. Recover: startup'ta aktif havuzlar DB'den okunur — süresi geçmiş
//     olanlar hemen kapatılır, bekleyenler expires_at'ten yeniden kurulur.
//  2. Sweep: dakikada bir aktif havuzlar taranır, süresi geçmiş ama hâlâ
//     açık kalan varsa kapatılır.
package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nexora/vcfpool/repository"
)

// sweepInterval, stray havuz taramasının periyodu.
const sweepInterval = time.Minute

// CloseFunc, süresi dolan havuzu kapatan callback.
//
// Scheduler, PoolService'e doğrudan bağımlı olmak yerine bu callback'i
// kullanır — PoolService de havuz yaratırken Scheduler'a ihtiyaç duyduğu
// için doğrudan bağımlılık döngü oluştururdu. Callback main.go'da bağlanır.
type CloseFunc func(sessionID string)

// Scheduler, havuz başına tek seferlik kapanış timer'larını yönetir.
type Scheduler struct {
	repo    repository.SessionRepository
	closeFn CloseFunc

	mu     sync.Mutex
	timers map[string]*time.Timer

	stopSweep chan struct{}
	stopOnce  sync.Once

	// now, test'lerde sahte saat enjekte etmek için değiştirilebilir.
	now func() time.Time
}

// NewScheduler, constructor. closeFn main.go'da set edilir (OnExpire).
func NewScheduler(repo repository.SessionRepository) *Scheduler {
	return &Scheduler{
		repo:      repo,
		timers:    make(map[string]*time.Timer),
		stopSweep: make(chan struct{}),
		now:       time.Now,
	}
}

// OnExpire, süresi dolan havuzlar için çağrılacak callback'i kaydeder.
// Mutex altında yazılır — Schedule'dan sonra çağrılsa bile timer
// goroutine'iyle yarışmaz; callback set edilmeden dolan timer no-op olur.
func (s *Scheduler) OnExpire(fn CloseFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeFn = fn
}

// Schedule, havuz için expiresAt anına tek seferlik timer kurar.
// Süre zaten geçmişse (duration=0 havuzlar) callback hemen tetiklenir.
func (s *Scheduler) Schedule(sessionID string, expiresAt time.Time) {
	delay := expiresAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Aynı havuza ikinci bir Schedule (recover + create yarışı) eskisini iptal eder.
	if old, ok := s.timers[sessionID]; ok {
		old.Stop()
	}

	s.timers[sessionID] = time.AfterFunc(delay, func() {
		s.expire(sessionID)
	})

	log.Printf("[scheduler] session %s scheduled to close in %s", sessionID, delay.Round(time.Second))
}

// expire, timer dolduğunda çalışır: timer kaydını düşer ve callback'i çağırır.
func (s *Scheduler) expire(sessionID string) {
	s.mu.Lock()
	delete(s.timers, sessionID)
	fn := s.closeFn
	s.mu.Unlock()

	if fn != nil {
		fn(sessionID)
	}
}

// Recover, startup'ta aktif havuzları DB'den okuyup timer'ları yeniden kurar.
// Süresi restart sırasında geçmiş havuzlar hemen kapatılır — eski sürümlerde
// bu havuzlar süresiz açık kalıyordu.
func (s *Scheduler) Recover(ctx context.Context) error {
	sessions, err := s.repo.ListActive(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	var rearmed, overdue int
	for _, session := range sessions {
		if !session.ExpiresAt.After(now) {
			overdue++
			// Kapanış fan-out + push içerir — startup'ı bloklamasın.
			go s.expire(session.ID)
			continue
		}
		rearmed++
		s.Schedule(session.ID, session.ExpiresAt)
	}

	log.Printf("[scheduler] recovery: %d timers re-armed, %d overdue sessions closing", rearmed, overdue)
	return nil
}

// Start, periyodik sweep goroutine'ini başlatır.
func (s *Scheduler) Start() {
	go s.sweepLoop()
}

// sweepLoop, dakikada bir süresi geçmiş ama hâlâ aktif havuzları kapatır.
// Normal akışta iş timer'lara düşer ve sweep boş döner — bu döngü yalnızca
// kaybolan timer'lara karşı güvenlik ağıdır.
func (s *Scheduler) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep, tek bir tarama turu.
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessions, err := s.repo.ListActive(ctx)
	if err != nil {
		log.Printf("[scheduler] sweep failed to list active sessions: %v", err)
		return
	}

	now := s.now()
	for _, session := range sessions {
		if !session.ExpiresAt.After(now) {
			log.Printf("[scheduler] sweep found overdue session %s", session.ID)
			s.expire(session.ID)
		}
	}
}

// Stop, sweep'i ve bekleyen tüm timer'ları durdurur (graceful shutdown).
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopSweep) })

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
