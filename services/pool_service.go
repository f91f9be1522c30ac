// Package services — PoolService: havuz (contact pool) iş mantığı.
//
// Havuz yaşam döngüsünün tamamı buradan geçer:
//
//	Create → (katılımlar: Join/Subscribe + count_update fan-out)
//	       → CloseSession (timer veya sahibin force-close'u)
//	       → session_finished fan-out + push dispatch
//	       → Export (48 saatlik pencere içinde, sadece katılımcılara)
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexora/vcfpool/models"
	"github.com/nexora/vcfpool/pkg"
	"github.com/nexora/vcfpool/pkg/push"
	"github.com/nexora/vcfpool/pkg/vcf"
	"github.com/nexora/vcfpool/repository"
	"github.com/nexora/vcfpool/ws"
)

// ownerSessionLimit, dashboard listesinde dönen maksimum havuz sayısı.
const ownerSessionLimit = 5

// pushSendTimeout, tek bir push endpoint'ine gönderim için üst sınır.
// Dispatch döngüsü katılımcı başına en fazla bu kadar bekler.
const pushSendTimeout = 10 * time.Second

// SessionTimer, havuz yaratılırken kapanış zamanlayıcısını kuran interface.
// Concrete implementasyon Scheduler'dır — interface sayesinde testlerde
// fake timer kullanılır ve services içi bağımlılık döngüsü oluşmaz.
type SessionTimer interface {
	Schedule(sessionID string, expiresAt time.Time)
}

// PoolService, havuz iş mantığı interface'i.
type PoolService interface {
	// Create, yeni bir havuz açar ve kapanış timer'ını kurar.
	Create(ctx context.Context, ownerID string, req *models.CreateSessionRequest) (*models.Session, error)

	// Summary, herkese açık havuz özetini döner (PII içermez).
	Summary(ctx context.Context, sessionID string) (*models.SessionSummary, error)

	// Join, katılımcıyı havuza ekler ve yeni toplam sayıyı döner.
	Join(ctx context.Context, sessionID string, req *models.JoinRequest) (int, error)

	// Subscribe, kayıtlı bir katılımcıya push subscription ekler.
	Subscribe(ctx context.Context, sessionID string, req *models.SubscribeRequest) error

	// ListOwnerSessions, sahibin en yeni havuzlarını döner (en fazla 5).
	ListOwnerSessions(ctx context.Context, ownerID string) ([]models.SessionWithCount, error)

	// ListParticipants, katılımcı listesini döner — sadece havuz sahibine.
	ListParticipants(ctx context.Context, sessionID, callerID string) ([]models.Participant, error)

	// CloseSession, havuzu kapatır (idempotent) ve kapanış yan etkilerini
	// (fan-out + push dispatch) tetikler. Scheduler'ın callback'i budur.
	CloseSession(ctx context.Context, sessionID string) error

	// ForceClose, sahibin havuzu süresi dolmadan kapatmasıdır.
	// Doğal kapanışla aynı compare-and-swap'ı kullanır.
	ForceClose(ctx context.Context, sessionID, callerID string) error

	// Export, birleşik VCF içeriğini döner — sadece kayıtlı bir telefona,
	// kapanıştan sonraki pencere içinde.
	Export(ctx context.Context, sessionID, phone string) (string, error)

	// VerifySession, havuzun varlığını kontrol eder (WS aboneliği için).
	VerifySession(ctx context.Context, sessionID string) error
}

type poolService struct {
	repo       repository.SessionRepository
	hub        ws.EventPublisher
	pushSender push.Sender
	timer      SessionTimer

	publicURL    string
	exportWindow time.Duration

	// now, test'lerde sahte saat enjekte etmek için değiştirilebilir.
	now func() time.Time
}

// NewPoolService, constructor.
func NewPoolService(
	repo repository.SessionRepository,
	hub ws.EventPublisher,
	pushSender push.Sender,
	timer SessionTimer,
	publicURL string,
	exportWindowHours int,
) PoolService {
	return &poolService{
		repo:         repo,
		hub:          hub,
		pushSender:   pushSender,
		timer:        timer,
		publicURL:    strings.TrimSuffix(publicURL, "/"),
		exportWindow: time.Duration(exportWindowHours) * time.Hour,
		now:          time.Now,
	}
}

// Create, yeni bir havuz açar.
//
// Session ID: UUID'nin ilk 8 karakteri, uppercase (ör: "A1B2C3D4").
// Kısa tutulur çünkü ID katılım linkinde ve WS topic adında kullanılır —
// telefonla paylaşılabilir olmalı.
func (s *poolService) Create(ctx context.Context, ownerID string, req *models.CreateSessionRequest) (*models.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	now := s.now()
	session := &models.Session{
		ID:              strings.ToUpper(uuid.NewString()[:8]),
		OwnerID:         ownerID,
		Title:           strings.TrimSpace(req.Title),
		DurationMinutes: req.DurationMinutes,
		Status:          models.StatusActive,
		ExpiresAt:       now.Add(time.Duration(req.DurationMinutes) * time.Minute),
		CreatedAt:       now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Timer DB kaydından SONRA kurulur — expire callback'i session'ı
	// DB'de bulabilmeli (duration=0 havuzlarda hemen tetiklenir).
	s.timer.Schedule(session.ID, session.ExpiresAt)

	log.Printf("[pool] session %s created by %s (duration: %dm)", session.ID, ownerID, req.DurationMinutes)
	return session, nil
}

// Summary, herkese açık havuz özetini döner.
// Status, DisplayStatus ile türetilir — kapanışın üzerinden export
// penceresinden fazla geçmişse "expired" görünür.
func (s *poolService) Summary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}

	return &models.SessionSummary{
		ID:               session.ID,
		Title:            session.Title,
		Status:           session.DisplayStatus(s.now(), s.exportWindow),
		ParticipantCount: count,
		ExpiresAt:        session.ExpiresAt,
		CompletedAt:      session.CompletedAt,
	}, nil
}

// Join, katılımcıyı havuza ekler.
//
// Status kontrolü + duplicate kontrolü + insert repository'de tek atomik
// birimdir — burada sadece normalize edilir ve sonuç yayınlanır.
// count_update broadcast'i katılımcı adı/telefonu İÇERMEZ.
func (s *poolService) Join(ctx context.Context, sessionID string, req *models.JoinRequest) (int, error) {
	if err := req.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	phone := models.NormalizePhone(req.Phone)
	if strings.TrimPrefix(phone, "+") == "" {
		return 0, fmt.Errorf("%w: phone contains no digits", pkg.ErrBadRequest)
	}

	participant := &models.Participant{
		Name:     strings.TrimSpace(req.Name),
		Phone:    phone,
		JoinedAt: s.now(),
	}

	count, err := s.repo.AppendParticipant(ctx, sessionID, participant)
	if err != nil {
		return 0, err
	}

	s.hub.PublishToSession(sessionID, ws.Event{
		Op: ws.OpCountUpdate,
		Data: ws.CountUpdateData{
			SessionID: sessionID,
			Count:     count,
		},
	})

	return count, nil
}

// Subscribe, kayıtlı bir katılımcıya push subscription ekler.
// Telefon join ile aynı şekilde normalize edilir — aksi halde farklı
// formatla subscribe olan katılımcı bulunamazdı.
func (s *poolService) Subscribe(ctx context.Context, sessionID string, req *models.SubscribeRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	phone := models.NormalizePhone(req.Phone)
	return s.repo.SetPushSubscription(ctx, sessionID, phone, req.Subscription)
}

// ListOwnerSessions, sahibin en yeni havuzlarını katılımcı sayılarıyla döner.
func (s *poolService) ListOwnerSessions(ctx context.Context, ownerID string) ([]models.SessionWithCount, error) {
	sessions, err := s.repo.ListByOwner(ctx, ownerID, ownerSessionLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	// nil slice yerine boş slice döndür (JSON'da [] olması için, null değil)
	if sessions == nil {
		sessions = []models.SessionWithCount{}
	}

	return sessions, nil
}

// ListParticipants, katılımcı listesini döner — sadece havuz sahibine.
// Bu ve Export, ham telefon numarası dönen yalnızca iki okuma yoludur.
func (s *poolService) ListParticipants(ctx context.Context, sessionID, callerID string) ([]models.Participant, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.OwnerID != callerID {
		return nil, fmt.Errorf("%w: only the session owner can view participants", pkg.ErrForbidden)
	}

	participants, err := s.repo.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	if participants == nil {
		participants = []models.Participant{}
	}

	return participants, nil
}

// CloseSession, havuzu kapatır ve kapanış yan etkilerini tetikler.
//
// Idempotent: havuz zaten kapalıysa sessizce no-op döner — geç tetiklenen
// duplicate bir timer veya sweep + force-close yarışı yan etkileri asla
// iki kez çalıştırmaz (CAS'ı kazanan tek çağrı tetikler).
//
// Yan etkiler best-effort'tur ve kapanışı asla geri almaz:
// fan-out abonesiz topic'te no-op'tur, push dispatch arka planda koşar.
func (s *poolService) CloseSession(ctx context.Context, sessionID string) error {
	err := s.repo.Close(ctx, sessionID, s.now())
	if err != nil {
		if errors.Is(err, pkg.ErrClosed) {
			log.Printf("[pool] session %s already closed, skipping", sessionID)
			return nil
		}
		return err
	}

	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load closed session: %w", err)
	}

	// Katılımcı snapshot'ı kapanış ANINDA alınır — hem final count hem
	// push hedef listesi bu listeden gelir.
	participants, err := s.repo.ListParticipants(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to snapshot participants: %w", err)
	}

	log.Printf("[pool] session %s closed with %d participants", sessionID, len(participants))

	s.hub.PublishToSession(sessionID, ws.Event{
		Op: ws.OpSessionFinished,
		Data: ws.SessionFinishedData{
			SessionID:   sessionID,
			Count:       len(participants),
			DownloadURL: fmt.Sprintf("%s/api/pools/%s/export", s.publicURL, sessionID),
		},
	})

	go s.dispatchPush(session.Title, sessionID, participants)

	return nil
}

// ForceClose, sahibin havuzu erken kapatmasıdır.
func (s *poolService) ForceClose(ctx context.Context, sessionID, callerID string) error {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if session.OwnerID != callerID {
		return fmt.Errorf("%w: only the session owner can close the session", pkg.ErrForbidden)
	}

	return s.CloseSession(ctx, sessionID)
}

// pushPayload, push bildirimi JSON gövdesi.
// Service worker bu payload'ı parse edip Notification API'ye geçirir.
type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	URL   string `json:"url"`
}

// dispatchPush, kapanış bildirimini tüm kayıtlı endpoint'lere gönderir.
//
// Arka plan goroutine'inde çalışır — kapanışı tetikleyen timer/request'i
// bloklamaz. Her gönderim bağımsızdır: süresi dolmuş subscription veya
// ulaşılamayan endpoint loglanır ve atlanır, döngü devam eder. Retry yok —
// fire-and-forget, bir kez, kapanış anında.
func (s *poolService) dispatchPush(title, sessionID string, participants []models.Participant) {
	payload, err := json.Marshal(pushPayload{
		Title: "NexOra Gainer Ready!",
		Body:  fmt.Sprintf("The session %q has ended. Download your VCF now!", title),
		Icon:  "/assets/logo.png",
		URL:   fmt.Sprintf("%s/pool/%s", s.publicURL, sessionID),
	})
	if err != nil {
		log.Printf("[push] session %s: failed to marshal payload: %v", sessionID, err)
		return
	}

	var sent, skipped, failed int
	for _, p := range participants {
		if p.PushSubscription == nil {
			skipped++
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), pushSendTimeout)
		err := s.pushSender.Send(ctx, p.PushSubscription, payload)
		cancel()

		if err != nil {
			failed++
			log.Printf("[push] session %s: delivery to %s failed: %v", sessionID, p.Phone, err)
			continue
		}
		sent++
	}

	log.Printf("[push] session %s: dispatch done (sent: %d, skipped: %d, failed: %d)",
		sessionID, sent, skipped, failed)
}

// Export, birleşik VCF içeriğini döner.
//
// Kontrol sırası:
//  1. Havuz var mı? → ErrNotFound
//  2. Telefon bu havuzda kayıtlı mı? → ErrForbidden
//  3. Kapanışın üzerinden pencereden fazla geçti mi? → ErrGone (410).
//     Pencere mutlaktır — kayıtlı katılımcı için de geçerlidir.
//
// Havuz hâlâ aktifken kayıtlı bir katılımcı export alabilir —
// pencere sadece kapanmış havuzlar için işler.
func (s *poolService) Export(ctx context.Context, sessionID, phone string) (string, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return "", err
	}

	normalized := models.NormalizePhone(phone)
	enrolled, err := s.repo.HasParticipant(ctx, sessionID, normalized)
	if err != nil {
		return "", fmt.Errorf("failed to check participant: %w", err)
	}
	if !enrolled {
		return "", fmt.Errorf("%w: phone is not enrolled in this session", pkg.ErrForbidden)
	}

	if session.CompletedAt != nil && s.now().Sub(*session.CompletedAt) > s.exportWindow {
		return "", fmt.Errorf("%w: download window has closed", pkg.ErrGone)
	}

	participants, err := s.repo.ListParticipants(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to list participants: %w", err)
	}

	return vcf.Build(session.Title, participants), nil
}

// VerifySession, havuzun varlığını kontrol eder.
// ws.SessionVerifier interface'ini karşılar.
func (s *poolService) VerifySession(ctx context.Context, sessionID string) error {
	_, err := s.repo.GetByID(ctx, sessionID)
	return err
}
