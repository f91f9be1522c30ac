// Package repository — SessionRepository interface.
//
// Havuz ve katılımcı veritabanı işlemlerinin soyutlaması.
// Katılımcılar havuzun alt koleksiyonudur (bağımsız lifecycle'ları yok),
// bu yüzden ayrı bir ParticipantRepository yoktur — tüm erişim session
// üzerinden yapılır.
package repository

import (
	"context"
	"time"

	"github.com/nexora/vcfpool/models"
)

// SessionRepository, havuz veritabanı işlemleri için interface.
type SessionRepository interface {
	// Create, yeni bir havuz kaydeder (status=active).
	Create(ctx context.Context, session *models.Session) error

	// GetByID, havuzu döner. Bulunamazsa pkg.ErrNotFound.
	GetByID(ctx context.Context, sessionID string) (*models.Session, error)

	// AppendParticipant, katılımcıyı havuza ekler ve yeni toplam sayıyı döner.
	//
	// Status kontrolü ve insert tek transaction içinde çalışır;
	// duplicate telefon UNIQUE constraint ile yakalanır. Dönen hatalar:
	// pkg.ErrNotFound, pkg.ErrClosed, pkg.ErrDuplicateParticipant.
	AppendParticipant(ctx context.Context, sessionID string, p *models.Participant) (int, error)

	// Close, havuzu kapatır: status'u 'active' → 'completed' yapar ve
	// completed_at'i yazar. Compare-and-swap'tır — sadece aktif havuzda
	// çalışır. Zaten kapalıysa pkg.ErrClosed, yoksa pkg.ErrNotFound döner.
	Close(ctx context.Context, sessionID string, completedAt time.Time) error

	// ListByOwner, sahibin havuzlarını katılımcı sayılarıyla,
	// en yeniden eskiye, en fazla limit adet döner.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.SessionWithCount, error)

	// ListParticipants, havuzun katılımcılarını en yeniden eskiye döner.
	ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error)

	// HasParticipant, normalize edilmiş telefonun havuzda kayıtlı olup
	// olmadığını döner.
	HasParticipant(ctx context.Context, sessionID, phone string) (bool, error)

	// CountParticipants, havuzdaki katılımcı sayısını döner.
	CountParticipants(ctx context.Context, sessionID string) (int, error)

	// SetPushSubscription, kayıtlı katılımcıya push subscription ekler.
	// Havuz veya katılımcı yoksa pkg.ErrNotFound.
	SetPushSubscription(ctx context.Context, sessionID, phone string, sub *models.PushSubscription) error

	// ListActive, aktif tüm havuzları döner — startup'ta scheduler'ın
	// timer'ları yeniden kurması ve süresi geçmişleri kapatması için.
	ListActive(ctx context.Context) ([]models.Session, error)
}
