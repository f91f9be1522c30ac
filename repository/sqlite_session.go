// Package repository — SessionRepository'nin SQLite implementasyonu.
//
// sessions ve participants tabloları 001_init.sql'de oluşturuldu.
// Duplicate telefon kontrolü uygulama kodunda "önce oku sonra yaz" ile
// DEĞİL, participants üzerindeki UNIQUE(session_id, phone) index'i ile
// yapılır — eşzamanlı iki join'de ikincisi constraint hatası alır.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nexora/vcfpool/database"
	"github.com/nexora/vcfpool/models"
	"github.com/nexora/vcfpool/pkg"
)

type sqliteSessionRepo struct {
	db *sql.DB
}

// NewSQLiteSessionRepo, constructor.
func NewSQLiteSessionRepo(db *sql.DB) SessionRepository {
	return &sqliteSessionRepo{db: db}
}

// Create, yeni bir havuz kaydeder.
func (r *sqliteSessionRepo) Create(ctx context.Context, session *models.Session) error {
	query := `INSERT INTO sessions (session_id, owner_id, title, duration_minutes, status, expires_at, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.OwnerID, session.Title, session.DurationMinutes,
		session.Status, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID, havuzu döner.
func (r *sqliteSessionRepo) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `SELECT session_id, owner_id, title, duration_minutes, status, expires_at, completed_at, created_at
              FROM sessions WHERE session_id = ?`

	return scanSession(r.db.QueryRowContext(ctx, query, sessionID))
}

// AppendParticipant, katılımcıyı havuza ekler ve yeni toplam sayıyı döner.
//
// Akış tek transaction içinde çalışır:
//  1. Havuzun status'unu oku → yoksa ErrNotFound, aktif değilse ErrClosed
//  2. INSERT → UNIQUE ihlali ErrDuplicateParticipant
//  3. Yeni COUNT'u oku (count_update broadcast'i için)
//
// Transaction olmadan 1 ile 2 arasında scheduler havuzu kapatabilirdi.
func (r *sqliteSessionRepo) AppendParticipant(ctx context.Context, sessionID string, p *models.Participant) (int, error) {
	var count int

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM sessions WHERE session_id = ?`, sessionID,
		).Scan(&status)
		if err == sql.ErrNoRows {
			return pkg.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check session status: %w", err)
		}

		if status != models.StatusActive {
			return pkg.ErrClosed
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO participants (session_id, name, phone, joined_at) VALUES (?, ?, ?, ?)`,
			sessionID, p.Name, p.Phone, p.JoinedAt,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return pkg.ErrDuplicateParticipant
			}
			return fmt.Errorf("failed to insert participant: %w", err)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM participants WHERE session_id = ?`, sessionID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to count participants: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Close, havuzu compare-and-swap ile kapatır.
// WHERE status = 'active' koşulu sayesinde geç tetiklenen duplicate bir
// timer veya manuel kapatma + timer yarışı zararsızdır — ikinci çağrı
// hiçbir satırı etkilemez ve ErrClosed alır.
func (r *sqliteSessionRepo) Close(ctx context.Context, sessionID string, completedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, completed_at = ? WHERE session_id = ? AND status = ?`,
		models.StatusCompleted, completedAt, sessionID, models.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Hiçbir satır değişmedi — havuz ya yok ya zaten kapalı.
	var exists int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check session existence: %w", err)
	}
	if exists == 0 {
		return pkg.ErrNotFound
	}
	return pkg.ErrClosed
}

// ListByOwner, sahibin havuzlarını katılımcı sayılarıyla döner.
func (r *sqliteSessionRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.SessionWithCount, error) {
	query := `SELECT s.session_id, s.owner_id, s.title, s.duration_minutes, s.status,
                     s.expires_at, s.completed_at, s.created_at,
                     (SELECT COUNT(*) FROM participants p WHERE p.session_id = s.session_id)
              FROM sessions s
              WHERE s.owner_id = ?
              ORDER BY s.created_at DESC
              LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.SessionWithCount
	for rows.Next() {
		var s models.SessionWithCount
		if err := rows.Scan(
			&s.ID, &s.OwnerID, &s.Title, &s.DurationMinutes, &s.Status,
			&s.ExpiresAt, &s.CompletedAt, &s.CreatedAt, &s.ParticipantCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// ListParticipants, katılımcıları en yeniden eskiye döner.
func (r *sqliteSessionRepo) ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error) {
	query := `SELECT name, phone, joined_at, push_subscription
              FROM participants WHERE session_id = ?
              ORDER BY joined_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		var subJSON sql.NullString
		if err := rows.Scan(&p.Name, &p.Phone, &p.JoinedAt, &subJSON); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}

		if subJSON.Valid && subJSON.String != "" {
			var sub models.PushSubscription
			if err := json.Unmarshal([]byte(subJSON.String), &sub); err == nil {
				p.PushSubscription = &sub
			}
			// Parse edilemeyen subscription sessizce atlanır —
			// katılımcı kaydı her durumda dönmeli.
		}

		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return participants, nil
}

// HasParticipant, telefonun havuzda kayıtlı olup olmadığını döner.
func (r *sqliteSessionRepo) HasParticipant(ctx context.Context, sessionID, phone string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE session_id = ? AND phone = ?`,
		sessionID, phone,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return count > 0, nil
}

// CountParticipants, havuzdaki katılımcı sayısını döner.
func (r *sqliteSessionRepo) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE session_id = ?`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// SetPushSubscription, kayıtlı katılımcıya push subscription ekler.
func (r *sqliteSessionRepo) SetPushSubscription(ctx context.Context, sessionID, phone string, sub *models.PushSubscription) error {
	subJSON, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal push subscription: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE participants SET push_subscription = ? WHERE session_id = ? AND phone = ?`,
		string(subJSON), sessionID, phone,
	)
	if err != nil {
		return fmt.Errorf("failed to set push subscription: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}

	return nil
}

// ListActive, aktif tüm havuzları döner.
func (r *sqliteSessionRepo) ListActive(ctx context.Context) ([]models.Session, error) {
	query := `SELECT session_id, owner_id, title, duration_minutes, status, expires_at, completed_at, created_at
              FROM sessions WHERE status = ?`

	rows, err := r.db.QueryContext(ctx, query, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(
			&s.ID, &s.OwnerID, &s.Title, &s.DurationMinutes, &s.Status,
			&s.ExpiresAt, &s.CompletedAt, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active sessions: %w", err)
	}

	return sessions, nil
}

// scanSession, tek satırlık session sorgularının ortak scan helper'ı.
func scanSession(row *sql.Row) (*models.Session, error) {
	s := &models.Session{}
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Title, &s.DurationMinutes, &s.Status,
		&s.ExpiresAt, &s.CompletedAt, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}
