// Package models — havuz (pool session) domain modelleri.
//
// Session, zaman sınırlı bir rehber toplama penceresini temsil eder:
// yaratıcı bir havuz açar, katılımcılar isim + telefon ile kayıt olur,
// süre dolunca havuz otomatik kapanır ve 48 saat boyunca katılımcılar
// birleşik VCF dosyasını indirebilir.
package models

import (
	"fmt"
	"strings"
	"time"
)

// NormalizePhone, telefon numarasını karşılaştırılabilir forma getirir:
// boşluk, tire, nokta ve parantezler atılır, baştaki '+' ve rakamlar kalır.
//
// Join, subscribe ve export aynı normalizasyonu kullanmak ZORUNDA —
// "+234 801-000-0000" ile "+2348010000000" aynı katılımcıdır.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Session status değerleri.
//
// StatusExpired DB'ye hiç yazılmaz — kapanıştan sonra export penceresi
// dolmuş havuzlar okuma anında türetilir (DisplayStatus). Böylece durum
// geçişi için arka plan taramasına gerek kalmaz.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusExpired   = "expired"
)

// Session, bir havuzu temsil eder. DB'deki "sessions" tablosunun Go karşılığıdır.
//
// ExpiresAt bilgilendirme amaçlıdır (UI geri sayımı + restart recovery) —
// kapanışın otoritesi scheduler'dır, okuma anında ExpiresAt karşılaştırması
// havuzu kapatmaz.
type Session struct {
	ID              string     `json:"session_id"`
	OwnerID         string     `json:"-"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DisplayStatus, dışarıya gösterilen durumu döner.
// Kapanmış ve export penceresi (window) dolmuş havuzlar "expired" görünür —
// saklanan status alanı "completed" kalmaya devam eder.
func (s *Session) DisplayStatus(now time.Time, window time.Duration) string {
	if s.Status == StatusCompleted && s.CompletedAt != nil && now.Sub(*s.CompletedAt) > window {
		return StatusExpired
	}
	return s.Status
}

// Participant, bir havuza kayıtlı tek bir kişiyi temsil eder.
// Katılımcının yaşam döngüsü havuza bağlıdır — bağımsız silinmez,
// en fazla bir kez güncellenir (push subscription eklenirken).
type Participant struct {
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	JoinedAt time.Time `json:"joined_at"`

	// PushSubscription, tarayıcının push "adresi". Katılımdan sonra ayrı bir
	// subscribe çağrısı ile eklenir; nil ise kapanış bildirimi atlanır.
	PushSubscription *PushSubscription `json:"-"`
}

// PushSubscription, Web Push subscription descriptor'ı.
// Tarayıcının PushManager.subscribe() çıktısı ile birebir aynı format.
type PushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscriptionKeys, push payload şifrelemesi için tarayıcının ürettiği anahtarlar.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SessionWithCount, sahibin dashboard listesi için katılımcı sayısıyla
// birlikte dönen havuz kaydı.
type SessionWithCount struct {
	Session
	ParticipantCount int `json:"participant_count"`
}

// SessionSummary, herkese açık havuz özeti.
// Telefon numarası içermez — ham rehber sadece export gate'ten çıkar.
type SessionSummary struct {
	ID               string     `json:"session_id"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	ParticipantCount int        `json:"participant_count"`
	ExpiresAt        time.Time  `json:"expires_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// CreateSessionRequest, yeni havuz açma isteği.
type CreateSessionRequest struct {
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Validate, CreateSessionRequest kontrolü.
// DurationMinutes = 0 geçerlidir — havuz anında kapanır (test/smoke senaryosu).
func (r *CreateSessionRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if r.DurationMinutes < 0 {
		return fmt.Errorf("duration_minutes cannot be negative")
	}
	if r.DurationMinutes > 7*24*60 {
		return fmt.Errorf("duration_minutes cannot exceed one week")
	}
	return nil
}

// JoinRequest, havuza katılım isteği.
type JoinRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Validate, JoinRequest kontrolü.
// Telefon formatı burada doğrulanmaz — normalizasyon service katmanında
// yapılır, böylece join/subscribe/export aynı numarayı aynı şekilde görür.
func (r *JoinRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(r.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	return nil
}

// SubscribeRequest, katılım sonrası push subscription kayıt isteği.
type SubscribeRequest struct {
	Phone        string            `json:"phone"`
	Subscription *PushSubscription `json:"subscription"`
}

// Validate, SubscribeRequest kontrolü.
func (r *SubscribeRequest) Validate() error {
	if strings.TrimSpace(r.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	if r.Subscription == nil || r.Subscription.Endpoint == "" {
		return fmt.Errorf("subscription with endpoint is required")
	}
	return nil
}
