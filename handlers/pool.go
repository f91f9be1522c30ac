// Package handlers, HTTP request/response işlemlerini yönetir.
//
// Handler'ın görevi ince (thin) olmalı:
// 1. Request'i parse et (JSON body, path param, query param)
// 2. Service katmanını çağır
// 3. Sonucu HTTP response olarak döndür
//
// Handler ASLA iş mantığı içermez, ASLA doğrudan DB'ye erişmez.
// Tüm akıl service'de, handler sadece köprü.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/nexora/vcfpool/models"
	"github.com/nexora/vcfpool/pkg"
	"github.com/nexora/vcfpool/pkg/ratelimit"
	"github.com/nexora/vcfpool/pkg/vcf"
	"github.com/nexora/vcfpool/services"
)

// contextKey, context value key'leri için özel tip.
// String yerine özel tip kullanılır — başka paketlerin context key'leriyle
// çakışma riski ortadan kalkar.
type contextKey string

// OwnerIDContextKey, auth middleware'ının context'e eklediği sahip ID'si.
// Handler'larda r.Context().Value(OwnerIDContextKey).(string) ile erişilir.
const OwnerIDContextKey contextKey = "owner_id"

// PoolHandler, havuz endpoint'lerini yöneten struct.
type PoolHandler struct {
	poolService services.PoolService
	joinLimiter *ratelimit.JoinRateLimiter
}

// NewPoolHandler, constructor.
// joinLimiter: herkese açık join endpoint'i için IP bazlı koruma.
// nil ise rate limiting devre dışı kalır.
func NewPoolHandler(poolService services.PoolService, joinLimiter *ratelimit.JoinRateLimiter) *PoolHandler {
	return &PoolHandler{
		poolService: poolService,
		joinLimiter: joinLimiter,
	}
}

// ownerID, auth middleware'ının context'e koyduğu sahip ID'sini okur.
func ownerID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(OwnerIDContextKey).(string)
	return id, ok && id != ""
}

// Create godoc
// POST /api/pools
// Auth gerektirir. Yeni havuz açar ve kapanış timer'ını kurar.
func (h *PoolHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "owner not found in context")
		return
	}

	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.poolService.Create(r.Context(), owner, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, session)
}

// ListMine godoc
// GET /api/pools
// Auth gerektirir. Sahibin en yeni havuzlarını katılımcı sayılarıyla döner.
func (h *PoolHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "owner not found in context")
		return
	}

	sessions, err := h.poolService.ListOwnerSessions(r.Context(), owner)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, sessions)
}

// Summary godoc
// GET /api/pools/{id}
// Herkese açık. Havuz özetini döner — katılımcı PII'ı içermez.
func (h *PoolHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.poolService.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, summary)
}

// Join godoc
// POST /api/pools/{id}/join
// Herkese açık, rate limited. Katılımcıyı havuza ekler.
func (h *PoolHandler) Join(w http.ResponseWriter, r *http.Request) {
	if h.joinLimiter != nil && !h.joinLimiter.Allow(ratelimit.ClientIP(r)) {
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests, "too many join attempts, please try again later")
		return
	}

	var req models.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count, err := h.poolService.Join(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, map[string]int{"participant_count": count})
}

// Subscribe godoc
// POST /api/pools/{id}/subscribe
// Herkese açık. Kayıtlı bir katılımcıya push subscription ekler.
func (h *PoolHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req models.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.poolService.Subscribe(r.Context(), r.PathValue("id"), &req); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "subscribed"})
}

// Participants godoc
// GET /api/pools/{id}/participants
// Auth gerektirir, sadece havuz sahibi. Ham katılımcı listesini döner.
func (h *PoolHandler) Participants(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "owner not found in context")
		return
	}

	participants, err := h.poolService.ListParticipants(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, participants)
}

// Close godoc
// POST /api/pools/{id}/close
// Auth gerektirir, sadece havuz sahibi. Havuzu süresi dolmadan kapatır.
// Doğal kapanışla aynı yoldan geçer — fan-out ve push dispatch tetiklenir.
func (h *PoolHandler) Close(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "owner not found in context")
		return
	}

	if err := h.poolService.ForceClose(r.Context(), r.PathValue("id"), owner); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "session closed"})
}

// Export godoc
// GET /api/pools/{id}/export?phone=...
// Birleşik VCF dosyasını indirir. Sadece havuza kayıtlı bir telefon
// numarasıyla, kapanıştan sonraki indirme penceresi içinde.
//
// Response JSON envelope DEĞİLDİR — tarayıcının dosya olarak indirmesi
// için text/vcard + Content-Disposition: attachment döner.
func (h *PoolHandler) Export(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	phone := r.URL.Query().Get("phone")
	if phone == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "phone query parameter is required")
		return
	}

	content, err := h.poolService.Export(r.Context(), sessionID, phone)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", vcf.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+vcf.Filename(sessionID)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}
