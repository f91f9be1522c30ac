package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nexora/vcfpool/models"
	"github.com/nexora/vcfpool/pkg"
	"github.com/nexora/vcfpool/pkg/ratelimit"
	"github.com/nexora/vcfpool/services"
)

// stubPoolService, handler testleri için yapılandırılabilir PoolService.
// Her metot karşılık gelen fonksiyon alanını çağırır — test sadece
// ihtiyacı olan metodu doldurur.
type stubPoolService struct {
	createFn  func(ctx context.Context, ownerID string, req *models.CreateSessionRequest) (*models.Session, error)
	summaryFn func(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	joinFn    func(ctx context.Context, sessionID string, req *models.JoinRequest) (int, error)
	exportFn  func(ctx context.Context, sessionID, phone string) (string, error)
	closeFn   func(ctx context.Context, sessionID, callerID string) error
	listFn    func(ctx context.Context, ownerID string) ([]models.SessionWithCount, error)
}

var _ services.PoolService = (*stubPoolService)(nil)

func (s *stubPoolService) Create(ctx context.Context, ownerID string, req *models.CreateSessionRequest) (*models.Session, error) {
	return s.createFn(ctx, ownerID, req)
}
func (s *stubPoolService) Summary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	return s.summaryFn(ctx, sessionID)
}
func (s *stubPoolService) Join(ctx context.Context, sessionID string, req *models.JoinRequest) (int, error) {
	return s.joinFn(ctx, sessionID, req)
}
func (s *stubPoolService) Subscribe(ctx context.Context, sessionID string, req *models.SubscribeRequest) error {
	return nil
}
func (s *stubPoolService) ListOwnerSessions(ctx context.Context, ownerID string) ([]models.SessionWithCount, error) {
	return s.listFn(ctx, ownerID)
}
func (s *stubPoolService) ListParticipants(ctx context.Context, sessionID, callerID string) ([]models.Participant, error) {
	return nil, nil
}
func (s *stubPoolService) CloseSession(ctx context.Context, sessionID string) error { return nil }
func (s *stubPoolService) ForceClose(ctx context.Context, sessionID, callerID string) error {
	return s.closeFn(ctx, sessionID, callerID)
}
func (s *stubPoolService) Export(ctx context.Context, sessionID, phone string) (string, error) {
	return s.exportFn(ctx, sessionID, phone)
}
func (s *stubPoolService) VerifySession(ctx context.Context, sessionID string) error { return nil }

// newMux, handler'ları production route pattern'leriyle bağlar —
// r.PathValue("id") ancak mux üzerinden çalışır.
func newMux(h *PoolHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/pools", h.Create)
	mux.HandleFunc("GET /api/pools/{id}", h.Summary)
	mux.HandleFunc("POST /api/pools/{id}/join", h.Join)
	mux.HandleFunc("POST /api/pools/{id}/close", h.Close)
	mux.HandleFunc("GET /api/pools/{id}/export", h.Export)
	return mux
}

// withOwner, auth middleware'ın yaptığı gibi sahip ID'sini context'e koyar.
func withOwner(r *http.Request, ownerID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), OwnerIDContextKey, ownerID))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) pkg.APIResponse {
	t.Helper()
	var resp pkg.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	return resp
}

func TestCreateHandler(t *testing.T) {
	svc := &stubPoolService{
		createFn: func(ctx context.Context, ownerID string, req *models.CreateSessionRequest) (*models.Session, error) {
			if ownerID != "owner-1" {
				t.Errorf("ownerID = %q, want owner-1", ownerID)
			}
			return &models.Session{ID: "A1B2C3D4", Title: req.Title, Status: models.StatusActive}, nil
		},
	}
	mux := newMux(NewPoolHandler(svc, nil))

	body := strings.NewReader(`{"title":"Tech Meetup","duration_minutes":60}`)
	req := withOwner(httptest.NewRequest(http.MethodPost, "/api/pools", body), "owner-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
	if resp := decodeEnvelope(t, rec); !resp.Success {
		t.Errorf("success = false, error = %s", resp.Error)
	}
}

func TestCreateHandlerWithoutOwner(t *testing.T) {
	mux := newMux(NewPoolHandler(&stubPoolService{}, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/pools", strings.NewReader(`{"title":"X"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateHandlerInvalidBody(t *testing.T) {
	mux := newMux(NewPoolHandler(&stubPoolService{}, nil))

	req := withOwner(httptest.NewRequest(http.MethodPost, "/api/pools", strings.NewReader(`{broken`)), "owner-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSummaryHandler(t *testing.T) {
	svc := &stubPoolService{
		summaryFn: func(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
			if sessionID != "A1B2C3D4" {
				t.Errorf("sessionID = %q, want A1B2C3D4", sessionID)
			}
			return &models.SessionSummary{ID: sessionID, Title: "Pool", Status: models.StatusActive, ParticipantCount: 2}, nil
		},
	}
	mux := newMux(NewPoolHandler(svc, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/pools/A1B2C3D4", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"participant_count":2`) {
		t.Errorf("body missing participant count: %s", rec.Body.String())
	}
}

func TestSummaryHandlerNotFound(t *testing.T) {
	svc := &stubPoolService{
		summaryFn: func(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
			return nil, pkg.ErrNotFound
		},
	}
	mux := newMux(NewPoolHandler(svc, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/pools/MISSING1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestJoinHandlerStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"success", nil, http.StatusCreated},
		{"duplicate", pkg.ErrDuplicateParticipant, http.StatusConflict},
		{"closed", pkg.ErrClosed, http.StatusConflict},
		{"missing session", pkg.ErrNotFound, http.StatusNotFound},
		{"bad phone", fmt.Errorf("%w: phone contains no digits", pkg.ErrBadRequest), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubPoolService{
				joinFn: func(ctx context.Context, sessionID string, req *models.JoinRequest) (int, error) {
					if tt.serviceErr != nil {
						return 0, tt.serviceErr
					}
					return 1, nil
				},
			}
			mux := newMux(NewPoolHandler(svc, nil))

			body := strings.NewReader(`{"name":"Ada","phone":"+2348031234567"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/pools/A1B2C3D4/join", body)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestJoinHandlerRateLimited(t *testing.T) {
	svc := &stubPoolService{
		joinFn: func(ctx context.Context, sessionID string, req *models.JoinRequest) (int, error) {
			return 1, nil
		},
	}
	limiter := ratelimit.NewJoinRateLimiter(2, time.Minute)
	defer limiter.Close()
	mux := newMux(NewPoolHandler(svc, limiter))

	do := func() int {
		body := strings.NewReader(`{"name":"Ada","phone":"+2348031234567"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/pools/A1B2C3D4/join", body)
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(); code != http.StatusCreated {
		t.Fatalf("first request status = %d, want 201", code)
	}
	if code := do(); code != http.StatusCreated {
		t.Fatalf("second request status = %d, want 201", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", code)
	}
}

func TestCloseHandlerForbidden(t *testing.T) {
	svc := &stubPoolService{
		closeFn: func(ctx context.Context, sessionID, callerID string) error {
			return pkg.ErrForbidden
		},
	}
	mux := newMux(NewPoolHandler(svc, nil))

	req := withOwner(httptest.NewRequest(http.MethodPost, "/api/pools/A1B2C3D4/close", nil), "intruder")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestExportHandler(t *testing.T) {
	svc := &stubPoolService{
		exportFn: func(ctx context.Context, sessionID, phone string) (string, error) {
			if phone != "+2348031234567" {
				t.Errorf("phone = %q", phone)
			}
			return "BEGIN:VCARD\r\nEND:VCARD\r\n", nil
		},
	}
	mux := newMux(NewPoolHandler(svc, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/pools/A1B2C3D4/export?phone=%2B2348031234567", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/vcard") {
		t.Errorf("content-type = %q, want text/vcard", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "NexOra_Pool_A1B2C3D4.vcf") {
		t.Errorf("content-disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "BEGIN:VCARD") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestExportHandlerMissingPhone(t *testing.T) {
	mux := newMux(NewPoolHandler(&stubPoolService{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/pools/A1B2C3D4/export", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExportHandlerWindowExpired(t *testing.T) {
	svc := &stubPoolService{
		exportFn: func(ctx context.Context, sessionID, phone string) (string, error) {
			return "", fmt.Errorf("%w: download window has closed", pkg.ErrGone)
		},
	}
	mux := newMux(NewPoolHandler(svc, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/pools/A1B2C3D4/export?phone=%2B2348031234567", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", rec.Code)
	}
}
