// Package ratelimit — JoinRateLimiter: herkese açık join endpoint'i için
// IP bazlı rate limiting.
//
// Join endpoint'i auth gerektirmez — tek kişinin script ile havuzu sahte
// kayıtlarla doldurmasına karşı ilk savunma hattı bu limiter'dır
// (ikincisi havuz başına telefon uniqueness'ı).
//
// Tasarım:
// - Her IP adresi için sliding window ile istek sayısı takip edilir.
// - Window süresi içinde maxAttempts aşılırsa istek reddedilir.
// - Background goroutine ile süresi dolmuş bucket'lar temizlenir.
//
// In-memory yeterli: tek instance deploy, SQLite'a her istekte yazmak
// gereksiz I/O + contention yaratır.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// bucket, bir IP adresi için istek sayacı ve window başlangıç zamanı tutar.
type bucket struct {
	count       int
	windowStart time.Time
}

// JoinRateLimiter, IP bazlı join rate limiting.
//
// Kullanım:
//
//	limiter := NewJoinRateLimiter(10, time.Minute)
//	// Join handler'da:
//	if !limiter.Allow(ip) { return 429 }
type JoinRateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	maxAttempts int
	window      time.Duration
	stopCleanup chan struct{}
}

// NewJoinRateLimiter, yeni rate limiter oluşturur ve arka plan temizleme
// goroutine'ini başlatır.
//
// maxAttempts: Pencere başına izin verilen istek (ör: 10).
// window: Pencere süresi (ör: time.Minute → dakikada 10 join).
func NewJoinRateLimiter(maxAttempts int, window time.Duration) *JoinRateLimiter {
	rl := &JoinRateLimiter{
		buckets:     make(map[string]*bucket),
		maxAttempts: maxAttempts,
		window:      window,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow, verilen IP'nin isteğine izin verilip verilmediğini kontrol eder.
// false dönerse caller 429 dönmeli. Her çağrı sayacı artırır.
func (rl *JoinRateLimiter) Allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[ip]
	if !exists {
		rl.buckets[ip] = &bucket{count: 1, windowStart: now}
		return true
	}

	if now.Sub(b.windowStart) > rl.window {
		// Yeni pencere başlat — eski sayaç sıfırlanır
		b.count = 1
		b.windowStart = now
		return true
	}

	b.count++
	return b.count <= rl.maxAttempts
}

// Close, arka plan temizleme goroutine'ini durdurur.
func (rl *JoinRateLimiter) Close() {
	close(rl.stopCleanup)
}

// cleanupLoop, her dakika süresi dolmuş bucket'ları map'ten siler.
// Uzun süre çalışan sunucuda bellek sızıntısını önler.
func (rl *JoinRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCleanup:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for ip, b := range rl.buckets {
				if now.Sub(b.windowStart) > rl.window {
					delete(rl.buckets, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// ClientIP, request'in kaynak IP'sini döner.
// Reverse proxy arkasında X-Forwarded-For'un ilk değeri kullanılır,
// yoksa RemoteAddr'dan port ayıklanır.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
