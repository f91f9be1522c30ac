// Package middleware, HTTP request pipeline'ına eklenen ara katmanları barındırır.
//
// Middleware zincir şeklinde çalışır: Auth → Handler.
// Middleware kendi işini yapar (ör: token doğrula), sonra next'i çağırır.
// Hata varsa next'i çağırmaz — request burada durur.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nexora/vcfpool/handlers"
	"github.com/nexora/vcfpool/pkg"
	"github.com/nexora/vcfpool/services"
)

// AuthMiddleware, JWT token doğrulama middleware'ı.
//
// Kimlik servisi harici: token'lar dışarıda basılır, burada sadece imza
// doğrulanır ve subject (sahip ID'si) context'e taşınır. Kullanıcı tablosu
// yoktur — token geçerliyse sahip "var" kabul edilir.
type AuthMiddleware struct {
	authService services.AuthService
}

// NewAuthMiddleware, constructor.
func NewAuthMiddleware(authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Require, JWT token zorunlu kılan middleware.
// Token yoksa veya geçersizse → 401 Unauthorized.
//
// HTTP header formatı: Authorization: Bearer <token>
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := m.authService.ValidateAccessToken(tokenString)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		// Sahip ID'sini context'e ekle — downstream handler'lar
		// r.Context().Value(handlers.OwnerIDContextKey) ile erişir.
		ctx := context.WithValue(r.Context(), handlers.OwnerIDContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
