// Package services — iş mantığı katmanı.
//
// AuthService: JWT access token doğrulaması.
//
// Token üretimi (register/login) bu servisin işi DEĞİLDİR — yaratıcı
// kimliği, imzalama secret'ını paylaşan dış auth servisinden gelir.
// Burada sadece imza + expiry doğrulanır ve claims okunur.
package services

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nexora/vcfpool/models"
	"github.com/nexora/vcfpool/pkg"
)

// AuthService, token doğrulama interface'i.
type AuthService interface {
	// ValidateAccessToken, JWT access token'ı doğrular ve claims'i döner.
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

type authService struct {
	jwtSecret []byte
}

// NewAuthService, constructor.
func NewAuthService(jwtSecret string) AuthService {
	return &authService{jwtSecret: []byte(jwtSecret)}
}

// ValidateAccessToken, JWT access token'ı doğrular ve claims'i döner.
// Algoritma HMAC ailesiyle sınırlıdır — "alg: none" ve RS/HS karıştırma
// saldırılarına karşı imza metodu açıkça kontrol edilir.
func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token missing user_id", pkg.ErrUnauthorized)
	}

	return claims, nil
}
