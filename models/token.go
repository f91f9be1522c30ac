package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims, JWT access token'ın içindeki veriler (payload).
//
// Token'ı bu servis üretmez — kayıt/login dış auth servisinin işidir.
// Burada sadece imza doğrulanır ve UserID (havuz sahibinin opak kimliği)
// okunur. Struct models paketinde tanımlanır çünkü birden fazla katman
// (services, middleware) tarafından kullanılır.
type TokenClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
