// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
// Her alt bölüm ayrı bir struct — her struct tek bir concern'ü temsil eder.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Push     PushConfig
	Export   ExportConfig
	CORS     CORSConfig
}

// ServerConfig, HTTP server ayarları.
type ServerConfig struct {
	Host string
	Port int

	// PublicURL, join/download linklerinde kullanılan dış adres
	// (ör: https://pool.nexora.app). Push bildirimi payload'ındaki
	// deep link bu adresten üretilir.
	PublicURL string
}

// DatabaseConfig, SQLite database ayarları.
type DatabaseConfig struct {
	Path string // SQLite dosya yolu (ör: ./data/vcfpool.db)
}

// JWTConfig, JWT token ayarları.
//
// Token üretimi bu serviste değildir — yaratıcı kimliği dış auth
// servisinden gelir. Burada sadece imza doğrulaması yapılır,
// bu yüzden secret iki servis arasında paylaşılır.
type JWTConfig struct {
	Secret string // Token imzalama anahtarı — GİZLİ TUTULMALI
}

// PushConfig, Web Push (VAPID) ayarları.
// Anahtarlar bir kez üretilip env'e konur — tarayıcı subscription'ları
// public key'e bağlıdır, anahtar değişirse tüm subscription'lar geçersiz olur.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string // mailto: veya https: — push servisine iletilir
}

// ExportConfig, VCF export penceresi ayarları.
type ExportConfig struct {
	WindowHours int // Kapanıştan sonra export'a izin verilen süre (varsayılan: 48)
}

// CORSConfig, izin verilen origin listesi.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler (development kolaylığı için).
func Load() (*Config, error) {
	// .env dosyasını yükle — dosya yoksa hata vermez, sessizce devam eder.
	// Production'da bu dosya olmaz, gerçek env variable'lar kullanılır.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	windowHours, err := strconv.Atoi(getEnv("EXPORT_WINDOW_HOURS", "48"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXPORT_WINDOW_HOURS: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "0.0.0.0"),
			Port:      port,
			PublicURL: getEnv("PUBLIC_URL", "http://localhost:9090"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/vcfpool.db"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
		},
		Push: PushConfig{
			VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
			Subject:         getEnv("VAPID_SUBJECT", "mailto:support@nexora.org.ng"),
		},
		Export: ExportConfig{
			WindowHours: windowHours,
		},
		CORS: CORSConfig{
			AllowedOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		},
	}

	return cfg, nil
}

// Addr, HTTP server'ın dinleyeceği adresi döner (ör: "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
