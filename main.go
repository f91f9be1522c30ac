// Package main, vcfpool backend uygulamasının giriş noktasıdır.
//
// Bu dosyanın görevi — Dependency Injection "wire-up":
//   1. Config'i yükle
//   2. Database'i başlat (embedded migration'larla)
//   3. Repository'yi oluştur
//   4. WebSocket Hub'ı başlat
//   5. Scheduler'ı oluştur
//   6. Service'leri oluştur, scheduler callback'ini bağla
//   7. Handler'ları ve middleware'ı oluştur
//   8. HTTP router'ı kur, route'ları bağla
//   9. CORS yapılandır
//  10. Kaçırılmış kapanışları recover et, sweep'i başlat
//  11. HTTP Server'ı başlat
//  12. Graceful shutdown
//
// Global değişken YOK — her şey bu fonksiyonda oluşturulup birbirine bağlanıyor.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/nexora/vcfpool/config"
	"github.com/nexora/vcfpool/database"
	"github.com/nexora/vcfpool/handlers"
	"github.com/nexora/vcfpool/middleware"
	"github.com/nexora/vcfpool/pkg/push"
	"github.com/nexora/vcfpool/pkg/ratelimit"
	"github.com/nexora/vcfpool/repository"
	"github.com/nexora/vcfpool/services"
	"github.com/nexora/vcfpool/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] vcfpool server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	// ─── 2. Database ───
	// Migration'lar binary'ye gömülü — deploy tek dosyadır, migrations/
	// dizinini yanında taşımak gerekmez.
	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] failed to open embedded migrations: %v", err)
	}

	db, err := database.New(cfg.Database.Path, migrationsFS)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repository Layer ───
	sessionRepo := repository.NewSQLiteSessionRepo(db.Conn)

	// ─── 4. WebSocket Hub ───
	//
	// Hub, havuz başına gruplanmış WebSocket bağlantılarını yöneten merkezi
	// yapıdır. `go hub.Run()` ayrı bir goroutine'de event loop başlatır.
	// Hub aynı zamanda EventPublisher interface'ini implement eder —
	// service'ler hub'a doğrudan bağımlı olmak yerine interface üzerinden erişir.
	hub := ws.NewHub()
	go hub.Run()

	// ─── 5. Scheduler ───
	scheduler := services.NewScheduler(sessionRepo)

	// ─── 6. Service Layer ───
	authService := services.NewAuthService(cfg.JWT.Secret)

	var pushSender push.Sender
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSender = push.NewWebPushSender(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subject)
	} else {
		log.Println("[main] VAPID keys not configured, push notifications disabled")
		pushSender = push.NewDisabledSender()
	}

	poolService := services.NewPoolService(
		sessionRepo,
		hub,
		pushSender,
		scheduler,
		cfg.Server.PublicURL,
		cfg.Export.WindowHours,
	)

	// Scheduler callback'i — timer dolduğunda havuzu kapat.
	//
	// Neden callback, neden burada (main.go'da)?
	// Scheduler timer'ları yönetir ama kapanış iş mantığı PoolService'te.
	// Scheduler'ın PoolService'e bağımlı olmasını istemiyoruz — PoolService
	// zaten Scheduler'a (SessionTimer olarak) bağımlı, doğrudan referans
	// dependency cycle yaratırdı. main.go wire-up noktasıdır.
	scheduler.OnExpire(func(sessionID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := poolService.CloseSession(ctx, sessionID); err != nil {
			log.Printf("[main] failed to close expired session %s: %v", sessionID, err)
		}
	})

	// ─── 7. Handler Layer ───
	joinLimiter := ratelimit.NewJoinRateLimiter(10, time.Minute)
	defer joinLimiter.Close()

	poolHandler := handlers.NewPoolHandler(poolService, joinLimiter)
	wsHandler := ws.NewHandler(hub, poolService)

	authMiddleware := middleware.NewAuthMiddleware(authService)

	// ─── 8. HTTP Router ───
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"vcfpool"}`)
	})

	// Pools — create/list sahibine özel, özet ve katılım herkese açık
	mux.Handle("POST /api/pools", authMiddleware.Require(http.HandlerFunc(poolHandler.Create)))
	mux.Handle("GET /api/pools", authMiddleware.Require(http.HandlerFunc(poolHandler.ListMine)))
	mux.HandleFunc("GET /api/pools/{id}", poolHandler.Summary)
	mux.HandleFunc("POST /api/pools/{id}/join", poolHandler.Join)
	mux.HandleFunc("POST /api/pools/{id}/subscribe", poolHandler.Subscribe)
	mux.Handle("GET /api/pools/{id}/participants", authMiddleware.Require(http.HandlerFunc(poolHandler.Participants)))
	mux.Handle("POST /api/pools/{id}/close", authMiddleware.Require(http.HandlerFunc(poolHandler.Close)))

	// Export — auth YOK: katılımcılar anonim, yetki telefon numarasıyla kanıtlanır
	mux.HandleFunc("GET /api/pools/{id}/export", poolHandler.Export)

	// WebSocket — havuz ID'si query parameter ile gelir: /ws?session=A1B2C3D4
	// Auth gerekmez: canlı sayaç herkese açık bilgidir, PII taşımaz.
	mux.HandleFunc("GET /ws", wsHandler.HandleConnection)

	// ─── 9. CORS ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := corsHandler.Handler(mux)

	// ─── 10. Recovery + Sweep ───
	//
	// Restart sırasında kaybolan in-memory timer'lar DB'den yeniden kurulur;
	// süresi geçmiş aktif havuzlar hemen kapatılır. Sweep, timer'ı her nasılsa
	// kaçan havuzlar için dakikalık güvenlik ağıdır.
	if err := scheduler.Recover(context.Background()); err != nil {
		log.Fatalf("[main] failed to recover session timers: %v", err)
	}
	scheduler.Start()

	// ─── 11. HTTP Server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── 12. Graceful Shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	// Önce timer'ları durdur — shutdown sırasında yeni kapanış tetiklenmesin.
	// Sonra WebSocket bağlantılarını kapat, en son HTTP server'ı durdur
	// (mevcut request'lerin bitmesi için 5sn timeout).
	scheduler.Stop()
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}
