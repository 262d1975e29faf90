// Package main, ikmesaj backend uygulamasının giriş noktasıdır.
//
// ikmesaj, İK platformunun işveren ↔ aday gerçek zamanlı mesajlaşma
// servisidir. Her konuşma bir iş başvurusuna bağlıdır; kimlikler ve
// başvurular ana platformda yaşar, bu servis yalnızca mesajlaşma
// alt sistemini işletir.
//
// Bu dosyanın görevi — Dependency Injection "wire-up":
//  1. Config'i yükle
//  2. Database'i başlat
//  3. Upload dizinini oluştur
//  4. Repository'leri oluştur (DB bağlantısı ile)
//  5. WebSocket Hub'ı başlat
//  6. Service'leri oluştur (repository'ler + hub ile)
//  7. Hub callback'lerini bağla
//  8. Handler'ları oluştur, route'ları bağla
//  9. CORS yapılandır
// 10. HTTP Server'ı başlat
// 11. Graceful shutdown
//
// Global değişken YOK — her şey bu fonksiyonda oluşturulup birbirine bağlanıyor.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/ozanbudak/ikmesaj/config"
	"github.com/ozanbudak/ikmesaj/database"
	"github.com/ozanbudak/ikmesaj/pkg/email"
	"github.com/ozanbudak/ikmesaj/pkg/ratelimit"
	"github.com/ozanbudak/ikmesaj/repository"
	"github.com/ozanbudak/ikmesaj/services"
	"github.com/ozanbudak/ikmesaj/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] ikmesaj server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (addr=%s)", cfg.Server.Addr())

	// ─── 2. Database ───
	// Migration'lar binary'ye gömülüdür — deploy'da ayrı dosya taşınmaz.
	db, err := database.New(cfg.Database.Path, database.EmbeddedMigrations)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Upload Dizini ───
	if err := os.MkdirAll(cfg.Upload.Dir, 0755); err != nil {
		log.Fatalf("[main] failed to create upload directory: %v", err)
	}

	// ─── 4. Repository Layer ───
	conversationRepo := repository.NewSQLiteConversationRepo(db.Conn)
	messageRepo := repository.NewSQLiteMessageRepo(db.Conn)

	// ─── 5. WebSocket Hub ───
	//
	// Hub, tüm WebSocket bağlantılarını ve konuşma odalarını yöneten
	// merkezi yapıdır. `go hub.Run()` ayrı bir goroutine'de event loop
	// başlatır. Hub aynı zamanda EventPublisher ve PresenceTracker
	// interface'lerini implement eder — service'ler hub'a doğrudan
	// bağımlı olmak yerine interface üzerinden erişir.
	hub := ws.NewHub()
	go hub.Run()

	// ─── 6. Service Layer ───

	// Email bildirimi opsiyonel — API key yoksa kapalı çalışır.
	var emailSender email.EmailSender
	if cfg.Email.ResendAPIKey != "" {
		emailSender = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, cfg.Email.AppURL)
		log.Println("[main] email notifications enabled")
	} else {
		log.Println("[main] RESEND_API_KEY not set, email notifications disabled")
	}

	tokenService := services.NewTokenService(cfg.JWT.Secret)
	unreadService := services.NewUnreadService(messageRepo, hub, hub, emailSender, cfg.Chat.NotifyThrottle)
	defer unreadService.Close()

	conversationService := services.NewConversationService(conversationRepo, unreadService)
	defer conversationService.Close()

	typingService := services.NewTypingService(hub, cfg.Chat.TypingExpiry)
	defer typingService.Close()

	messageService := services.NewMessageService(messageRepo, conversationRepo, hub, typingService, unreadService)
	uploadService := services.NewUploadService(cfg.Upload.Dir, cfg.Upload.MaxSize)

	// ─── 7. Hub Callback'leri ───
	registerHubCallbacks(hub, conversationService, messageService, typingService)

	// ─── 8. Router ───
	rateLimiter := ratelimit.NewMessageRateLimiter(5, 5*time.Second, 15*time.Second)
	defer rateLimiter.Close()

	wsHandler := ws.NewHandler(hub, tokenService, unreadService)

	mux := http.NewServeMux()
	initRoutes(mux, &routeDeps{
		cfg:                 cfg,
		tokenService:        tokenService,
		conversationService: conversationService,
		messageService:      messageService,
		unreadService:       unreadService,
		uploadService:       uploadService,
		rateLimiter:         rateLimiter,
		wsHandler:           wsHandler,
	})

	// ─── 9. CORS ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	handler := corsHandler.Handler(mux)

	// ─── 10. HTTP Server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── 11. Graceful Shutdown ───
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

	// Önce WebSocket bağlantılarını kapat, sonra HTTP server'ı —
	// yeni request kabulü durur, mevcut request'ler bitene kadar beklenir.
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}
