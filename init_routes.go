// Package main — HTTP route registration.
//
// initRoutes, tüm API endpoint'lerini mux'a bağlar.
//
// Middleware chain helper'ları:
//   - auth: erişim token doğrulaması
//   - authConv: auth + {id} path'indeki konuşma için membership kontrolü
package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ozanbudak/ikmesaj/config"
	"github.com/ozanbudak/ikmesaj/handlers"
	"github.com/ozanbudak/ikmesaj/middleware"
	"github.com/ozanbudak/ikmesaj/pkg/ratelimit"
	"github.com/ozanbudak/ikmesaj/services"
	"github.com/ozanbudak/ikmesaj/ws"
)

// routeDeps, initRoutes'un ihtiyaç duyduğu tüm dependency'leri taşır.
// main()'deki wire-up'ı tek parametrede toplamak imza şişmesini önler.
type routeDeps struct {
	cfg                 *config.Config
	tokenService        services.TokenService
	conversationService services.ConversationService
	messageService      services.MessageService
	unreadService       services.UnreadService
	uploadService       services.UploadService
	rateLimiter         *ratelimit.MessageRateLimiter
	wsHandler           *ws.Handler
}

// initRoutes, middleware chain'i kurar ve tüm endpoint'leri mux'a bağlar.
func initRoutes(mux *http.ServeMux, deps *routeDeps) {
	// ─── Handler Layer ───
	conversationHandler := handlers.NewConversationHandler(deps.conversationService)
	messageHandler := handlers.NewMessageHandler(deps.messageService, deps.rateLimiter)
	unreadHandler := handlers.NewUnreadHandler(deps.unreadService)
	uploadHandler := handlers.NewUploadHandler(deps.uploadService, deps.cfg.Upload.MaxSize)

	// ─── Middleware ───
	authMw := middleware.NewAuthMiddleware(deps.tokenService)
	convMw := middleware.NewConversationMiddleware(deps.conversationService)

	// ─── Middleware Chain Helpers ───
	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(http.HandlerFunc(handler))
	}
	authConv := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(convMw.Require(http.HandlerFunc(handler)))
	}

	// Health check
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"ikmesaj"}`)
	})

	// Conversations — inbox ve tekil konuşma
	mux.Handle("GET /api/conversations", auth(conversationHandler.List))
	mux.Handle("GET /api/conversations/{id}", authConv(conversationHandler.Get))

	// Messages — backlog, gönderim ve okundu işaretleme
	mux.Handle("GET /api/conversations/{id}/messages", authConv(messageHandler.List))
	mux.Handle("POST /api/conversations/{id}/messages", authConv(messageHandler.Send))
	mux.Handle("POST /api/conversations/{id}/read", authConv(messageHandler.MarkConversationRead))
	mux.Handle("POST /api/messages/{id}/read", auth(messageHandler.MarkRead))

	// Unread — badge polling için WS'siz erişim
	mux.Handle("GET /api/unread", auth(unreadHandler.Summary))

	// Upload — sesli mesaj blob'ları
	mux.Handle("POST /api/uploads", auth(uploadHandler.Upload))

	// Static file serving — yüklenen ses dosyalarına erişim.
	//
	// http.StripPrefix: URL'den "/api/uploads/" kısmını çıkarır.
	// http.FileServer: Kalan path'i upload dizininde dosya olarak arar.
	//
	// Path traversal koruması: http.FileServer zaten ".." path'lerini
	// reddeder; ek olarak subdirectory içeren path'ler de reddedilir.
	uploadsHandler := http.StripPrefix("/api/uploads/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/") || strings.Contains(r.URL.Path, "\\") {
			http.NotFound(w, r)
			return
		}
		http.FileServer(http.Dir(deps.cfg.Upload.Dir)).ServeHTTP(w, r)
	}))
	mux.Handle("GET /api/uploads/", uploadsHandler)

	// WebSocket — token query parameter ile authenticate edilir.
	//
	// Neden auth middleware kullanmıyoruz?
	// WebSocket upgrade sırasında tarayıcılar custom HTTP header gönderemez.
	// Token URL query parameter olarak gönderilir: ws://server/ws?token=TOKEN
	// WS handler kendi içinde token doğrulaması yapar.
	mux.HandleFunc("GET /ws", deps.wsHandler.HandleConnection)
}
