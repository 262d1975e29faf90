package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ozanbudak/ikmesaj/models"
)

// TokenValidator, WebSocket handler'ın katılımcı token doğrulaması için
// kullandığı interface.
//
// services.TokenService yerine kendi interface'imizi tanımlıyoruz çünkü
// services paketi ws.EventPublisher'ı kullanıyor — ws → services import'u
// döngü oluştururdu. main.go'da tokenService bu interface'i implicit karşılar.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// UnreadSource, bağlantı kurulduğunda ready event'i için okunmamış özeti
// sağlayan interface. Her connect'te store'dan recompute edilir —
// reconnect ve process restart sonrası sayaç kurtarma noktası budur.
// Aynı circular dependency gerekçesiyle ws içinde tanımlıdır.
type UnreadSource interface {
	SnapshotFor(ctx context.Context, participantID string) (*models.UnreadSummary, error)
}

// upgrader, HTTP bağlantısını WebSocket bağlantısına yükseltir.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin: Production'da domain kontrolü yapılmalı.
	// Şimdilik tüm origin'lere izin veriyoruz (development için).
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler, WebSocket bağlantı isteklerini işleyen HTTP handler'ı.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
	unreadSource   UnreadSource
}

// NewHandler, yeni bir WebSocket handler oluşturur.
func NewHandler(hub *Hub, tokenValidator TokenValidator, unreadSource UnreadSource) *Handler {
	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
		unreadSource:   unreadSource,
	}
}

// HandleConnection, HTTP bağlantısını WebSocket'e yükseltir ve session'ı
// Hub'a kaydeder.
//
// Tarayıcı WebSocket'inde Authorization header göndermek zordur, token
// query parameter olarak gelir: ws://server/ws?token=JWT
//
// Flow:
// 1. Query'den token al, doğrula → principal
// 2. HTTP → WebSocket upgrade
// 3. Client oluştur, Hub'a kaydet
// 4. Unread özetini store'dan recompute et, ready event'i gönder
// 5. WritePump goroutine'ini başlat, ReadPump mevcut goroutine'de blokla
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokenValidator.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for participant %s: %v", claims.ParticipantID, err)
		return
	}

	client := &Client{
		hub:       h.hub,
		conn:      conn,
		sessionID: uuid.NewString(),
		principal: models.Principal{
			ParticipantID: claims.ParticipantID,
			DisplayName:   claims.DisplayName,
			Role:          claims.Role,
		},
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		joined: make(map[string]bool),
	}

	h.hub.register <- client

	// Ready: unread sayaçları her bağlantıda store'dan yeniden türetilir.
	// Recompute hatası bağlantıyı düşürmez — client refetch ile toparlar.
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	summary, err := h.unreadSource.SnapshotFor(ctx, claims.ParticipantID)
	cancel()
	if err != nil {
		log.Printf("[ws] unread snapshot failed for participant %s: %v", claims.ParticipantID, err)
	}
	client.sendEvent(Event{
		Op: OpReady,
		Data: ReadyData{
			SessionID: client.sessionID,
			Unread:    summary,
		},
	})

	go client.WritePump()
	client.ReadPump() // Bağlantı kapanana kadar bloklar
}
