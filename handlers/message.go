package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/pkg"
	"github.com/ozanbudak/ikmesaj/pkg/ratelimit"
	"github.com/ozanbudak/ikmesaj/services"
)

// MessageHandler, mesaj endpoint'lerini yöneten struct.
type MessageHandler struct {
	messageService services.MessageService
	rateLimiter    *ratelimit.MessageRateLimiter
}

// NewMessageHandler, constructor.
func NewMessageHandler(messageService services.MessageService, rateLimiter *ratelimit.MessageRateLimiter) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		rateLimiter:    rateLimiter,
	}
}

// List godoc
// GET /api/conversations/{id}/messages?before=ID&limit=50&mark_read=true
// Konuşma geçmişini cursor-based pagination ile döner.
//
// Query parametreleri:
// - before: Bu mesaj ID'sinden önceki mesajları getir (boşsa en yenilerden başla)
// - limit: Kaç mesaj dönsün (default 50, max 100)
// - mark_read: true ise karşı tarafın okunmamış mesajları tek geçişte
//   okundu işaretlenir (konuşma açılışı bu parametreyle çağrılır)
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "principal not found in context")
		return
	}
	conversation, ok := conversationFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusInternalServerError, "conversation not found in context")
		return
	}

	beforeID := r.URL.Query().Get("before")

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	markRead := r.URL.Query().Get("mark_read") == "true"

	page, err := h.messageService.Backlog(r.Context(), conversation, principal, beforeID, limit, markRead)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, page)
}

// Send godoc
// POST /api/conversations/{id}/messages
// Yeni mesaj gönderir.
//
// JSON body: { "type": "text"|"audio", "content": "..." }
// Yanıt, store-assigned id ve created_at içeren kanonik mesajdır —
// client bunu reconciliation için saklar.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "principal not found in context")
		return
	}
	conversation, ok := conversationFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusInternalServerError, "conversation not found in context")
		return
	}

	// Spam koruması — limit aşıldıysa Retry-After ile 429
	if !h.rateLimiter.Allow(principal.ParticipantID) {
		w.Header().Set("Retry-After", strconv.Itoa(h.rateLimiter.CooldownSeconds(principal.ParticipantID)))
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests, "too many messages, slow down")
		return
	}

	var req models.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.messageService.Send(r.Context(), conversation, principal, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, message)
}

// MarkRead godoc
// POST /api/messages/{id}/read
// Tek bir mesajı okundu işaretler. Idempotent.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "principal not found in context")
		return
	}

	messageID := r.PathValue("id")

	message, err := h.messageService.MarkMessageRead(r.Context(), principal, messageID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, message)
}

// MarkConversationRead godoc
// POST /api/conversations/{id}/read
// Konuşmadaki karşı taraf mesajlarının tamamını okundu işaretler.
func (h *MessageHandler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "principal not found in context")
		return
	}
	conversation, ok := conversationFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusInternalServerError, "conversation not found in context")
		return
	}

	if err := h.messageService.MarkConversationRead(r.Context(), conversation, principal); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
