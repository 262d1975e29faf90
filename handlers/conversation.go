package handlers

import (
	"net/http"

	"github.com/ozanbudak/ikmesaj/pkg"
	"github.com/ozanbudak/ikmesaj/services"
)

// ConversationHandler, konuşma endpoint'lerini yöneten struct.
type ConversationHandler struct {
	conversationService services.ConversationService
}

// NewConversationHandler, constructor.
func NewConversationHandler(conversationService services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// List godoc
// GET /api/conversations
// Katılımcının inbox'ını döner: tüm konuşmalar, okunmamış sayaçlarıyla,
// son mesajı en yeni olan önde.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "principal not found in context")
		return
	}

	summaries, err := h.conversationService.ListForParticipant(r.Context(), principal.ParticipantID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, summaries)
}

// Get godoc
// GET /api/conversations/{id}
// Tek konuşmanın detayını döner. Membership kontrolü middleware'de yapılır.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversation, ok := conversationFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusInternalServerError, "conversation not found in context")
		return
	}

	pkg.JSON(w, http.StatusOK, conversation)
}
