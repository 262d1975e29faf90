package handlers

import (
	"net/http"

	"github.com/ozanbudak/ikmesaj/pkg"
	"github.com/ozanbudak/ikmesaj/services"
)

// UnreadHandler, okunmamış özet endpoint'ini yöneten struct.
type UnreadHandler struct {
	unreadService services.UnreadService
}

// NewUnreadHandler, constructor.
func NewUnreadHandler(unreadService services.UnreadService) *UnreadHandler {
	return &UnreadHandler{unreadService: unreadService}
}

// Summary godoc
// GET /api/unread
// Katılımcının konuşma başına ve toplam okunmamış sayaçlarını döner.
// WebSocket bağlantısı olmayan client'lar (badge polling) bunu kullanır.
func (h *UnreadHandler) Summary(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "principal not found in context")
		return
	}

	summary, err := h.unreadService.Summary(r.Context(), principal.ParticipantID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, summary)
}
