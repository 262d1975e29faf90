package middleware

import (
	"context"
	"net/http"

	"github.com/ozanbudak/ikmesaj/handlers"
	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/pkg"
	"github.com/ozanbudak/ikmesaj/services"
)

// ConversationMiddleware, {id} path parametreli konuşma endpoint'lerinde
// membership kontrolü yapar ve konuşmayı context'e koyar.
//
// AuthMiddleware'dan SONRA zincire girmelidir — Principal'ı context'ten okur.
// Konuşma yoksa 404, katılımcı konuşmanın tarafı değilse 403 döner;
// handler'lar membership'i tekrar kontrol etmek zorunda kalmaz.
type ConversationMiddleware struct {
	conversationService services.ConversationService
}

// NewConversationMiddleware, constructor.
func NewConversationMiddleware(conversationService services.ConversationService) *ConversationMiddleware {
	return &ConversationMiddleware{conversationService: conversationService}
}

// Require, konuşma erişimi zorunlu kılan middleware.
func (m *ConversationMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := r.Context().Value(handlers.PrincipalContextKey).(models.Principal)
		if !ok {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "principal not found in context")
			return
		}

		conversationID := r.PathValue("id")
		if conversationID == "" {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "conversation id required")
			return
		}

		conversation, _, err := m.conversationService.GetForParticipant(r.Context(), conversationID, principal.ParticipantID)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), handlers.ConversationContextKey, conversation)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
