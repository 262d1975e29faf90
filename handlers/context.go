// Package handlers, HTTP endpoint'lerini barındırır.
//
// Handler'lar iş mantığı içermez — request'i parse eder, service'i çağırır,
// sonucu pkg.JSON/pkg.Error ile yazar. Tüm iş mantığı service katmanındadır.
package handlers

import (
	"net/http"

	"github.com/ozanbudak/ikmesaj/models"
)

// contextKey, context.Value çakışmalarını önlemek için özel tip.
// string yerine özel tip kullanmak, başka paketlerin aynı key ile
// yanlışlıkla değer ezmesini engeller.
type contextKey string

// PrincipalContextKey, auth middleware'ının doğrulanmış katılımcıyı
// context'e koyduğu key.
const PrincipalContextKey contextKey = "principal"

// ConversationContextKey, conversation middleware'ının membership'i
// doğrulanmış konuşmayı context'e koyduğu key.
const ConversationContextKey contextKey = "conversation"

// principalFrom, context'ten doğrulanmış katılımcıyı okur.
func principalFrom(r *http.Request) (models.Principal, bool) {
	principal, ok := r.Context().Value(PrincipalContextKey).(models.Principal)
	return principal, ok
}

// conversationFrom, context'ten membership'i doğrulanmış konuşmayı okur.
func conversationFrom(r *http.Request) (*models.Conversation, bool) {
	conversation, ok := r.Context().Value(ConversationContextKey).(*models.Conversation)
	return conversation, ok
}
