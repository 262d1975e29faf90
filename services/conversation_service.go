// ConversationService — konuşma erişimi ve inbox listesi.
//
// Konuşma satırları dış başvuru sistemi tarafından oluşturulur (başvuru
// yapıldığında); bu servis yalnızca okur. GetForParticipant hem HTTP
// middleware hem WebSocket callback'leri tarafından her event'te çağrıldığı
// için kayıtlar kısa TTL ile cache'lenir — membership kontrolü çoğu zaman
// DB'ye inmeden yanıtlanır.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/pkg"
	"github.com/ozanbudak/ikmesaj/pkg/cache"
	"github.com/ozanbudak/ikmesaj/repository"
)

const (
	conversationCacheTTL     = 30 * time.Second
	conversationCacheCleanup = 5 * time.Minute
)

// ConversationService, konuşma okuma operasyonları.
type ConversationService interface {
	// GetForParticipant, konuşmayı yükler ve katılımcının rolünü çözer.
	// Katılımcı konuşmanın tarafı değilse ErrForbidden döner.
	GetForParticipant(ctx context.Context, conversationID, participantID string) (*models.Conversation, models.Role, error)

	// ListForParticipant, katılımcının inbox'ını döner: tüm konuşmaları
	// okunmamış sayaçlarıyla birleştirilmiş, son mesajı en yeni olan önde.
	ListForParticipant(ctx context.Context, participantID string) ([]models.ConversationSummary, error)

	// Close, cache'in arka plan goroutine'ini durdurur.
	Close()
}

type conversationService struct {
	convRepo repository.ConversationRepository
	unread   UnreadService

	// convCache: conversationID → kayıt. Konuşma satırları oluşturulduktan
	// sonra pratikte immutable olduğu için kısa TTL güvenlidir.
	convCache *cache.TTLCache[string, *models.Conversation]
}

// NewConversationService, konuşma servisini oluşturur.
func NewConversationService(convRepo repository.ConversationRepository, unread UnreadService) ConversationService {
	return &conversationService{
		convRepo:  convRepo,
		unread:    unread,
		convCache: cache.New[string, *models.Conversation](conversationCacheTTL, conversationCacheCleanup),
	}
}

func (s *conversationService) GetForParticipant(ctx context.Context, conversationID, participantID string) (*models.Conversation, models.Role, error) {
	conversation, ok := s.convCache.Get(conversationID)
	if !ok {
		var err error
		conversation, err = s.convRepo.GetByID(ctx, conversationID)
		if err != nil {
			return nil, "", err
		}
		s.convCache.Set(conversationID, conversation)
	}

	role, member := conversation.RoleOf(participantID)
	if !member {
		return nil, "", fmt.Errorf("%w: not a participant of this conversation", pkg.ErrForbidden)
	}

	return conversation, role, nil
}

func (s *conversationService) ListForParticipant(ctx context.Context, participantID string) ([]models.ConversationSummary, error) {
	conversations, err := s.convRepo.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	summary, err := s.unread.Summary(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unread summary: %w", err)
	}

	result := make([]models.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		result = append(result, models.ConversationSummary{
			Conversation: conv,
			UnreadCount:  summary.PerConversation[conv.ID],
		})
	}

	return result, nil
}

func (s *conversationService) Close() {
	s.convCache.Close()
}
