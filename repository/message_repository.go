package repository

import (
	"context"
	"time"

	"github.com/ozanbudak/ikmesaj/models"
)

// MessageRepository, mesaj store işlemleri için interface.
//
// ListByConversation cursor-based pagination kullanır:
// beforeID = bu ID'den önceki mesajları getir (boşsa en yenilerden başla).
// Dönen dilim her zaman created_at ASC sıralıdır (en eski başta) —
// store'un yazma sırası, broadcast sırasının da kaynağıdır.
//
// CountUnread, katılımcının alıcı olduğu TÜM konuşmalardaki okunmamış
// sayıları tek bir gruplu taramayla döner. Login başına konuşma sayısı
// kadar ayrı sorgu atılmaz.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID string, beforeID string, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, id string, readAt time.Time) (*models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID string, recipientRole models.Role, readAt time.Time) ([]string, error)
	CountUnread(ctx context.Context, participantID string) (map[string]int, error)
}

// ConversationRepository, konuşma store işlemleri için interface.
//
// Create, dış başvuru sistemi adına vardır — konuşma satırları başvuru
// oluşturulduğunda açılır; mesajlaşma API'si konuşmaları sadece okur.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListByParticipant(ctx context.Context, participantID string) ([]models.Conversation, error)
}
