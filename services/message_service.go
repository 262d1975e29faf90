// MessageService — mesaj gönderimi, backlog okuma ve okundu işaretleme.
//
// Sıralama garantisi: aynı konuşmadaki persist + broadcast çiftleri
// per-conversation mutex altında serialize edilir. Böylece iki eşzamanlı
// gönderimde store sırası ile broadcast sırası asla çapraz olmaz —
// tüm canlı izleyiciler mesajları aynı sırada görür. Farklı konuşmalar
// birbirini bloklamaz.
//
// Broadcast her zaman persist'ten SONRA yapılır: client'a ulaşan her
// message_received, store'da kalıcılaşmış bir satırı temsil eder.
// Persist başarısızsa hiçbir event yayınlanmaz, caller hata alır.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/pkg"
	"github.com/ozanbudak/ikmesaj/repository"
	"github.com/ozanbudak/ikmesaj/ws"
)

const (
	defaultBacklogLimit = 50
	maxBacklogLimit     = 100
)

// MessageService, mesaj yaşam döngüsünün tamamını yönetir.
type MessageService interface {
	// Send, mesajı doğrular, kalıcılaştırır ve odaya yayınlar.
	// conversation, membership'i doğrulanmış olarak middleware'den gelir;
	// yine de principal'ın rolü burada tekrar çözülür.
	Send(ctx context.Context, conversation *models.Conversation, principal models.Principal, req *models.CreateMessageRequest) (*models.Message, error)

	// Backlog, konuşma geçmişini kronolojik sırada, cursor-based döner.
	// markRead true ise karşı tarafın okunmamış mesajları tek geçişte
	// okundu işaretlenir ve tek bir conversation_read event'i yayınlanır.
	Backlog(ctx context.Context, conversation *models.Conversation, principal models.Principal, beforeID string, limit int, markRead bool) (*models.MessagePage, error)

	// MarkMessageRead, tek bir mesajı okundu işaretler. Idempotent:
	// zaten okunmuş mesaj için event üretmez, mevcut halini döner.
	// Katılımcı kendi mesajını okundu işaretleyemez.
	MarkMessageRead(ctx context.Context, principal models.Principal, messageID string) (*models.Message, error)

	// MarkConversationRead, konuşmadaki karşı taraf mesajlarının tamamını
	// okundu işaretler (konuşma açılışı / active view geçişi).
	MarkConversationRead(ctx context.Context, conversation *models.Conversation, principal models.Principal) error
}

// conversationLocks, conversationID başına keyed mutex.
// Map hiç küçülmez — process'in servis ettiği konuşma sayısı ile sınırlıdır.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*sync.Mutex)}
}

// lock, konuşmanın mutex'ini kilitler ve unlock fonksiyonunu döner.
func (l *conversationLocks) lock(conversationID string) func() {
	l.mu.Lock()
	m, ok := l.locks[conversationID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[conversationID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

type messageService struct {
	messageRepo repository.MessageRepository
	convRepo    repository.ConversationRepository
	hub         ws.EventPublisher
	typing      TypingService
	unread      UnreadService
	locks       *conversationLocks
}

// NewMessageService, mesaj servisini oluşturur.
func NewMessageService(
	messageRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	hub ws.EventPublisher,
	typing TypingService,
	unread UnreadService,
) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		convRepo:    convRepo,
		hub:         hub,
		typing:      typing,
		unread:      unread,
		locks:       newConversationLocks(),
	}
}

func (s *messageService) Send(ctx context.Context, conversation *models.Conversation, principal models.Principal, req *models.CreateMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	role, ok := conversation.RoleOf(principal.ParticipantID)
	if !ok {
		return nil, fmt.Errorf("%w: not a participant of this conversation", pkg.ErrForbidden)
	}

	// Persist + broadcast, konuşma bazında serialize edilir.
	unlock := s.locks.lock(conversation.ID)
	defer unlock()

	message := &models.Message{
		ConversationID: conversation.ID,
		SenderRole:     role,
		SenderID:       principal.ParticipantID,
		SenderName:     principal.DisplayName,
		Type:           req.Type,
		Content:        req.Content,
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	// Mesaj göndermek implicit typing stop'tur — gösterge hâlâ açıksa söner.
	s.typing.Stop(conversation.ID, role)

	s.hub.BroadcastToConversation(conversation.ID, ws.Event{
		Op:   ws.OpMessageReceived,
		Data: message,
	})

	// Alıcı sayaç/notification/auto-read kararı; hâlâ lock altında —
	// auto-read'in message_marked_read event'i message_received'dan
	// sonra sıraya girer.
	s.unread.OnMessagePersisted(ctx, conversation, message)

	return message, nil
}

func (s *messageService) Backlog(ctx context.Context, conversation *models.Conversation, principal models.Principal, beforeID string, limit int, markRead bool) (*models.MessagePage, error) {
	role, ok := conversation.RoleOf(principal.ParticipantID)
	if !ok {
		return nil, fmt.Errorf("%w: not a participant of this conversation", pkg.ErrForbidden)
	}

	if limit <= 0 {
		limit = defaultBacklogLimit
	}
	if limit > maxBacklogLimit {
		limit = maxBacklogLimit
	}

	// limit+1 çekilir: fazladan satır geldiyse daha eski sayfa var demektir.
	messages, err := s.messageRepo.ListByConversation(ctx, conversation.ID, beforeID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		// Liste kronolojik (eskiden yeniye) — fazlalık en baştaki satırdır.
		messages = messages[1:]
	}

	if markRead {
		readIDs, err := s.markConversationRead(ctx, conversation, principal, role)
		if err != nil {
			return nil, err
		}

		// Dönen sayfadaki yeni okunmuş mesajların flag'lerini güncelle —
		// client ayrıca conversation_read event'ini beklemek zorunda kalmaz.
		if len(readIDs) > 0 {
			idSet := make(map[string]bool, len(readIDs))
			for _, id := range readIDs {
				idSet[id] = true
			}
			now := time.Now().UTC()
			for i := range messages {
				if idSet[messages[i].ID] && !messages[i].Read {
					messages[i].Read = true
					messages[i].ReadAt = &now
				}
			}
		}
	}

	return &models.MessagePage{Messages: messages, HasMore: hasMore}, nil
}

func (s *messageService) MarkMessageRead(ctx context.Context, principal models.Principal, messageID string) (*models.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	conversation, err := s.convRepo.GetByID(ctx, message.ConversationID)
	if err != nil {
		return nil, err
	}

	role, ok := conversation.RoleOf(principal.ParticipantID)
	if !ok {
		return nil, fmt.Errorf("%w: not a participant of this conversation", pkg.ErrForbidden)
	}
	if message.SenderRole == role {
		return nil, fmt.Errorf("%w: cannot mark own message as read", pkg.ErrBadRequest)
	}

	unlock := s.locks.lock(conversation.ID)
	defer unlock()

	// Idempotency kontrolü lock ALTINDA, taze satır üzerinden yapılır —
	// iki eşzamanlı çağrı aynı stale kopyaya bakıp event'i ve decrement'i
	// ikileyemez. Lock'tan önceki fetch sadece yetki kontrolleri içindi.
	message, err = s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.Read {
		return message, nil
	}

	updated, err := s.messageRepo.MarkRead(ctx, messageID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToConversation(conversation.ID, ws.Event{
		Op: ws.OpMessageMarkedRead,
		Data: ws.MessageReadData{
			ConversationID: conversation.ID,
			MessageID:      updated.ID,
		},
	})

	s.unread.OnMessageRead(principal.ParticipantID, conversation.ID)

	return updated, nil
}

func (s *messageService) MarkConversationRead(ctx context.Context, conversation *models.Conversation, principal models.Principal) error {
	role, ok := conversation.RoleOf(principal.ParticipantID)
	if !ok {
		return fmt.Errorf("%w: not a participant of this conversation", pkg.ErrForbidden)
	}

	_, err := s.markConversationRead(ctx, conversation, principal, role)
	return err
}

// markConversationRead, karşı tarafın okunmamış mesajlarını tek UPDATE ile
// okundu işaretler, etkilenen ID'leri tek bir conversation_read event'inde
// yayınlar ve sayacı sıfırlar. Mesaj yoksa event üretilmez ama sayaç yine
// sıfırlanır — stale in-memory sayaç bu yoldan da düzelir.
func (s *messageService) markConversationRead(ctx context.Context, conversation *models.Conversation, principal models.Principal, role models.Role) ([]string, error) {
	unlock := s.locks.lock(conversation.ID)
	defer unlock()

	readIDs, err := s.messageRepo.MarkConversationRead(ctx, conversation.ID, role, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to mark conversation read: %w", err)
	}

	if len(readIDs) > 0 {
		s.hub.BroadcastToConversation(conversation.ID, ws.Event{
			Op: ws.OpConversationRead,
			Data: ws.ConversationReadData{
				ConversationID: conversation.ID,
				MessageIDs:     readIDs,
			},
		})
	}

	s.unread.OnMarkRead(principal.ParticipantID, conversation.ID)

	return readIDs, nil
}
