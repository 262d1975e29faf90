// UnreadService — katılımcı başına okunmamış mesaj sayaçları.
//
// Sayaçlar in-memory tutulur ve canlı event'lerle artırılıp azaltılır;
// kanonik kaynak her zaman store'dur. Her WebSocket bağlantısında ve
// tutarsızlık şüphesinde sayaçlar store'dan yeniden hesaplanır
// (RecomputeFromStore) — in-memory durum bir cache'dir, gerçek değil.
//
// Invariant: hiçbir sayaç negatife düşmez. Sıfırdaki bir sayaca decrement
// gelirse (event kaybı / replay belirtisi) sayaç sıfırda kalır ve arka
// planda recompute tetiklenir.
//
// Eşzamanlılık: katılımcı başına ayrı mutex — farklı katılımcıların
// sayaç güncellemeleri birbirini bloklamaz.
package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/pkg/cache"
	"github.com/ozanbudak/ikmesaj/pkg/email"
	"github.com/ozanbudak/ikmesaj/repository"
	"github.com/ozanbudak/ikmesaj/ws"
)

// UnreadService, okunmamış sayaçların canlı bakımı ve store'dan kurtarılması.
//
// OnMessagePersisted / OnMarkRead / OnMessageRead hook'ları MessageService
// tarafından, ilgili store yazımı TAMAMLANDIKTAN sonra çağrılır.
type UnreadService interface {
	// OnMessagePersisted, yeni mesaj kalıcılaştıktan sonra çağrılır.
	// Alıcı konuşmayı aktif görüntülüyorsa mesaj otomatik okundu işaretlenir
	// (sayaç değişmez); değilse sayaç artar ve alıcıya unread_update +
	// message_notification gönderilir. Alıcı tamamen offline ise throttle'lı
	// email bildirimi tetiklenir.
	OnMessagePersisted(ctx context.Context, conversation *models.Conversation, message *models.Message)

	// OnMarkRead, bir konuşmanın backlog'u toplu okunduğunda sayacı sıfırlar.
	OnMarkRead(participantID, conversationID string)

	// OnMessageRead, tek bir mesaj okundu işaretlendiğinde sayacı bir azaltır.
	// Sayaç zaten sıfırsa clamp'ler ve arka planda recompute başlatır.
	OnMessageRead(participantID, conversationID string)

	// RecomputeFromStore, katılımcının tüm sayaçlarını store'dan yeniden
	// hesaplayıp in-memory durumu değiştirir.
	RecomputeFromStore(ctx context.Context, participantID string) error

	// Summary, katılımcının güncel özetini döner. In-memory durum henüz
	// hiç prime edilmemişse (restart sonrası ilk HTTP isteği gibi) önce
	// store'dan hesaplar.
	Summary(ctx context.Context, participantID string) (*models.UnreadSummary, error)

	// SnapshotFor, her zaman store'dan recompute edip özeti döner.
	// WebSocket ready event'i bunu kullanır (ws.UnreadSource).
	SnapshotFor(ctx context.Context, participantID string) (*models.UnreadSummary, error)

	// Close, email throttle cache'inin arka plan goroutine'ini durdurur.
	Close()
}

// participantCounters, tek bir katılımcının sayaç durumu.
// primed: sayaçlar en az bir kez store'dan hesaplandı mı.
type participantCounters struct {
	mu     sync.Mutex
	counts map[string]int // conversationID → unread count (0 olanlar map'te tutulmaz)
	primed bool
}

func (pc *participantCounters) total() int {
	t := 0
	for _, c := range pc.counts {
		t += c
	}
	return t
}

type unreadService struct {
	messageRepo repository.MessageRepository
	hub         ws.EventPublisher
	presence    ws.PresenceTracker

	// emailSender nil olabilir — RESEND_API_KEY yoksa email bildirimi kapalıdır.
	emailSender   email.EmailSender
	emailThrottle *cache.TTLCache[string, struct{}]

	mu           sync.RWMutex
	participants map[string]*participantCounters
}

// NewUnreadService, okunmamış sayaç servisini oluşturur.
// notifyThrottle: aynı (alıcı, konuşma) çifti için iki email arasındaki
// minimum süre.
func NewUnreadService(
	messageRepo repository.MessageRepository,
	hub ws.EventPublisher,
	presence ws.PresenceTracker,
	emailSender email.EmailSender,
	notifyThrottle time.Duration,
) UnreadService {
	return &unreadService{
		messageRepo:   messageRepo,
		hub:           hub,
		presence:      presence,
		emailSender:   emailSender,
		emailThrottle: cache.New[string, struct{}](notifyThrottle, time.Minute),
		participants:  make(map[string]*participantCounters),
	}
}

// counters, katılımcının sayaç yapısını döner (yoksa oluşturur).
// Dış map kısa süre kilitlenir; asıl işlem per-participant mutex altında yapılır.
func (s *unreadService) counters(participantID string) *participantCounters {
	s.mu.RLock()
	pc, ok := s.participants[participantID]
	s.mu.RUnlock()
	if ok {
		return pc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pc, ok = s.participants[participantID]; ok {
		return pc
	}
	pc = &participantCounters{counts: make(map[string]int)}
	s.participants[participantID] = pc
	return pc
}

func (s *unreadService) OnMessagePersisted(ctx context.Context, conversation *models.Conversation, message *models.Message) {
	recipientRole := message.SenderRole.Opposite()
	recipientID := conversation.ParticipantID(recipientRole)
	if recipientID == "" {
		return
	}

	if s.presence.IsActivelyViewing(recipientID, conversation.ID) {
		// Alıcı konuşmaya bakıyor — mesaj anında okundu sayılır, sayaç değişmez.
		updated, err := s.messageRepo.MarkRead(ctx, message.ID, time.Now().UTC())
		if err != nil {
			// Okundu işareti kaybolursa store hâlâ doğru tarafta kalır:
			// mesaj unread görünür, bir sonraki backlog açılışı düzeltir.
			log.Printf("[unread] auto-read persist failed (message=%s): %v", message.ID, err)
			return
		}
		s.hub.BroadcastToConversation(conversation.ID, ws.Event{
			Op: ws.OpMessageMarkedRead,
			Data: ws.MessageReadData{
				ConversationID: conversation.ID,
				MessageID:      updated.ID,
			},
		})
		return
	}

	pc := s.counters(recipientID)
	pc.mu.Lock()
	pc.counts[conversation.ID]++
	count := pc.counts[conversation.ID]
	total := pc.total()
	pc.mu.Unlock()

	s.hub.BroadcastToParticipant(recipientID, ws.Event{
		Op: ws.OpUnreadUpdate,
		Data: ws.UnreadUpdateData{
			ConversationID: conversation.ID,
			UnreadCount:    count,
			Total:          total,
		},
	})
	s.hub.BroadcastToParticipant(recipientID, ws.Event{
		Op: ws.OpNotification,
		Data: ws.NotificationData{
			Message:     message,
			UnreadCount: count,
			Total:       total,
		},
	})

	if !s.presence.IsOnline(recipientID) {
		s.maybeNotifyByEmail(conversation, recipientRole, message, count)
	}
}

func (s *unreadService) OnMarkRead(participantID, conversationID string) {
	pc := s.counters(participantID)
	pc.mu.Lock()
	prev := pc.counts[conversationID]
	delete(pc.counts, conversationID)
	total := pc.total()
	pc.mu.Unlock()

	if prev == 0 {
		return
	}

	s.hub.BroadcastToParticipant(participantID, ws.Event{
		Op: ws.OpUnreadUpdate,
		Data: ws.UnreadUpdateData{
			ConversationID: conversationID,
			UnreadCount:    0,
			Total:          total,
		},
	})
}

func (s *unreadService) OnMessageRead(participantID, conversationID string) {
	pc := s.counters(participantID)
	pc.mu.Lock()
	current := pc.counts[conversationID]
	if current <= 0 {
		// Sıfırdaki sayaca decrement — event kaybı veya replay belirtisi.
		// Negatife düşürmek yerine sıfırda tut ve store'dan doğrula.
		delete(pc.counts, conversationID)
		pc.mu.Unlock()
		log.Printf("[unread] decrement on zero counter (participant=%s conversation=%s), recomputing", participantID, conversationID)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.RecomputeFromStore(ctx, participantID); err != nil {
				log.Printf("[unread] recompute failed (participant=%s): %v", participantID, err)
			}
		}()
		return
	}

	current--
	if current == 0 {
		delete(pc.counts, conversationID)
	} else {
		pc.counts[conversationID] = current
	}
	total := pc.total()
	pc.mu.Unlock()

	s.hub.BroadcastToParticipant(participantID, ws.Event{
		Op: ws.OpUnreadUpdate,
		Data: ws.UnreadUpdateData{
			ConversationID: conversationID,
			UnreadCount:    current,
			Total:          total,
		},
	})
}

func (s *unreadService) RecomputeFromStore(ctx context.Context, participantID string) error {
	counts, err := s.messageRepo.CountUnread(ctx, participantID)
	if err != nil {
		return err
	}

	pc := s.counters(participantID)
	pc.mu.Lock()
	pc.counts = counts
	pc.primed = true
	pc.mu.Unlock()

	return nil
}

func (s *unreadService) Summary(ctx context.Context, participantID string) (*models.UnreadSummary, error) {
	pc := s.counters(participantID)

	pc.mu.Lock()
	primed := pc.primed
	pc.mu.Unlock()

	if !primed {
		if err := s.RecomputeFromStore(ctx, participantID); err != nil {
			return nil, err
		}
	}

	return s.snapshot(participantID), nil
}

func (s *unreadService) SnapshotFor(ctx context.Context, participantID string) (*models.UnreadSummary, error) {
	if err := s.RecomputeFromStore(ctx, participantID); err != nil {
		return nil, err
	}
	return s.snapshot(participantID), nil
}

// snapshot, in-memory durumun kopyasını döner. Map referansı dışarı
// sızdırılmaz — caller'ın elindeki özet sonradan değişmez.
func (s *unreadService) snapshot(participantID string) *models.UnreadSummary {
	pc := s.counters(participantID)

	pc.mu.Lock()
	defer pc.mu.Unlock()

	per := make(map[string]int, len(pc.counts))
	for convID, c := range pc.counts {
		per[convID] = c
	}
	return &models.UnreadSummary{
		PerConversation: per,
		Total:           pc.total(),
	}
}

// maybeNotifyByEmail, offline alıcıya email bildirimi gönderir.
// Aynı (alıcı, konuşma) çifti için throttle penceresi içinde ikinci
// email gönderilmez. Gönderim asenkron yapılır — mesaj akışını bloklamaz.
func (s *unreadService) maybeNotifyByEmail(conversation *models.Conversation, recipientRole models.Role, message *models.Message, unreadCount int) {
	if s.emailSender == nil {
		return
	}

	toEmail := conversation.ParticipantEmail(recipientRole)
	if toEmail == nil || *toEmail == "" {
		return
	}

	throttleKey := conversation.ParticipantID(recipientRole) + "|" + conversation.ID
	if _, throttled := s.emailThrottle.Get(throttleKey); throttled {
		return
	}
	// Pencere gönderimden önce işgal edilir — arka arkaya gelen mesajlar
	// ilk mail sonuçlanmadan ikinci bir gönderim başlatamaz.
	s.emailThrottle.Set(throttleKey, struct{}{})

	to := *toEmail
	toName := conversation.ParticipantName(recipientRole)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.emailSender.SendUnreadNotification(ctx, to, toName, message.SenderName, conversation.JobTitle, conversation.ID, unreadCount); err != nil {
			log.Printf("[unread] email notification failed (conversation=%s): %v", conversation.ID, err)
			// Başarısız gönderim throttle penceresini yakmasın —
			// bir sonraki mesaj yeniden deneyebilsin.
			s.emailThrottle.Delete(throttleKey)
		}
	}()
}

func (s *unreadService) Close() {
	s.emailThrottle.Close()
}
