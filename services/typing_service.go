// TypingService — "yazıyor..." göstergesi koordinasyonu.
//
// Typing durumu tamamen ephemeral'dır: store'a yazılmaz, process restart'ta
// kaybolur. Her (conversationID, role) çifti için en fazla bir durum tutulur;
// iki taraflı görüşmede role, yazanı tekil olarak belirler.
//
// Broadcast yalnızca durum GEÇİŞLERİNDE yapılır:
// - idle → typing: user_typing yayınlanır
// - typing → idle (explicit stop / süre dolumu / mesaj gönderimi): user_stopped_typing
// Typing'deyken gelen her yeni typing_start sadece süreyi uzatır, event üretmez.
//
// Süre dolumu time.AfterFunc ile izlenir — katılımcı explicit stop göndermeden
// bağlantısı kopsa bile gösterge expiry süresi içinde kendiliğinden söner.
package services

import (
	"sync"
	"time"

	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/ws"
)

// TypingService, typing göstergelerinin yaşam döngüsünü yönetir.
type TypingService interface {
	// Start, katılımcının yazmaya başladığını (veya devam ettiğini) bildirir.
	// İlk çağrı user_typing broadcast'i üretir, sonrakiler süreyi uzatır.
	Start(conversationID string, principal models.Principal)

	// Stop, typing durumunu sonlandırır. Durum yoksa no-op (idempotent —
	// geciken explicit stop, expiry sonrası ikinci bir event üretmez).
	Stop(conversationID string, role models.Role)

	// Close, bekleyen tüm expiry timer'larını iptal eder. Shutdown'da çağrılır.
	Close()
}

// typingEntry, aktif bir typing durumunun timer'ı ve sahibini tutar.
// participantID, broadcast'lerde yazanın kendi session'larını hariç
// tutmak için saklanır.
//
// gen: her timer kurulumunda artan nesil sayacı. Timer.Reset yeterli
// değildir — AfterFunc çoktan ateşlenip s.mu'da bekliyorsa Reset true/false
// ayrımı durumu kurtaramaz. expire yalnızca kendi neslinin entry'sini
// söndürür; süresi uzatılmış entry'ye geç kalmış callback dokunamaz.
type typingEntry struct {
	timer         *time.Timer
	gen           uint64
	participantID string
	name          string
}

type typingService struct {
	hub    ws.EventPublisher
	expiry time.Duration

	mu      sync.Mutex
	entries map[string]*typingEntry // key: conversationID + "|" + role
	closed  bool
}

// NewTypingService, verilen expiry süresi ile (tipik: 3sn) typing servisi oluşturur.
func NewTypingService(hub ws.EventPublisher, expiry time.Duration) TypingService {
	return &typingService{
		hub:     hub,
		expiry:  expiry,
		entries: make(map[string]*typingEntry),
	}
}

func typingKey(conversationID string, role models.Role) string {
	return conversationID + "|" + string(role)
}

// Geçiş broadcast'leri s.mu tutulurken yapılır — hub gönderimleri
// non-blocking'dir, lock altında I/O riski yoktur. Bu sayede user_typing
// ve user_stopped_typing, durum geçişleriyle aynı sırada odaya ulaşır;
// yarışan bir Stop, Start'ın event'inin önüne geçemez.

func (s *typingService) Start(conversationID string, principal models.Principal) {
	key := typingKey(conversationID, principal.Role)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if e, ok := s.entries[key]; ok {
		// Zaten typing — timer'ı yeni nesille baştan kur, event üretme.
		e.timer.Stop()
		e.gen++
		s.scheduleExpiry(e, conversationID, principal.Role)
		return
	}

	e := &typingEntry{
		gen:           1,
		participantID: principal.ParticipantID,
		name:          principal.DisplayName,
	}
	s.scheduleExpiry(e, conversationID, principal.Role)
	s.entries[key] = e

	// idle → typing geçişi: odaya yayınla, yazanın kendi session'ları hariç
	s.hub.BroadcastToConversationExcept(conversationID, principal.ParticipantID, ws.Event{
		Op: ws.OpUserTyping,
		Data: ws.UserTypingData{
			ConversationID: conversationID,
			Role:           principal.Role,
			Name:           principal.DisplayName,
		},
	})
}

// scheduleExpiry, entry'nin timer'ını mevcut nesliyle kurar. s.mu kilitli
// çağrılmalıdır.
func (s *typingService) scheduleExpiry(e *typingEntry, conversationID string, role models.Role) {
	gen := e.gen
	e.timer = time.AfterFunc(s.expiry, func() {
		s.expire(conversationID, role, gen)
	})
}

func (s *typingService) Stop(conversationID string, role models.Role) {
	key := typingKey(conversationID, role)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(s.entries, key)

	s.broadcastStopped(conversationID, role, e.participantID)
}

// expire, timer dolduğunda çalışır. Entry'nin map'te duruyor olması VE
// neslinin tutması kontrol edilir — Stop ile yarışan ya da süresi
// uzatılmış bir durumun eski timer'ından gelen geç callback no-op'tur.
func (s *typingService) expire(conversationID string, role models.Role, gen uint64) {
	key := typingKey(conversationID, role)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.gen != gen {
		return
	}
	delete(s.entries, key)

	s.broadcastStopped(conversationID, role, e.participantID)
}

// broadcastStopped, s.mu kilitli çağrılır.
func (s *typingService) broadcastStopped(conversationID string, role models.Role, participantID string) {
	s.hub.BroadcastToConversationExcept(conversationID, participantID, ws.Event{
		Op: ws.OpUserStoppedTyping,
		Data: ws.UserStoppedTypingData{
			ConversationID: conversationID,
			Role:           role,
		},
	})
}

func (s *typingService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for key, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, key)
	}
}
