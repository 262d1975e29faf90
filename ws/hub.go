package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ozanbudak/ikmesaj/models"
)

// EventPublisher, service katmanının WebSocket event'leri broadcast etmek için
// kullandığı interface.
//
// Service'ler Hub'ın concrete struct'ına değil bu interface'e bağımlıdır:
// testlerde mock publisher kullanılabilir, Hub implementasyonu değişse bile
// service kodu etkilenmez.
type EventPublisher interface {
	BroadcastToConversation(conversationID string, event Event)
	BroadcastToConversationExcept(conversationID, excludeParticipantID string, event Event)
	BroadcastToParticipant(participantID string, event Event)
}

// PresenceTracker, "katılımcı X şu anda konuşma Y'ye bakıyor mu?" sorusunu
// yanıtlar. Unread Aggregator auto-read / notify kararını buna göre verir.
//
// Aktif görünüm session bazlıdır; katılımcının HERHANGİ bir canlı session'ı
// konuşmayı aktif görüntülüyorsa true döner.
type PresenceTracker interface {
	IsActivelyViewing(participantID, conversationID string) bool
	IsOnline(participantID string) bool
}

// Hub, tüm WebSocket bağlantılarını ve konuşma odalarını yöneten merkezi yapı.
//
// İki ayrı indeks tutar:
// - clients: participantID → session set (bir katılımcının birden fazla tab'ı olabilir)
// - rooms: conversationID → session set (oda üyeliği, broadcast fan-out için)
//
// Oda üyeliği ephemeral'dır — bağlantı koptuğunda silinir, reconnect'te
// client yeniden join eder. Hiçbir oda state'i persist edilmez.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool
	rooms   map[string]map[*Client]bool

	// register/unregister: Client giriş/çıkış sinyalleri.
	// Run() goroutine'i bu channel'lardan select ile okur.
	register   chan *Client
	unregister chan *Client

	// seq: Her outbound event'e verilen artan sayaç.
	seq atomic.Int64

	// Callback'ler — ws paketi service katmanına bağımlı olmasın diye
	// main package wire-up sırasında set edilir (init_callbacks.go).
	// Client goroutine'lerinden `go callback(...)` ile çağrılırlar.
	onJoinRequest func(c *Client, conversationID string)
	onActiveView  func(c *Client, conversationID string)
	onTypingStart func(principal models.Principal, conversationID string)
	onTypingStop  func(principal models.Principal, conversationID string)
}

// NewHub, yeni bir Hub oluşturur.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// OnJoinRequest, client bir odaya katılmak istediğinde çağrılacak callback'i
// set eder. Üyelik doğrulaması callback'in sorumluluğudur; doğrulama geçerse
// callback hub.JoinRoom'u çağırır.
func (h *Hub) OnJoinRequest(fn func(c *Client, conversationID string)) { h.onJoinRequest = fn }

// OnActiveView, set_active_view geldiğinde çağrılacak callback'i set eder.
// conversationID boş string ise görünüm kapatıldı demektir.
func (h *Hub) OnActiveView(fn func(c *Client, conversationID string)) { h.onActiveView = fn }

// OnTypingStart / OnTypingStop, typing sinyalleri için callback set eder.
func (h *Hub) OnTypingStart(fn func(principal models.Principal, conversationID string)) {
	h.onTypingStart = fn
}
func (h *Hub) OnTypingStop(fn func(principal models.Principal, conversationID string)) {
	h.onTypingStop = fn
}

// Run, Hub'ın ana event loop'udur. main.go'da `go hub.Run()` ile başlatılır.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// addClient, yeni bir session'ı Hub'a ekler.
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pid := client.principal.ParticipantID
	if _, ok := h.clients[pid]; !ok {
		h.clients[pid] = make(map[*Client]bool)
	}
	h.clients[pid][client] = true

	log.Printf("[ws] session connected: participant=%s session=%s (connections: %d)",
		pid, client.sessionID, len(h.clients[pid]))
}

// removeClient, bir session'ı Hub'dan çıkarır: tüm oda üyelikleri silinir,
// done channel'ı kapatılır. Subscription teardown deterministiktir —
// session ölünce dağınık listener temizliği gerekmez.
//
// send channel'ı asla kapatılmaz: ReadPump goroutine'i hâlâ sendEvent
// çağırıyor olabilir — kapalı channel'a yazım process'i panikletirdi.
// WritePump ve sendEvent, done üzerinden kapanışı öğrenir; send'e
// erişen herkes gone olduktan sonra channel GC'ye kalır.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pid := client.principal.ParticipantID
	clients, ok := h.clients[pid]
	if !ok || !clients[client] {
		return
	}

	delete(clients, client)
	close(client.done)

	for conversationID := range client.joined {
		h.removeFromRoom(client, conversationID)
	}
	client.joined = make(map[string]bool)
	client.activeView = ""

	if len(clients) == 0 {
		delete(h.clients, pid)
		log.Printf("[ws] participant fully disconnected: %s", pid)
	} else {
		log.Printf("[ws] session disconnected: participant=%s (remaining: %d)", pid, len(clients))
	}
}

// removeFromRoom, lock tutulurken çağrılır.
func (h *Hub) removeFromRoom(client *Client, conversationID string) {
	room, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
}

// JoinRoom, session'ı konuşma odasına ekler. Idempotent — iki kez join
// oda üyeliği için no-op'tur.
func (h *Hub) JoinRoom(client *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Unregister ile yarışabilir (callback async çalışır) —
	// session çıktıysa odaya ekleme.
	if clients, ok := h.clients[client.principal.ParticipantID]; !ok || !clients[client] {
		return
	}

	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*Client]bool)
	}
	h.rooms[conversationID][client] = true
	client.joined[conversationID] = true
}

// LeaveRoom, session'ı odadan çıkarır. Aktif görünüm bu konuşmadaysa temizlenir.
func (h *Hub) LeaveRoom(client *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoom(client, conversationID)
	delete(client.joined, conversationID)
	if client.activeView == conversationID {
		client.activeView = ""
	}
}

// SetActiveView, session'ın aktif görüntülediği konuşmayı günceller.
// Bir session'ın aynı anda tek aktif görünümü olabilir; conversationID
// boş string ise görünüm kapatılmış demektir.
func (h *Hub) SetActiveView(client *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.activeView = conversationID
}

// IsActivelyViewing, katılımcının herhangi bir session'ı konuşmayı aktif
// görüntülüyorsa true döner.
func (h *Hub) IsActivelyViewing(participantID, conversationID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[participantID] {
		if client.activeView == conversationID {
			return true
		}
	}
	return false
}

// IsOnline, katılımcının en az bir canlı session'ı varsa true döner.
func (h *Hub) IsOnline(participantID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[participantID]) > 0
}

// BroadcastToConversation, odadaki TÜM session'lara event gönderir —
// gönderen dahil (multi-tab ve reconciliation için gerekli).
// Boş odaya broadcast no-op'tur, hata değildir: alıcı offline olabilir,
// mesajı sonraki fetch'te alır.
func (h *Hub) BroadcastToConversation(conversationID string, event Event) {
	data, ok := h.marshalEvent(&event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[conversationID] {
		h.deliver(client, data)
	}
}

// BroadcastToConversationExcept, odadaki session'lara event gönderir —
// verilen katılımcının TÜM session'ları hariç. Typing event'lerinde
// yazanın kendisi kendi typing göstergesini görmez.
func (h *Hub) BroadcastToConversationExcept(conversationID, excludeParticipantID string, event Event) {
	data, ok := h.marshalEvent(&event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[conversationID] {
		if client.principal.ParticipantID == excludeParticipantID {
			continue
		}
		h.deliver(client, data)
	}
}

// BroadcastToParticipant, katılımcının tüm session'larına event gönderir —
// odada olup olmadıklarına bakılmaz (notification ve unread_update yolu).
func (h *Hub) BroadcastToParticipant(participantID string, event Event) {
	data, ok := h.marshalEvent(&event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[participantID] {
		h.deliver(client, data)
	}
}

// marshalEvent, seq atar ve event'i JSON'a çevirir.
func (h *Hub) marshalEvent(event *Event) ([]byte, bool) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event %s: %v", event.Op, err)
		return nil, false
	}
	return data, true
}

// deliver, RLock tutulurken çağrılır. Non-blocking gönderim:
// buffer doluysa client yavaş demektir, bağlantı kapatılır —
// broadcast hiçbir zaman I/O üzerinde bloklanmaz.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		go func(c *Client) { h.unregister <- c }(client)
	}
}

// Shutdown, tüm client bağlantılarını kapatır (graceful shutdown).
// removeClient gibi send değil done kapatılır — in-flight heartbeat'ler
// sendEvent içinde olabilir.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			close(client.done)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	h.rooms = make(map[string]map[*Client]bool)
	log.Println("[ws] hub shut down, all connections closed")
}
