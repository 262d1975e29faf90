package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ozanbudak/ikmesaj/models"
)

// WebSocket bağlantı sabitleri
const (
	// writeWait: Bir mesajı yazmak için maksimum bekleme süresi.
	writeWait = 10 * time.Second

	// pongWait: Client'ın heartbeat göndermesi için beklenen maksimum süre.
	// 3 heartbeat kaçırma = 30s × 3 = 90s.
	pongWait = 90 * time.Second

	// maxMessageSize: Client'ın gönderebileceği maksimum frame boyutu (byte).
	// WS üzerinden sadece küçük kontrol event'leri gelir — mesaj gövdesi
	// ve ses blob'ları HTTP ile gönderilir.
	maxMessageSize = 4096

	// sendBufferSize: Her session'ın send channel'ının buffer boyutu.
	sendBufferSize = 256
)

// Client, tek bir WebSocket bağlantısını (session) temsil eder.
//
// Her bağlantı için iki goroutine çalışır:
// - ReadPump: Client'dan gelen event'leri okur → dispatch eder
// - WritePump: Hub'dan gelen event'leri client'a yazar
// gorilla/websocket aynı anda tek okuma + tek yazma destekler;
// iki ayrı goroutine ile okuma ve yazma birbirini bloklamaz.
//
// joined ve activeView alanları yalnızca hub.mu altında mutate edilir —
// session kapanınca removeClient hepsini deterministik temizler.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	principal models.Principal

	// send: Hub'ın bu session'a göndereceği event'lerin buffer'ı.
	// Hiçbir zaman kapatılmaz — kapanış sinyali done üzerinden gelir.
	send chan []byte

	// done: Hub session'ı çıkardığında kapatılır (removeClient/Shutdown,
	// hub.mu altında, tam bir kez). ReadPump'ın sendEvent'i ile teardown
	// yarıştığında kapalı channel'a yazım olmaz.
	done chan struct{}

	mu sync.Mutex // conn.WriteMessage çağrılarını korur

	// Hub state'i (hub.mu altında):
	joined     map[string]bool // katıldığı konuşma odaları
	activeView string          // aktif görüntülenen konuşma ("" = yok)
}

// SessionID, session'ın benzersiz kimliğini döner.
func (c *Client) SessionID() string { return c.sessionID }

// Principal, session'ın doğrulanmış katılımcı kimliğini döner.
func (c *Client) Principal() models.Principal { return c.principal }

// ReadPump, WebSocket bağlantısından gelen event'leri okur ve işler.
// Bağlantı kapanana kadar döngüde kalır; kapandığında Hub'dan çıkış yapar.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	// Bu süre içinde heartbeat gelmezse Read hata verir, session düşer.
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for session %s: %v", c.sessionID, err)
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for session %s: %v", c.sessionID, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(rawMessage, &event); err != nil {
			log.Printf("[ws] invalid event from session %s: %v", c.sessionID, err)
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent, client'dan gelen event'leri türüne göre işler.
//
// Callback'ler `go` ile çağrılır — handler DB'ye gidebilir, ReadPump'ı
// bloklamamalı; ayrıca Hub mutex'i ile deadlock önlenir.
func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		// Heartbeat geldi — deadline'ı yenile ve ack gönder.
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for session %s: %v", c.sessionID, err)
			return
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})

	case OpJoinConversation:
		// Üyelik doğrulaması callback'te — geçerse hub.JoinRoom çağrılır.
		var data JoinData
		if !decodeEventData(event, &data) || data.ConversationID == "" {
			return
		}
		if c.hub.onJoinRequest != nil {
			go c.hub.onJoinRequest(c, data.ConversationID)
		}

	case OpLeaveConversation:
		var data JoinData
		if !decodeEventData(event, &data) || data.ConversationID == "" {
			return
		}
		c.hub.LeaveRoom(c, data.ConversationID)

	case OpSetActiveView:
		var data ActiveViewData
		if !decodeEventData(event, &data) {
			return
		}
		conversationID := ""
		if data.ConversationID != nil {
			conversationID = *data.ConversationID
		}
		if c.hub.onActiveView != nil {
			go c.hub.onActiveView(c, conversationID)
		} else {
			c.hub.SetActiveView(c, conversationID)
		}

	case OpTypingStart:
		var data TypingData
		if !decodeEventData(event, &data) || data.ConversationID == "" {
			return
		}
		if c.hub.onTypingStart != nil {
			go c.hub.onTypingStart(c.principal, data.ConversationID)
		}

	case OpTypingStop:
		var data TypingData
		if !decodeEventData(event, &data) || data.ConversationID == "" {
			return
		}
		if c.hub.onTypingStop != nil {
			go c.hub.onTypingStop(c.principal, data.ConversationID)
		}

	default:
		log.Printf("[ws] unknown op from session %s: %s", c.sessionID, event.Op)
	}
}

// decodeEventData, event.Data'yı (any) hedef struct'a parse eder.
// event.Data tipi any olduğundan doğrudan cast edilemez —
// JSON'a çevirip tekrar parse etmek en güvenli yöntem.
func decodeEventData(event Event, target any) bool {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return false
	}
	return json.Unmarshal(dataBytes, target) == nil
}

// sendEvent, bu session'a tek bir event gönderir.
func (c *Client) sendEvent(event Event) {
	data, ok := c.hub.marshalEvent(&event)
	if !ok {
		return
	}

	select {
	case c.send <- data:
	case <-c.done:
		// Hub session'ı zaten çıkardı — event'in gideceği yer yok.
	default:
		// Buffer dolu — client muhtemelen donmuş, bağlantıyı kapat.
		log.Printf("[ws] send buffer full for session %s, dropping connection", c.sessionID)
		c.hub.unregister <- c
	}
}

// WritePump, Hub'dan gelen event'leri WebSocket bağlantısına yazar.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case message := <-c.send:
			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.done:
			// Hub session'ı çıkardı.
			c.writeMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

// writeMessage, WebSocket'e frame yazar (mutex ile korunur).
// gorilla/websocket conn'a aynı anda birden fazla yazma yapılamaz.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
