// Package ws, WebSocket bağlantı yönetimi ve gerçek zamanlı event dağıtımını sağlar.
//
// Mimari:
// - Hub: Tüm bağlantıları ve konuşma odalarını yöneten merkezi yapı
// - Client: Her WebSocket bağlantısını (session) temsil eder
// - Event: Client-server arası iletilen mesaj formatı
//
// Event akışı (mesaj gönderimi):
// 1. Katılımcı mesaj gönderir → HTTP POST → MessageService → DB kayıt
// 2. Service, Hub'ın BroadcastToConversation metodunu çağırır
// 3. Hub, event'i konuşma odasındaki TÜM session'lara iletir — gönderen
//    dahil, çoklu tab ve optimistic-UI reconciliation bunu gerektirir
// 4. Her client'ın WritePump'ı event'i WebSocket'e yazar
//
// Broadcast her zaman kalıcı yazma BAŞARILDIKTAN sonra yapılır; persist
// hatası varsa hiçbir event çıkmaz.
package ws

import "github.com/ozanbudak/ikmesaj/models"

// Event, WebSocket üzerinden iletilen bir mesajı temsil eder.
//
// Op (operation): Event türü — "message_received", "heartbeat" vb.
// Data: Event'e özgü payload.
// Seq: Her outbound event'e verilen artan sayı; frontend eksik event
// tespiti için takip eder (seq 5'ten sonra seq 7 → 6 kaybolmuş).
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → Server operasyonları
const (
	OpHeartbeat         = "heartbeat"          // Client her 30sn'de gönderir — "hâlâ bağlıyım" sinyali
	OpJoinConversation  = "join_conversation"  // Konuşma odasına katıl (canlı event almak için)
	OpLeaveConversation = "leave_conversation" // Odadan ayrıl
	OpSetActiveView     = "set_active_view"    // Aktif görüntülenen konuşmayı bildir (null = kapandı)
	OpTypingStart       = "typing_start"       // Katılımcı yazıyor
	OpTypingStop        = "typing_stop"        // Katılımcı yazmayı bıraktı
)

// Server → Client operasyonları
const (
	OpReady             = "ready"                // Bağlantı kurulduğunda ilk event — session + unread özeti
	OpHeartbeatAck      = "heartbeat_ack"        // Heartbeat'e yanıt
	OpMessageReceived   = "message_received"     // Yeni mesaj kaydedildi ve odaya dağıtıldı
	OpMessageMarkedRead = "message_marked_read"  // Tek mesaj okundu işaretlendi
	OpConversationRead  = "conversation_read"    // Backlog toplu okundu (açılışta tek geçiş)
	OpUserTyping        = "user_typing"          // Karşı taraf yazıyor
	OpUserStoppedTyping = "user_stopped_typing"  // Karşı taraf yazmayı bıraktı (explicit/expiry/implicit)
	OpUnreadUpdate      = "unread_update"        // Bir konuşmanın okunmamış sayacı değişti
	OpNotification      = "message_notification" // Aktif görüntülenmeyen konuşmaya mesaj geldi
)

// ReadyData, bağlantı kurulduğunda client'a gönderilen ilk event'in payload'ı.
// Unread özeti her bağlantıda store'dan yeniden hesaplanır — process restart
// veya kopukluk sonrası in-memory sayaçların kurtarma noktası budur.
type ReadyData struct {
	SessionID string                `json:"session_id"`
	Unread    *models.UnreadSummary `json:"unread"`
}

// JoinData, join_conversation / leave_conversation payload'ı.
type JoinData struct {
	ConversationID string `json:"conversation_id"`
}

// ActiveViewData, set_active_view payload'ı.
// ConversationID nil ise katılımcı konuşma görünümünü kapattı demektir.
type ActiveViewData struct {
	ConversationID *string `json:"conversation_id"`
}

// TypingData, typing_start / typing_stop payload'ı (Client → Server).
type TypingData struct {
	ConversationID string `json:"conversation_id"`
}

// UserTypingData, user_typing event'inin payload'ı (broadcast edilen).
type UserTypingData struct {
	ConversationID string      `json:"conversation_id"`
	Role           models.Role `json:"role"`
	Name           string      `json:"name"`
}

// UserStoppedTypingData, user_stopped_typing event'inin payload'ı.
type UserStoppedTypingData struct {
	ConversationID string      `json:"conversation_id"`
	Role           models.Role `json:"role"`
}

// MessageReadData, message_marked_read event'inin payload'ı.
type MessageReadData struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// ConversationReadData, conversation_read event'inin payload'ı.
// Backlog açılışta tek geçişte okunduğunda N ayrı event yerine
// etkilenen tüm mesaj ID'leri tek event'te taşınır.
type ConversationReadData struct {
	ConversationID string   `json:"conversation_id"`
	MessageIDs     []string `json:"message_ids"`
}

// UnreadUpdateData, unread_update event'inin payload'ı.
type UnreadUpdateData struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int    `json:"unread_count"`
	Total          int    `json:"total"`
}

// NotificationData, message_notification event'inin payload'ı.
// Mesajın kendisi + güncel sayaç birlikte gider — frontend toast ve
// badge'i tek event'ten güncelleyebilir.
type NotificationData struct {
	Message     *models.Message `json:"message"`
	UnreadCount int             `json:"unread_count"`
	Total       int             `json:"total"`
}
