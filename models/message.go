package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MessageType, mesajın içerik türü.
// Text mesajlarda Content gövde metnidir; audio mesajlarda Content,
// upload servisinin döndüğü blob URL'idir (ör: /api/uploads/xxx.webm).
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeAudio MessageType = "audio"
)

// Message, bir konuşma mesajını temsil eder.
// DB'deki "messages" tablosunun Go karşılığı.
//
// Kanonik kopya her zaman store'dadır — hub ve client'lar read-only
// projeksiyon taşır. Mesaj oluşturulduktan sonra sadece read/read_at
// geçişi yapılabilir; düzenleme ve silme yoktur.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderRole     Role        `json:"sender_role"`
	SenderID       string      `json:"sender_id"`
	SenderName     string      `json:"sender_name"`
	Type           MessageType `json:"type"`
	Content        string      `json:"content"`
	Read           bool        `json:"read"`
	ReadAt         *time.Time  `json:"read_at"` // Nullable — okunmamışsa nil
	CreatedAt      time.Time   `json:"created_at"`
}

// CreateMessageRequest, yeni mesaj gönderme isteği.
type CreateMessageRequest struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

// Validate, CreateMessageRequest'in geçerli olup olmadığını kontrol eder.
//
// Text: 1–2000 rune arası gövde zorunlu.
// Audio: content, upload servisinden alınmış bir URL olmalı — göreli
// upload path'i veya mutlak http(s) URL'i kabul edilir.
func (r *CreateMessageRequest) Validate() error {
	if r.Type == "" {
		r.Type = MessageTypeText
	}

	switch r.Type {
	case MessageTypeText:
		r.Content = strings.TrimSpace(r.Content)
		contentLen := utf8.RuneCountInString(r.Content)
		if contentLen < 1 {
			return fmt.Errorf("message content is required")
		}
		if contentLen > 2000 {
			return fmt.Errorf("message content must be at most 2000 characters")
		}
	case MessageTypeAudio:
		r.Content = strings.TrimSpace(r.Content)
		if r.Content == "" {
			return fmt.Errorf("audio message requires an upload url")
		}
		if len(r.Content) > 2048 {
			return fmt.Errorf("audio url too long")
		}
		if !strings.HasPrefix(r.Content, "/api/uploads/") &&
			!strings.HasPrefix(r.Content, "http://") &&
			!strings.HasPrefix(r.Content, "https://") {
			return fmt.Errorf("audio content must be an upload url")
		}
	default:
		return fmt.Errorf("unknown message type: %s", r.Type)
	}

	return nil
}

// MessagePage, cursor-based pagination sonucu.
// "before=ID" cursor'u ile istenen sayfa + daha eski mesaj var mı bilgisi.
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}
