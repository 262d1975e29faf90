package models

import "time"

// Role, bir konuşma katılımcısının rolü.
// Her konuşmada tam olarak iki rol vardır: başvuran ve işveren tarafı.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleRecruiter Role = "recruiter"
)

// Valid, rolün bilinen iki değerden biri olup olmadığını kontrol eder.
func (r Role) Valid() bool {
	return r == RoleApplicant || r == RoleRecruiter
}

// Opposite, karşı tarafın rolünü döner.
// Mesajın alıcısı her zaman gönderenin karşı rolüdür.
func (r Role) Opposite() Role {
	if r == RoleApplicant {
		return RoleRecruiter
	}
	return RoleApplicant
}

// Conversation, tek bir iş başvurusuna bağlı mesaj dizisini temsil eder.
// Konuşma ID'si = başvuru ID'si — başvuru CRUD'u bu sistemin dışındadır,
// satırlar dış sistem tarafından oluşturulur, biz sadece okuruz.
//
// E-posta alanları nullable — dış sistem paylaşmadıysa offline bildirim atlanır.
type Conversation struct {
	ID             string     `json:"id"`
	JobTitle       string     `json:"job_title"`
	ApplicantID    string     `json:"applicant_id"`
	ApplicantName  string     `json:"applicant_name"`
	ApplicantEmail *string    `json:"-"`
	RecruiterID    string     `json:"recruiter_id"`
	RecruiterName  string     `json:"recruiter_name"`
	RecruiterEmail *string    `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	LastMessageAt  *time.Time `json:"last_message_at"` // Nullable — henüz mesaj yoksa nil
}

// RoleOf, verilen katılımcının bu konuşmadaki rolünü döner.
// Katılımcı konuşmanın üyesi değilse ikinci dönüş değeri false olur.
func (c *Conversation) RoleOf(participantID string) (Role, bool) {
	switch participantID {
	case c.ApplicantID:
		return RoleApplicant, true
	case c.RecruiterID:
		return RoleRecruiter, true
	default:
		return "", false
	}
}

// ParticipantID, verilen rolün bu konuşmadaki katılımcı ID'sini döner.
func (c *Conversation) ParticipantID(role Role) string {
	if role == RoleApplicant {
		return c.ApplicantID
	}
	return c.RecruiterID
}

// ParticipantName, verilen rolün görünen adını döner.
func (c *Conversation) ParticipantName(role Role) string {
	if role == RoleApplicant {
		return c.ApplicantName
	}
	return c.RecruiterName
}

// ParticipantEmail, verilen rolün e-posta adresini döner (nil olabilir).
func (c *Conversation) ParticipantEmail(role Role) *string {
	if role == RoleApplicant {
		return c.ApplicantEmail
	}
	return c.RecruiterEmail
}

// ConversationSummary, konuşma listesi (inbox) satırı.
// Konuşma bilgisi + okunmamış mesaj sayısı birlikte döner,
// frontend sidebar badge'ini tek istekle çizebilsin diye.
type ConversationSummary struct {
	Conversation Conversation `json:"conversation"`
	UnreadCount  int          `json:"unread_count"`
}
