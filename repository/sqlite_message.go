package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/pkg"
)

// sqliteMessageRepo, MessageRepository interface'inin SQLite implementasyonu.
type sqliteMessageRepo struct {
	db *sql.DB
}

// NewSQLiteMessageRepo, constructor — interface döner.
func NewSQLiteMessageRepo(db *sql.DB) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

// messageColumns, tüm mesaj SELECT'lerinde kullanılan kolon listesi.
const messageColumns = `id, conversation_id, sender_role, sender_id, sender_name,
       type, content, read, read_at, created_at`

// Create, mesajı kaydeder ve store tarafından atanan ID + created_at
// değerlerini message üzerine yazar.
//
// last_message_at güncellemesi aynı çağrıda yapılır — konuşma listesi
// son aktiviteye göre sıralanır.
func (r *sqliteMessageRepo) Create(ctx context.Context, message *models.Message) error {
	message.ID = uuid.NewString()
	// created_at Go tarafında atanır — CURRENT_TIMESTAMP saniye
	// hassasiyetindedir, aynı saniyedeki mesajlar ayırt edilemezdi.
	message.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO messages (id, conversation_id, sender_role, sender_id, sender_name, type, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.ConversationID,
		message.SenderRole,
		message.SenderID,
		message.SenderName,
		message.Type,
		message.Content,
		message.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		"UPDATE conversations SET last_message_at = ? WHERE id = ?",
		message.CreatedAt, message.ConversationID,
	); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	return nil
}

func (r *sqliteMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message by id: %w", err)
	}

	return msg, nil
}

// ListByConversation, cursor-based pagination ile mesajları getirir.
//
// Sorgu mantığı:
// 1. beforeID boşsa → en yeni mesajlardan başla
// 2. beforeID doluysa → o mesajdan önce YAZILMIŞ mesajları getir
// 3. DESC + LIMIT ile sayfayı al, sonra ters çevirip ASC döndür —
//    çağıranlar her zaman en-eski-başta sıra görür.
//
// Sıralama rowid üzerindendir: rowid insert sırasını, yani store'un
// yazım sırasını birebir yansıtır — created_at eşitliklerinde bile
// sıra deterministiktir.
func (r *sqliteMessageRepo) ListByConversation(ctx context.Context, conversationID string, beforeID string, limit int) ([]models.Message, error) {
	var query string
	var args []any

	if beforeID == "" {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE conversation_id = ?
			ORDER BY rowid DESC
			LIMIT ?`
		args = []any{conversationID, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE conversation_id = ?
			  AND rowid < (SELECT rowid FROM messages WHERE id = ?)
			ORDER BY rowid DESC
			LIMIT ?`
		args = []any{conversationID, beforeID, limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	// DESC geldi, ASC döndür (en eski başta).
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkRead, tek bir mesajı okundu işaretler ve güncel halini döner.
// Mesaj yoksa pkg.ErrNotFound; zaten okunmuşsa no-op (idempotent) —
// mevcut read_at korunur.
func (r *sqliteMessageRepo) MarkRead(ctx context.Context, id string, readAt time.Time) (*models.Message, error) {
	// read = 0 koşulu update'i idempotent yapar — zaten okunmuş mesajın
	// read_at değeri ezilmez.
	if _, err := r.db.ExecContext(ctx,
		"UPDATE messages SET read = 1, read_at = ? WHERE id = ? AND read = 0",
		readAt, id,
	); err != nil {
		return nil, fmt.Errorf("failed to mark message read: %w", err)
	}

	// Mesaj hiç yoksa GetByID pkg.ErrNotFound döner.
	return r.GetByID(ctx, id)
}

// MarkConversationRead, alıcının konuşmadaki tüm okunmamış backlog'unu tek
// geçişte okundu yapar ve etkilenen mesaj ID'lerini döner.
//
// Alıcı rolü recipientRole ise okunacak mesajlar karşı rolün yazdıklarıdır.
func (r *sqliteMessageRepo) MarkConversationRead(ctx context.Context, conversationID string, recipientRole models.Role, readAt time.Time) ([]string, error) {
	query := `
		UPDATE messages
		SET read = 1, read_at = ?
		WHERE conversation_id = ?
		  AND sender_role = ?
		  AND read = 0
		RETURNING id`

	rows, err := r.db.QueryContext(ctx, query, readAt, conversationID, recipientRole.Opposite())
	if err != nil {
		return nil, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan marked id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate marked ids: %w", err)
	}

	return ids, nil
}

// CountUnread, katılımcının alıcı olduğu tüm konuşmalardaki okunmamış mesaj
// sayılarını TEK sorguyla döner (cold start / reconnect recovery).
//
// "Alıcı" tanımı: katılımcı konuşmada applicant ise recruiter'ın yazdığı,
// recruiter ise applicant'ın yazdığı okunmamış mesajlar sayılır.
// Okunmamış mesajı olmayan konuşmalar sonuçta yer almaz (sayaç = 0 kabul edilir).
func (r *sqliteMessageRepo) CountUnread(ctx context.Context, participantID string) (map[string]int, error) {
	query := `
		SELECT m.conversation_id, COUNT(*)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.read = 0
		  AND ((c.applicant_id = ? AND m.sender_role = 'recruiter')
		    OR (c.recruiter_id = ? AND m.sender_role = 'applicant'))
		GROUP BY m.conversation_id`

	rows, err := r.db.QueryContext(ctx, query, participantID, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var conversationID string
		var count int
		if err := rows.Scan(&conversationID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		counts[conversationID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unread counts: %w", err)
	}

	return counts, nil
}

// scanner, *sql.Row ve *sql.Rows'un ortak Scan yüzeyi.
type scanner interface {
	Scan(dest ...any) error
}

// scanMessage, messageColumns sırasındaki bir satırı Message'a okur.
func scanMessage(s scanner) (*models.Message, error) {
	msg := &models.Message{}
	var read int

	err := s.Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderRole, &msg.SenderID, &msg.SenderName,
		&msg.Type, &msg.Content, &read, &msg.ReadAt, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Read = read != 0
	return msg, nil
}
