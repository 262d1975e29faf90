package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/pkg"
)

// sqliteConversationRepo, ConversationRepository interface'inin SQLite implementasyonu.
type sqliteConversationRepo struct {
	db *sql.DB
}

// NewSQLiteConversationRepo, constructor — interface döner.
func NewSQLiteConversationRepo(db *sql.DB) ConversationRepository {
	return &sqliteConversationRepo{db: db}
}

const conversationColumns = `id, job_title, applicant_id, applicant_name, applicant_email,
       recruiter_id, recruiter_name, recruiter_email, created_at, last_message_at`

// Create, dış başvuru sistemi bir başvuru açtığında konuşma satırını oluşturur.
// ID dışarıdan gelir — konuşma ID'si başvuru ID'sidir.
func (r *sqliteConversationRepo) Create(ctx context.Context, conversation *models.Conversation) error {
	query := `
		INSERT INTO conversations (id, job_title, applicant_id, applicant_name, applicant_email,
		                           recruiter_id, recruiter_name, recruiter_email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		conversation.ID,
		conversation.JobTitle,
		conversation.ApplicantID,
		conversation.ApplicantName,
		conversation.ApplicantEmail,
		conversation.RecruiterID,
		conversation.RecruiterName,
		conversation.RecruiterEmail,
	).Scan(&conversation.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

func (r *sqliteConversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`

	conv, err := scanConversation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation by id: %w", err)
	}

	return conv, nil
}

// ListByParticipant, katılımcının tüm konuşmalarını son aktiviteye göre döner
// (yeni mesajlı konuşmalar başta, hiç mesajsızlar oluşturma sırasına göre sonda).
func (r *sqliteConversationRepo) ListByParticipant(ctx context.Context, participantID string) ([]models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE applicant_id = ? OR recruiter_id = ?
		ORDER BY last_message_at IS NULL, last_message_at DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, participantID, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	return conversations, nil
}

func scanConversation(s scanner) (*models.Conversation, error) {
	conv := &models.Conversation{}

	err := s.Scan(
		&conv.ID, &conv.JobTitle,
		&conv.ApplicantID, &conv.ApplicantName, &conv.ApplicantEmail,
		&conv.RecruiterID, &conv.RecruiterName, &conv.RecruiterEmail,
		&conv.CreatedAt, &conv.LastMessageAt,
	)
	if err != nil {
		return nil, err
	}

	return conv, nil
}
