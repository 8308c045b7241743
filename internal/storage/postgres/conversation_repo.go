package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atendezap/atendezap/internal/storage/model"
)

type conversationRepo struct {
	db *DB
}

func NewConversationRepository(db *DB) *conversationRepo {
	return &conversationRepo{db: db}
}

const conversationColumns = `id, instance_id, contact_phone, COALESCE(contact_name, ''), COALESCE(last_message, ''), last_message_at, unread_count, pinned, pinned_at, created_at, updated_at`

func (r *conversationRepo) Create(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if conv.LastMessageAt.IsZero() {
		conv.LastMessageAt = now
	}

	query := `
		INSERT INTO conversations (id, instance_id, contact_phone, contact_name, last_message, last_message_at, unread_count, pinned, pinned_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + conversationColumns + `
	`

	err := r.db.Pool.QueryRow(ctx, query,
		conv.ID, conv.InstanceID, conv.ContactPhone, nullIfEmpty(conv.ContactName), nullIfEmpty(conv.LastMessage), conv.LastMessageAt, conv.UnreadCount, conv.Pinned, conv.PinnedAt, conv.CreatedAt, conv.UpdatedAt,
	).Scan(
		&conv.ID, &conv.InstanceID, &conv.ContactPhone, &conv.ContactName, &conv.LastMessage, &conv.LastMessageAt, &conv.UnreadCount, &conv.Pinned, &conv.PinnedAt, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return model.Conversation{}, err
	}

	return conv, nil
}

func (r *conversationRepo) GetByID(ctx context.Context, id string) (model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	var conv model.Conversation
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.InstanceID, &conv.ContactPhone, &conv.ContactName, &conv.LastMessage, &conv.LastMessageAt, &conv.UnreadCount, &conv.Pinned, &conv.PinnedAt, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Conversation{}, ErrNotFound
	}
	if err != nil {
		return model.Conversation{}, err
	}
	return conv, nil
}

func (r *conversationRepo) ListByContact(ctx context.Context, instanceID string, phones []string) ([]model.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE instance_id = $1 AND contact_phone = ANY($2)
		ORDER BY last_message_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, instanceID, phones)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(
			&conv.ID, &conv.InstanceID, &conv.ContactPhone, &conv.ContactName, &conv.LastMessage, &conv.LastMessageAt, &conv.UnreadCount, &conv.Pinned, &conv.PinnedAt, &conv.CreatedAt, &conv.UpdatedAt,
		); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

func (r *conversationRepo) Update(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	conv.UpdatedAt = time.Now()

	query := `
		UPDATE conversations
		SET contact_phone = $2, contact_name = $3, last_message = $4, last_message_at = $5, unread_count = $6, pinned = $7, pinned_at = $8, updated_at = $9
		WHERE id = $1
		RETURNING ` + conversationColumns + `
	`

	err := r.db.Pool.QueryRow(ctx, query,
		conv.ID, conv.ContactPhone, nullIfEmpty(conv.ContactName), nullIfEmpty(conv.LastMessage), conv.LastMessageAt, conv.UnreadCount, conv.Pinned, conv.PinnedAt, conv.UpdatedAt,
	).Scan(
		&conv.ID, &conv.InstanceID, &conv.ContactPhone, &conv.ContactName, &conv.LastMessage, &conv.LastMessageAt, &conv.UnreadCount, &conv.Pinned, &conv.PinnedAt, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Conversation{}, ErrNotFound
	}
	if err != nil {
		return model.Conversation{}, err
	}

	return conv, nil
}

func (r *conversationRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
