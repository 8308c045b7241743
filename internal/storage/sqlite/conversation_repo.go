package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Conn.ExecContext(ctx, query,
		conv.ID, conv.InstanceID, conv.ContactPhone, nullIfEmpty(conv.ContactName), nullIfEmpty(conv.LastMessage),
		conv.LastMessageAt.Format(time.RFC3339), conv.UnreadCount, conv.Pinned, formatTimePtr(conv.PinnedAt),
		conv.CreatedAt.Format(time.RFC3339), conv.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return model.Conversation{}, err
	}

	return conv, nil
}

func (r *conversationRepo) GetByID(ctx context.Context, id string) (model.Conversation, error) {
	row := r.db.Conn.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	conv, err := scanConversation(row.Scan)
	if err != nil {
		return model.Conversation{}, mapError(err)
	}
	return conv, nil
}

func (r *conversationRepo) ListByContact(ctx context.Context, instanceID string, phones []string) ([]model.Conversation, error) {
	if len(phones) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(phones)), ",")
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE instance_id = ? AND contact_phone IN (` + placeholders + `)
		ORDER BY last_message_at DESC
	`

	args := make([]any, 0, len(phones)+1)
	args = append(args, instanceID)
	for _, p := range phones {
		args = append(args, p)
	}

	rows, err := r.db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows.Scan)
		if err != nil {
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
		SET contact_phone = ?, contact_name = ?, last_message = ?, last_message_at = ?, unread_count = ?, pinned = ?, pinned_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Conn.ExecContext(ctx, query,
		conv.ContactPhone, nullIfEmpty(conv.ContactName), nullIfEmpty(conv.LastMessage),
		conv.LastMessageAt.Format(time.RFC3339), conv.UnreadCount, conv.Pinned, formatTimePtr(conv.PinnedAt),
		conv.UpdatedAt.Format(time.RFC3339), conv.ID,
	)
	if err != nil {
		return model.Conversation{}, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return model.Conversation{}, err
	}
	if affected == 0 {
		return model.Conversation{}, ErrNotFound
	}

	return conv, nil
}

func (r *conversationRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanConversation(scan func(dest ...any) error) (model.Conversation, error) {
	var conv model.Conversation
	var lastMessageAt, createdAt, updatedAt string
	var pinnedAt sql.NullString

	err := scan(
		&conv.ID, &conv.InstanceID, &conv.ContactPhone, &conv.ContactName, &conv.LastMessage, &lastMessageAt, &conv.UnreadCount, &conv.Pinned, &pinnedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return model.Conversation{}, err
	}

	conv.LastMessageAt, _ = time.Parse(time.RFC3339, lastMessageAt)
	conv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	conv.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if pinnedAt.Valid {
		conv.PinnedAt = parseTimePtr(pinnedAt.String)
	}

	return conv, nil
}
