package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atendezap/atendezap/internal/storage/model"
)

type messageRepo struct {
	db *DB
}

func NewMessageRepository(db *DB) *messageRepo {
	return &messageRepo{db: db}
}

const messageColumns = `id, conversation_id, instance_id, COALESCE(external_id, ''), sender_phone, receiver_phone, direction, content, status, message_timestamp, created_at`

func (r *messageRepo) Create(ctx context.Context, msg model.Message) (model.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = time.Now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = msg.CreatedAt
	}

	query := `
		INSERT INTO messages (id, conversation_id, instance_id, external_id, sender_phone, receiver_phone, direction, content, status, message_timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + messageColumns + `
	`

	err := r.db.Pool.QueryRow(ctx, query,
		msg.ID, msg.ConversationID, msg.InstanceID, nullIfEmpty(msg.ExternalID), msg.SenderPhone, msg.ReceiverPhone, string(msg.Direction), msg.Content, msg.Status, msg.Timestamp, msg.CreatedAt,
	).Scan(
		&msg.ID, &msg.ConversationID, &msg.InstanceID, &msg.ExternalID, &msg.SenderPhone, &msg.ReceiverPhone, &msg.Direction, &msg.Content, &msg.Status, &msg.Timestamp, &msg.CreatedAt,
	)
	if err != nil {
		return model.Message{}, err
	}

	return msg, nil
}

func (r *messageRepo) GetByExternalID(ctx context.Context, instanceID, externalID string) (model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE instance_id = $1 AND external_id = $2
		LIMIT 1
	`

	var msg model.Message
	err := r.db.Pool.QueryRow(ctx, query, instanceID, externalID).Scan(
		&msg.ID, &msg.ConversationID, &msg.InstanceID, &msg.ExternalID, &msg.SenderPhone, &msg.ReceiverPhone, &msg.Direction, &msg.Content, &msg.Status, &msg.Timestamp, &msg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Message{}, ErrNotFound
	}
	if err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY message_timestamp ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.InstanceID, &msg.ExternalID, &msg.SenderPhone, &msg.ReceiverPhone, &msg.Direction, &msg.Content, &msg.Status, &msg.Timestamp, &msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (r *messageRepo) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&count)
	return count, err
}

func (r *messageRepo) Reassign(ctx context.Context, fromConversationID, toConversationID string) (int64, error) {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE messages SET conversation_id = $2 WHERE conversation_id = $1`,
		fromConversationID, toConversationID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *messageRepo) UpdateStatusByExternalID(ctx context.Context, instanceID, externalID, status string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE messages SET status = $3 WHERE instance_id = $1 AND external_id = $2`,
		instanceID, externalID, status,
	)
	return err
}
