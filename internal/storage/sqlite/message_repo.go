package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Conn.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, msg.InstanceID, nullIfEmpty(msg.ExternalID),
		msg.SenderPhone, msg.ReceiverPhone, string(msg.Direction), msg.Content, msg.Status,
		msg.Timestamp.Format(time.RFC3339), msg.CreatedAt.Format(time.RFC3339),
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
		WHERE instance_id = ? AND external_id = ?
		LIMIT 1
	`

	row := r.db.Conn.QueryRowContext(ctx, query, instanceID, externalID)
	msg, err := scanMessage(row.Scan)
	if err != nil {
		return model.Message{}, mapError(err)
	}
	return msg, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ?
		ORDER BY message_timestamp ASC
	`

	rows, err := r.db.Conn.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (r *messageRepo) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&count)
	return count, err
}

func (r *messageRepo) Reassign(ctx context.Context, fromConversationID, toConversationID string) (int64, error) {
	result, err := r.db.Conn.ExecContext(ctx,
		`UPDATE messages SET conversation_id = ? WHERE conversation_id = ?`,
		toConversationID, fromConversationID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *messageRepo) UpdateStatusByExternalID(ctx context.Context, instanceID, externalID, status string) error {
	_, err := r.db.Conn.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE instance_id = ? AND external_id = ?`,
		status, instanceID, externalID,
	)
	return err
}

func scanMessage(scan func(dest ...any) error) (model.Message, error) {
	var msg model.Message
	var timestamp, createdAt string

	err := scan(
		&msg.ID, &msg.ConversationID, &msg.InstanceID, &msg.ExternalID, &msg.SenderPhone, &msg.ReceiverPhone, &msg.Direction, &msg.Content, &msg.Status, &timestamp, &createdAt,
	)
	if err != nil {
		return model.Message{}, err
	}

	msg.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
	msg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return msg, nil
}
