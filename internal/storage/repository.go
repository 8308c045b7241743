package storage

import (
	"context"

	"github.com/atendezap/atendezap/internal/storage/model"
)

// ErrNotFound é compartilhado por todos os drivers, para que os chamadores
// possam usar errors.Is independentemente do backend configurado.
var ErrNotFound = model.ErrNotFound

type InstanceRepository interface {
	Create(ctx context.Context, instance model.Instance) (model.Instance, error)
	GetByID(ctx context.Context, id string) (model.Instance, error)
	GetByName(ctx context.Context, name string) (model.Instance, error)
	List(ctx context.Context) ([]model.Instance, error)
	Update(ctx context.Context, instance model.Instance) (model.Instance, error)
	Delete(ctx context.Context, id string) error
}

type ConversationRepository interface {
	Create(ctx context.Context, conv model.Conversation) (model.Conversation, error)
	GetByID(ctx context.Context, id string) (model.Conversation, error)
	// ListByContact retorna as conversas da instância cujo contact_phone casa com
	// qualquer um dos telefones informados (cru e normalizado), da mais recente
	// para a mais antiga.
	ListByContact(ctx context.Context, instanceID string, phones []string) ([]model.Conversation, error)
	Update(ctx context.Context, conv model.Conversation) (model.Conversation, error)
	Delete(ctx context.Context, id string) error
}

type MessageRepository interface {
	Create(ctx context.Context, message model.Message) (model.Message, error)
	GetByExternalID(ctx context.Context, instanceID, externalID string) (model.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error)
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
	// Reassign move todas as mensagens de uma conversa para outra (merge de duplicatas).
	Reassign(ctx context.Context, fromConversationID, toConversationID string) (int64, error)
	UpdateStatusByExternalID(ctx context.Context, instanceID, externalID, status string) error
}
