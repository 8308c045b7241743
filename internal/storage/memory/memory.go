// Package memory implementa os repositórios em memória. Serve para
// desenvolvimento local sem banco e para os testes dos demais pacotes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atendezap/atendezap/internal/storage/model"
)

type Store struct {
	mu            sync.Mutex
	instances     map[string]model.Instance
	conversations map[string]model.Conversation
	messages      map[string]model.Message
}

func NewStore() *Store {
	return &Store{
		instances:     make(map[string]model.Instance),
		conversations: make(map[string]model.Conversation),
		messages:      make(map[string]model.Message),
	}
}

func (s *Store) Instances() *InstanceRepo         { return &InstanceRepo{s} }
func (s *Store) Conversations() *ConversationRepo { return &ConversationRepo{s} }
func (s *Store) Messages() *MessageRepo           { return &MessageRepo{s} }

type InstanceRepo struct{ s *Store }

func (r *InstanceRepo) Create(_ context.Context, inst model.Instance) (model.Instance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	now := time.Now()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	r.s.instances[inst.ID] = inst
	return inst, nil
}

func (r *InstanceRepo) GetByID(_ context.Context, id string) (model.Instance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inst, ok := r.s.instances[id]
	if !ok {
		return model.Instance{}, model.ErrNotFound
	}
	return inst, nil
}

func (r *InstanceRepo) GetByName(_ context.Context, name string) (model.Instance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, inst := range r.s.instances {
		if inst.Name == name {
			return inst, nil
		}
	}
	return model.Instance{}, model.ErrNotFound
}

func (r *InstanceRepo) List(_ context.Context) ([]model.Instance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]model.Instance, 0, len(r.s.instances))
	for _, inst := range r.s.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InstanceRepo) Update(_ context.Context, inst model.Instance) (model.Instance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.instances[inst.ID]; !ok {
		return model.Instance{}, model.ErrNotFound
	}
	inst.UpdatedAt = time.Now()
	r.s.instances[inst.ID] = inst
	return inst, nil
}

func (r *InstanceRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.instances[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.s.instances, id)
	return nil
}

type ConversationRepo struct{ s *Store }

func (r *ConversationRepo) Create(_ context.Context, conv model.Conversation) (model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if conv.LastMessageAt.IsZero() {
		conv.LastMessageAt = now
	}
	r.s.conversations[conv.ID] = conv
	return conv, nil
}

func (r *ConversationRepo) GetByID(_ context.Context, id string) (model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	conv, ok := r.s.conversations[id]
	if !ok {
		return model.Conversation{}, model.ErrNotFound
	}
	return conv, nil
}

func (r *ConversationRepo) ListByContact(_ context.Context, instanceID string, phones []string) ([]model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	match := make(map[string]bool, len(phones))
	for _, p := range phones {
		match[p] = true
	}

	var out []model.Conversation
	for _, conv := range r.s.conversations {
		if conv.InstanceID == instanceID && match[conv.ContactPhone] {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

func (r *ConversationRepo) Update(_ context.Context, conv model.Conversation) (model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[conv.ID]; !ok {
		return model.Conversation{}, model.ErrNotFound
	}
	conv.UpdatedAt = time.Now()
	r.s.conversations[conv.ID] = conv
	return conv, nil
}

func (r *ConversationRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.s.conversations, id)
	return nil
}

type MessageRepo struct{ s *Store }

func (r *MessageRepo) Create(_ context.Context, msg model.Message) (model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = time.Now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = msg.CreatedAt
	}
	r.s.messages[msg.ID] = msg
	return msg, nil
}

func (r *MessageRepo) GetByExternalID(_ context.Context, instanceID, externalID string) (model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, msg := range r.s.messages {
		if msg.InstanceID == instanceID && msg.ExternalID == externalID {
			return msg, nil
		}
	}
	return model.Message{}, model.ErrNotFound
}

func (r *MessageRepo) ListByConversation(_ context.Context, conversationID string) ([]model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []model.Message
	for _, msg := range r.s.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *MessageRepo) CountByConversation(_ context.Context, conversationID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	for _, msg := range r.s.messages {
		if msg.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

func (r *MessageRepo) Reassign(_ context.Context, fromConversationID, toConversationID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var moved int64
	for id, msg := range r.s.messages {
		if msg.ConversationID == fromConversationID {
			msg.ConversationID = toConversationID
			r.s.messages[id] = msg
			moved++
		}
	}
	return moved, nil
}

func (r *MessageRepo) UpdateStatusByExternalID(_ context.Context, instanceID, externalID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, msg := range r.s.messages {
		if msg.InstanceID == instanceID && msg.ExternalID == externalID {
			msg.Status = status
			r.s.messages[id] = msg
		}
	}
	return nil
}
