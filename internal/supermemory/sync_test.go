package supermemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/pkg/cache"
	"github.com/atendezap/atendezap/internal/storage/model"
)

type fakeCreator struct {
	configured bool
	failures   int
	calls      int
	lastDoc    Document
}

func (f *fakeCreator) Configured() bool { return f.configured }

func (f *fakeCreator) CreateDocument(_ context.Context, doc Document) error {
	f.calls++
	f.lastDoc = doc
	if f.calls <= f.failures {
		return errors.New("indisponível")
	}
	return nil
}

func testMessage() model.Message {
	return model.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		InstanceID:     "inst-1",
		SenderPhone:    "41791234567",
		Direction:      model.DirectionIncoming,
		Content:        "olá",
		Timestamp:      time.Now(),
	}
}

func TestSyncMessageSemConfiguracao(t *testing.T) {
	s := NewSyncer(&fakeCreator{configured: false}, nil, zap.NewNop())

	status := s.SyncMessage(context.Background(), testMessage(), "Ana")
	assert.Equal(t, SyncSkipped, status, "sem endpoint/credencial deve pular, não falhar")
}

func TestSyncMessageSucesso(t *testing.T) {
	c := cache.New(10, time.Minute)
	c.Set("convctx:conv-1", "contexto antigo")

	creator := &fakeCreator{configured: true}
	s := NewSyncer(creator, c, zap.NewNop())

	status := s.SyncMessage(context.Background(), testMessage(), "Ana")
	assert.Equal(t, SyncSynced, status)
	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, "conversation_conv-1", creator.lastDoc.ContainerTag)
	assert.Equal(t, "msg-1", creator.lastDoc.CustomID)

	_, ok := c.Get("convctx:conv-1")
	assert.False(t, ok, "sucesso invalida o cache de contexto da conversa")
}

func TestSyncMessageRetentaERecupera(t *testing.T) {
	creator := &fakeCreator{configured: true, failures: 2}
	s := NewSyncer(creator, nil, zap.NewNop())

	status := s.SyncMessage(context.Background(), testMessage(), "")
	assert.Equal(t, SyncSynced, status)
	assert.Equal(t, 3, creator.calls, "duas falhas seguidas de um sucesso")
}

func TestSyncMessageEsgotaTentativas(t *testing.T) {
	creator := &fakeCreator{configured: true, failures: 10}
	s := NewSyncer(creator, nil, zap.NewNop())

	status := s.SyncMessage(context.Background(), testMessage(), "")
	assert.Equal(t, SyncFailed, status)
	assert.Equal(t, maxAttempts, creator.calls)
}
