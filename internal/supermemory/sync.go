package supermemory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/pkg/cache"
	"github.com/atendezap/atendezap/internal/storage/model"
)

type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
	SyncSkipped SyncStatus = "skipped"
)

const (
	maxAttempts    = 3
	attemptTimeout = 5 * time.Second
	baseBackoff    = 500 * time.Millisecond
)

// DocumentCreator é o recorte do cliente que o sincronizador usa.
type DocumentCreator interface {
	Configured() bool
	CreateDocument(ctx context.Context, doc Document) error
}

// Syncer grava mensagens no armazenamento semântico com tentativas limitadas.
// O resultado nunca é propagado como erro para o chamador.
type Syncer struct {
	client       DocumentCreator
	contextCache *cache.Cache
	log          *zap.Logger
}

func NewSyncer(client DocumentCreator, contextCache *cache.Cache, log *zap.Logger) *Syncer {
	return &Syncer{client: client, contextCache: contextCache, log: log}
}

// SyncMessage tenta gravar a mensagem no armazenamento secundário:
// até 3 tentativas de 5s cada, com backoff exponencial entre elas.
// Endpoint/credencial ausentes resultam em "skipped", não em falha.
func (s *Syncer) SyncMessage(ctx context.Context, msg model.Message, contactName string) SyncStatus {
	if s.client == nil || !s.client.Configured() {
		return SyncSkipped
	}

	doc := Document{
		Content:      msg.Content,
		ContainerTag: "conversation_" + msg.ConversationID,
		CustomID:     msg.ID,
		Metadata: map[string]any{
			"instance_id":     msg.InstanceID,
			"conversation_id": msg.ConversationID,
			"direction":       string(msg.Direction),
			"sender_phone":    msg.SenderPhone,
			"contact_name":    contactName,
			"timestamp":       msg.Timestamp.Format(time.RFC3339),
		},
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff * time.Duration(1<<(attempt-1))
			s.log.Debug("supermemory: nova tentativa",
				zap.Int("tentativa", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				s.log.Warn("supermemory: contexto cancelado durante backoff",
					zap.String("message_id", msg.ID),
					zap.Error(ctx.Err()),
				)
				return SyncFailed
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		err := s.client.CreateDocument(attemptCtx, doc)
		cancel()

		if err == nil {
			if s.contextCache != nil {
				s.contextCache.Invalidate(contextCacheKey(msg.ConversationID))
			}
			s.log.Debug("supermemory: mensagem sincronizada",
				zap.String("message_id", msg.ID),
				zap.String("conversation_id", msg.ConversationID),
			)
			return SyncSynced
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	s.log.Warn("supermemory: sincronização falhou após todas as tentativas",
		zap.String("message_id", msg.ID),
		zap.Error(lastErr),
	)
	return SyncFailed
}

func contextCacheKey(conversationID string) string {
	return fmt.Sprintf("convctx:%s", conversationID)
}
