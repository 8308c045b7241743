// Package message implementa a escrita dupla de mensagens: inserção no
// datastore primário seguida da sincronização best-effort com o armazenamento
// semântico. A degradação graciosa do secundário é requisito de projeto.
package message

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/storage"
	"github.com/atendezap/atendezap/internal/storage/model"
	"github.com/atendezap/atendezap/internal/supermemory"
)

type Service struct {
	messages storage.MessageRepository
	syncer   *supermemory.Syncer
	log      *zap.Logger

	// async controla se a sincronização secundária roda em goroutine.
	// Desligado apenas em testes, para asserções determinísticas.
	async bool
}

func NewService(messages storage.MessageRepository, syncer *supermemory.Syncer, log *zap.Logger) *Service {
	return &Service{messages: messages, syncer: syncer, log: log, async: true}
}

// StoreResult descreve o desfecho da escrita dupla. Só o erro do primário
// importa para o chamador; o secundário nunca bloqueia nem falha o fluxo.
type StoreResult struct {
	Message      model.Message
	Duplicate    bool
	MemoryStatus supermemory.SyncStatus
}

// Store insere a mensagem no datastore primário e dispara a sincronização
// secundária, a menos que skipMemory seja verdadeiro. Mensagens com external
// id já conhecido são entregas repetidas do gateway e viram no-op idempotente.
func (s *Service) Store(ctx context.Context, msg model.Message, contactName string, skipMemory bool) (StoreResult, error) {
	if msg.ExternalID != "" {
		existing, err := s.messages.GetByExternalID(ctx, msg.InstanceID, msg.ExternalID)
		if err == nil {
			s.log.Debug("message: entrega duplicada ignorada",
				zap.String("external_id", msg.ExternalID),
				zap.String("message_id", existing.ID),
			)
			return StoreResult{Message: existing, Duplicate: true, MemoryStatus: supermemory.SyncSkipped}, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("message: falha ao checar duplicata, inserindo assim mesmo", zap.Error(err))
		}
	}

	stored, err := s.messages.Create(ctx, msg)
	if err != nil {
		// ainda tentamos o secundário com o payload original; o erro do
		// primário é o que o chamador decide logar/propagar
		s.log.Error("message: falha ao inserir no datastore primário", zap.Error(err))
		stored = msg
	}

	result := StoreResult{Message: stored, MemoryStatus: supermemory.SyncSkipped}
	if skipMemory || s.syncer == nil {
		return result, err
	}

	if s.async {
		go func(m model.Message, name string) {
			s.syncer.SyncMessage(context.Background(), m, name)
		}(stored, contactName)
		return result, err
	}

	result.MemoryStatus = s.syncer.SyncMessage(ctx, stored, contactName)
	return result, err
}
