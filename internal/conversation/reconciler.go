// Package conversation garante uma única conversa canônica por
// (instância, telefone normalizado). Entregas de webhook concorrentes podem
// criar conversas duplicadas para um contato novo; o reconciliador detecta e
// funde as duplicatas no próximo evento observado para aquele contato.
package conversation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/storage"
	"github.com/atendezap/atendezap/internal/storage/model"
)

// Inbound descreve a mensagem que dispara a reconciliação.
type Inbound struct {
	InstanceID  string
	RawJID      string // identificador cru, pré-normalização (linhas históricas)
	Phone       string // telefone resolvido e normalizado
	ContactName string
	Preview     string
	Timestamp   time.Time
	Incoming    bool
}

// MergePlan é o resultado puro da política de merge: a primária com os campos
// agregados e as secundárias a descartar. Sem efeitos colaterais, para que a
// política seja testável sem datastore.
type MergePlan struct {
	Primary     model.Conversation
	Secondaries []model.Conversation
}

// BuildMergePlan escolhe a conversa primária e agrega os campos das demais.
// candidates deve vir ordenado da atividade mais recente para a mais antiga.
// Primária: a que já guarda o telefone normalizado; senão, a mais recente.
func BuildMergePlan(candidates []model.Conversation, normalizedPhone string) MergePlan {
	if len(candidates) == 0 {
		return MergePlan{}
	}

	primaryIdx := 0
	for i, c := range candidates {
		if c.ContactPhone == normalizedPhone {
			primaryIdx = i
			break
		}
	}

	primary := candidates[primaryIdx]
	primary.ContactPhone = normalizedPhone

	var secondaries []model.Conversation
	for i, sec := range candidates {
		if i == primaryIdx {
			continue
		}
		primary.UnreadCount += sec.UnreadCount
		if sec.LastMessageAt.After(primary.LastMessageAt) {
			primary.LastMessage = sec.LastMessage
			primary.LastMessageAt = sec.LastMessageAt
		}
		if primary.ContactName == "" && sec.ContactName != "" {
			primary.ContactName = sec.ContactName
		}
		secondaries = append(secondaries, sec)
	}

	return MergePlan{Primary: primary, Secondaries: secondaries}
}

// applyInbound atualiza a conversa com a mensagem recebida: preview, carimbo,
// contador de não lidas (só para mensagens recebidas) e nome quando houver um novo.
func applyInbound(conv model.Conversation, in Inbound) model.Conversation {
	conv.ContactPhone = in.Phone
	if in.Preview != "" {
		conv.LastMessage = in.Preview
	}
	if !in.Timestamp.IsZero() {
		conv.LastMessageAt = in.Timestamp
	}
	if in.Incoming {
		conv.UnreadCount++
	}
	if in.ContactName != "" {
		conv.ContactName = in.ContactName
	}
	return conv
}

type Reconciler struct {
	convRepo storage.ConversationRepository
	msgRepo  storage.MessageRepository
	log      *zap.Logger
}

func NewReconciler(convRepo storage.ConversationRepository, msgRepo storage.MessageRepository, log *zap.Logger) *Reconciler {
	return &Reconciler{convRepo: convRepo, msgRepo: msgRepo, log: log}
}

// Reconcile mapeia (instância, telefone) para exatamente uma conversa,
// criando, atualizando ou fundindo conforme necessário. Erros de persistência
// durante o merge são logados e o processamento continua com o melhor id
// conhecido: disponibilidade vence consistência perfeita aqui.
func (r *Reconciler) Reconcile(ctx context.Context, in Inbound) (model.Conversation, error) {
	lookup := []string{in.Phone}
	if in.RawJID != "" && in.RawJID != in.Phone {
		// cobre linhas históricas gravadas antes da normalização estrita
		lookup = append(lookup, in.RawJID)
	}

	candidates, err := r.convRepo.ListByContact(ctx, in.InstanceID, lookup)
	if err != nil {
		return model.Conversation{}, err
	}

	switch len(candidates) {
	case 0:
		return r.create(ctx, in)
	case 1:
		return r.update(ctx, candidates[0], in)
	default:
		return r.merge(ctx, candidates, in), nil
	}
}

func (r *Reconciler) create(ctx context.Context, in Inbound) (model.Conversation, error) {
	name := in.ContactName
	if name == "" {
		name = in.Phone
	}
	unread := 0
	if in.Incoming {
		unread = 1
	}

	conv, err := r.convRepo.Create(ctx, model.Conversation{
		InstanceID:    in.InstanceID,
		ContactPhone:  in.Phone,
		ContactName:   name,
		LastMessage:   in.Preview,
		LastMessageAt: in.Timestamp,
		UnreadCount:   unread,
	})
	if err != nil {
		return model.Conversation{}, err
	}

	r.log.Info("conversation: criada",
		zap.String("conversation_id", conv.ID),
		zap.String("instance_id", in.InstanceID),
		zap.String("contact_phone", in.Phone),
	)
	return conv, nil
}

func (r *Reconciler) update(ctx context.Context, conv model.Conversation, in Inbound) (model.Conversation, error) {
	if conv.ContactPhone != in.Phone {
		// autocorreção de linhas gravadas com o identificador cru
		r.log.Info("conversation: normalizando telefone armazenado",
			zap.String("conversation_id", conv.ID),
			zap.String("de", conv.ContactPhone),
			zap.String("para", in.Phone),
		)
	}

	updated, err := r.convRepo.Update(ctx, applyInbound(conv, in))
	if err != nil {
		r.log.Error("conversation: falha ao atualizar, seguindo com o estado anterior",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
		return conv, nil
	}
	return updated, nil
}

// merge executa o plano de fusão de forma síncrona antes de prosseguir.
// Sem isso o histórico se divide silenciosamente entre threads e o contador
// de não lidas perde o sentido.
func (r *Reconciler) merge(ctx context.Context, candidates []model.Conversation, in Inbound) model.Conversation {
	plan := BuildMergePlan(candidates, in.Phone)

	r.log.Warn("conversation: duplicatas detectadas, fundindo",
		zap.String("instance_id", in.InstanceID),
		zap.String("contact_phone", in.Phone),
		zap.Int("duplicatas", len(plan.Secondaries)),
		zap.String("primaria", plan.Primary.ID),
	)

	for _, sec := range plan.Secondaries {
		moved, err := r.msgRepo.Reassign(ctx, sec.ID, plan.Primary.ID)
		if err != nil {
			r.log.Error("conversation: falha ao mover mensagens da duplicata",
				zap.String("de", sec.ID),
				zap.String("para", plan.Primary.ID),
				zap.Error(err),
			)
			continue
		}
		if err := r.convRepo.Delete(ctx, sec.ID); err != nil {
			r.log.Error("conversation: falha ao remover duplicata",
				zap.String("conversation_id", sec.ID),
				zap.Error(err),
			)
			continue
		}
		r.log.Info("conversation: duplicata fundida",
			zap.String("de", sec.ID),
			zap.String("para", plan.Primary.ID),
			zap.Int64("mensagens_movidas", moved),
		)
	}

	merged := applyInbound(plan.Primary, in)
	updated, err := r.convRepo.Update(ctx, merged)
	if err != nil {
		r.log.Error("conversation: falha ao persistir primária após merge",
			zap.String("conversation_id", merged.ID),
			zap.Error(err),
		)
		return merged
	}
	return updated
}
