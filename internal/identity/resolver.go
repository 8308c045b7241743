// Package identity resolve identificadores anonimizados ("LID") para números
// de telefone reais. O gateway substitui o número por um LID quando a
// privacidade do contato esconde o telefone; ainda assim as mensagens precisam
// cair na mesma conversa sempre que algum fallback produzir um número válido.
package identity

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/evolution"
	"github.com/atendezap/atendezap/internal/pkg/phone"
)

const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// ContactLookup é o recorte do cliente do gateway que o resolvedor usa.
type ContactLookup interface {
	FindContacts(ctx context.Context, instanceName string, filter evolution.ContactFilter) ([]evolution.Contact, error)
}

// Input reúne os campos do evento relevantes para resolução de identidade.
type Input struct {
	RemoteJID   string // key.remoteJid do evento
	Participant string // key.participant (grupos / lid)
	AltJID      string // data.participant ou campo alternativo do payload
	PushName    string // nome de exibição informado pelo remetente
	Instance    string // nome da instância no gateway
}

// IsLID indica um identificador anonimizado.
func IsLID(jid string) bool {
	return strings.HasSuffix(strings.ToLower(jid), "@lid")
}

// IsGroup indica um identificador de grupo.
func IsGroup(jid string) bool {
	return strings.HasSuffix(strings.ToLower(jid), "@g.us")
}

func plausible(digits string) bool {
	return len(digits) >= minPhoneDigits && len(digits) <= maxPhoneDigits
}

// strategy tenta produzir um telefone normalizado; retorna "" quando não consegue.
type strategy struct {
	name string
	run  func(ctx context.Context, in Input) string
}

type Resolver struct {
	lookup     ContactLookup
	log        *zap.Logger
	strategies []strategy
}

func NewResolver(lookup ContactLookup, log *zap.Logger) *Resolver {
	r := &Resolver{lookup: lookup, log: log}
	r.strategies = []strategy{
		{name: "remote_jid_direto", run: r.fromRemoteJID},
		{name: "participant", run: r.fromParticipant},
		{name: "participant_alternativo", run: r.fromAltJID},
		{name: "busca_contatos", run: r.fromContactLookup},
		{name: "digitos_do_lid", run: r.fromLIDDigits},
	}
	return r
}

// Resolve percorre as estratégias em ordem e para na primeira que produzir
// um telefone. Retorna "" quando a identidade é irresolvível: o chamador deve
// tratar o evento como no-op em vez de gravar dados corrompidos.
func (r *Resolver) Resolve(ctx context.Context, in Input) string {
	for _, s := range r.strategies {
		if resolved := s.run(ctx, in); resolved != "" {
			r.log.Debug("identity: resolvido",
				zap.String("estrategia", s.name),
				zap.String("remote_jid", in.RemoteJID),
			)
			return resolved
		}
	}

	r.log.Warn("identity: identidade irresolvível, evento será descartado",
		zap.String("remote_jid", in.RemoteJID),
		zap.String("push_name", in.PushName),
	)
	return ""
}

func (r *Resolver) fromRemoteJID(_ context.Context, in Input) string {
	if in.RemoteJID == "" || IsLID(in.RemoteJID) {
		return ""
	}
	return phone.Normalize(in.RemoteJID)
}

func (r *Resolver) fromParticipant(_ context.Context, in Input) string {
	if in.Participant == "" || IsLID(in.Participant) {
		return ""
	}
	return phone.Normalize(in.Participant)
}

func (r *Resolver) fromAltJID(_ context.Context, in Input) string {
	if in.AltJID == "" || IsLID(in.AltJID) {
		return ""
	}
	return phone.Normalize(in.AltJID)
}

// fromContactLookup consulta o gateway: primeiro pelo JID exato, depois pelo
// nome de exibição. Descarta candidatos LID/grupo e prefere o candidato cujo
// pushName casa exatamente (sem diferenciar maiúsculas) com o do remetente.
func (r *Resolver) fromContactLookup(ctx context.Context, in Input) string {
	if r.lookup == nil || !IsLID(in.RemoteJID) {
		return ""
	}

	candidates := r.findUsable(ctx, in.Instance, evolution.ContactFilter{RemoteJID: in.RemoteJID})
	if len(candidates) == 0 && in.PushName != "" {
		candidates = r.findUsable(ctx, in.Instance, evolution.ContactFilter{PushName: in.PushName})
	}
	if len(candidates) == 0 {
		return ""
	}

	ordered := candidates
	if in.PushName != "" {
		preferred := make([]evolution.Contact, 0, len(candidates))
		rest := make([]evolution.Contact, 0, len(candidates))
		for _, c := range candidates {
			if strings.EqualFold(c.PushName, in.PushName) {
				preferred = append(preferred, c)
			} else {
				rest = append(rest, c)
			}
		}
		ordered = append(preferred, rest...)
	}

	for _, c := range ordered {
		digits := phone.Normalize(c.RemoteJID)
		if plausible(digits) {
			return digits
		}
	}

	// nenhum candidato com tamanho plausível: cai para a próxima estratégia
	return ""
}

func (r *Resolver) findUsable(ctx context.Context, instance string, filter evolution.ContactFilter) []evolution.Contact {
	contacts, err := r.lookup.FindContacts(ctx, instance, filter)
	if err != nil {
		r.log.Warn("identity: busca de contatos falhou", zap.Error(err))
		return nil
	}

	usable := contacts[:0:0]
	for _, c := range contacts {
		if IsLID(c.RemoteJID) || IsGroup(c.RemoteJID) {
			continue
		}
		usable = append(usable, c)
	}
	return usable
}

// fromLIDDigits é o último recurso: os dígitos do próprio LID, desde que haja
// pelo menos o mínimo de um telefone real. Melhor agrupar sob o LID estável do
// que descartar a mensagem.
func (r *Resolver) fromLIDDigits(_ context.Context, in Input) string {
	digits := phone.Normalize(in.RemoteJID)
	if len(digits) >= minPhoneDigits {
		return digits
	}
	return ""
}
