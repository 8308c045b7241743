package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/evolution"
)

type fakeLookup struct {
	byJID  map[string][]evolution.Contact
	byName map[string][]evolution.Contact
	err    error
	calls  int
}

func (f *fakeLookup) FindContacts(_ context.Context, _ string, filter evolution.ContactFilter) ([]evolution.Contact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if filter.RemoteJID != "" {
		return f.byJID[filter.RemoteJID], nil
	}
	return f.byName[filter.PushName], nil
}

func TestResolveIdentificadorDireto(t *testing.T) {
	lookup := &fakeLookup{}
	r := NewResolver(lookup, zap.NewNop())

	got := r.Resolve(context.Background(), Input{RemoteJID: "41791234567@s.whatsapp.net"})
	assert.Equal(t, "41791234567", got)
	assert.Zero(t, lookup.calls, "identificador direto não deve consultar o gateway")
}

func TestResolveViaParticipant(t *testing.T) {
	r := NewResolver(&fakeLookup{}, zap.NewNop())

	got := r.Resolve(context.Background(), Input{
		RemoteJID:   "987654321012@lid",
		Participant: "5511988887777@s.whatsapp.net",
	})
	assert.Equal(t, "5511988887777", got)
}

func TestResolveViaParticipantAlternativo(t *testing.T) {
	r := NewResolver(&fakeLookup{}, zap.NewNop())

	got := r.Resolve(context.Background(), Input{
		RemoteJID:   "987654321012@lid",
		Participant: "111222333444@lid",
		AltJID:      "33612345678@s.whatsapp.net",
	})
	assert.Equal(t, "33612345678", got)
}

func TestResolveViaBuscaDeContatos(t *testing.T) {
	// LID sem participants utilizáveis; o lookup devolve um candidato
	// não-LID com pushName igual
	lookup := &fakeLookup{
		byJID: map[string][]evolution.Contact{
			"123456789@lid": {
				{RemoteJID: "41798887766@s.whatsapp.net", PushName: "Maria Souza"},
			},
		},
	}
	r := NewResolver(lookup, zap.NewNop())

	got := r.Resolve(context.Background(), Input{
		RemoteJID: "123456789@lid",
		PushName:  "Maria Souza",
		Instance:  "inst-1",
	})
	assert.Equal(t, "41798887766", got)
}

func TestResolveBuscaPreferePushNameExato(t *testing.T) {
	lookup := &fakeLookup{
		byJID: map[string][]evolution.Contact{
			"123456789@lid": {
				{RemoteJID: "559999990001@s.whatsapp.net", PushName: "Outro"},
				{RemoteJID: "559999990002@s.whatsapp.net", PushName: "maria souza"},
			},
		},
	}
	r := NewResolver(lookup, zap.NewNop())

	got := r.Resolve(context.Background(), Input{
		RemoteJID: "123456789@lid",
		PushName:  "Maria Souza",
		Instance:  "inst-1",
	})
	assert.Equal(t, "559999990002", got, "pushName igual (case-insensitive) tem prioridade")
}

func TestResolveBuscaDescartaLIDEGrupos(t *testing.T) {
	lookup := &fakeLookup{
		byJID: map[string][]evolution.Contact{
			"123456789@lid": {
				{RemoteJID: "555666777888@lid", PushName: "Maria"},
				{RemoteJID: "12036304@g.us", PushName: "Maria"},
			},
		},
		byName: map[string][]evolution.Contact{
			"Maria": {
				{RemoteJID: "5521977776666@s.whatsapp.net", PushName: "Maria"},
			},
		},
	}
	r := NewResolver(lookup, zap.NewNop())

	got := r.Resolve(context.Background(), Input{
		RemoteJID: "123456789@lid",
		PushName:  "Maria",
		Instance:  "inst-1",
	})
	assert.Equal(t, "5521977776666", got, "deve tentar o filtro por pushName quando o filtro por JID só traz LID/grupo")
}

func TestResolveBuscaRejeitaTamanhoImplausivel(t *testing.T) {
	lookup := &fakeLookup{
		byJID: map[string][]evolution.Contact{
			"4444555566@lid": {
				{RemoteJID: "123@s.whatsapp.net", PushName: "Curto"},
			},
		},
	}
	r := NewResolver(lookup, zap.NewNop())

	// candidato com 3 dígitos é descartado; cai nos dígitos do próprio LID
	got := r.Resolve(context.Background(), Input{
		RemoteJID: "4444555566@lid",
		Instance:  "inst-1",
	})
	assert.Equal(t, "4444555566", got)
}

func TestResolveFallbackDigitosDoLID(t *testing.T) {
	r := NewResolver(&fakeLookup{err: errors.New("gateway indisponível")}, zap.NewNop())

	got := r.Resolve(context.Background(), Input{RemoteJID: "987654321012@lid"})
	assert.Equal(t, "987654321012", got)
}

func TestResolveIrresolvivel(t *testing.T) {
	r := NewResolver(&fakeLookup{}, zap.NewNop())

	// LID com menos de 8 dígitos e nenhum fallback utilizável
	got := r.Resolve(context.Background(), Input{RemoteJID: "1234@lid"})
	assert.Equal(t, "", got)
}

func TestIsLIDIsGroup(t *testing.T) {
	assert.True(t, IsLID("123@lid"))
	assert.True(t, IsLID("123@LID"))
	assert.False(t, IsLID("123@s.whatsapp.net"))
	assert.True(t, IsGroup("12036304@g.us"))
	assert.False(t, IsGroup("123@lid"))
}
