package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/automation"
	"github.com/atendezap/atendezap/internal/conversation"
	"github.com/atendezap/atendezap/internal/identity"
	"github.com/atendezap/atendezap/internal/service/message"
	"github.com/atendezap/atendezap/internal/storage/memory"
	"github.com/atendezap/atendezap/internal/storage/model"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"envelope válido", `{"event":"messages.upsert","instance":"zap","data":{}}`, false},
		{"corpo não-objeto", `[1,2,3]`, true},
		{"corpo string", `"oi"`, true},
		{"sem event", `{"instance":"zap"}`, true},
		{"event não-string", `{"event":42,"instance":"zap"}`, true},
		{"event vazio", `{"event":"","instance":"zap"}`, true},
		{"sem instance", `{"event":"messages.upsert"}`, true},
		{"instance não-string", `{"event":"messages.upsert","instance":{}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := ParseEvent([]byte(tt.body))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "messages.upsert", evt.Event)
			assert.Equal(t, "zap", evt.Instance)
		})
	}
}

func newDispatcher(t *testing.T, trigger *automation.Trigger) (*Dispatcher, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	log := zap.NewNop()
	resolver := identity.NewResolver(nil, log)
	reconciler := conversation.NewReconciler(store.Conversations(), store.Messages(), log)
	svc := message.NewService(store.Messages(), nil, log)
	return NewDispatcher(store.Instances(), resolver, reconciler, svc, trigger, log), store
}

func seedInstance(t *testing.T, store *memory.Store, aiEnabled bool) model.Instance {
	t.Helper()
	inst, err := store.Instances().Create(context.Background(), model.Instance{
		Name:        "zap-main",
		OwnerUserID: "user-1",
		Status:      model.InstanceStatusConnecting,
		PhoneNumber: "5541999990000",
		Token:       "tok-abc",
		AIEnabled:   aiEnabled,
	})
	require.NoError(t, err)
	return inst
}

func upsertEvent(data string) Event {
	return Event{Event: EventMessagesUpsert, Instance: "zap-main", Data: json.RawMessage(data)}
}

func TestDispatchUnknownEventIsIgnored(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	err := d.Dispatch(context.Background(), Event{Event: "contacts.update", Instance: "zap-main"})
	require.NoError(t, err)
}

func TestQRCodeUpdated(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)

	evt := Event{
		Event:    EventQRCodeUpdated,
		Instance: "zap-main",
		Data:     json.RawMessage(`{"qrcode":{"base64":"data:image/png;base64,AAAA"}}`),
	}
	require.NoError(t, d.Dispatch(context.Background(), evt))

	got, err := store.Instances().GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", got.QRCode)
	require.NotNil(t, got.QRUpdatedAt)
	assert.WithinDuration(t, time.Now(), *got.QRUpdatedAt, 5*time.Second)
}

func TestQRCodeUpdatedWithoutPayloadIsNoOp(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)

	evt := Event{Event: EventQRCodeUpdated, Instance: "zap-main", Data: json.RawMessage(`{}`)}
	require.NoError(t, d.Dispatch(context.Background(), evt))

	got, err := store.Instances().GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.Empty(t, got.QRCode)
	assert.Nil(t, got.QRUpdatedAt)
}

func TestQRCodeUpdatedUnknownInstanceAcks(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	evt := Event{
		Event:    EventQRCodeUpdated,
		Instance: "fantasma",
		Data:     json.RawMessage(`{"qrcode":{"code":"2@abc"}}`),
	}
	require.NoError(t, d.Dispatch(context.Background(), evt))
}

func TestConnectionUpdateOpen(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)
	inst.QRCode = "2@abc"
	now := time.Now().UTC()
	inst.QRUpdatedAt = &now
	_, err := store.Instances().Update(context.Background(), inst)
	require.NoError(t, err)

	evt := Event{
		Event:    EventConnectionUpdate,
		Instance: "zap-main",
		Data:     json.RawMessage(`{"state":"open","wid":"5541988887777@s.whatsapp.net"}`),
	}
	require.NoError(t, d.Dispatch(context.Background(), evt))

	got, err := store.Instances().GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusConnected, got.Status)
	assert.Equal(t, "5541988887777", got.PhoneNumber)
	assert.Empty(t, got.QRCode)
	assert.Nil(t, got.QRUpdatedAt)
}

func TestConnectionUpdateOpenPhoneFromSender(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)

	evt := Event{
		Event:    EventConnectionUpdate,
		Instance: "zap-main",
		Sender:   "5541977776666@s.whatsapp.net",
		Data:     json.RawMessage(`{"state":"open"}`),
	}
	require.NoError(t, d.Dispatch(context.Background(), evt))

	got, err := store.Instances().GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "5541977776666", got.PhoneNumber)
}

func TestConnectionUpdateClose(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)

	evt := Event{
		Event:    EventConnectionUpdate,
		Instance: "zap-main",
		Data:     json.RawMessage(`{"state":"close"}`),
	}
	require.NoError(t, d.Dispatch(context.Background(), evt))

	got, err := store.Instances().GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusDisconnected, got.Status)
	assert.Empty(t, got.PhoneNumber)
	assert.Empty(t, got.QRCode)
}

func TestConnectionUpdateUnknownStateIgnored(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)

	evt := Event{
		Event:    EventConnectionUpdate,
		Instance: "zap-main",
		Data:     json.RawMessage(`{"state":"paused"}`),
	}
	require.NoError(t, d.Dispatch(context.Background(), evt))

	got, err := store.Instances().GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceStatusConnecting, got.Status, "estado desconhecido não muda o ciclo de vida")
}

func TestMessagesUpsertIncoming(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)

	evt := upsertEvent(`{
		"key": {"remoteJid": "41798887766@s.whatsapp.net", "fromMe": false, "id": "3EB0AAA111"},
		"pushName": "João",
		"message": {"conversation": "olá!"},
		"messageTimestamp": 1756600000
	}`)
	require.NoError(t, d.Dispatch(context.Background(), evt))

	convs, err := store.Conversations().ListByContact(context.Background(), inst.ID, []string{"41798887766"})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	conv := convs[0]
	assert.Equal(t, "João", conv.ContactName)
	assert.Equal(t, "olá!", conv.LastMessage)
	assert.Equal(t, 1, conv.UnreadCount)

	msgs, err := store.Messages().ListByConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.DirectionIncoming, msgs[0].Direction)
	assert.Equal(t, "41798887766", msgs[0].SenderPhone)
	assert.Equal(t, "5541999990000", msgs[0].ReceiverPhone)
	assert.Equal(t, "3EB0AAA111", msgs[0].ExternalID)
	assert.Equal(t, int64(1756600000), msgs[0].Timestamp.Unix())
}

func TestMessagesUpsertFromMeIsOutgoing(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)

	evt := upsertEvent(`{
		"key": {"remoteJid": "41798887766@s.whatsapp.net", "fromMe": true, "id": "3EB0BBB222"},
		"pushName": "Atendente",
		"message": {"conversation": "já respondo"}
	}`)
	require.NoError(t, d.Dispatch(context.Background(), evt))

	convs, err := store.Conversations().ListByContact(context.Background(), inst.ID, []string{"41798887766"})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Zero(t, convs[0].UnreadCount)
	assert.Empty(t, convs[0].ContactName, "pushName de mensagem própria não vira nome do contato")

	msgs, err := store.Messages().ListByConversation(context.Background(), convs[0].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.DirectionOutgoing, msgs[0].Direction)
	assert.Equal(t, "5541999990000", msgs[0].SenderPhone)
	assert.Equal(t, "41798887766", msgs[0].ReceiverPhone)
}

func TestMessagesUpsertExtractsNestedText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"texto estendido", `{"extendedTextMessage":{"text":"link aqui"}}`, "link aqui"},
		{"legenda de imagem", `{"imageMessage":{"caption":"olha a foto"}}`, "olha a foto"},
		{"legenda de vídeo", `{"videoMessage":{"caption":"olha o vídeo"}}`, "olha o vídeo"},
		{"efêmera aninhada", `{"ephemeralMessage":{"message":{"conversation":"some em 24h"}}}`, "some em 24h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, store := newDispatcher(t, nil)
			inst := seedInstance(t, store, false)

			evt := upsertEvent(fmt.Sprintf(`{
				"key": {"remoteJid": "41798887766@s.whatsapp.net", "fromMe": false, "id": "%s"},
				"message": %s
			}`, tt.name, tt.body))
			require.NoError(t, d.Dispatch(context.Background(), evt))

			convs, err := store.Conversations().ListByContact(context.Background(), inst.ID, []string{"41798887766"})
			require.NoError(t, err)
			require.Len(t, convs, 1)
			assert.Equal(t, tt.want, convs[0].LastMessage)
		})
	}
}

func TestMessagesUpsertWithoutTextIsNoOp(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)

	evt := upsertEvent(`{
		"key": {"remoteJid": "41798887766@s.whatsapp.net", "fromMe": false, "id": "3EB0CCC333"},
		"message": {"audioMessage": {"seconds": 12}}
	}`)
	require.NoError(t, d.Dispatch(context.Background(), evt))

	convs, err := store.Conversations().ListByContact(context.Background(), inst.ID, []string{"41798887766"})
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestMessagesUpsertUnresolvableIdentityIsDropped(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)

	// LID curto demais para o fallback de dígitos e sem lookup configurado.
	evt := upsertEvent(`{
		"key": {"remoteJid": "1234567@lid", "fromMe": false, "id": "3EB0DDD444"},
		"message": {"conversation": "quem sou eu?"}
	}`)
	require.NoError(t, d.Dispatch(context.Background(), evt))

	convs, err := store.Conversations().ListByContact(context.Background(), inst.ID, []string{"1234567"})
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestMessagesUpsertLIDDigitsFallback(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)

	evt := upsertEvent(`{
		"key": {"remoteJid": "123456789012@lid", "fromMe": false, "id": "3EB0EEE555"},
		"message": {"conversation": "oi"}
	}`)
	require.NoError(t, d.Dispatch(context.Background(), evt))

	convs, err := store.Conversations().ListByContact(context.Background(), inst.ID, []string{"123456789012"})
	require.NoError(t, err)
	require.Len(t, convs, 1)
}

func TestMessagesUpsertDuplicateDeliveryIsIdempotent(t *testing.T) {
	d, store := newDispatcher(t, nil)
	inst := seedInstance(t, store, false)

	evt := upsertEvent(`{
		"key": {"remoteJid": "41798887766@s.whatsapp.net", "fromMe": false, "id": "3EB0FFF666"},
		"message": {"conversation": "repete aí"}
	}`)
	require.NoError(t, d.Dispatch(context.Background(), evt))
	require.NoError(t, d.Dispatch(context.Background(), evt))

	convs, err := store.Conversations().ListByContact(context.Background(), inst.ID, []string{"41798887766"})
	require.NoError(t, err)
	require.Len(t, convs, 1)

	msgs, err := store.Messages().ListByConversation(context.Background(), convs[0].ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "reentrega com mesmo external id não duplica a mensagem")
}

func TestMessagesUpsertTriggersAutomation(t *testing.T) {
	var calls atomic.Int32
	var lastTask automation.Task
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&lastTask)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	trigger := automation.NewTrigger(srv.URL, 1, 8, zap.NewNop())
	trigger.Start(context.Background())
	defer trigger.Stop()

	d, store := newDispatcher(t, trigger)
	inst := seedInstance(t, store, true)

	evt := upsertEvent(`{
		"key": {"remoteJid": "41798887766@s.whatsapp.net", "fromMe": false, "id": "3EB0GGG777"},
		"pushName": "João",
		"message": {"conversation": "quero um orçamento"}
	}`)
	require.NoError(t, d.Dispatch(context.Background(), evt))

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, inst.ID, lastTask.InstanceID)
	assert.Equal(t, "user-1", lastTask.UserID)
	assert.Equal(t, "quero um orçamento", lastTask.MessageText)
	assert.Equal(t, "41798887766", lastTask.ContactPhone)
}

func TestMessagesUpsertNoAutomationWhenDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	trigger := automation.NewTrigger(srv.URL, 1, 8, zap.NewNop())
	trigger.Start(context.Background())
	defer trigger.Stop()

	d, store := newDispatcher(t, trigger)
	seedInstance(t, store, false)

	evt := upsertEvent(`{
		"key": {"remoteJid": "41798887766@s.whatsapp.net", "fromMe": false, "id": "3EB0HHH888"},
		"message": {"conversation": "oi"}
	}`)
	require.NoError(t, d.Dispatch(context.Background(), evt))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
