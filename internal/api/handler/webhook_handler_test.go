package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/conversation"
	"github.com/atendezap/atendezap/internal/identity"
	"github.com/atendezap/atendezap/internal/pkg/response"
	"github.com/atendezap/atendezap/internal/security"
	"github.com/atendezap/atendezap/internal/service/message"
	"github.com/atendezap/atendezap/internal/storage"
	"github.com/atendezap/atendezap/internal/storage/memory"
	"github.com/atendezap/atendezap/internal/storage/model"
	"github.com/atendezap/atendezap/internal/webhook"
)

const testSecret = "segredo-de-teste"

func newTestRouter(t *testing.T, instances storage.InstanceRepository, store *memory.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	gate := security.NewGate(testSecret, instances, log)
	dispatcher := webhook.NewDispatcher(
		instances,
		identity.NewResolver(nil, log),
		conversation.NewReconciler(store.Conversations(), store.Messages(), log),
		message.NewService(store.Messages(), nil, log),
		nil,
		log,
	)

	r := gin.New()
	NewWebhookHandler(gate, dispatcher, log).Register(r.Group("/"))
	return r
}

func seedWebhookInstance(t *testing.T, store *memory.Store) model.Instance {
	t.Helper()
	inst, err := store.Instances().Create(context.Background(), model.Instance{
		Name:        "zap-main",
		OwnerUserID: "user-1",
		Status:      model.InstanceStatusConnected,
		PhoneNumber: "5541999990000",
		Token:       "tok-abc",
	})
	require.NoError(t, err)
	return inst
}

func messageBody() []byte {
	return []byte(`{
		"event": "messages.upsert",
		"instance": "zap-main",
		"data": {
			"key": {"remoteJid": "41798887766@s.whatsapp.net", "fromMe": false, "id": "3EB0XYZ"},
			"pushName": "João",
			"message": {"conversation": "olá"}
		}
	}`)
}

func postWebhook(r *gin.Engine, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookPermissiveAccept(t *testing.T) {
	store := memory.NewStore()
	r := newTestRouter(t, store.Instances(), store)
	inst := seedWebhookInstance(t, store)

	w := postWebhook(r, messageBody(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	convs, err := store.Conversations().ListByContact(context.Background(), inst.ID, []string{"41798887766"})
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestWebhookValidHMAC(t *testing.T) {
	store := memory.NewStore()
	r := newTestRouter(t, store.Instances(), store)
	seedWebhookInstance(t, store)

	body := messageBody()
	w := postWebhook(r, body, map[string]string{
		"x-webhook-signature": security.Sign(testSecret, body),
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookInvalidHMAC(t *testing.T) {
	store := memory.NewStore()
	r := newTestRouter(t, store.Instances(), store)
	seedWebhookInstance(t, store)

	w := postWebhook(r, messageBody(), map[string]string{
		"x-webhook-signature": "deadbeef",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookValidInstanceToken(t *testing.T) {
	store := memory.NewStore()
	r := newTestRouter(t, store.Instances(), store)
	seedWebhookInstance(t, store)

	w := postWebhook(r, messageBody(), map[string]string{"apikey": "tok-abc"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookInvalidInstanceToken(t *testing.T) {
	store := memory.NewStore()
	r := newTestRouter(t, store.Instances(), store)
	seedWebhookInstance(t, store)

	w := postWebhook(r, messageBody(), map[string]string{"x-api-key": "tok-errado"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookUnknownInstance(t *testing.T) {
	store := memory.NewStore()
	r := newTestRouter(t, store.Instances(), store)

	w := postWebhook(r, messageBody(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookMalformedPayload(t *testing.T) {
	store := memory.NewStore()
	r := newTestRouter(t, store.Instances(), store)

	tests := []struct {
		name string
		body string
	}{
		{"corpo não-objeto", `[1,2,3]`},
		{"sem event", `{"instance":"zap-main"}`},
		{"sem instance", `{"event":"messages.upsert"}`},
		{"JSON quebrado", `{"event":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWebhook(r, []byte(tt.body), nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

type brokenInstances struct {
	storage.InstanceRepository
}

func (b brokenInstances) GetByName(context.Context, string) (model.Instance, error) {
	return model.Instance{}, errors.New("pgx: conexão recusada")
}

func TestWebhookStorageFailureIsSanitizedInProduction(t *testing.T) {
	store := memory.NewStore()
	r := newTestRouter(t, brokenInstances{store.Instances()}, store)

	response.SetProductionMode(true)
	defer response.SetProductionMode(false)

	w := postWebhook(r, messageBody(), nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "erro interno", resp["error"])
}
