package automation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubmitInvocaAgente(t *testing.T) {
	var calls atomic.Int32
	var got Task

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewTrigger(srv.URL, 2, 10, zap.NewNop())
	tr.Start(context.Background())
	defer tr.Stop()

	tr.Submit(Task{
		ConversationID: "conv-1",
		InstanceID:     "inst-1",
		UserID:         "user-1",
		MessageText:    "quero fazer um pedido",
		ContactName:    "Ana",
		ContactPhone:   "41791234567",
	})

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "conv-1", got.ConversationID)
	assert.Equal(t, "quero fazer um pedido", got.MessageText)
}

func TestSubmitSemURLNaoEnfileira(t *testing.T) {
	tr := NewTrigger("", 1, 1, zap.NewNop())
	tr.Start(context.Background())
	defer tr.Stop()

	// não deve bloquear nem entrar na fila
	tr.Submit(Task{ConversationID: "conv-1"})
	assert.Empty(t, tr.tasks)
}

func TestSubmitFilaCheiaDescarta(t *testing.T) {
	tr := NewTrigger("http://127.0.0.1:1", 1, 1, zap.NewNop())
	// pool não iniciada: nada consome a fila

	tr.Submit(Task{ConversationID: "a"})
	tr.Submit(Task{ConversationID: "b"}) // descartada sem bloquear
	tr.Submit(Task{ConversationID: "c"}) // idem

	assert.Len(t, tr.tasks, 1)
}

func TestErroDoAgenteNaoPropaga(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewTrigger(srv.URL, 1, 10, zap.NewNop())
	tr.Start(context.Background())
	defer tr.Stop()

	tr.Submit(Task{ConversationID: "conv-1"})

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	// nada a assertar além de não ter pânico: erro é logado e descartado
}
