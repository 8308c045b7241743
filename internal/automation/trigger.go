// Package automation invoca o agente de auto-resposta com IA.
// A invocação é fire-and-forget: o caminho de resposta do webhook nunca
// depende do resultado, e o tratamento de erro aqui é autocontido (loga e descarta).
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task é o payload enviado ao agente.
type Task struct {
	ConversationID string `json:"conversation_id"`
	InstanceID     string `json:"instance_id"`
	UserID         string `json:"user_id"`
	MessageText    string `json:"message_text"`
	ContactName    string `json:"contact_name"`
	ContactPhone   string `json:"contact_phone"`
}

type Trigger struct {
	url        string
	client     *http.Client
	log        *zap.Logger
	numWorkers int
	tasks      chan Task
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewTrigger(url string, numWorkers, queueSize int, log *zap.Logger) *Trigger {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Trigger{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log,
		numWorkers: numWorkers,
		tasks:      make(chan Task, queueSize),
	}
}

func (t *Trigger) Start(ctx context.Context) {
	t.ctx, t.cancel = context.WithCancel(ctx)

	t.log.Info("automation: iniciando pool", zap.Int("workers", t.numWorkers))
	for i := 0; i < t.numWorkers; i++ {
		t.wg.Add(1)
		go t.runWorker(i)
	}
}

func (t *Trigger) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.log.Info("automation: pool encerrada")
}

// Submit põe a tarefa na fila sem bloquear. Fila cheia ou agente não
// configurado descartam a tarefa com log; nunca há erro para o chamador.
func (t *Trigger) Submit(task Task) {
	if t.url == "" {
		t.log.Debug("automation: agente não configurado, tarefa ignorada",
			zap.String("conversation_id", task.ConversationID),
		)
		return
	}

	select {
	case t.tasks <- task:
	default:
		t.log.Warn("automation: fila cheia, tarefa descartada",
			zap.String("conversation_id", task.ConversationID),
		)
	}
}

func (t *Trigger) runWorker(id int) {
	defer t.wg.Done()

	for {
		select {
		case <-t.ctx.Done():
			return
		case task := <-t.tasks:
			t.invoke(task, id)
		}
	}
}

func (t *Trigger) invoke(task Task, workerID int) {
	payload, err := json.Marshal(task)
	if err != nil {
		t.log.Error("automation: marshal", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		t.log.Error("automation: new request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.log.Warn("automation: invocação falhou",
			zap.Int("worker", workerID),
			zap.String("conversation_id", task.ConversationID),
			zap.Error(err),
		)
		return
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.log.Warn("automation: agente respondeu erro",
			zap.Int("worker", workerID),
			zap.String("conversation_id", task.ConversationID),
			zap.Error(fmt.Errorf("status %d", resp.StatusCode)),
		)
		return
	}

	t.log.Debug("automation: agente invocado",
		zap.Int("worker", workerID),
		zap.String("conversation_id", task.ConversationID),
	)
}
