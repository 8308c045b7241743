package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/api/middleware"
	"github.com/atendezap/atendezap/internal/pkg/response"
	"github.com/atendezap/atendezap/internal/security"
	"github.com/atendezap/atendezap/internal/webhook"
)

// WebhookHandler é a porta de entrada dos eventos do gateway: valida o
// envelope, passa pelo gate de segurança e despacha por tipo de evento.
type WebhookHandler struct {
	gate       *security.Gate
	dispatcher *webhook.Dispatcher
	log        *zap.Logger
}

func NewWebhookHandler(gate *security.Gate, dispatcher *webhook.Dispatcher, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{gate: gate, dispatcher: dispatcher, log: log}
}

func (h *WebhookHandler) Register(r *gin.RouterGroup) {
	r.POST("/webhook", h.Receive)
	// o gateway anexa o tipo de evento ao caminho quando configurado com
	// webhook_by_events; o envelope já traz o tipo, então a rota é a mesma
	r.POST("/webhook/:event", h.Receive)
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.ErrorWithMessage(c, http.StatusBadRequest, "corpo da requisição ilegível")
		return
	}

	evt, err := webhook.ParseEvent(body)
	if err != nil {
		response.ErrorWithMessage(c, http.StatusBadRequest, "payload inválido: event e instance são obrigatórios")
		return
	}

	apiKey := c.GetHeader("apikey")
	if apiKey == "" {
		apiKey = c.GetHeader("x-api-key")
	}

	result, err := h.gate.Authenticate(c.Request.Context(), security.Request{
		RawBody:      body,
		Signature:    c.GetHeader("x-webhook-signature"),
		APIKey:       apiKey,
		InstanceName: evt.Instance,
		ClientIP:     middleware.GetClientIP(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, security.ErrUnauthorized):
			response.ErrorWithMessage(c, http.StatusUnauthorized, "não autorizado")
		case errors.Is(err, security.ErrUnknownInstance):
			response.ErrorWithMessage(c, http.StatusNotFound, "instância não encontrada")
		default:
			h.log.Error("[webhook] falha ao autenticar requisição", zap.Error(err))
			response.InternalError(c, err)
		}
		return
	}

	h.log.Debug("[webhook] evento recebido",
		zap.String("event", evt.Event),
		zap.String("instance", evt.Instance),
		zap.String("auth_level", string(result.Level)),
	)

	if err := h.dispatcher.Dispatch(c.Request.Context(), evt); err != nil {
		h.log.Error("[webhook] falha ao processar evento",
			zap.String("event", evt.Event),
			zap.String("instance", evt.Instance),
			zap.Error(err),
		)
		response.InternalError(c, err)
		return
	}

	response.OK(c)
}
