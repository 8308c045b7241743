// Package webhook recebe os eventos do gateway e escolhe a rotina de cada
// tipo: atualização de QR, mudança de conexão ou chegada de mensagem. O
// contrato com o gateway é sempre confirmar com 2xx quando o processamento
// lógico terminou, mesmo que um efeito colateral posterior tenha falhado,
// para não provocar tempestade de reentregas.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/automation"
	"github.com/atendezap/atendezap/internal/conversation"
	"github.com/atendezap/atendezap/internal/identity"
	"github.com/atendezap/atendezap/internal/pkg/phone"
	"github.com/atendezap/atendezap/internal/service/message"
	"github.com/atendezap/atendezap/internal/storage"
	"github.com/atendezap/atendezap/internal/storage/model"
)

// ErrInvalidPayload indica corpo não-objeto ou sem os campos obrigatórios.
var ErrInvalidPayload = errors.New("payload de webhook inválido")

const (
	EventQRCodeUpdated    = "qrcode.updated"
	EventConnectionUpdate = "connection.update"
	EventMessagesUpsert   = "messages.upsert"
)

// Event é o envelope comum de todos os eventos do gateway. Data fica crua
// porque o formato interno varia por tipo de evento.
type Event struct {
	Event    string
	Instance string
	Sender   string
	Data     json.RawMessage
}

// ParseEvent valida o envelope: o corpo precisa ser um objeto JSON com
// `event` e `instance` como strings não vazias.
func ParseEvent(raw []byte) (Event, error) {
	var payload struct {
		Event    any             `json:"event"`
		Instance any             `json:"instance"`
		Sender   string          `json:"sender"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Event{}, ErrInvalidPayload
	}

	event, ok := payload.Event.(string)
	if !ok || event == "" {
		return Event{}, ErrInvalidPayload
	}
	instance, ok := payload.Instance.(string)
	if !ok || instance == "" {
		return Event{}, ErrInvalidPayload
	}

	return Event{
		Event:    event,
		Instance: instance,
		Sender:   payload.Sender,
		Data:     payload.Data,
	}, nil
}

type Dispatcher struct {
	instances  storage.InstanceRepository
	resolver   *identity.Resolver
	reconciler *conversation.Reconciler
	messages   *message.Service
	trigger    *automation.Trigger
	log        *zap.Logger
}

func NewDispatcher(
	instances storage.InstanceRepository,
	resolver *identity.Resolver,
	reconciler *conversation.Reconciler,
	messages *message.Service,
	trigger *automation.Trigger,
	log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		instances:  instances,
		resolver:   resolver,
		reconciler: reconciler,
		messages:   messages,
		trigger:    trigger,
		log:        log,
	}
}

// Dispatch encaminha o evento para a rotina do seu tipo. Tipos sem tratador
// são confirmados e ignorados; o gateway emite mais eventos do que usamos.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) error {
	switch evt.Event {
	case EventQRCodeUpdated:
		return d.handleQRCode(ctx, evt)
	case EventConnectionUpdate:
		return d.handleConnection(ctx, evt)
	case EventMessagesUpsert:
		return d.handleMessage(ctx, evt)
	default:
		d.log.Debug("[dispatcher] evento sem tratador, ignorado",
			zap.String("event", evt.Event),
			zap.String("instance", evt.Instance),
		)
		return nil
	}
}

func (d *Dispatcher) handleQRCode(ctx context.Context, evt Event) error {
	var data struct {
		QRCode struct {
			Base64 string `json:"base64"`
			Code   string `json:"code"`
		} `json:"qrcode"`
	}
	if len(evt.Data) > 0 {
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			d.log.Warn("[dispatcher] qrcode.updated com data ilegível", zap.Error(err))
			return nil
		}
	}

	qr := data.QRCode.Base64
	if qr == "" {
		qr = data.QRCode.Code
	}
	if qr == "" {
		d.log.Debug("[dispatcher] qrcode.updated sem payload de QR, ignorado",
			zap.String("instance", evt.Instance))
		return nil
	}

	inst, err := d.instances.GetByName(ctx, evt.Instance)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			d.log.Warn("[dispatcher] qrcode.updated para instância desconhecida",
				zap.String("instance", evt.Instance))
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	inst.QRCode = qr
	inst.QRUpdatedAt = &now
	if _, err := d.instances.Update(ctx, inst); err != nil {
		return err
	}

	d.log.Info("[dispatcher] QR code atualizado", zap.String("instance", evt.Instance))
	return nil
}

// gatewayStates traduz o vocabulário de conexão do gateway para o ciclo de
// vida da instância. Estados fora do mapa são ignorados.
var gatewayStates = map[string]model.InstanceStatus{
	"open":       model.InstanceStatusConnected,
	"close":      model.InstanceStatusDisconnected,
	"connecting": model.InstanceStatusConnecting,
}

func (d *Dispatcher) handleConnection(ctx context.Context, evt Event) error {
	var data struct {
		State string `json:"state"`
		WID   string `json:"wid"`
	}
	if len(evt.Data) > 0 {
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			d.log.Warn("[dispatcher] connection.update com data ilegível", zap.Error(err))
			return nil
		}
	}

	status, ok := gatewayStates[data.State]
	if !ok {
		d.log.Debug("[dispatcher] estado de conexão desconhecido, ignorado",
			zap.String("state", data.State),
			zap.String("instance", evt.Instance),
		)
		return nil
	}

	inst, err := d.instances.GetByName(ctx, evt.Instance)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			d.log.Warn("[dispatcher] connection.update para instância desconhecida",
				zap.String("instance", evt.Instance))
			return nil
		}
		return err
	}

	inst.Status = status
	switch status {
	case model.InstanceStatusConnected:
		owner := data.WID
		if owner == "" {
			owner = evt.Sender
		}
		if number := phone.Normalize(owner); number != "" {
			inst.PhoneNumber = number
		}
		inst.QRCode = ""
		inst.QRUpdatedAt = nil
	case model.InstanceStatusDisconnected:
		inst.PhoneNumber = ""
		inst.QRCode = ""
		inst.QRUpdatedAt = nil
	}

	if _, err := d.instances.Update(ctx, inst); err != nil {
		return err
	}

	d.log.Info("[dispatcher] status da instância atualizado",
		zap.String("instance", evt.Instance),
		zap.String("status", string(status)),
	)
	return nil
}

func (d *Dispatcher) handleMessage(ctx context.Context, evt Event) error {
	var data struct {
		Key struct {
			RemoteJID   string `json:"remoteJid"`
			FromMe      bool   `json:"fromMe"`
			ID          string `json:"id"`
			Participant string `json:"participant"`
		} `json:"key"`
		PushName         string          `json:"pushName"`
		Participant      string          `json:"participant"`
		Message          json.RawMessage `json:"message"`
		MessageTimestamp int64           `json:"messageTimestamp"`
	}
	if len(evt.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		d.log.Warn("[dispatcher] messages.upsert com data ilegível", zap.Error(err))
		return nil
	}

	text := extractText(data.Message)
	if text == "" || data.Key.RemoteJID == "" {
		d.log.Debug("[dispatcher] messages.upsert sem texto ou remetente, ignorado",
			zap.String("instance", evt.Instance))
		return nil
	}

	contactName := ""
	if !data.Key.FromMe {
		contactName = data.PushName
	}

	resolved := d.resolver.Resolve(ctx, identity.Input{
		RemoteJID:   data.Key.RemoteJID,
		Participant: data.Key.Participant,
		AltJID:      data.Participant,
		PushName:    contactName,
		Instance:    evt.Instance,
	})
	if resolved == "" {
		d.log.Warn("[dispatcher] identidade irresolvível, evento descartado",
			zap.String("instance", evt.Instance),
			zap.String("remote_jid", data.Key.RemoteJID),
		)
		return nil
	}

	inst, err := d.instances.GetByName(ctx, evt.Instance)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			d.log.Warn("[dispatcher] messages.upsert para instância desconhecida",
				zap.String("instance", evt.Instance))
			return nil
		}
		return err
	}

	ts := time.Now().UTC()
	if data.MessageTimestamp > 0 {
		ts = time.Unix(data.MessageTimestamp, 0).UTC()
	}
	incoming := !data.Key.FromMe

	conv, err := d.reconciler.Reconcile(ctx, conversation.Inbound{
		InstanceID:  inst.ID,
		RawJID:      data.Key.RemoteJID,
		Phone:       resolved,
		ContactName: contactName,
		Preview:     text,
		Timestamp:   ts,
		Incoming:    incoming,
	})
	if err != nil {
		return err
	}

	msg := model.Message{
		ConversationID: conv.ID,
		InstanceID:     inst.ID,
		ExternalID:     data.Key.ID,
		Direction:      model.DirectionOutgoing,
		Content:        text,
		Status:         "sent",
		Timestamp:      ts,
		SenderPhone:    inst.PhoneNumber,
		ReceiverPhone:  resolved,
	}
	if incoming {
		msg.Direction = model.DirectionIncoming
		msg.Status = "received"
		msg.SenderPhone = resolved
		msg.ReceiverPhone = inst.PhoneNumber
	}

	result, err := d.messages.Store(ctx, msg, contactName, false)
	if err != nil {
		return err
	}
	if result.Duplicate {
		d.log.Debug("[dispatcher] mensagem duplicada, automação não reenviada",
			zap.String("external_id", data.Key.ID))
		return nil
	}

	if incoming && inst.AIEnabled && d.trigger != nil {
		d.trigger.Submit(automation.Task{
			ConversationID: conv.ID,
			InstanceID:     inst.ID,
			UserID:         inst.OwnerUserID,
			MessageText:    text,
			ContactName:    conv.ContactName,
			ContactPhone:   conv.ContactPhone,
		})
	}

	return nil
}

// messageContent cobre os formatos de corpo que o gateway usa para texto:
// texto simples, texto estendido, legendas de mídia e o invólucro efêmero.
type messageContent struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	ImageMessage struct {
		Caption string `json:"caption"`
	} `json:"imageMessage"`
	VideoMessage struct {
		Caption string `json:"caption"`
	} `json:"videoMessage"`
	DocumentMessage struct {
		Caption string `json:"caption"`
	} `json:"documentMessage"`
	EphemeralMessage struct {
		Message json.RawMessage `json:"message"`
	} `json:"ephemeralMessage"`
}

func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var content messageContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return ""
	}

	switch {
	case content.Conversation != "":
		return content.Conversation
	case content.ExtendedTextMessage.Text != "":
		return content.ExtendedTextMessage.Text
	case content.ImageMessage.Caption != "":
		return content.ImageMessage.Caption
	case content.VideoMessage.Caption != "":
		return content.VideoMessage.Caption
	case content.DocumentMessage.Caption != "":
		return content.DocumentMessage.Caption
	case len(content.EphemeralMessage.Message) > 0:
		return extractText(content.EphemeralMessage.Message)
	}
	return ""
}
