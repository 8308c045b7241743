package model

import "time"

type InstanceStatus string

const (
	InstanceStatusCreating     InstanceStatus = "creating"
	InstanceStatusDisconnected InstanceStatus = "disconnected"
	InstanceStatusConnecting   InstanceStatus = "connecting"
	InstanceStatusConnected    InstanceStatus = "connected"
	InstanceStatusError        InstanceStatus = "error"
)

// Instance é uma conexão de gateway por usuário de negócio.
type Instance struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	OwnerUserID string         `json:"ownerUserId"`
	Status      InstanceStatus `json:"status"`
	PhoneNumber string         `json:"phoneNumber,omitempty"`
	QRCode      string         `json:"qrCode,omitempty"`
	QRUpdatedAt *time.Time     `json:"qrUpdatedAt,omitempty"`
	Token       string         `json:"-"`
	AIEnabled   bool           `json:"aiEnabled"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Conversation é a thread canônica entre uma instância e um contato externo.
// Invariante: no máximo uma conversa por (instance_id, contact_phone normalizado);
// o reconciliador corrige violações momentâneas causadas por corridas de webhook.
type Conversation struct {
	ID            string     `json:"id"`
	InstanceID    string     `json:"instanceId"`
	ContactPhone  string     `json:"contactPhone"`
	ContactName   string     `json:"contactName,omitempty"`
	LastMessage   string     `json:"lastMessage,omitempty"`
	LastMessageAt time.Time  `json:"lastMessageAt"`
	UnreadCount   int        `json:"unreadCount"`
	Pinned        bool       `json:"pinned"`
	PinnedAt      *time.Time `json:"pinnedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type MessageDirection string

const (
	DirectionIncoming MessageDirection = "incoming"
	DirectionOutgoing MessageDirection = "outgoing"
)

// Message é um registro imutável (append-mostly, só o status muda).
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId"`
	InstanceID     string           `json:"instanceId"`
	ExternalID     string           `json:"externalId,omitempty"`
	SenderPhone    string           `json:"senderPhone"`
	ReceiverPhone  string           `json:"receiverPhone"`
	Direction      MessageDirection `json:"direction"`
	Content        string           `json:"content"`
	Status         string           `json:"status"`
	Timestamp      time.Time        `json:"timestamp"`
	CreatedAt      time.Time        `json:"createdAt"`
}
