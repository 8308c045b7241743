// Package evolution implementa o cliente HTTP do gateway WhatsApp (Evolution API).
// O núcleo consome apenas a busca de contatos; envio de mensagens vive em outro serviço.
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Contact é o registro retornado por /chat/findContacts.
type Contact struct {
	RemoteJID string `json:"remoteJid"`
	PushName  string `json:"pushName"`
}

// ContactFilter filtra a busca por JID exato ou por nome de exibição.
type ContactFilter struct {
	RemoteJID string `json:"remoteJid,omitempty"`
	PushName  string `json:"pushName,omitempty"`
}

type findContactsRequest struct {
	Where ContactFilter `json:"where"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Configured indica se o gateway foi apontado via ambiente.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// FindContacts consulta POST {base}/chat/findContacts/{instance} com o filtro dado.
func (c *Client) FindContacts(ctx context.Context, instanceName string, filter ContactFilter) ([]Contact, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("evolution: gateway não configurado")
	}

	payload, err := json.Marshal(findContactsRequest{Where: filter})
	if err != nil {
		return nil, fmt.Errorf("evolution: marshal: %w", err)
	}

	endpoint := fmt.Sprintf("%s/chat/findContacts/%s", c.baseURL, url.PathEscape(instanceName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("evolution: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evolution: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("evolution: findContacts status %d", resp.StatusCode)
	}

	var contacts []Contact
	if err := json.NewDecoder(resp.Body).Decode(&contacts); err != nil {
		return nil, fmt.Errorf("evolution: decode: %w", err)
	}

	c.log.Debug("evolution: contatos encontrados",
		zap.String("instance", instanceName),
		zap.Int("total", len(contacts)),
	)

	return contacts, nil
}
