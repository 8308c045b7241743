// Package supermemory integra o armazenamento semântico secundário.
// Por decisão de projeto o caminho é write-only e best-effort: a busca não tem
// contrato definido ainda, e nenhuma falha aqui pode afetar o fluxo primário.
package supermemory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Document é o corpo aceito por POST /v3/documents.
type Document struct {
	Content      string         `json:"content"`
	ContainerTag string         `json:"containerTag"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CustomID     string         `json:"customId,omitempty"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

func NewClient(baseURL, apiKey string, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
		log:     log,
	}
}

// Configured indica se endpoint e credencial estão presentes.
// Sem os dois, a sincronização é pulada em vez de falhar.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

func (c *Client) CreateDocument(ctx context.Context, doc Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("supermemory: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/documents", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("supermemory: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("supermemory: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("supermemory: status %d", resp.StatusCode)
	}
	return nil
}
