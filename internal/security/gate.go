// Package security valida a origem dos webhooks antes de qualquer regra de
// negócio. O gate é puramente defensivo: rejeita ou libera, nunca muta estado.
package security

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/storage"
	"github.com/atendezap/atendezap/internal/storage/model"
)

type AuthLevel string

const (
	// LevelHMAC: assinatura HMAC-SHA256 do corpo bruto conferida.
	LevelHMAC AuthLevel = "hmac"
	// LevelToken: token compartilhado da instância conferido.
	LevelToken AuthLevel = "token"
	// LevelPermissive: sem credencial, aceito só porque a instância existe.
	// Fronteira de confiança fraca herdada do gateway, que não envia headers
	// de autenticação de forma confiável. Endurecer isso é mudança de
	// comportamento, não refatoração.
	LevelPermissive AuthLevel = "permissive"
)

var (
	ErrUnauthorized    = errors.New("security: credenciais inválidas")
	ErrUnknownInstance = errors.New("security: instância desconhecida")
)

// Request é o recorte da requisição que o gate examina.
type Request struct {
	RawBody      []byte
	Signature    string // header x-webhook-signature (HMAC hex)
	APIKey       string // header apikey / x-api-key
	InstanceName string // campo instance do payload
	ClientIP     string // só para auditoria
}

type Result struct {
	Instance model.Instance
	Level    AuthLevel
}

type Gate struct {
	secret    string
	instances storage.InstanceRepository
	log       *zap.Logger
}

func NewGate(secret string, instances storage.InstanceRepository, log *zap.Logger) *Gate {
	return &Gate{secret: secret, instances: instances, log: log}
}

// Authenticate resolve a autenticação em ordem: HMAC, token da instância,
// fallback permissivo. A primeira que decidir, decide.
func (g *Gate) Authenticate(ctx context.Context, req Request) (Result, error) {
	hmacChecked := false
	if req.Signature != "" && g.secret != "" {
		if !g.verifySignature(req.RawBody, req.Signature) {
			g.log.Warn("security: assinatura HMAC inválida",
				zap.String("instance", req.InstanceName),
				zap.String("client_ip", req.ClientIP),
				zap.String("payload_preview", preview(req.RawBody)),
			)
			return Result{}, ErrUnauthorized
		}
		hmacChecked = true
	}

	inst, err := g.instances.GetByName(ctx, req.InstanceName)
	if errors.Is(err, storage.ErrNotFound) {
		g.log.Warn("security: webhook para instância desconhecida",
			zap.String("instance", req.InstanceName),
			zap.String("client_ip", req.ClientIP),
			zap.String("payload_preview", preview(req.RawBody)),
		)
		return Result{}, ErrUnknownInstance
	}
	if err != nil {
		return Result{}, err
	}

	if hmacChecked {
		return Result{Instance: inst, Level: LevelHMAC}, nil
	}

	if req.APIKey != "" {
		if inst.Token != "" && subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(inst.Token)) == 1 {
			return Result{Instance: inst, Level: LevelToken}, nil
		}
		g.log.Warn("security: token de instância inválido",
			zap.String("instance", req.InstanceName),
			zap.String("client_ip", req.ClientIP),
		)
		return Result{}, ErrUnauthorized
	}

	// gateway não envia headers de autenticação de forma confiável;
	// aceitamos porque a instância existe, marcando a requisição como fraca
	g.log.Warn("security: webhook sem credenciais aceito (modo permissivo)",
		zap.String("instance", req.InstanceName),
		zap.String("client_ip", req.ClientIP),
	)
	return Result{Instance: inst, Level: LevelPermissive}, nil
}

func (g *Gate) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Sign gera a assinatura esperada para um corpo; exposto para testes e
// ferramentas de diagnóstico.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func preview(body []byte) string {
	const max = 120
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
