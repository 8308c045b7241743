package memory

import (
	"context"
	"sync"
	"time"

	"github.com/atendezap/atendezap/internal/pkg/ratelimiter"
)

const defaultMaxKeys = 10000

type item struct {
	count     int
	expiresAt time.Time
}

// MemoryLimiter é um limitador de janela fixa em memória.
// O mapa é podado quando ultrapassa maxKeys para limitar o consumo de memória.
type MemoryLimiter struct {
	mu      sync.Mutex
	items   map[string]*item
	maxKeys int
}

func NewLimiter() *MemoryLimiter {
	return NewLimiterWithMaxKeys(defaultMaxKeys)
}

func NewLimiterWithMaxKeys(maxKeys int) *MemoryLimiter {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	return &MemoryLimiter{
		items:   make(map[string]*item),
		maxKeys: maxKeys,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimiter.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	if len(l.items) > l.maxKeys {
		l.prune(now)
	}

	val, exists := l.items[key]
	if !exists || now.After(val.expiresAt) {
		l.items[key] = &item{
			count:     1,
			expiresAt: now.Add(window),
		}
		return &ratelimiter.Result{
			Allowed:   true,
			Remaining: limit - 1,
			Reset:     now.Add(window),
		}, nil
	}

	val.count++
	remaining := limit - val.count
	if remaining < 0 {
		remaining = 0
	}

	return &ratelimiter.Result{
		Allowed:    val.count <= limit,
		Remaining:  remaining,
		Reset:      val.expiresAt,
		RetryAfter: val.expiresAt.Sub(now),
	}, nil
}

// prune remove janelas expiradas; se nada expirou ainda, descarta entradas
// arbitrárias até voltar ao teto (melhor perder contagem do que crescer sem limite).
func (l *MemoryLimiter) prune(now time.Time) {
	for k, v := range l.items {
		if now.After(v.expiresAt) {
			delete(l.items, k)
		}
	}
	for k := range l.items {
		if len(l.items) <= l.maxKeys {
			break
		}
		delete(l.items, k)
	}
}

// Len é usado em testes para observar o tamanho do mapa.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
