// Package ratelimiter define a interface de limitação por janela fixa.
// A implementação é injetada no handler (memória para processo único,
// Redis quando há mais de uma réplica atrás do gateway).
package ratelimiter

import (
	"context"
	"time"
)

type Result struct {
	Allowed    bool
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
