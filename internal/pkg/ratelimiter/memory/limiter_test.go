package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowJanelaFixa(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		res, err := l.Allow(ctx, "cliente-a", 100, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "requisição %d dentro do limite deve passar", i+1)
		assert.Equal(t, 100-(i+1), res.Remaining)
	}

	res, err := l.Allow(ctx, "cliente-a", 100, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed, "a 101ª requisição deve ser bloqueada")
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// outra chave não é afetada
	res, err = l.Allow(ctx, "cliente-b", 100, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestAllowJanelaExpirada(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()

	res, err := l.Allow(ctx, "k", 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "k", 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	time.Sleep(15 * time.Millisecond)

	res, err = l.Allow(ctx, "k", 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "janela expirada deve reiniciar a contagem")
}

func TestPruneLimitaMemoria(t *testing.T) {
	l := NewLimiterWithMaxKeys(100)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		_, err := l.Allow(ctx, fmt.Sprintf("ip-%d", i), 10, time.Minute)
		require.NoError(t, err)
	}

	// nenhuma janela expirou, então a poda descarta entradas arbitrárias
	assert.LessOrEqual(t, l.Len(), 102, "mapa deve ficar próximo do teto configurado")
}
