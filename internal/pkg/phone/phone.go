// Package phone concentra a normalização de identificadores de contato.
// Toda comparação, gravação ou consulta por telefone no sistema passa por aqui.
package phone

import "strings"

// Normalize remove o sufixo de domínio do gateway (tudo a partir de "@")
// e em seguida todo caractere que não seja dígito.
// Entrada vazia retorna string vazia.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	if idx := strings.IndexByte(raw, '@'); idx >= 0 {
		raw = raw[:idx]
	}

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

// Equal compara dois identificadores pela forma normalizada.
// Retorna false se qualquer um dos lados normalizar para vazio.
func Equal(a, b string) bool {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}
