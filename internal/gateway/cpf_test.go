package gateway_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gotilapod/pix-gateway/internal/gateway"
)

func TestValidCPF(t *testing.T) {
	valid := []string{
		"52998224725",
		"11144477735",
	}
	for _, doc := range valid {
		require.True(t, gateway.ValidCPF(doc), "document %s", doc)
	}

	invalid := []string{
		"52998224724", // wrong second check digit
		"52998224735", // wrong first check digit
		"11111111111", // repeated digits pass the arithmetic but are forged
		"00000000000",
		"5299822472",   // too short
		"529982247255", // too long
		"5299822472a",
		"",
	}
	for _, doc := range invalid {
		require.False(t, gateway.ValidCPF(doc), "document %s", doc)
	}
}
