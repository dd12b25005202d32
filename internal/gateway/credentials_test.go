package gateway_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gotilapod/pix-gateway/internal/gateway"
)

func TestResolveMergesCallerOverConfigured(t *testing.T) {
	r := gateway.Resolver{
		Configured: map[string]gateway.Credentials{
			"bspay": {ClientID: "cfg-id", ClientSecret: "cfg-secret"},
		},
	}

	creds, err := r.Resolve("bspay", gateway.Credentials{ClientID: "caller-id"})
	require.NoError(t, err)
	require.Equal(t, "caller-id", creds.ClientID)
	require.Equal(t, "cfg-secret", creds.ClientSecret)
}

func TestResolveServerOnlyIgnoresCaller(t *testing.T) {
	r := gateway.Resolver{
		Configured: map[string]gateway.Credentials{
			"bspay": {ClientID: "cfg-id", ClientSecret: "cfg-secret"},
		},
		ServerOnly: map[string]bool{"bspay": true},
	}

	creds, err := r.Resolve("bspay", gateway.Credentials{ClientID: "caller-id", ClientSecret: "caller-secret"})
	require.NoError(t, err)
	require.Equal(t, "cfg-id", creds.ClientID)
	require.Equal(t, "cfg-secret", creds.ClientSecret)
}

func TestResolveServerOnlyDefaultPolicy(t *testing.T) {
	// Poseidon and Ryzen never honour keys from the request body; EFI and
	// BSPay fall back from caller-supplied to configured values.
	r := gateway.Resolver{
		Configured: map[string]gateway.Credentials{
			"poseidonpay": {PublicKey: "cfg-pub", SecretKey: "cfg-sec"},
			"ryzenpay":    {APIKey: "cfg-key"},
			"bspay":       {ClientID: "cfg-id", ClientSecret: "cfg-secret"},
			"efi": {
				ClientID:     "cfg-id",
				ClientSecret: "cfg-secret",
				Certificate:  []byte("pem"),
				PixKey:       "chave@banco.com",
			},
		},
		ServerOnly: map[string]bool{"poseidonpay": true, "ryzenpay": true},
	}

	creds, err := r.Resolve("poseidonpay", gateway.Credentials{PublicKey: "caller-pub", SecretKey: "caller-sec"})
	require.NoError(t, err)
	require.Equal(t, "cfg-pub", creds.PublicKey)
	require.Equal(t, "cfg-sec", creds.SecretKey)

	creds, err = r.Resolve("ryzenpay", gateway.Credentials{APIKey: "caller-key"})
	require.NoError(t, err)
	require.Equal(t, "cfg-key", creds.APIKey)

	creds, err = r.Resolve("bspay", gateway.Credentials{ClientID: "caller-id"})
	require.NoError(t, err)
	require.Equal(t, "caller-id", creds.ClientID)

	creds, err = r.Resolve("efi", gateway.Credentials{ClientID: "caller-id", ClientSecret: "caller-secret"})
	require.NoError(t, err)
	require.Equal(t, "caller-id", creds.ClientID)
	require.Equal(t, "caller-secret", creds.ClientSecret)
}

func TestResolveReportsMissingFields(t *testing.T) {
	r := gateway.Resolver{
		Configured: map[string]gateway.Credentials{
			"efi": {ClientID: "id", ClientSecret: "secret"},
		},
	}

	_, err := r.Resolve("efi", gateway.Credentials{})
	require.Error(t, err)
	require.Equal(t, gateway.KindConfiguration, gateway.KindOf(err))
	require.Equal(t, "missing_configuration", gateway.CodeOf(err))
	require.Contains(t, err.Error(), "missing credentials: certificate, pixKey")
}

func TestResolveCertificateAndSandboxNeverFromCaller(t *testing.T) {
	r := gateway.Resolver{
		Configured: map[string]gateway.Credentials{
			"efi": {
				ClientID:     "id",
				ClientSecret: "secret",
				Certificate:  []byte("pem"),
				PixKey:       "chave@banco.com",
				Sandbox:      true,
			},
		},
	}

	creds, err := r.Resolve("efi", gateway.Credentials{Certificate: []byte("forged"), Sandbox: false})
	require.NoError(t, err)
	require.Equal(t, []byte("pem"), creds.Certificate)
	require.True(t, creds.Sandbox)
}

func TestComplete(t *testing.T) {
	r := gateway.Resolver{
		Configured: map[string]gateway.Credentials{
			"ryzenpay":    {APIKey: "rk"},
			"poseidonpay": {PublicKey: "pk"},
		},
	}

	require.True(t, r.Complete("ryzenpay"))
	require.False(t, r.Complete("poseidonpay"), "secret key missing")
	require.False(t, r.Complete("bspay"), "not configured at all")
	require.True(t, r.Complete("unknown"), "unknown providers require nothing")
}

func TestRedact(t *testing.T) {
	require.Equal(t, "****", gateway.Redact("abc"))
	require.Equal(t, "****", gateway.Redact("abcd"))
	require.Equal(t, "sk_l****", gateway.Redact("sk_live_123456"))
	require.Equal(t, "****", gateway.Redact("  ab  "))
}
