package config_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gotilapod/pix-gateway/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/pixgw",
		"REDIS_URL":    "redis://localhost:6379/0",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 15*time.Second, cfg.ProviderTimeout)
	require.Equal(t, 5*time.Minute, cfg.TokenBuffer)
	require.Equal(t, 24*time.Hour, cfg.WebhookReplayTTL)
	require.Equal(t, time.Minute, cfg.ReconcileInterval)
	require.Equal(t, 30*time.Second, cfg.ReconcileMinAge)
	require.Equal(t, 50, cfg.ReconcileBatch)
	require.Equal(t, 120, cfg.RateLimitRPM)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, []string{"poseidonpay", "ryzenpay"}, cfg.ServerOnlyProviders)
	require.False(t, cfg.TracingEnabled)
}

func TestLoadRequiresDatastores(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := config.LoadForTests(env)
	require.ErrorContains(t, err, "DATABASE_URL")

	env = baseEnv()
	env["REDIS_URL"] = ""
	_, err = config.LoadForTests(env)
	require.ErrorContains(t, err, "REDIS_URL")
}

func TestLoadProviderCredentials(t *testing.T) {
	env := baseEnv()
	env["EFI_CLIENT_ID"] = "efi-id"
	env["EFI_CLIENT_SECRET"] = "efi-secret"
	env["EFI_CERT_BASE64"] = base64.StdEncoding.EncodeToString([]byte("pem-bundle"))
	env["EFI_PIX_KEY"] = "loja@banco.com.br"
	env["EFI_SANDBOX"] = "true"
	env["BSPAY_CLIENT_ID"] = "bs-id"
	env["BSPAY_CLIENT_SECRET"] = "bs-secret"
	env["POSEIDON_PUBLIC_KEY"] = "pos-pub"
	env["POSEIDON_SECRET_KEY"] = "pos-sec"
	env["RYZEN_API_KEY"] = "ry-key"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)

	efi := cfg.Providers["efi"]
	require.Equal(t, "efi-id", efi.ClientID)
	require.Equal(t, []byte("pem-bundle"), efi.Certificate)
	require.Equal(t, "loja@banco.com.br", efi.PixKey)
	require.True(t, efi.Sandbox)

	require.Equal(t, "bs-id", cfg.Providers["bspay"].ClientID)
	require.Equal(t, "pos-pub", cfg.Providers["poseidonpay"].PublicKey)
	require.Equal(t, "pos-sec", cfg.Providers["poseidonpay"].SecretKey)
	require.Equal(t, "ry-key", cfg.Providers["ryzenpay"].APIKey)
}

func TestLoadRejectsBadCertificate(t *testing.T) {
	env := baseEnv()
	env["EFI_CERT_BASE64"] = "not base64!!"
	_, err := config.LoadForTests(env)
	require.ErrorContains(t, err, "EFI_CERT_BASE64")
}

func TestLoadListsAndOverrides(t *testing.T) {
	env := baseEnv()
	env["CORS_ALLOWED_ORIGINS"] = "https://loja.example, https://admin.example ,"
	env["SERVER_ONLY_PROVIDERS"] = "efi,poseidonpay"
	env["PORT"] = "9090"
	env["POSTBACK_BASE_URL"] = "https://api.loja.example/"
	env["AMOUNT_CEILING_CENTS"] = "500000"
	env["RECONCILE_BATCH"] = "10"
	env["RATE_LIMIT_RPM"] = "30"
	env["PROVIDER_TIMEOUT"] = "5s"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)

	require.Equal(t, []string{"https://loja.example", "https://admin.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, []string{"efi", "poseidonpay"}, cfg.ServerOnlyProviders)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, "https://api.loja.example", cfg.PostbackBaseURL, "trailing slash trimmed")
	require.Equal(t, int64(500000), cfg.AmountCeiling)
	require.Equal(t, 10, cfg.ReconcileBatch)
	require.Equal(t, 30, cfg.RateLimitRPM)
	require.Equal(t, 5*time.Second, cfg.ProviderTimeout)
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	env := baseEnv()
	env["PROVIDER_TIMEOUT"] = "not-a-duration"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, cfg.ProviderTimeout)
}
