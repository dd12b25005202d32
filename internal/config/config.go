package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// ProviderCreds holds the configured server-side credentials for one
// payment provider. Unset fields may be supplied per request unless the
// provider is listed as server-only.
type ProviderCreds struct {
	ClientID     string
	ClientSecret string
	APIKey       string
	PublicKey    string
	SecretKey    string
	// Certificate is the decoded mTLS client certificate (PEM, key included).
	Certificate []byte
	PixKey      string
	Sandbox     bool
}

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	LogFormat          string
	LogLevel           string

	// Providers maps provider name to its configured credentials.
	Providers map[string]ProviderCreds
	// ServerOnlyProviders never accept credentials from the request body.
	ServerOnlyProviders []string

	DemoPixKey       string
	DemoMerchantName string
	DemoMerchantCity string

	PostbackBaseURL  string
	AmountCeiling    int64 // centavos
	ProviderTimeout  time.Duration
	TokenBuffer      time.Duration
	WebhookReplayTTL time.Duration

	ReconcileInterval time.Duration
	ReconcileMinAge   time.Duration
	ReconcileBatch    int

	RateLimitRPM   int
	IdempotencyTTL time.Duration

	TracingEnabled  bool
	TracingEndpoint string
	TracingSampling float64
	MetricsBuckets  string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	efiCert, err := decodeBase64(k.String("EFI_CERT_BASE64"))
	if err != nil {
		return nil, fmt.Errorf("EFI_CERT_BASE64: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),

		Providers: map[string]ProviderCreds{
			"efi": {
				ClientID:     k.String("EFI_CLIENT_ID"),
				ClientSecret: k.String("EFI_CLIENT_SECRET"),
				Certificate:  efiCert,
				PixKey:       k.String("EFI_PIX_KEY"),
				Sandbox:      parseBool(k.String("EFI_SANDBOX")),
			},
			"bspay": {
				ClientID:     k.String("BSPAY_CLIENT_ID"),
				ClientSecret: k.String("BSPAY_CLIENT_SECRET"),
			},
			"poseidonpay": {
				PublicKey: k.String("POSEIDON_PUBLIC_KEY"),
				SecretKey: k.String("POSEIDON_SECRET_KEY"),
			},
			"ryzenpay": {
				APIKey: k.String("RYZEN_API_KEY"),
			},
		},
		// Poseidon and Ryzen resolve their keys from configuration alone;
		// EFI and BSPay let the caller override individual fields.
		ServerOnlyProviders: splitAndTrim(valueOrDefault(k.String("SERVER_ONLY_PROVIDERS"), "poseidonpay,ryzenpay")),

		DemoPixKey:       k.String("DEMO_PIX_KEY"),
		DemoMerchantName: k.String("DEMO_MERCHANT_NAME"),
		DemoMerchantCity: k.String("DEMO_MERCHANT_CITY"),

		PostbackBaseURL:  strings.TrimRight(k.String("POSTBACK_BASE_URL"), "/"),
		AmountCeiling:    k.Int64("AMOUNT_CEILING_CENTS"),
		ProviderTimeout:  parseDuration(k.String("PROVIDER_TIMEOUT"), "15s"),
		TokenBuffer:      parseDuration(k.String("TOKEN_BUFFER"), "5m"),
		WebhookReplayTTL: parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),

		ReconcileInterval: parseDuration(k.String("RECONCILE_INTERVAL"), "1m"),
		ReconcileMinAge:   parseDuration(k.String("RECONCILE_MIN_AGE"), "30s"),
		ReconcileBatch:    int(k.Int64("RECONCILE_BATCH")),

		RateLimitRPM:   int(k.Int64("RATE_LIMIT_RPM")),
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		TracingEnabled:  parseBool(k.String("TRACING_ENABLED")),
		TracingEndpoint: k.String("TRACING_ENDPOINT"),
		TracingSampling: k.Float64("TRACING_SAMPLING_RATIO"),
		MetricsBuckets:  k.String("METRICS_BUCKETS_MS"),
	}

	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = 50
	}
	if cfg.RateLimitRPM <= 0 {
		cfg.RateLimitRPM = 120
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func decodeBase64(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(trimmed)
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
