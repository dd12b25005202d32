package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gotilapod/pix-gateway/internal/obs"
	"github.com/gotilapod/pix-gateway/internal/resilience"
)

// defaultHTTPTimeout bounds every outbound gateway call so a hung provider
// never blocks the caller indefinitely.
const defaultHTTPTimeout = 15 * time.Second

var (
	breakersMu sync.Mutex
	breakers   = map[string]*resilience.Breaker{}
)

// breakerFor returns the persistent circuit breaker guarding one provider.
// Breakers survive across requests so repeated provider outages trip open
// instead of hammering a dead endpoint. The cool-off is twice the call
// timeout, long enough for a hung provider to finish timing out.
func breakerFor(provider string, timeout time.Duration) *resilience.Breaker {
	breakersMu.Lock()
	defer breakersMu.Unlock()
	if b, ok := breakers[provider]; ok {
		return b
	}
	b := resilience.NewBreaker(5, 0.6, 2*timeout).WithTarget(provider)
	breakers[provider] = b
	return b
}

// transportFor stacks the retry layer over the provider's breaker so every
// attempt is accounted individually. A transient failure or 5xx gets one
// replay; an open breaker fails fast without retrying.
func transportFor(provider string, timeout time.Duration, inner http.RoundTripper) http.RoundTripper {
	return resilience.Retry{
		Inner:       resilience.Transport{Inner: inner, Breaker: breakerFor(provider, timeout)},
		MaxAttempts: 2,
		BaseBackoff: 200 * time.Millisecond,
		Jitter:      0.2,
	}
}

func newRestyClient(provider string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetTransport(transportFor(provider, timeout, nil)).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if obs.ProviderLatency != nil {
			obs.ProviderLatency.WithLabelValues(provider, resp.Request.Method).
				Observe(obs.DurationMillis(resp.Time()))
		}
		return nil
	})
	return client
}

// mapProviderError converts a non-2xx provider response into the gateway
// error taxonomy, preserving the provider's own message for diagnostics.
func mapProviderError(provider string, status int, body []byte) error {
	message := providerMessage(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if message == "" {
			message = "provider rejected credentials"
		}
		return AuthErr(provider, message)
	case status >= 400 && status < 500:
		if message == "" {
			message = http.StatusText(status)
		}
		return RejectedErr(provider, message)
	default:
		if message == "" {
			message = http.StatusText(status)
		}
		return &Error{Kind: KindTransient, Code: "gateway_error", Message: message, Provider: provider}
	}
}

// providerMessage digs the human-readable message out of the common error
// body shapes the gateways use.
func providerMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"mensagem", "message", "error_description", "detail", "error"} {
			if value, ok := payload[key].(string); ok && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 300 {
		text = text[:300]
	}
	return text
}
