package resilience

import "net/http"

// Transport is an http.RoundTripper that guards a downstream dependency
// with a circuit breaker. Responses with a 5xx status count as failures.
type Transport struct {
	Inner   http.RoundTripper
	Breaker *Breaker
}

// RoundTrip implements http.RoundTripper.
func (t Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	inner := t.Inner
	if inner == nil {
		inner = http.DefaultTransport
	}
	if t.Breaker == nil {
		return inner.RoundTrip(req)
	}
	ctx := req.Context()
	if !t.Breaker.Allow(ctx) {
		return nil, ErrOpenCircuit
	}
	resp, err := inner.RoundTrip(req)
	t.Breaker.Report(ctx, err == nil && resp.StatusCode < 500)
	return resp, err
}
