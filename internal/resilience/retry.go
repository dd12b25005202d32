package resilience

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// Retry is an http.RoundTripper that re-issues requests which failed with a
// transport error or a 5xx response. Request bodies are buffered up front so
// an attempt can be replayed. Client errors (4xx) pass through untouched, and
// an open circuit aborts immediately instead of hammering the breaker.
type Retry struct {
	Inner       http.RoundTripper
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
}

// RoundTrip implements http.RoundTripper. The last response or error is
// returned once the attempt budget is spent.
func (t Retry) RoundTrip(req *http.Request) (*http.Response, error) {
	inner := t.Inner
	if inner == nil {
		inner = http.DefaultTransport
	}
	attempts := t.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	base := t.BaseBackoff
	if base <= 0 {
		base = 200 * time.Millisecond
	}

	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	ctx := req.Context()
	for attempt := 1; ; attempt++ {
		resp, err := inner.RoundTrip(attemptRequest(req, body))
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if errors.Is(err, ErrOpenCircuit) || attempt >= attempts {
			return resp, err
		}
		if resp != nil {
			// Drain so the connection is reusable for the next attempt.
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		timer := time.NewTimer(Backoff(base, attempt, t.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff returns the exponential delay for the given attempt, optionally
// spread by a jitter fraction (0.2 means plus or minus 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitterPct
	return d + time.Duration(delta)
}

// bufferBody reads the request body into memory and rewires GetBody so every
// retry attempt sees a fresh reader. A nil return means there was no body.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	source := req.Body
	if req.GetBody != nil {
		fresh, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		source = fresh
	}
	data, err := io.ReadAll(source)
	_ = source.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return data, nil
}

func attemptRequest(req *http.Request, body []byte) *http.Request {
	clone := req.Clone(req.Context())
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	return clone
}
