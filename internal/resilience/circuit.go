package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all requests and tracks failures.
	Closed State = iota
	// Open rejects requests until the cool-off period expires.
	Open
	// HalfOpen allows a single probe to determine recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a failure-ratio circuit breaker guarding one payment provider.
// It opens once the observed failure ratio crosses the threshold, stays open
// for the cool-off window, then lets a single probe through.
type Breaker struct {
	mu        sync.Mutex
	state     State
	ok, bad   int
	openedAt  time.Time
	minEvents int
	threshold float64
	coolOff   time.Duration
	target    string
}

// NewBreaker constructs a breaker that opens when the failure ratio reaches
// threshold after at least minEvents outcomes, and stays open for coolOff.
func NewBreaker(minEvents int, threshold float64, coolOff time.Duration) *Breaker {
	if minEvents <= 0 {
		minEvents = 1
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	if coolOff <= 0 {
		coolOff = 30 * time.Second
	}
	return &Breaker{
		minEvents: minEvents,
		threshold: threshold,
		coolOff:   coolOff,
	}
}

// WithTarget names the guarded dependency for metric and log labels.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	b.publishState()
	return b
}

// Allow reports whether a request may proceed. An open breaker admits one
// probe once the cool-off window has elapsed, moving to half-open.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return true
	}
	if time.Since(b.openedAt) < b.coolOff {
		return false
	}
	b.transition(ctx, HalfOpen)
	return true
}

// Report feeds one request outcome into the state machine.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.transition(ctx, Closed)
		} else {
			b.transition(ctx, Open)
		}
		return
	}

	if success {
		b.ok++
	} else {
		b.bad++
	}
	total := b.ok + b.bad
	if total < b.minEvents {
		return
	}
	if float64(b.bad)/float64(total) >= b.threshold {
		b.transition(ctx, Open)
		return
	}
	if total > b.minEvents*2 {
		// Age out old outcomes so one early failure cannot dominate.
		b.ok = (b.ok + 1) / 2
		b.bad = (b.bad + 1) / 2
	}
}

func (b *Breaker) transition(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		b.publishState()
		return
	}
	b.state = next
	b.ok, b.bad = 0, 0
	b.openedAt = time.Time{}
	if next == Open {
		b.openedAt = time.Now()
	}
	b.publishState()

	label := b.label()
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(label, prev.String(), next.String()).Inc()
	}
	if next == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}
	evt := zerolog.Ctx(ctx).Info().
		Str("target", label).
		Str("from_state", prev.String()).
		Str("to_state", next.String())
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) publishState() {
	if BreakerState == nil {
		return
	}
	var gauge float64
	switch b.state {
	case Open:
		gauge = 1
	case HalfOpen:
		gauge = 2
	}
	BreakerState.WithLabelValues(b.label()).Set(gauge)
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}
