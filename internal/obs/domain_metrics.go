package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ChargeCreateTotal counts charge creation attempts by provider and outcome.
	ChargeCreateTotal *prometheus.CounterVec
	// WebhookTotal counts inbound provider webhook processing outcomes.
	WebhookTotal *prometheus.CounterVec
	// ReconcileTotal counts reconciliation sweeps by provider and outcome.
	ReconcileTotal *prometheus.CounterVec
	// TokenRefreshTotal counts OAuth token fetches by provider and outcome.
	TokenRefreshTotal *prometheus.CounterVec
	// ProviderLatency records outbound provider call latency in milliseconds.
	ProviderLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ChargeCreateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charge_create_total",
			Help:      "Count of charge creation outcomes by provider.",
		}, []string{"provider", "result"})
		WebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_total",
			Help:      "Count of processed provider webhooks by outcome.",
		}, []string{"provider", "result"})
		ReconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Count of reconciliation sweep outcomes by provider.",
		}, []string{"provider", "result"})
		TokenRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Count of OAuth token fetches by provider and outcome.",
		}, []string{"provider", "result"})
		ProviderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_ms",
			Help:      "Latency of outbound provider calls in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"provider", "operation"})

		mustRegisterCollector(reg, ChargeCreateTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ChargeCreateTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookTotal = v
			}
		})
		mustRegisterCollector(reg, ReconcileTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReconcileTotal = v
			}
		})
		mustRegisterCollector(reg, TokenRefreshTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TokenRefreshTotal = v
			}
		})
		mustRegisterCollector(reg, ProviderLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				ProviderLatency = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
