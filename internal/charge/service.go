package charge

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gotilapod/pix-gateway/internal/gateway"
	"github.com/gotilapod/pix-gateway/internal/obs"
	"github.com/gotilapod/pix-gateway/internal/store"
)

// Recorder persists created charges into the ledger consumed by the
// reconciliation worker.
type Recorder interface {
	InsertCharge(ctx context.Context, c store.Charge) error
}

// Service turns raw charge requests into provider charges: sanitize,
// resolve credentials, dispatch to the configured adapter, record the
// result.
type Service struct {
	Registry  *gateway.Registry
	Resolver  gateway.Resolver
	Sanitizer *gateway.Sanitizer
	Charges   Recorder
	// PostbackBase, when set, fills in the webhook callback URL for
	// requests that do not carry their own.
	PostbackBase string
	Logger       zerolog.Logger
}

// Create runs the full charge-creation pipeline for one provider.
func (s *Service) Create(ctx context.Context, provider string, raw gateway.RawCharge) (gateway.NormalizedCharge, error) {
	var zero gateway.NormalizedCharge

	ctx, span := otel.Tracer("charge.Service").Start(ctx, "ChargeService.Create")
	defer span.End()

	start := time.Now()
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("charge.provider", provider),
			attribute.String("charge.result", result),
			attribute.Float64("charge.duration_ms", obs.DurationMillis(time.Since(start))),
		)
		if obs.ChargeCreateTotal != nil {
			obs.ChargeCreateTotal.WithLabelValues(provider, result).Inc()
		}
	}()

	adapter, ok := s.Registry.Provider(provider)
	if !ok {
		result = "unknown_provider"
		return zero, gateway.ValidationErr("unknown_provider", "unknown payment provider")
	}

	requireItems := false
	if carrier, ok := adapter.(gateway.ItemCarrier); ok {
		requireItems = carrier.CarriesItems()
	}
	req, err := s.Sanitizer.Sanitize(raw, requireItems)
	if err != nil {
		result = "invalid"
		return zero, err
	}
	if req.PostbackURL == "" && s.PostbackBase != "" {
		req.PostbackURL = s.PostbackBase + "/api/v1/pix/webhook/" + provider
	}

	// Demo stand-ins run without credentials; resolving against the real
	// provider's requirements would fail by construction.
	var creds gateway.Credentials
	if !s.Registry.IsDemo(provider) {
		creds, err = s.Resolver.Resolve(provider, gateway.Credentials{
			ClientID:     raw.ClientID,
			ClientSecret: raw.ClientSecret,
		})
		if err != nil {
			result = "misconfigured"
			return zero, err
		}
	}

	charge, err := adapter.CreateCharge(ctx, req, creds)
	if err != nil {
		span.RecordError(err)
		result = gateway.KindOf(err).String()
		return zero, err
	}
	result = "success"

	if s.Charges != nil {
		record := store.Charge{
			TxID:        charge.TxID,
			Provider:    charge.Provider,
			ExternalID:  req.ExternalID,
			AmountCents: req.AmountCents,
			Status:      string(charge.Status),
		}
		if err := s.Charges.InsertCharge(ctx, record); err != nil {
			// The provider already holds the charge; losing the ledger row
			// only degrades polling, so the request still succeeds.
			s.Logger.Warn().Err(err).Str("txid", charge.TxID).Msg("record charge")
		}
	}

	return charge, nil
}
