package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/gotilapod/pix-gateway/internal/gateway"
	"github.com/gotilapod/pix-gateway/internal/obs"
	"github.com/gotilapod/pix-gateway/internal/store"
)

// TaskSweep is the asynq task type for the periodic reconciliation sweep.
const TaskSweep = "reconcile:sweep"

// NewSweepTask builds the periodic sweep task. The sweep carries no
// payload; each run derives its batch from the ledger.
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSweep, nil)
}

// Locker serialises sweeps across worker replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ChargeLedger is the slice of the datastore the sweep worker drives.
type ChargeLedger interface {
	ListPendingCharges(ctx context.Context, before time.Time, limit int32) ([]store.Charge, error)
	UpdateChargeStatus(ctx context.Context, txid, status string) error
	ConfirmPayment(ctx context.Context, q store.OrderQuery, orderStatus, chargeStatus string) (store.Order, error)
}

// Worker polls providers for charges stuck in pending. Webhooks are the
// primary confirmation channel; this sweep catches notifications that
// never arrived.
type Worker struct {
	Registry *gateway.Registry
	Resolver gateway.Resolver
	Charges  ChargeLedger
	// MinAge keeps freshly created charges out of the sweep so the webhook
	// gets a chance to arrive first.
	MinAge time.Duration
	Batch  int32
	// Locker, when set, ensures only one replica sweeps at a time.
	Locker  Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
	Now     func() time.Time
}

// HandleSweep adapts Sweep to the asynq handler signature. When another
// replica already holds the sweep lock this run is a no-op.
func (w *Worker) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	if w.Locker == nil {
		return w.Sweep(ctx)
	}
	acquireCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := w.Locker.WithLock(acquireCtx, "pixgw:reconcile:sweep", w.LockTTL, func(context.Context) error {
		return w.Sweep(ctx)
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Sweep queries each pending charge's provider and records any terminal
// state it finds.
func (w *Worker) Sweep(ctx context.Context) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	minAge := w.MinAge
	if minAge <= 0 {
		minAge = 30 * time.Second
	}

	charges, err := w.Charges.ListPendingCharges(ctx, now().Add(-minAge), w.Batch)
	if err != nil {
		return err
	}

	for _, charge := range charges {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.sweepOne(ctx, charge)
	}
	return nil
}

func (w *Worker) sweepOne(ctx context.Context, charge store.Charge) {
	provider := strings.ToLower(strings.TrimSpace(charge.Provider))
	if gateway.IsDemoTxID(charge.TxID) || w.Registry.IsDemo(provider) {
		return
	}
	querier, ok := w.Registry.StatusQuerier(provider)
	if !ok {
		w.count(provider, "unsupported")
		return
	}
	creds, err := w.Resolver.Resolve(provider, gateway.Credentials{})
	if err != nil {
		w.count(provider, "credentials_error")
		w.Logger.Warn().Err(err).Str("provider", provider).Msg("resolve credentials for sweep")
		return
	}

	status, err := querier.QueryStatus(ctx, charge.TxID, creds)
	if err != nil {
		w.count(provider, "query_error")
		w.Logger.Warn().Err(err).Str("provider", provider).Str("txid", charge.TxID).Msg("sweep status query failed")
		return
	}

	switch status {
	case gateway.StatusConfirmed:
		w.confirm(ctx, provider, charge)
	case gateway.StatusExpired:
		if err := w.Charges.UpdateChargeStatus(ctx, charge.TxID, string(gateway.StatusExpired)); err != nil && !errors.Is(err, store.ErrNotFound) {
			w.count(provider, "store_error")
			w.Logger.Warn().Err(err).Str("txid", charge.TxID).Msg("record expired charge")
			return
		}
		w.count(provider, "expired")
	default:
		w.count(provider, "still_pending")
	}
}

func (w *Worker) confirm(ctx context.Context, provider string, charge store.Charge) {
	q := store.OrderQuery{Txid: charge.TxID, NumeroPedido: charge.ExternalID}
	_, err := w.Charges.ConfirmPayment(ctx, q, "confirmado", string(gateway.StatusConfirmed))
	if errors.Is(err, store.ErrNotFound) {
		// No matching order; still settle the ledger row so the sweep
		// stops revisiting it.
		if err := w.Charges.UpdateChargeStatus(ctx, charge.TxID, string(gateway.StatusConfirmed)); err != nil && !errors.Is(err, store.ErrNotFound) {
			w.count(provider, "store_error")
			w.Logger.Warn().Err(err).Str("txid", charge.TxID).Msg("settle orphan charge")
			return
		}
		w.count(provider, "confirmed_orphan")
		return
	}
	if err != nil {
		w.count(provider, "store_error")
		w.Logger.Warn().Err(err).Str("txid", charge.TxID).Msg("confirm payment from sweep")
		return
	}
	w.Logger.Info().Str("provider", provider).Str("txid", charge.TxID).Msg("payment confirmed by sweep")
	w.count(provider, "confirmed")
}

func (w *Worker) count(provider, result string) {
	if obs.ReconcileTotal != nil {
		obs.ReconcileTotal.WithLabelValues(provider, result).Inc()
	}
}
