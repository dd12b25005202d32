package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gotilapod/pix-gateway/internal/gateway"
	"github.com/gotilapod/pix-gateway/internal/store"
)

// OrderFinder is the slice of the datastore the reconciler reads.
type OrderFinder interface {
	FindOrder(ctx context.Context, q store.OrderQuery) (store.Order, error)
}

// Query identifies the charge whose status is being reconciled. At least
// one of TransactionID or ExternalReference must be set.
type Query struct {
	Provider          string
	TransactionID     string
	ExternalReference string
}

// Reconciler observes payment state. It never transitions state itself:
// confirmation is written by the webhook handler or reported live by the
// provider, and this component only projects the most recent signal,
// defaulting to pending when nothing confirms completion.
type Reconciler struct {
	Registry *gateway.Registry
	Resolver gateway.Resolver
	Orders   OrderFinder
	Logger   zerolog.Logger
}

// Status resolves the current normalised payment state for the query. The
// recorded order is consulted first: confirmation is monotonic, so a paid
// record wins over whatever the provider reports live. The live query only
// decides when the record is absent or still pending.
func (r *Reconciler) Status(ctx context.Context, q Query) (gateway.PaymentStatus, error) {
	// Demo charges never reach a provider and are never settled.
	if gateway.IsDemoTxID(q.TransactionID) {
		return gateway.StatusPending, nil
	}

	recorded := gateway.StatusPending
	order, findErr := r.Orders.FindOrder(ctx, store.OrderQuery{
		Txid:         q.TransactionID,
		NumeroPedido: q.ExternalReference,
	})
	switch {
	case findErr == nil:
		recorded = ProjectOrder(order)
	case errors.Is(findErr, store.ErrNotFound):
		findErr = nil
	}
	if recorded != gateway.StatusPending {
		return recorded, nil
	}

	provider := strings.ToLower(strings.TrimSpace(q.Provider))
	if provider != "" && q.TransactionID != "" && !r.Registry.IsDemo(provider) {
		if querier, ok := r.Registry.StatusQuerier(provider); ok {
			status, err := r.queryLive(ctx, querier, provider, q.TransactionID)
			if err == nil {
				return status, nil
			}
			// A failed live query degrades to the recorded state rather
			// than failing the status check.
			r.Logger.Warn().Err(err).Str("provider", provider).Str("txid", q.TransactionID).Msg("live status query failed")
		}
	}

	if findErr != nil {
		return "", findErr
	}
	return recorded, nil
}

// ProjectOrder maps a recorded order onto the normalised status set. A
// negative terminal state requires an explicit signal; absence of
// confirmation stays pending.
func ProjectOrder(order store.Order) gateway.PaymentStatus {
	status := strings.ToLower(strings.TrimSpace(order.Status))
	if order.Pago || status == "confirmado" || status == "pago" {
		return gateway.StatusConfirmed
	}
	if normalized := gateway.NormalizeStatus(order.Status); normalized == gateway.StatusExpired {
		return gateway.StatusExpired
	}
	return gateway.StatusPending
}

func (r *Reconciler) queryLive(ctx context.Context, querier gateway.StatusQuerier, provider, txid string) (gateway.PaymentStatus, error) {
	creds, err := r.Resolver.Resolve(provider, gateway.Credentials{})
	if err != nil {
		return "", err
	}
	return querier.QueryStatus(ctx, txid, creds)
}
