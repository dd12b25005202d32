package hook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gotilapod/pix-gateway/internal/common"
	"github.com/gotilapod/pix-gateway/internal/gateway"
	"github.com/gotilapod/pix-gateway/internal/obs"
	"github.com/gotilapod/pix-gateway/internal/store"
)

// Settler records confirmed payments into the datastore.
type Settler interface {
	ConfirmPayment(ctx context.Context, q store.OrderQuery, orderStatus, chargeStatus string) (store.Order, error)
	FindOrder(ctx context.Context, q store.OrderQuery) (store.Order, error)
	UpdateChargeStatus(ctx context.Context, txid, status string) error
}

// Webhook ingests provider payment notifications. This is the only place
// in the payment layer that mutates order state: the reconciler merely
// observes what is recorded here.
type Webhook struct {
	Registry  *gateway.Registry
	Store     Settler
	Replay    *redis.Client
	ReplayTTL time.Duration
	Logger    zerolog.Logger
}

// notification is the tolerant union of the payload shapes the providers
// post. Each provider fills a different subset of these fields.
type notification struct {
	Txid              string      `json:"txid"`
	TransactionID     string      `json:"transactionId"`
	TransactionIDSnek string      `json:"transaction_id"`
	ExternalID        string      `json:"external_id"`
	ExternalReference string      `json:"external_reference"`
	NumeroPedido      string      `json:"numero_pedido"`
	Status            string      `json:"status"`
	TransactionStatus string      `json:"transaction_status"`
	Event             string      `json:"event"`
	Amount            json.Number `json:"amount"`
	Value             json.Number `json:"value"`
	Pix               []struct {
		Txid  string `json:"txid"`
		Valor string `json:"valor"`
	} `json:"pix"`
}

func (n notification) txid() string {
	for _, v := range []string{n.Txid, n.TransactionID, n.TransactionIDSnek} {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if len(n.Pix) > 0 {
		return strings.TrimSpace(n.Pix[0].Txid)
	}
	return ""
}

func (n notification) orderNumber() string {
	for _, v := range []string{n.ExternalID, n.ExternalReference, n.NumeroPedido} {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (n notification) status() string {
	if strings.TrimSpace(n.Status) != "" {
		return n.Status
	}
	if strings.TrimSpace(n.TransactionStatus) != "" {
		return n.TransactionStatus
	}
	// EFI webhooks carry no status field: the presence of a pix array is
	// itself the confirmation signal.
	if len(n.Pix) > 0 {
		return "CONCLUIDA"
	}
	return n.Event
}

func (n notification) amountCents() int64 {
	for _, v := range []json.Number{n.Amount, n.Value} {
		if f, err := v.Float64(); err == nil && f > 0 {
			return int64(math.Round(f * 100))
		}
	}
	if len(n.Pix) > 0 {
		var f float64
		if _, err := fmt.Sscanf(n.Pix[0].Valor, "%f", &f); err == nil && f > 0 {
			return int64(math.Round(f * 100))
		}
	}
	return 0
}

// Handle processes POST /api/v1/pix/webhook/{provider}.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil || h.Store == nil {
		common.PaymentError(w, http.StatusInternalServerError, "not_configured", "webhook unavailable")
		return
	}
	provider := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	if _, ok := h.Registry.Provider(provider); !ok {
		h.count(provider, "unknown_provider")
		common.PaymentError(w, http.StatusNotFound, "unknown_provider", "unknown payment provider")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.count(provider, "invalid_body")
		common.PaymentError(w, http.StatusBadRequest, "invalid_body", "unable to read payload")
		return
	}

	var payload notification
	if err := json.Unmarshal(body, &payload); err != nil {
		h.count(provider, "invalid_body")
		common.PaymentError(w, http.StatusBadRequest, "invalid_body", "payload is not valid JSON")
		return
	}

	txid := payload.txid()
	orderNumber := payload.orderNumber()
	if txid == "" && orderNumber == "" {
		h.count(provider, "missing_identifier")
		common.PaymentError(w, http.StatusBadRequest, "missing_identifier", "notification carries no correlation key")
		return
	}

	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:%s:%s", provider, common.Sha256Hex(body))
		ok, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err != nil {
			h.count(provider, "replay_store_error")
			common.PaymentError(w, http.StatusInternalServerError, "replay_store_error", "replay protection unavailable")
			return
		}
		if !ok {
			h.count(provider, "replay")
			common.PaymentError(w, http.StatusConflict, "replay", "duplicate notification")
			return
		}
	}

	normalized := gateway.NormalizeStatus(payload.status())
	switch normalized {
	case gateway.StatusConfirmed:
		h.confirm(r.Context(), w, provider, txid, orderNumber, payload.amountCents())
	case gateway.StatusExpired:
		if txid != "" {
			if err := h.Store.UpdateChargeStatus(r.Context(), txid, string(gateway.StatusExpired)); err != nil && !errors.Is(err, store.ErrNotFound) {
				h.Logger.Warn().Err(err).Str("txid", txid).Msg("record expired charge")
			}
		}
		h.count(provider, "expired")
		w.WriteHeader(http.StatusNoContent)
	default:
		// Pending notifications carry no new information.
		h.count(provider, "ignored")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h Webhook) confirm(ctx context.Context, w http.ResponseWriter, provider, txid, orderNumber string, amountCents int64) {
	q := store.OrderQuery{Txid: txid, NumeroPedido: orderNumber}

	order, err := h.Store.FindOrder(ctx, q)
	if errors.Is(err, store.ErrNotFound) {
		h.count(provider, "order_not_found")
		common.PaymentError(w, http.StatusNotFound, "order_not_found", "no order matches the notification")
		return
	}
	if err != nil {
		h.count(provider, "store_error")
		common.PaymentError(w, http.StatusInternalServerError, "store_error", "unable to load order")
		return
	}
	if amountCents > 0 && order.ValorTotalCents > 0 && amountCents != order.ValorTotalCents {
		h.count(provider, "amount_mismatch")
		common.PaymentError(w, http.StatusBadRequest, "amount_mismatch", "provider amount does not match the order")
		return
	}
	if order.Pago {
		// Already settled; confirmations are idempotent.
		h.count(provider, "already_paid")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if _, err := h.Store.ConfirmPayment(ctx, q, "confirmado", string(gateway.StatusConfirmed)); err != nil {
		h.count(provider, "store_error")
		common.PaymentError(w, http.StatusInternalServerError, "store_error", "unable to record payment")
		return
	}

	h.Logger.Info().
		Str("provider", provider).
		Str("txid", txid).
		Str("order", order.NumeroPedido).
		Msg("payment confirmed")
	h.count(provider, "confirmed")
	w.WriteHeader(http.StatusNoContent)
}

func (h Webhook) count(provider, result string) {
	if obs.WebhookTotal != nil {
		obs.WebhookTotal.WithLabelValues(provider, result).Inc()
	}
}
