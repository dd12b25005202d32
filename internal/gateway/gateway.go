package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider identifiers accepted on the wire and in configuration.
const (
	ProviderEFI      = "efi"
	ProviderBSPay    = "bspay"
	ProviderPoseidon = "poseidonpay"
	ProviderRyzen    = "ryzenpay"
	ProviderCodex    = "codexpay"
	ProviderDemo     = "demo"
)

// PaymentStatus is the normalised payment state shared by every adapter.
type PaymentStatus string

const (
	// StatusPending means the charge exists but no confirmation was observed.
	StatusPending PaymentStatus = "PENDENTE"
	// StatusConfirmed means funds were received. Terminal.
	StatusConfirmed PaymentStatus = "CONFIRMADO"
	// StatusExpired means the provider invalidated the charge. Terminal.
	StatusExpired PaymentStatus = "EXPIRADO"
)

// NormalizeStatus maps the union of provider status vocabularies into the
// normalised set. Unknown values stay pending: a negative terminal state is
// only ever derived from an explicit provider signal.
func NormalizeStatus(raw string) PaymentStatus {
	value := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case value == "CONCLUIDA" || value == "CONFIRMADO" || value == "PAGO" ||
		value == "PAID" || value == "APPROVED" || value == "COMPLETED" || value == "SETTLED":
		return StatusConfirmed
	case strings.HasPrefix(value, "REMOVIDA") || value == "EXPIRADO" ||
		value == "EXPIRED" || value == "CANCELED" || value == "CANCELLED" || value == "REFUSED":
		return StatusExpired
	default:
		return StatusPending
	}
}

// Item is a single order line forwarded to providers whose wire format
// requires an item list.
type Item struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unitAmount"`
}

// ChargeRequest is the sanitised, provider-agnostic charge creation input.
// Amounts are carried in centavos. It never contains provider secrets;
// credentials are resolved separately and passed alongside.
type ChargeRequest struct {
	AmountCents      int64
	CustomerName     string
	CustomerDocument string
	CustomerEmail    string
	CustomerPhone    string
	ExternalID       string
	Description      string
	PostbackURL      string
	Items            []Item
}

// NormalizedCharge is the provider-agnostic result of a charge creation.
type NormalizedCharge struct {
	Provider      string
	TxID          string
	PixCopiaECola string
	// QRImageBase64 is a base64 PNG, forwarded from the provider when it
	// supplies one and rendered locally otherwise.
	QRImageBase64 string
	Status        PaymentStatus
	ExpiresAt     time.Time
}

// Provider is the capability every gateway adapter must implement.
type Provider interface {
	Name() string
	CreateCharge(ctx context.Context, req ChargeRequest, creds Credentials) (NormalizedCharge, error)
}

// StatusQuerier is the optional capability for providers that expose a
// synchronous charge status endpoint.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, txid string, creds Credentials) (PaymentStatus, error)
}

// FormatAmount renders centavos as the two-decimal string PIX APIs expect.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
