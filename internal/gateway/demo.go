package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// demoTxPrefix marks identifiers issued without a real provider behind them.
const demoTxPrefix = "DEMO"

// IsDemoTxID reports whether the identifier belongs to a demonstration
// charge, letting the reconciler short-circuit without calling a provider.
func IsDemoTxID(txid string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(txid)), demoTxPrefix)
}

// Demo stands in for any provider whose production credentials are absent.
// It satisfies the same interface as the real adapters and always succeeds,
// producing a syntactically valid BR Code payload and a locally rendered QR
// raster, clearly tagged so no status check ever reaches a gateway.
type Demo struct {
	// For is the provider identifier this instance stands in for.
	For          string
	PixKey       string
	MerchantName string
	MerchantCity string
	Now          func() time.Time
}

// Name returns the provider identifier the demo instance replaces.
func (d Demo) Name() string {
	if d.For == "" {
		return ProviderDemo
	}
	return d.For
}

// CreateCharge builds a deterministic demonstration charge without any I/O.
func (d Demo) CreateCharge(_ context.Context, req ChargeRequest, _ Credentials) (NormalizedCharge, error) {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	txid := demoTxPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]

	key := d.PixKey
	if key == "" {
		key = "demo@pix.gateway"
	}
	payload := BRCode{
		PixKey:       key,
		MerchantName: d.MerchantName,
		MerchantCity: d.MerchantCity,
		AmountCents:  req.AmountCents,
		TxID:         txid,
		Description:  req.Description,
	}.Build()

	image, err := RenderQRBase64(payload)
	if err != nil {
		return NormalizedCharge{}, ProtocolErr(d.Name(), "render qr code: "+err.Error())
	}

	return NormalizedCharge{
		Provider:      d.Name(),
		TxID:          txid,
		PixCopiaECola: payload,
		QRImageBase64: image,
		Status:        StatusPending,
		ExpiresAt:     now().Add(time.Hour),
	}, nil
}

// QueryStatus reports the fixed demonstration state without external calls.
func (d Demo) QueryStatus(context.Context, string, Credentials) (PaymentStatus, error) {
	return StatusPending, nil
}
