package gateway

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

const ryzenDefaultURL = "https://api.ryzenpay.com.br"

// Ryzen integrates the Ryzen Pay PIX API using a single API key. Like
// Poseidon, the key is resolved strictly server-side and caller-supplied
// values are never honoured.
type Ryzen struct {
	Timeout time.Duration
	BaseURL string
	Client  *resty.Client
}

func (r Ryzen) Name() string { return ProviderRyzen }

func (r Ryzen) baseURL() string {
	if r.BaseURL != "" {
		return r.BaseURL
	}
	return ryzenDefaultURL
}

func (r Ryzen) client() *resty.Client {
	if r.Client != nil {
		return r.Client
	}
	return newRestyClient(ProviderRyzen, r.Timeout)
}

// CreateCharge opens a PIX payment. Ryzen's wire format carries the order's
// item list, enforced upstream by the sanitizer.
func (r Ryzen) CreateCharge(ctx context.Context, req ChargeRequest, creds Credentials) (NormalizedCharge, error) {
	var zero NormalizedCharge

	items := make([]map[string]any, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, map[string]any{
			"name":       item.Name,
			"quantity":   item.Quantity,
			"unit_value": item.UnitAmount,
		})
	}

	body := map[string]any{
		"amount":             req.AmountCents,
		"external_reference": req.ExternalID,
		"customer": map[string]any{
			"name":     req.CustomerName,
			"document": req.CustomerDocument,
			"email":    req.CustomerEmail,
		},
		"items": items,
	}
	if req.PostbackURL != "" {
		body["notification_url"] = req.PostbackURL
	}

	var out struct {
		TransactionID string `json:"transaction_id"`
		PixCode       string `json:"pix_code"`
		Status        string `json:"status"`
	}
	resp, err := r.client().R().
		SetContext(ctx).
		SetHeader("Authorization", creds.APIKey).
		SetBody(body).
		SetResult(&out).
		Post(r.baseURL() + "/v1/pix/payments")
	if err != nil {
		return zero, TransientErr(ProviderRyzen, err)
	}
	if resp.IsError() {
		return zero, mapProviderError(ProviderRyzen, resp.StatusCode(), resp.Body())
	}
	if out.TransactionID == "" || out.PixCode == "" {
		return zero, ProtocolErr(ProviderRyzen, "charge response missing transaction_id or pix_code")
	}

	image, err := RenderQRBase64(out.PixCode)
	if err != nil {
		return zero, ProtocolErr(ProviderRyzen, "render qr code: "+err.Error())
	}

	return NormalizedCharge{
		Provider:      ProviderRyzen,
		TxID:          out.TransactionID,
		PixCopiaECola: out.PixCode,
		QRImageBase64: image,
		Status:        NormalizeStatus(out.Status),
	}, nil
}
