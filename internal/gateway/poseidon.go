package gateway

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

const poseidonDefaultURL = "https://api.poseidonpay.com.br"

// Poseidon integrates the Poseidon Pay PIX API using a static public/secret
// key pair. Credentials are resolved strictly server-side: caller-supplied
// keys are discarded by the Resolver before they ever reach this adapter.
type Poseidon struct {
	Timeout time.Duration
	BaseURL string
	Client  *resty.Client
}

func (p Poseidon) Name() string { return ProviderPoseidon }

func (p Poseidon) baseURL() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	return poseidonDefaultURL
}

func (p Poseidon) client() *resty.Client {
	if p.Client != nil {
		return p.Client
	}
	return newRestyClient(ProviderPoseidon, p.Timeout)
}

// CreateCharge opens a PIX transaction. Poseidon's wire format carries the
// order's item list, so the sanitizer enforces a non-empty order upstream.
func (p Poseidon) CreateCharge(ctx context.Context, req ChargeRequest, creds Credentials) (NormalizedCharge, error) {
	var zero NormalizedCharge

	items := make([]map[string]any, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, map[string]any{
			"title":      item.Name,
			"quantity":   item.Quantity,
			"unit_price": item.UnitAmount,
		})
	}

	body := map[string]any{
		"amount":         req.AmountCents,
		"payment_method": "pix",
		"external_id":    req.ExternalID,
		"customer": map[string]any{
			"name":     req.CustomerName,
			"document": req.CustomerDocument,
			"email":    req.CustomerEmail,
			"phone":    req.CustomerPhone,
		},
		"items": items,
	}
	if req.PostbackURL != "" {
		body["postback_url"] = req.PostbackURL
	}

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Pix    struct {
			Qrcode      string `json:"qrcode"`
			QrcodeImage string `json:"qrcode_image"`
		} `json:"pix"`
	}
	resp, err := p.client().R().
		SetContext(ctx).
		SetHeader("x-public-key", creds.PublicKey).
		SetHeader("x-secret-key", creds.SecretKey).
		SetBody(body).
		SetResult(&out).
		Post(p.baseURL() + "/v1/transactions")
	if err != nil {
		return zero, TransientErr(ProviderPoseidon, err)
	}
	if resp.IsError() {
		return zero, mapProviderError(ProviderPoseidon, resp.StatusCode(), resp.Body())
	}
	if out.ID == "" || out.Pix.Qrcode == "" {
		return zero, ProtocolErr(ProviderPoseidon, "charge response missing id or pix.qrcode")
	}

	image := StripDataURL(out.Pix.QrcodeImage)
	if image == "" {
		if image, err = RenderQRBase64(out.Pix.Qrcode); err != nil {
			return zero, ProtocolErr(ProviderPoseidon, "render qr code: "+err.Error())
		}
	}

	return NormalizedCharge{
		Provider:      ProviderPoseidon,
		TxID:          out.ID,
		PixCopiaECola: out.Pix.Qrcode,
		QRImageBase64: image,
		Status:        NormalizeStatus(out.Status),
	}, nil
}
