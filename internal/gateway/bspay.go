package gateway

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

const bspayDefaultURL = "https://api.bspay.co"

// BSPay integrates the BSPay PIX API. Authentication is an OAuth
// client-credentials exchange using Basic base64(clientId:clientSecret);
// the resulting bearer token lives in the shared TokenCache and is reused
// across calls until its buffered expiry.
type BSPay struct {
	Tokens  *TokenCache
	Timeout time.Duration
	BaseURL string
	Client  *resty.Client
}

func (b BSPay) Name() string { return ProviderBSPay }

func (b BSPay) baseURL() string {
	if b.BaseURL != "" {
		return b.BaseURL
	}
	return bspayDefaultURL
}

func (b BSPay) client() *resty.Client {
	if b.Client != nil {
		return b.Client
	}
	return newRestyClient(ProviderBSPay, b.Timeout)
}

func (b BSPay) bearer(ctx context.Context, creds Credentials) (string, error) {
	return b.Tokens.Get(ctx, ProviderBSPay, func(ctx context.Context) (string, time.Duration, error) {
		var out struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int    `json:"expires_in"`
		}
		resp, err := b.client().R().
			SetContext(ctx).
			SetBasicAuth(creds.ClientID, creds.ClientSecret).
			SetFormData(map[string]string{"grant_type": "client_credentials"}).
			SetResult(&out).
			Post(b.baseURL() + "/v2/oauth/token")
		if err != nil {
			return "", 0, TransientErr(ProviderBSPay, err)
		}
		if resp.IsError() {
			return "", 0, mapProviderError(ProviderBSPay, resp.StatusCode(), resp.Body())
		}
		if out.AccessToken == "" {
			return "", 0, ProtocolErr(ProviderBSPay, "token response missing access_token")
		}
		return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
	})
}

// CreateCharge opens a PIX charge and returns the provider's copy-paste
// code. BSPay does not supply a raster, so the QR image is rendered locally.
func (b BSPay) CreateCharge(ctx context.Context, req ChargeRequest, creds Credentials) (NormalizedCharge, error) {
	var zero NormalizedCharge

	token, err := b.bearer(ctx, creds)
	if err != nil {
		return zero, err
	}

	body := map[string]any{
		"amount":      FormatAmount(req.AmountCents),
		"external_id": req.ExternalID,
		"payer": map[string]any{
			"name":     req.CustomerName,
			"document": req.CustomerDocument,
			"email":    req.CustomerEmail,
		},
	}
	if req.PostbackURL != "" {
		body["postbackUrl"] = req.PostbackURL
	}
	if req.Description != "" {
		body["payerQuestion"] = req.Description
	}

	var out struct {
		TransactionID string `json:"transactionId"`
		Qrcode        string `json:"qrcode"`
		Status        string `json:"status"`
	}
	resp, err := b.client().R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&out).
		Post(b.baseURL() + "/v2/pix/qrcode")
	if err != nil {
		return zero, TransientErr(ProviderBSPay, err)
	}
	if resp.IsError() {
		return zero, mapProviderError(ProviderBSPay, resp.StatusCode(), resp.Body())
	}
	if out.TransactionID == "" || out.Qrcode == "" {
		return zero, ProtocolErr(ProviderBSPay, "charge response missing transactionId or qrcode")
	}

	image, err := RenderQRBase64(out.Qrcode)
	if err != nil {
		return zero, ProtocolErr(ProviderBSPay, "render qr code: "+err.Error())
	}

	return NormalizedCharge{
		Provider:      ProviderBSPay,
		TxID:          out.TransactionID,
		PixCopiaECola: out.Qrcode,
		QRImageBase64: image,
		Status:        NormalizeStatus(out.Status),
	}, nil
}
