package gateway

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	efiProductionURL = "https://pix.api.efipay.com.br"
	efiSandboxURL    = "https://pix-h.api.efipay.com.br"

	// efiChargeExpiry is the fixed expiration window sent on every
	// immediate charge.
	efiChargeExpiry = 3600
)

// EFI integrates the Efí (Gerencianet) PIX API. Authentication combines a
// client certificate with an OAuth client-credentials exchange; the bearer
// token is shared through the TokenCache. Charge creation is two calls:
// create the immediate charge, then fetch the QR for the returned location.
// The operation fails unless both succeed.
type EFI struct {
	Tokens  *TokenCache
	Timeout time.Duration
	// BaseURL overrides the environment-derived host. Tests point it at a
	// local server.
	BaseURL string
	// Client overrides the certificate-bound client entirely (tests).
	Client *resty.Client
}

func (e EFI) Name() string { return ProviderEFI }

func (e EFI) baseURL(creds Credentials) string {
	if e.BaseURL != "" {
		return e.BaseURL
	}
	if creds.Sandbox {
		return efiSandboxURL
	}
	return efiProductionURL
}

// client builds the mTLS-bound HTTP client from the decoded certificate
// bundle (PEM containing both certificate and key).
func (e EFI) client(creds Credentials) (*resty.Client, error) {
	if e.Client != nil {
		return e.Client, nil
	}
	cert, err := tls.X509KeyPair(creds.Certificate, creds.Certificate)
	if err != nil {
		return nil, AuthErr(ProviderEFI, "invalid client certificate: "+err.Error())
	}
	client := newRestyClient(ProviderEFI, e.Timeout)
	client.SetTransport(transportFor(ProviderEFI, e.Timeout,
		&http.Transport{TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}}}))
	return client, nil
}

func (e EFI) bearer(ctx context.Context, client *resty.Client, creds Credentials) (string, error) {
	return e.Tokens.Get(ctx, ProviderEFI, func(ctx context.Context) (string, time.Duration, error) {
		var out struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int    `json:"expires_in"`
		}
		resp, err := client.R().
			SetContext(ctx).
			SetBasicAuth(creds.ClientID, creds.ClientSecret).
			SetBody(map[string]string{"grant_type": "client_credentials"}).
			SetResult(&out).
			Post(e.baseURL(creds) + "/oauth/token")
		if err != nil {
			return "", 0, TransientErr(ProviderEFI, err)
		}
		if resp.IsError() {
			return "", 0, mapProviderError(ProviderEFI, resp.StatusCode(), resp.Body())
		}
		if out.AccessToken == "" {
			return "", 0, ProtocolErr(ProviderEFI, "token response missing access_token")
		}
		return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
	})
}

// CreateCharge creates an immediate charge and fetches its QR code.
func (e EFI) CreateCharge(ctx context.Context, req ChargeRequest, creds Credentials) (NormalizedCharge, error) {
	var zero NormalizedCharge

	client, err := e.client(creds)
	if err != nil {
		return zero, err
	}
	token, err := e.bearer(ctx, client, creds)
	if err != nil {
		return zero, err
	}

	body := map[string]any{
		"calendario": map[string]any{"expiracao": efiChargeExpiry},
		"devedor": map[string]any{
			"cpf":  req.CustomerDocument,
			"nome": req.CustomerName,
		},
		"valor": map[string]any{"original": FormatAmount(req.AmountCents)},
		"chave": creds.PixKey,
	}
	if req.Description != "" {
		body["solicitacaoPagador"] = req.Description
	}

	var cob struct {
		Txid string `json:"txid"`
		Loc  struct {
			ID int64 `json:"id"`
		} `json:"loc"`
		Status string `json:"status"`
	}
	resp, err := client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&cob).
		Post(e.baseURL(creds) + "/v2/cob")
	if err != nil {
		return zero, TransientErr(ProviderEFI, err)
	}
	if resp.IsError() {
		return zero, mapProviderError(ProviderEFI, resp.StatusCode(), resp.Body())
	}
	if cob.Txid == "" || cob.Loc.ID == 0 {
		return zero, ProtocolErr(ProviderEFI, "charge response missing txid or loc.id")
	}

	var qr struct {
		Qrcode       string `json:"qrcode"`
		ImagemQrcode string `json:"imagemQrcode"`
	}
	qrResp, err := client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&qr).
		Get(fmt.Sprintf("%s/v2/loc/%d/qrcode", e.baseURL(creds), cob.Loc.ID))
	if err != nil {
		return zero, TransientErr(ProviderEFI, err)
	}
	if qrResp.IsError() {
		return zero, mapProviderError(ProviderEFI, qrResp.StatusCode(), qrResp.Body())
	}
	if qr.Qrcode == "" {
		return zero, ProtocolErr(ProviderEFI, "qrcode response missing payload")
	}

	image := StripDataURL(qr.ImagemQrcode)
	if image == "" {
		if image, err = RenderQRBase64(qr.Qrcode); err != nil {
			return zero, ProtocolErr(ProviderEFI, "render qr code: "+err.Error())
		}
	}

	return NormalizedCharge{
		Provider:      ProviderEFI,
		TxID:          cob.Txid,
		PixCopiaECola: qr.Qrcode,
		QRImageBase64: image,
		Status:        NormalizeStatus(cob.Status),
		ExpiresAt:     time.Now().Add(efiChargeExpiry * time.Second),
	}, nil
}

// QueryStatus asks the provider for the current charge state.
func (e EFI) QueryStatus(ctx context.Context, txid string, creds Credentials) (PaymentStatus, error) {
	client, err := e.client(creds)
	if err != nil {
		return "", err
	}
	token, err := e.bearer(ctx, client, creds)
	if err != nil {
		return "", err
	}
	var out struct {
		Status string `json:"status"`
	}
	resp, err := client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get(e.baseURL(creds) + "/v2/cob/" + txid)
	if err != nil {
		return "", TransientErr(ProviderEFI, err)
	}
	if resp.IsError() {
		return "", mapProviderError(ProviderEFI, resp.StatusCode(), resp.Body())
	}
	if out.Status == "" {
		return "", ProtocolErr(ProviderEFI, "status response missing status")
	}
	return NormalizeStatus(out.Status), nil
}
