package charge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gotilapod/pix-gateway/internal/common"
	"github.com/gotilapod/pix-gateway/internal/gateway"
)

// Handler exposes the charge-creation endpoint.
type Handler struct {
	Svc *Service
}

type createResp struct {
	Success       bool   `json:"success"`
	Provider      string `json:"provider"`
	Txid          string `json:"txid"`
	PixCopiaECola string `json:"pixCopiaECola"`
	Qrcode        string `json:"qrcode"`
	ImagemQrcode  string `json:"imagemQrcode"`
	Status        string `json:"status"`
	ExpiresAt     int64  `json:"expiresAt,omitempty"`
}

// Create handles POST /api/v1/pix/{provider}/create.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.PaymentError(w, http.StatusInternalServerError, "not_configured", "charge handler unavailable")
		return
	}
	provider := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))

	var raw gateway.RawCharge
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		common.PaymentError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	charge, err := h.Svc.Create(r.Context(), provider, raw)
	if err != nil {
		status := gateway.HTTPStatusOf(err)
		code := gateway.CodeOf(err)
		if code == "unknown_provider" {
			status = http.StatusNotFound
		}
		if errors.Is(err, r.Context().Err()) && r.Context().Err() != nil {
			status = http.StatusGatewayTimeout
		}
		common.PaymentError(w, status, code, err.Error())
		return
	}

	resp := createResp{
		Success:       true,
		Provider:      charge.Provider,
		Txid:          charge.TxID,
		PixCopiaECola: charge.PixCopiaECola,
		Qrcode:        charge.PixCopiaECola,
		ImagemQrcode:  charge.QRImageBase64,
		Status:        string(charge.Status),
	}
	if !charge.ExpiresAt.IsZero() {
		resp.ExpiresAt = charge.ExpiresAt.Unix()
	}
	common.JSON(w, http.StatusOK, resp)
}
