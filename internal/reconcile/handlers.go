package reconcile

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gotilapod/pix-gateway/internal/common"
)

// Handler exposes the status endpoint, accepting the identifiers either as
// query parameters (GET) or as a JSON body (POST).
type Handler struct {
	Reconciler *Reconciler
}

type statusInput struct {
	Provider          string `json:"provider"`
	TransactionID     string `json:"transactionId"`
	ExternalReference string `json:"externalReference"`
	// Identifier is a legacy alias for externalReference.
	Identifier string `json:"identifier"`
}

type statusResp struct {
	Success  bool   `json:"success"`
	Status   string `json:"status"`
	Txid     string `json:"txid,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Status handles GET|POST /api/v1/pix/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Reconciler == nil {
		common.PaymentError(w, http.StatusInternalServerError, "not_configured", "status handler unavailable")
		return
	}

	var in statusInput
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			common.PaymentError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
			return
		}
	} else {
		query := r.URL.Query()
		in.Provider = query.Get("provider")
		in.TransactionID = query.Get("transactionId")
		in.ExternalReference = query.Get("externalReference")
		in.Identifier = query.Get("identifier")
	}

	if in.ExternalReference == "" {
		in.ExternalReference = in.Identifier
	}
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	in.ExternalReference = strings.TrimSpace(in.ExternalReference)
	if in.TransactionID == "" && in.ExternalReference == "" {
		common.PaymentError(w, http.StatusBadRequest, "missing_identifier", "transactionId or externalReference is required")
		return
	}

	status, err := h.Reconciler.Status(r.Context(), Query{
		Provider:          in.Provider,
		TransactionID:     in.TransactionID,
		ExternalReference: in.ExternalReference,
	})
	if err != nil {
		common.PaymentError(w, http.StatusInternalServerError, "status_error", "unable to resolve payment status")
		return
	}

	common.JSON(w, http.StatusOK, statusResp{
		Success:  true,
		Status:   string(status),
		Txid:     in.TransactionID,
		Provider: strings.ToLower(strings.TrimSpace(in.Provider)),
	})
}
