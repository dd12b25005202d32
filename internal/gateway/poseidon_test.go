package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"

	"github.com/gotilapod/pix-gateway/internal/gateway"
)

func TestPoseidonCreateCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.Equal(t, "/v1/transactions", r.URL.Path)
		require.Equal(t, "pub-key", r.Header.Get("x-public-key"))
		require.Equal(t, "sec-key", r.Header.Get("x-secret-key"))

		var body struct {
			Amount        int64  `json:"amount"`
			PaymentMethod string `json:"payment_method"`
			ExternalID    string `json:"external_id"`
			Items         []struct {
				Title     string `json:"title"`
				Quantity  int    `json:"quantity"`
				UnitPrice int64  `json:"unit_price"`
			} `json:"items"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, int64(5000), body.Amount)
		require.Equal(t, "pix", body.PaymentMethod)
		require.Equal(t, "ped-9", body.ExternalID)
		require.Len(t, body.Items, 1)
		require.Equal(t, "Caneca", body.Items[0].Title)
		require.Equal(t, int64(5000), body.Items[0].UnitPrice)

		json.NewEncoder(w).Encode(map[string]any{
			"id":     "pos-tx-1",
			"status": "pending",
			"pix": map[string]any{
				"qrcode":       "00020126poseidonpayload",
				"qrcode_image": "data:image/png;base64,QUJD",
			},
		})
	}))
	defer srv.Close()

	adapter := gateway.Poseidon{BaseURL: srv.URL, Client: resty.New()}
	charge, err := adapter.CreateCharge(context.Background(), gateway.ChargeRequest{
		AmountCents:  5000,
		CustomerName: "Maria",
		ExternalID:   "ped-9",
		Items:        []gateway.Item{{Name: "Caneca", Quantity: 1, UnitAmount: 5000}},
	}, gateway.Credentials{PublicKey: "pub-key", SecretKey: "sec-key"})
	require.NoError(t, err)
	require.Equal(t, "poseidonpay", charge.Provider)
	require.Equal(t, "pos-tx-1", charge.TxID)
	require.Equal(t, "00020126poseidonpayload", charge.PixCopiaECola)
	require.Equal(t, "QUJD", charge.QRImageBase64, "data URL prefix stripped")
	require.Equal(t, gateway.StatusPending, charge.Status)
}

func TestPoseidonRendersWhenImageAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "pos-tx-2",
			"status": "approved",
			"pix":    map[string]any{"qrcode": "00020126poseidonpayload"},
		})
	}))
	defer srv.Close()

	adapter := gateway.Poseidon{BaseURL: srv.URL, Client: resty.New()}
	charge, err := adapter.CreateCharge(context.Background(), gateway.ChargeRequest{
		AmountCents:  100,
		CustomerName: "Ana",
		Items:        []gateway.Item{{Name: "Item", Quantity: 1, UnitAmount: 100}},
	}, gateway.Credentials{PublicKey: "pk", SecretKey: "sk"})
	require.NoError(t, err)
	require.NotEmpty(t, charge.QRImageBase64)
	require.Equal(t, gateway.StatusConfirmed, charge.Status)
}

func TestPoseidonBusinessRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"message": "document blocked"})
	}))
	defer srv.Close()

	adapter := gateway.Poseidon{BaseURL: srv.URL, Client: resty.New()}
	_, err := adapter.CreateCharge(context.Background(), gateway.ChargeRequest{
		AmountCents:  100,
		CustomerName: "Ana",
		Items:        []gateway.Item{{Name: "Item", Quantity: 1, UnitAmount: 100}},
	}, gateway.Credentials{PublicKey: "pk", SecretKey: "sk"})
	require.Error(t, err)
	require.Equal(t, gateway.KindRejected, gateway.KindOf(err))
	require.Contains(t, err.Error(), "document blocked")
}
