package httpgate_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gotilapod/pix-gateway/internal/httpgate"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestGatePreflight(t *testing.T) {
	called := false
	h := httpgate.Gate{}.Middleware(okHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/pix/bspay/create", nil)
	req.Header.Set("Origin", "https://loja.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Idempotency-Key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.False(t, called, "preflight must short-circuit")
	require.Equal(t, "https://loja.example", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	require.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))
}

func TestGateEchoesAnyOriginWhenUnrestricted(t *testing.T) {
	called := false
	h := httpgate.Gate{}.Middleware(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pix/status", nil)
	req.Header.Set("Origin", "https://qualquer.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, called)
	require.Equal(t, "https://qualquer.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGateEchoesNullOrigin(t *testing.T) {
	h := httpgate.Gate{}.Middleware(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pix/status", nil)
	req.Header.Set("Origin", "null")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "null", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGateAllowList(t *testing.T) {
	gate := httpgate.Gate{AllowedOrigins: []string{"https://loja.example"}}
	h := gate.Middleware(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pix/status", nil)
	req.Header.Set("Origin", "https://Loja.Example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "https://Loja.Example", rec.Header().Get("Access-Control-Allow-Origin"),
		"origin matching is case insensitive")

	called := false
	h = gate.Middleware(okHandler(&called))
	req = httptest.NewRequest(http.MethodGet, "/api/v1/pix/status", nil)
	req.Header.Set("Origin", "https://intrusa.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.True(t, called, "disallowed origins still reach the handler, only the headers are withheld")
}

func TestGateWildcardEntryAllowsAll(t *testing.T) {
	h := httpgate.Gate{AllowedOrigins: []string{"*"}}.Middleware(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pix/status", nil)
	req.Header.Set("Origin", "https://qualquer.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "https://qualquer.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGateWildcardFallbackWithoutOrigin(t *testing.T) {
	h := httpgate.Gate{}.Middleware(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pix/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/pix/status", nil)
	rec := httptest.NewRecorder()
	httpgate.MethodNotAllowed(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["success"])
	require.Equal(t, "method_not_allowed", resp["error"])
}
