package security_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gotilapod/pix-gateway/internal/security"
)

func postBody(t *testing.T, limiter security.BodyLimit, body string, contentLength int64) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var captured string
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured = string(data)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pix/bspay/create", strings.NewReader(body))
	if contentLength != 0 {
		req.ContentLength = contentLength
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestBodyLimitPassesSmallBody(t *testing.T) {
	rec, captured := postBody(t, security.BodyLimit{Max: 32}, `{"amount":"10"}`, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `{"amount":"10"}`, captured, "handler sees the buffered body")
}

func TestBodyLimitRejectsOversizedBody(t *testing.T) {
	rec, _ := postBody(t, security.BodyLimit{Max: 5}, strings.Repeat("x", 64), 0)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["success"])
	require.Equal(t, "payload_too_large", resp["error"])
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	rec, _ := postBody(t, security.BodyLimit{Max: 5}, "tiny", 4096)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "payload_too_large", resp["error"])
}
