package common_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gotilapod/pix-gateway/internal/common"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:4567"
	require.Equal(t, "10.0.0.1", common.ClientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	require.Equal(t, "203.0.113.7", common.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.2, 203.0.113.7")
	require.Equal(t, "198.51.100.2", common.ClientIP(req))

	require.Equal(t, "", common.ClientIP(nil))
}

func TestSha256Hex(t *testing.T) {
	require.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		common.Sha256Hex([]byte("hello")))
	require.Len(t, common.Sha256Hex(nil), 64)
}
