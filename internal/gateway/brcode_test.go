package gateway

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16CheckValue(t *testing.T) {
	// CRC-16/CCITT-FALSE check value for the standard test vector.
	require.Equal(t, uint16(0x29B1), crc16("123456789"))
}

func TestBRCodeBuild(t *testing.T) {
	payload := BRCode{
		PixKey:       "loja@example.com",
		MerchantName: "Loja da Maria",
		MerchantCity: "Recife",
		AmountCents:  1050,
		TxID:         "PED12345",
	}.Build()

	require.True(t, strings.HasPrefix(payload, "000201"))
	require.Contains(t, payload, "br.gov.bcb.pix")
	require.Contains(t, payload, "0116loja@example.com")
	require.Contains(t, payload, "540510.50")
	require.Contains(t, payload, "5802BR")
	require.Contains(t, payload, "5913LOJA DA MARIA")
	require.Contains(t, payload, "6006RECIFE")
	require.Contains(t, payload, "0508PED12345")

	// The trailing four characters must be the CRC of everything before them.
	require.Greater(t, len(payload), 4)
	body, check := payload[:len(payload)-4], payload[len(payload)-4:]
	require.Equal(t, fmt.Sprintf("%04X", crc16(body)), check)
	require.True(t, strings.Contains(body, "6304"))
}

func TestBRCodeDefaults(t *testing.T) {
	payload := BRCode{PixKey: "chave"}.Build()

	require.Contains(t, payload, "PIX GATEWAY")
	require.Contains(t, payload, "SAO PAULO")
	require.Contains(t, payload, "0503***", "missing txid falls back to ***")
	require.Contains(t, payload, "53039865802BR", "zero amount omits the amount field")
}

func TestBRCodeTruncatesLongFields(t *testing.T) {
	payload := BRCode{
		PixKey:       "chave",
		MerchantName: "Nome Extremamente Comprido De Loja Virtual",
		TxID:         strings.Repeat("A", 40),
	}.Build()

	require.Contains(t, payload, "5925NOME EXTREMAMENTE COMPRI")
	require.Contains(t, payload, "0525"+strings.Repeat("A", 25))
}

func TestTruncateASCIIDropsNonPrintable(t *testing.T) {
	require.Equal(t, "So Paulo", truncateASCII("São Paulo", 25))
	require.Equal(t, "abc", truncateASCII("  abc\n", 25))
}
