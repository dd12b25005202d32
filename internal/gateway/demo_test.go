package gateway_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gotilapod/pix-gateway/internal/gateway"
)

func TestDemoCreateCharge(t *testing.T) {
	now := time.Unix(1700000000, 0)
	demo := gateway.Demo{
		For:          "bspay",
		PixKey:       "demo@loja.com",
		MerchantName: "Loja Demo",
		MerchantCity: "Curitiba",
		Now:          func() time.Time { return now },
	}

	charge, err := demo.CreateCharge(context.Background(), gateway.ChargeRequest{
		AmountCents:  2500,
		CustomerName: "Maria",
	}, gateway.Credentials{})
	require.NoError(t, err)

	require.Equal(t, "bspay", charge.Provider)
	require.True(t, strings.HasPrefix(charge.TxID, "DEMO"))
	require.Len(t, charge.TxID, 20)
	require.Equal(t, gateway.StatusPending, charge.Status)
	require.Equal(t, now.Add(time.Hour), charge.ExpiresAt)

	require.True(t, strings.HasPrefix(charge.PixCopiaECola, "000201"))
	require.Contains(t, charge.PixCopiaECola, "demo@loja.com")
	require.Contains(t, charge.PixCopiaECola, "540525.00")
	require.NotEmpty(t, charge.QRImageBase64)
}

func TestDemoChargesAreDistinct(t *testing.T) {
	demo := gateway.Demo{}
	req := gateway.ChargeRequest{AmountCents: 100, CustomerName: "Ana"}

	first, err := demo.CreateCharge(context.Background(), req, gateway.Credentials{})
	require.NoError(t, err)
	second, err := demo.CreateCharge(context.Background(), req, gateway.Credentials{})
	require.NoError(t, err)
	require.NotEqual(t, first.TxID, second.TxID)
}

func TestDemoQueryStatusAlwaysPending(t *testing.T) {
	status, err := gateway.Demo{}.QueryStatus(context.Background(), "DEMOABC", gateway.Credentials{})
	require.NoError(t, err)
	require.Equal(t, gateway.StatusPending, status)
}

func TestIsDemoTxID(t *testing.T) {
	require.True(t, gateway.IsDemoTxID("DEMO1234"))
	require.True(t, gateway.IsDemoTxID(" demoabcd "))
	require.False(t, gateway.IsDemoTxID("E2CFAB12"))
	require.False(t, gateway.IsDemoTxID(""))
}
