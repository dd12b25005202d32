package gateway

import (
	"context"
)

// Codex represents the CodexPay gateway. CodexPay exposes no synchronous
// endpoints at all: charges are opened out-of-band and confirmation arrives
// exclusively through its webhook, so status is resolved from the recorded
// order state by the reconciler. The type exists so provider dispatch stays
// uniform and unknown-provider handling is distinguishable from
// unsupported-operation handling.
type Codex struct{}

func (Codex) Name() string { return ProviderCodex }

// CreateCharge always fails: CodexPay has no creation endpoint in scope.
func (Codex) CreateCharge(context.Context, ChargeRequest, Credentials) (NormalizedCharge, error) {
	return NormalizedCharge{}, ValidationErr("unsupported_operation", "codexpay does not support charge creation")
}
