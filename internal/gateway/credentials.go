package gateway

import (
	"strings"
)

// Credentials carries whichever secret material a provider needs. Only the
// fields relevant to the target provider are consulted.
type Credentials struct {
	ClientID     string
	ClientSecret string
	APIKey       string
	PublicKey    string
	SecretKey    string
	// Certificate is the decoded client certificate bundle (PEM) for
	// providers requiring mTLS.
	Certificate []byte
	// PixKey is the receiving PIX key registered with the provider.
	PixKey  string
	Sandbox bool
}

// Resolver merges caller-supplied credential fields with the configured
// per-provider values. It is a pure function of its inputs: nothing is
// persisted and secrets never leave the process.
type Resolver struct {
	// Configured holds the process-level credentials keyed by provider.
	Configured map[string]Credentials
	// ServerOnly lists providers whose caller-supplied credentials are
	// ignored outright, never honoured.
	ServerOnly map[string]bool
}

// Resolve produces a complete credential set for the provider or a
// configuration error naming the missing fields.
func (r Resolver) Resolve(provider string, caller Credentials) (Credentials, error) {
	configured := r.Configured[provider]
	if r.ServerOnly[provider] {
		caller = Credentials{}
	}

	merged := Credentials{
		ClientID:     firstNonEmpty(caller.ClientID, configured.ClientID),
		ClientSecret: firstNonEmpty(caller.ClientSecret, configured.ClientSecret),
		APIKey:       firstNonEmpty(caller.APIKey, configured.APIKey),
		PublicKey:    firstNonEmpty(caller.PublicKey, configured.PublicKey),
		SecretKey:    firstNonEmpty(caller.SecretKey, configured.SecretKey),
		PixKey:       firstNonEmpty(caller.PixKey, configured.PixKey),
		Certificate:  configured.Certificate,
		Sandbox:      configured.Sandbox,
	}

	var missing []string
	for _, field := range requiredFields(provider) {
		if !merged.has(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return Credentials{}, ConfigErr(provider, "missing credentials: "+strings.Join(missing, ", "))
	}
	return merged, nil
}

// Complete reports whether the configured credentials for the provider cover
// every required field. Used to decide between the real adapter and demo mode.
func (r Resolver) Complete(provider string) bool {
	configured := r.Configured[provider]
	for _, field := range requiredFields(provider) {
		if !configured.has(field) {
			return false
		}
	}
	return true
}

func requiredFields(provider string) []string {
	switch provider {
	case ProviderEFI:
		return []string{"clientId", "clientSecret", "certificate", "pixKey"}
	case ProviderBSPay:
		return []string{"clientId", "clientSecret"}
	case ProviderPoseidon:
		return []string{"publicKey", "secretKey"}
	case ProviderRyzen:
		return []string{"apiKey"}
	default:
		return nil
	}
}

func (c Credentials) has(field string) bool {
	switch field {
	case "clientId":
		return strings.TrimSpace(c.ClientID) != ""
	case "clientSecret":
		return strings.TrimSpace(c.ClientSecret) != ""
	case "apiKey":
		return strings.TrimSpace(c.APIKey) != ""
	case "publicKey":
		return strings.TrimSpace(c.PublicKey) != ""
	case "secretKey":
		return strings.TrimSpace(c.SecretKey) != ""
	case "certificate":
		return len(c.Certificate) > 0
	case "pixKey":
		return strings.TrimSpace(c.PixKey) != ""
	default:
		return false
	}
}

// Redact obscures a secret for diagnostics, keeping only a short prefix.
func Redact(secret string) string {
	trimmed := strings.TrimSpace(secret)
	if len(trimmed) <= 4 {
		return "****"
	}
	return trimmed[:4] + "****"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
