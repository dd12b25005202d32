package gateway

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// ItemCarrier marks providers whose wire format requires the order's item
// list, which the sanitizer then enforces as non-empty.
type ItemCarrier interface {
	CarriesItems() bool
}

// CarriesItems reports that Poseidon requires an item list.
func (Poseidon) CarriesItems() bool { return true }

// CarriesItems reports that Ryzen requires an item list.
func (Ryzen) CarriesItems() bool { return true }

// Registry maps provider identifiers onto adapter instances. Selection is
// configuration-driven: a provider whose production credentials are missing
// is registered as a Demo stand-in rather than failing at call time.
type Registry struct {
	providers map[string]Provider
}

// RegistryConfig carries the wiring for adapter construction.
type RegistryConfig struct {
	Resolver Resolver
	Tokens   *TokenCache
	Timeout  time.Duration
	// DemoTemplate supplies the merchant identity used by demo stand-ins.
	DemoTemplate Demo
	Logger       zerolog.Logger
}

// NewRegistry builds the provider table from configuration.
func NewRegistry(cfg RegistryConfig) *Registry {
	providers := map[string]Provider{
		ProviderCodex: Codex{},
	}

	creatable := map[string]Provider{
		ProviderEFI:      EFI{Tokens: cfg.Tokens, Timeout: cfg.Timeout},
		ProviderBSPay:    BSPay{Tokens: cfg.Tokens, Timeout: cfg.Timeout},
		ProviderPoseidon: Poseidon{Timeout: cfg.Timeout},
		ProviderRyzen:    Ryzen{Timeout: cfg.Timeout},
	}
	for name, adapter := range creatable {
		if cfg.Resolver.Complete(name) {
			providers[name] = adapter
			continue
		}
		demo := cfg.DemoTemplate
		demo.For = name
		providers[name] = demo
		cfg.Logger.Info().Str("provider", name).Msg("credentials absent, registering demo adapter")
	}

	return &Registry{providers: providers}
}

// Register installs or replaces the adapter for its identifier.
func (r *Registry) Register(p Provider) {
	if r.providers == nil {
		r.providers = map[string]Provider{}
	}
	r.providers[p.Name()] = p
}

// Provider looks up the adapter for the identifier.
func (r *Registry) Provider(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// StatusQuerier returns the adapter's live status capability when present.
func (r *Registry) StatusQuerier(name string) (StatusQuerier, bool) {
	p, ok := r.providers[name]
	if !ok {
		return nil, false
	}
	q, ok := p.(StatusQuerier)
	return q, ok
}

// IsDemo reports whether the provider is served by a demo stand-in.
func (r *Registry) IsDemo(name string) bool {
	p, ok := r.providers[name]
	if !ok {
		return false
	}
	_, demo := p.(Demo)
	return demo
}

// Names lists the registered provider identifiers in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
