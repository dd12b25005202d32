package httpgate

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/gotilapod/pix-gateway/internal/common"
)

// Gate is the boundary policy applied uniformly at every externally
// reachable entry point, independent of which provider is invoked.
type Gate struct {
	// AllowedOrigins is the per-deployment allow-list. Empty means every
	// origin is echoed back (public storefront endpoints).
	AllowedOrigins []string
}

// Middleware wires the CORS policy. Preflights short-circuit with the
// allow headers and an empty body. On simple requests the caller's origin
// is echoed when present; a literal "null" origin (file:// and sandboxed
// contexts) is echoed literally, never upgraded to a wildcard with
// credentials. Requests without an Origin fall back to a wildcard.
func (g Gate) Middleware(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowOriginFunc:  g.allowOrigin,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	return c.Handler(wildcardFallback(next))
}

func (g Gate) allowOrigin(_ *http.Request, origin string) bool {
	if len(g.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range g.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func wildcardFallback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Origin") == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		next.ServeHTTP(w, r)
	})
}

// MethodNotAllowed rejects any HTTP method outside the declared set for an
// endpoint with the canonical structured body.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	common.PaymentError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}
