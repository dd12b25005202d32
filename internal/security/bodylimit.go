package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gotilapod/pix-gateway/internal/common"
)

// BodyLimit caps the request payload size. Charge and webhook bodies are a
// few hundred bytes; anything near the limit is hostile or broken.
type BodyLimit struct {
	Max int64
}

// Middleware buffers the body up to the limit and rejects anything larger
// with 413 in the payment error envelope. Downstream handlers see a fully
// buffered, re-readable body.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.PaymentError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds limit")
			return
		}

		buf, err := io.ReadAll(io.LimitReader(r.Body, b.Max+1))
		if err != nil && !errors.Is(err, io.EOF) {
			common.PaymentError(w, http.StatusBadRequest, "invalid_body", "request body could not be read")
			return
		}
		_ = r.Body.Close()
		if int64(len(buf)) > b.Max {
			common.PaymentError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds limit")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}
