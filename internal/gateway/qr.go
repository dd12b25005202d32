package gateway

import (
	"encoding/base64"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderQRBase64 rasterises a PIX payload into a base64-encoded PNG. Used
// whenever the provider hands back only the copy-paste code.
func RenderQRBase64(payload string) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// StripDataURL removes a data:image/...;base64, prefix so callers always
// receive bare base64. Providers are inconsistent about including it.
func StripDataURL(image string) string {
	trimmed := strings.TrimSpace(image)
	if idx := strings.Index(trimmed, "base64,"); idx >= 0 && strings.HasPrefix(trimmed, "data:") {
		return trimmed[idx+len("base64,"):]
	}
	return trimmed
}
