package gateway

import (
	"fmt"
	"strings"
)

// BRCode assembles the EMV merchant-presented PIX payload (copia e cola).
// Field layout follows the BCB BR Code manual: each field is id + 2-digit
// length + value, terminated by a CRC-16/CCITT-FALSE over the whole string.
type BRCode struct {
	PixKey       string
	MerchantName string
	MerchantCity string
	AmountCents  int64
	TxID         string
	Description  string
}

// Build renders the payload string, starting with the standard 000201
// prefix and ending with the 6304 CRC field.
func (b BRCode) Build() string {
	var sb strings.Builder

	sb.WriteString(emvField("00", "01"))

	merchant := emvField("00", "br.gov.bcb.pix") + emvField("01", b.PixKey)
	if desc := truncateASCII(b.Description, 40); desc != "" {
		merchant += emvField("02", desc)
	}
	sb.WriteString(emvField("26", merchant))

	sb.WriteString(emvField("52", "0000"))
	sb.WriteString(emvField("53", "986"))
	if b.AmountCents > 0 {
		sb.WriteString(emvField("54", FormatAmount(b.AmountCents)))
	}
	sb.WriteString(emvField("58", "BR"))
	sb.WriteString(emvField("59", merchantDefault(b.MerchantName, "PIX GATEWAY")))
	sb.WriteString(emvField("60", merchantDefault(b.MerchantCity, "SAO PAULO")))

	txid := truncateASCII(b.TxID, 25)
	if txid == "" {
		txid = "***"
	}
	sb.WriteString(emvField("62", emvField("05", txid)))

	payload := sb.String() + "6304"
	return payload + fmt.Sprintf("%04X", crc16(payload))
}

func emvField(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

func merchantDefault(value, fallback string) string {
	out := truncateASCII(value, 25)
	if out == "" {
		return fallback
	}
	return strings.ToUpper(out)
}

// truncateASCII keeps the payload inside the EMV field limits and drops
// characters the BR Code manual does not allow in static payloads.
func truncateASCII(value string, max int) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(value) {
		if r < 0x20 || r > 0x7e {
			continue
		}
		sb.WriteRune(r)
		if sb.Len() >= max {
			break
		}
	}
	return sb.String()
}

// crc16 implements CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func crc16(payload string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(payload); i++ {
		crc ^= uint16(payload[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
