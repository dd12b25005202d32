package gateway

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// MaxAmountCents is the default charge ceiling (R$ 100.000,00).
const MaxAmountCents = 100000 * 100

const maxNameLength = 200

var (
	htmlTagRe       = regexp.MustCompile(`<[^>]*>`)
	angleBracketsRe = regexp.MustCompile(`[<>]`)
	jsSchemeRe      = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerRe  = regexp.MustCompile(`(?i)\bon\w+\s*=`)
	nonDigitsRe     = regexp.MustCompile(`\D`)
)

// RawCharge is the unvalidated wire shape of a charge creation request.
// Amount accepts both JSON numbers and numeric strings.
type RawCharge struct {
	Amount           json.Number `json:"amount"`
	CustomerName     string      `json:"customerName"`
	CustomerDocument string      `json:"customerDocument"`
	CustomerEmail    string      `json:"customerEmail,omitempty"`
	CustomerPhone    string      `json:"customerPhone,omitempty"`
	ExternalID       string      `json:"externalId,omitempty"`
	Description      string      `json:"description,omitempty"`
	PostbackURL      string      `json:"postbackUrl,omitempty"`
	Items            []Item      `json:"items,omitempty"`

	// Caller-supplied credentials, honoured only where the provider's
	// policy allows it (see Resolver).
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// Sanitizer validates and normalises raw charge requests before any adapter
// sees them. It performs no network I/O.
type Sanitizer struct {
	Validate     *validator.Validate
	CeilingCents int64
	Logger       zerolog.Logger
	Now          func() time.Time
}

// NewSanitizer builds a sanitizer with the default ceiling.
func NewSanitizer(logger zerolog.Logger) *Sanitizer {
	return &Sanitizer{
		Validate:     validator.New(),
		CeilingCents: MaxAmountCents,
		Logger:       logger,
		Now:          time.Now,
	}
}

// Sanitize validates the raw request and produces the normalised charge.
// requireItems is set for providers whose wire format carries an item list.
func (s *Sanitizer) Sanitize(raw RawCharge, requireItems bool) (ChargeRequest, error) {
	var zero ChargeRequest

	cents, err := parseAmountCents(raw.Amount)
	if err != nil {
		return zero, ValidationErr("invalid_amount", "amount must be a positive number")
	}
	ceiling := s.CeilingCents
	if ceiling <= 0 {
		ceiling = MaxAmountCents
	}
	if cents <= 0 || cents > ceiling {
		return zero, ValidationErr("invalid_amount", fmt.Sprintf("amount must be between 0.01 and %s", FormatAmount(ceiling)))
	}

	name := SanitizeText(raw.CustomerName)
	if name == "" {
		return zero, ValidationErr("missing_name", "customer name is required")
	}

	document := nonDigitsRe.ReplaceAllString(raw.CustomerDocument, "")
	if document != "" && !ValidCPF(document) {
		// Advisory only: some providers run their own soft validation, so
		// a failing check digit is logged and the charge proceeds.
		s.Logger.Warn().Str("document", Redact(document)).Msg("cpf check digit failed")
	}

	email := strings.TrimSpace(raw.CustomerEmail)
	if email != "" && s.Validate != nil {
		if err := s.Validate.Var(email, "email"); err != nil {
			return zero, ValidationErr("invalid_email", "customer email is malformed")
		}
	}

	if requireItems && len(raw.Items) == 0 {
		return zero, ValidationErr("empty_order", "order has no items")
	}
	items := make([]Item, 0, len(raw.Items))
	for _, item := range raw.Items {
		cleaned := Item{Name: SanitizeText(item.Name), Quantity: item.Quantity, UnitAmount: item.UnitAmount}
		if cleaned.Quantity <= 0 {
			cleaned.Quantity = 1
		}
		if cleaned.Name == "" {
			continue
		}
		items = append(items, cleaned)
	}
	if requireItems && len(items) == 0 {
		return zero, ValidationErr("empty_order", "order has no items")
	}

	externalID := strings.TrimSpace(raw.ExternalID)
	if externalID == "" {
		now := s.Now
		if now == nil {
			now = time.Now
		}
		externalID = fmt.Sprintf("ped-%d", now().UnixMilli())
	}

	return ChargeRequest{
		AmountCents:      cents,
		CustomerName:     name,
		CustomerDocument: document,
		CustomerEmail:    email,
		CustomerPhone:    nonDigitsRe.ReplaceAllString(raw.CustomerPhone, ""),
		ExternalID:       externalID,
		Description:      SanitizeText(raw.Description),
		PostbackURL:      strings.TrimSpace(raw.PostbackURL),
		Items:            items,
	}, nil
}

// SanitizeText strips markup that could enable injection into downstream
// contexts and bounds the length.
func SanitizeText(value string) string {
	out := htmlTagRe.ReplaceAllString(value, "")
	out = angleBracketsRe.ReplaceAllString(out, "")
	out = jsSchemeRe.ReplaceAllString(out, "")
	out = eventHandlerRe.ReplaceAllString(out, "")
	out = strings.TrimSpace(out)
	runes := []rune(out)
	if len(runes) > maxNameLength {
		out = string(runes[:maxNameLength])
	}
	return out
}

func parseAmountCents(value json.Number) (int64, error) {
	trimmed := strings.TrimSpace(value.String())
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := value.Float64()
	if err != nil {
		return 0, err
	}
	cents := int64(f*100 + 0.5)
	if f < 0 {
		cents = int64(f*100 - 0.5)
	}
	return cents, nil
}
