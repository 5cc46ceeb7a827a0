// Package expense defines the canonical representation of a submitted
// expense document and the structured fields extracted from it.
package expense

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput marks extraction output that cannot be evaluated at all,
// e.g. a record with no category. Missing optional fields are handled with
// conservative defaults instead.
var ErrInvalidInput = errors.New("invalid extraction input")

// Category classifies an expense document.
type Category string

const (
	CategoryLodging       Category = "lodging"
	CategoryMeals         Category = "meals"
	CategoryAlcohol       Category = "alcohol"
	CategoryTransport     Category = "transport"
	CategoryEntertainment Category = "entertainment"
	CategorySupplies      Category = "supplies"
	CategoryOther         Category = "other"
)

// ParseCategory normalizes a category label from the extraction agent.
// Unknown labels map to CategoryOther; only a fully absent label is
// distinguished (callers treat "" as invalid input).
func ParseCategory(label string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(label))) {
	case CategoryLodging:
		return CategoryLodging
	case CategoryMeals:
		return CategoryMeals
	case CategoryAlcohol:
		return CategoryAlcohol
	case CategoryTransport, "transportation", "travel":
		return CategoryTransport
	case CategoryEntertainment:
		return CategoryEntertainment
	case CategorySupplies:
		return CategorySupplies
	default:
		return CategoryOther
	}
}

// ExtractedFields is the structured output of the extraction agent for one
// document. It is treated as immutable input; field names follow the agent's
// wire format.
type ExtractedFields struct {
	Vendor           string   `json:"vendor_name"`
	Amount           float64  `json:"total_amount"`
	Currency         string   `json:"currency"`
	Category         string   `json:"expense_category"`
	Date             string   `json:"date"` // YYYY-MM-DD as emitted by the agent
	LanguageDetected string   `json:"language_detected"`
	LegibilityScore  *float64 `json:"legibility_score"` // nil = agent could not score
	RawText          string   `json:"raw_text,omitempty"`
}

// Digest returns a hex-encoded SHA-256 over a canonical encoding of the
// fields, used for tamper and replay detection in the audit trail. The
// encoding fixes field order and formats, so equal inputs always digest
// equally.
func Digest(f ExtractedFields) string {
	legibility := "nil"
	if f.LegibilityScore != nil {
		legibility = fmt.Sprintf("%.6f", *f.LegibilityScore)
	}
	canonical := fmt.Sprintf("vendor=%s|amount=%.2f|currency=%s|category=%s|date=%s|lang=%s|legibility=%s|raw=%s",
		f.Vendor, f.Amount, f.Currency, f.Category, f.Date, f.LanguageDetected, legibility, f.RawText)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
