// Package content defines the financial content data model and the
// content store used for candidate retrieval.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/c360/marketsearch/errors"
)

// Type classifies a piece of content.
type Type string

const (
	// TypeNews is a news article or headline.
	TypeNews Type = "news"

	// TypeAnalysis is an analyst note or commentary.
	TypeAnalysis Type = "analysis"

	// TypePriceDerived is text derived from price or volume activity.
	TypePriceDerived Type = "price_derived"
)

// Valid reports whether t is a known content type.
func (t Type) Valid() bool {
	switch t {
	case TypeNews, TypeAnalysis, TypePriceDerived:
		return true
	}
	return false
}

// MetaKind identifies the concrete type held by a MetaValue.
type MetaKind uint8

const (
	KindString MetaKind = iota
	KindNumber
	KindBool
)

// MetaValue is a closed scalar variant (string, float64 or bool) used
// for content metadata. The zero value is the empty string.
type MetaValue struct {
	kind MetaKind
	str  string
	num  float64
	b    bool
}

// String wraps a string metadata value.
func String(s string) MetaValue { return MetaValue{kind: KindString, str: s} }

// Number wraps a numeric metadata value.
func Number(f float64) MetaValue { return MetaValue{kind: KindNumber, num: f} }

// Bool wraps a boolean metadata value.
func Bool(b bool) MetaValue { return MetaValue{kind: KindBool, b: b} }

// Kind returns the variant tag.
func (v MetaValue) Kind() MetaKind { return v.kind }

// StringValue returns the string payload (empty unless KindString).
func (v MetaValue) StringValue() string { return v.str }

// NumberValue returns the numeric payload (zero unless KindNumber).
func (v MetaValue) NumberValue() float64 { return v.num }

// BoolValue returns the boolean payload (false unless KindBool).
func (v MetaValue) BoolValue() bool { return v.b }

// MarshalJSON encodes the underlying scalar directly.
func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON decodes a JSON scalar into the matching variant.
// Non-scalar values are rejected.
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch value := raw.(type) {
	case string:
		*v = String(value)
	case float64:
		*v = Number(value)
	case bool:
		*v = Bool(value)
	default:
		return fmt.Errorf("metadata values must be string, number or bool, got %T", raw)
	}
	return nil
}

// Metadata is a flat map of scalar annotations attached to a record.
type Metadata map[string]MetaValue

// Record is a single piece of ingested content.
type Record struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol,omitempty"`
	Type        Type      `json:"type"`
	Text        string    `json:"text"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks that the record carries the minimum required fields.
func (r Record) Validate() error {
	invalid := func(msg string) error {
		return errors.WrapInvalid(errors.ErrInvalidData, "content", "Validate", msg)
	}
	if strings.TrimSpace(r.Text) == "" {
		return invalid("record text must not be empty")
	}
	if !r.Type.Valid() {
		return invalid(fmt.Sprintf("unknown content type: %q", r.Type))
	}
	return nil
}

// Fingerprint returns the content-addressed identity of a text: the
// hex SHA-256 of the case-folded, whitespace-collapsed text. Records
// with the same normalized text share a fingerprint and therefore a
// single embedding vector.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// NormalizeText case-folds and collapses runs of whitespace to a
// single space, trimming the ends.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inSpace := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Snippet returns a display excerpt of at most n runes, appending an
// ellipsis when the text was truncated.
func Snippet(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= n {
		return string(runes)
	}
	return strings.TrimRight(string(runes[:n]), " ") + "..."
}
