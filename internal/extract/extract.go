// Package extract pulls numeric attributes and business identifiers out of
// semi-structured record lines and formats currency values.
//
// Record lines are never parsed as documents. An attribute is found either
// as name="value" or as <name>value</name> anywhere in the line, so the same
// lookup works for XML elements, attributes and loosely formatted exports.
package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AttributeSpec names the attributes looked up in each record line
type AttributeSpec struct {
	// Primary is the first numeric attribute, the operation value in USD
	Primary string `json:"primary" mapstructure:"primary"`
	// Secondary is the second numeric attribute, the value in USD of the instrument
	Secondary string `json:"secondary" mapstructure:"secondary"`
	// Identifiers are tried in order; the first non-empty value wins
	Identifiers []string `json:"identifiers" mapstructure:"identifier"`
}

// DefaultAttributeSpec returns the attribute names used by exchange-operation exports
func DefaultAttributeSpec() AttributeSpec {
	return AttributeSpec{
		Primary:     "vusd",
		Secondary:   "vusdi",
		Identifiers: []string{"ndc", "numeroDeclaracion", "numero"},
	}
}

// Validate checks that every attribute name is usable
func (s AttributeSpec) Validate() error {
	if strings.TrimSpace(s.Primary) == "" {
		return fmt.Errorf("primary attribute name cannot be empty")
	}
	if strings.TrimSpace(s.Secondary) == "" {
		return fmt.Errorf("secondary attribute name cannot be empty")
	}
	if strings.EqualFold(s.Primary, s.Secondary) {
		return fmt.Errorf("primary and secondary attributes must differ")
	}
	if len(s.Identifiers) == 0 {
		return fmt.Errorf("at least one identifier attribute is required")
	}
	for _, id := range s.Identifiers {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("identifier attribute names cannot be empty")
		}
	}
	return nil
}

// Attributes are the two numeric values found in a line. A value is only
// Valid when the attribute is present and parses as a number.
type Attributes struct {
	Primary   decimal.NullDecimal
	Secondary decimal.NullDecimal
}

// Within reports whether either attribute differs from target by less
// than tolerance
func (a Attributes) Within(target, tolerance decimal.Decimal) bool {
	for _, v := range []decimal.NullDecimal{a.Primary, a.Secondary} {
		if v.Valid && v.Decimal.Sub(target).Abs().LessThan(tolerance) {
			return true
		}
	}
	return false
}

// Extractor looks up attributes in record lines. It is safe for concurrent use.
type Extractor struct {
	spec        AttributeSpec
	primary     *regexp.Regexp
	secondary   *regexp.Regexp
	identifiers []*regexp.Regexp
}

// NewExtractor compiles the lookups for the given attribute names
func NewExtractor(spec AttributeSpec) (*Extractor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	e := &Extractor{
		spec:      spec,
		primary:   attributePattern(spec.Primary),
		secondary: attributePattern(spec.Secondary),
	}
	for _, id := range spec.Identifiers {
		e.identifiers = append(e.identifiers, attributePattern(id))
	}
	return e, nil
}

// MustNewExtractor is like NewExtractor but panics on an invalid spec
func MustNewExtractor(spec AttributeSpec) *Extractor {
	e, err := NewExtractor(spec)
	if err != nil {
		panic(err)
	}
	return e
}

// Spec returns the attribute names the extractor was built with
func (e *Extractor) Spec() AttributeSpec {
	return e.spec
}

func attributePattern(name string) *regexp.Regexp {
	n := regexp.QuoteMeta(strings.TrimSpace(name))
	return regexp.MustCompile(`(?i)(?:\b` + n + `\s*=\s*["']([^"']*)["']|<` + n + `>\s*([^<]*?)\s*</` + n + `>)`)
}

func lookup(re *regexp.Regexp, content string) (string, bool) {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	for _, g := range m[1:] {
		if v := strings.TrimSpace(g); v != "" {
			return v, true
		}
	}
	return "", false
}

func numeric(re *regexp.Regexp, content string) decimal.NullDecimal {
	raw, ok := lookup(re, content)
	if !ok {
		return decimal.NullDecimal{}
	}
	d, err := ParseAmount(raw)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Attributes extracts the primary and secondary numeric attributes
func (e *Extractor) Attributes(content string) Attributes {
	return Attributes{
		Primary:   numeric(e.primary, content),
		Secondary: numeric(e.secondary, content),
	}
}

// Identifier extracts the business identifier, upper-cased, or "" if none
func (e *Extractor) Identifier(content string) string {
	for _, re := range e.identifiers {
		if v, ok := lookup(re, content); ok {
			return strings.ToUpper(v)
		}
	}
	return ""
}

// ParseAmount parses a decimal amount, tolerating currency symbols,
// thousand separators and surrounding whitespace.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimPrefix(strings.ToUpper(s), "USD")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}
	return d, nil
}

// AmountOrZero parses s and falls back to zero for anything non-numeric
func AmountOrZero(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// CoerceAmount converts an untyped extracted value into a decimal. The
// boolean is false when the value was missing or not a finite number, in
// which case the returned amount is zero.
func CoerceAmount(v interface{}) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return x, true
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case uint64:
		return decimal.NewFromUint64(x), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := ParseAmount(x)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// FiniteOrZero converts a float into a decimal, mapping NaN and infinities to zero
func FiniteOrZero(f float64) decimal.Decimal {
	d, _ := fromFloat(f)
	return d
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// SearchForms returns the textual forms in which an amount is expected to
// appear in a record line: the shortest plain form and the two-decimal form
// of its absolute value.
func SearchForms(amount decimal.Decimal) []string {
	abs := amount.Abs()
	plain := abs.String()
	fixed := abs.StringFixed(2)
	if plain == fixed {
		return []string{plain}
	}
	return []string{plain, fixed}
}

// ContainsAny reports whether content contains any of the given forms
func ContainsAny(content string, forms []string) bool {
	for _, f := range forms {
		if f != "" && strings.Contains(content, f) {
			return true
		}
	}
	return false
}

// DefaultLocale is the locale used for currency display
var DefaultLocale = language.MustParse("es-CO")

// FormatCurrency renders an amount with two decimals and the grouping
// conventions of the given locale.
func FormatCurrency(amount decimal.Decimal, locale language.Tag) string {
	p := message.NewPrinter(locale)
	return p.Sprint(number.Decimal(amount.Round(2).InexactFloat64(), number.Scale(2)))
}

// Fold lower-cases s and strips diacritics so that free-text labels such as
// "Extemporánea" and "EXTEMPORANEA" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Lower(language.Und).String(strings.TrimSpace(out))
}

// ContainsFold reports whether needle occurs in haystack after folding both
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}
