// Package matcher proposes the record line that best corresponds to a bank
// movement.
//
// Matching runs two ranked passes over every loaded record file:
//  1. Perfect pass: the line mentions the movement's absolute amount, one of
//     its numeric attributes is within tolerance of that amount, and the line
//     also mentions the movement date.
//  2. Amount pass: the same amount test without the date requirement.
//
// The first line accepted by a pass wins; lines are visited in file load
// order and then in line order. The textual amount mention is only a
// pre-filter, a line is never accepted without the numeric attribute check.
//
// Results are advisory. An explicit record link on the movement always takes
// precedence over the proposal.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	m, err := matcher.NewMatcher(config)
//	result := m.FindXMLMatch(&movement, catalog)
//	if result != nil && result.MatchType == matcher.MatchPerfect {
//		// ...
//	}
package matcher

import (
	"fmt"

	"fx-compliance-auditor/internal/extract"

	"github.com/shopspring/decimal"
)

// MatchType represents the quality of a proposed record line
type MatchType string

const (
	// MatchPerfect means the line agrees on amount and date
	MatchPerfect MatchType = "perfect"

	// MatchAmount means the line agrees on amount only. These proposals
	// usually require manual review before being linked.
	MatchAmount MatchType = "amount"
)

// String returns the string representation of MatchType
func (mt MatchType) String() string {
	return string(mt)
}

// MatchingConfig holds configuration parameters for record matching.
//
// Use the provided factory functions for common scenarios:
//   - DefaultMatchingConfig(): the 0.05 tolerance used for audits
//   - StrictMatchingConfig(): cent-level agreement only
//   - RelaxedMatchingConfig(): loose tolerance for exploratory matching
type MatchingConfig struct {
	// Tolerance is the absolute amount difference accepted between the
	// movement and a numeric attribute of the line
	Tolerance decimal.Decimal `json:"tolerance"`

	// Attributes names the numeric and identifier attributes of a line
	Attributes extract.AttributeSpec `json:"attributes"`

	// DatePass enables the perfect pass; when false every proposal is an
	// amount match
	DatePass bool `json:"date_pass"`

	// MatchZeroAmounts allows movements with a zero amount to be matched.
	// Off by default since placeholder movements carry a zero amount.
	MatchZeroAmounts bool `json:"match_zero_amounts"`
}

// DefaultMatchingConfig returns a configuration with sensible defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Tolerance:  decimal.RequireFromString("0.05"),
		Attributes: extract.DefaultAttributeSpec(),
		DatePass:   true,
	}
}

// StrictMatchingConfig returns a configuration for strict matching
func StrictMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.Tolerance = decimal.RequireFromString("0.01")
	return config
}

// RelaxedMatchingConfig returns a configuration for relaxed matching
func RelaxedMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.Tolerance = decimal.RequireFromString("0.50")
	return config
}

// maxTolerance bounds the width of an index range scan
var maxTolerance = decimal.NewFromInt(100)

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if mc.Tolerance.IsNegative() {
		return fmt.Errorf("tolerance cannot be negative: %s", mc.Tolerance)
	}

	if mc.Tolerance.GreaterThan(maxTolerance) {
		return fmt.Errorf("tolerance must not exceed %s: %s", maxTolerance, mc.Tolerance)
	}

	if err := mc.Attributes.Validate(); err != nil {
		return fmt.Errorf("invalid attributes: %w", err)
	}

	return nil
}

// Clone creates a deep copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}

	clone := *mc
	clone.Attributes.Identifiers = append([]string(nil), mc.Attributes.Identifiers...)
	return &clone
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Tolerance: %s, Attributes: %s/%s, DatePass: %t}",
		mc.Tolerance, mc.Attributes.Primary, mc.Attributes.Secondary, mc.DatePass)
}
