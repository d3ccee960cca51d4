package audit

import (
	"fmt"

	"fx-compliance-auditor/internal/compliance"
	"fx-compliance-auditor/internal/linker"
	"fx-compliance-auditor/internal/matcher"
	"fx-compliance-auditor/internal/session"

	"github.com/shopspring/decimal"
)

// Config holds the tolerances and limits of a workspace
type Config struct {
	// Matching configures the record auto-matcher, including the attribute
	// names shared with the duplicate grouper
	Matching *matcher.MatchingConfig

	// SplitTolerance is the difference below which a movement's operations
	// reconcile with its amount
	SplitTolerance decimal.Decimal

	// ExactTolerance is the remaining balance below which a declaration
	// selection reconciles exactly
	ExactTolerance decimal.Decimal

	// DuplicateTolerance is the amount spread above which a duplicate
	// group is flagged inconsistent
	DuplicateTolerance decimal.Decimal

	// TopFindings bounds the flagged operations table of the dashboard
	TopFindings int
}

// DefaultConfig returns a default workspace configuration
func DefaultConfig() *Config {
	matching := matcher.DefaultMatchingConfig()
	return &Config{
		Matching:           matching,
		SplitTolerance:     session.DefaultSplitTolerance,
		ExactTolerance:     linker.DefaultExactTolerance,
		DuplicateTolerance: matching.Tolerance,
		TopFindings:        compliance.DefaultTopFindings,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Matching == nil {
		return fmt.Errorf("matching configuration is required")
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching configuration: %w", err)
	}

	if c.SplitTolerance.IsNegative() {
		return fmt.Errorf("split tolerance cannot be negative: %s", c.SplitTolerance)
	}
	if c.ExactTolerance.IsNegative() {
		return fmt.Errorf("exact tolerance cannot be negative: %s", c.ExactTolerance)
	}
	if c.DuplicateTolerance.IsNegative() {
		return fmt.Errorf("duplicate tolerance cannot be negative: %s", c.DuplicateTolerance)
	}

	if c.TopFindings <= 0 {
		return fmt.Errorf("top findings must be positive, got %d", c.TopFindings)
	}

	return nil
}
