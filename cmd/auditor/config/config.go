package config

import (
	"fmt"
	"strings"

	"fx-compliance-auditor/internal/audit"
	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/reporter"
	"fx-compliance-auditor/pkg/errors"
	"fx-compliance-auditor/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Setting keys shared by flags, config files and AUDITOR_ environment variables
const (
	KeyMatchTolerance      = "match-tolerance"
	KeySplitTolerance      = "split-tolerance"
	KeyTopFindings         = "top-findings"
	KeyAttributePrimary    = "attributes.primary"
	KeyAttributeSecondary  = "attributes.secondary"
	KeyAttributeIdentifier = "attributes.identifier"
	KeyOutputFormat        = "output-format"
	KeyLogLevel            = "log-level"
	KeyLogFormat           = "log-format"
)

// Config holds the resolved CLI settings
type Config struct {
	MatchTolerance decimal.Decimal
	SplitTolerance decimal.Decimal
	TopFindings    int
	Attributes     extract.AttributeSpec
	OutputFormat   reporter.OutputFormat
	LogLevel       logger.Level
	LogFormat      logger.Format
}

// SetDefaults registers the default value of every setting
func SetDefaults(v *viper.Viper) {
	attrs := extract.DefaultAttributeSpec()

	v.SetDefault(KeyMatchTolerance, "0.05")
	v.SetDefault(KeySplitTolerance, "0.01")
	v.SetDefault(KeyTopFindings, 10)
	v.SetDefault(KeyAttributePrimary, attrs.Primary)
	v.SetDefault(KeyAttributeSecondary, attrs.Secondary)
	v.SetDefault(KeyAttributeIdentifier, strings.Join(attrs.Identifiers, ","))
	v.SetDefault(KeyOutputFormat, string(reporter.FormatConsole))
	v.SetDefault(KeyLogLevel, string(logger.WarnLevel))
	v.SetDefault(KeyLogFormat, string(logger.TextFormat))
}

// Load resolves the settings from v and validates them
func Load(v *viper.Viper) (*Config, error) {
	matchTolerance, err := decimal.NewFromString(v.GetString(KeyMatchTolerance))
	if err != nil {
		return nil, settingError(KeyMatchTolerance, v.GetString(KeyMatchTolerance), err)
	}
	splitTolerance, err := decimal.NewFromString(v.GetString(KeySplitTolerance))
	if err != nil {
		return nil, settingError(KeySplitTolerance, v.GetString(KeySplitTolerance), err)
	}

	config := &Config{
		MatchTolerance: matchTolerance,
		SplitTolerance: splitTolerance,
		TopFindings:    v.GetInt(KeyTopFindings),
		Attributes: extract.AttributeSpec{
			Primary:     strings.TrimSpace(v.GetString(KeyAttributePrimary)),
			Secondary:   strings.TrimSpace(v.GetString(KeyAttributeSecondary)),
			Identifiers: splitList(v.GetStringSlice(KeyAttributeIdentifier)),
		},
		OutputFormat: reporter.OutputFormat(strings.ToLower(v.GetString(KeyOutputFormat))),
		LogLevel:     logger.Level(strings.ToLower(v.GetString(KeyLogLevel))),
		LogFormat:    logger.Format(strings.ToLower(v.GetString(KeyLogFormat))),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate returns a configuration error for the first invalid setting
func (c *Config) Validate() error {
	if c.MatchTolerance.IsNegative() {
		return settingError(KeyMatchTolerance, c.MatchTolerance, fmt.Errorf("tolerance cannot be negative"))
	}
	if c.SplitTolerance.IsNegative() {
		return settingError(KeySplitTolerance, c.SplitTolerance, fmt.Errorf("tolerance cannot be negative"))
	}
	if c.TopFindings <= 0 {
		return settingError(KeyTopFindings, c.TopFindings, fmt.Errorf("must be positive"))
	}
	if err := c.Attributes.Validate(); err != nil {
		return settingError("attributes", c.Attributes, err)
	}
	if !c.OutputFormat.IsValid() {
		return settingError(KeyOutputFormat, c.OutputFormat, fmt.Errorf("valid formats: console, json, csv"))
	}

	logConfig := c.LoggerConfig()
	if err := logConfig.Validate(); err != nil {
		return settingError("logging", c.LogLevel, err)
	}
	return nil
}

// ToAuditConfig converts the settings into a workspace configuration
func (c *Config) ToAuditConfig() *audit.Config {
	config := audit.DefaultConfig()
	config.Matching.Tolerance = c.MatchTolerance
	config.Matching.Attributes = c.Attributes
	config.DuplicateTolerance = c.MatchTolerance
	config.SplitTolerance = c.SplitTolerance
	config.TopFindings = c.TopFindings
	return config
}

// ReportConfig returns the report configuration for the output format
func (c *Config) ReportConfig() *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = c.OutputFormat
	return config
}

// LoggerConfig returns a logger configuration writing to stderr
func (c *Config) LoggerConfig() *logger.Config {
	config := logger.DefaultConfig()
	config.Level = c.LogLevel
	config.Format = c.LogFormat
	config.Output = logger.StderrOutput
	return config
}

func settingError(key string, value interface{}, err error) error {
	return errors.ConfigurationError(errors.CodeInvalidConfig, key, value, err).
		WithSuggestion(fmt.Sprintf("Check the %s flag, config file entry or AUDITOR_ environment variable", key))
}

// splitList accepts both YAML lists and comma-separated strings
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
