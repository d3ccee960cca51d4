// Package reporter renders the derived views of an audit for the terminal,
// for programs and for spreadsheets.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: the view itself, for programmatic consumption
//   - CSV: one row per item, for spreadsheet applications
//
// Report types available:
//   - Dashboard: compliance statistics and the flagged operations table
//   - Matches: record evidence proposed for each movement
//   - Duplicates: identifiers repeated across record lines
//   - Candidates: the declaration picker of one movement with its balance
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(reporter.DefaultReportConfig())
//	err = generator.GenerateReport(&reporter.DashboardReport{Stats: ws.Dashboard()}, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"fx-compliance-auditor/internal/extract"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	// Output format
	Format OutputFormat `json:"format"`

	// Locale formats currency amounts in console output
	Locale language.Tag `json:"locale"`

	// MaxItems bounds console lists; longer lists end with a "more" line
	MaxItems int `json:"max_items"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:       FormatConsole,
		Locale:       extract.DefaultLocale,
		MaxItems:     20,
		CSVDelimiter: ',',
		CSVHeaders:   true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.MaxItems <= 0 {
		return fmt.Errorf("max items must be positive, got %d", c.MaxItems)
	}

	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}

	return nil
}

// Report is a view that can be rendered in every output format. JSON
// output encodes the report value itself.
type Report interface {
	// Title names the report in console headers and logs
	Title() string
	writeConsole(rg *ReportGenerator, w io.Writer) error
	csvHeaders() []string
	csvRecords() [][]string
}

// ReportGenerator generates reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	// the configuration is fixed once validated
	fixed := *config
	return &ReportGenerator{
		config: &fixed,
	}, nil
}

// GenerateReport renders a report and writes it to the provided writer
func (rg *ReportGenerator) GenerateReport(report Report, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return report.writeConsole(rg, writer)
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	case FormatCSV:
		return rg.generateCSVReport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(report Report, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(report)
}

// generateCSVReport generates one CSV row per report item
func (rg *ReportGenerator) generateCSVReport(report Report, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(report.csvHeaders()); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, record := range report.csvRecords() {
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write %s record: %w", report.Title(), err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// Helper methods

func (rg *ReportGenerator) money(amount decimal.Decimal) string {
	return "USD " + extract.FormatCurrency(amount, rg.config.Locale)
}

func (rg *ReportGenerator) header(w io.Writer, title string) {
	fmt.Fprintf(w, "%s\n%s\n\n", strings.ToUpper(title), strings.Repeat("=", len(title)))
}

func (rg *ReportGenerator) section(w io.Writer, name string) {
	fmt.Fprintf(w, "=== %s ===\n", strings.ToUpper(name))
}

// more reports whether item i is past the console limit, printing the
// remainder line when it first is
func (rg *ReportGenerator) more(w io.Writer, i, total int) bool {
	if i < rg.config.MaxItems {
		return false
	}
	if i == rg.config.MaxItems {
		fmt.Fprintf(w, "  ... and %d more\n", total-rg.config.MaxItems)
	}
	return true
}

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
