package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fx-compliance-auditor/internal/compliance"
	"fx-compliance-auditor/internal/duplicates"
	"fx-compliance-auditor/internal/linker"
	"fx-compliance-auditor/internal/matcher"
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/internal/records"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

func createTestGenerator(t *testing.T, format OutputFormat) *ReportGenerator {
	t.Helper()
	config := DefaultReportConfig()
	config.Format = format
	config.Locale = language.English
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}
	return generator
}

func createTestDashboard() *DashboardReport {
	movements := []models.Movement{{
		ID:          "m1",
		Date:        "2024-03-01",
		Description: "Giro al exterior",
		Amount:      decimal.RequireFromString("1500.75"),
		Operations: []models.Operation{{
			ID:              "o1",
			Amount:          decimal.RequireFromString("1500.75"),
			IncludeInReview: true,
			ReviewData: models.ReviewData{
				Banrep: models.AxisReview{Status: "Extemporánea"},
				DIAN:   models.AxisReview{Status: "SIN LEGALIZAR"},
			},
		}},
	}}
	stats := compliance.NewAggregator().Aggregate(movements, []models.DeclarationReview{
		{FileName: "a.pdf", Status: models.ReviewCorrectionNeeded},
	})
	return &DashboardReport{
		Stats:   stats,
		Records: &records.Stats{Files: 1, Total: 4, Reviewed: 1, Pending: 3, Percent: 25},
	}
}

func createTestMatches() *MatchReport {
	return &MatchReport{
		Movements: []models.Movement{
			{ID: "m1", Date: "2024-03-01", Description: "Giro", Amount: decimal.RequireFromString("250.75")},
			{ID: "m2", Date: "2024-03-02", Description: "Reintegro", Amount: decimal.RequireFromString("99")},
			{ID: "m3", Date: "2024-03-03", Description: "Pago", Amount: decimal.RequireFromString("10")},
		},
		Proposals: []matcher.Proposal{
			{MovementID: "m1", Auto: &matcher.MatchResult{FileID: "f", FileName: "marzo.xml", LineID: "L00001", Content: `<op vusd="250.75"/>`, MatchType: matcher.MatchPerfect}},
			{MovementID: "m2"},
			{MovementID: "m3", Explicit: []models.Link{{Type: models.LinkXML, TargetFileName: "abril.xml", TargetLineID: "L00007"}}},
		},
		Summary: matcher.MatchSummary{Movements: 3, Explicit: 1, Perfect: 1, Unmatched: 1, UnmatchedAmount: decimal.RequireFromString("99")},
	}
}

func createTestDuplicates() *DuplicateReport {
	return &DuplicateReport{
		Groups: []models.DuplicateIdentifierGroup{{
			Identifier: "NDC123",
			Locations: []models.IdentifierLocation{
				{FileID: "a", FileName: "a.xml", LineID: "L00001", Primary: decimal.NewNullDecimal(decimal.RequireFromString("100"))},
				{FileID: "b", FileName: "b.xml", LineID: "L00003"},
			},
			TotalPrimary:   decimal.RequireFromString("100"),
			TotalSecondary: decimal.Zero,
			Inconsistent:   true,
		}},
		Summary: duplicates.Summary{Groups: 1, Locations: 2, Inconsistent: 1, TotalPrimary: decimal.RequireFromString("100"), TotalSecondary: decimal.Zero},
	}
}

func createTestCandidates() *CandidateReport {
	meta := models.ProcessedDeclaration{FileName: "dec-1000.pdf", Number: "N-77", Amount: decimal.RequireFromString("1000"), Numeral: "1510"}
	return &CandidateReport{
		Movement: models.Movement{ID: "m1", Description: "Giro", Amount: decimal.RequireFromString("1500")},
		Balance: linker.Balance{
			Target:    decimal.RequireFromString("1500"),
			Selected:  decimal.RequireFromString("1000"),
			Remaining: decimal.RequireFromString("500"),
			State:     linker.BalanceUnder,
		},
		Candidates: []linker.Candidate{
			{File: models.DeclarationFile{ID: "d1", Name: "dec-1000.pdf"}, Meta: &meta, Selected: true},
			{File: models.DeclarationFile{ID: "d2", Name: "anexo.pdf"}, Conflict: "Giro B"},
		},
	}
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{name: "default config", config: nil},
		{name: "valid config", config: DefaultReportConfig()},
		{name: "invalid format", config: &ReportConfig{Format: "invalid", MaxItems: 10}, expectError: true},
		{name: "no items", config: &ReportConfig{Format: FormatConsole}, expectError: true},
		{name: "bad delimiter", config: &ReportConfig{Format: FormatCSV, MaxItems: 10, CSVDelimiter: '"'}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if generator == nil {
				t.Errorf("expected generator but got nil")
			}
		})
	}
}

func TestNewReportGenerator_ConfigFixed(t *testing.T) {
	config := DefaultReportConfig()
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatal(err)
	}
	config.Format = "xml"
	config.MaxItems = 0

	var buf bytes.Buffer
	if err := generator.GenerateReport(createTestDuplicates(), &buf); err != nil {
		t.Fatalf("expected the validated configuration to be kept, got %v", err)
	}
	if !strings.Contains(buf.String(), "DUPLICATE IDENTIFIERS") {
		t.Errorf("expected console output, got\n%s", buf.String())
	}
}

func TestOutputFormatValidation(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{FormatConsole, true},
		{FormatJSON, true},
		{FormatCSV, true},
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.format.IsValid(); got != tt.valid {
			t.Errorf("format %q: expected valid=%v, got %v", tt.format, tt.valid, got)
		}
	}
}

func TestDashboard_Console(t *testing.T) {
	var buf bytes.Buffer
	if err := createTestGenerator(t, FormatConsole).GenerateReport(createTestDashboard(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"COMPLIANCE DASHBOARD",
		"Total Audited:      USD 1,500.75",
		"Corrections Needed: 1",
		"=== BANREP ===",
		"late",
		"Reviewed: 1 of 4 lines (25%)",
		"[CRITICAL] 2024-03-01 Giro al exterior",
		"DIAN: SIN LEGALIZAR | BanRep: Extemporánea",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected console output to contain %q\n%s", want, out)
		}
	}
}

func TestDashboard_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := createTestGenerator(t, FormatJSON).GenerateReport(createTestDashboard(), &buf); err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Stats struct {
			TotalFindings int `json:"totalFindings"`
			Axes          map[string]struct {
				ByStatus map[string]int `json:"byStatus"`
			} `json:"axes"`
		} `json:"stats"`
		Records *records.Stats `json:"records"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Stats.TotalFindings != 1 {
		t.Errorf("expected 1 finding, got %d", decoded.Stats.TotalFindings)
	}
	if decoded.Stats.Axes["dian"].ByStatus["not_filed"] != 1 {
		t.Errorf("expected status names as JSON keys, got %+v", decoded.Stats.Axes)
	}
	if decoded.Records == nil || decoded.Records.Percent != 25 {
		t.Errorf("unexpected records %+v", decoded.Records)
	}
}

func TestDashboard_CSV(t *testing.T) {
	var buf bytes.Buffer
	if err := createTestGenerator(t, FormatCSV).GenerateReport(createTestDashboard(), &buf); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if rows[0][0] != "Section" {
		t.Errorf("expected header row, got %v", rows[0])
	}

	found := false
	for _, row := range rows {
		if row[0] == "flagged:critical" && row[1] == "m1/o1" && row[2] == "1500.75" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a flagged row for m1/o1, got %v", rows)
	}
}

func TestMatches(t *testing.T) {
	var buf bytes.Buffer
	if err := createTestGenerator(t, FormatConsole).GenerateReport(createTestMatches(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Perfect Matches:  1 (33.3%)", "perfect: marzo.xml L00001", "no record evidence", "explicit: abril.xml L00007"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected console output to contain %q\n%s", want, out)
		}
	}

	buf.Reset()
	if err := createTestGenerator(t, FormatCSV).GenerateReport(createTestMatches(), &buf); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header and 3 rows, got %d", len(rows))
	}
	if rows[1][4] != "perfect" || rows[2][4] != "none" || rows[3][4] != "explicit" {
		t.Errorf("unexpected evidence column %v", rows)
	}
	if rows[1][7] != `<op vusd="250.75"/>` {
		t.Errorf("expected line content to survive CSV quoting, got %q", rows[1][7])
	}
}

func TestDuplicates(t *testing.T) {
	var buf bytes.Buffer
	if err := createTestGenerator(t, FormatConsole).GenerateReport(createTestDuplicates(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "NDC123: 2 locations in a.xml, b.xml [INCONSISTENT]") {
		t.Errorf("unexpected console output\n%s", out)
	}
	if !strings.Contains(out, "b.xml L00003 primary=- secondary=-") {
		t.Errorf("expected missing attributes as dashes\n%s", out)
	}

	buf.Reset()
	if err := createTestGenerator(t, FormatCSV).GenerateReport(createTestDuplicates(), &buf); err != nil {
		t.Fatal(err)
	}
	rows, _ := csv.NewReader(&buf).ReadAll()
	if len(rows) != 3 || rows[1][3] != "100" || rows[2][3] != "" || rows[1][5] != "yes" {
		t.Errorf("unexpected CSV rows %v", rows)
	}
}

func TestCandidates(t *testing.T) {
	var buf bytes.Buffer
	if err := createTestGenerator(t, FormatConsole).GenerateReport(createTestCandidates(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Remaining: USD 500.00 (under)", "[x] dec-1000.pdf | N-77", "[ ] anexo.pdf", "already linked to: Giro B"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected console output to contain %q\n%s", want, out)
		}
	}
}

func TestConsole_MaxItems(t *testing.T) {
	report := &DuplicateReport{}
	for i := 0; i < 5; i++ {
		report.Groups = append(report.Groups, models.DuplicateIdentifierGroup{Identifier: string(rune('A' + i))})
	}

	config := DefaultReportConfig()
	config.MaxItems = 2
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(report, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "... and 3 more") {
		t.Errorf("expected a truncation line\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "C: ") {
		t.Error("expected items past the limit to be omitted")
	}
}

func TestSafeReportGenerator(t *testing.T) {
	generator, err := NewSafeReportGenerator(nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := generator.GenerateReportSafely(nil, &bytes.Buffer{}); err == nil {
		t.Error("expected an error for a nil report")
	}
	if err := generator.GenerateReportSafely(createTestDuplicates(), nil); err == nil {
		t.Error("expected an error for a nil writer")
	}

	path := filepath.Join(t.TempDir(), "duplicates.txt")
	if err := generator.WriteToFile(createTestDuplicates(), path); err != nil {
		t.Fatalf("WriteToFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "DUPLICATE IDENTIFIERS") {
		t.Errorf("unexpected file contents\n%s", data)
	}

	if err := generator.WriteToFile(createTestDuplicates(), filepath.Join(t.TempDir(), "missing", "out.txt")); err == nil {
		t.Error("expected an error for an unwritable path")
	}

	if _, err := NewSafeReportGenerator(&ReportConfig{Format: "xml"}, nil); err == nil {
		t.Error("expected a configuration error")
	}
}
