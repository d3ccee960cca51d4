package cmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fx-compliance-auditor/internal/snapshot"
	"fx-compliance-auditor/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	testSnapshot = "../../../testdata/session.json"
	testRecords  = "../../../testdata/records"
)

// resetFlags restores every flag to its default so commands can run again
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the CLI with args and returns the report written
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "report.out")

	rootCmd.SetArgs(append(args, "--output-file", out))
	err := rootCmd.Execute()
	resetFlags(rootCmd)

	data, _ := os.ReadFile(out)
	return string(data), err
}

// copySnapshot copies the fixture snapshot so commands may save over it
func copySnapshot(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(testSnapshot)
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "audit.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to copy fixture: %v", err)
	}
	return path
}

func readCSV(t *testing.T, data string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV output: %v\n%s", err, data)
	}
	return rows
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)

	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resetFlags(rootCmd)

	expected := fmt.Sprintf("snapshot version: %d", snapshot.CurrentVersion)
	if !strings.Contains(buf.String(), expected) {
		t.Errorf("expected version output to contain %q, got %q", expected, buf.String())
	}
}

func TestDashboardCommand(t *testing.T) {
	out, err := executeCommand(t, "dashboard", "--snapshot", testSnapshot, "--records", testRecords)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"COMPLIANCE DASHBOARD", "Split Mismatches:   1", "=== RECORD REVIEW ===", "Approved:           1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected dashboard to contain %q\n%s", want, out)
		}
	}
}

func TestDashboardCommand_JSON(t *testing.T) {
	out, err := executeCommand(t, "dashboard", "--snapshot", testSnapshot, "--output-format", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report struct {
		Stats struct {
			TotalMovements int `json:"totalMovements"`
			TotalFindings  int `json:"totalFindings"`
			Flagged        []struct {
				OperationID string `json:"operationId"`
				Severity    string `json:"severity"`
			} `json:"flagged"`
		} `json:"stats"`
		Records json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}

	if report.Stats.TotalMovements != 3 {
		t.Errorf("expected 3 movements, got %d", report.Stats.TotalMovements)
	}
	if report.Stats.TotalFindings != 2 {
		t.Errorf("expected 2 findings, got %d", report.Stats.TotalFindings)
	}
	if len(report.Stats.Flagged) != 2 || report.Stats.Flagged[0].Severity != "critical" || report.Stats.Flagged[1].Severity != "alert" {
		t.Errorf("unexpected flagged operations %+v", report.Stats.Flagged)
	}
	if report.Records != nil {
		t.Errorf("expected no record stats without a records directory, got %s", report.Records)
	}
}

func TestMatchCommand(t *testing.T) {
	out, err := executeCommand(t, "match", "--snapshot", testSnapshot, "--records", testRecords, "-f", "csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := readCSV(t, out)
	if len(rows) != 4 {
		t.Fatalf("expected header and 3 movements, got %d rows", len(rows))
	}

	expected := map[string][3]string{
		"m-001": {"perfect", "marzo.xml", "L00003"},
		"m-002": {"perfect", "marzo.xml", "L00004"},
		"m-003": {"none", "", ""},
	}
	for _, row := range rows[1:] {
		want, ok := expected[row[0]]
		if !ok {
			t.Errorf("unexpected movement %s", row[0])
			continue
		}
		if row[4] != want[0] || row[5] != want[1] || row[6] != want[2] {
			t.Errorf("movement %s: expected %v, got %v", row[0], want, row[4:7])
		}
	}
}

func TestMatchCommand_Accept(t *testing.T) {
	path := copySnapshot(t)

	if _, err := executeCommand(t, "match", "--snapshot", path, "--records", testRecords, "--accept"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, err := snapshot.Load(path)
	if err != nil {
		t.Fatalf("failed to reload snapshot: %v", err)
	}
	linked := 0
	for _, m := range doc.Movements {
		linked += len(m.LinkedXMLs)
	}
	if linked != 2 {
		t.Errorf("expected 2 accepted links in the saved snapshot, got %d", linked)
	}

	out, err := executeCommand(t, "match", "--snapshot", path, "--records", testRecords, "-f", "csv")
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range readCSV(t, out)[1:] {
		if row[0] == "m-001" && row[4] != "explicit" {
			t.Errorf("expected accepted match to be explicit, got %v", row)
		}
	}
}

func TestDuplicatesCommand(t *testing.T) {
	out, err := executeCommand(t, "duplicates", "--records", testRecords, "--output-format", "csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := readCSV(t, out)
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 locations, got %d rows", len(rows))
	}
	for _, row := range rows[1:] {
		if row[0] != "DC-1001" || row[5] != "yes" {
			t.Errorf("expected an inconsistent DC-1001 location, got %v", row)
		}
	}
}

func TestDuplicatesCommand_BadRecords(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.xml", "b.xml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("\xff\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	_, err := executeCommand(t, "duplicates", "--records", dir)
	summary, ok := err.(*errors.ErrorSummary)
	if !ok {
		t.Fatalf("expected an error summary, got %T: %v", err, err)
	}
	if summary.Total != 2 {
		t.Errorf("expected 2 failed files, got %d", summary.Total)
	}

	var buf bytes.Buffer
	h := NewCLIErrorHandler()
	h.out = &buf
	if code := h.HandleError(err); code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
	if !strings.Contains(buf.String(), "encoding error in file") {
		t.Errorf("expected each failed file to be listed, got %q", buf.String())
	}
}

func TestLinksCommand(t *testing.T) {
	path := copySnapshot(t)

	out, err := executeCommand(t, "links", "--snapshot", path, "--movement", "m-002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "[x] dec-1000.pdf") || !strings.Contains(out, "(under)") {
		t.Errorf("expected the current selection to be under balance\n%s", out)
	}

	out, err = executeCommand(t, "links", "--snapshot", path, "--movement", "m-002", "--search", "4580")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "dec-4000.pdf") || strings.Contains(out, "dec-500.pdf") {
		t.Errorf("expected search to keep only dec-4000.pdf\n%s", out)
	}

	out, err = executeCommand(t, "links", "--snapshot", path, "--movement", "m-002", "--select", "dec-1000.pdf,dec-500.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "(exact)") {
		t.Errorf("expected an exact balance after saving\n%s", out)
	}

	doc, err := snapshot.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range doc.Movements {
		if m.ID == "m-002" && len(m.LinkedDeclarations) != 2 {
			t.Errorf("expected 2 saved declaration links, got %+v", m.LinkedDeclarations)
		}
	}
}

func TestLinksCommand_UnknownMovement(t *testing.T) {
	_, err := executeCommand(t, "links", "--snapshot", testSnapshot, "--movement", "m-999")
	if !errors.HasCode(err, errors.CodeMovementNotFound) {
		t.Errorf("expected movement not found, got %v", err)
	}
}

func TestCommands_MissingInputs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{"missing snapshot", []string{"dashboard", "--snapshot", "missing.json"}, errors.CodeFileNotFound},
		{"records is a file", []string{"duplicates", "--records", testSnapshot}, errors.CodeDirectoryError},
		{"invalid tolerance", []string{"duplicates", "--records", testRecords, "--match-tolerance", "x"}, errors.CodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.args...)
			if !errors.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}

	if _, err := executeCommand(t, "match", "--snapshot", testSnapshot); err == nil {
		t.Error("expected an error for a missing required flag")
	}
}

func TestCLIErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		contains     string
	}{
		{"nil", nil, 0, ""},
		{"file", errors.FileError(errors.CodeFileNotFound, "audit.json", os.ErrNotExist), 2, "File error help"},
		{"configuration", errors.ConfigurationError(errors.CodeInvalidConfig, "top-findings", 0, fmt.Errorf("must be positive")), 4, "AUDITOR_"},
		{"not found", errors.NotFoundError(errors.CodeMovementNotFound, "m-9"), 5, "Not found help"},
		{"summary", errors.NewErrorSummary([]*errors.AuditError{
			errors.FileError(errors.CodeFileNotFound, "a.xml", nil),
			errors.ParseError(errors.CodeEncodingError, "b.xml", nil),
		}), 3, "Parse error help"},
		{"os not exist", os.ErrNotExist, 2, "File not found"},
		{"generic", fmt.Errorf(`required flag(s) "snapshot" not set`), 1, "auditor --help"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := NewCLIErrorHandler()
			h.out = &buf

			if code := h.HandleError(tt.err); code != tt.expectedCode {
				t.Errorf("expected exit code %d, got %d", tt.expectedCode, code)
			}
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("expected output to contain %q, got %q", tt.contains, buf.String())
			}
		})
	}
}

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "audit.json")
	if err := os.WriteFile(validFile, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name        string
		filePath    string
		expectError bool
	}{
		{"valid file", validFile, false},
		{"empty path", "", true},
		{"non-existent file", filepath.Join(tmpDir, "missing.json"), true},
		{"directory instead of file", tmpDir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "snapshot file")
			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	if err := validateDirExists(tmpDir, "records directory"); err != nil {
		t.Errorf("unexpected error for a directory: %v", err)
	}
	if err := validateDirExists(validFile, "records directory"); err == nil {
		t.Error("expected an error for a file")
	}
}
