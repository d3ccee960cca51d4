package records

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/pkg/errors"

	"github.com/shopspring/decimal"
)

func testFiles() []models.RecordFile {
	return []models.RecordFile{
		{
			ID:   "f1",
			Name: "enero.xml",
			Lines: []models.Line{
				{ID: "L1", Content: `<op ndc="NDC123" vusd="100.00" vusdi="100.00"/>`},
				{ID: "L2", Content: `<op ndc="NDC124" vusd="50.25"/>`},
			},
		},
		{
			ID:   "f2",
			Name: "febrero.xml",
			Lines: []models.Line{
				{ID: "L1", Content: `<op ndc="NDC123" vusdi="99.00"/>`, Status: models.LineStatusReviewed},
			},
		},
	}
}

func TestCatalog_AddAndVersion(t *testing.T) {
	c := NewCatalog(testFiles()...)
	if c.Len() != 2 {
		t.Fatalf("expected 2 files, got %d", c.Len())
	}
	v := c.Version()

	if err := c.Add(models.RecordFile{ID: "f1"}); !errors.HasCode(err, errors.CodeDuplicateFile) {
		t.Errorf("expected duplicate file guard, got %v", err)
	}
	if c.Version() != v {
		t.Error("expected rejected add to leave the version unchanged")
	}

	line, err := c.Line(models.LineRef{FileID: "f1", LineID: "L1"})
	if err != nil {
		t.Fatal(err)
	}
	if line.Status != models.LineStatusPending {
		t.Errorf("expected default pending status, got %q", line.Status)
	}

	if err := c.Remove("f2"); err != nil {
		t.Fatal(err)
	}
	if c.Version() == v || c.Len() != 1 {
		t.Error("expected remove to change the catalog")
	}
}

func TestCatalog_LineEdits(t *testing.T) {
	c := NewCatalog(testFiles()...)
	ref := models.LineRef{FileID: "f1", LineID: "L2"}

	v := c.Version()
	if err := c.UpdateLineContent(ref, `<op ndc="NDC999"/>`); err != nil {
		t.Fatal(err)
	}
	if c.Version() == v {
		t.Error("expected content update to bump version")
	}

	v = c.Version()
	_ = c.UpdateLineContent(ref, `<op ndc="NDC999"/>`)
	if c.Version() != v {
		t.Error("expected identical content to be a no-op")
	}

	if err := c.SetLineComment(ref, "revisar"); err != nil {
		t.Fatal(err)
	}
	status, err := c.ToggleLineStatus(ref)
	if err != nil || status != models.LineStatusReviewed {
		t.Fatalf("expected reviewed, got %q (%v)", status, err)
	}
	status, _ = c.ToggleLineStatus(ref)
	if status != models.LineStatusPending {
		t.Errorf("expected pending after second toggle, got %q", status)
	}

	line, _ := c.Line(ref)
	if line.Content != `<op ndc="NDC999"/>` || line.Comment != "revisar" {
		t.Errorf("unexpected line %+v", line)
	}

	missing := models.LineRef{FileID: "f1", LineID: "L9"}
	if err := c.SetLineComment(missing, "x"); !errors.HasCode(err, errors.CodeRecordNotFound) {
		t.Errorf("expected record not found, got %v", err)
	}
}

func TestCatalog_FilesAreCopies(t *testing.T) {
	c := NewCatalog(testFiles()...)
	files := c.Files()
	files[0].Lines[0].Content = "changed"

	line, _ := c.Line(models.LineRef{FileID: "f1", LineID: "L1"})
	if line.Content == "changed" {
		t.Error("expected catalog to be unaffected by edits to a copy")
	}
}

func TestCatalog_Stats(t *testing.T) {
	c := NewCatalog(testFiles()...)
	s := c.Stats()
	if s.Files != 2 || s.Total != 3 || s.Reviewed != 1 || s.Pending != 2 || s.Percent != 33 {
		t.Errorf("unexpected stats %+v", s)
	}

	if got := NewCatalog().Stats(); got.Percent != 0 || got.Total != 0 {
		t.Errorf("expected empty stats, got %+v", got)
	}
}

func TestCatalog_SelectionSummary(t *testing.T) {
	c := NewCatalog(testFiles()...)
	ex := extract.MustNewExtractor(extract.DefaultAttributeSpec())

	sum := c.SelectionSummary(ex, []models.LineRef{
		{FileID: "f1", LineID: "L1"},
		{FileID: "f1", LineID: "L2"},
		{FileID: "f2", LineID: "L1"},
		{FileID: "f2", LineID: "L1"},
		{FileID: "f3", LineID: "L1"},
	})

	if sum.Lines != 3 {
		t.Errorf("expected 3 lines, got %d", sum.Lines)
	}
	if !sum.Primary.Equal(decimal.RequireFromString("150.25")) || sum.PrimaryCount != 2 {
		t.Errorf("unexpected primary %s (%d)", sum.Primary, sum.PrimaryCount)
	}
	if !sum.Secondary.Equal(decimal.RequireFromString("199")) || sum.SecondaryCount != 2 {
		t.Errorf("unexpected secondary %s (%d)", sum.Secondary, sum.SecondaryCount)
	}
	if len(sum.Missing) != 1 || sum.Missing[0] != "f3/L1" {
		t.Errorf("unexpected missing %v", sum.Missing)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ops.xml", "<ops>\r\n\n  <op ndc=\"A\" vusd=\"1\"/>\n</ops>\n")

	f, err := NewLoader(nil).LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if f.ID != "ops.xml" || f.Name != "ops.xml" {
		t.Errorf("unexpected file identity %q/%q", f.ID, f.Name)
	}
	if len(f.Lines) != 3 {
		t.Fatalf("expected 3 non-blank lines, got %d", len(f.Lines))
	}
	if f.Lines[0].Content != "<ops>" {
		t.Errorf("expected carriage return trimmed, got %q", f.Lines[0].Content)
	}
	if f.Lines[1].ID != "L00003" {
		t.Errorf("expected physical line number in ID, got %s", f.Lines[1].ID)
	}
}

func TestLoader_LoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(nil)

	if _, err := loader.LoadFile(filepath.Join(dir, "missing.xml")); !errors.HasCode(err, errors.CodeFileNotFound) {
		t.Errorf("expected file not found, got %v", err)
	}

	bad := writeFile(t, dir, "bad.xml", "ok\n\xff\xfe\n")
	if _, err := loader.LoadFile(bad); !errors.HasCode(err, errors.CodeEncodingError) {
		t.Errorf("expected encoding error, got %v", err)
	}
}

func TestLoader_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.xml", "<op/>\n")
	writeFile(t, dir, "a.XML", "<op/>\n")
	writeFile(t, dir, "notes.pdf", "binary")
	if err := os.Mkdir(filepath.Join(dir, "nested.xml"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := NewLoader(nil).LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(files) != 2 || files[0].Name != "a.XML" || files[1].Name != "b.xml" {
		t.Errorf("unexpected files %+v", files)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLoader(nil).LoadDir(ctx, dir); !errors.HasCode(err, errors.CodeUnexpectedError) {
		t.Errorf("expected cancelled context to stop loading, got %v", err)
	}
}

func TestLoader_LoadDir_Failures(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]string
		failed int
	}{
		{"one bad file", map[string]string{"a.xml": "<op/>\n", "b.xml": "\xff\n"}, 1},
		{"two bad files", map[string]string{"a.xml": "\xff\n", "b.xml": "<op/>\n", "c.xml": "ok\n\xfe\n"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}

			files, err := NewLoader(nil).LoadDir(context.Background(), dir)
			if files != nil {
				t.Errorf("expected no files on failure, got %d", len(files))
			}

			if tt.failed == 1 {
				if !errors.HasCode(err, errors.CodeEncodingError) {
					t.Errorf("expected encoding error, got %v", err)
				}
				return
			}

			summary, ok := err.(*errors.ErrorSummary)
			if !ok {
				t.Fatalf("expected an error summary, got %T: %v", err, err)
			}
			if summary.Total != tt.failed {
				t.Errorf("expected %d failed files, got %d", tt.failed, summary.Total)
			}
			if !summary.HasCategory(errors.CategoryParse) || summary.HasCategory(errors.CategoryFile) {
				t.Errorf("expected only parse failures, got %v", summary.ByCategory)
			}
			if summary.GetExitCode() != 3 {
				t.Errorf("expected exit code 3, got %d", summary.GetExitCode())
			}
		})
	}
}
