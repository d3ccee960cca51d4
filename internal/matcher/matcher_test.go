package matcher

import (
	"testing"

	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/internal/records"

	"github.com/shopspring/decimal"
)

func createTestCatalog(lines ...string) *records.Catalog {
	file := models.RecordFile{ID: "f1", Name: "operaciones.xml"}
	for i, content := range lines {
		file.Lines = append(file.Lines, models.Line{ID: records.LineID(i + 1), Content: content})
	}
	return records.NewCatalog(file)
}

func testMovement(amount, date string) *models.Movement {
	return &models.Movement{
		ID:          "mov-1",
		Date:        date,
		Description: "GIRO",
		Amount:      decimal.RequireFromString(amount),
	}
}

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(DefaultMatchingConfig())
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}
	return m
}

func TestNewMatcher(t *testing.T) {
	if _, err := NewMatcher(nil); err != nil {
		t.Errorf("expected nil config to use defaults, got %v", err)
	}

	bad := DefaultMatchingConfig()
	bad.Tolerance = decimal.NewFromInt(-1)
	if _, err := NewMatcher(bad); err == nil {
		t.Error("expected error for negative tolerance")
	}
}

func TestFindXMLMatch_PerfectBeatsAmountOnly(t *testing.T) {
	catalog := createTestCatalog(
		`<op ndc="A" vusd="250.75" vusdi="250.75"/>`,
		`<op ndc="B" vusd="250.75" vusdi="250.78" fecha="2024-03-01"/>`,
	)

	result := newTestMatcher(t).FindXMLMatch(testMovement("250.75", "2024-03-01"), catalog)
	if result == nil {
		t.Fatal("expected a match")
	}
	if result.MatchType != MatchPerfect {
		t.Errorf("expected perfect match, got %s", result.MatchType)
	}
	if result.LineID != records.LineID(2) {
		t.Errorf("expected the amount+date line, got %s", result.LineID)
	}
	if result.FileName != "operaciones.xml" {
		t.Errorf("expected file name, got %q", result.FileName)
	}
}

func TestFindXMLMatch_AmountFallback(t *testing.T) {
	catalog := createTestCatalog(
		`<op ndc="A" vusd="10.00"/>`,
		`<op ndc="B" vusd="1250.5" vusdi="1250.53" fecha="2024-02-28"/>`,
		`<op ndc="C" vusd="1250.50" fecha="2024-02-27"/>`,
	)

	result := newTestMatcher(t).FindXMLMatch(testMovement("-1250.50", "2024-03-01"), catalog)
	if result == nil {
		t.Fatal("expected a match")
	}
	if result.MatchType != MatchAmount {
		t.Errorf("expected amount match, got %s", result.MatchType)
	}
	if result.LineID != records.LineID(2) {
		t.Errorf("expected the first qualifying line, got %s", result.LineID)
	}
}

func TestFindXMLMatch_NoMatch(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		lines  []string
	}{
		{
			name:   "attributes out of tolerance",
			amount: "250.75",
			lines:  []string{`<op vusd="250.85" vusdi="250.65" nota="250.75"/>`},
		},
		{
			name:   "amount text without attributes",
			amount: "250.75",
			lines:  []string{`<op total="250.75" fecha="2024-03-01"/>`},
		},
		{
			name:   "attribute within tolerance but amount not mentioned",
			amount: "250.75",
			lines:  []string{`<op vusd="250.77"/>`},
		},
		{
			name:   "zero amount never matches zeros",
			amount: "0",
			lines:  []string{`<op vusd="0" vusdi="0.00" fecha="2024-03-01"/>`},
		},
		{
			name:   "empty catalog",
			amount: "100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := createTestCatalog(tt.lines...)
			if result := newTestMatcher(t).FindXMLMatch(testMovement(tt.amount, "2024-03-01"), catalog); result != nil {
				t.Errorf("expected no match, got %+v", result)
			}
		})
	}
}

func TestFindXMLMatch_ToleranceBoundary(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		amount  string
		matched bool
	}{
		{"exactly the tolerance above", `<op ref="250.75" vusd="250.80"/>`, "250.75", false},
		{"exactly the tolerance below", `<op vusd="100.05" total="100.00"/>`, "100.10", false},
		{"just inside the tolerance", `<op ref="250.75" vusd="250.79"/>`, "250.75", true},
		{"secondary just inside", `<op vusd="1.00" vusdi="99.96"/>`, "100", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := createTestCatalog(tt.line)
			result := newTestMatcher(t).FindXMLMatch(testMovement(tt.amount, "2024-03-01"), catalog)
			if tt.matched && (result == nil || result.MatchType != MatchAmount) {
				t.Errorf("expected an amount match, got %+v", result)
			}
			if !tt.matched && result != nil {
				t.Errorf("expected no match, got %+v", result)
			}
		})
	}

	strict, _ := NewMatcher(StrictMatchingConfig())
	if result := strict.FindXMLMatch(testMovement("100", "2024-03-01"), createTestCatalog(`<op vusd="100.01"/>`)); result != nil {
		t.Errorf("expected strict matcher to reject a 0.01 difference, got %+v", result)
	}
}

func TestFindXMLMatch_EmptyDateSkipsPerfectPass(t *testing.T) {
	catalog := createTestCatalog(`<op vusd="42.00"/>`)
	result := newTestMatcher(t).FindXMLMatch(testMovement("42", ""), catalog)
	if result == nil || result.MatchType != MatchAmount {
		t.Errorf("expected amount match, got %+v", result)
	}
}

func TestFindXMLMatch_ZeroAmountsOptIn(t *testing.T) {
	config := DefaultMatchingConfig()
	config.MatchZeroAmounts = true
	m, err := NewMatcher(config)
	if err != nil {
		t.Fatal(err)
	}

	catalog := createTestCatalog(`<op vusd="0.00" fecha="2024-03-01"/>`)
	if result := m.FindXMLMatch(testMovement("0", "2024-03-01"), catalog); result == nil || result.MatchType != MatchPerfect {
		t.Errorf("expected perfect match for opted-in zero amount, got %+v", result)
	}
}

func TestFindXMLMatch_IndexFollowsCatalog(t *testing.T) {
	catalog := createTestCatalog(`<op vusd="10.00"/>`)
	m := newTestMatcher(t)
	movement := testMovement("77.70", "2024-03-01")

	if m.FindXMLMatch(movement, catalog) != nil {
		t.Fatal("expected no match before the edit")
	}

	ref := models.LineRef{FileID: "f1", LineID: records.LineID(1)}
	if err := catalog.UpdateLineContent(ref, `<op vusd="77.70" fecha="2024-03-01"/>`); err != nil {
		t.Fatal(err)
	}

	result := m.FindXMLMatch(movement, catalog)
	if result == nil || result.MatchType != MatchPerfect {
		t.Errorf("expected the edited line to match, got %+v", result)
	}
}

func TestPropose_ExplicitLinksTakePrecedence(t *testing.T) {
	catalog := createTestCatalog(`<op vusd="250.75" fecha="2024-03-01"/>`)
	m := newTestMatcher(t)

	movement := testMovement("250.75", "2024-03-01")
	if p := m.Propose(movement, catalog); p.Auto == nil || len(p.Explicit) != 0 {
		t.Fatalf("expected an auto proposal, got %+v", p)
	}

	movement.LinkedXMLs = []models.Link{{Type: models.LinkXML, TargetFileID: "other", TargetLineID: "L9", TargetFileName: "otro.xml"}}
	p := m.Propose(movement, catalog)
	if p.Auto != nil {
		t.Errorf("expected explicit links to suppress auto matching, got %+v", p.Auto)
	}
	if len(p.Explicit) != 1 || !p.Matched() {
		t.Errorf("expected the explicit link, got %+v", p)
	}
}

func TestProposeAll(t *testing.T) {
	catalog := createTestCatalog(
		`<op vusd="100.00" fecha="2024-03-01"/>`,
		`<op vusd="200.00"/>`,
	)
	movements := []models.Movement{
		*testMovement("100", "2024-03-01"),
		*testMovement("200", "2024-03-02"),
		*testMovement("300", "2024-03-03"),
		{ID: "linked", Amount: decimal.NewFromInt(5), LinkedXMLs: []models.Link{{Type: models.LinkXML}}},
	}

	proposals, summary := newTestMatcher(t).ProposeAll(movements, catalog)
	if len(proposals) != 4 {
		t.Fatalf("expected 4 proposals, got %d", len(proposals))
	}
	if summary.Perfect != 1 || summary.Amount != 1 || summary.Unmatched != 1 || summary.Explicit != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if !summary.UnmatchedAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected unmatched amount 300, got %s", summary.UnmatchedAmount)
	}
}

func TestLineIndex_Candidates(t *testing.T) {
	catalog := createTestCatalog(
		`<op vusd="100.04"/>`,
		`<op vusdi="99.96"/>`,
		`<op vusd="100.10"/>`,
		`<op ndc="X"/>`,
		`<op vusd="100.00" vusdi="100.00"/>`,
	)
	index := NewLineIndex(catalog, extract.MustNewExtractor(extract.DefaultAttributeSpec()))

	if stats := index.Stats(); stats.Lines != 4 {
		t.Errorf("expected lines without attributes to be skipped, got %+v", stats)
	}

	got := index.Candidates(decimal.NewFromInt(100), decimal.RequireFromString("0.05"))
	want := []string{records.LineID(1), records.LineID(2), records.LineID(5)}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(got))
	}
	for i, entry := range got {
		if entry.LineID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], entry.LineID)
		}
	}
}

func TestMatchingConfig(t *testing.T) {
	configs := map[string]*MatchingConfig{
		"default": DefaultMatchingConfig(),
		"strict":  StrictMatchingConfig(),
		"relaxed": RelaxedMatchingConfig(),
	}
	for name, c := range configs {
		if err := c.Validate(); err != nil {
			t.Errorf("%s config invalid: %v", name, err)
		}
	}

	c := DefaultMatchingConfig()
	clone := c.Clone()
	clone.Attributes.Identifiers[0] = "changed"
	if c.Attributes.Identifiers[0] == "changed" {
		t.Error("expected clone to copy identifier names")
	}

	c.Attributes.Secondary = c.Attributes.Primary
	if err := c.Validate(); err == nil {
		t.Error("expected error for identical attribute names")
	}
}
