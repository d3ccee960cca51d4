package reporter

import (
	"fmt"
	"io"
	"strings"

	"fx-compliance-auditor/internal/compliance"
	"fx-compliance-auditor/internal/duplicates"
	"fx-compliance-auditor/internal/linker"
	"fx-compliance-auditor/internal/matcher"
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/internal/records"
)

var axisTitles = map[models.Axis]string{
	models.AxisDocumental: "Documental",
	models.AxisBanrep:     "BanRep",
	models.AxisDIAN:       "DIAN",
}

// DashboardReport is the compliance dashboard of an audit
type DashboardReport struct {
	Stats   compliance.Stats `json:"stats"`
	Records *records.Stats   `json:"records,omitempty"`
}

// Title names the report
func (r *DashboardReport) Title() string { return "Compliance dashboard" }

func (r *DashboardReport) writeConsole(rg *ReportGenerator, w io.Writer) error {
	s := r.Stats
	rg.header(w, r.Title())

	rg.section(w, "summary")
	fmt.Fprintf(w, "Movements:          %d\n", s.TotalMovements)
	fmt.Fprintf(w, "Operations:         %d (%d in review)\n", s.TotalOperations, s.ReviewedOperations)
	fmt.Fprintf(w, "Total Audited:      %s\n", rg.money(s.TotalAudited))
	fmt.Fprintf(w, "Findings:           %d\n", s.TotalFindings)
	fmt.Fprintf(w, "Split Mismatches:   %d\n", s.SplitMismatches)
	fmt.Fprintf(w, "\n")

	rg.section(w, "declarations")
	fmt.Fprintf(w, "Reviewed:           %d\n", s.DeclarationsReviewed)
	fmt.Fprintf(w, "Approved:           %d\n", s.DeclarationsApproved)
	fmt.Fprintf(w, "Corrections Needed: %d\n", s.CorrectionsNeeded)
	fmt.Fprintf(w, "\n")

	for _, axis := range models.Axes {
		counts := s.Axis(axis)
		rg.section(w, axisTitles[axis])
		for _, status := range compliance.Statuses {
			n := counts.Count(status)
			if n == 0 {
				continue
			}
			fmt.Fprintf(w, "  %-15s %4d (%.1f%%)\n", status, n, calculatePercentage(n, s.ReviewedOperations))
		}
		fmt.Fprintf(w, "  Findings: %d, corrected: %d, uncorrected: %d\n\n",
			counts.Findings, counts.Corrected, counts.Uncorrected)
	}

	if r.Records != nil && r.Records.Files > 0 {
		rg.section(w, "record review")
		fmt.Fprintf(w, "Files:    %d\n", r.Records.Files)
		fmt.Fprintf(w, "Reviewed: %d of %d lines (%d%%)\n", r.Records.Reviewed, r.Records.Total, r.Records.Percent)
		fmt.Fprintf(w, "\n")
	}

	rg.section(w, "flagged operations")
	if len(s.Flagged) == 0 {
		fmt.Fprintf(w, "No operations flagged.\n")
		return nil
	}
	for i, f := range s.Flagged {
		if rg.more(w, i, len(s.Flagged)) {
			break
		}
		fmt.Fprintf(w, "  %d. [%s] %s %s, %s\n", i+1, strings.ToUpper(string(f.Severity)),
			f.Date, truncate(f.Description, 40), rg.money(f.Amount))
		fmt.Fprintf(w, "     DIAN: %s | BanRep: %s\n", orDash(f.DIAN), orDash(f.Banrep))
		if f.Comments != "" {
			fmt.Fprintf(w, "     Comments: %s\n", truncate(f.Comments, 80))
		}
	}
	return nil
}

func (r *DashboardReport) csvHeaders() []string {
	return []string{"Section", "Key", "Value", "Detail"}
}

func (r *DashboardReport) csvRecords() [][]string {
	s := r.Stats
	rows := [][]string{
		{"summary", "total_movements", fmt.Sprint(s.TotalMovements), ""},
		{"summary", "total_operations", fmt.Sprint(s.TotalOperations), ""},
		{"summary", "reviewed_operations", fmt.Sprint(s.ReviewedOperations), ""},
		{"summary", "total_audited", s.TotalAudited.StringFixed(2), ""},
		{"summary", "total_findings", fmt.Sprint(s.TotalFindings), ""},
		{"summary", "split_mismatches", fmt.Sprint(s.SplitMismatches), ""},
		{"declarations", "reviewed", fmt.Sprint(s.DeclarationsReviewed), ""},
		{"declarations", "approved", fmt.Sprint(s.DeclarationsApproved), ""},
		{"declarations", "corrections_needed", fmt.Sprint(s.CorrectionsNeeded), ""},
	}

	for _, axis := range models.Axes {
		counts := s.Axis(axis)
		section := "axis:" + axis.String()
		for _, status := range compliance.Statuses {
			if n := counts.Count(status); n > 0 {
				rows = append(rows, []string{section, status.String(), fmt.Sprint(n), ""})
			}
		}
		rows = append(rows,
			[]string{section, "findings", fmt.Sprint(counts.Findings), ""},
			[]string{section, "corrected", fmt.Sprint(counts.Corrected), ""},
			[]string{section, "uncorrected", fmt.Sprint(counts.Uncorrected), ""},
		)
	}

	for _, f := range s.Flagged {
		rows = append(rows, []string{
			"flagged:" + string(f.Severity),
			f.MovementID + "/" + f.OperationID,
			f.Amount.StringFixed(2),
			fmt.Sprintf("%s %s | DIAN: %s | BanRep: %s", f.Date, f.Description, f.DIAN, f.Banrep),
		})
	}
	return rows
}

// MatchReport lists the record evidence of each movement
type MatchReport struct {
	Movements []models.Movement    `json:"-"`
	Proposals []matcher.Proposal   `json:"proposals"`
	Summary   matcher.MatchSummary `json:"summary"`
}

// Title names the report
func (r *MatchReport) Title() string { return "Record matches" }

func (r *MatchReport) movement(id string) (models.Movement, bool) {
	for _, m := range r.Movements {
		if m.ID == id {
			return m, true
		}
	}
	return models.Movement{}, false
}

// evidence describes a proposal as kind, file, line and content
func evidence(p matcher.Proposal) (string, string, string, string) {
	switch {
	case len(p.Explicit) > 0:
		link := p.Explicit[0]
		return "explicit", link.TargetFileName, link.TargetLineID, ""
	case p.Auto != nil:
		return p.Auto.MatchType.String(), p.Auto.FileName, p.Auto.LineID, p.Auto.Content
	default:
		return "none", "", "", ""
	}
}

func (r *MatchReport) writeConsole(rg *ReportGenerator, w io.Writer) error {
	s := r.Summary
	rg.header(w, r.Title())

	rg.section(w, "summary")
	fmt.Fprintf(w, "Movements:        %d\n", s.Movements)
	fmt.Fprintf(w, "Explicit Links:   %d (%.1f%%)\n", s.Explicit, calculatePercentage(s.Explicit, s.Movements))
	fmt.Fprintf(w, "Perfect Matches:  %d (%.1f%%)\n", s.Perfect, calculatePercentage(s.Perfect, s.Movements))
	fmt.Fprintf(w, "Amount Matches:   %d (%.1f%%)\n", s.Amount, calculatePercentage(s.Amount, s.Movements))
	fmt.Fprintf(w, "Unmatched:        %d (%.1f%%)\n", s.Unmatched, calculatePercentage(s.Unmatched, s.Movements))
	fmt.Fprintf(w, "Unmatched Amount: %s\n\n", rg.money(s.UnmatchedAmount))

	rg.section(w, "movements")
	for i, p := range r.Proposals {
		if rg.more(w, i, len(r.Proposals)) {
			break
		}
		kind, file, line, content := evidence(p)
		m, _ := r.movement(p.MovementID)
		fmt.Fprintf(w, "  %d. %s %s %s\n", i+1, m.Date, truncate(m.Description, 40), rg.money(m.Amount))
		if kind == "none" {
			fmt.Fprintf(w, "     no record evidence\n")
			continue
		}
		fmt.Fprintf(w, "     %s: %s %s\n", kind, file, line)
		if content != "" {
			fmt.Fprintf(w, "     %s\n", truncate(strings.TrimSpace(content), 100))
		}
	}
	return nil
}

func (r *MatchReport) csvHeaders() []string {
	return []string{"Movement_ID", "Date", "Description", "Amount", "Evidence", "File", "Line", "Content"}
}

func (r *MatchReport) csvRecords() [][]string {
	rows := make([][]string, 0, len(r.Proposals))
	for _, p := range r.Proposals {
		kind, file, line, content := evidence(p)
		m, _ := r.movement(p.MovementID)
		rows = append(rows, []string{
			p.MovementID, m.Date, m.Description, m.Amount.String(), kind, file, line, content,
		})
	}
	return rows
}

// DuplicateReport lists identifiers repeated across record lines
type DuplicateReport struct {
	Groups  []models.DuplicateIdentifierGroup `json:"groups"`
	Summary duplicates.Summary                `json:"summary"`
}

// Title names the report
func (r *DuplicateReport) Title() string { return "Duplicate identifiers" }

func (r *DuplicateReport) writeConsole(rg *ReportGenerator, w io.Writer) error {
	s := r.Summary
	rg.header(w, r.Title())

	rg.section(w, "summary")
	fmt.Fprintf(w, "Groups:          %d\n", s.Groups)
	fmt.Fprintf(w, "Locations:       %d\n", s.Locations)
	fmt.Fprintf(w, "Inconsistent:    %d\n", s.Inconsistent)
	fmt.Fprintf(w, "Total Primary:   %s\n", rg.money(s.TotalPrimary))
	fmt.Fprintf(w, "Total Secondary: %s\n\n", rg.money(s.TotalSecondary))

	if len(r.Groups) == 0 {
		fmt.Fprintf(w, "No duplicate identifiers found.\n")
		return nil
	}

	rg.section(w, "groups")
	for i, g := range r.Groups {
		if rg.more(w, i, len(r.Groups)) {
			break
		}
		marker := ""
		if g.Inconsistent {
			marker = " [INCONSISTENT]"
		}
		fmt.Fprintf(w, "  %s: %d locations in %s%s\n", g.Identifier, len(g.Locations),
			strings.Join(duplicates.Files(g), ", "), marker)
		for _, loc := range g.Locations {
			fmt.Fprintf(w, "     %s %s primary=%s secondary=%s\n", loc.FileName, loc.LineID,
				orDash(nullString(loc.Primary)), orDash(nullString(loc.Secondary)))
		}
	}
	return nil
}

func (r *DuplicateReport) csvHeaders() []string {
	return []string{"Identifier", "File", "Line", "Primary", "Secondary", "Inconsistent"}
}

func (r *DuplicateReport) csvRecords() [][]string {
	var rows [][]string
	for _, g := range r.Groups {
		for _, loc := range g.Locations {
			rows = append(rows, []string{
				g.Identifier, loc.FileName, loc.LineID,
				nullString(loc.Primary), nullString(loc.Secondary), formatBool(g.Inconsistent),
			})
		}
	}
	return rows
}

// CandidateReport is the declaration picker of one movement
type CandidateReport struct {
	Movement   models.Movement    `json:"movement"`
	Balance    linker.Balance     `json:"balance"`
	Candidates []linker.Candidate `json:"candidates"`
}

// Title names the report
func (r *CandidateReport) Title() string { return "Declaration candidates" }

func (r *CandidateReport) writeConsole(rg *ReportGenerator, w io.Writer) error {
	rg.header(w, r.Title())

	rg.section(w, "movement")
	fmt.Fprintf(w, "%s %s %s\n", r.Movement.Date, r.Movement.Description, rg.money(r.Movement.Amount))
	fmt.Fprintf(w, "Selected:  %s\n", rg.money(r.Balance.Selected))
	fmt.Fprintf(w, "Remaining: %s (%s)\n\n", rg.money(r.Balance.Remaining), r.Balance.State)

	rg.section(w, "declarations")
	if len(r.Candidates) == 0 {
		fmt.Fprintf(w, "No declarations match.\n")
		return nil
	}
	for i, c := range r.Candidates {
		if rg.more(w, i, len(r.Candidates)) {
			break
		}
		mark := "[ ]"
		if c.Selected {
			mark = "[x]"
		}
		fmt.Fprintf(w, "  %s %s", mark, c.File.Name)
		if c.Meta != nil {
			fmt.Fprintf(w, " | %s | %s | %s | numeral %s", orDash(c.Meta.Number), orDash(c.Meta.Date),
				rg.money(c.Meta.Amount), orDash(c.Meta.Numeral))
		}
		fmt.Fprintf(w, "\n")
		if c.Conflict != "" {
			fmt.Fprintf(w, "      already linked to: %s\n", c.Conflict)
		}
	}
	return nil
}

func (r *CandidateReport) csvHeaders() []string {
	return []string{"File_Name", "Number", "Date", "Amount", "Numeral", "Selected", "Conflict"}
}

func (r *CandidateReport) csvRecords() [][]string {
	rows := make([][]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		row := []string{c.File.Name, "", "", "", "", formatBool(c.Selected), c.Conflict}
		if c.Meta != nil {
			row[1], row[2], row[3], row[4] = c.Meta.Number, c.Meta.Date, c.Meta.Amount.String(), c.Meta.Numeral
		}
		rows = append(rows, row)
	}
	return rows
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
