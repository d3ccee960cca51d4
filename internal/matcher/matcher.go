package matcher

import (
	"strings"

	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/pkg/logger"

	"github.com/shopspring/decimal"
)

// MatchResult is the record line proposed for a movement
type MatchResult struct {
	FileID    string    `json:"fileId"`
	FileName  string    `json:"fileName"`
	LineID    string    `json:"lineId"`
	Content   string    `json:"content"`
	MatchType MatchType `json:"matchType"`
}

// Ref returns the stable address of the proposed line
func (r *MatchResult) Ref() models.LineRef {
	return models.LineRef{FileID: r.FileID, LineID: r.LineID}
}

// Proposal is what the UI shows for a movement's record evidence: either
// the explicit links the auditor created, or the auto-matcher's advisory
// result when there are none.
type Proposal struct {
	MovementID string        `json:"movementId"`
	Explicit   []models.Link `json:"explicit,omitempty"`
	Auto       *MatchResult  `json:"auto,omitempty"`
}

// Matched reports whether the movement has any record evidence
func (p Proposal) Matched() bool {
	return len(p.Explicit) > 0 || p.Auto != nil
}

// Matcher finds record lines for movements. The line index is rebuilt
// whenever the source version changes. A Matcher is not safe for
// concurrent use.
type Matcher struct {
	config    *MatchingConfig
	extractor *extract.Extractor
	index     *LineIndex
	logger    logger.Logger
}

// NewMatcher creates a matcher with the specified configuration
func NewMatcher(config *MatchingConfig) (*Matcher, error) {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ex, err := extract.NewExtractor(config.Attributes)
	if err != nil {
		return nil, err
	}

	return &Matcher{
		config:    config.Clone(),
		extractor: ex,
		logger:    logger.GetGlobalLogger().WithComponent("matcher"),
	}, nil
}

// Config returns a copy of the matcher configuration
func (m *Matcher) Config() *MatchingConfig {
	return m.config.Clone()
}

// Index returns the line index for source, rebuilding it if stale
func (m *Matcher) Index(source LineSource) *LineIndex {
	if m.index == nil || m.index.Version() != source.Version() {
		m.index = NewLineIndex(source, m.extractor)
		stats := m.index.Stats()
		m.logger.WithFields(logger.Fields{
			"version": source.Version(),
			"lines":   stats.Lines,
			"buckets": stats.Buckets,
		}).Debug("line index rebuilt")
	}
	return m.index
}

// FindXMLMatch runs the two matching passes for a movement and returns the
// winning line, or nil when no line qualifies.
func (m *Matcher) FindXMLMatch(movement *models.Movement, source LineSource) *MatchResult {
	target := movement.Amount.Abs()
	if target.IsZero() && !m.config.MatchZeroAmounts {
		return nil
	}

	forms := extract.SearchForms(target)
	var candidates []IndexEntry
	for _, entry := range m.Index(source).Candidates(target, m.config.Tolerance) {
		if !extract.ContainsAny(entry.Content, forms) {
			continue
		}
		if !entry.Attributes.Within(target, m.config.Tolerance) {
			continue
		}
		candidates = append(candidates, entry)
	}
	if len(candidates) == 0 {
		return nil
	}

	if m.config.DatePass && movement.Date != "" {
		for _, entry := range candidates {
			if strings.Contains(entry.Content, movement.Date) {
				return newResult(entry, MatchPerfect)
			}
		}
	}
	return newResult(candidates[0], MatchAmount)
}

func newResult(entry IndexEntry, matchType MatchType) *MatchResult {
	return &MatchResult{
		FileID:    entry.FileID,
		FileName:  entry.FileName,
		LineID:    entry.LineID,
		Content:   entry.Content,
		MatchType: matchType,
	}
}

// Propose returns the record evidence to display for a movement. Explicit
// links suppress the auto-matcher entirely.
func (m *Matcher) Propose(movement *models.Movement, source LineSource) Proposal {
	p := Proposal{MovementID: movement.ID}
	if len(movement.LinkedXMLs) > 0 {
		p.Explicit = append([]models.Link(nil), movement.LinkedXMLs...)
		return p
	}
	p.Auto = m.FindXMLMatch(movement, source)
	return p
}

// MatchSummary aggregates proposals over a set of movements
type MatchSummary struct {
	Movements int `json:"movements"`
	Explicit  int `json:"explicit"`
	Perfect   int `json:"perfect"`
	Amount    int `json:"amount"`
	Unmatched int `json:"unmatched"`
	// UnmatchedAmount is the sum of absolute amounts without evidence
	UnmatchedAmount decimal.Decimal `json:"unmatchedAmount"`
}

// ProposeAll proposes evidence for every movement in order
func (m *Matcher) ProposeAll(movements []models.Movement, source LineSource) ([]Proposal, MatchSummary) {
	summary := MatchSummary{Movements: len(movements), UnmatchedAmount: decimal.Zero}
	proposals := make([]Proposal, 0, len(movements))

	for i := range movements {
		p := m.Propose(&movements[i], source)
		switch {
		case len(p.Explicit) > 0:
			summary.Explicit++
		case p.Auto == nil:
			summary.Unmatched++
			summary.UnmatchedAmount = summary.UnmatchedAmount.Add(movements[i].Amount.Abs())
		case p.Auto.MatchType == MatchPerfect:
			summary.Perfect++
		default:
			summary.Amount++
		}
		proposals = append(proposals, p)
	}

	m.logger.WithFields(logger.Fields{
		"movements": summary.Movements,
		"perfect":   summary.Perfect,
		"amount":    summary.Amount,
		"unmatched": summary.Unmatched,
	}).Info("record matching completed")
	return proposals, summary
}
