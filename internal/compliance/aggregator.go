package compliance

import (
	"strings"

	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/pkg/logger"

	"github.com/shopspring/decimal"
)

// DefaultTopFindings bounds the flagged operations table
const DefaultTopFindings = 10

// commentFlagLength is the trimmed comment length above which an operation
// is flagged for attention
const commentFlagLength = 5

// Severity grades a flagged operation
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityAlert    Severity = "alert"
)

// AxisCounts buckets the operations of one axis by status
type AxisCounts struct {
	ByStatus map[Status]int `json:"byStatus"`
	// Findings counts operations whose status is a finding
	Findings    int `json:"findings"`
	Corrected   int `json:"corrected"`
	Uncorrected int `json:"uncorrected"`
}

// Count returns the number of operations with the given status
func (c AxisCounts) Count(status Status) int {
	return c.ByStatus[status]
}

// FlaggedOperation is one row of the flagged operations table
type FlaggedOperation struct {
	MovementID  string          `json:"movementId"`
	OperationID string          `json:"operationId"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DIAN        string          `json:"dian"`
	Banrep      string          `json:"banrep"`
	Comments    string          `json:"comments,omitempty"`
	Severity    Severity        `json:"severity"`
}

// Stats is the compliance dashboard of a session
type Stats struct {
	TotalMovements  int `json:"totalMovements"`
	TotalOperations int `json:"totalOperations"`
	// ReviewedOperations counts operations included in the review
	ReviewedOperations int                        `json:"reviewedOperations"`
	TotalAudited       decimal.Decimal            `json:"totalAudited"`
	Axes               map[models.Axis]AxisCounts `json:"axes"`
	// TotalFindings counts documental and central-bank findings
	TotalFindings        int                `json:"totalFindings"`
	SplitMismatches      int                `json:"splitMismatches"`
	DeclarationsReviewed int                `json:"declarationsReviewed"`
	DeclarationsApproved int                `json:"declarationsApproved"`
	CorrectionsNeeded    int                `json:"correctionsNeeded"`
	Flagged              []FlaggedOperation `json:"flagged"`
}

// Axis returns the counts of one axis
func (s Stats) Axis(axis models.Axis) AxisCounts {
	return s.Axes[axis]
}

// findingAxes are the axes whose findings make up TotalFindings
var findingAxes = []models.Axis{models.AxisDocumental, models.AxisBanrep}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithTopFindings overrides DefaultTopFindings. Non-positive values keep
// the default.
func WithTopFindings(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topFindings = n
		}
	}
}

// WithSplitTolerance sets the tolerance used to count split mismatches
func WithSplitTolerance(tolerance decimal.Decimal) Option {
	return func(a *Aggregator) {
		a.splitTolerance = tolerance
	}
}

// Aggregator computes dashboard statistics. It holds no state between
// calls, so aggregating an unchanged collection twice yields equal Stats.
type Aggregator struct {
	topFindings    int
	splitTolerance decimal.Decimal
	logger         logger.Logger
}

// NewAggregator creates an aggregator
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		topFindings:    DefaultTopFindings,
		splitTolerance: decimal.RequireFromString("0.01"),
		logger:         logger.GetGlobalLogger().WithComponent("compliance"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate computes the statistics of a movement collection and its
// declaration reviews. Operations excluded from review still count toward
// TotalOperations but are left out of every status bucket and the flagged
// table.
func (a *Aggregator) Aggregate(movements []models.Movement, reviews []models.DeclarationReview) Stats {
	stats := Stats{
		TotalMovements: len(movements),
		TotalAudited:   decimal.Zero,
		Axes:           make(map[models.Axis]AxisCounts, len(models.Axes)),
	}
	for _, axis := range models.Axes {
		stats.Axes[axis] = AxisCounts{ByStatus: make(map[Status]int)}
	}

	for i := range movements {
		m := &movements[i]
		stats.TotalAudited = stats.TotalAudited.Add(m.Amount.Abs())
		if !m.IsSplitBalanced(a.splitTolerance) {
			stats.SplitMismatches++
		}

		for j := range m.Operations {
			op := &m.Operations[j]
			stats.TotalOperations++
			if !op.IncludeInReview {
				continue
			}
			stats.ReviewedOperations++

			for _, axis := range models.Axes {
				review := op.ReviewData.Axis(axis)
				status := Classify(review.Status)

				counts := stats.Axes[axis]
				counts.ByStatus[status]++
				if status.IsFinding() {
					counts.Findings++
					switch {
					case review.CorrectionStatus == nil:
					case *review.CorrectionStatus == models.CorrectionDone:
						counts.Corrected++
					case *review.CorrectionStatus == models.CorrectionPending:
						counts.Uncorrected++
					}
				}
				stats.Axes[axis] = counts
			}

			if len(stats.Flagged) < a.topFindings {
				if row, ok := flag(m, op); ok {
					stats.Flagged = append(stats.Flagged, row)
				}
			}
		}
	}

	for _, axis := range findingAxes {
		stats.TotalFindings += stats.Axes[axis].Findings
	}

	for _, r := range reviews {
		stats.DeclarationsReviewed++
		switch r.Status {
		case models.ReviewApproved:
			stats.DeclarationsApproved++
		case models.ReviewCorrectionNeeded:
			stats.CorrectionsNeeded++
		}
	}

	a.logger.WithFields(logger.Fields{
		"movements":  stats.TotalMovements,
		"operations": stats.TotalOperations,
		"findings":   stats.TotalFindings,
		"flagged":    len(stats.Flagged),
	}).Debug("compliance statistics aggregated")

	return stats
}

// flag decides whether an operation belongs in the flagged table: the tax
// or central-bank filing is missing, the tax filing is late, or the auditor
// left a substantive comment.
func flag(m *models.Movement, op *models.Operation) (FlaggedOperation, bool) {
	dian := Classify(op.ReviewData.DIAN.Status)
	banrep := Classify(op.ReviewData.Banrep.Status)
	comments := strings.TrimSpace(op.ReviewData.Comments)

	if dian != StatusNotFiled && banrep != StatusNotFiled && dian != StatusLate &&
		len([]rune(comments)) <= commentFlagLength {
		return FlaggedOperation{}, false
	}

	row := FlaggedOperation{
		MovementID:  m.ID,
		OperationID: op.ID,
		Date:        m.Date,
		Description: m.Description,
		Amount:      op.Amount,
		DIAN:        op.ReviewData.DIAN.Status,
		Banrep:      op.ReviewData.Banrep.Status,
		Comments:    comments,
		Severity:    SeverityAlert,
	}
	if dian == StatusNotFiled {
		row.Severity = SeverityCritical
	}
	return row, true
}
