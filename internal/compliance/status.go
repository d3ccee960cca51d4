// Package compliance classifies the free-text review labels of the three
// compliance axes into a closed set of statuses and aggregates them into
// dashboard statistics.
//
// Auditors type or pick labels such as "O.K.", "Extemporánea" or "SIN
// LEGALIZAR". Classify maps every label, historical ones included, to a
// Status through an explicit legacy table first and a small set of lexical
// rules second, so old sessions keep grouping correctly without migration.
package compliance

import (
	"fmt"
	"regexp"
	"strings"

	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/models"
)

// Status is the closed classification of an axis review label
type Status int

const (
	// StatusUnset means no label has been chosen yet
	StatusUnset Status = iota
	// StatusCompliant means the obligation was met on time
	StatusCompliant
	// StatusLate means the obligation was met after its deadline
	StatusLate
	// StatusNotFiled means the filing or transmission never happened
	StatusNotFiled
	// StatusPartial means only part of the amount was filed
	StatusPartial
	// StatusError means the filing contains mistakes
	StatusError
	// StatusPending means a label exists but does not settle the review
	StatusPending
	// StatusNotApplicable means the axis does not apply to the operation
	StatusNotApplicable
)

// Statuses lists every status in report order
var Statuses = []Status{
	StatusCompliant,
	StatusLate,
	StatusNotFiled,
	StatusPartial,
	StatusError,
	StatusPending,
	StatusNotApplicable,
	StatusUnset,
}

var statusNames = map[Status]string{
	StatusUnset:         "unset",
	StatusCompliant:     "compliant",
	StatusLate:          "late",
	StatusNotFiled:      "not_filed",
	StatusPartial:       "partial",
	StatusError:         "error",
	StatusPending:       "pending",
	StatusNotApplicable: "not_applicable",
}

// String returns the string representation of Status
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText lets statuses serve as JSON values and map keys
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name produced by MarshalText
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus parses a status name
func ParseStatus(name string) (Status, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for status, n := range statusNames {
		if n == name {
			return status, nil
		}
	}
	return StatusUnset, fmt.Errorf("unknown compliance status '%s'", name)
}

// IsFinding reports whether the status counts as a compliance finding.
// A waived axis (NotApplicable) counts too.
func (s Status) IsFinding() bool {
	switch s {
	case StatusLate, StatusNotFiled, StatusPartial, StatusError, StatusPending, StatusNotApplicable:
		return true
	default:
		return false
	}
}

// legacyLabels maps folded labels seen in historical sessions to their
// status. Lookups hit this table before any lexical rule.
var legacyLabels = map[string]Status{
	"o.k.":                      StatusCompliant,
	"ok":                        StatusCompliant,
	"o.k":                       StatusCompliant,
	"presentada oportunamente":  StatusCompliant,
	"transmitida oportunamente": StatusCompliant,
	"soporte completo":          StatusCompliant,
	"extemporanea":              StatusLate,
	"extemporaneo":              StatusLate,
	"presentada extemporanea":   StatusLate,
	"sin legalizar":             StatusNotFiled,
	"sin transmitir":            StatusNotFiled,
	"sin presentar":             StatusNotFiled,
	"no presentada":             StatusNotFiled,
	"no transmitida":            StatusNotFiled,
	"parcial":                   StatusPartial,
	"legalizada parcial":        StatusPartial,
	"error":                     StatusError,
	"error en declaracion":      StatusError,
	"mal transmitida":           StatusError,
	"mal diligenciada":          StatusError,
	"pendiente":                 StatusPending,
	"pendiente soporte":         StatusPending,
	"soporte incompleto":        StatusPending,
	"n/a":                       StatusNotApplicable,
	"na":                        StatusNotApplicable,
	"no aplica":                 StatusNotApplicable,
}

var wordMal = regexp.MustCompile(`\bmal\b`)

// Classify maps a review label to its status. Matching ignores case,
// accents and surrounding whitespace.
func Classify(label string) Status {
	folded := extract.Fold(label)
	if folded == "" {
		return StatusUnset
	}
	if status, ok := legacyLabels[folded]; ok {
		return status
	}

	switch {
	case strings.Contains(folded, "n/a") || strings.Contains(folded, "no aplica"):
		return StatusNotApplicable
	case strings.Contains(folded, "o.k.") || strings.Contains(folded, "oportunamente"):
		return StatusCompliant
	case strings.Contains(folded, "extemporane"):
		return StatusLate
	case strings.Contains(folded, "sin legalizar"),
		strings.Contains(folded, "sin transmitir"),
		strings.Contains(folded, "sin presentar"):
		return StatusNotFiled
	case strings.Contains(folded, "parcial"):
		return StatusPartial
	case strings.Contains(folded, "error") || wordMal.MatchString(folded):
		return StatusError
	default:
		return StatusPending
	}
}

// ClassifyReview classifies one axis review of an operation
func ClassifyReview(review models.ReviewData, axis models.Axis) Status {
	r := review.Axis(axis)
	if r == nil {
		return StatusUnset
	}
	return Classify(r.Status)
}

var axisOptions = map[models.Axis][]string{
	models.AxisDocumental: {
		"O.K.",
		"Pendiente soporte",
		"Soporte incompleto",
		"N/A",
	},
	models.AxisBanrep: {
		"O.K.",
		"Extemporánea",
		"Sin transmitir",
		"Mal transmitida",
		"N/A",
	},
	models.AxisDIAN: {
		"Presentada oportunamente",
		"O.K.",
		"Extemporáneo",
		"Sin legalizar",
		"Parcial",
		"Error en declaración",
		"N/A",
	},
}

// Options returns the canonical labels offered for an axis, in display order
func Options(axis models.Axis) []string {
	return append([]string(nil), axisOptions[axis]...)
}
