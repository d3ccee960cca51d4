package session

import (
	"fmt"
	"strings"

	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/pkg/logger"

	"github.com/shopspring/decimal"
)

// NotApplicable is the axis status given to placeholder operations
const NotApplicable = "N/A"

// IngestResult summarises one call to IngestMovements
type IngestResult struct {
	SourceFile  string   `json:"sourceFile"`
	MovementIDs []string `json:"movementIds"`
	Incomplete  int      `json:"incomplete"`
	Placeholder bool     `json:"placeholder"`
}

// IngestMovements appends one movement per extracted transaction. Each new
// movement gets a single operation carrying its full amount.
//
// Extraction output is never rejected. Missing or malformed fields fall back
// to "" or zero and the movement is flagged incomplete with a note in its
// comments. When a source file yields no transactions at all, an
// informational placeholder movement is added so the file still leaves a
// visible trace in the audit.
func (s *Session) IngestMovements(sourceFile string, raws []models.RawMovement) IngestResult {
	result := IngestResult{SourceFile: sourceFile}
	log := s.logger.WithField("source_file", sourceFile)

	if len(raws) == 0 {
		m := s.placeholder(sourceFile)
		s.movements = append(s.movements, m)
		result.MovementIDs = append(result.MovementIDs, m.ID)
		result.Placeholder = true
		s.touch(true)
		log.Warn("no movements extracted; placeholder added")
		return result
	}

	for _, raw := range raws {
		m := s.fromRaw(sourceFile, raw)
		if m.Incomplete {
			result.Incomplete++
		}
		s.movements = append(s.movements, m)
		result.MovementIDs = append(result.MovementIDs, m.ID)
	}
	s.touch(true)

	log.WithFields(logger.Fields{
		"movements":  len(raws),
		"incomplete": result.Incomplete,
	}).Info("movements ingested")
	return result
}

func (s *Session) fromRaw(sourceFile string, raw models.RawMovement) *models.Movement {
	var problems []string

	date := strings.TrimSpace(raw.Date)
	switch {
	case date == "":
		problems = append(problems, "missing date")
	case !models.IsISODate(date):
		problems = append(problems, fmt.Sprintf("unrecognised date %q", date))
	}

	description := strings.TrimSpace(raw.Description)
	if description == "" {
		problems = append(problems, "missing description")
	}

	amount, ok := extract.CoerceAmount(raw.Amount)
	if !ok {
		problems = append(problems, "missing or non-numeric amount")
	}

	op := s.newOperation(amount)
	if len(problems) > 0 {
		op.ReviewData.Comments = "Incomplete extraction: " + strings.Join(problems, ", ")
	}

	return &models.Movement{
		ID:                 s.newID(),
		Date:               date,
		Description:        description,
		Amount:             amount,
		SourceFile:         sourceFile,
		Operations:         []models.Operation{op},
		LinkedDeclarations: []models.Link{},
		LinkedXMLs:         []models.Link{},
		Incomplete:         len(problems) > 0,
	}
}

func (s *Session) placeholder(sourceFile string) *models.Movement {
	na := models.AxisReview{Status: NotApplicable}
	return &models.Movement{
		ID:          s.newID(),
		Date:        s.now().Format(models.DateLayout),
		Description: fmt.Sprintf("INFO: no movements detected in %s", sourceFile),
		Amount:      decimal.Zero,
		SourceFile:  sourceFile,
		Operations: []models.Operation{{
			ID:              s.newID(),
			Amount:          decimal.Zero,
			IncludeInReview: false,
			ReviewData: models.ReviewData{
				Documental: na,
				Banrep:     na,
				DIAN:       na,
				Comments:   "Automatic check: no transactions detected.",
			},
		}},
		LinkedDeclarations: []models.Link{},
		LinkedXMLs:         []models.Link{},
	}
}

// NormalizeDeclarations turns extracted declaration metadata into processed
// declarations. Missing fields default to "" or zero; records without an ID
// are given one. Records without a file name cannot be associated with a
// declaration file and are dropped with a warning.
func (s *Session) NormalizeDeclarations(raws []models.RawDeclaration) []models.ProcessedDeclaration {
	out := make([]models.ProcessedDeclaration, 0, len(raws))
	for _, raw := range raws {
		fileName := strings.TrimSpace(raw.FileName)
		if fileName == "" {
			s.logger.WithField("declaration_id", raw.ID).Warn("declaration metadata without file name skipped")
			continue
		}

		id := strings.TrimSpace(raw.ID)
		if id == "" {
			id = s.newID()
		}
		amount, _ := extract.CoerceAmount(raw.Amount)

		out = append(out, models.ProcessedDeclaration{
			ID:            id,
			FileName:      fileName,
			Date:          strings.TrimSpace(raw.Date),
			Amount:        amount,
			Number:        strings.TrimSpace(raw.Number),
			Numeral:       strings.TrimSpace(raw.Numeral),
			ContentSample: raw.Content,
		})
	}
	return out
}
