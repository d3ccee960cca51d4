// Package records holds the catalog of loaded exchange-operation record
// files. Line content is opaque text; the catalog only stores it, tracks
// each line's review status and comment, and bumps a version counter on
// every change so derived projections know when to rebuild.
package records

import (
	"math"

	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/pkg/errors"
	"fx-compliance-auditor/pkg/logger"

	"github.com/shopspring/decimal"
)

// Catalog is the ordered set of loaded record files. It is not safe for
// concurrent use.
type Catalog struct {
	files   []*models.RecordFile
	version uint64
	logger  logger.Logger
}

// NewCatalog creates a catalog holding copies of the given files. Files
// with an ID already present are skipped.
func NewCatalog(files ...models.RecordFile) *Catalog {
	c := &Catalog{
		logger: logger.GetGlobalLogger().WithComponent("records"),
	}
	for _, f := range files {
		if err := c.Add(f); err != nil {
			c.logger.WithError(err).Warn("record file skipped")
		}
	}
	return c
}

// Version returns a counter that changes whenever any file or line changes
func (c *Catalog) Version() uint64 {
	return c.version
}

// Len returns the number of loaded files
func (c *Catalog) Len() int {
	return len(c.files)
}

// Add appends a file to the catalog
func (c *Catalog) Add(file models.RecordFile) error {
	if file.ID == "" {
		return errors.ValidationError(errors.CodeMissingField, "id", file.ID, nil)
	}
	if _, err := c.find(file.ID); err == nil {
		return errors.GuardError(errors.CodeDuplicateFile, file.ID)
	}

	clone := file.Clone()
	for i := range clone.Lines {
		if clone.Lines[i].Status == "" {
			clone.Lines[i].Status = models.LineStatusPending
		}
	}
	c.files = append(c.files, &clone)
	c.version++

	c.logger.WithFields(logger.Fields{
		"file_id": file.ID,
		"lines":   len(file.Lines),
	}).Debug("record file added")
	return nil
}

// Remove drops a file from the catalog
func (c *Catalog) Remove(fileID string) error {
	for i, f := range c.files {
		if f.ID == fileID {
			c.files = append(c.files[:i], c.files[i+1:]...)
			c.version++
			return nil
		}
	}
	return errors.NotFoundError(errors.CodeRecordNotFound, fileID)
}

// Files returns copies of every file in load order
func (c *Catalog) Files() []models.RecordFile {
	out := make([]models.RecordFile, len(c.files))
	for i, f := range c.files {
		out[i] = f.Clone()
	}
	return out
}

// File returns a copy of one file
func (c *Catalog) File(fileID string) (models.RecordFile, error) {
	f, err := c.find(fileID)
	if err != nil {
		return models.RecordFile{}, err
	}
	return f.Clone(), nil
}

// Line returns a copy of one line
func (c *Catalog) Line(ref models.LineRef) (models.Line, error) {
	_, line, err := c.findLine(ref)
	if err != nil {
		return models.Line{}, err
	}
	return *line, nil
}

// Each calls fn for every line in load order. Lines must not be modified.
func (c *Catalog) Each(fn func(file *models.RecordFile, line *models.Line)) {
	for _, f := range c.files {
		for i := range f.Lines {
			fn(f, &f.Lines[i])
		}
	}
}

func (c *Catalog) find(fileID string) (*models.RecordFile, error) {
	for _, f := range c.files {
		if f.ID == fileID {
			return f, nil
		}
	}
	return nil, errors.NotFoundError(errors.CodeRecordNotFound, fileID)
}

func (c *Catalog) findLine(ref models.LineRef) (*models.RecordFile, *models.Line, error) {
	f, err := c.find(ref.FileID)
	if err != nil {
		return nil, nil, err
	}
	for i := range f.Lines {
		if f.Lines[i].ID == ref.LineID {
			return f, &f.Lines[i], nil
		}
	}
	return nil, nil, errors.NotFoundError(errors.CodeRecordNotFound, ref.String())
}

// UpdateLineContent replaces the raw text of a line
func (c *Catalog) UpdateLineContent(ref models.LineRef, content string) error {
	_, line, err := c.findLine(ref)
	if err != nil {
		return err
	}
	if line.Content == content {
		return nil
	}
	line.Content = content
	c.version++
	c.logger.WithField("line", ref.String()).Debug("line content updated")
	return nil
}

// SetLineComment replaces the auditor comment of a line
func (c *Catalog) SetLineComment(ref models.LineRef, comment string) error {
	_, line, err := c.findLine(ref)
	if err != nil {
		return err
	}
	line.Comment = comment
	c.version++
	return nil
}

// ToggleLineStatus flips a line between pending and reviewed and returns
// the new status
func (c *Catalog) ToggleLineStatus(ref models.LineRef) (models.LineStatus, error) {
	_, line, err := c.findLine(ref)
	if err != nil {
		return "", err
	}
	if line.Status == models.LineStatusReviewed {
		line.Status = models.LineStatusPending
	} else {
		line.Status = models.LineStatusReviewed
	}
	c.version++
	return line.Status, nil
}

// Stats summarises line review progress across the catalog
type Stats struct {
	Files    int `json:"files"`
	Total    int `json:"total"`
	Reviewed int `json:"reviewed"`
	Pending  int `json:"pending"`
	// Percent is the rounded share of reviewed lines, 0 when there are none
	Percent int `json:"percent"`
}

// Stats computes review progress
func (c *Catalog) Stats() Stats {
	s := Stats{Files: len(c.files)}
	c.Each(func(_ *models.RecordFile, line *models.Line) {
		s.Total++
		if line.Status == models.LineStatusReviewed {
			s.Reviewed++
		}
	})
	s.Pending = s.Total - s.Reviewed
	if s.Total > 0 {
		s.Percent = int(math.Round(float64(s.Reviewed) / float64(s.Total) * 100))
	}
	return s
}

// SelectionSummary sums the numeric attributes of a set of selected lines
type SelectionSummary struct {
	Lines          int             `json:"lines"`
	Primary        decimal.Decimal `json:"primary"`
	PrimaryCount   int             `json:"primaryCount"`
	Secondary      decimal.Decimal `json:"secondary"`
	SecondaryCount int             `json:"secondaryCount"`
	Missing        []string        `json:"missing,omitempty"`
}

// SelectionSummary sums the primary and secondary attributes of the given
// lines. Unknown references are reported in Missing and otherwise ignored.
func (c *Catalog) SelectionSummary(ex *extract.Extractor, refs []models.LineRef) SelectionSummary {
	sum := SelectionSummary{Primary: decimal.Zero, Secondary: decimal.Zero}
	seen := make(map[models.LineRef]bool, len(refs))

	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true

		_, line, err := c.findLine(ref)
		if err != nil {
			sum.Missing = append(sum.Missing, ref.String())
			continue
		}
		sum.Lines++

		attrs := ex.Attributes(line.Content)
		if attrs.Primary.Valid {
			sum.Primary = sum.Primary.Add(attrs.Primary.Decimal)
			sum.PrimaryCount++
		}
		if attrs.Secondary.Valid {
			sum.Secondary = sum.Secondary.Add(attrs.Secondary.Decimal)
			sum.SecondaryCount++
		}
	}
	return sum
}
