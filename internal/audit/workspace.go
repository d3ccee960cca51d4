// Package audit wires the components of one audit into a Workspace.
//
// A Workspace owns the movement session, the record catalog and the
// declaration catalog, and serves every derived view (auto-match proposals,
// declaration balances, duplicate groups, compliance statistics) from that
// current state. It is loaded from and saved back to a snapshot document.
//
// Like the session it wraps, a Workspace is not safe for concurrent use.
package audit

import (
	"context"
	"strings"
	"time"

	"fx-compliance-auditor/internal/compliance"
	"fx-compliance-auditor/internal/duplicates"
	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/linker"
	"fx-compliance-auditor/internal/matcher"
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/internal/records"
	"fx-compliance-auditor/internal/session"
	"fx-compliance-auditor/internal/snapshot"
	"fx-compliance-auditor/pkg/errors"
	"fx-compliance-auditor/pkg/logger"
)

// Workspace is the controller of one audit
type Workspace struct {
	config     *Config
	session    *session.Session
	records    *records.Catalog
	extractor  *extract.Extractor
	matcher    *matcher.Matcher
	grouper    *duplicates.Grouper
	aggregator *compliance.Aggregator
	linker     *linker.Linker

	declarations []models.DeclarationFile
	processed    []models.ProcessedDeclaration
	reviews      []models.DeclarationReview

	now    func() time.Time
	logger logger.Logger
}

// New creates a workspace from a snapshot document. A nil document starts
// an empty audit. Session options are passed through to the movement session.
func New(config *Config, doc *snapshot.Document, opts ...session.Option) (*Workspace, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "workspace", config.Matching, err)
	}
	if doc == nil {
		doc = &snapshot.Document{Version: snapshot.CurrentVersion}
	}

	log := logger.GetGlobalLogger().WithComponent("workspace")

	m, err := matcher.NewMatcher(config.Matching)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", config.Matching, err)
	}
	ex, err := extract.NewExtractor(config.Matching.Attributes)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "attributes", config.Matching.Attributes, err)
	}

	opts = append([]session.Option{session.WithSplitTolerance(config.SplitTolerance)}, opts...)
	catalog := records.NewCatalog(doc.RecordFiles...)

	w := &Workspace{
		config:       config,
		session:      session.New(doc.Movements, opts...),
		records:      catalog,
		extractor:    ex,
		matcher:      m,
		grouper:      duplicates.NewGrouper(catalog, ex, config.DuplicateTolerance),
		declarations: append([]models.DeclarationFile(nil), doc.Declarations...),
		processed:    append([]models.ProcessedDeclaration(nil), doc.ProcessedDeclarations...),
		reviews:      append([]models.DeclarationReview(nil), doc.Reviews...),
		aggregator: compliance.NewAggregator(
			compliance.WithTopFindings(config.TopFindings),
			compliance.WithSplitTolerance(config.SplitTolerance),
		),
		now:    time.Now,
		logger: log,
	}
	w.rebuildLinker()

	log.WithFields(logger.Fields{
		"movements":    w.session.Len(),
		"record_files": w.records.Len(),
		"declarations": len(w.declarations),
		"config":       config.Matching.String(),
	}).Info("workspace opened")
	return w, nil
}

func (w *Workspace) rebuildLinker() {
	w.linker = linker.New(linker.NewCatalog(w.declarations, w.processed), w.session)
	w.linker.SetExactTolerance(w.config.ExactTolerance)
}

// Config returns the workspace configuration
func (w *Workspace) Config() *Config {
	return w.config
}

// Session returns the movement session
func (w *Workspace) Session() *session.Session {
	return w.session
}

// Records returns the record catalog
func (w *Workspace) Records() *records.Catalog {
	return w.records
}

// Linker returns the declaration linker
func (w *Workspace) Linker() *linker.Linker {
	return w.linker
}

// Extractor returns the attribute extractor used by matching and grouping
func (w *Workspace) Extractor() *extract.Extractor {
	return w.extractor
}

// LoadRecords adds every record file found in dir. Files already in the
// catalog are skipped. It returns the number of files added.
func (w *Workspace) LoadRecords(ctx context.Context, dir string, config *records.LoaderConfig) (int, error) {
	files, err := records.NewLoader(config).LoadDir(ctx, dir)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, f := range files {
		if err := w.records.Add(f); err != nil {
			if errors.HasCode(err, errors.CodeDuplicateFile) {
				w.logger.WithField("file_id", f.ID).Warn("record file already loaded, skipping")
				continue
			}
			return added, err
		}
		added++
	}

	w.logger.WithFields(logger.Fields{
		"directory": dir,
		"added":     added,
		"total":     w.records.Len(),
	}).Info("record files loaded")
	return added, nil
}

// IngestStatement adds the transactions extracted from one bank statement
func (w *Workspace) IngestStatement(sourceFile string, raws []models.RawMovement) session.IngestResult {
	return w.session.IngestMovements(sourceFile, raws)
}

// AddDeclarations adds declaration files and the metadata extracted from
// them. Files whose name is already known are ignored.
func (w *Workspace) AddDeclarations(files []models.DeclarationFile, raws []models.RawDeclaration) {
	known := make(map[string]bool, len(w.declarations))
	for _, f := range w.declarations {
		known[f.Name] = true
	}
	for _, f := range files {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" || known[f.Name] {
			continue
		}
		known[f.Name] = true
		w.declarations = append(w.declarations, f)
	}

	w.processed = append(w.processed, w.session.NormalizeDeclarations(raws)...)
	w.rebuildLinker()

	w.logger.WithFields(logger.Fields{
		"declarations": len(w.declarations),
		"metadata":     len(w.processed),
	}).Debug("declarations added")
}

// Proposals runs the auto-matcher over every movement
func (w *Workspace) Proposals() ([]matcher.Proposal, matcher.MatchSummary) {
	return w.matcher.ProposeAll(w.session.Movements(), w.records)
}

// Proposal returns the record evidence of one movement
func (w *Workspace) Proposal(movementID string) (matcher.Proposal, error) {
	m, err := w.session.Movement(movementID)
	if err != nil {
		return matcher.Proposal{}, err
	}
	return w.matcher.Propose(&m, w.records), nil
}

// AcceptProposal turns the auto-match of a movement into an explicit link
func (w *Workspace) AcceptProposal(movementID string) (bool, error) {
	p, err := w.Proposal(movementID)
	if err != nil {
		return false, err
	}
	if p.Auto == nil || len(p.Explicit) > 0 {
		return false, nil
	}

	file, err := w.records.File(p.Auto.FileID)
	if err != nil {
		return false, err
	}
	if err := w.session.LinkXML(movementID, file, p.Auto.LineID, ""); err != nil {
		return false, err
	}
	return true, nil
}

// Duplicates returns the duplicate identifier groups and their summary
func (w *Workspace) Duplicates() ([]models.DuplicateIdentifierGroup, duplicates.Summary) {
	return w.grouper.Groups(), w.grouper.Summary()
}

// Grouper returns the duplicate identifier grouper
func (w *Workspace) Grouper() *duplicates.Grouper {
	return w.grouper
}

// Dashboard computes the compliance statistics of the current state
func (w *Workspace) Dashboard() compliance.Stats {
	return w.aggregator.Aggregate(w.session.Movements(), w.reviews)
}

// Declarations returns the declaration files in load order
func (w *Workspace) Declarations() []models.DeclarationFile {
	return append([]models.DeclarationFile(nil), w.declarations...)
}

// Reviews returns the declaration reviews
func (w *Workspace) Reviews() []models.DeclarationReview {
	return append([]models.DeclarationReview(nil), w.reviews...)
}

// ReviewDeclaration records the auditor's verdict on a declaration file,
// replacing any earlier verdict on the same file.
func (w *Workspace) ReviewDeclaration(fileName string, status models.ReviewStatus, comments, reviewer string) error {
	if !status.IsValid() {
		return errors.ValidationError(errors.CodeInvalidStatus, "status", status, nil)
	}

	file, ok := w.linker.Catalog().File(fileName)
	if !ok {
		return errors.NotFoundError(errors.CodeDeclarationNotFound, fileName)
	}

	review := models.DeclarationReview{
		FileID:          file.ID,
		FileName:        file.Name,
		Status:          status,
		AuditorComments: comments,
		ReviewedBy:      reviewer,
		ReviewedAt:      w.now().UTC().Format(time.RFC3339),
	}

	replaced := false
	for i := range w.reviews {
		if w.reviews[i].FileName == file.Name {
			w.reviews[i] = review
			replaced = true
			break
		}
	}
	if !replaced {
		w.reviews = append(w.reviews, review)
	}

	w.logger.WithFields(logger.Fields{
		"file_name": file.Name,
		"status":    status,
	}).Debug("declaration reviewed")
	return nil
}

// Snapshot returns the current state as a snapshot document
func (w *Workspace) Snapshot() *snapshot.Document {
	return &snapshot.Document{
		Version:               snapshot.CurrentVersion,
		Movements:             w.session.Movements(),
		RecordFiles:           w.records.Files(),
		Declarations:          w.Declarations(),
		ProcessedDeclarations: append([]models.ProcessedDeclaration(nil), w.processed...),
		Reviews:               w.Reviews(),
	}
}
