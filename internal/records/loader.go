package records

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/pkg/errors"
	"fx-compliance-auditor/pkg/logger"
)

// maxLineSize bounds a single record line; exports sometimes put a whole
// document on one line
const maxLineSize = 16 * 1024 * 1024

// LoaderConfig controls which files a Loader reads
type LoaderConfig struct {
	// Extensions are matched case-insensitively, including the dot
	Extensions []string
	// SkipBlank drops lines that contain only whitespace
	SkipBlank bool
}

// DefaultLoaderConfig returns the loader defaults
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		Extensions: []string{".xml", ".txt"},
		SkipBlank:  true,
	}
}

// Loader reads record files from disk, one Line per text line. Line IDs are
// derived from the physical line number so they survive a reload.
type Loader struct {
	config *LoaderConfig
	logger logger.Logger
}

// NewLoader creates a loader; a nil config uses DefaultLoaderConfig
func NewLoader(config *LoaderConfig) *Loader {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	return &Loader{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("record_loader"),
	}
}

// LineID returns the stable line ID for a 1-based line number
func LineID(number int) string {
	return fmt.Sprintf("L%05d", number)
}

// LoadFile reads one record file. The file ID is its base name.
func (l *Loader) LoadFile(path string) (models.RecordFile, error) {
	log := l.logger.WithField("file_path", path)

	file, err := os.Open(path)
	if err != nil {
		log.WithError(err).Error("failed to open record file")
		if os.IsNotExist(err) {
			return models.RecordFile{}, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return models.RecordFile{}, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return models.RecordFile{}, errors.FileError(errors.CodeDirectoryError, path, err)
	}
	defer file.Close()

	name := filepath.Base(path)
	record := models.RecordFile{ID: name, Name: name}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	number := 0
	for scanner.Scan() {
		number++
		raw := scanner.Bytes()
		if !utf8.Valid(raw) {
			return models.RecordFile{}, errors.ParseError(errors.CodeEncodingError, path,
				fmt.Errorf("invalid UTF-8 on line %d", number))
		}

		content := strings.TrimRight(string(raw), "\r")
		if l.config.SkipBlank && strings.TrimSpace(content) == "" {
			continue
		}
		record.Lines = append(record.Lines, models.Line{
			ID:      LineID(number),
			Content: content,
			Status:  models.LineStatusPending,
		})
	}
	if err := scanner.Err(); err != nil {
		return models.RecordFile{}, errors.ParseError(errors.CodeInvalidFormat, path, err)
	}

	log.WithField("lines", len(record.Lines)).Debug("record file loaded")
	return record, nil
}

// LoadDir reads every matching file in dir, sorted by name. Subdirectories
// are not descended into. When several files fail the error is an
// *errors.ErrorSummary listing all of them.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]models.RecordFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, dir, err)
		}
		return nil, errors.FileError(errors.CodeDirectoryError, dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !l.accepts(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	files := make([]models.RecordFile, 0, len(names))
	var failed []*errors.AuditError
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError, "record loading cancelled").
				WithContext("directory", dir)
		}
		f, err := l.LoadFile(filepath.Join(dir, name))
		if err != nil {
			failed = append(failed, errors.WrapIfNeeded(err, errors.CategoryFile, errors.CodeDirectoryError,
				fmt.Sprintf("failed to load record file %s", name)))
			continue
		}
		files = append(files, f)
	}

	// every file is read so one run reports all of the bad ones
	switch len(failed) {
	case 0:
	case 1:
		return nil, failed[0]
	default:
		summary := errors.NewErrorSummary(failed)
		l.logger.WithFields(logger.Fields{
			"directory": dir,
			"failed":    summary.Total,
		}).Error("record files failed to load")
		return nil, summary
	}

	l.logger.WithFields(logger.Fields{
		"directory": dir,
		"files":     len(files),
	}).Info("record directory loaded")
	return files, nil
}

func (l *Loader) accepts(name string) bool {
	if len(l.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range l.config.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
