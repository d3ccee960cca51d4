// Package snapshot reads and writes the plain document exchanged with the
// persistence collaborator: movements with their operations, reviews and
// links, the record files, the declaration files with their extracted
// metadata, and the declaration reviews.
//
// Documents are JSON or YAML, chosen by file extension.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/pkg/errors"
	"fx-compliance-auditor/pkg/logger"

	"github.com/goccy/go-yaml"
)

// CurrentVersion is the document version written by Save
const CurrentVersion = 1

// Format is a snapshot encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is one saved audit
type Document struct {
	Version               int                           `json:"version" yaml:"version"`
	Movements             []models.Movement             `json:"movements" yaml:"movements"`
	RecordFiles           []models.RecordFile           `json:"recordFiles" yaml:"recordFiles"`
	Declarations          []models.DeclarationFile      `json:"declarations" yaml:"declarations"`
	ProcessedDeclarations []models.ProcessedDeclaration `json:"processedDeclarations" yaml:"processedDeclarations"`
	Reviews               []models.DeclarationReview    `json:"reviews" yaml:"reviews"`
}

// FormatFor picks the format of a path from its extension
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported snapshot extension %q: use .json, .yaml or .yml", filepath.Ext(path))
	}
}

// Decode reads a document. Documents without a version are treated as
// version 1; newer versions are rejected.
func Decode(r io.Reader, format Format) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, doc)
	case FormatYAML:
		err = yaml.UnmarshalWithOptions(data, doc, yaml.UseJSONUnmarshaler())
	default:
		err = fmt.Errorf("unknown snapshot format %q", format)
	}
	if err != nil {
		return nil, err
	}

	if doc.Version == 0 {
		doc.Version = CurrentVersion
	}
	if doc.Version > CurrentVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", doc.Version, CurrentVersion)
	}
	return doc, nil
}

// Encode writes a document, stamping it with CurrentVersion
func Encode(w io.Writer, doc *Document, format Format) error {
	out := *doc
	out.Version = CurrentVersion

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(&out)
	case FormatYAML:
		data, err := yaml.MarshalWithOptions(&out,
			yaml.Indent(2),
			yaml.IndentSequence(true),
		)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown snapshot format %q", format)
	}
}

// Load reads a document from path
func Load(path string) (*Document, error) {
	log := logger.GetGlobalLogger().WithComponent("snapshot").WithField("file_path", path)

	format, err := FormatFor(path)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		log.WithError(err).Error("failed to open snapshot")
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeDirectoryError, path, err)
	}
	defer file.Close()

	doc, err := Decode(file, format)
	if err != nil {
		log.WithError(err).Error("failed to decode snapshot")
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, err)
	}

	log.WithFields(logger.Fields{
		"movements":    len(doc.Movements),
		"record_files": len(doc.RecordFiles),
		"declarations": len(doc.Declarations),
	}).Debug("snapshot loaded")
	return doc, nil
}

// Save writes a document to path. The file is replaced only once the whole
// document has been written.
func Save(path string, doc *Document) error {
	format, err := FormatFor(path)
	if err != nil {
		return errors.ParseError(errors.CodeInvalidFormat, path, err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, doc, format); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "snapshot encoding", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return errors.FileError(errors.CodeDirectoryError, filepath.Dir(path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}

	logger.GetGlobalLogger().WithComponent("snapshot").WithFields(logger.Fields{
		"file_path": path,
		"format":    format,
		"movements": len(doc.Movements),
	}).Debug("snapshot saved")
	return nil
}
