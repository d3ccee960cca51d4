package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fx-compliance-auditor/cmd/auditor/config"
	"fx-compliance-auditor/internal/audit"
	"fx-compliance-auditor/internal/records"
	"fx-compliance-auditor/internal/reporter"
	"fx-compliance-auditor/internal/snapshot"
	"fx-compliance-auditor/pkg/errors"
)

// openWorkspace builds a workspace from an optional snapshot and an
// optional record directory
func openWorkspace(ctx context.Context, settings *config.Config, snapshotPath, recordsDir string) (*audit.Workspace, error) {
	var doc *snapshot.Document
	if snapshotPath != "" {
		if err := validateFileExists(snapshotPath, "snapshot file"); err != nil {
			return nil, err
		}
		loaded, err := snapshot.Load(snapshotPath)
		if err != nil {
			return nil, err
		}
		doc = loaded
	}

	ws, err := audit.New(settings.ToAuditConfig(), doc)
	if err != nil {
		return nil, err
	}

	if recordsDir != "" {
		if err := validateDirExists(recordsDir, "records directory"); err != nil {
			return nil, err
		}
		added, err := ws.LoadRecords(ctx, recordsDir, records.DefaultLoaderConfig())
		if err != nil {
			return nil, err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Loaded %d record files from %s\n", added, recordsDir)
		}
	}

	return ws, nil
}

// saveWorkspace writes the workspace back to its snapshot file
func saveWorkspace(ws *audit.Workspace, snapshotPath string) error {
	if err := snapshot.Save(snapshotPath, ws.Snapshot()); err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Saved %s\n", snapshotPath)
	}
	return nil
}

// writeReport renders report to the output file, or stdout when none is set
func writeReport(settings *config.Config, report reporter.Report) error {
	generator, err := reporter.NewSafeReportGenerator(settings.ReportConfig(), nil)
	if err != nil {
		return err
	}

	if outputFile == "" {
		return generator.GenerateReportSafely(report, os.Stdout)
	}

	if dir := filepath.Dir(outputFile); dir != "." {
		if err := validateDirExists(dir, "output directory"); err != nil {
			return err
		}
	}
	return generator.WriteToFile(report, outputFile)
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ValidationError(errors.CodeMissingField, description, nil, nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).
			WithContext("description", description)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, filePath, fmt.Errorf("%s is a directory, expected a file", description))
	}

	return nil
}

func validateDirExists(dirPath, description string) error {
	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, dirPath, err).
			WithContext("description", description)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, dirPath, err)
	}

	if !info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, dirPath, fmt.Errorf("%s is not a directory", description))
	}

	return nil
}
