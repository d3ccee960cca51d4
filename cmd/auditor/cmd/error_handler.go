package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"fx-compliance-auditor/pkg/errors"
	"fx-compliance-auditor/pkg/logger"
)

// CLIErrorHandler turns command errors into messages and exit codes
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     os.Stderr,
		verbose: verbose,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("command failed")

	if summary, ok := err.(*errors.ErrorSummary); ok {
		return h.handleErrorSummary(summary)
	}
	if auditErr, ok := errors.AsAuditError(err); ok {
		return h.handleAuditError(auditErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleAuditError(err *errors.AuditError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	if help := h.getCategoryHelp(err.Category); help != "" {
		fmt.Fprintf(h.out, "\n%s\n", help)
	}

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// summaryCategories orders the help printed for an error summary
var summaryCategories = []errors.ErrorCategory{
	errors.CategoryFile,
	errors.CategoryParse,
	errors.CategoryValidation,
	errors.CategoryConfiguration,
	errors.CategoryNotFound,
}

func (h *CLIErrorHandler) handleErrorSummary(summary *errors.ErrorSummary) int {
	fmt.Fprintf(h.out, "Error: %s\n", summary.Error())
	for _, err := range summary.SampleErrors {
		fmt.Fprintf(h.out, "  - %s\n", err.Message)
	}
	if more := summary.Total - len(summary.SampleErrors); more > 0 {
		fmt.Fprintf(h.out, "  ... and %d more\n", more)
	}

	for _, category := range summaryCategories {
		if !summary.HasCategory(category) {
			continue
		}
		if help := h.getCategoryHelp(category); help != "" {
			fmt.Fprintf(h.out, "\n%s\n", help)
		}
	}

	return summary.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case os.IsNotExist(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case os.IsPermission(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case h.isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if strings.Contains(err.Error(), "required flag") || strings.Contains(err.Error(), "unknown flag") {
		fmt.Fprintf(h.out, "Run 'auditor --help' for usage.\n")
	}
	return 1
}

func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check that the snapshot file and records directory exist
• Verify the path is correct (use absolute paths if needed)
• Ensure you have permission to read them and to write the output file`

	case errors.CategoryParse:
		return `Parse error help:
• Snapshots must be JSON (.json) or YAML (.yaml, .yml)
• Check the file for truncated or hand-edited sections
• Ensure the file uses UTF-8 encoding`

	case errors.CategoryValidation:
		return `Validation error help:
• Dates use YYYY-MM-DD
• Amounts are decimal numbers without currency symbols
• Declaration review statuses are pending, approved or correction_needed`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and AUDITOR_ environment variables
• Verify configuration file syntax if using --config
• Use 'auditor <command> --help' to see all available options`

	case errors.CategoryNotFound:
		return `Not found help:
• Check the movement or declaration identifier
• Run 'auditor match --snapshot <file> --output-format csv' to list movement IDs`

	default:
		return ""
	}
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") || strings.Contains(errStr, "disk full")
}
