package cmd

import (
	"fmt"
	"os"

	"fx-compliance-auditor/internal/reporter"

	"github.com/spf13/cobra"
)

var duplicatesRecords string

// duplicatesCmd represents the duplicates command
var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Group record lines that repeat a declaration identifier",
	Long: `Duplicates finds declaration identifiers that appear on more than one
record line, across every file of the directory. Groups whose amounts
disagree by more than the match tolerance are marked inconsistent.

Examples:
  auditor duplicates --records ./xml
  auditor duplicates --records ./xml --output-format csv --output-file duplicates.csv`,
	RunE: runDuplicates,
}

func init() {
	rootCmd.AddCommand(duplicatesCmd)

	duplicatesCmd.Flags().StringVarP(&duplicatesRecords, "records", "r", "", "directory of record files (required)")
	duplicatesCmd.MarkFlagRequired("records")
}

func runDuplicates(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cmd.Context(), settings, "", duplicatesRecords)
	if err != nil {
		return err
	}

	groups, summary := ws.Duplicates()
	if verbose {
		fmt.Fprintf(os.Stderr, "Found %d repeated identifiers, %d inconsistent\n", summary.Groups, summary.Inconsistent)
	}
	return writeReport(settings, &reporter.DuplicateReport{Groups: groups, Summary: summary})
}
