package cmd

import (
	"fmt"
	"os"

	"fx-compliance-auditor/internal/reporter"

	"github.com/spf13/cobra"
)

var (
	matchSnapshot string
	matchRecords  string
	matchAccept   bool
)

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Propose record evidence for each movement",
	Long: `Match looks for the record line that supports each movement. Movements
with explicit links keep them; the others get the first line whose amount
attribute is within tolerance, preferring lines that also carry the
movement's date.

With --accept every proposed line becomes an explicit link and the
snapshot is saved.

Examples:
  auditor match --snapshot audit.json --records ./xml
  auditor match --snapshot audit.json --records ./xml --match-tolerance 0.5
  auditor match --snapshot audit.json --records ./xml --accept`,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringVarP(&matchSnapshot, "snapshot", "s", "", "path to the audit snapshot, JSON or YAML (required)")
	matchCmd.Flags().StringVarP(&matchRecords, "records", "r", "", "directory of record files (required)")
	matchCmd.Flags().BoolVar(&matchAccept, "accept", false, "turn every proposal into an explicit link and save the snapshot")
	matchCmd.MarkFlagRequired("snapshot")
	matchCmd.MarkFlagRequired("records")
}

func runMatch(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cmd.Context(), settings, matchSnapshot, matchRecords)
	if err != nil {
		return err
	}

	if matchAccept {
		accepted := 0
		proposals, _ := ws.Proposals()
		for _, p := range proposals {
			ok, err := ws.AcceptProposal(p.MovementID)
			if err != nil {
				return err
			}
			if ok {
				accepted++
			}
		}
		if err := saveWorkspace(ws, matchSnapshot); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Accepted %d proposals\n", accepted)
		}
	}

	proposals, summary := ws.Proposals()
	return writeReport(settings, &reporter.MatchReport{
		Movements: ws.Session().Movements(),
		Proposals: proposals,
		Summary:   summary,
	})
}
