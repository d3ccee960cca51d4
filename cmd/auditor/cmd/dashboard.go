package cmd

import (
	"fmt"
	"os"

	"fx-compliance-auditor/internal/reporter"

	"github.com/spf13/cobra"
)

var (
	dashboardSnapshot string
	dashboardRecords  string
)

// dashboardCmd represents the dashboard command
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Summarise the compliance reviews of an audit",
	Long: `Dashboard counts the review statuses of every operation per axis
(documental, BanRep, DIAN), the findings and their corrections, the
declaration reviews and the operations that need attention first.

When a records directory is given the record review progress is included.

Examples:
  auditor dashboard --snapshot audit.json
  auditor dashboard --snapshot audit.yaml --records ./xml --output-format json`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)

	dashboardCmd.Flags().StringVarP(&dashboardSnapshot, "snapshot", "s", "", "path to the audit snapshot, JSON or YAML (required)")
	dashboardCmd.Flags().StringVarP(&dashboardRecords, "records", "r", "", "directory of record files")
	dashboardCmd.MarkFlagRequired("snapshot")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cmd.Context(), settings, dashboardSnapshot, dashboardRecords)
	if err != nil {
		return err
	}

	report := &reporter.DashboardReport{Stats: ws.Dashboard()}
	if dashboardRecords != "" {
		stats := ws.Records().Stats()
		report.Records = &stats
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Audited %d movements, %d findings\n",
			report.Stats.TotalMovements, report.Stats.TotalFindings)
	}
	return writeReport(settings, report)
}
