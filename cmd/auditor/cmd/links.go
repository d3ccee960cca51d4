package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"fx-compliance-auditor/internal/linker"
	"fx-compliance-auditor/internal/reporter"

	"github.com/spf13/cobra"
)

var (
	linksSnapshot string
	linksMovement string
	linksSearch   string
	linksSelect   []string
)

// linksCmd represents the links command
var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Show or save the declarations linked to a movement",
	Long: `Links lists the declaration documents available to a movement with the
balance of the current selection. Declarations already linked to another
movement are reported as conflicts.

With --select the given declarations replace the movement's links and the
snapshot is saved. Conflicts are reported but never block the save.

Examples:
  auditor links --snapshot audit.json --movement 4f1c...
  auditor links --snapshot audit.json --movement 4f1c... --search 1510
  auditor links --snapshot audit.json --movement 4f1c... --select dec-1.pdf,dec-2.pdf`,
	RunE: runLinks,
}

func init() {
	rootCmd.AddCommand(linksCmd)

	linksCmd.Flags().StringVarP(&linksSnapshot, "snapshot", "s", "", "path to the audit snapshot, JSON or YAML (required)")
	linksCmd.Flags().StringVarP(&linksMovement, "movement", "m", "", "movement ID (required)")
	linksCmd.Flags().StringVarP(&linksSearch, "search", "q", "", "filter declarations by name, number, date or numeral")
	linksCmd.Flags().StringSliceVar(&linksSelect, "select", nil, "declaration file names to link, replacing the current selection")
	linksCmd.MarkFlagRequired("snapshot")
	linksCmd.MarkFlagRequired("movement")
}

func runLinks(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cmd.Context(), settings, linksSnapshot, "")
	if err != nil {
		return err
	}

	movement, err := ws.Session().Movement(linksMovement)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("select") {
		result, err := ws.Linker().Save(linksMovement, linksSelect)
		if err != nil {
			return err
		}
		reportConflicts(result.Conflicts)
		if err := saveWorkspace(ws, linksSnapshot); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Linked %d declarations, balance %s\n", result.Links, result.Balance.State)
		}
		if movement, err = ws.Session().Movement(linksMovement); err != nil {
			return err
		}
	}

	selection, err := ws.Linker().CurrentSelection(linksMovement)
	if err != nil {
		return err
	}
	balance, err := ws.Linker().Remaining(linksMovement, selection)
	if err != nil {
		return err
	}

	return writeReport(settings, &reporter.CandidateReport{
		Movement:   movement,
		Balance:    balance,
		Candidates: ws.Linker().Candidates(linksMovement, selection, linksSearch),
	})
}

func reportConflicts(conflicts map[string][]linker.Owner) {
	if len(conflicts) == 0 {
		return
	}

	names := make([]string, 0, len(conflicts))
	for name := range conflicts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(os.Stderr, "Warning: %d declarations are also linked to other movements:\n", len(names))
	for _, name := range names {
		var owners []string
		for _, o := range conflicts[name] {
			owners = append(owners, o.Description)
		}
		fmt.Fprintf(os.Stderr, "  %s: %s\n", name, strings.Join(owners, ", "))
	}
}
