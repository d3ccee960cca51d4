package cmd

import (
	"fmt"

	"fx-compliance-auditor/internal/snapshot"

	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "auditor %s\n", version)
		fmt.Fprintf(out, "  commit:           %s\n", commit)
		fmt.Fprintf(out, "  built:            %s\n", date)
		fmt.Fprintf(out, "  snapshot version: %d\n", snapshot.CurrentVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
