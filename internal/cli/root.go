// Package cli wires configuration, sources, sinks and stores into the
// tablesync commands.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tablesync",
		Short: "tablesync - incremental table export to object storage",
		Long: `tablesync extracts rows from relational tables in bounded chunks, writes each
chunk as a JSON file to object storage and remembers a per-table watermark so the
next run only picks up newer rows.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(NewSyncCmd(), NewPlanCmd(), NewWatermarkCmd())

	return rootCmd
}
