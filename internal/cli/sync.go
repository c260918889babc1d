package cli

import (
	"github.com/spf13/cobra"
)

type SyncOptions struct {
	TablesFile string
	Tables     []string
	ChunkSize  int
	Workers    int
	DryRun     bool
}

func (o *SyncOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.TablesFile, "tables", "f", "", "Path to the table list (default $TABLES_CONFIG or tables.yaml)")
	cmd.Flags().StringSliceVarP(&o.Tables, "table", "t", nil, "Only process the named table (repeatable)")
}

func NewSyncCmd() *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Export new rows of every configured table",
		RunE: func(c *cobra.Command, args []string) error {
			return runSync(c, opts)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().IntVarP(&opts.ChunkSize, "chunk-size", "c", 0, "Rows per chunk (default $CHUNK_SIZE or 300000)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Tables processed concurrently (default $SYNC_WORKERS or 1)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Extract and serialize without uploading or committing watermarks")

	return cmd
}

func NewPlanCmd() *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the query each table would run with its current watermark",
		RunE: func(c *cobra.Command, args []string) error {
			return runPlan(c, opts)
		},
	}

	opts.addFlags(cmd)
	return cmd
}
