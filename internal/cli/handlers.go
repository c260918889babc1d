package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/BartekS5/tablesync/internal/config"
	"github.com/BartekS5/tablesync/internal/etl"
	"github.com/BartekS5/tablesync/internal/sink"
	"github.com/BartekS5/tablesync/internal/state"
	"github.com/BartekS5/tablesync/pkg/database"
	"github.com/BartekS5/tablesync/pkg/logger"
	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/spf13/cobra"
)

type watermarkStore interface {
	etl.WatermarkStore
	List(ctx context.Context) ([]models.Watermark, error)
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	ctx := cmd.Context()

	cfg, tables, err := loadRun(opts)
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	dialect, err := etl.DialectFor(cfg.Source.Driver)
	if err != nil {
		return err
	}

	db, err := database.ConnectSQL(cfg.Source.Driver, cfg.Source.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeStore, err := openStore(cfg.State)
	if err != nil {
		return err
	}
	defer closeStore()

	var snk etl.Sink
	if !opts.DryRun {
		s, err := sink.New(ctx, cfg.Sink)
		if err != nil {
			return err
		}
		snk = s
	}

	orch := etl.NewOrchestrator(
		etl.NewExtractor(etl.NewSQLExecutor(db), dialect, cfg.ChunkSize),
		etl.NewJSONSerializer(),
		snk,
		store,
		etl.Options{
			Workers:     cfg.Workers,
			TempDir:     cfg.TempDir,
			RecoveryDir: cfg.RecoveryDir,
			DryRun:      opts.DryRun,
		},
		logger.With("orchestrator"),
	)

	logger.Infof("Starting sync of %d table(s). Chunk size: %d, Workers: %d, DryRun: %v",
		len(tables), cfg.ChunkSize, cfg.Workers, opts.DryRun)
	report := orch.Run(ctx, tables)
	printReport(cmd.OutOrStdout(), report)

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d tables failed", len(failed), len(report.Tables))
	}
	return nil
}

func runPlan(cmd *cobra.Command, opts *SyncOptions) error {
	ctx := cmd.Context()

	cfg, tables, err := loadRun(opts)
	if err != nil {
		return err
	}
	dialect, err := etl.DialectFor(cfg.Source.Driver)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg.State)
	if err != nil {
		return err
	}
	defer closeStore()

	out := cmd.OutOrStdout()
	for _, t := range tables {
		wm := models.NoWatermark
		if t.Incremental {
			stored, err := store.Get(ctx, t.Name)
			if err != nil {
				fmt.Fprintf(out, "%s: watermark unreadable (%v), using %s\n", t.Name, err, models.NoWatermark)
				stored = models.NoWatermark
			}
			wm = stored
		}
		q, err := etl.BuildQuery(dialect, t, wm)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", t.Name, err)
			continue
		}
		fmt.Fprintf(out, "%s: %s", t.Name, q.SQL)
		if len(q.Args) > 0 {
			fmt.Fprintf(out, "  -- args: %v", q.Args)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runWatermarkGet(cmd *cobra.Command, table string) error {
	store, closeStore, err := openStateStore()
	if err != nil {
		return err
	}
	defer closeStore()

	v, err := store.Get(cmd.Context(), table)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

func runWatermarkSet(cmd *cobra.Command, tablesFile, table, value string) error {
	if tablesFile != "" {
		tables, err := config.LoadTables(tablesFile)
		if err != nil {
			return err
		}
		spec, err := config.FilterTables(tables, []string{table})
		if err != nil {
			return err
		}
		if spec[0].Incremental {
			normalized, err := etl.NormalizeWatermark(spec[0].IncrementalColumnType, value)
			if err != nil {
				return err
			}
			value = normalized
		}
	}

	store, closeStore, err := openStateStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Set(cmd.Context(), table, value); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", table, value)
	return nil
}

func runWatermarkList(cmd *cobra.Command) error {
	store, closeStore, err := openStateStore()
	if err != nil {
		return err
	}
	defer closeStore()

	list, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, wm := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", wm.Table, wm.Value)
	}
	return nil
}

// loadRun reads the environment, applies flag overrides and loads the tables.
func loadRun(opts *SyncOptions) (*config.Config, []models.TableSyncSpec, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if opts.TablesFile != "" {
		cfg.TablesFile = opts.TablesFile
	}
	if opts.ChunkSize != 0 {
		cfg.ChunkSize = opts.ChunkSize
	}
	if opts.Workers != 0 {
		cfg.Workers = opts.Workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	tables, err := config.LoadTables(cfg.TablesFile)
	if err != nil {
		return nil, nil, err
	}
	tables, err = config.FilterTables(tables, opts.Tables)
	if err != nil {
		return nil, nil, err
	}
	return cfg, tables, nil
}

func openStateStore() (watermarkStore, func(), error) {
	cfg, err := config.LoadStateConfig()
	if err != nil {
		return nil, nil, err
	}
	return openStore(cfg)
}

func openStore(cfg config.StateConfig) (watermarkStore, func(), error) {
	switch cfg.Backend {
	case "mongo":
		client, err := database.ConnectMongo(cfg.MongoConnString)
		if err != nil {
			return nil, nil, err
		}
		store := state.NewMongoStore(client, cfg.MongoDatabase, cfg.MongoCollection)
		return store, func() { database.DisconnectMongo(client) }, nil
	default:
		return state.NewFileStore(cfg.FilePath), func() {}, nil
	}
}

func printReport(w io.Writer, report *etl.Report) {
	fmt.Fprintln(w, "----------------------------------")
	for _, t := range report.Tables {
		switch {
		case t.Failed():
			fmt.Fprintf(w, "%-30s FAILED  chunks=%d rows=%d error=%v\n", t.Table, t.Chunks, t.Rows, t.Err)
			if t.RetainedArtifact != "" {
				fmt.Fprintf(w, "%-30s         retained artifact: %s\n", "", t.RetainedArtifact)
			}
		default:
			wm := t.NewWatermark
			if !t.Committed {
				wm = "(unchanged)"
			}
			fmt.Fprintf(w, "%-30s OK      chunks=%d rows=%d watermark=%s\n", t.Table, t.Chunks, t.Rows, wm)
		}
		for _, warning := range t.Warnings {
			fmt.Fprintf(w, "%-30s WARNING %s\n", "", warning)
		}
	}
	fmt.Fprintln(w, "----------------------------------")
}
