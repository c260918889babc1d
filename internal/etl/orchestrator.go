package etl

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/go-faster/errors"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle position of one table's sync.
type State string

const (
	StateIdle       State = "idle"
	StateQuerying   State = "querying"
	StateStreaming  State = "streaming"
	StateCommitting State = "committing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// TableResult is the outcome of syncing one table.
type TableResult struct {
	Table          string
	RunID          string
	State          State
	Chunks         int
	Rows           int64
	Artifacts      []string
	PriorWatermark string
	NewWatermark   string
	Committed      bool
	Warnings       []string
	// RetainedArtifact is the local path of an artifact kept after a failed upload.
	RetainedArtifact string
	Duration         time.Duration
	Err              error
}

func (r TableResult) Failed() bool {
	return r.State == StateFailed
}

// Report collects the results of a Run in input order.
type Report struct {
	Tables []TableResult
}

// Failed returns the tables that did not finish.
func (r *Report) Failed() []TableResult {
	var out []TableResult
	for _, t := range r.Tables {
		if t.Failed() {
			out = append(out, t)
		}
	}
	return out
}

type Options struct {
	// Workers bounds how many tables sync at the same time.
	Workers     int
	TempDir     string
	RecoveryDir string
	// DryRun extracts and serializes but neither uploads nor commits.
	DryRun bool
}

// Orchestrator drives tables through extraction, delivery and watermark commit.
type Orchestrator struct {
	extractor  *Extractor
	serializer Serializer
	sink       Sink
	store      WatermarkStore
	opts       Options
	log        zerolog.Logger

	now      func() time.Time
	newRunID func() string
}

func NewOrchestrator(ext *Extractor, ser Serializer, sink Sink, store WatermarkStore, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Orchestrator{
		extractor:  ext,
		serializer: ser,
		sink:       sink,
		store:      store,
		opts:       opts,
		log:        log,
		now:        time.Now,
		newRunID:   func() string { return ulid.Make().String() },
	}
}

// Run syncs every table. Tables are independent: a failure is recorded in its
// result and does not stop the others.
func (o *Orchestrator) Run(ctx context.Context, specs []models.TableSyncSpec) *Report {
	results := make([]TableResult, len(specs))

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			results[i] = o.SyncTable(ctx, spec)
			return nil
		})
	}
	_ = g.Wait()

	return &Report{Tables: results}
}

// SyncTable runs one table from Idle to Done or Failed.
func (o *Orchestrator) SyncTable(ctx context.Context, spec models.TableSyncSpec) (res TableResult) {
	start := o.now()
	res = TableResult{Table: spec.Name, RunID: o.newRunID(), State: StateIdle}
	log := o.log.With().Str("table", spec.Name).Str("run_id", res.RunID).Logger()

	defer func() {
		res.Duration = o.now().Sub(start)
		if res.State == StateFailed {
			log.Error().Err(res.Err).Str("kind", errString(KindOf(res.Err))).
				Int("chunks", res.Chunks).Int64("rows", res.Rows).
				Str("retained_artifact", res.RetainedArtifact).
				Msg("sync failed")
			return
		}
		rate := 0.0
		if res.Duration.Seconds() > 0 {
			rate = float64(res.Rows) / res.Duration.Seconds()
		}
		log.Info().Int("chunks", res.Chunks).Int64("rows", res.Rows).
			Str("watermark", res.NewWatermark).Bool("committed", res.Committed).
			Float64("rows_per_sec", rate).Dur("duration", res.Duration).
			Msg("sync finished")
	}()

	fail := func(kind, err error) TableResult {
		res.State = StateFailed
		res.Err = &SyncError{Table: spec.Name, Kind: kind, Err: err}
		return res
	}
	warn := func(msg string, err error) {
		log.Warn().Err(err).Msg(msg)
		res.Warnings = append(res.Warnings, msg+": "+err.Error())
	}

	log.Info().Bool("incremental", spec.Incremental).Bool("dry_run", o.opts.DryRun).Msg("sync started")

	// Idle -> Querying
	res.State = StateQuerying
	prior := models.NoWatermark
	if spec.Incremental {
		stored, err := o.store.Get(ctx, spec.Name)
		if err != nil {
			warn("watermark unreadable, extracting from the beginning", err)
			stored = models.NoWatermark
		}
		normalized, err := NormalizeWatermark(spec.IncrementalColumnType, stored)
		if err != nil {
			warn("stored watermark is invalid, extracting from the beginning", err)
			normalized = models.NoWatermark
		}
		prior = normalized
	}
	res.PriorWatermark = prior

	var tracker *runningMax
	if spec.Incremental {
		var err error
		if tracker, err = newRunningMax(spec.IncrementalColumnType, prior); err != nil {
			return fail(ErrSerialization, err)
		}
	}

	reader, err := o.extractor.Open(ctx, spec, prior)
	if err != nil {
		return fail(ErrSourceQuery, err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warn().Err(err).Msg("closing source cursor")
		}
	}()

	// Querying -> Streaming
	res.State = StateStreaming
	log.Debug().Str("query", reader.Query().SQL).Interface("args", reader.Query().Args).Msg("query executed")

	workDir, err := os.MkdirTemp(o.opts.TempDir, "tablesync-"+spec.Name+"-")
	if err != nil {
		return fail(ErrSerialization, errors.Wrap(err, "create temp directory"))
	}
	defer func() {
		// A retained artifact that could not be moved out still lives here.
		if res.RetainedArtifact != "" && filepath.Dir(res.RetainedArtifact) == workDir {
			log.Warn().Str("dir", workDir).Msg("keeping work directory with failed artifact")
			return
		}
		os.RemoveAll(workDir)
	}()

	cursorIdx := reader.IncrementalIndex()
	for {
		batch, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(ErrSourceQuery, err)
		}

		if tracker != nil {
			for _, row := range batch.Rows {
				if err := tracker.Observe(row[cursorIdx]); err != nil {
					return fail(ErrSerialization, err)
				}
			}
		}

		part := res.Chunks + 1
		name := models.ArtifactName(o.now(), spec.Name, res.RunID, part)
		art, retained, err := o.deliver(ctx, workDir, name, part, batch)
		if err != nil {
			res.RetainedArtifact = retained
			return fail(errKind(err), err)
		}

		res.Chunks = part
		res.Rows += int64(art.Rows)
		res.Artifacts = append(res.Artifacts, art.Name)
		msg := "chunk uploaded"
		if o.opts.DryRun {
			msg = "chunk serialized (dry run)"
		}
		log.Info().Int("part", art.Part).Int("rows", art.Rows).Int64("bytes", art.Bytes).
			Str("object", art.Name).Msg(msg)
	}

	// Streaming -> Committing
	res.State = StateCommitting
	if tracker != nil && tracker.Observed() {
		value := tracker.Value()
		res.NewWatermark = value
		if !o.opts.DryRun {
			if err := o.store.Set(ctx, spec.Name, value); err != nil {
				log.Error().Err(err).Str("value", value).Int("chunks", res.Chunks).
					Msg("watermark commit failed after upload; the next run will deliver these rows again")
				return fail(ErrWatermarkStore, err)
			}
			res.Committed = true
			log.Info().Str("value", value).Msg("watermark committed")
		}
	}

	res.State = StateDone
	return res
}

// deliver serializes batch to a local file, uploads it, and removes the file.
// When the upload fails the file is moved to the recovery directory and its
// path returned.
func (o *Orchestrator) deliver(ctx context.Context, workDir, name string, part int, batch *models.RowBatch) (models.Artifact, string, error) {
	art := models.Artifact{Name: name, Part: part, Rows: batch.Len()}
	path := filepath.Join(workDir, name)

	size, err := o.writeArtifact(path, batch)
	if err != nil {
		os.Remove(path)
		return art, "", err
	}
	art.Bytes = size

	if o.opts.DryRun {
		os.Remove(path)
		return art, "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return art, "", &kindError{kind: ErrSinkUpload, err: errors.Wrap(err, "reopen artifact")}
	}
	uploadErr := o.sink.Upload(ctx, name, f, size)
	f.Close()

	if uploadErr != nil {
		retained, moveErr := retainArtifact(path, o.opts.RecoveryDir)
		if moveErr != nil {
			o.log.Error().Err(moveErr).Str("artifact", path).Msg("could not move failed artifact to recovery directory")
		}
		return art, retained, &kindError{kind: ErrSinkUpload, err: errors.Wrapf(uploadErr, "upload %s", name)}
	}

	if err := os.Remove(path); err != nil {
		o.log.Warn().Err(err).Str("artifact", path).Msg("removing uploaded artifact")
	}
	return art, "", nil
}

func (o *Orchestrator) writeArtifact(path string, batch *models.RowBatch) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, &kindError{kind: ErrSerialization, err: errors.Wrap(err, "create artifact")}
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<20)
	if err := o.serializer.Serialize(w, batch); err != nil {
		return 0, &kindError{kind: ErrSerialization, err: err}
	}
	if err := w.Flush(); err != nil {
		return 0, &kindError{kind: ErrSerialization, err: errors.Wrap(err, "write artifact")}
	}
	info, err := f.Stat()
	if err != nil {
		return 0, &kindError{kind: ErrSerialization, err: errors.Wrap(err, "stat artifact")}
	}
	return info.Size(), nil
}

// retainArtifact moves path into dir and returns the new location. If the move
// fails the original path is returned, as the file still exists there until
// the work directory is cleaned up.
func retainArtifact(path, dir string) (string, error) {
	if dir == "" {
		return path, errors.New("no recovery directory configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return path, errors.Wrap(err, "create recovery directory")
	}
	dst := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dst); err == nil {
		return dst, nil
	}

	// Rename fails across filesystems.
	if err := copyFile(path, dst); err != nil {
		return path, err
	}
	os.Remove(path)
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open artifact")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "create recovery copy")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(err, "copy artifact")
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return errors.Wrap(err, "sync recovery copy")
	}
	return out.Close()
}

// kindError tags an error from deliver with the failure kind it maps to.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

func errKind(err error) error {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return ErrSerialization
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
