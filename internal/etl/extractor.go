package etl

import (
	"context"
	"io"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/go-faster/errors"
)

// Extractor opens chunked reads of a table, filtered by its watermark.
type Extractor struct {
	Executor  QueryExecutor
	Dialect   Dialect
	ChunkSize int
}

func NewExtractor(exec QueryExecutor, dialect Dialect, chunkSize int) *Extractor {
	return &Extractor{Executor: exec, Dialect: dialect, ChunkSize: chunkSize}
}

// Open runs the extraction query for the table. The caller must Close the reader.
func (e *Extractor) Open(ctx context.Context, spec models.TableSyncSpec, watermark string) (*ChunkedReader, error) {
	if e.ChunkSize <= 0 {
		return nil, errors.Errorf("invalid chunk size %d", e.ChunkSize)
	}

	q, err := BuildQuery(e.Dialect, spec, watermark)
	if err != nil {
		return nil, err
	}

	cursor, err := e.Executor.Execute(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}

	cols := cursor.Columns()
	idx, err := NewValidator(spec).IncrementalIndex(cols)
	if err != nil {
		cursor.Close()
		return nil, err
	}

	return &ChunkedReader{
		cursor:    cursor,
		columns:   cols,
		cursorIdx: idx,
		chunkSize: e.ChunkSize,
		query:     q,
	}, nil
}

// ChunkedReader pulls one batch from the cursor per Next call. Nothing is
// fetched ahead of the caller.
type ChunkedReader struct {
	cursor    Cursor
	columns   []string
	cursorIdx int
	chunkSize int
	query     Query
	done      bool
}

func (r *ChunkedReader) Columns() []string { return r.columns }

// IncrementalIndex is the position of the cursor column, or -1.
func (r *ChunkedReader) IncrementalIndex() int { return r.cursorIdx }

func (r *ChunkedReader) Query() Query { return r.query }

// Next returns the next batch of at most ChunkSize rows, or io.EOF once the
// result set is exhausted.
func (r *ChunkedReader) Next(ctx context.Context) (*models.RowBatch, error) {
	if r.done {
		return nil, io.EOF
	}
	rows, err := r.cursor.FetchBatch(ctx, r.chunkSize)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		r.done = true
		return nil, io.EOF
	}
	if len(rows) > r.chunkSize {
		return nil, errors.Errorf("cursor returned %d rows for a batch of %d", len(rows), r.chunkSize)
	}
	return &models.RowBatch{Columns: r.columns, Rows: rows}, nil
}

func (r *ChunkedReader) Close() error {
	return r.cursor.Close()
}
