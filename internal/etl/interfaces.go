package etl

import (
	"context"
	"io"

	"github.com/BartekS5/tablesync/pkg/models"
)

// QueryExecutor runs a read-only query and hands back a forward-only cursor.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, args ...any) (Cursor, error)
}

// Cursor yields rows in batches. FetchBatch returns at most n rows; an empty
// batch means the cursor is exhausted.
type Cursor interface {
	Columns() []string
	FetchBatch(ctx context.Context, n int) ([][]any, error)
	Close() error
}

type Serializer interface {
	Serialize(w io.Writer, batch *models.RowBatch) error
}

// Sink stores one artifact under name. A nil error means the object is
// durable and readable.
type Sink interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64) error
}

// WatermarkStore persists the last processed value per table. Get returns
// models.NoWatermark for tables without a stored value.
type WatermarkStore interface {
	Get(ctx context.Context, table string) (string, error)
	Set(ctx context.Context, table, value string) error
}
