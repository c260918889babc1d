package models

import (
	"fmt"
	"time"
)

// NoWatermark is returned by watermark stores for tables that were never
// synced. Extraction treats it as "no lower bound".
const NoWatermark = "1970-01-01 00:00:00"

// Watermark is the highest incremental value confirmed processed for a table,
// in canonical text form.
type Watermark struct {
	Table string `json:"table" bson:"_id"`
	Value string `json:"value" bson:"value"`
}

// RowBatch is one chunk of a result set. Columns are captured once from the
// result metadata and shared by every batch of the same query.
type RowBatch struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows in the batch.
func (b *RowBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// Artifact is the serialized form of one batch as handed to a sink.
type Artifact struct {
	Name  string
	Part  int
	Rows  int
	Bytes int64
}

const artifactTimeLayout = "20060102150405"

// ArtifactName builds the object name for a chunk. The part counter keeps names
// unique within a run and the run id keeps them unique across re-runs.
func ArtifactName(ts time.Time, table, runID string, part int) string {
	return fmt.Sprintf("%s_%s_%s_part_%d.json", ts.UTC().Format(artifactTimeLayout), table, runID, part)
}
