package etl

import (
	"strings"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/BartekS5/tablesync/pkg/utils"
	"github.com/go-faster/errors"
)

// Query is a statement with its positional arguments.
type Query struct {
	SQL  string
	Args []any
}

// IsNoWatermark reports whether v means "no lower bound".
func IsNoWatermark(v string) bool {
	return v == "" || v == models.NoWatermark
}

// NormalizeWatermark parses a stored watermark in the column's declared type
// and returns its canonical text. The sentinel passes through unchanged.
func NormalizeWatermark(colType models.ColumnType, v string) (string, error) {
	if IsNoWatermark(v) {
		return models.NoWatermark, nil
	}
	canonical, err := utils.CanonicalValue(colType, v)
	if err != nil {
		return "", errors.Wrapf(err, "watermark %q is not a valid %s", v, colType)
	}
	return canonical, nil
}

// BuildQuery renders the extraction statement for a table. Incremental tables are
// ordered by their cursor column and, once a watermark exists, filtered to
// rows strictly above it.
func BuildQuery(d Dialect, spec models.TableSyncSpec, watermark string) (Query, error) {
	if err := spec.Validate(); err != nil {
		return Query{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(spec.Name)

	q := Query{}
	if spec.Incremental {
		bound, err := NormalizeWatermark(spec.IncrementalColumnType, watermark)
		if err != nil {
			return Query{}, err
		}
		if !IsNoWatermark(bound) {
			pred, arg, err := d.Predicate(spec.IncrementalColumn, spec.IncrementalColumnType, bound)
			if err != nil {
				return Query{}, errors.Wrapf(err, "build %s predicate", d.Name())
			}
			sb.WriteString(" WHERE ")
			sb.WriteString(pred)
			q.Args = append(q.Args, arg)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(spec.IncrementalColumn)
	}

	q.SQL = sb.String()
	return q, nil
}
