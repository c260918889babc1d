package etl

import (
	"time"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/BartekS5/tablesync/pkg/utils"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// runningMax tracks the largest cursor value seen during a run, compared in
// the column's declared type. It starts from the prior watermark so the
// committed value never moves backwards.
type runningMax struct {
	colType  models.ColumnType
	ts       time.Time
	num      decimal.Decimal
	str      string
	has      bool
	observed bool
}

func newRunningMax(colType models.ColumnType, prior string) (*runningMax, error) {
	m := &runningMax{colType: colType}
	if IsNoWatermark(prior) {
		return m, nil
	}
	if err := m.update(prior); err != nil {
		return nil, errors.Wrapf(err, "prior watermark %q", prior)
	}
	return m, nil
}

// Observe folds one cursor value into the maximum. NULLs are ignored.
func (m *runningMax) Observe(v any) error {
	if v == nil {
		return nil
	}
	if err := m.update(v); err != nil {
		return errors.Wrapf(ErrSerialization, "cursor value %v: %v", v, err)
	}
	m.observed = true
	return nil
}

func (m *runningMax) update(v any) error {
	switch m.colType {
	case models.ColumnTimestamp:
		t, err := utils.ConvertDateTime(v)
		if err != nil {
			return err
		}
		t = wallClock(t)
		if !m.has || t.After(m.ts) {
			m.ts = t
		}
	case models.ColumnNumeric:
		d, err := utils.ConvertToDecimal(v)
		if err != nil {
			return err
		}
		if !m.has || d.GreaterThan(m.num) {
			m.num = d
		}
	case models.ColumnString:
		s, err := utils.ConvertToText(v)
		if err != nil {
			return err
		}
		if !m.has || s > m.str {
			m.str = s
		}
	default:
		return errors.Errorf("unsupported column type %q", m.colType)
	}
	m.has = true
	return nil
}

// Observed reports whether any non-NULL value was seen in this run.
func (m *runningMax) Observed() bool {
	return m.observed
}

// Value returns the canonical watermark text of the maximum.
func (m *runningMax) Value() string {
	if !m.has {
		return models.NoWatermark
	}
	switch m.colType {
	case models.ColumnTimestamp:
		return utils.FormatTimestamp(m.ts)
	case models.ColumnNumeric:
		return m.num.String()
	default:
		return m.str
	}
}

// wallClock drops the location so values from drivers that attach a zone
// compare equal to watermarks parsed from text.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
