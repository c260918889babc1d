package etl

import (
	"testing"
	"time"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunningMaxNumericIsNotLexicographic(t *testing.T) {
	m, err := newRunningMax(models.ColumnNumeric, models.NoWatermark)
	require.NoError(t, err)

	for _, v := range []any{"9", "10", []byte("2")} {
		require.NoError(t, m.Observe(v))
	}
	assert.True(t, m.Observed())
	assert.Equal(t, "10", m.Value())
}

func TestRunningMaxNumericTypes(t *testing.T) {
	m, err := newRunningMax(models.ColumnNumeric, "4")
	require.NoError(t, err)

	require.NoError(t, m.Observe(int64(5)))
	require.NoError(t, m.Observe(float64(3)))
	require.NoError(t, m.Observe(decimal.RequireFromString("5.25")))
	assert.Equal(t, "5.25", m.Value())
}

func TestRunningMaxSeededWithPrior(t *testing.T) {
	m, err := newRunningMax(models.ColumnNumeric, "100")
	require.NoError(t, err)
	assert.False(t, m.Observed())
	assert.Equal(t, "100", m.Value())

	require.NoError(t, m.Observe(int64(7)))
	assert.True(t, m.Observed())
	assert.Equal(t, "100", m.Value(), "watermark must never move backwards")
}

func TestRunningMaxTimestamp(t *testing.T) {
	m, err := newRunningMax(models.ColumnTimestamp, models.NoWatermark)
	require.NoError(t, err)

	warsaw := time.FixedZone("CET", 3600)
	require.NoError(t, m.Observe(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, m.Observe("2024-01-02 11:30:00"))
	// Wall clock comparison: 11:45 local is later than 11:30 even though the
	// instant is earlier.
	require.NoError(t, m.Observe(time.Date(2024, 1, 2, 11, 45, 0, 999, warsaw)))
	assert.Equal(t, "2024-01-02 11:45:00", m.Value())
}

func TestRunningMaxString(t *testing.T) {
	m, err := newRunningMax(models.ColumnString, models.NoWatermark)
	require.NoError(t, err)

	require.NoError(t, m.Observe("A-10"))
	require.NoError(t, m.Observe([]byte("B-01")))
	require.NoError(t, m.Observe("A-99"))
	assert.Equal(t, "B-01", m.Value())
}

func TestRunningMaxSkipsNulls(t *testing.T) {
	m, err := newRunningMax(models.ColumnTimestamp, models.NoWatermark)
	require.NoError(t, err)

	require.NoError(t, m.Observe(nil))
	assert.False(t, m.Observed())
	assert.Equal(t, models.NoWatermark, m.Value())
}

func TestRunningMaxRejectsMalformed(t *testing.T) {
	m, err := newRunningMax(models.ColumnNumeric, models.NoWatermark)
	require.NoError(t, err)
	err = m.Observe("twelve")
	assert.ErrorIs(t, err, ErrSerialization)

	_, err = newRunningMax(models.ColumnTimestamp, "not a date")
	assert.Error(t, err)
}
