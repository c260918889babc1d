package etl

import (
	"testing"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ordersSpec = models.TableSyncSpec{
	Name:                  "ORDERS",
	Incremental:           true,
	IncrementalColumn:     "UPDATED_AT",
	IncrementalColumnType: models.ColumnTimestamp,
}

func TestBuildQueryNoWatermark(t *testing.T) {
	q, err := BuildQuery(OracleDialect{}, ordersSpec, models.NoWatermark)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM ORDERS ORDER BY UPDATED_AT", q.SQL)
	assert.Empty(t, q.Args)

	q, err = BuildQuery(OracleDialect{}, ordersSpec, "")
	require.NoError(t, err)
	assert.Empty(t, q.Args)
}

func TestBuildQueryFullExtract(t *testing.T) {
	lookup := models.TableSyncSpec{Name: "LOOKUP"}
	q, err := BuildQuery(SQLiteDialect{}, lookup, "2024-01-01 00:00:00")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM LOOKUP", q.SQL)
	assert.Empty(t, q.Args)
}

func TestBuildQueryPredicates(t *testing.T) {
	numeric := models.TableSyncSpec{Name: "HR.EMPLOYEES", Incremental: true, IncrementalColumn: "EMPLOYEE_ID", IncrementalColumnType: models.ColumnNumeric}
	str := models.TableSyncSpec{Name: "CODES", Incremental: true, IncrementalColumn: "CODE", IncrementalColumnType: models.ColumnString}

	cases := []struct {
		name    string
		dialect Dialect
		spec    models.TableSyncSpec
		wm      string
		sql     string
		arg     any
	}{
		{"oracle timestamp", OracleDialect{}, ordersSpec, "2024-01-02 03:04:05",
			"SELECT * FROM ORDERS WHERE UPDATED_AT > TO_TIMESTAMP(:1, 'YYYY-MM-DD HH24:MI:SS') ORDER BY UPDATED_AT", "2024-01-02 03:04:05"},
		{"oracle numeric", OracleDialect{}, numeric, "1234.50",
			"SELECT * FROM HR.EMPLOYEES WHERE EMPLOYEE_ID > TO_NUMBER(:1, '9999D9', 'NLS_NUMERIC_CHARACTERS=''.,''') ORDER BY EMPLOYEE_ID", "1234.5"},
		{"oracle string", OracleDialect{}, str, "B-17",
			"SELECT * FROM CODES WHERE CODE > :1 ORDER BY CODE", "B-17"},
		{"sqlserver timestamp", SQLServerDialect{}, ordersSpec, "2024-01-02 03:04:05",
			"SELECT * FROM ORDERS WHERE UPDATED_AT > CAST(@p1 AS DATETIME2) ORDER BY UPDATED_AT", "2024-01-02 03:04:05"},
		{"sqlserver numeric", SQLServerDialect{}, numeric, "-12.345",
			"SELECT * FROM HR.EMPLOYEES WHERE EMPLOYEE_ID > CAST(@p1 AS DECIMAL(5,3)) ORDER BY EMPLOYEE_ID", "-12.345"},
		{"sqlserver string", SQLServerDialect{}, str, "B-17",
			"SELECT * FROM CODES WHERE CODE > @p1 ORDER BY CODE", "B-17"},
		{"sqlite timestamp", SQLiteDialect{}, ordersSpec, "2024-01-02T03:04:05Z",
			"SELECT * FROM ORDERS WHERE julianday(UPDATED_AT) > julianday(?) ORDER BY UPDATED_AT", "2024-01-02 03:04:05"},
		{"sqlite numeric", SQLiteDialect{}, numeric, "9",
			"SELECT * FROM HR.EMPLOYEES WHERE EMPLOYEE_ID > CAST(? AS NUMERIC) ORDER BY EMPLOYEE_ID", "9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := BuildQuery(tc.dialect, tc.spec, tc.wm)
			require.NoError(t, err)
			assert.Equal(t, tc.sql, q.SQL)
			assert.Equal(t, []any{tc.arg}, q.Args)
		})
	}
}

func TestBuildQueryRejectsBadBound(t *testing.T) {
	numeric := models.TableSyncSpec{Name: "T", Incremental: true, IncrementalColumn: "ID", IncrementalColumnType: models.ColumnNumeric}
	_, err := BuildQuery(OracleDialect{}, numeric, "12; DROP TABLE T")
	assert.Error(t, err)

	_, err = BuildQuery(OracleDialect{}, ordersSpec, "yesterday")
	assert.Error(t, err)
}

func TestBuildQueryRejectsInvalidSpec(t *testing.T) {
	_, err := BuildQuery(OracleDialect{}, models.TableSyncSpec{Name: "ORDERS--"}, models.NoWatermark)
	assert.Error(t, err)
}

func TestSQLServerDecimalTooWide(t *testing.T) {
	_, _, err := SQLServerDialect{}.Predicate("ID", models.ColumnNumeric, "123456789012345678901234567890.123456789")
	assert.Error(t, err)
}

func TestOracleNumberMask(t *testing.T) {
	assert.Equal(t, "9", oracleNumberMask(decimal.RequireFromString("0")))
	assert.Equal(t, "999", oracleNumberMask(decimal.RequireFromString("-250")))
	assert.Equal(t, "9D99", oracleNumberMask(decimal.RequireFromString("0.25")))
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"oracle", "sqlserver", "sqlite"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name())
	}
	_, err := DialectFor("postgres")
	assert.Error(t, err)
}
