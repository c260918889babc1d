package etl

import (
	"fmt"
	"strings"

	"github.com/BartekS5/tablesync/pkg/database"
	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Dialect renders the incremental predicate for one source database. bound is
// already canonical for colType; the returned arg is bound to the single
// placeholder in the predicate.
type Dialect interface {
	Name() string
	Predicate(column string, colType models.ColumnType, bound string) (string, any, error)
}

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case database.DriverOracle:
		return OracleDialect{}, nil
	case database.DriverSQLServer:
		return SQLServerDialect{}, nil
	case database.DriverSQLite:
		return SQLiteDialect{}, nil
	default:
		return nil, errors.Errorf("no dialect for driver %q", driver)
	}
}

type OracleDialect struct{}

func (OracleDialect) Name() string { return database.DriverOracle }

func (OracleDialect) Predicate(column string, colType models.ColumnType, bound string) (string, any, error) {
	switch colType {
	case models.ColumnTimestamp:
		return fmt.Sprintf("%s > TO_TIMESTAMP(:1, 'YYYY-MM-DD HH24:MI:SS')", column), bound, nil
	case models.ColumnNumeric:
		d, err := decimal.NewFromString(bound)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s > TO_NUMBER(:1, '%s', 'NLS_NUMERIC_CHARACTERS=''.,''')", column, oracleNumberMask(d)), bound, nil
	case models.ColumnString:
		return fmt.Sprintf("%s > :1", column), bound, nil
	default:
		return "", nil, errors.Errorf("unsupported column type %q", colType)
	}
}

// oracleNumberMask builds a TO_NUMBER format model wide enough for d, so the
// conversion does not depend on session NLS settings.
func oracleNumberMask(d decimal.Decimal) string {
	intDigits, fracDigits := decimalDigits(d)
	mask := strings.Repeat("9", intDigits)
	if fracDigits > 0 {
		mask += "D" + strings.Repeat("9", fracDigits)
	}
	return mask
}

type SQLServerDialect struct{}

func (SQLServerDialect) Name() string { return database.DriverSQLServer }

func (SQLServerDialect) Predicate(column string, colType models.ColumnType, bound string) (string, any, error) {
	switch colType {
	case models.ColumnTimestamp:
		return fmt.Sprintf("%s > CAST(@p1 AS DATETIME2)", column), bound, nil
	case models.ColumnNumeric:
		d, err := decimal.NewFromString(bound)
		if err != nil {
			return "", nil, err
		}
		intDigits, fracDigits := decimalDigits(d)
		precision := intDigits + fracDigits
		if precision > 38 {
			return "", nil, errors.Errorf("numeric bound %s does not fit DECIMAL(38)", bound)
		}
		return fmt.Sprintf("%s > CAST(@p1 AS DECIMAL(%d,%d))", column, precision, fracDigits), bound, nil
	case models.ColumnString:
		return fmt.Sprintf("%s > @p1", column), bound, nil
	default:
		return "", nil, errors.Errorf("unsupported column type %q", colType)
	}
}

type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return database.DriverSQLite }

func (SQLiteDialect) Predicate(column string, colType models.ColumnType, bound string) (string, any, error) {
	switch colType {
	case models.ColumnTimestamp:
		return fmt.Sprintf("julianday(%s) > julianday(?)", column), bound, nil
	case models.ColumnNumeric:
		return fmt.Sprintf("%s > CAST(? AS NUMERIC)", column), bound, nil
	case models.ColumnString:
		return fmt.Sprintf("%s > ?", column), bound, nil
	default:
		return "", nil, errors.Errorf("unsupported column type %q", colType)
	}
}

// decimalDigits counts the digits left and right of the decimal point in the
// canonical text of d. The integer part has at least one digit.
func decimalDigits(d decimal.Decimal) (intDigits, fracDigits int) {
	s := strings.TrimPrefix(d.String(), "-")
	intPart, fracPart, _ := strings.Cut(s, ".")
	return max(len(intPart), 1), len(fracPart)
}
