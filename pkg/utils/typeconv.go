package utils

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/shopspring/decimal"
)

// WatermarkTimeLayout is the fixed-width layout used for timestamp watermarks.
const WatermarkTimeLayout = "2006-01-02 15:04:05"

var dateTimeFormats = []string{
	WatermarkTimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ConvertDateTime interprets a driver value as a point in time.
func ConvertDateTime(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("nil time")
		}
		return *v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, f := range dateTimeFormats {
			if t, err := time.Parse(f, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse datetime: %s", v)
	case []byte:
		return ConvertDateTime(string(v))
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to datetime", val)
	}
}

// ConvertToDecimal interprets a driver value as an exact decimal number.
// Floats go through their shortest decimal representation.
func ConvertToDecimal(val interface{}) (decimal.Decimal, error) {
	switch v := val.(type) {
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int8:
		return decimal.NewFromInt(int64(v)), nil
	case int16:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case uint:
		return fromUint64(uint64(v)), nil
	case uint8:
		return fromUint64(uint64(v)), nil
	case uint16:
		return fromUint64(uint64(v)), nil
	case uint32:
		return fromUint64(uint64(v)), nil
	case uint64:
		return fromUint64(v), nil
	case float32:
		return ConvertToDecimal(float64(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}, fmt.Errorf("cannot convert %v to decimal", v)
		}
		return decimal.NewFromString(strconv.FormatFloat(v, 'f', -1, 64))
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("unable to parse number: %s", v)
		}
		return d, nil
	case []byte:
		return ConvertToDecimal(string(v))
	default:
		return decimal.Decimal{}, fmt.Errorf("cannot convert %T to decimal", val)
	}
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// ConvertToText interprets a driver value as a string column value.
func ConvertToText(val interface{}) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", val)
	}
}

// FormatTimestamp renders t with the watermark layout, keeping its wall clock.
func FormatTimestamp(t time.Time) string {
	return t.Format(WatermarkTimeLayout)
}

// CanonicalValue converts val to the canonical watermark text for colType.
func CanonicalValue(colType models.ColumnType, val interface{}) (string, error) {
	switch colType {
	case models.ColumnTimestamp:
		t, err := ConvertDateTime(val)
		if err != nil {
			return "", err
		}
		return FormatTimestamp(t), nil
	case models.ColumnNumeric:
		d, err := ConvertToDecimal(val)
		if err != nil {
			return "", err
		}
		return d.String(), nil
	case models.ColumnString:
		return ConvertToText(val)
	default:
		return "", fmt.Errorf("unsupported column type %q", colType)
	}
}
