package etl

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"reflect"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/go-faster/errors"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const jsonTimeLayout = "2006-01-02 15:04:05.999999"

// JSONSerializer writes a batch as a JSON array with one object per row.
// Object keys follow the result column order.
type JSONSerializer struct {
	Indent string
}

func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{Indent: "    "}
}

func (s *JSONSerializer) Serialize(w io.Writer, batch *models.RowBatch) error {
	var raw bytes.Buffer
	raw.WriteByte('[')
	for i, row := range batch.Rows {
		if len(row) != len(batch.Columns) {
			return errors.Wrapf(ErrSerialization, "row %d has %d values for %d columns", i, len(row), len(batch.Columns))
		}
		values := make([]any, len(row))
		for j, v := range row {
			rv, err := jsonValue(v)
			if err != nil {
				return errors.Wrapf(err, "row %d column %s", i, batch.Columns[j])
			}
			values[j] = rv
		}
		obj, err := orderedRow{columns: batch.Columns, values: values}.MarshalJSON()
		if err != nil {
			return errors.Wrapf(ErrSerialization, "row %d: %v", i, err)
		}
		if i > 0 {
			raw.WriteByte(',')
		}
		raw.Write(obj)
	}
	raw.WriteByte(']')

	// Indent only; re-encoding would HTML-escape the row text.
	out := &raw
	if s.Indent != "" {
		var indented bytes.Buffer
		if err := json.Indent(&indented, raw.Bytes(), "", s.Indent); err != nil {
			return errors.Wrap(err, "indent batch")
		}
		out = &indented
	}
	out.WriteByte('\n')
	if _, err := w.Write(out.Bytes()); err != nil {
		return errors.Wrap(err, "write batch")
	}
	return nil
}

type orderedRow struct {
	columns []string
	values  []any
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.MarshalNoEscape(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.MarshalNoEscape(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue maps a driver value to something with a stable JSON form.
func jsonValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x, nil
	case float32:
		return finiteFloat(float64(x))
	case float64:
		return finiteFloat(x)
	case time.Time:
		return formatTime(x), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return formatTime(*x), nil
	case decimal.Decimal:
		return x.String(), nil
	case []byte:
		return bytesValue(x), nil
	case fmt.Stringer:
		return x.String(), nil
	}

	// Named types over basic kinds, as some drivers return them.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return jsonValue(rv.Elem().Interface())
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return finiteFloat(rv.Float())
	}
	return nil, errors.Wrapf(ErrSerialization, "unsupported value of type %T", v)
}

func finiteFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.Wrapf(ErrSerialization, "non-finite float %v", f)
	}
	return f, nil
}

func formatTime(t time.Time) string {
	if t.Location() == time.UTC {
		return t.Format(jsonTimeLayout)
	}
	return t.Format(jsonTimeLayout + "-07:00")
}

// bytesValue keeps readable text as is and renders binary data as 0x-prefixed hex.
func bytesValue(b []byte) string {
	if utf8.Valid(b) && printable(b) {
		return string(b)
	}
	return "0x" + hex.EncodeToString(b)
}

func printable(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
		b = b[size:]
	}
	return true
}
