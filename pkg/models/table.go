package models

import (
	"fmt"
	"regexp"
	"strings"
)

// ColumnType is the declared type of an incremental column. It decides how
// the watermark bound is encoded in SQL and how values are compared.
type ColumnType string

const (
	ColumnTimestamp ColumnType = "timestamp"
	ColumnNumeric   ColumnType = "numeric"
	ColumnString    ColumnType = "string"
)

// ParseColumnType accepts the YAML spelling of a column type.
func ParseColumnType(s string) (ColumnType, error) {
	switch ColumnType(strings.ToLower(strings.TrimSpace(s))) {
	case ColumnTimestamp:
		return ColumnTimestamp, nil
	case ColumnNumeric:
		return ColumnNumeric, nil
	case ColumnString:
		return ColumnString, nil
	default:
		return "", fmt.Errorf("unknown column type %q (want timestamp, numeric or string)", s)
	}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$#]*(\.[A-Za-z_][A-Za-z0-9_$#]*)?$`)

// IsIdentifier reports whether s can be spliced into SQL as a table or column name.
func IsIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// TableSyncSpec describes one table to synchronize. It is loaded once per run
// from the table list and never modified afterwards.
type TableSyncSpec struct {
	Name                  string     `yaml:"name" json:"name"`
	Incremental           bool       `yaml:"incremental" json:"incremental"`
	IncrementalColumn     string     `yaml:"cursor_column,omitempty" json:"cursorColumn,omitempty"`
	IncrementalColumnType ColumnType `yaml:"cursor_column_type,omitempty" json:"cursorColumnType,omitempty"`
}

// Validate checks the table entry before any SQL is built from it.
func (s TableSyncSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if !IsIdentifier(s.Name) {
		return fmt.Errorf("table %q: name is not a plain SQL identifier", s.Name)
	}
	if !s.Incremental {
		return nil
	}
	if s.IncrementalColumn == "" {
		return fmt.Errorf("table %s: incremental requires cursor_column", s.Name)
	}
	if !IsIdentifier(s.IncrementalColumn) {
		return fmt.Errorf("table %s: cursor_column %q is not a plain SQL identifier", s.Name, s.IncrementalColumn)
	}
	if s.IncrementalColumnType == "" {
		return fmt.Errorf("table %s: incremental requires cursor_column_type", s.Name)
	}
	if _, err := ParseColumnType(string(s.IncrementalColumnType)); err != nil {
		return fmt.Errorf("table %s: %w", s.Name, err)
	}
	return nil
}
