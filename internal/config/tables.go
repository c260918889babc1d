package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BartekS5/tablesync/pkg/models"
	"gopkg.in/yaml.v3"
)

// LoadTables reads and validates the table list from the given path.
func LoadTables(filePath string) ([]models.TableSyncSpec, error) {
	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file '%s': %w", filePath, err)
	}

	tables, err := ParseTables(bytes)
	if err != nil {
		return nil, fmt.Errorf("tables file '%s': %w", filePath, err)
	}
	return tables, nil
}

// ParseTables decodes a YAML list of table specs.
func ParseTables(data []byte) ([]models.TableSyncSpec, error) {
	var tables []models.TableSyncSpec
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	seen := make(map[string]bool, len(tables))
	for i := range tables {
		t := &tables[i]
		if t.IncrementalColumnType != "" {
			ct, err := models.ParseColumnType(string(t.IncrementalColumnType))
			if err != nil {
				return nil, fmt.Errorf("table %s: %w", t.Name, err)
			}
			t.IncrementalColumnType = ct
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("table %s is listed more than once", t.Name)
		}
		seen[t.Name] = true
	}
	return tables, nil
}

// FilterTables keeps the specs whose names are in names, preserving file order.
// An empty names list keeps everything.
func FilterTables(tables []models.TableSyncSpec, names []string) ([]models.TableSyncSpec, error) {
	if len(names) == 0 {
		return tables, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []models.TableSyncSpec
	for _, t := range tables {
		if want[t.Name] {
			out = append(out, t)
			delete(want, t.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("tables not in the tables file: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
