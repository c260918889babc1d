package etl

import (
	"fmt"
	"strings"

	"github.com/BartekS5/tablesync/pkg/models"
)

type Validator struct {
	Spec models.TableSyncSpec
}

func NewValidator(spec models.TableSyncSpec) *Validator {
	return &Validator{Spec: spec}
}

// IncrementalIndex finds the cursor column in the result columns and returns
// its position. Names are matched case-insensitively since Oracle folds
// unquoted identifiers to upper case. Non-incremental tables return -1.
func (v *Validator) IncrementalIndex(columns []string) (int, error) {
	if !v.Spec.Incremental {
		return -1, nil
	}
	if len(columns) == 0 {
		return -1, fmt.Errorf("query for %s returned no columns", v.Spec.Name)
	}

	want := v.Spec.IncrementalColumn
	if i := strings.LastIndex(want, "."); i >= 0 {
		want = want[i+1:]
	}
	for i, col := range columns {
		if strings.EqualFold(col, want) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("missing required cursor column %s in result of %s", v.Spec.IncrementalColumn, v.Spec.Name)
}
