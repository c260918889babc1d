package etl

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Error kinds. A *SyncError matches its kind with errors.Is.
var (
	ErrSourceQuery    = errors.New("source query failed")
	ErrSerialization  = errors.New("serialization failed")
	ErrSinkUpload     = errors.New("sink upload failed")
	ErrWatermarkStore = errors.New("watermark store failed")
)

// SyncError is the failure of one table's sync.
type SyncError struct {
	Table string
	Kind  error
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("table %s: %v: %v", e.Table, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func (e *SyncError) Is(target error) bool {
	return target == e.Kind
}

// KindOf returns the kind of a *SyncError in err's chain, or nil.
func KindOf(err error) error {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return nil
}
