// Package state persists per-table watermarks.
package state

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/go-faster/errors"
	"github.com/goccy/go-json"
)

// FileStore keeps all watermarks in one JSON object on disk. Every Set
// rewrites the file through a temp file and an atomic rename, so readers see
// either the old or the new content, never a partial write.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the state file.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the watermark for table, or models.NoWatermark when there is
// none. A state file that cannot be read or parsed also yields
// models.NoWatermark, together with the error.
func (s *FileStore) Get(_ context.Context, table string) (string, error) {
	state, err := s.load()
	if err != nil {
		return models.NoWatermark, err
	}
	if v, ok := state[table]; ok {
		return v, nil
	}
	return models.NoWatermark, nil
}

// Set stores value for table, leaving other tables untouched.
func (s *FileStore) Set(_ context.Context, table, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return errors.Wrap(err, "refusing to overwrite unreadable state file")
	}
	state[table] = value
	return s.write(state)
}

// List returns all stored watermarks ordered by table name.
func (s *FileStore) List(_ context.Context) ([]models.Watermark, error) {
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.Watermark, 0, len(state))
	for table, v := range state {
		out = append(out, models.Watermark{Table: table, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out, nil
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read state file %s", s.path)
	}
	state := map[string]string{}
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrapf(err, "parse state file %s", s.path)
	}
	return state, nil
}

func (s *FileStore) write(state map[string]string) error {
	data, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode state")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create state directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp state file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp state file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp state file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrapf(err, "replace state file %s", s.path)
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "open state directory")
	}
	defer d.Close()
	// Some platforms cannot fsync a directory; the rename already happened.
	_ = d.Sync()
	return nil
}
