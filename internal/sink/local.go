package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
)

// LocalSink writes artifacts into a directory. Files appear under their final
// name only once fully written.
type LocalSink struct {
	dir    string
	prefix string
}

func NewLocalSink(dir, prefix string) (*LocalSink, error) {
	if dir == "" {
		return nil, errors.New("local sink directory is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(prefix)), 0755); err != nil {
		return nil, errors.Wrapf(err, "create sink directory %s", dir)
	}
	return &LocalSink{dir: dir, prefix: prefix}, nil
}

func (l *LocalSink) Upload(ctx context.Context, name string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := filepath.Join(l.dir, filepath.FromSlash(objectKey(l.prefix, name)))
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", name)
	}
	if n != size {
		tmp.Close()
		return errors.Errorf("write %s: got %d bytes, expected %d", name, n, size)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync %s", name)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", name)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return errors.Wrapf(err, "move %s into place", name)
	}
	return nil
}

func (l *LocalSink) String() string {
	return "file://" + filepath.Join(l.dir, filepath.FromSlash(l.prefix))
}
