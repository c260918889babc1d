package etl

import (
	"context"
	"io"
	"sync"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/go-faster/errors"
)

type stubCursor struct {
	cols     []string
	rows     [][]any
	pos      int
	requests []int
	failAt   int // fail the n-th FetchBatch call, 0 = never
	closed   bool
}

func (c *stubCursor) Columns() []string { return c.cols }

func (c *stubCursor) FetchBatch(ctx context.Context, n int) ([][]any, error) {
	c.requests = append(c.requests, n)
	if c.failAt > 0 && len(c.requests) == c.failAt {
		return nil, errors.New("connection reset")
	}
	end := min(c.pos+n, len(c.rows))
	out := c.rows[c.pos:end]
	c.pos = end
	return out, nil
}

func (c *stubCursor) Close() error {
	c.closed = true
	return nil
}

type stubExecutor struct {
	mu      sync.Mutex
	cursors map[string]*stubCursor // by table name
	queries []Query
}

func (e *stubExecutor) Execute(_ context.Context, query string, args ...any) (Cursor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, Query{SQL: query, Args: args})
	for table, c := range e.cursors {
		if len(query) >= len("SELECT * FROM "+table) && query[:len("SELECT * FROM "+table)] == "SELECT * FROM "+table {
			return c, nil
		}
	}
	return nil, errors.Errorf("no such table in %q", query)
}

type memStore struct {
	mu     sync.Mutex
	values map[string]string
	sets   int
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}}
}

func (s *memStore) Get(_ context.Context, table string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return models.NoWatermark, s.getErr
	}
	if v, ok := s.values[table]; ok {
		return v, nil
	}
	return models.NoWatermark, nil
}

func (s *memStore) Set(_ context.Context, table, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	s.values[table] = value
	return nil
}

type stubSink struct {
	mu      sync.Mutex
	objects map[string][]byte
	order   []string
	calls   int
	failAt  int // fail the n-th upload, 0 = never
}

func newStubSink() *stubSink {
	return &stubSink{objects: map[string][]byte{}}
}

func (s *stubSink) Upload(_ context.Context, name string, r io.Reader, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAt > 0 && s.calls == s.failAt {
		return errors.New("503 service unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.Errorf("size mismatch: %d != %d", len(data), size)
	}
	s.objects[name] = data
	s.order = append(s.order, name)
	return nil
}
