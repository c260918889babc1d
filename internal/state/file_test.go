package state

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/BartekS5/tablesync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))

	v, err := store.Get(context.Background(), "ORDERS")
	require.NoError(t, err)
	assert.Equal(t, models.NoWatermark, v)

	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileStoreSetGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewFileStore(path)

	require.NoError(t, store.Set(ctx, "ORDERS", "2024-01-02 00:00:00"))
	require.NoError(t, store.Set(ctx, "EMPLOYEES", "42"))
	require.NoError(t, store.Set(ctx, "ORDERS", "2024-01-03 00:00:00"))

	v, err := store.Get(ctx, "ORDERS")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03 00:00:00", v)

	// A fresh store sees the persisted content.
	reopened := NewFileStore(path)
	list, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Watermark{
		{Table: "EMPLOYEES", Value: "42"},
		{Table: "ORDERS", Value: "2024-01-03 00:00:00"},
	}, list)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	store := NewFileStore(path)

	v, err := store.Get(ctx, "ORDERS")
	assert.Error(t, err)
	assert.Equal(t, models.NoWatermark, v)

	assert.Error(t, store.Set(ctx, "ORDERS", "1"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data), "corrupt file must not be overwritten")
}

func TestFileStoreConcurrentSets(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))

	tables := []string{"A", "B", "C", "D", "E", "F"}
	var wg sync.WaitGroup
	for _, table := range tables {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, store.Set(ctx, name, "v-"+name))
		}(table)
	}
	wg.Wait()

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(tables))
	for i, wm := range list {
		assert.Equal(t, tables[i], wm.Table)
		assert.Equal(t, "v-"+tables[i], wm.Value)
	}
}
