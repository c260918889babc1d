package sink

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BartekS5/tablesync/internal/config"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeS3(t *testing.T, bucket string) (endpoint string, backend *s3mem.Backend) {
	t.Helper()
	backend = s3mem.New()
	require.NoError(t, backend.CreateBucket(bucket))
	ts := httptest.NewServer(gofakes3.New(backend).Server())
	t.Cleanup(ts.Close)
	return strings.TrimPrefix(ts.URL, "http://"), backend
}

func testS3Options(endpoint, bucket string) S3Options {
	return S3Options{
		Endpoint:             endpoint,
		Region:               "us-east-1",
		Bucket:               bucket,
		Prefix:               "raw/erp",
		AccessKey:            "test",
		SecretKey:            "test",
		DisableContentSHA256: true,
	}
}

func TestS3SinkUpload(t *testing.T) {
	ctx := context.Background()
	endpoint, _ := newFakeS3(t, "landing")

	s, err := NewS3Sink(ctx, testS3Options(endpoint, "landing"))
	require.NoError(t, err)

	body := []byte(`[{"ID": 1}]`)
	name := "20240102030405_ORDERS_01HZ_part_1.json"
	require.NoError(t, s.Upload(ctx, name, bytes.NewReader(body), int64(len(body))))

	obj, err := s.client.GetObject(ctx, "landing", "raw/erp/"+name, minio.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	stat, err := s.client.StatObject(ctx, "landing", "raw/erp/"+name, minio.StatObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "application/json", stat.ContentType)
}

func TestS3SinkMissingBucket(t *testing.T) {
	endpoint, _ := newFakeS3(t, "landing")

	_, err := NewS3Sink(context.Background(), testS3Options(endpoint, "elsewhere"))
	assert.ErrorContains(t, err, "elsewhere")
}

func TestS3SinkShortReader(t *testing.T) {
	ctx := context.Background()
	endpoint, _ := newFakeS3(t, "landing")
	s, err := NewS3Sink(ctx, testS3Options(endpoint, "landing"))
	require.NoError(t, err)

	err = s.Upload(ctx, "short.json", strings.NewReader("[]"), 10)
	assert.Error(t, err)
}

func TestLocalSinkUpload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalSink(dir, "erp")
	require.NoError(t, err)

	body := []byte(`[]`)
	require.NoError(t, s.Upload(context.Background(), "a_part_1.json", bytes.NewReader(body), int64(len(body))))

	got, err := os.ReadFile(filepath.Join(dir, "erp", "a_part_1.json"))
	require.NoError(t, err)
	assert.Equal(t, body, got)

	entries, err := os.ReadDir(filepath.Join(dir, "erp"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalSinkSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalSink(dir, "")
	require.NoError(t, err)

	err = s.Upload(context.Background(), "a.json", strings.NewReader("[]"), 5)
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "a.json"))
	assert.True(t, os.IsNotExist(statErr), "partial artifact must not be visible")
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(context.Background(), config.SinkConfig{Type: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalSink{}, s)

	_, err = New(context.Background(), config.SinkConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "a.json", objectKey("", "a.json"))
	assert.Equal(t, "raw/a.json", objectKey("/raw/", "a.json"))
}
