// Package sink delivers serialized artifacts to their destination.
package sink

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/BartekS5/tablesync/internal/config"
)

// Sink stores one named artifact. Upload returns nil only after the object is
// durably stored and readable under name.
type Sink interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64) error
	String() string
}

// New builds the sink selected by the configuration.
func New(ctx context.Context, cfg config.SinkConfig) (Sink, error) {
	switch cfg.Type {
	case "s3":
		return NewS3Sink(ctx, S3Options{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
		})
	case "local":
		return NewLocalSink(cfg.LocalDir, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unsupported sink type %q", cfg.Type)
	}
}

func objectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
