package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/BartekS5/tablesync/pkg/logger"
	"github.com/go-faster/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures an S3-compatible object store such as OCI Object
// Storage through its compatibility endpoint.
type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// DisableContentSHA256 sends unsigned payloads. Some S3 emulators need it.
	DisableContentSHA256 bool
}

// S3Sink uploads artifacts with minio-go.
type S3Sink struct {
	client *minio.Client
	opts   S3Options
}

// NewS3Sink creates the client and checks that the bucket is reachable.
func NewS3Sink(ctx context.Context, opts S3Options) (*S3Sink, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       opts.UseSSL,
		Region:       opts.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create object storage client")
	}

	s := &S3Sink{client: client, opts: opts}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	logger.Infof("Object storage sink ready: %s", s)
	return s, nil
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.opts.Bucket)
	if err != nil {
		return errors.Wrapf(err, "check bucket %s", s.opts.Bucket)
	}
	if !ok {
		return errors.Errorf("bucket %s does not exist", s.opts.Bucket)
	}
	return nil
}

func (s *S3Sink) Upload(ctx context.Context, name string, r io.Reader, size int64) error {
	key := objectKey(s.opts.Prefix, name)
	info, err := s.client.PutObject(ctx, s.opts.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType:          "application/json",
		DisableContentSha256: s.opts.DisableContentSHA256,
	})
	if err != nil {
		return errors.Wrapf(err, "put object %s", key)
	}
	if info.Size != size {
		return errors.Errorf("put object %s: uploaded %d bytes, expected %d", key, info.Size, size)
	}

	stat, err := s.client.StatObject(ctx, s.opts.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return errors.Wrapf(err, "verify object %s", key)
	}
	if stat.Size != size {
		return errors.Errorf("verify object %s: stored %d bytes, expected %d", key, stat.Size, size)
	}
	return nil
}

func (s *S3Sink) String() string {
	return fmt.Sprintf("s3://%s/%s (%s)", s.opts.Bucket, s.opts.Prefix, s.opts.Endpoint)
}
