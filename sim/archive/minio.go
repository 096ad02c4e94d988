// Package archive uploads a run's artifacts to S3-compatible object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// Config selects the object store. Credentials come from the standard AWS or
// MinIO environment variables.
type Config struct {
	Endpoint string
	Bucket   string
	Prefix   string
	Secure   bool
}

// Validate checks that an endpoint and bucket are set.
func (c Config) Validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("archive endpoint is required"))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("archive bucket is required"))
	}
	return errors.Join(errs...)
}

// Uploader copies files from an artifact filesystem into a bucket.
type Uploader struct {
	client *minio.Client
	fs     billy.Filesystem
	bucket string
	prefix string
}

// New connects to the configured endpoint. No request is made until Upload.
func New(cfg Config, fs billy.Filesystem) (*Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.EnvMinio{},
	})
	client, err := minio.New(cfg.Endpoint, &minio.Options{Creds: creds, Secure: cfg.Secure})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Endpoint, err)
	}
	return &Uploader{client: client, fs: fs, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// ObjectKey places name under prefix using forward slashes.
func ObjectKey(prefix, name string) string {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// ContentType guesses a MIME type from the artifact extension.
func ContentType(name string) string {
	switch path.Ext(name) {
	case ".vtu":
		return "application/xml"
	case ".dat", ".csv":
		return "text/csv"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".png":
		return "image/png"
	}
	return "application/octet-stream"
}

// Upload creates the bucket if needed and copies every named file. It stops
// at the first failure and returns the keys uploaded so far.
func (u *Uploader) Upload(ctx context.Context, names []string) ([]string, error) {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", u.bucket, err)
		}
	}

	keys := make([]string, 0, len(names))
	for _, name := range names {
		key := ObjectKey(u.prefix, name)
		if err := u.put(ctx, name, key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	logrus.WithFields(logrus.Fields{"bucket": u.bucket, "objects": len(keys)}).Info("artifacts archived")
	return keys, nil
}

func (u *Uploader) put(ctx context.Context, name, key string) error {
	info, err := u.fs.Stat(name)
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	f, err := u.fs.Open(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	if _, err := u.client.PutObject(ctx, u.bucket, key, f, info.Size(), minio.PutObjectOptions{ContentType: ContentType(name)}); err != nil {
		return fmt.Errorf("upload %s to %s/%s: %w", name, u.bucket, key, err)
	}
	return nil
}
