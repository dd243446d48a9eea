// Package publish uploads the combined archive and its manifest to an
// S3-compatible bucket.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goplus/glimmerdeps/internal/failure"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Target is a parsed s3://bucket/prefix URL.
type Target struct {
	Bucket string
	Prefix string
}

func (t Target) String() string {
	if t.Prefix == "" {
		return "s3://" + t.Bucket
	}
	return "s3://" + t.Bucket + "/" + t.Prefix
}

// ParseTarget parses s3://bucket[/prefix].
func ParseTarget(s string) (Target, error) {
	rest, ok := strings.CutPrefix(s, "s3://")
	if !ok {
		return Target{}, fmt.Errorf("publish target %q: want s3://bucket/prefix", s)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Target{}, fmt.Errorf("publish target %q: missing bucket", s)
	}
	return Target{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// Config holds the object store connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Insecure  bool
}

// ConfigFromEnv reads GLIMMERDEPS_S3_ENDPOINT, GLIMMERDEPS_S3_ACCESS_KEY,
// GLIMMERDEPS_S3_SECRET_KEY, GLIMMERDEPS_S3_REGION and GLIMMERDEPS_S3_INSECURE.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Endpoint:  envOr("GLIMMERDEPS_S3_ENDPOINT", "s3.amazonaws.com"),
		AccessKey: os.Getenv("GLIMMERDEPS_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("GLIMMERDEPS_S3_SECRET_KEY"),
		Region:    os.Getenv("GLIMMERDEPS_S3_REGION"),
	}
	if v := os.Getenv("GLIMMERDEPS_S3_INSECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("GLIMMERDEPS_S3_INSECURE: %w", err)
		}
		cfg.Insecure = b
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("GLIMMERDEPS_S3_ACCESS_KEY is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("GLIMMERDEPS_S3_SECRET_KEY is required")
	}
	return nil
}

// ObjectStore is the subset of *minio.Client used for uploads.
type ObjectStore interface {
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads files under <prefix>/<run id>/ in the target bucket.
type Publisher struct {
	Store  ObjectStore
	Target Target
}

// New connects a Publisher to the store described by cfg.
func New(cfg Config, t Target) (*Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, failure.New(failure.PublishFailed, "", "publish", err)
	}
	return &Publisher{Store: client, Target: t}, nil
}

// Key returns the object key of file for runID.
func (p *Publisher) Key(runID, file string) string {
	return path.Join(p.Target.Prefix, runID, filepath.Base(file))
}

// Publish uploads files and returns their object keys in order.
func (p *Publisher) Publish(ctx context.Context, runID string, files ...string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key := p.Key(runID, f)
		opts := minio.PutObjectOptions{ContentType: contentType(f)}
		if _, err := p.Store.FPutObject(ctx, p.Target.Bucket, key, f, opts); err != nil {
			return keys, failure.New(failure.PublishFailed, "", "publish", fmt.Errorf("upload %s to %s: %w", f, p.Target, err))
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".yaml", ".yml":
		return "application/yaml"
	}
	return "application/octet-stream"
}
