// Package s3 stores blobs in an S3-compatible bucket through minio-go.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	svccfg "github.com/MahdiBaghbani/fileshare-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/blob"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

func init() {
	blob.Register("s3", func(conf map[string]any, log *slog.Logger) (blob.Store, error) {
		var c Config
		if err := svccfg.Decode(conf, &c); err != nil {
			return nil, fmt.Errorf("decode s3 blob config: %w", err)
		}
		return New(c, log)
	})
}

// Config is the [blob.drivers.s3] table.
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	// Prefix is prepended to every key, e.g. "fileshare/".
	Prefix string `mapstructure:"prefix"`
	// CreateBucket makes the bucket on first Ping when it is missing.
	CreateBucket bool `mapstructure:"create_bucket"`
}

func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.Prefix != "" && !strings.HasSuffix(c.Prefix, "/") {
		c.Prefix += "/"
	}
}

// Store is a bucket-backed blob store.
type Store struct {
	client *minio.Client
	cfg    Config
	log    *slog.Logger
}

// New builds the client. No request is made until the first operation.
func New(c Config, log *slog.Logger) (*Store, error) {
	c.ApplyDefaults()
	if c.Endpoint == "" {
		return nil, errors.New("s3 blob driver: endpoint is required")
	}
	if c.Bucket == "" {
		return nil, errors.New("s3 blob driver: bucket is required")
	}

	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 blob driver: %w", err)
	}
	return &Store{client: client, cfg: c, log: logutil.NoopIfNil(log)}, nil
}

func (s *Store) Name() string { return "s3" }

func (s *Store) objectKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", blob.ErrInvalidKey, key)
	}
	return s.cfg.Prefix + key, nil
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	obj, err := s.objectKey(key)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.cfg.Bucket, obj, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", obj, err)
	}
	s.log.Debug("blob stored", "bucket", s.cfg.Bucket, "key", obj, "size", info.Size)
	return nil
}

// Open stats the object first so a missing key fails here rather than on
// the first Read.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	o, err := s.client.GetObject(ctx, s.cfg.Bucket, obj, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(obj, err)
	}
	if _, err := o.Stat(); err != nil {
		o.Close()
		return nil, translate(obj, err)
	}
	return o, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	obj, err := s.objectKey(key)
	if err != nil {
		return err
	}
	err = s.client.RemoveObject(ctx, s.cfg.Bucket, obj, minio.RemoveObjectOptions{})
	if err != nil && !errors.Is(translate(obj, err), blob.ErrNotFound) {
		return fmt.Errorf("s3 delete %s: %w", obj, err)
	}
	return nil
}

// Ping checks the bucket, creating it when configured to.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("s3 bucket check: %w", err)
	}
	if ok {
		return nil
	}
	if !s.cfg.CreateBucket {
		return fmt.Errorf("s3 bucket %q does not exist", s.cfg.Bucket)
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("s3 create bucket: %w", err)
	}
	s.log.Info("created bucket", "bucket", s.cfg.Bucket)
	return nil
}

func (s *Store) Close() error { return nil }

func translate(obj string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", blob.ErrNotFound, obj)
	}
	return fmt.Errorf("s3 get %s: %w", obj, err)
}
