// Package s3archive reads NEXRAD Level II volumes from the public S3 archive.
package s3archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/wsrdata/wsrdata/internal/domain"
)

// Defaults for the NOAA open-data bucket of Level II volumes.
const (
	DefaultBucket = "noaa-nexrad-level2"
	DefaultRegion = "us-east-1"
)

// Config selects the bucket and endpoint.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // empty uses AWS; set for mirrors and tests
	Timeout  time.Duration
	Attempts int // SDK retry attempts per request; 0 keeps the SDK default
}

// Archive implements pipeline.Archive with anonymous S3 requests.
type Archive struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// New creates an Archive. The bucket is public, so requests are unsigned.
func New(cfg Config, logger *slog.Logger) *Archive {
	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: aws.AnonymousCredentials{},
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.Attempts > 0 {
		opts.RetryMaxAttempts = cfg.Attempts
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return &Archive{
		client: s3.New(opts),
		bucket: cfg.Bucket,
		logger: logger,
	}
}

// List returns every object key under prefix.
func (a *Archive) List(ctx context.Context, prefix string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Download fetches key into dst through a temporary file so that dst is
// either complete or absent.
func (a *Archive) Download(ctx context.Context, key, dst string) error {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("get %s: %w", key, domain.ErrNotFoundUpstream)
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create scan dir: %w", err)
	}
	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(f, out.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("download %s: %w", key, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}

	a.logger.Debug("scan downloaded", "key", key, "bytes", n)
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
