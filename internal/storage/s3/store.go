// Package s3 reads corpus objects from an S3 bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/kailas-cloud/recall/internal/domain"
)

// API is the subset of the S3 client used by Store.
type API interface {
	awss3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
}

// Config holds bucket access parameters.
type Config struct {
	Bucket       string
	Endpoint     string
	UsePathStyle bool
	Timeout      time.Duration
}

// Object is a listed key with its size in bytes.
type Object struct {
	Key  string
	Size int64
}

// Store lists and fetches objects of a single bucket.
type Store struct {
	api     API
	bucket  string
	timeout time.Duration
}

// NewStore creates a store from a loaded AWS config.
func NewStore(awsCfg aws.Config, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewStoreWithAPI(client, cfg), nil
}

// NewStoreWithAPI creates a store over an arbitrary client implementation.
func NewStoreWithAPI(api API, cfg Config) *Store {
	return &Store{api: api, bucket: cfg.Bucket, timeout: cfg.Timeout}
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

// List returns every object under prefix in listing order.
func (s *Store) List(ctx context.Context, prefix string) ([]Object, error) {
	p := awss3.NewListObjectsV2Paginator(s.api, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var out []Object
	for p.HasMorePages() {
		page, err := s.nextPage(ctx, p)
		if err != nil {
			return out, fmt.Errorf("list %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, Object{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
		}
	}
	return out, nil
}

func (s *Store) nextPage(ctx context.Context, p *awss3.ListObjectsV2Paginator) (*awss3.ListObjectsV2Output, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return p.NextPage(ctx)
}

// Get reads the whole object body.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return data, nil
}

// CheckBucket probes the bucket and classifies failures into
// domain.ErrBucketNotFound or domain.ErrBucketForbidden.
func (s *Store) CheckBucket(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.api.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if kind := classifyBucketError(err); kind != nil {
		return fmt.Errorf("%w: %s: %w", kind, s.bucket, err)
	}
	return fmt.Errorf("head bucket %s: %w", s.bucket, err)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

type httpStatusError interface {
	HTTPStatusCode() int
}

func classifyBucketError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return domain.ErrBucketNotFound
		case "Forbidden", "AccessDenied":
			return domain.ErrBucketForbidden
		}
	}
	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return domain.ErrBucketNotFound
		case http.StatusForbidden:
			return domain.ErrBucketForbidden
		}
	}
	return nil
}
