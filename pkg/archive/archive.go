// Package archive stores finished batch journeys as JSON objects in an
// S3-compatible bucket (AWS S3 or MinIO).
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ghuser/agritrack/pkg/config"
)

const journeyPrefix = "journeys/"

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("archive: object not found")

// Store writes and reads objects in a single bucket.
type Store struct {
	client *s3.Client
	bucket string
}

// New builds a Store from the MinIO settings in cfg. Credentials come from
// MINIO_ROOT_USER / MINIO_ROOT_PASSWORD when set, otherwise from the default
// AWS chain.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg.MinioBucket == "" {
		return nil, fmt.Errorf("archive: bucket required")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.MinioRegion)}
	if cfg.MinioRootUser != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.MinioRootUser, cfg.MinioRootPassword, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.MinioEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.MinioEndpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return NewWithClient(client, cfg.MinioBucket), nil
}

// NewWithClient wraps an existing S3 client.
func NewWithClient(client *s3.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// JourneyKey returns the object key of a batch's archived journey.
func JourneyKey(batchID string) string {
	return journeyPrefix + batchID + ".json"
}

// PutJSON writes body under key with a JSON content type, replacing any
// previous object. Archiving the same journey twice is therefore harmless.
func (s *Store) PutJSON(ctx context.Context, key string, body []byte, metadata map[string]string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("archive: put %s: %w", key, err)
	}
	return nil
}

// Get returns the object stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("archive: get %s: %w", key, err)
	}
	defer out.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", key, err)
	}
	return data, nil
}

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("archive: head bucket %s: %w", s.bucket, err)
	}
	return nil
}
