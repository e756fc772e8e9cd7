package patchset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the part of the S3 client used by [S3Source]. *s3.Client
// satisfies it.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures [NewS3Source].
type S3Config struct {
	Bucket string
	// Prefix is prepended to "<tag>.yaml" to form the object key.
	Prefix string
	// Region defaults to us-east-1.
	Region string
	// Endpoint is optional, e.g. a MinIO URL.
	Endpoint  string
	PathStyle bool
	// AccessKeyID and SecretAccessKey are optional; without them the default
	// credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// S3Source reads "<prefix><tag>.yaml" objects from a bucket.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

var _ Source = (*S3Source)(nil)

// NewS3Source builds an S3 client from cfg.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("patchset: s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("patchset: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3SourceFromClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3SourceFromClient wraps an existing client.
func NewS3SourceFromClient(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// Name implements [Source].
func (s *S3Source) Name() string { return "s3:" + s.bucket }

// Key returns the object key for tag.
func (s *S3Source) Key(tag string) string {
	return strings.TrimPrefix(s.prefix+tag+".yaml", "/")
}

// Fetch implements [Source].
func (s *S3Source) Fetch(ctx context.Context, tag string) ([]byte, error) {
	key := s.Key(tag)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("patchset: get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("patchset: read s3://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}
