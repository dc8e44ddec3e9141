// Package s3 provides an S3 implementation of remote.Provider.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/bitsgate/pkg/blobstore"
	"github.com/marmos91/bitsgate/pkg/blobstore/remote"
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

// Config holds configuration for the S3 provider.
type Config struct {
	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	// Public download URLs are signed against it.
	Endpoint string

	// InternalEndpoint, when set, is used to sign internal download URLs.
	InternalEndpoint string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the SDK default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// MaxAttempts bounds SDK attempts per request. Zero means a single
	// attempt: callers decide whether to retry.
	MaxAttempts int
}

// Provider talks to S3 through the AWS SDK.
type Provider struct {
	client          *s3.Client
	presign         *s3.PresignClient
	internalPresign *s3.PresignClient
	region          string
}

var _ remote.Provider = (*Provider)(nil)

// New creates a Provider from existing clients. internal may be nil, in
// which case internal URLs are signed with client.
func New(client, internal *s3.Client, region string) *Provider {
	if internal == nil {
		internal = client
	}
	return &Provider{
		client:          client,
		presign:         s3.NewPresignClient(client),
		internalPresign: s3.NewPresignClient(internal),
		region:          region,
	}
}

// NewFromConfig loads AWS configuration and builds the S3 clients.
func NewFromConfig(ctx context.Context, cfg Config) (*Provider, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	opts = append(opts, awsconfig.WithRetryMaxAttempts(attempts))

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, clientOptions(cfg.Endpoint, cfg.ForcePathStyle)...)

	var internal *s3.Client
	if cfg.InternalEndpoint != "" {
		internal = s3.NewFromConfig(awsCfg, clientOptions(cfg.InternalEndpoint, cfg.ForcePathStyle)...)
	}

	return New(client, internal, awsCfg.Region), nil
}

func clientOptions(endpoint string, pathStyle bool) []func(*s3.Options) {
	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if pathStyle {
		opts = append(opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return opts
}

// GetContainer returns the bucket, or nil if it does not exist.
func (p *Provider) GetContainer(ctx context.Context, name string) (*blobstore.Container, error) {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 head bucket: %w", err)
	}
	return &blobstore.Container{Name: name, Location: name}, nil
}

// CreateContainer creates the bucket.
func (p *Provider) CreateContainer(ctx context.Context, name string) (*blobstore.Container, error) {
	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if p.region != "" && p.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(p.region),
		}
	}
	if _, err := p.client.CreateBucket(ctx, input); err != nil {
		if isAlreadyExists(err) {
			return nil, bitserrors.NewAlreadyExistsError(name, err)
		}
		return nil, fmt.Errorf("s3 create bucket: %w", err)
	}
	return &blobstore.Container{Name: name, Location: name}, nil
}

// Put uploads body as a single object.
func (p *Provider) Put(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// Head returns the object size.
func (p *Provider) Head(ctx context.Context, bucket, key string) (int64, error) {
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, bitserrors.NewNotFoundError(key)
		}
		return 0, fmt.Errorf("s3 head object: %w", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Delete removes the object. S3 reports success for missing keys.
func (p *Provider) Delete(ctx context.Context, bucket, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// PresignGet signs a GET request for the object.
func (p *Provider) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration, internal bool) (string, error) {
	presigner := p.presign
	if internal {
		presigner = p.internalPresign
	}
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign get: %w", err)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsk) || errors.As(err, &nf) || errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}

func isAlreadyExists(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	return errors.As(err, &owned) || errors.As(err, &exists)
}
