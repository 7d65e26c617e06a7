package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"earlykickoff-backend/internal/config"
	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/ports/adapter"
)

var _ adapter.ObjectStorage = (*S3Storage)(nil)

// S3Storage serves the logical buckets (uploads, imageBank, public) from an
// S3-compatible endpoint.
type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	buckets map[string]string
	log     *zerolog.Logger
}

func NewS3Storage(ctx context.Context, cfg config.StorageConfig, logger *zerolog.Logger) (*S3Storage, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	l := logger.With().Str("component", "S3Storage").Logger()
	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		buckets: cfg.Buckets,
		log:     &l,
	}, nil
}

// physical maps a logical bucket name onto the configured one; unmapped names
// are used verbatim.
func (s *S3Storage) physical(bucket string) string {
	if b, ok := s.buckets[bucket]; ok && strings.TrimSpace(b) != "" {
		return b
	}
	return bucket
}

func (s *S3Storage) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	if key == "" {
		return domain.ErrInvalidArgument
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.physical(bucket)),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		s.log.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("put object failed")
		return fmt.Errorf("%w: put %s/%s", domain.ErrStorage, bucket, key)
	}
	return nil
}

// PresignGet checks the object exists first; a presigned URL for a missing
// key would only fail later at fetch time.
func (s *S3Storage) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	phys := s.physical(bucket)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(phys), Key: aws.String(key)})
	if err != nil {
		var nf *types.NotFound
		var nsk *types.NoSuchKey
		if errors.As(err, &nf) || errors.As(err, &nsk) {
			return "", domain.ErrNotFound
		}
		s.log.Warn().Err(err).Str("bucket", bucket).Str("key", key).Msg("head object failed")
		return "", fmt.Errorf("%w: head %s/%s", domain.ErrNotFound, bucket, key)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(phys),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("%w: presign %s/%s", domain.ErrNotFound, bucket, key)
	}
	return req.URL, nil
}
