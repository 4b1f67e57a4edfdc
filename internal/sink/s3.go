package sink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/logger"
)

// S3Sink uploads objects to a single S3 bucket.
type S3Sink struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// NewS3 builds an S3Sink from static credentials. A non-empty Endpoint points
// the client at an S3-compatible store such as MinIO.
func NewS3(ctx context.Context, cfg config.SinkConfig) (*S3Sink, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Sink{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.WithComponent("s3-sink").With("bucket", cfg.Bucket),
	}, nil
}

// Put writes body to s3://bucket/key.
func (s *S3Sink) Put(ctx context.Context, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("%w: s3://%s/%s: %v", apperrors.ErrUpload, s.bucket, key, err)
	}
	s.logger.Debug("object uploaded", "key", key, "size", len(body))
	return nil
}
