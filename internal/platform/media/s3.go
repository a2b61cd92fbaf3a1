// Package media stores uploaded images in S3 (or any S3-compatible store).
package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/awscfg"
)

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // set for MinIO or LocalStack
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL prefixes object keys in returned URLs. Defaults to the
	// virtual-hosted bucket URL, or endpoint/bucket when Endpoint is set.
	PublicBaseURL string
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Store struct {
	client  putter
	bucket  string
	baseURL string
}

var _ core.MediaStore = (*S3Store)(nil)

// NewS3 returns nil, nil when no bucket is configured.
func NewS3(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	awsCfg, err := awscfg.Load(ctx, awscfg.Options{
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Local:           cfg.Endpoint != "",
	})
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket, baseURL: publicBase(cfg)}, nil
}

func publicBase(cfg Config) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

func (s *S3Store) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: s3 put %s: %v", core.ErrUnavailable, key, err)
	}
	return s.baseURL + "/" + key, nil
}
