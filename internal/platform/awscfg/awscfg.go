// Package awscfg loads the shared AWS SDK configuration.
package awscfg

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Local switches to static credentials so the SDK never reaches for
	// instance metadata when talking to DynamoDB Local or MinIO.
	Local bool
}

func Load(ctx context.Context, o Options) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}

	if o.Local || o.AccessKeyID != "" {
		key, secret := o.AccessKeyID, o.SecretAccessKey
		if key == "" {
			key = "local"
		}
		if secret == "" {
			secret = "local"
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
