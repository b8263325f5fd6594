package s3

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"portfolio-rag/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3_config "github.com/aws/aws-sdk-go-v2/config"
	s3_credentials "github.com/aws/aws-sdk-go-v2/credentials"
	s3_provider "github.com/aws/aws-sdk-go-v2/service/s3"
)

const Scheme = "s3://"

// GetClient builds an S3 client from config.Cfg.S3. A custom endpoint switches
// to path-style addressing so MinIO works out of the box.
func GetClient(ctx context.Context) (*s3_provider.Client, error) {
	s3cfg := config.Cfg.S3
	region := s3cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*s3_config.LoadOptions) error{
		s3_config.WithRegion(region),
	}
	if s3cfg.AccessKey != "" && s3cfg.SecretKey != "" {
		opts = append(opts, s3_config.WithCredentialsProvider(
			s3_credentials.NewStaticCredentialsProvider(s3cfg.AccessKey, s3cfg.SecretKey, ""),
		))
	}

	cfg, err := s3_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	endpoint := s3cfg.Endpoint
	return s3_provider.NewFromConfig(cfg, func(o *s3_provider.Options) {
		if endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// IsURI reports whether path points into a bucket.
func IsURI(path string) bool {
	return strings.HasPrefix(path, Scheme)
}

// ParseURI splits s3://bucket/key into its parts.
func ParseURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 uri without key: %q", uri)
	}
	return u.Host, key, nil
}

// URI is the inverse of ParseURI.
func URI(bucket, key string) string {
	return fmt.Sprintf("%s%s/%s", Scheme, bucket, key)
}
