// Package storage puts objects into Cloudflare R2 through its S3 API.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"pollpick/internal/config"
)

type R2Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewR2Store builds an S3 client against the account's R2 endpoint.
func NewR2Store(ctx context.Context, cfg *config.Config) (*R2Store, error) {
	if !cfg.StorageEnabled() {
		return nil, fmt.Errorf("missing Cloudflare R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Store{
		client:    client,
		bucket:    cfg.R2BucketName,
		publicURL: strings.TrimSuffix(cfg.R2PublicURL, "/"),
	}, nil
}

func (s *R2Store) Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to r2: %w", err)
	}
	return nil
}

func (s *R2Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from r2: %w", err)
	}
	return nil
}

// URL returns the public address of key.
func (s *R2Store) URL(key string) string {
	return s.publicURL + "/" + key
}
