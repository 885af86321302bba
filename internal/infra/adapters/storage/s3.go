// Package storage persists generated assets in S3 and hands out presigned
// read links.
package storage

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"vidboost/internal/domain/ports/adapter"
)

var _ adapter.ObjectStorageAdapter = (*S3Adapter)(nil)

type S3Adapter struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	presignTTL time.Duration
}

func NewS3Adapter(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string, presignTTL time.Duration) (*S3Adapter, error) {
	if bucket == "" {
		return nil, errors.New("s3: empty bucket")
	}
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg)
	return &S3Adapter{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     bucket,
		presignTTL: presignTTL,
	}, nil
}

func (a *S3Adapter) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}

// PresignURL returns a time-limited GET link for a stored object. The
// bucket stays private; links expire after the configured TTL.
func (a *S3Adapter) PresignURL(ctx context.Context, key string) (string, error) {
	out, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(a.presignTTL))
	if err != nil {
		return "", err
	}
	return out.URL, nil
}
