// Package storage wraps put/get/sign operations against an S3-compatible
// blob store. Long-lived credentials never appear in URLs handed to clients.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"palmlens-backend/internal/config"
)

// Gateway provides object storage operations for palm images.
type Gateway struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	publicBaseURL string
}

// New creates a storage gateway. Endpoint, when set, points the client at an
// S3-compatible provider such as Cloudflare R2.
func New(ctx context.Context, cfg config.StorageConfig) (*Gateway, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Gateway{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Upload stores an object and returns its public URL.
func (g *Gateway) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return g.PublicURL(key), nil
}

// Copy duplicates an object within the bucket, used when a temporary upload
// is converted into a durable reading image.
func (g *Gateway) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := g.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(g.bucket),
		CopySource: aws.String(fmt.Sprintf("%s/%s", g.bucket, srcKey)),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		return fmt.Errorf("failed to copy object: %w", err)
	}
	return nil
}

// SignedGetURL generates a time-limited URL for reading an object.
func (g *Gateway) SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	request, err := g.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign get: %w", err)
	}
	return request.URL, nil
}

// ImageURL returns a signed URL for an object, falling back to the public
// URL when presigning fails.
func (g *Gateway) ImageURL(ctx context.Context, key string) string {
	signed, err := g.SignedGetURL(ctx, key, time.Hour)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Presign failed, falling back to public URL")
		return g.PublicURL(key)
	}
	return signed
}

// PublicURL returns the public URL for an object.
func (g *Gateway) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", g.publicBaseURL, key)
}

// TempKey builds the object key for an anonymous session upload.
func TempKey(token string) string {
	return fmt.Sprintf("temp/%s/%d.jpg", token, time.Now().UnixMilli())
}

// ReadingKey builds the object key for a durable reading image.
func ReadingKey(userID, readingID string) string {
	return fmt.Sprintf("readings/%s/%s/%d.jpg", userID, readingID, time.Now().UnixMilli())
}
