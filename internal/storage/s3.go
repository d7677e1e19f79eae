package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds connection settings for an S3-compatible object store
// (AWS S3, Cloudflare R2, MinIO, ...). PublicBaseURL is the prefix stored
// objects are served from, e.g. a CDN or the bucket's public endpoint.
type S3Config struct {
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	Endpoint      string // empty for plain AWS S3
	PublicBaseURL string
}

// S3Store keeps uploads in an object-storage bucket.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

var _ UploadStore = (*S3Store)(nil)

// NewS3Store builds the S3 client. A custom endpoint switches the client
// to path-style addressing, which R2 and MinIO require.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(strings.TrimSuffix(cfg.Endpoint, "/"))
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *S3Store) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: putting object %s: %w", key, err)
	}

	return s.baseURL + "/" + key, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: deleting object %s: %w", key, err)
	}
	return nil
}

// DeletePrefix lists and removes every object under prefix, paging through
// ListObjectsV2 until the bucket has no more matches.
func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("storage: listing objects with prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if err := s.Delete(ctx, *obj.Key); err != nil {
				return err
			}
		}
	}
	return nil
}
