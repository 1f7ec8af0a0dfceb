// Package publish uploads rendered episodes, records them and maintains the
// podcast feed.
package publish

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the part of the S3 client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Storage handles S3 uploads for episode artifacts.
type Storage struct {
	client     S3API
	bucket     string
	cdnBaseURL string // e.g. "https://alice.github.io/hk-brief"
}

// NewStorage creates an S3 storage handler.
func NewStorage(client S3API, bucket, cdnBaseURL string) *Storage {
	return &Storage{client: client, bucket: bucket, cdnBaseURL: strings.TrimRight(cdnBaseURL, "/")}
}

// Upload puts the file at path under key and returns its public URL.
func (s *Storage) Upload(ctx context.Context, key, path, contentType string) (url string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat %s: %w", path, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          f,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", 0, fmt.Errorf("upload %s to s3: %w", key, err)
	}
	return s.URL(key), info.Size(), nil
}

// URL is the public address of key.
func (s *Storage) URL(key string) string {
	return s.cdnBaseURL + "/" + key
}
