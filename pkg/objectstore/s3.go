// Package objectstore downloads import files from S3.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// GetObjectAPI is the part of the S3 client the fetcher uses.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads whole objects from S3.
type S3Fetcher struct {
	client GetObjectAPI
}

// NewS3Fetcher wraps client.
func NewS3Fetcher(client GetObjectAPI) *S3Fetcher {
	return &S3Fetcher{client: client}
}

// NewDefaultS3Fetcher uses the Lambda execution role credentials.
func NewDefaultS3Fetcher(ctx context.Context) (*S3Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3Fetcher(s3.NewFromConfig(cfg)), nil
}

// Fetch reads the whole object. Keys arrive URL-encoded in S3 event records
// and are decoded first.
func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		decoded = key
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(decoded),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object s3://%s/%s: %w", bucket, decoded, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}
	return body, nil
}
