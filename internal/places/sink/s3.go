package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 uploads the snapshot to an S3-compatible bucket.
type S3 struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3 loads the default AWS configuration. A non-empty endpoint enables
// path-style addressing for MinIO and similar.
func NewS3(ctx context.Context, bucket, key, region, endpoint string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3{
		client: s3.NewFromConfig(cfg, opts...),
		bucket: bucket,
		key:    key,
	}, nil
}

func (d *S3) Write(ctx context.Context, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(d.bucket),
		Key:          aws.String(d.key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String("public, max-age=300"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s/%s: %w", d.bucket, d.key, err)
	}
	return nil
}
