package archive

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/chime-frb/workflow-go/pkg/models"
)

// S3 archives artifacts to an S3-compatible object store, keyed by
// `<subpath>/<pipeline>/<id>/<filename>` (spec.md section 4.5).
type S3 struct {
	client  *s3.Client
	bucket  string
	subpath string
}

// NewS3 builds an S3 backend from a workspace's per-site target.
func NewS3(ctx context.Context, target models.S3Target, accessKey, secretKey string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if target.URL != "" {
			o.BaseEndpoint = aws.String(target.URL)
		}
		o.UsePathStyle = true
	})

	return &S3{client: client, bucket: target.Bucket, subpath: target.Subpath}, nil
}

func (b *S3) key(destKey string) string {
	if b.subpath == "" {
		return destKey
	}
	return path.Join(b.subpath, destKey)
}

// Copy uploads src's bytes to destKey, leaving src untouched.
func (b *S3) Copy(ctx context.Context, src, destKey string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("s3 copy: source missing: %w", err)
	}
	defer f.Close()

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(destKey)),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("s3 copy: %w", err)
	}
	return nil
}

// Move uploads src's bytes to destKey, then removes the local source.
func (b *S3) Move(ctx context.Context, src, destKey string) error {
	if err := b.Copy(ctx, src, destKey); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("s3 move: remove local source: %w", err)
	}
	return nil
}

// Delete removes src from the local filesystem without ever reaching
// the object store; spec.md section 4.5's `delete` mode operates on the
// artifact wherever it currently resides, which for a Work still holding
// a local path is always local.
func (b *S3) Delete(ctx context.Context, src string) error {
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("s3 delete: %w", err)
	}
	return nil
}
