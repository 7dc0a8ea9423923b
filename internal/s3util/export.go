// Package s3util uploads booth exports to S3 and hands out presigned links
// to them, for deployments where the GIF cannot be streamed back directly.
package s3util

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultLinkExpiry is how long a presigned export link stays valid.
const DefaultLinkExpiry = 15 * time.Minute

// PutObjectAPI is the subset of the S3 client UploadExport needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignAPI is the subset of s3.PresignClient GeneratePresignedURL needs.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// UploadExport stores data under <prefix>/exports/<uuid><ext> and returns
// the object key.
func UploadExport(ctx context.Context, client PutObjectAPI, bucket, prefix, ext, contentType string, data []byte) (string, error) {
	key := path.Join(prefix, "exports", uuid.NewString()+ext)

	log.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Uploading export to S3")

	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
		Tagging:     ProjectTagging(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export to S3: %w", err)
	}

	log.Info().Str("key", key).Int("bytes", len(data)).Msg("Export uploaded to S3")
	return key, nil
}

// GeneratePresignedURL returns a GET link to key valid for expiry, or
// DefaultLinkExpiry when expiry is zero.
func GeneratePresignedURL(ctx context.Context, presigner PresignAPI, bucket, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = DefaultLinkExpiry
	}
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign export: %w", err)
	}
	return req.URL, nil
}

// Exporter uploads exports to one bucket and returns presigned links.
type Exporter struct {
	Client    PutObjectAPI
	Presigner PresignAPI
	Bucket    string
	Prefix    string
	Expiry    time.Duration
}

// PublishGIF uploads a GIF and returns a presigned link to it.
func (e *Exporter) PublishGIF(ctx context.Context, data []byte) (string, error) {
	key, err := UploadExport(ctx, e.Client, e.Bucket, e.Prefix, ".gif", "image/gif", data)
	if err != nil {
		return "", err
	}
	return GeneratePresignedURL(ctx, e.Presigner, e.Bucket, key, e.Expiry)
}
