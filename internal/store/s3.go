package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/fpang/claw-cam/internal/s3util"
	"github.com/rs/zerolog/log"
)

// maxDeleteObjects is the S3 DeleteObjects limit per call.
const maxDeleteObjects = 1000

// S3API is the subset of *s3.Client used by S3Backend.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Backend stores each entry as an object at <prefix>/<store>/<key>.
type S3Backend struct {
	client S3API
	bucket string
	prefix string
}

var _ Backend = (*S3Backend)(nil)

// NewS3Backend creates an S3Backend. prefix may be empty.
func NewS3Backend(client S3API, bucket, prefix string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (b *S3Backend) storePrefix(store string) string {
	if b.prefix == "" {
		return store + "/"
	}
	return b.prefix + "/" + store + "/"
}

func (b *S3Backend) objectKey(store, key string) string {
	return b.storePrefix(store) + key
}

func (b *S3Backend) Get(ctx context.Context, store, key string) ([]byte, bool, error) {
	if err := checkStore(store); err != nil {
		return nil, false, err
	}
	objKey := b.objectKey(store, key)
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &b.bucket, Key: &objKey})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("S3 GetObject %s: %w", objKey, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", objKey, err)
	}
	return data, true, nil
}

func (b *S3Backend) Set(ctx context.Context, store, key string, value []byte) error {
	if err := checkStore(store); err != nil {
		return err
	}
	objKey := b.objectKey(store, key)
	contentType := "application/json"
	if IsPayloadStore(store) {
		contentType = "text/plain"
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &b.bucket,
		Key:         &objKey,
		Body:        bytes.NewReader(value),
		ContentType: &contentType,
		Tagging:     s3util.ProjectTagging(),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", objKey, err)
	}
	return nil
}

func (b *S3Backend) Delete(ctx context.Context, store, key string) error {
	if err := checkStore(store); err != nil {
		return err
	}
	objKey := b.objectKey(store, key)
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &b.bucket, Key: &objKey}); err != nil {
		return fmt.Errorf("S3 DeleteObject %s: %w", objKey, err)
	}
	return nil
}

func (b *S3Backend) GetAll(ctx context.Context, store string) (map[string][]byte, error) {
	if err := checkStore(store); err != nil {
		return nil, err
	}
	keys, err := b.listKeys(ctx, store)
	if err != nil {
		return nil, err
	}
	prefix := b.storePrefix(store)
	out := make(map[string][]byte, len(keys))
	for _, objKey := range keys {
		key := strings.TrimPrefix(objKey, prefix)
		value, ok, err := b.Get(ctx, store, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = value
		}
	}
	return out, nil
}

func (b *S3Backend) Clear(ctx context.Context, store string) error {
	if err := checkStore(store); err != nil {
		return err
	}
	keys, err := b.listKeys(ctx, store)
	if err != nil {
		return err
	}
	for i := 0; i < len(keys); i += maxDeleteObjects {
		end := min(i+maxDeleteObjects, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-i)
		for _, k := range keys[i:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		result, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: &b.bucket,
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("S3 DeleteObjects (%d keys): %w", len(ids), err)
		}
		if len(result.Errors) > 0 {
			log.Warn().Int("failed", len(result.Errors)).Str("store", store).Msg("S3 DeleteObjects reported per-key errors")
		}
	}
	return nil
}

// Close is a no-op.
func (b *S3Backend) Close() error { return nil }

func (b *S3Backend) listKeys(ctx context.Context, store string) ([]string, error) {
	prefix := b.storePrefix(store)
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: &b.bucket,
		Prefix: &prefix,
	})
	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("S3 ListObjectsV2 %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}
