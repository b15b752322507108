package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig addresses an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// MinioStore keeps blobs as objects in an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore connects to the endpoint and creates the bucket if needed.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, prefix: objectPrefix(cfg.Prefix)}, nil
}

func objectPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (s *MinioStore) key(id string) string {
	return s.prefix + id
}

func (s *MinioStore) Put(ctx context.Context, id string, data []byte, mimeType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(id), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: normalizeMime(mimeType),
	})
	if err != nil {
		return fmt.Errorf("put blob %s: %w", id, err)
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, id string) (Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(id), minio.GetObjectOptions{})
	if err != nil {
		return Object{}, s.mapErr(id, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return Object{}, s.mapErr(id, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return Object{}, s.mapErr(id, err)
	}
	return Object{ID: id, Data: data, MimeType: normalizeMime(info.ContentType)}, nil
}

func (s *MinioStore) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list blobs: %w", info.Err)
		}
		ids = append(ids, strings.TrimPrefix(info.Key, s.prefix))
	}
	return ids, nil
}

func (s *MinioStore) Delete(ctx context.Context, id string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.key(id), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	return nil
}

func (s *MinioStore) mapErr(id string, err error) error {
	if isNoSuchKey(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fmt.Errorf("get blob %s: %w", id, err)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
