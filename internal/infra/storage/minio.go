package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bxxst/aixbt-agent/internal/domain/digest"
)

// objectAPI is the part of *minio.Client the store uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store archives finished digests in a MinIO / S3 bucket.
type Store struct {
	client     objectAPI
	bucketName string
	prefix     string
}

var _ digest.Publisher = (*Store)(nil)

// New buat koneksi MinIO dan pastikan bucket ada
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey, prefix string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return newStore(cli, bucket, prefix), nil
}

func newStore(client objectAPI, bucket, prefix string) *Store {
	if prefix == "" {
		prefix = "digests"
	}
	return &Store{client: client, bucketName: bucket, prefix: prefix}
}

func (s *Store) Name() string { return "minio" }

// ObjectKey is <prefix>/<yyyy-mm-dd>/<batch id>.<ext>
func (s *Store) ObjectKey(b *digest.Batch, ext string) string {
	return path.Join(s.prefix, b.GeneratedAt.UTC().Format("2006-01-02"), b.ID+"."+ext)
}

// Publish uploads the rendered digest and its JSON form.
func (s *Store) Publish(ctx context.Context, b *digest.Batch) error {
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", b.ID, err)
	}
	if err := s.put(ctx, s.ObjectKey(b, "json"), raw, "application/json"); err != nil {
		return err
	}
	return s.put(ctx, s.ObjectKey(b, "txt"), []byte(b.Text()), "text/plain; charset=utf-8")
}

func (s *Store) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Check implementasi HealthChecker
func (s *Store) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s not found", s.bucketName)
	}
	return nil
}
