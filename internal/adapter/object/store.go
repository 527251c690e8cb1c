// Package object adapts blob storage onto MinIO via minio-go/v7: one bucket
// per collection (see BucketName), one object per file-field value.
package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"cortexdb/internal/domain"
	"cortexdb/internal/infra/config"
)

// Store wraps a MinIO client.
type Store struct {
	client *minio.Client
}

// New connects to the MinIO endpoint described by cfg.
func New(cfg config.MinIOConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("object: new client: %w", err)
	}
	return &Store{client: client}, nil
}

// Ping satisfies gateway.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("object: ping: %w", domain.NewDomainError("object.ping", domain.ErrObjectStore, err.Error()))
	}
	return nil
}

// EnsureBucket creates bucket if it doesn't already exist.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("object: check bucket exists: %w", domain.NewDomainError("object.ensure_bucket", domain.ErrObjectStore, err.Error()))
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("object: make bucket: %w", domain.NewDomainError("object.ensure_bucket", domain.ErrObjectStore, err.Error()))
	}
	return nil
}

// Put uploads data as objectName within bucket.
func (s *Store) Put(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("object: put: %w", domain.NewDomainError("object.put", domain.ErrObjectStore, err.Error()))
	}
	return nil
}

// Get streams objectName's contents out of bucket. Callers must Close the
// returned ReadCloser.
func (s *Store) Get(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("object: get: %w", domain.NewDomainError("object.get", domain.ErrObjectStore, err.Error()))
	}
	return obj, nil
}

// Delete removes objectName from bucket. Deleting a nonexistent object is
// not an error, matching MinIO's own idempotent delete semantics.
func (s *Store) Delete(ctx context.Context, bucket, objectName string) error {
	if err := s.client.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("object: delete: %w", domain.NewDomainError("object.delete", domain.ErrObjectStore, err.Error()))
	}
	return nil
}

// PresignGet returns a time-limited URL for downloading objectName directly
// from the object store, bypassing the gateway for large-file retrieval.
func (s *Store) PresignGet(ctx context.Context, bucket, objectName string, expires time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, objectName, expires, nil)
	if err != nil {
		return "", fmt.Errorf("object: presign: %w", domain.NewDomainError("object.presign", domain.ErrPresignFailed, err.Error()))
	}
	return u.String(), nil
}
