package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AnTengye/keydates/config"
	"github.com/AnTengye/keydates/model"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveService writes sanitized extraction results to object storage.
type ArchiveService struct {
	client *minio.Client
	bucket string
	config *config.ArchiveConfig
	now    func() time.Time
}

func NewArchiveService(cfg *config.ArchiveConfig) (*ArchiveService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ArchiveService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
		now:    time.Now,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ArchiveService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// ObjectName returns results/<yyyy>/<mm>/<dd>/<checksum>-<uuid>.json.
func (s *ArchiveService) ObjectName(checksum string) string {
	return fmt.Sprintf("results/%s/%s-%s.json", s.now().UTC().Format("2006/01/02"), checksum, uuid.New().String())
}

// SaveResult uploads result as JSON and returns the object name.
func (s *ArchiveService) SaveResult(ctx context.Context, checksum string, result *model.ExtractionResult) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	objectName := s.ObjectName(checksum)
	_, err = s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload result: %w", err)
	}

	return objectName, nil
}
