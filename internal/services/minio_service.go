package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ahmad-alkadri/scrubber/internal/config"
	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// ErrObjectNotFound is returned by GetObject when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

type MinioService struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

// NewMinioService connects to MinIO and makes sure the configured bucket exists.
func NewMinioService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*MinioService, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	service := &MinioService{
		client: client,
		bucket: cfg.MinioBucket,
		logger: logger.With().Str("component", "minio").Str("bucket", cfg.MinioBucket).Logger(),
	}

	if err := service.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return service, nil
}

func (m *MinioService) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("error checking if bucket exists: %w", err)
	}

	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("error creating bucket: %w", err)
		}
		m.logger.Info().Msg("Created bucket")
	}

	return nil
}

// SaveObject uploads a cleaned file under objectName.
func (m *MinioService) SaveObject(ctx context.Context, objectName string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := m.client.PutObject(ctx, m.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", objectName, err)
	}

	m.logger.Debug().
		Str("object", objectName).
		Str("size", humanize.IBytes(uint64(len(data)))).
		Msg("Saved object")
	return nil
}

// GetObject downloads an object. Missing keys yield ErrObjectNotFound.
func (m *MinioService) GetObject(ctx context.Context, objectName string) ([]byte, error) {
	object, err := m.client.GetObject(ctx, m.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.objectError(objectName, err)
	}
	defer object.Close()

	// minio-go defers the request until the first read, so a missing key
	// surfaces here rather than from GetObject.
	var buffer bytes.Buffer
	if _, err := buffer.ReadFrom(object); err != nil {
		return nil, m.objectError(objectName, err)
	}

	return buffer.Bytes(), nil
}

func (m *MinioService) objectError(objectName string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, objectName)
	}
	return fmt.Errorf("failed to get object %s: %w", objectName, err)
}

// ListObjects returns every key in the bucket in lexical order.
func (m *MinioService) ListObjects(ctx context.Context) ([]string, error) {
	var objects []string
	for object := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}
		objects = append(objects, object.Key)
	}
	sort.Strings(objects)
	return objects, nil
}

func (m *MinioService) DeleteObject(ctx context.Context, objectName string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectName, err)
	}

	m.logger.Debug().Str("object", objectName).Msg("Deleted object")
	return nil
}
