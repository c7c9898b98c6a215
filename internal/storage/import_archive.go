package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"civicvote/api/internal/config"
)

// ImportArchive keeps a copy of every uploaded voter CSV in object storage
// so bulk imports can be audited after the fact.
type ImportArchive struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewImportArchive(cfg config.StorageConfig) (*ImportArchive, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ImportArchive{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ImportArchive) EnsureBucket(ctx context.Context) error {
	bucket := s.cfg.BucketImports
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// Store archives one uploaded file under the session it was imported into
// and returns the object name.
func (s *ImportArchive) Store(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	objectName := fmt.Sprintf("%s/%d-%s", sessionID, time.Now().UnixNano(), filename)

	_, err := s.client.PutObject(ctx, s.cfg.BucketImports, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return "", fmt.Errorf("archive import %s: %w", objectName, err)
	}
	return objectName, nil
}
