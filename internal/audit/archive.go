package audit

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"glowspa/api/internal/config"
)

// Archive stores flushed audit batches in an S3-compatible bucket.
type Archive struct {
	client *minio.Client
	cfg    config.AuditConfig
}

func NewArchive(cfg config.AuditConfig) (*Archive, error) {
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

	return &Archive{
		client: client,
		cfg:    cfg,
	}, nil
}

func (a *Archive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", a.cfg.Bucket, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.cfg.Bucket, minio.MakeBucketOptions{Region: a.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.cfg.Bucket, err)
		}
	}
	return nil
}

func (a *Archive) Archive(ctx context.Context, name string, data []byte) error {
	_, err := a.client.PutObject(ctx, a.cfg.Bucket, name,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/x-ndjson"},
	)
	if err != nil {
		return fmt.Errorf("put audit object %s: %w", name, err)
	}
	return nil
}
