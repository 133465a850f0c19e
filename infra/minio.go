package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/entity"
)

// MinioClient stores snapshots of finished review jobs for auditing.
type MinioClient struct {
	Client      *minio.Client
	Endpoint    string
	AuditBucket string
}

func NewMinioClient(cfg *config.EnvConfig) (*MinioClient, error) {
	endpoint := cfg.Minio.Endpoint
	if endpoint == "" {
		return nil, errors.New("MinIO endpoint is not configured")
	}
	if cfg.Minio.RootUser == "" || cfg.Minio.RootPassword == "" {
		return nil, errors.New("MinIO credentials are not configured")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.RootUser, cfg.Minio.RootPassword, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	return &MinioClient{
		Client:      client,
		Endpoint:    endpoint,
		AuditBucket: cfg.Minio.AuditBucket,
	}, nil
}

func (m *MinioClient) EnsureAuditBucket(ctx context.Context) error {
	exists, err := m.Client.BucketExists(ctx, m.AuditBucket)
	if err != nil {
		return fmt.Errorf("failed to check audit bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.Client.MakeBucket(ctx, m.AuditBucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create audit bucket: %w", err)
	}
	return nil
}

func AuditObjectKey(job *entity.ReviewJob) string {
	return fmt.Sprintf("jobs/%s/%d.json", job.OwnerID.String(), job.ID)
}

// ArchiveJob writes the terminal job, steps and console included, as one JSON object.
func (m *MinioClient) ArchiveJob(ctx context.Context, job *entity.ReviewJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job snapshot: %w", err)
	}

	_, err = m.Client.PutObject(ctx, m.AuditBucket, AuditObjectKey(job), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to archive job %d: %w", job.ID, err)
	}
	return nil
}
