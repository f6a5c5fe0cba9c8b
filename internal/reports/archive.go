package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"helpdesk_backend/platform/config"
)

// DownloadURLTTL is how long the link in a report email stays valid.
const DownloadURLTTL = 7 * 24 * time.Hour

// MinIOArchive stores rendered reports in an S3-compatible bucket.
type MinIOArchive struct {
	client *minio.Client
	bucket string
}

// NewMinIOArchive creates the archive client.
func NewMinIOArchive(cfg config.MinIOConfig) (*MinIOArchive, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOArchive{client: client, bucket: cfg.GetMinioBucketReports()}, nil
}

// EnsureBucketExists creates the bucket if it doesn't exist.
func (a *MinIOArchive) EnsureBucketExists(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
		}
	}

	return nil
}

// Put uploads the report HTML under {org}/{day}.html, replacing an earlier
// run for the same day, and returns a presigned download link.
func (a *MinIOArchive) Put(ctx context.Context, organizationID uuid.UUID, p Period, html string) (string, error) {
	key := archiveKey(organizationID, p)
	_, err := a.client.PutObject(ctx, a.bucket, key, strings.NewReader(html), int64(len(html)), minio.PutObjectOptions{
		ContentType: "text/html; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report %s: %w", key, err)
	}

	u, err := a.client.PresignedGetObject(ctx, a.bucket, key, DownloadURLTTL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign report %s: %w", key, err)
	}
	return u.String(), nil
}

func archiveKey(organizationID uuid.UUID, p Period) string {
	return organizationID.String() + "/" + p.Label() + ".html"
}
