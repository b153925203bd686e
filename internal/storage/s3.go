package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config holds S3/MinIO configuration
type S3Config struct {
	Endpoint        string // e.g., "http://localhost:9000" for MinIO
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	Prefix          string // Key prefix for analytics snapshots
}

// ObjectPutter is the subset of the S3 client the archive uses
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SnapshotArchive stores freshly computed analytics payloads in S3-compatible storage
type SnapshotArchive struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewSnapshotArchive creates an archive backed by a static-credential S3 client
func NewSnapshotArchive(cfg S3Config) *SnapshotArchive {
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		UsePathStyle: true, // Required for MinIO
	})

	return NewSnapshotArchiveWithClient(client, cfg.Bucket, cfg.Prefix)
}

// NewSnapshotArchiveWithClient creates an archive on top of an existing client
func NewSnapshotArchiveWithClient(client ObjectPutter, bucket, prefix string) *SnapshotArchive {
	if prefix == "" {
		prefix = "analytics"
	}
	return &SnapshotArchive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

// SnapshotKey returns the object key for a snapshot of accountKey taken at t
func (a *SnapshotArchive) SnapshotKey(accountKey string, t time.Time) string {
	return path.Join(
		a.prefix,
		url.PathEscape(accountKey),
		t.UTC().Format("2006/01/02"),
		fmt.Sprintf("%s-%s.json", t.UTC().Format("150405"), uuid.New().String()),
	)
}

// ArchiveSnapshot uploads payload under a dated key for accountKey
func (a *SnapshotArchive) ArchiveSnapshot(ctx context.Context, accountKey string, payload []byte) error {
	key := a.SnapshotKey(accountKey, a.now())

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot to s3: %w", err)
	}

	return nil
}
