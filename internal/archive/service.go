// Package archive stores raw sync payloads in S3-compatible object storage so
// a batch's original scanner output can be replayed or audited later.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Service archives one object per ingested batch, keyed by user, project, and
// sync ID.
type Service struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and ensures the bucket exists.
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Service{client: client, bucket: bucket}, nil
}

// StorePayload writes a raw sync payload. Archival is best-effort at the call
// site; a failure here must not fail the ingest.
func (s *Service) StorePayload(ctx context.Context, userID, projectName, syncID string, payload []byte) error {
	key := ObjectKey(userID, projectName, syncID)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("store payload %s: %w", key, err)
	}
	return nil
}

// FetchPayload reads back an archived sync payload.
func (s *Service) FetchPayload(ctx context.Context, userID, projectName, syncID string) ([]byte, error) {
	key := ObjectKey(userID, projectName, syncID)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch payload %s: %w", key, err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("read payload %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// ObjectKey builds the object name for a batch payload. Project names may
// contain path separators or spaces; those are flattened so one batch always
// maps to exactly one key segment.
func ObjectKey(userID, projectName, syncID string) string {
	return userID + "/" + sanitizeSegment(projectName) + "/" + syncID + ".json"
}

func sanitizeSegment(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "project"
	}
	return b.String()
}
