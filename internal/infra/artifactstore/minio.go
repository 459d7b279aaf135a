package artifactstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore fetches model artifacts from an S3-compatible bucket, so
// a retrain can publish a new pair without touching the service host.
type ObjectStore struct {
	client      *minio.Client
	bucket      string
	modelKey    string
	metadataKey string
	logger      *slog.Logger
}

// NewObjectStore constructs the bucket-backed store.
func NewObjectStore(endpoint, accessKey, secretKey, bucket, modelKey, metadataKey string, logger *slog.Logger) (*ObjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cleanEndpoint := sanitizeEndpoint(endpoint)
	useSSL := strings.HasPrefix(strings.ToLower(endpoint), "https")
	client, err := minio.New(cleanEndpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init artifact object client: %w", err)
	}
	return &ObjectStore{
		client:      client,
		bucket:      bucket,
		modelKey:    modelKey,
		metadataKey: metadataKey,
		logger:      logger.With("component", "artifactstore.object"),
	}, nil
}

// FetchModel downloads the model artifact object.
func (s *ObjectStore) FetchModel(ctx context.Context) ([]byte, error) {
	return s.fetch(ctx, s.modelKey)
}

// FetchMetadata downloads the metadata sidecar object.
func (s *ObjectStore) FetchMetadata(ctx context.Context) ([]byte, error) {
	return s.fetch(ctx, s.metadataKey)
}

func (s *ObjectStore) fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get artifact object %s/%s: %w", s.bucket, key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read artifact object %s/%s: %w", s.bucket, key, err)
	}
	s.logger.Debug("artifact object fetched", "key", key, "bytes", len(data))
	return data, nil
}

func sanitizeEndpoint(endpoint string) string {
	trimmed := strings.TrimSpace(endpoint)
	trimmed = strings.TrimPrefix(trimmed, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	return strings.TrimRight(trimmed, "/")
}
