package artifactstore

import (
	"context"
	"fmt"
	"os"
)

// LocalStore reads the trained model and its metadata sidecar from the
// local filesystem, mirroring the layout the offline trainer writes.
type LocalStore struct {
	modelPath    string
	metadataPath string
}

// NewLocalStore constructs the store.
func NewLocalStore(modelPath, metadataPath string) *LocalStore {
	return &LocalStore{modelPath: modelPath, metadataPath: metadataPath}
}

// FetchModel reads the serialized model artifact.
func (s *LocalStore) FetchModel(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.modelPath)
	if err != nil {
		return nil, fmt.Errorf("read model artifact %s: %w", s.modelPath, err)
	}
	return data, nil
}

// FetchMetadata reads the metadata sidecar.
func (s *LocalStore) FetchMetadata(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.metadataPath)
	if err != nil {
		return nil, fmt.Errorf("read model metadata %s: %w", s.metadataPath, err)
	}
	return data, nil
}
