// Package credstore implements ports.CredentialsStore as file-based
// persistence, directly adapted from the teacher's FileTokenStorage: one
// JSON blob per broker id, written with owner-only permissions.
package credstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fincept/gateway/internal/apperrors"
	"github.com/fincept/gateway/internal/ports"
)

// FileStore is a directory of per-broker credential blob files.
type FileStore struct {
	basePath string
}

var _ ports.CredentialsStore = (*FileStore)(nil)

// NewFileStore creates a credential store rooted at basePath, defaulting
// to "data/credentials" and creating the directory if absent.
func NewFileStore(basePath string) (*FileStore, error) {
	if basePath == "" {
		basePath = filepath.Join("data", "credentials")
	}
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("credstore: create %s: %w", basePath, err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (f *FileStore) path(brokerID string) string {
	return filepath.Join(f.basePath, brokerID+".json")
}

// Load reads the blob for brokerID. A missing file is not an error at this
// layer — callers treat a nil, nil return as "no stored credentials yet".
func (f *FileStore) Load(_ context.Context, brokerID string) ([]byte, error) {
	data, err := os.ReadFile(f.path(brokerID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, brokerID, fmt.Errorf("credstore: read: %w", err))
	}
	return data, nil
}

// Store writes blob for brokerID with owner-only permissions.
func (f *FileStore) Store(_ context.Context, brokerID string, blob []byte) error {
	if err := os.WriteFile(f.path(brokerID), blob, 0600); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, brokerID, fmt.Errorf("credstore: write: %w", err))
	}
	return nil
}

// Delete removes the stored blob for brokerID. Deleting an absent blob is
// not an error.
func (f *FileStore) Delete(_ context.Context, brokerID string) error {
	if err := os.Remove(f.path(brokerID)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.Wrap(apperrors.KindInternal, brokerID, fmt.Errorf("credstore: delete: %w", err))
	}
	return nil
}
