// Package storage locates heap dumps and stores exported query results,
// either on the local filesystem or in Tencent Cloud COS.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/heapql/pkg/config"
	apperrors "github.com/heapql/pkg/errors"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Storage is the object store holding heap dumps and result exports. Keys
// are slash separated and relative to the store root.
type Storage interface {
	// Open streams the object at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes the contents of r to key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader) error

	// Stat returns size and modification time of key.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// List returns the objects whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Fetch makes key available as a local file, copying it below cacheDir
	// when the store is remote, and returns the file path.
	Fetch(ctx context.Context, key, cacheDir string) (string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a location for key suitable for display.
	URL(key string) string
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeCOS   StorageType = "cos"
)

// NewStorage creates the backend selected by cfg.Type.
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if StorageType(cfg.Type) == StorageTypeCOS {
		return NewCOSStorage(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	}
	return NewLocalStorage(cfg.LocalPath)
}

// ValidateConfig validates the storage configuration.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return fmt.Errorf("storage config is nil")
	}
	switch StorageType(cfg.Type) {
	case StorageTypeLocal, "":
		if cfg.LocalPath == "" {
			return fmt.Errorf("local storage path is required")
		}
	case StorageTypeCOS:
		if cfg.Bucket == "" {
			return fmt.Errorf("COS bucket is required")
		}
		if cfg.Region == "" {
			return fmt.Errorf("COS region is required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return fmt.Errorf("COS credentials are required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	return nil
}

// normalizeKey cleans a key and rejects keys that are empty or climb out
// of the store root.
func normalizeKey(key string) (string, error) {
	k := strings.TrimLeft(strings.ReplaceAll(key, "\\", "/"), "/")
	parts := strings.Split(k, "/")
	clean := parts[:0]
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			return "", apperrors.New(apperrors.CodeInvalidInput, "invalid storage key: "+key)
		}
		clean = append(clean, p)
	}
	if len(clean) == 0 {
		return "", apperrors.New(apperrors.CodeInvalidInput, "empty storage key")
	}
	return strings.Join(clean, "/"), nil
}

func notFound(key string) error {
	return apperrors.New(apperrors.CodeNotFound, "object not found: "+key)
}

func storageError(msg string, err error) error {
	return apperrors.Wrap(apperrors.CodeStorageError, msg, err)
}
