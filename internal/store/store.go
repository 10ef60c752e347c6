// Package store persists the tracker's named JSON documents.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/ZanzyTHEbar/compete-docs-tracker/internal/errors"
)

var (
	// ErrNotFound indicates the named document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidName indicates an empty name or one containing a path segment.
	ErrInvalidName = errors.New("invalid document name")
)

// Store loads and saves whole documents by name. Save replaces the document; the last writer wins.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	Close() error
}

// Supported drivers
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverBlob   = "blob"
	DriverMemory = "memory"
)

// Drivers lists every supported driver name
var Drivers = []string{DriverFile, DriverSQLite, DriverRedis, DriverBlob, DriverMemory}

// Open creates the store selected by cfg.Driver
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFile, "":
		return NewFileStore(cfg.Dir)
	case DriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case DriverRedis:
		return NewRedisStore(ctx, cfg.Redis)
	case DriverBlob:
		return NewBlobStore(ctx, cfg.Blob)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// LoadRequired loads a document that must exist
func LoadRequired(ctx context.Context, s Store, name string) ([]byte, error) {
	data, err := s.Load(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NewMissingDocumentError(name)
		}
		return nil, apperrors.NewStorageError("load", name, err)
	}
	return data, nil
}

// LoadOptional loads a document that may be absent. A missing document yields nil data and no error.
func LoadOptional(ctx context.Context, s Store, name string) ([]byte, error) {
	data, err := s.Load(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewStorageError("load", name, err)
	}
	return data, nil
}

// SaveAll writes documents in the given order, stopping at the first failure
func SaveAll(ctx context.Context, s Store, docs ...Document) error {
	for _, doc := range docs {
		if err := s.Save(ctx, doc.Name, doc.Data); err != nil {
			return apperrors.NewStorageError("save", doc.Name, err)
		}
	}
	return nil
}

// Document is a named encoded document
type Document struct {
	Name string
	Data []byte
}

func validateName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
