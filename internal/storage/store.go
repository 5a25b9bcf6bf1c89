package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ducminhle1904/strategy-evolver/pkg/config"
)

// ErrNotFound is returned by Get when no document exists under the key
var ErrNotFound = errors.New("document not found")

// DocumentStore persists JSON documents keyed by collection and id.
// Implementations must be safe for concurrent use.
type DocumentStore interface {
	Put(ctx context.Context, collection, id string, doc []byte) error
	Get(ctx context.Context, collection, id string) ([]byte, error)
	// List returns every document of the collection ordered by id
	List(ctx context.Context, collection string) ([][]byte, error)
	Close() error
}

// Open creates the store selected by the persistence configuration
func Open(cfg config.PersistenceConfig) (DocumentStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendBuntDB:
		return NewBuntStore(cfg.Path)
	case config.BackendSQLite:
		return NewSQLStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func validateKey(collection, id string) error {
	if collection == "" || id == "" {
		return fmt.Errorf("collection and id are required (collection=%q id=%q)", collection, id)
	}
	if strings.Contains(collection, ":") {
		return fmt.Errorf("collection %q must not contain ':'", collection)
	}
	return nil
}
