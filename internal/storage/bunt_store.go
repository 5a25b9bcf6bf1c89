package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/buntdb"
)

// BuntStore persists documents in a buntdb file under "collection:id" keys
type BuntStore struct {
	db     *buntdb.DB
	dbPath string
}

// NewBuntStore opens or creates the database file. ":memory:" keeps it in memory.
func NewBuntStore(dbPath string) (*BuntStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := buntdb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb %s: %w", dbPath, err)
	}

	if err := db.SetConfig(buntdb.Config{
		SyncPolicy:           buntdb.EverySecond,
		AutoShrinkPercentage: 100,
		AutoShrinkMinSize:    32 * 1024 * 1024,
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	return &BuntStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *BuntStore) Put(ctx context.Context, collection, id string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(collection, id); err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(buntKey(collection, id), string(doc), nil)
		return err
	})
}

func (s *BuntStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var val string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(buntKey(collection, id))
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

func (s *BuntStore) List(ctx context.Context, collection string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out [][]byte
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(collection+":*", func(key, value string) bool {
			out = append(out, []byte(value))
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close flushes and closes the database
func (s *BuntStore) Close() error {
	return s.db.Close()
}

func buntKey(collection, id string) string {
	return collection + ":" + id
}
