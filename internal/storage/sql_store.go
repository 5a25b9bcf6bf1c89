package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// documentModel is the single table backing every collection
type documentModel struct {
	Collection string `gorm:"primaryKey;size:64"`
	ID         string `gorm:"primaryKey;size:128"`
	Body       string `gorm:"type:text;not null"`
	UpdatedAt  time.Time
}

func (documentModel) TableName() string {
	return "documents"
}

// SQLStore persists documents in SQLite through gorm
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore opens or creates the SQLite database at path and migrates the schema
func NewSQLStore(path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sql store: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&documentModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Put(ctx context.Context, collection, id string, doc []byte) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	record := documentModel{
		Collection: collection,
		ID:         id,
		Body:       string(doc),
		UpdatedAt:  time.Now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
		}).
		Create(&record).Error
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var record documentModel
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(record.Body), nil
}

func (s *SQLStore) List(ctx context.Context, collection string) ([][]byte, error) {
	var records []documentModel
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("id").
		Find(&records).Error; err != nil {
		return nil, err
	}

	out := make([][]byte, len(records))
	for i, r := range records {
		out[i] = []byte(r.Body)
	}
	return out, nil
}

// Close closes the underlying database connection
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
