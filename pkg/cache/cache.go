// Package cache persists paged collections and conversation mirrors in a
// local SQLite database so the CLI can continue where the last run stopped.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/clause"

	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/paging"
)

// SnapshotRecord is one saved paging controller.
type SnapshotRecord struct {
	Key        string `gorm:"primaryKey;column:snapshot_key"`
	Items      []byte
	Page       int
	Limit      int
	Total      int
	TotalKnown bool
	Exhausted  bool
	SavedAt    time.Time
	UpdatedAt  time.Time
}

// MirrorRecord is one entry of a mirrored stream, e.g. a message in a
// conversation.
type MirrorRecord struct {
	Scope     string `gorm:"primaryKey"`
	ID        string `gorm:"primaryKey"`
	Data      []byte
	SortAt    time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// Store is a SQLite-backed cache. It implements paging.Store.
type Store struct {
	db *gorm.DB
}

var _ paging.Store = (*Store)(nil)

// Open opens (creating if needed) the cache at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	// sqlite allows one writer; a single connection also keeps ":memory:"
	// pointed at one database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&SnapshotRecord{}, &MirrorRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate cache: %w", err)
	}

	logger.Debug("Cache opened", "path", path)
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSnapshot stores snap, replacing any previous one with the same key.
func (s *Store) SaveSnapshot(ctx context.Context, snap paging.Snapshot) error {
	rec := SnapshotRecord{
		Key:        snap.Key,
		Items:      snap.Items,
		Page:       snap.Cursor.Page,
		Limit:      snap.Cursor.Limit,
		Total:      snap.Cursor.Total,
		TotalKnown: snap.Cursor.TotalKnown,
		Exhausted:  snap.Cursor.Exhausted,
		SavedAt:    snap.SavedAt,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", snap.Key, err)
	}
	return nil
}

// LoadSnapshot returns the snapshot stored under key.
func (s *Store) LoadSnapshot(ctx context.Context, key string) (paging.Snapshot, bool, error) {
	var rec SnapshotRecord
	err := s.db.WithContext(ctx).Where("snapshot_key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return paging.Snapshot{}, false, nil
	}
	if err != nil {
		return paging.Snapshot{}, false, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	return paging.Snapshot{
		Key:   rec.Key,
		Items: rec.Items,
		Cursor: paging.Cursor{
			Page:       rec.Page,
			Limit:      rec.Limit,
			Total:      rec.Total,
			TotalKnown: rec.TotalKnown,
			Exhausted:  rec.Exhausted,
		},
		SavedAt: rec.SavedAt,
	}, true, nil
}

// DeleteSnapshot removes the snapshot under key. Missing keys are not an
// error.
func (s *Store) DeleteSnapshot(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("snapshot_key = ?", key).Delete(&SnapshotRecord{}).Error
}

// Keys lists saved snapshot keys.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&SnapshotRecord{}).Order("snapshot_key").Pluck("snapshot_key", &keys).Error
	return keys, err
}

// Clear removes every snapshot and mirror entry.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&SnapshotRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&MirrorRecord{}).Error
	})
}

// PutMirror stores or replaces one mirrored entry.
func (s *Store) PutMirror(ctx context.Context, scope, id string, data []byte, sortAt time.Time) error {
	rec := MirrorRecord{Scope: scope, ID: id, Data: data, SortAt: sortAt}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

// DeleteMirror removes one mirrored entry.
func (s *Store) DeleteMirror(ctx context.Context, scope, id string) error {
	return s.db.WithContext(ctx).
		Where("scope = ? AND id = ?", scope, id).
		Delete(&MirrorRecord{}).Error
}

// PruneMirror removes the entries of scope sorted at or after since whose
// id is not in keep. A zero since prunes the whole scope.
func (s *Store) PruneMirror(ctx context.Context, scope string, keep []string, since time.Time) (int, error) {
	var removed int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recs []MirrorRecord
		if err := tx.Select("id", "sort_at").Where("scope = ?", scope).Find(&recs).Error; err != nil {
			return err
		}
		kept := make(map[string]bool, len(keep))
		for _, id := range keep {
			kept[id] = true
		}
		var stale []string
		for _, r := range recs {
			if !kept[r.ID] && !r.SortAt.Before(since) {
				stale = append(stale, r.ID)
			}
		}
		if len(stale) == 0 {
			return nil
		}
		res := tx.Where("scope = ? AND id IN ?", scope, stale).Delete(&MirrorRecord{})
		removed = int(res.RowsAffected)
		return res.Error
	})
	return removed, err
}

// Mirror returns the entries of scope oldest first.
func (s *Store) Mirror(ctx context.Context, scope string) ([]MirrorRecord, error) {
	var recs []MirrorRecord
	err := s.db.WithContext(ctx).
		Where("scope = ?", scope).
		Order("sort_at, id").
		Find(&recs).Error
	return recs, err
}
