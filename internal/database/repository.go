package database

import (
	"context"
	"time"

	"focusguard/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the persistence gateway: a key/blob store with atomic
// replace and bounded backups, plus the error log and session history.
type Repository struct {
	db          *DB
	backupLimit int
}

// NewRepository creates a new repository instance keeping at most
// backupLimit previous values per key
func NewRepository(db *DB, backupLimit int) *Repository {
	if backupLimit < 0 {
		backupLimit = 0
	}
	return &Repository{db: db, backupLimit: backupLimit}
}

// Load returns the blob stored under key, or nil if there is none
func (r *Repository) Load(ctx context.Context, key string) ([]byte, error) {
	var blob models.Blob
	result := r.db.WithContext(ctx).Where("blob_key = ?", key).Limit(1).Find(&blob)
	if result.Error != nil {
		return nil, errors.Wrapf(result.Error, "failed to load blob %q", key)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return blob.Data, nil
}

// Save replaces the blob under key. The previous value is moved to the
// backups and backups beyond the limit are dropped, all in one transaction.
func (r *Repository) Save(ctx context.Context, key string, data []byte) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev models.Blob
		result := tx.Where("blob_key = ?", key).Limit(1).Find(&prev)
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to read previous blob")
		}

		if result.RowsAffected > 0 && r.backupLimit > 0 {
			backup := &models.BlobBackup{Key: key, Data: prev.Data}
			if err := tx.Create(backup).Error; err != nil {
				return errors.Wrap(err, "failed to back up previous blob")
			}
			if err := r.trimBackups(tx, key); err != nil {
				return err
			}
		}

		blob := &models.Blob{Key: key, Data: data, Size: len(data)}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blob_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "size", "updated_at"}),
		}).Create(blob).Error
		if err != nil {
			return errors.Wrap(err, "failed to write blob")
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to save blob %q", key)
	}
	return nil
}

func (r *Repository) trimBackups(tx *gorm.DB, key string) error {
	var ids []uint
	result := tx.Model(&models.BlobBackup{}).
		Where("blob_key = ?", key).
		Order("id DESC").
		Pluck("id", &ids)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to list old backups")
	}
	if len(ids) <= r.backupLimit {
		return nil
	}
	if err := tx.Delete(&models.BlobBackup{}, ids[r.backupLimit:]).Error; err != nil {
		return errors.Wrap(err, "failed to drop old backups")
	}
	return nil
}

// Backups returns the stored backups of key, newest first
func (r *Repository) Backups(ctx context.Context, key string) ([]models.BlobBackup, error) {
	var backups []models.BlobBackup
	result := r.db.WithContext(ctx).Where("blob_key = ?", key).Order("id DESC").Find(&backups)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query backups")
	}
	return backups, nil
}

// RestoreLatestBackup makes the newest backup of key current again
func (r *Repository) RestoreLatestBackup(ctx context.Context, key string) error {
	var backup models.BlobBackup
	result := r.db.WithContext(ctx).Where("blob_key = ?", key).Order("id DESC").Limit(1).Find(&backup)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to query backups")
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	blob := &models.Blob{Key: key, Data: backup.Data, Size: len(backup.Data)}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "blob_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "size", "updated_at"}),
	}).Create(blob).Error
	if err != nil {
		return errors.Wrap(err, "failed to restore backup")
	}
	return nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// RecentErrors returns the newest error logs
func (r *Repository) RecentErrors(limit int) ([]models.ErrorLog, error) {
	var logs []models.ErrorLog
	result := r.db.Order("timestamp DESC").Limit(limit).Find(&logs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query error logs")
	}
	return logs, nil
}

// CreateFocusSession stores a finished focus session
func (r *Repository) CreateFocusSession(s *models.FocusSession) error {
	result := r.db.Create(s)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert focus session")
	}
	return nil
}

// GetSessionsSince retrieves the sessions started at or after since
func (r *Repository) GetSessionsSince(since time.Time) ([]*models.FocusSession, error) {
	var sessions []*models.FocusSession
	result := r.db.Where("started_at >= ?", since).Order("started_at ASC").Find(&sessions)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query focus sessions")
	}
	return sessions, nil
}

// GetSessionSummarySince aggregates sessions started at or after since
func (r *Repository) GetSessionSummarySince(since time.Time) (models.SessionSummary, error) {
	var summary models.SessionSummary
	result := r.db.Model(&models.FocusSession{}).
		Select("COUNT(*) as count, COALESCE(SUM(elapsed_seconds), 0) as total_seconds, COALESCE(MAX(elapsed_seconds), 0) as longest_secs").
		Where("started_at >= ?", since).
		Scan(&summary)
	if result.Error != nil {
		return models.SessionSummary{}, errors.Wrap(result.Error, "failed to summarize focus sessions")
	}
	return summary, nil
}

// DeleteOldSessions deletes sessions started before a specified date (soft delete)
func (r *Repository) DeleteOldSessions(before time.Time) (int64, error) {
	result := r.db.Where("started_at < ?", before).Delete(&models.FocusSession{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old sessions")
	}
	return result.RowsAffected, nil
}

// Clear removes the blobs and backups of keys and the session history
func (r *Repository) Clear(ctx context.Context, keys ...string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(keys) > 0 {
			if err := tx.Where("blob_key IN ?", keys).Delete(&models.Blob{}).Error; err != nil {
				return errors.Wrap(err, "failed to clear blobs")
			}
			if err := tx.Where("blob_key IN ?", keys).Delete(&models.BlobBackup{}).Error; err != nil {
				return errors.Wrap(err, "failed to clear backups")
			}
		}
		if err := tx.Exec("DELETE FROM focus_sessions").Error; err != nil {
			return errors.Wrap(err, "failed to clear focus sessions")
		}
		return nil
	})
}
