package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AddCrashRecords inserts multiple crash records into the database.
func AddCrashRecords(ctx context.Context, db *gorm.DB, records []*CrashRecord) error {
	if len(records) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(records).Error
}

// NewCrashRecord creates a new CrashRecord with the provided parameters.
func NewCrashRecord(fuzzerName, hash, path string, size int64) *CrashRecord {
	return &CrashRecord{
		FuzzerName: fuzzerName,
		Hash:       hash,
		Path:       path,
		Size:       size,
		CreatedAt:  time.Now(),
	}
}
