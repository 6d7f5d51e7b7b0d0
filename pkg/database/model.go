package database

import "time"

// CrashRecord represents a record in the public.crashes table. One row per
// discovered crash artifact.
type CrashRecord struct {
	ID         int       `gorm:"primaryKey;column:id"`
	FuzzerName string    `gorm:"column:fuzzer_name;not null"`
	Hash       string    `gorm:"column:hash;not null"`
	Path       string    `gorm:"column:path;not null"`
	Size       int64     `gorm:"column:size"`
	CreatedAt  time.Time `gorm:"column:created_at;default:now()"`
}

func (CrashRecord) TableName() string {
	return "crashes"
}
