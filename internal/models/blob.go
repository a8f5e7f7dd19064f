package models

import "time"

// Blob is the current value stored under a key.
type Blob struct {
	Key       string    `gorm:"primaryKey;column:blob_key" json:"key"`
	Data      []byte    `gorm:"not null" json:"-"`
	Size      int       `gorm:"not null;default:0" json:"size"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BlobBackup is a previous value of a blob, kept for recovery.
type BlobBackup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"not null;index;column:blob_key" json:"key"`
	Data      []byte    `gorm:"not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
