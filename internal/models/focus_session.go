package models

import (
	"time"

	"gorm.io/gorm"
)

// FocusSession is a finished focus session.
type FocusSession struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	StartedAt      time.Time      `gorm:"not null;index" json:"started_at"`
	EndedAt        time.Time      `gorm:"not null" json:"ended_at"`
	ElapsedSeconds int64          `gorm:"not null;default:0" json:"elapsed_seconds"`
	EndingApp      string         `gorm:"not null;default:''" json:"ending_app"`
	EndingCategory string         `gorm:"not null;default:''" json:"ending_category"`
	Reason         string         `gorm:"not null" json:"reason"` // "distraction", "user" or "shutdown"
	CreatedAt      time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// SessionSummary aggregates finished sessions.
type SessionSummary struct {
	Count        int64 `json:"count"`
	TotalSeconds int64 `json:"total_seconds"`
	LongestSecs  int64 `json:"longest_seconds"`
}
