package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SyncTypeManual    = "manual"
	SyncTypeScheduled = "scheduled"
)

const (
	SyncStatusInProgress = "in_progress"
	SyncStatusCompleted  = "completed"
	SyncStatusFailed     = "failed"
)

// SyncLog is an append-only record of one sync attempt. Rows are finalized
// exactly once and never mutated or deleted afterwards.
type SyncLog struct {
	ID               uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	IntegrationID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"integration_id"`
	Integration      Integration `gorm:"foreignKey:IntegrationID" json:"-"`
	SyncType         string      `gorm:"size:16;not null" json:"sync_type"`
	Direction        string      `gorm:"size:16;not null;default:'pull'" json:"direction"`
	Status           string      `gorm:"size:16;not null;default:'in_progress'" json:"status"`
	StartedAt        time.Time   `gorm:"not null" json:"started_at"`
	CompletedAt      *time.Time  `json:"completed_at"`
	RecordsProcessed int         `gorm:"not null;default:0" json:"records_processed"`
	RecordsSucceeded int         `gorm:"not null;default:0" json:"records_succeeded"`
	RecordsFailed    int         `gorm:"not null;default:0" json:"records_failed"`
	ErrorMessage     *string     `gorm:"type:text" json:"error_message"`
	CreatedAt        time.Time   `gorm:"not null" json:"created_at"`
}

func (SyncLog) TableName() string {
	return "sync_logs"
}
