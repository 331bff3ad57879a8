package models

import (
	"time"

	"github.com/google/uuid"
)

// Integration lifecycle statuses
const (
	IntegrationStatusPending  = "pending"
	IntegrationStatusActive   = "active"
	IntegrationStatusError    = "error"
	IntegrationStatusDisabled = "disabled"
)

// Sync outcome recorded on the integration after each run
const (
	SyncOutcomeSuccess = "success"
	SyncOutcomeFailed  = "failed"
)

// Integration binds one location to one third-party provider. Credentials is
// an opaque vault-encrypted blob and never leaves the service in plaintext.
type Integration struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	LocationID        string            `gorm:"size:64;not null;uniqueIndex:idx_integrations_location_provider,priority:1" json:"location_id"`
	ProviderID        string            `gorm:"size:64;not null;uniqueIndex:idx_integrations_location_provider,priority:2" json:"provider_id"`
	Status            string            `gorm:"size:16;not null;default:'pending'" json:"status"`
	Credentials       string            `gorm:"type:text" json:"-"`
	Config            map[string]string `gorm:"serializer:json" json:"config"`
	SyncIntervalMins  int               `gorm:"not null;default:60" json:"sync_interval_minutes"`
	AutoSync          bool              `gorm:"not null;default:false" json:"auto_sync"`
	EnabledFeatures   []string          `gorm:"serializer:json" json:"enabled_features"`
	LastSyncAt        *time.Time        `json:"last_sync_at"`
	LastSyncStatus    *string           `gorm:"size:16" json:"last_sync_status"`
	ConsecutiveErrors int               `gorm:"not null;default:0" json:"consecutive_errors"`
	LastError         *string           `gorm:"type:text" json:"last_error"`
	CreatedAt         time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null" json:"updated_at"`
}

func (Integration) TableName() string {
	return "integrations"
}
