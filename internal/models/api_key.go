package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is an opaque bearer credential for external callers. Only the SHA-256
// hash of the secret is stored; the plaintext exists once, at issue time.
type APIKey struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	KeyHash     string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	KeyPrefix   string     `gorm:"size:16;not null" json:"key_prefix"`
	LocationID  *string    `gorm:"size:64" json:"location_id"`
	UserID      *string    `gorm:"size:64" json:"user_id"`
	Permissions []string   `gorm:"serializer:json" json:"permissions"`
	RateLimit   int        `gorm:"not null;default:1000" json:"rate_limit"`
	ExpiresAt   *time.Time `json:"expires_at"`
	IPAllowlist []string   `gorm:"serializer:json" json:"ip_allowlist"`
	Active      bool       `gorm:"not null;default:true" json:"active"`
	UsageCount  int64      `gorm:"not null;default:0" json:"usage_count"`
	LastUsedAt  *time.Time `json:"last_used_at"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (APIKey) TableName() string {
	return "api_keys"
}

// Expired reports whether the key has an expiry in the past.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}
