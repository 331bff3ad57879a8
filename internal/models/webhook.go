package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	WebhookAuthNone   = "none"
	WebhookAuthBearer = "bearer_token"
)

const (
	WebhookLastStatusSuccess = "success"
	WebhookLastStatusFailed  = "failed"
)

// Webhook is an outbound subscription. LocationID nil means the subscription
// is global and matches events from every location. AuthCredentials holds the
// vault-encrypted bearer token when AuthType is bearer_token.
type Webhook struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	LocationID      *string           `gorm:"size:64;index" json:"location_id"`
	Name            string            `gorm:"size:255;not null" json:"name"`
	URL             string            `gorm:"not null" json:"url"`
	Method          string            `gorm:"size:8;not null;default:'POST'" json:"method"`
	Headers         map[string]string `gorm:"serializer:json" json:"headers"`
	AuthType        string            `gorm:"size:16;not null;default:'none'" json:"auth_type"`
	AuthCredentials string            `gorm:"type:text" json:"-"`
	Events          []string          `gorm:"serializer:json" json:"events"`
	Active          bool              `gorm:"not null;default:true" json:"active"`
	RetryOnFailure  bool              `gorm:"not null;default:true" json:"retry_on_failure"`
	MaxRetries      int               `gorm:"not null;default:3" json:"max_retries"`
	RetryDelaySecs  int               `gorm:"not null;default:60" json:"retry_delay_seconds"`
	SuccessCount    int               `gorm:"not null;default:0" json:"success_count"`
	FailureCount    int               `gorm:"not null;default:0" json:"failure_count"`
	LastTriggeredAt *time.Time        `json:"last_triggered_at"`
	LastStatus      *string           `gorm:"size:16" json:"last_status"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null" json:"updated_at"`
}

func (Webhook) TableName() string {
	return "webhooks"
}

// Subscribed reports whether the webhook's event set contains eventType.
func (w *Webhook) Subscribed(eventType string) bool {
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}
