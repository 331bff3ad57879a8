package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
)

// WebhookDelivery records the attempts to deliver one event to one webhook.
// The row is created at dispatch and updated in place on every attempt;
// AttemptCount only ever increases.
type WebhookDelivery struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WebhookID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"webhook_id"`
	Webhook       Webhook    `gorm:"foreignKey:WebhookID" json:"-"`
	EventType     string     `gorm:"size:64;not null" json:"event_type"`
	Payload       string     `gorm:"type:text;not null" json:"payload"`
	Status        string     `gorm:"size:16;not null;default:'pending'" json:"status"`
	HTTPStatus    *int       `json:"http_status"`
	ResponseBody  *string    `gorm:"type:text" json:"response_body"`
	LatencyMs     *int       `json:"latency_ms"`
	AttemptCount  int        `gorm:"not null;default:0" json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at"`
	NextRetryAt   *time.Time `gorm:"index" json:"next_retry_at"`
	ErrorMessage  *string    `gorm:"type:text" json:"error_message"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}
