package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinnewbold/pattyshack-integrations/internal/models"
	"github.com/justinnewbold/pattyshack-integrations/internal/vault"
)

var ErrWebhookNotFound = errors.New("webhook not found")

// Outcome is the settled per-webhook result of a fan-out. A delivery failure
// is an Outcome, never an error; only infrastructure faults set Error with no
// delivery behind it.
type Outcome struct {
	WebhookID    uuid.UUID  `json:"webhook_id"`
	DeliveryID   uuid.UUID  `json:"delivery_id"`
	Status       string     `json:"status"`
	HTTPStatus   *int       `json:"http_status,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Dispatcher fans out operational events to subscribed webhooks. Deliveries
// are concurrent and independent: one subscriber failing or hanging never
// blocks a sibling.
type Dispatcher struct {
	db               *gorm.DB
	vault            *vault.Vault
	logger           *zap.Logger
	client           *http.Client
	maxResponseChars int
}

func NewDispatcher(db *gorm.DB, v *vault.Vault, logger *zap.Logger, timeout time.Duration, maxResponseChars int) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxResponseChars <= 0 {
		maxResponseChars = 1000
	}
	return &Dispatcher{
		db:               db,
		vault:            v,
		logger:           logger,
		client:           &http.Client{Timeout: timeout},
		maxResponseChars: maxResponseChars,
	}
}

// Trigger delivers the event to every active webhook subscribed to
// eventType. The returned slice has one settled outcome per matched webhook,
// in no particular completion order.
func (d *Dispatcher) Trigger(ctx context.Context, eventType string, payload map[string]interface{}) ([]Outcome, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	matched, err := d.subscribed(ctx, eventType)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(matched))
	var wg sync.WaitGroup
	for i := range matched {
		wg.Add(1)
		go func(i int, wh models.Webhook) {
			defer wg.Done()
			outcomes[i] = d.dispatchOne(ctx, &wh, eventType, string(payloadBytes))
		}(i, matched[i])
	}
	wg.Wait()

	d.logger.Info("Webhook fan-out settled",
		zap.String("event_type", eventType),
		zap.Int("subscriber_count", len(matched)),
	)
	return outcomes, nil
}

// RetryDue re-attempts failed deliveries whose next_retry_at has come due.
// Meant to be driven by an external scheduler.
func (d *Dispatcher) RetryDue(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var due []models.WebhookDelivery
	err := d.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			models.DeliveryStatusFailed, time.Now().UTC()).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load due deliveries: %w", err)
	}

	outcomes := make([]Outcome, len(due))
	var wg sync.WaitGroup
	for i := range due {
		wg.Add(1)
		go func(i int, delivery models.WebhookDelivery) {
			defer wg.Done()
			outcomes[i] = d.retryOne(ctx, &delivery)
		}(i, due[i])
	}
	wg.Wait()

	if len(due) > 0 {
		d.logger.Info("Retry sweep settled", zap.Int("delivery_count", len(due)))
	}
	return outcomes, nil
}

// dispatchOne creates the delivery record and runs the first attempt.
func (d *Dispatcher) dispatchOne(ctx context.Context, wh *models.Webhook, eventType, payload string) Outcome {
	now := time.Now().UTC()
	delivery := &models.WebhookDelivery{
		ID:        uuid.New(),
		WebhookID: wh.ID,
		EventType: eventType,
		Payload:   payload,
		Status:    models.DeliveryStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.db.WithContext(ctx).Create(delivery).Error; err != nil {
		d.logger.Error("Failed to create delivery record",
			zap.String("webhook_id", wh.ID.String()),
			zap.Error(err),
		)
		return Outcome{
			WebhookID: wh.ID,
			Status:    models.DeliveryStatusFailed,
			Error:     fmt.Sprintf("failed to create delivery record: %v", err),
		}
	}
	return d.attempt(ctx, wh, delivery)
}

// retryOne reloads the owning webhook and re-attempts a due delivery.
func (d *Dispatcher) retryOne(ctx context.Context, delivery *models.WebhookDelivery) Outcome {
	var wh models.Webhook
	err := d.db.WithContext(ctx).First(&wh, "id = ?", delivery.WebhookID).Error
	if err != nil {
		return Outcome{
			WebhookID:  delivery.WebhookID,
			DeliveryID: delivery.ID,
			Status:     models.DeliveryStatusFailed,
			Error:      fmt.Sprintf("failed to load webhook: %v", err),
		}
	}
	if !wh.Active {
		// Subscriber was deactivated after the delivery was scheduled; park
		// the delivery as exhausted.
		now := time.Now().UTC()
		d.db.WithContext(ctx).Model(delivery).Updates(map[string]interface{}{
			"next_retry_at": nil,
			"updated_at":    now,
		})
		return Outcome{
			WebhookID:    wh.ID,
			DeliveryID:   delivery.ID,
			Status:       models.DeliveryStatusFailed,
			AttemptCount: delivery.AttemptCount,
			Error:        "webhook inactive",
		}
	}
	return d.attempt(ctx, &wh, delivery)
}

// subscribed loads the active webhooks whose event set contains eventType.
// Event sets are small JSON arrays, so matching happens here rather than in
// SQL.
func (d *Dispatcher) subscribed(ctx context.Context, eventType string) ([]models.Webhook, error) {
	var active []models.Webhook
	err := d.db.WithContext(ctx).
		Where("active = ?", true).
		Find(&active).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load webhooks: %w", err)
	}

	matched := active[:0]
	for _, wh := range active {
		if wh.Subscribed(eventType) {
			matched = append(matched, wh)
		}
	}
	return matched, nil
}
