package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/justinnewbold/pattyshack-integrations/internal/models"
)

// CreateInput carries a new subscription. BearerToken, when set, is encrypted
// before it touches the database.
type CreateInput struct {
	LocationID     *string
	Name           string
	URL            string
	Method         string
	Headers        map[string]string
	AuthType       string
	BearerToken    string
	Events         []string
	RetryOnFailure *bool
	MaxRetries     int
	RetryDelaySecs int
}

// UpdateInput holds the mutable subscription fields; nil means unchanged.
type UpdateInput struct {
	Name           *string
	URL            *string
	Method         *string
	Headers        map[string]string
	AuthType       *string
	BearerToken    *string
	Events         []string
	Active         *bool
	RetryOnFailure *bool
	MaxRetries     *int
	RetryDelaySecs *int
}

// Create registers a webhook subscription.
func (d *Dispatcher) Create(ctx context.Context, in CreateInput) (*models.Webhook, error) {
	if in.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if len(in.Events) == 0 {
		return nil, fmt.Errorf("webhook must subscribe to at least one event")
	}

	now := time.Now().UTC()
	wh := &models.Webhook{
		ID:             uuid.New(),
		LocationID:     in.LocationID,
		Name:           in.Name,
		URL:            in.URL,
		Method:         in.Method,
		Headers:        in.Headers,
		AuthType:       in.AuthType,
		Events:         in.Events,
		Active:         true,
		RetryOnFailure: true,
		MaxRetries:     in.MaxRetries,
		RetryDelaySecs: in.RetryDelaySecs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if wh.Method == "" {
		wh.Method = "POST"
	}
	if wh.AuthType == "" {
		wh.AuthType = models.WebhookAuthNone
	}
	if in.RetryOnFailure != nil {
		wh.RetryOnFailure = *in.RetryOnFailure
	}
	if wh.MaxRetries <= 0 {
		wh.MaxRetries = 3
	}
	if wh.RetryDelaySecs <= 0 {
		wh.RetryDelaySecs = 60
	}

	if wh.AuthType == models.WebhookAuthBearer {
		if in.BearerToken == "" {
			return nil, fmt.Errorf("bearer_token auth requires a token")
		}
		blob, err := d.vault.Encrypt(map[string]string{"token": in.BearerToken})
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt webhook credentials: %w", err)
		}
		wh.AuthCredentials = blob
	}

	if err := d.db.WithContext(ctx).Create(wh).Error; err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}
	return wh, nil
}

// Get loads one webhook by id.
func (d *Dispatcher) Get(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	var wh models.Webhook
	err := d.db.WithContext(ctx).First(&wh, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebhookNotFound
		}
		return nil, fmt.Errorf("failed to load webhook: %w", err)
	}
	return &wh, nil
}

// List returns subscriptions, optionally scoped to a location. A scoped list
// includes global subscriptions, since those match the location's events too.
func (d *Dispatcher) List(ctx context.Context, locationID string) ([]models.Webhook, error) {
	q := d.db.WithContext(ctx).Order("created_at DESC")
	if locationID != "" {
		q = q.Where("location_id = ? OR location_id IS NULL", locationID)
	}

	var hooks []models.Webhook
	if err := q.Find(&hooks).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return hooks, nil
}

// Update applies the provided fields to an existing subscription.
func (d *Dispatcher) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Webhook, error) {
	wh, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		wh.Name = *in.Name
	}
	if in.URL != nil {
		wh.URL = *in.URL
	}
	if in.Method != nil {
		wh.Method = *in.Method
	}
	if in.Headers != nil {
		wh.Headers = in.Headers
	}
	if in.AuthType != nil {
		wh.AuthType = *in.AuthType
	}
	if in.BearerToken != nil {
		blob, err := d.vault.Encrypt(map[string]string{"token": *in.BearerToken})
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt webhook credentials: %w", err)
		}
		wh.AuthCredentials = blob
	}
	if in.Events != nil {
		wh.Events = in.Events
	}
	if in.Active != nil {
		wh.Active = *in.Active
	}
	if in.RetryOnFailure != nil {
		wh.RetryOnFailure = *in.RetryOnFailure
	}
	if in.MaxRetries != nil && *in.MaxRetries > 0 {
		wh.MaxRetries = *in.MaxRetries
	}
	if in.RetryDelaySecs != nil && *in.RetryDelaySecs > 0 {
		wh.RetryDelaySecs = *in.RetryDelaySecs
	}
	wh.UpdatedAt = time.Now().UTC()

	if err := d.db.WithContext(ctx).Save(wh).Error; err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}
	return wh, nil
}

// Delete removes a subscription. Its delivery history is kept for audit.
func (d *Dispatcher) Delete(ctx context.Context, id uuid.UUID) error {
	res := d.db.WithContext(ctx).Delete(&models.Webhook{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete webhook: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrWebhookNotFound
	}
	return nil
}

// Deliveries returns the webhook's delivery history, newest first.
func (d *Dispatcher) Deliveries(ctx context.Context, webhookID uuid.UUID, limit int) ([]models.WebhookDelivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	var deliveries []models.WebhookDelivery
	err := d.db.WithContext(ctx).
		Where("webhook_id = ?", webhookID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load deliveries: %w", err)
	}
	return deliveries, nil
}
