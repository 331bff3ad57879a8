package webhooks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinnewbold/pattyshack-integrations/internal/models"
)

func TestCreateDefaults(t *testing.T) {
	d := newTestDispatcher(t)

	wh := createWebhook(t, d, CreateInput{
		Name:   "defaults",
		URL:    "https://example.com/hook",
		Events: []string{"order.completed"},
	})

	assert.Equal(t, "POST", wh.Method)
	assert.Equal(t, models.WebhookAuthNone, wh.AuthType)
	assert.True(t, wh.Active)
	assert.True(t, wh.RetryOnFailure)
	assert.Equal(t, 3, wh.MaxRetries)
	assert.Equal(t, 60, wh.RetryDelaySecs)
	assert.Nil(t, wh.LocationID)
}

func TestCreateValidation(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Create(ctx, CreateInput{Name: "no url", Events: []string{"order.completed"}})
	assert.Error(t, err)

	_, err = d.Create(ctx, CreateInput{Name: "no events", URL: "https://example.com"})
	assert.Error(t, err)

	_, err = d.Create(ctx, CreateInput{
		Name:     "bearer without token",
		URL:      "https://example.com",
		Events:   []string{"order.completed"},
		AuthType: models.WebhookAuthBearer,
	})
	assert.Error(t, err)
}

func TestCreateEncryptsBearerToken(t *testing.T) {
	d := newTestDispatcher(t)

	wh := createWebhook(t, d, CreateInput{
		Name:        "authed",
		URL:         "https://example.com",
		Events:      []string{"order.completed"},
		AuthType:    models.WebhookAuthBearer,
		BearerToken: "plain-token",
	})

	require.NotEmpty(t, wh.AuthCredentials)
	assert.NotContains(t, wh.AuthCredentials, "plain-token")

	creds, err := d.vault.Decrypt(wh.AuthCredentials)
	require.NoError(t, err)
	assert.Equal(t, "plain-token", creds["token"])
}

func TestListIncludesGlobalsForLocation(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	loc := "loc-1"
	other := "loc-2"
	scoped := createWebhook(t, d, CreateInput{
		LocationID: &loc,
		Name:       "scoped",
		URL:        "https://example.com/a",
		Events:     []string{"order.completed"},
	})
	global := createWebhook(t, d, CreateInput{
		Name:   "global",
		URL:    "https://example.com/b",
		Events: []string{"order.completed"},
	})
	createWebhook(t, d, CreateInput{
		LocationID: &other,
		Name:       "elsewhere",
		URL:        "https://example.com/c",
		Events:     []string{"order.completed"},
	})

	hooks, err := d.List(ctx, loc)
	require.NoError(t, err)
	require.Len(t, hooks, 2)
	ids := []uuid.UUID{hooks[0].ID, hooks[1].ID}
	assert.Contains(t, ids, scoped.ID)
	assert.Contains(t, ids, global.ID)

	all, err := d.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdatePartial(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	wh := createWebhook(t, d, CreateInput{
		Name:   "before",
		URL:    "https://example.com/old",
		Events: []string{"order.completed"},
	})

	newURL := "https://example.com/new"
	updated, err := d.Update(ctx, wh.ID, UpdateInput{
		URL:    &newURL,
		Events: []string{"order.completed", "order.cancelled"},
	})
	require.NoError(t, err)
	assert.Equal(t, "before", updated.Name)
	assert.Equal(t, newURL, updated.URL)
	assert.Len(t, updated.Events, 2)

	_, err = d.Update(ctx, uuid.New(), UpdateInput{URL: &newURL})
	assert.ErrorIs(t, err, ErrWebhookNotFound)
}

func TestDeleteKeepsDeliveryHistory(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	wh := createWebhook(t, d, CreateInput{
		Name:   "short lived",
		URL:    "https://example.com",
		Events: []string{"order.completed"},
	})
	delivery := &models.WebhookDelivery{
		ID:        uuid.New(),
		WebhookID: wh.ID,
		EventType: "order.completed",
		Payload:   "{}",
		Status:    models.DeliveryStatusDelivered,
	}
	require.NoError(t, d.db.Create(delivery).Error)

	require.NoError(t, d.Delete(ctx, wh.ID))

	_, err := d.Get(ctx, wh.ID)
	assert.ErrorIs(t, err, ErrWebhookNotFound)

	var count int64
	require.NoError(t, d.db.Model(&models.WebhookDelivery{}).
		Where("webhook_id = ?", wh.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	assert.ErrorIs(t, d.Delete(ctx, wh.ID), ErrWebhookNotFound)
}

func TestDeliveriesNewestFirst(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	wh := createWebhook(t, d, CreateInput{
		Name:   "sink",
		URL:    "https://example.com",
		Events: []string{"order.completed"},
	})
	for i := 0; i < 3; i++ {
		require.NoError(t, d.db.Create(&models.WebhookDelivery{
			ID:        uuid.New(),
			WebhookID: wh.ID,
			EventType: "order.completed",
			Payload:   "{}",
			Status:    models.DeliveryStatusDelivered,
		}).Error)
	}

	deliveries, err := d.Deliveries(ctx, wh.ID, 2)
	require.NoError(t, err)
	assert.Len(t, deliveries, 2)
}
