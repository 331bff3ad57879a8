package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinnewbold/pattyshack-integrations/internal/apikeys"
	"github.com/justinnewbold/pattyshack-integrations/internal/connections"
	"github.com/justinnewbold/pattyshack-integrations/internal/models"
	"github.com/justinnewbold/pattyshack-integrations/internal/providers"
	"github.com/justinnewbold/pattyshack-integrations/internal/service"
	"github.com/justinnewbold/pattyshack-integrations/internal/syncengine"
	"github.com/justinnewbold/pattyshack-integrations/internal/vault"
	"github.com/justinnewbold/pattyshack-integrations/internal/webhooks"
)

func newTestApp(t *testing.T, authEnabled bool) (*fiber.App, *service.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Integration{},
		&models.SyncLog{},
		&models.Webhook{},
		&models.WebhookDelivery{},
		&models.APIKey{},
	))

	v, err := vault.NewFromHex("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)

	logger := zap.NewNop()
	registry := providers.NewRegistry()
	conns := connections.NewManager(db, v, registry, logger)
	svc := &service.Service{
		DB:          db,
		Logger:      logger,
		Registry:    registry,
		Connections: conns,
		Sync:        syncengine.NewEngine(db, registry, conns, logger),
		Dispatcher:  webhooks.NewDispatcher(db, v, logger, 5*time.Second, 1000),
		APIKeys:     apikeys.NewManager(db, logger),
	}

	app := fiber.New()
	SetupRoutes(app, svc, authEnabled)
	return app, svc
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := newTestApp(t, false)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestListProviders(t *testing.T) {
	app, _ := newTestApp(t, false)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/providers", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list, ok := body["providers"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 4)

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/providers?category=pos", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list, ok = body["providers"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 2)
}

func TestIntegrationLifecycleOverHTTP(t *testing.T) {
	app, _ := newTestApp(t, false)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/integrations", map[string]interface{}{
		"location_id": "loc-1",
		"provider_id": "square",
		"credentials": map[string]string{"access_token": "tok"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["test_passed"])
	integration, ok := body["integration"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "active", integration["status"])
	_, exposed := integration["credentials"]
	assert.False(t, exposed)
	id := integration["id"].(string)

	// Duplicate binding is a conflict.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/integrations", map[string]interface{}{
		"location_id": "loc-1",
		"provider_id": "square",
		"credentials": map[string]string{"access_token": "tok"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/integrations", map[string]interface{}{
		"location_id": "loc-1",
		"provider_id": "nonexistent",
		"credentials": map[string]string{"k": "v"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/integrations?location_id=loc-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["integrations"].([]interface{})
	assert.Len(t, list, 1)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/integrations", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/integrations/"+id+"/sync", map[string]interface{}{
		"sync_type": "manual",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 100, body["records_processed"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/integrations/"+id+"/sync-logs", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	logs := body["sync_logs"].([]interface{})
	assert.Len(t, logs, 1)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/v1/integrations/"+id+"/status", map[string]interface{}{
		"status": "disabled",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/v1/integrations/"+id+"/status", map[string]interface{}{
		"status": "pending",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/integrations/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/integrations/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSyncUnknownIntegrationOverHTTP(t *testing.T) {
	app, _ := newTestApp(t, false)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/integrations/"+uuid.NewString()+"/sync", map[string]interface{}{
		"sync_type": "manual",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebhookEndpoints(t *testing.T) {
	app, _ := newTestApp(t, false)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/webhooks", map[string]interface{}{
		"name":   "order sink",
		"url":    server.URL,
		"events": []string{"order.completed"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/webhooks", map[string]interface{}{
		"name":   "bad events",
		"url":    server.URL,
		"events": []string{"not.an.event"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/webhooks/trigger", map[string]interface{}{
		"event_type": "order.completed",
		"payload":    map[string]interface{}{"order_id": "ord-1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	outcomes := body["outcomes"].([]interface{})
	require.Len(t, outcomes, 1)
	outcome := outcomes[0].(map[string]interface{})
	assert.Equal(t, "delivered", outcome["status"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/webhooks/"+id+"/deliveries", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	deliveries := body["deliveries"].([]interface{})
	assert.Len(t, deliveries, 1)

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/webhooks/retries/run", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["outcomes"])

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/webhooks/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPIKeyAuthGuardsAPI(t *testing.T) {
	app, svc := newTestApp(t, true)

	// Probes stay open.
	resp, _ := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/providers", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	issued, err := svc.APIKeys.Issue(context.Background(), apikeys.IssueInput{Name: "test caller"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	req.Header.Set("X-API-Key", issued.PlaintextKey)
	ok, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, ok.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	req.Header.Set("Authorization", "Bearer "+issued.PlaintextKey)
	ok, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, ok.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	req.Header.Set("X-API-Key", "psk_wrong")
	bad, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)
}

func TestIssueAndRevokeAPIKeyOverHTTP(t *testing.T) {
	app, _ := newTestApp(t, false)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/api-keys", map[string]interface{}{
		"name": "reporting job",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	key, ok := body["key"].(string)
	require.True(t, ok)
	assert.Contains(t, key, "psk_")
	id := body["id"].(string)

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/api-keys", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	keys := body["api_keys"].([]interface{})
	require.Len(t, keys, 1)
	stored := keys[0].(map[string]interface{})
	_, hashExposed := stored["key_hash"]
	assert.False(t, hashExposed)
	_, keyExposed := stored["key"]
	assert.False(t, keyExposed)

	resp, body = doJSON(t, app, http.MethodDelete, "/api/v1/api-keys/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["active"])
}
