package syncengine

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinnewbold/pattyshack-integrations/internal/connections"
	"github.com/justinnewbold/pattyshack-integrations/internal/models"
	"github.com/justinnewbold/pattyshack-integrations/internal/providers"
	"github.com/justinnewbold/pattyshack-integrations/internal/vault"
)

type engineFixture struct {
	db          *gorm.DB
	engine      *Engine
	connections *connections.Manager
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Integration{}, &models.SyncLog{}))

	v, err := vault.NewFromHex("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)

	registry := providers.NewRegistry()
	conns := connections.NewManager(db, v, registry, zap.NewNop())
	return &engineFixture{
		db:          db,
		engine:      NewEngine(db, registry, conns, zap.NewNop()),
		connections: conns,
	}
}

func (f *engineFixture) connect(t *testing.T, providerID string, credentials map[string]string) uuid.UUID {
	t.Helper()
	result, err := f.connections.Connect(context.Background(), connections.ConnectInput{
		LocationID:  "loc-1",
		ProviderID:  providerID,
		Credentials: credentials,
	})
	require.NoError(t, err)
	return result.Integration.ID
}

func TestRunSyncSuccess(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	id := f.connect(t, "square", map[string]string{"access_token": "tok"})

	result, err := f.engine.RunSync(ctx, id, models.SyncTypeManual)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 100, result.RecordsProcessed)
	assert.Equal(t, 95, result.RecordsSucceeded)
	assert.Equal(t, 5, result.RecordsFailed)

	var log models.SyncLog
	require.NoError(t, f.db.First(&log, "id = ?", result.LogID).Error)
	assert.Equal(t, models.SyncStatusCompleted, log.Status)
	assert.Equal(t, models.SyncTypeManual, log.SyncType)
	assert.Equal(t, 100, log.RecordsProcessed)
	require.NotNil(t, log.CompletedAt)
	assert.False(t, log.CompletedAt.Before(log.StartedAt))

	var integration models.Integration
	require.NoError(t, f.db.First(&integration, "id = ?", id).Error)
	require.NotNil(t, integration.LastSyncAt)
	require.NotNil(t, integration.LastSyncStatus)
	assert.Equal(t, models.SyncOutcomeSuccess, *integration.LastSyncStatus)
	assert.Zero(t, integration.ConsecutiveErrors)
	assert.Nil(t, integration.LastError)
}

func TestRunSyncFailureIncrementsConsecutiveErrors(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	// Credentials missing the key the strategy requires, so every sync fails.
	id := f.connect(t, "doordash", map[string]string{"wrong": "tok"})

	for i := 1; i <= 2; i++ {
		result, err := f.engine.RunSync(ctx, id, models.SyncTypeScheduled)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "api_key")

		var log models.SyncLog
		require.NoError(t, f.db.First(&log, "id = ?", result.LogID).Error)
		assert.Equal(t, models.SyncStatusFailed, log.Status)
		require.NotNil(t, log.ErrorMessage)

		var integration models.Integration
		require.NoError(t, f.db.First(&integration, "id = ?", id).Error)
		assert.Equal(t, i, integration.ConsecutiveErrors)
		require.NotNil(t, integration.LastSyncStatus)
		assert.Equal(t, models.SyncOutcomeFailed, *integration.LastSyncStatus)
		require.NotNil(t, integration.LastError)
	}
}

func TestRunSyncSuccessResetsConsecutiveErrors(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	id := f.connect(t, "square", map[string]string{"access_token": "tok"})

	require.NoError(t, f.db.Model(&models.Integration{}).
		Where("id = ?", id).
		Update("consecutive_errors", 3).Error)

	result, err := f.engine.RunSync(ctx, id, models.SyncTypeManual)
	require.NoError(t, err)
	assert.True(t, result.Success)

	var integration models.Integration
	require.NoError(t, f.db.First(&integration, "id = ?", id).Error)
	assert.Zero(t, integration.ConsecutiveErrors)
}

func TestRunSyncUnknownIntegrationRollsBack(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.RunSync(context.Background(), uuid.New(), models.SyncTypeManual)
	assert.ErrorIs(t, err, ErrIntegrationNotFound)

	// The opened log must not survive the rollback.
	var count int64
	require.NoError(t, f.db.Model(&models.SyncLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunSyncRejectsInvalidSyncType(t *testing.T) {
	f := newEngineFixture(t)
	id := f.connect(t, "square", map[string]string{"access_token": "tok"})

	_, err := f.engine.RunSync(context.Background(), id, "adhoc")
	assert.Error(t, err)
}

func TestRunSyncEachRunGetsOwnLog(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	id := f.connect(t, "square", map[string]string{"access_token": "tok"})

	first, err := f.engine.RunSync(ctx, id, models.SyncTypeManual)
	require.NoError(t, err)
	second, err := f.engine.RunSync(ctx, id, models.SyncTypeScheduled)
	require.NoError(t, err)
	assert.NotEqual(t, first.LogID, second.LogID)

	logs, err := f.engine.History(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.False(t, logs[0].StartedAt.Before(logs[1].StartedAt))
}

func TestHistoryScopedToIntegration(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	squareID := f.connect(t, "square", map[string]string{"access_token": "tok"})
	toastID := f.connect(t, "toast", map[string]string{"client_secret": "sec"})

	_, err := f.engine.RunSync(ctx, squareID, models.SyncTypeManual)
	require.NoError(t, err)

	logs, err := f.engine.History(ctx, toastID, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
