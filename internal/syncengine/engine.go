package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinnewbold/pattyshack-integrations/internal/connections"
	"github.com/justinnewbold/pattyshack-integrations/internal/models"
	"github.com/justinnewbold/pattyshack-integrations/internal/providers"
)

// ErrIntegrationNotFound aborts a run before any provider code executes.
var ErrIntegrationNotFound = connections.ErrIntegrationNotFound

// RunResult is the terminal outcome of one RunSync call.
type RunResult struct {
	LogID            uuid.UUID `json:"log_id"`
	Success          bool      `json:"success"`
	RecordsProcessed int       `json:"records_processed"`
	RecordsSucceeded int       `json:"records_succeeded"`
	RecordsFailed    int       `json:"records_failed"`
	Error            string    `json:"error,omitempty"`
}

// Engine runs provider syncs against integrations. Every run produces exactly
// one terminal outcome: a finalized sync log plus an updated integration, or
// a clean rollback with an error. A log is never left in_progress.
type Engine struct {
	db          *gorm.DB
	registry    *providers.Registry
	connections *connections.Manager
	logger      *zap.Logger
}

func NewEngine(db *gorm.DB, registry *providers.Registry, conns *connections.Manager, logger *zap.Logger) *Engine {
	return &Engine{db: db, registry: registry, connections: conns, logger: logger}
}

// RunSync executes one sync attempt for the integration. The log lifecycle
// (open in_progress, finalize, update integration) runs inside a single
// transaction; any failure in that sequence rolls the whole run back.
func (e *Engine) RunSync(ctx context.Context, integrationID uuid.UUID, syncType string) (*RunResult, error) {
	if syncType != models.SyncTypeManual && syncType != models.SyncTypeScheduled {
		return nil, fmt.Errorf("invalid sync type: %s", syncType)
	}

	var result *RunResult
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		log := &models.SyncLog{
			ID:            uuid.New(),
			IntegrationID: integrationID,
			SyncType:      syncType,
			Direction:     "pull",
			Status:        models.SyncStatusInProgress,
			StartedAt:     now,
			CreatedAt:     now,
		}
		if err := tx.Create(log).Error; err != nil {
			return fmt.Errorf("failed to open sync log: %w", err)
		}

		var integration models.Integration
		if err := tx.First(&integration, "id = ?", integrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrIntegrationNotFound
			}
			return fmt.Errorf("failed to load integration: %w", err)
		}

		// Credentials are read once here; a concurrent rotation cannot
		// change them mid-run.
		credentials, err := e.connections.DecryptCredentials(&integration)
		if err != nil {
			return fmt.Errorf("failed to decrypt credentials: %w", err)
		}

		syncResult := e.registry.Sync(ctx, integration.ProviderID, credentials, integration.Config)

		completedAt := time.Now().UTC()
		log.CompletedAt = &completedAt
		log.RecordsProcessed = syncResult.RecordsProcessed
		log.RecordsSucceeded = syncResult.RecordsSucceeded
		log.RecordsFailed = syncResult.RecordsFailed
		if syncResult.Success {
			log.Status = models.SyncStatusCompleted
		} else {
			log.Status = models.SyncStatusFailed
			if syncResult.Error != "" {
				log.ErrorMessage = &syncResult.Error
			}
		}
		if err := tx.Save(log).Error; err != nil {
			return fmt.Errorf("failed to finalize sync log: %w", err)
		}

		outcome := models.SyncOutcomeSuccess
		if syncResult.Success {
			integration.ConsecutiveErrors = 0
			integration.LastError = nil
		} else {
			outcome = models.SyncOutcomeFailed
			integration.ConsecutiveErrors++
			if syncResult.Error != "" {
				msg := syncResult.Error
				integration.LastError = &msg
			}
		}
		integration.LastSyncAt = &completedAt
		integration.LastSyncStatus = &outcome
		integration.UpdatedAt = completedAt

		err = tx.Model(&models.Integration{}).
			Where("id = ?", integration.ID).
			Select("last_sync_at", "last_sync_status", "consecutive_errors", "last_error", "updated_at").
			Updates(&integration).Error
		if err != nil {
			return fmt.Errorf("failed to update integration sync state: %w", err)
		}

		result = &RunResult{
			LogID:            log.ID,
			Success:          syncResult.Success,
			RecordsProcessed: syncResult.RecordsProcessed,
			RecordsSucceeded: syncResult.RecordsSucceeded,
			RecordsFailed:    syncResult.RecordsFailed,
			Error:            syncResult.Error,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Sync run finished",
		zap.String("integration_id", integrationID.String()),
		zap.String("sync_log_id", result.LogID.String()),
		zap.String("sync_type", syncType),
		zap.Bool("success", result.Success),
		zap.Int("records_processed", result.RecordsProcessed),
	)
	return result, nil
}

// History returns the integration's sync logs, newest first.
func (e *Engine) History(ctx context.Context, integrationID uuid.UUID, limit int) ([]models.SyncLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var logs []models.SyncLog
	err := e.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("started_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sync logs: %w", err)
	}
	return logs, nil
}
