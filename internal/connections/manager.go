package connections

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinnewbold/pattyshack-integrations/internal/models"
	"github.com/justinnewbold/pattyshack-integrations/internal/providers"
	"github.com/justinnewbold/pattyshack-integrations/internal/vault"
)

var (
	ErrIntegrationNotFound = errors.New("integration not found")
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrDuplicateProvider   = errors.New("location already has an integration for this provider")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// Allowed status transitions: pending may resolve to active or error, active
// and disabled toggle each other, and anything may drop to error.
var allowedTransitions = map[string][]string{
	models.IntegrationStatusPending:  {models.IntegrationStatusActive, models.IntegrationStatusError},
	models.IntegrationStatusActive:   {models.IntegrationStatusDisabled, models.IntegrationStatusError},
	models.IntegrationStatusDisabled: {models.IntegrationStatusActive, models.IntegrationStatusError},
	models.IntegrationStatusError:    {models.IntegrationStatusError},
}

// Manager owns the integration lifecycle: connect, list, status transitions,
// credential rotation, and disconnect.
type Manager struct {
	db       *gorm.DB
	vault    *vault.Vault
	registry *providers.Registry
	logger   *zap.Logger
}

func NewManager(db *gorm.DB, v *vault.Vault, registry *providers.Registry, logger *zap.Logger) *Manager {
	return &Manager{db: db, vault: v, registry: registry, logger: logger}
}

// ConnectInput carries everything needed to bind a location to a provider.
type ConnectInput struct {
	LocationID       string
	ProviderID       string
	Credentials      map[string]string
	Config           map[string]string
	SyncIntervalMins int
	AutoSync         bool
	EnabledFeatures  []string
}

// ConnectResult is the integration plus the raw connection-test outcome, so
// callers can surface a failed test immediately. A failed test is a visible
// state on the integration, not a rolled-back error.
type ConnectResult struct {
	Integration *models.Integration `json:"integration"`
	TestPassed  bool                `json:"test_passed"`
	TestError   string              `json:"test_error,omitempty"`
}

// IntegrationWithProvider joins an integration with its catalog metadata.
type IntegrationWithProvider struct {
	models.Integration
	ProviderName      string   `json:"provider_name"`
	ProviderCategory  string   `json:"provider_category"`
	SupportedFeatures []string `json:"supported_features"`
}

// Connect encrypts the credentials, persists the integration in pending
// status, then runs the provider connection test and records the outcome.
func (m *Manager) Connect(ctx context.Context, in ConnectInput) (*ConnectResult, error) {
	if _, ok := m.registry.Get(in.ProviderID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, in.ProviderID)
	}

	var count int64
	err := m.db.WithContext(ctx).Model(&models.Integration{}).
		Where("location_id = ? AND provider_id = ?", in.LocationID, in.ProviderID).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check existing integrations: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateProvider
	}

	blob, err := m.vault.Encrypt(in.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	now := time.Now().UTC()
	integration := &models.Integration{
		ID:               uuid.New(),
		LocationID:       in.LocationID,
		ProviderID:       in.ProviderID,
		Status:           models.IntegrationStatusPending,
		Credentials:      blob,
		Config:           in.Config,
		SyncIntervalMins: in.SyncIntervalMins,
		AutoSync:         in.AutoSync,
		EnabledFeatures:  in.EnabledFeatures,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if integration.SyncIntervalMins <= 0 {
		integration.SyncIntervalMins = 60
	}

	if err := m.db.WithContext(ctx).Create(integration).Error; err != nil {
		return nil, fmt.Errorf("failed to create integration: %w", err)
	}

	result := &ConnectResult{Integration: integration}
	if testErr := m.registry.TestConnection(ctx, in.ProviderID, in.Credentials, in.Config); testErr != nil {
		result.TestError = testErr.Error()
		msg := testErr.Error()
		integration.Status = models.IntegrationStatusError
		integration.LastError = &msg
	} else {
		result.TestPassed = true
		integration.Status = models.IntegrationStatusActive
	}
	integration.UpdatedAt = time.Now().UTC()

	err = m.db.WithContext(ctx).Model(integration).
		Select("status", "last_error", "updated_at").
		Updates(integration).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record connection test result: %w", err)
	}

	m.logger.Info("Integration connected",
		zap.String("integration_id", integration.ID.String()),
		zap.String("location_id", in.LocationID),
		zap.String("provider_id", in.ProviderID),
		zap.Bool("test_passed", result.TestPassed),
	)
	return result, nil
}

// Get loads one integration by id.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*models.Integration, error) {
	var integration models.Integration
	err := m.db.WithContext(ctx).First(&integration, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("failed to load integration: %w", err)
	}
	return &integration, nil
}

// ListForLocation returns the location's integrations joined with provider
// metadata, ordered by provider category then name so the UI sees a stable
// ordering.
func (m *Manager) ListForLocation(ctx context.Context, locationID string) ([]IntegrationWithProvider, error) {
	var integrations []models.Integration
	err := m.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Find(&integrations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}

	out := make([]IntegrationWithProvider, 0, len(integrations))
	for _, integration := range integrations {
		row := IntegrationWithProvider{Integration: integration}
		if p, ok := m.registry.Get(integration.ProviderID); ok {
			row.ProviderName = p.Name
			row.ProviderCategory = p.Category
			row.SupportedFeatures = p.Features
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ProviderCategory != out[j].ProviderCategory {
			return out[i].ProviderCategory < out[j].ProviderCategory
		}
		if out[i].ProviderName != out[j].ProviderName {
			return out[i].ProviderName < out[j].ProviderName
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// SetStatus applies a status transition. Transitions outside the allowed
// graph are rejected; setting the current status again is a no-op.
func (m *Manager) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Integration, error) {
	integration, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if integration.Status != status {
		if !transitionAllowed(integration.Status, status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, integration.Status, status)
		}
		integration.Status = status
		integration.UpdatedAt = time.Now().UTC()
		err = m.db.WithContext(ctx).Model(integration).
			Select("status", "updated_at").
			Updates(integration).Error
		if err != nil {
			return nil, fmt.Errorf("failed to update integration status: %w", err)
		}
	}
	return integration, nil
}

// Disconnect hard-deletes the integration and returns the deleted record.
// Sync logs are kept for audit.
func (m *Manager) Disconnect(ctx context.Context, id uuid.UUID) (*models.Integration, error) {
	integration, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := m.db.WithContext(ctx).Delete(&models.Integration{}, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to delete integration: %w", err)
	}

	m.logger.Info("Integration disconnected",
		zap.String("integration_id", id.String()),
		zap.String("provider_id", integration.ProviderID),
	)
	return integration, nil
}

// RotateCredentials re-encrypts a new credential set in a single UPDATE, so
// an in-flight sync that already read the previous blob keeps a consistent
// snapshot.
func (m *Manager) RotateCredentials(ctx context.Context, id uuid.UUID, credentials map[string]string) (*models.Integration, error) {
	integration, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	blob, err := m.vault.Encrypt(credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	integration.Credentials = blob
	integration.UpdatedAt = time.Now().UTC()
	err = m.db.WithContext(ctx).Model(integration).
		Select("credentials", "updated_at").
		Updates(integration).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rotate credentials: %w", err)
	}

	m.logger.Info("Integration credentials rotated",
		zap.String("integration_id", id.String()),
	)
	return integration, nil
}

// DecryptCredentials opens an integration's credential blob.
func (m *Manager) DecryptCredentials(integration *models.Integration) (map[string]string, error) {
	return m.vault.Decrypt(integration.Credentials)
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
