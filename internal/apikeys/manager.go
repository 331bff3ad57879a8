package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinnewbold/pattyshack-integrations/internal/models"
)

var ErrKeyNotFound = errors.New("api key not found")

const (
	keyPrefix      = "psk_"
	keySecretBytes = 32
	prefixChars    = 12
)

// Manager issues, validates, and revokes API keys. The plaintext secret is
// returned exactly once at issue time; only its SHA-256 hash is stored.
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewManager(db *gorm.DB, logger *zap.Logger) *Manager {
	return &Manager{db: db, logger: logger}
}

type IssueInput struct {
	Name        string
	LocationID  *string
	UserID      *string
	Permissions []string
	RateLimit   int
	ExpiresAt   *time.Time
	IPAllowlist []string
}

// IssuedKey is the one and only carrier of the plaintext secret.
type IssuedKey struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Prefix       string    `json:"key_prefix"`
	PlaintextKey string    `json:"key"`
}

type ValidationResult struct {
	Valid bool           `json:"valid"`
	Key   *models.APIKey `json:"key,omitempty"`
}

// Issue generates a high-entropy secret and stores its hash plus a short
// display prefix.
func (m *Manager) Issue(ctx context.Context, in IssueInput) (*IssuedKey, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("api key name is required")
	}

	secret := make([]byte, keySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}
	plaintext := keyPrefix + hex.EncodeToString(secret)

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:          uuid.New(),
		Name:        in.Name,
		KeyHash:     hashKey(plaintext),
		KeyPrefix:   plaintext[:prefixChars],
		LocationID:  in.LocationID,
		UserID:      in.UserID,
		Permissions: in.Permissions,
		RateLimit:   in.RateLimit,
		ExpiresAt:   in.ExpiresAt,
		IPAllowlist: in.IPAllowlist,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if key.RateLimit <= 0 {
		key.RateLimit = 1000
	}

	if err := m.db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}

	m.logger.Info("API key issued",
		zap.String("key_id", key.ID.String()),
		zap.String("key_prefix", key.KeyPrefix),
	)
	return &IssuedKey{
		ID:           key.ID,
		Name:         key.Name,
		Prefix:       key.KeyPrefix,
		PlaintextKey: plaintext,
	}, nil
}

// Validate hashes the presented key and accepts it only if it is active and
// unexpired. Acceptance bumps the usage counters as an observable side
// effect. Lookup is by hash, so timing does not distinguish a wrong key from
// a revoked one.
func (m *Manager) Validate(ctx context.Context, presented string) (*ValidationResult, error) {
	var key models.APIKey
	err := m.db.WithContext(ctx).First(&key, "key_hash = ?", hashKey(presented)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ValidationResult{Valid: false}, nil
		}
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	now := time.Now().UTC()
	if !key.Active || key.Expired(now) {
		return &ValidationResult{Valid: false}, nil
	}

	err = m.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", key.ID).
		Updates(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": now,
			"updated_at":   now,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record api key usage: %w", err)
	}

	key.UsageCount++
	key.LastUsedAt = &now
	return &ValidationResult{Valid: true, Key: &key}, nil
}

// Revoke deactivates a key without deleting it, preserving usage history.
func (m *Manager) Revoke(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	var key models.APIKey
	err := m.db.WithContext(ctx).First(&key, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}

	key.Active = false
	key.UpdatedAt = time.Now().UTC()
	err = m.db.WithContext(ctx).Model(&key).
		Select("active", "updated_at").
		Updates(&key).Error
	if err != nil {
		return nil, fmt.Errorf("failed to revoke api key: %w", err)
	}

	m.logger.Info("API key revoked", zap.String("key_id", id.String()))
	return &key, nil
}

// List returns all keys, newest first. Hashes never serialize.
func (m *Manager) List(ctx context.Context) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := m.db.WithContext(ctx).Order("created_at DESC").Find(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
