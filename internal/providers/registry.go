package providers

import (
	"context"
	"sort"

	"github.com/justinnewbold/pattyshack-integrations/internal/models"
)

// SyncResult is what a provider strategy reports after one sync run.
type SyncResult struct {
	Success          bool
	RecordsProcessed int
	RecordsSucceeded int
	RecordsFailed    int
	Error            string
}

// Strategy is the per-provider capability set. Implementations must be pure
// functions of the credentials and config they are handed: no shared state,
// safe for concurrent use across integrations.
type Strategy interface {
	// TestConnection verifies the credentials against the provider.
	TestConnection(ctx context.Context, credentials, config map[string]string) error
	// Sync performs one data exchange and reports counts. Failures are
	// reported in the result, not returned as errors.
	Sync(ctx context.Context, credentials, config map[string]string) SyncResult
}

// Registry is the provider catalog plus the strategy lookup keyed by provider
// id. Adding a provider means registering it here, not branching elsewhere.
type Registry struct {
	catalog    map[string]models.Provider
	strategies map[string]Strategy
}

// NewRegistry returns a registry pre-populated with the built-in providers.
func NewRegistry() *Registry {
	r := &Registry{
		catalog:    make(map[string]models.Provider),
		strategies: make(map[string]Strategy),
	}
	registerBuiltins(r)
	return r
}

// Register adds a provider and its strategy to the catalog. Intended to be
// called at startup only; the registry is read-only afterwards.
func (r *Registry) Register(p models.Provider, s Strategy) {
	r.catalog[p.ID] = p
	r.strategies[p.ID] = s
}

// Get looks up a provider by id.
func (r *Registry) Get(id string) (models.Provider, bool) {
	p, ok := r.catalog[id]
	return p, ok
}

// List returns the catalog, optionally filtered by category, ordered by
// category then name so the output is stable.
func (r *Registry) List(category string) []models.Provider {
	out := make([]models.Provider, 0, len(r.catalog))
	for _, p := range r.catalog {
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TestConnection runs the provider's connection test. Unknown providers fail
// the test.
func (r *Registry) TestConnection(ctx context.Context, providerID string, credentials, config map[string]string) error {
	s, ok := r.strategies[providerID]
	if !ok {
		return errUnknownProvider(providerID)
	}
	return s.TestConnection(ctx, credentials, config)
}

// Sync dispatches to the provider's sync strategy. An unknown provider yields
// a deterministic failed result rather than an error so the caller can still
// finalize its sync log.
func (r *Registry) Sync(ctx context.Context, providerID string, credentials, config map[string]string) SyncResult {
	s, ok := r.strategies[providerID]
	if !ok {
		return SyncResult{Success: false, Error: "Provider sync not implemented"}
	}
	return s.Sync(ctx, credentials, config)
}
