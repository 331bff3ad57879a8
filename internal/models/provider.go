package models

// Provider categories
const (
	ProviderCategoryPOS        = "pos"
	ProviderCategoryDelivery   = "delivery"
	ProviderCategoryAccounting = "accounting"
)

// Provider is an immutable catalog entry for a supported third-party service.
// The catalog is maintained in code (see internal/providers) and never stored.
type Provider struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Features []string `json:"supported_features"`
}

// Supports reports whether the provider advertises the given feature flag.
func (p Provider) Supports(feature string) bool {
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}
