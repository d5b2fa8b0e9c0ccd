package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simtrek/esim_api/internal/models"
)

// CatalogEntry is a provider package normalized into the storefront's shape:
// ISO country (or GLOBAL/MULTI), data in MB (negative sentinel for unlimited
// tiers), validity in whole days, decimal cost.
type CatalogEntry struct {
	ProviderProductID string
	Name              string
	CountryCode       string
	DataAmountMB      int
	ValidityDays      int
	CostPrice         decimal.Decimal
	Currency          string
	Available         bool
}

// FulfillResult is the normalized outcome of a successful provider order.
type FulfillResult struct {
	ProviderOrderRef string
	ICCID            string
	SMDPAddress      string
	MatchingID       string
	// QRPayload is the string to encode in the installation QR code,
	// always in LPA form: "LPA:1$<smdp-address>$<matching-id>".
	QRPayload string
}

// Balance is a provider account balance in the provider's settlement currency.
type Balance struct {
	Amount   decimal.Decimal
	Currency string
}

// EsimStatus is the normalized provisioning/usage state of one profile.
type EsimStatus struct {
	ICCID       string
	State       string
	TotalMB     int
	UsedMB      int
	ExpiresAt   *time.Time
	InstalledAt *time.Time
}

// ProviderAdapter is the uniform surface every upstream supplier client is
// wrapped in. Every method makes at most one remote call; retry and failover
// policy live in the fulfillment engine, never here.
type ProviderAdapter interface {
	// Slug returns the provider's stable identifier.
	Slug() models.ProviderSlug

	// FetchCatalog returns the provider's full normalized catalogue.
	// A failure on any page fails the whole fetch.
	FetchCatalog(ctx context.Context) ([]CatalogEntry, error)

	// Fulfill places one order for the given provider product.
	Fulfill(ctx context.Context, clientRef, providerProductID string, quantity int) (*FulfillResult, error)

	// GetBalance returns the current account balance.
	GetBalance(ctx context.Context) (*Balance, error)

	// CheckHealth probes provider reachability with a lightweight call.
	CheckHealth(ctx context.Context) error
}

// EsimStatusProvider is implemented by adapters whose upstream exposes
// per-profile status lookup.
type EsimStatusProvider interface {
	GetEsimStatus(ctx context.Context, iccid string) (*EsimStatus, error)
}

// TopUpProvider is implemented by adapters whose upstream supports adding a
// package to an already provisioned profile.
type TopUpProvider interface {
	TopUp(ctx context.Context, clientRef, iccid, providerProductID string) (*FulfillResult, error)
}

// AdapterRegistry holds the registered provider adapters keyed by slug.
type AdapterRegistry struct {
	adapters map[models.ProviderSlug]ProviderAdapter
}

// NewAdapterRegistry creates an empty registry.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{adapters: make(map[models.ProviderSlug]ProviderAdapter)}
}

// Register adds an adapter to the registry.
func (r *AdapterRegistry) Register(a ProviderAdapter) {
	r.adapters[a.Slug()] = a
}

// Get returns the adapter for a slug, or nil when none is registered.
func (r *AdapterRegistry) Get(slug models.ProviderSlug) ProviderAdapter {
	return r.adapters[slug]
}

// Slugs returns the registered slugs in unspecified order.
func (r *AdapterRegistry) Slugs() []models.ProviderSlug {
	slugs := make([]models.ProviderSlug, 0, len(r.adapters))
	for slug := range r.adapters {
		slugs = append(slugs, slug)
	}
	return slugs
}
