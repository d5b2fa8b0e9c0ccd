package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/utils"
)

type catalogAdapter struct {
	scriptedAdapter
	entries  []CatalogEntry
	fetchErr error
}

func (a *catalogAdapter) FetchCatalog(ctx context.Context) ([]CatalogEntry, error) {
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	return a.entries, nil
}

type fakeCatalogProductStore struct {
	mu          sync.Mutex
	upserted    []models.ProviderProduct
	upsertErr   error
	upsertCalls int
	deactivated int64
	pruneCutoff time.Time
}

func (f *fakeCatalogProductStore) Upsert(p *models.ProviderProduct) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, *p)
	return nil
}

func (f *fakeCatalogProductStore) DeactivateMissing(providerID int, syncStartedAt time.Time) (int64, error) {
	f.pruneCutoff = syncStartedAt
	return f.deactivated, nil
}

func (f *fakeCatalogProductStore) CountByCountry(providerID int) (models.CountryCountMap, error) {
	return models.CountryCountMap{"US": len(f.upserted)}, nil
}

type fakeCatalogProviderStore struct {
	providers []models.Provider
}

func (f *fakeCatalogProviderStore) GetAll(activeOnly bool) ([]models.Provider, error) {
	return f.providers, nil
}

func (f *fakeCatalogProviderStore) GetBySlug(slug models.ProviderSlug) (*models.Provider, error) {
	for i := range f.providers {
		if f.providers[i].Slug == slug {
			return &f.providers[i], nil
		}
	}
	return nil, errors.New("provider not found")
}

type fakeSyncLogStore struct {
	logs []models.CatalogSyncLog
}

func (f *fakeSyncLogStore) Create(l *models.CatalogSyncLog) error {
	f.logs = append(f.logs, *l)
	return nil
}

func validEntry(id, name string) CatalogEntry {
	return CatalogEntry{
		ProviderProductID: id,
		Name:              name,
		CountryCode:       "US",
		DataAmountMB:      1024,
		ValidityDays:      7,
		CostPrice:         dec("4.20"),
		Currency:          "USD",
		Available:         true,
	}
}

func TestSyncProviderUpsertsNormalizedEntries(t *testing.T) {
	adapter := &catalogAdapter{
		scriptedAdapter: scriptedAdapter{slug: models.ProviderEsimAccess},
		entries: []CatalogEntry{
			validEntry("PKG1", "USA 1GB 7 Days"),
			validEntry("PKG2", "USA 1GB 7 Days v2"),
		},
	}
	registry := NewAdapterRegistry()
	registry.Register(adapter)

	products := &fakeCatalogProductStore{}
	providers := &fakeCatalogProviderStore{providers: []models.Provider{{ID: 1, Slug: models.ProviderEsimAccess}}}
	logs := &fakeSyncLogStore{}

	svc := NewCatalogSyncService(registry, providers, products, logs)
	err := svc.SyncProvider(context.Background(), models.ProviderEsimAccess)

	require.NoError(t, err)
	assert.Len(t, products.upserted, 2)
	require.Len(t, logs.logs, 1)
	assert.True(t, logs.logs[0].Success)
	assert.Equal(t, 2, logs.logs[0].ProductCount)
	assert.Nil(t, logs.logs[0].Error)
}

func TestSyncProviderAbortsWithoutWritesOnFetchFailure(t *testing.T) {
	adapter := &catalogAdapter{
		scriptedAdapter: scriptedAdapter{slug: models.ProviderEsimAccess},
		fetchErr:        errors.New("page 3 returned 502"),
	}
	registry := NewAdapterRegistry()
	registry.Register(adapter)

	products := &fakeCatalogProductStore{}
	providers := &fakeCatalogProviderStore{providers: []models.Provider{{ID: 1, Slug: models.ProviderEsimAccess}}}
	logs := &fakeSyncLogStore{}

	svc := NewCatalogSyncService(registry, providers, products, logs)
	err := svc.SyncProvider(context.Background(), models.ProviderEsimAccess)

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrSyncAborted)
	// The previous snapshot stays authoritative: no writes of any kind.
	assert.Empty(t, products.upserted)
	require.Len(t, logs.logs, 1)
	assert.False(t, logs.logs[0].Success)
	require.NotNil(t, logs.logs[0].Error)
	assert.Contains(t, *logs.logs[0].Error, "502")
}

func TestSyncProviderFiltersUnusableEntries(t *testing.T) {
	nameless := validEntry("PKG2", "")
	free := validEntry("PKG3", "Free plan")
	free.CostPrice = dec("0")

	adapter := &catalogAdapter{
		scriptedAdapter: scriptedAdapter{slug: models.ProviderEsimAccess},
		entries:         []CatalogEntry{validEntry("PKG1", "USA 1GB"), nameless, free},
	}
	registry := NewAdapterRegistry()
	registry.Register(adapter)

	products := &fakeCatalogProductStore{}
	providers := &fakeCatalogProviderStore{providers: []models.Provider{{ID: 1, Slug: models.ProviderEsimAccess}}}

	svc := NewCatalogSyncService(registry, providers, products, &fakeSyncLogStore{})
	require.NoError(t, svc.SyncProvider(context.Background(), models.ProviderEsimAccess))

	require.Len(t, products.upserted, 1)
	assert.Equal(t, "PKG1", products.upserted[0].ProviderProductID)
}

func TestSyncProviderReportsUpsertFailure(t *testing.T) {
	entries := make([]CatalogEntry, 100)
	for i := range entries {
		entries[i] = validEntry(fmt.Sprintf("PKG%d", i), "USA 1GB")
	}
	adapter := &catalogAdapter{
		scriptedAdapter: scriptedAdapter{slug: models.ProviderEsimAccess},
		entries:         entries,
	}
	registry := NewAdapterRegistry()
	registry.Register(adapter)

	products := &fakeCatalogProductStore{upsertErr: errors.New("disk full")}
	providers := &fakeCatalogProviderStore{providers: []models.Provider{{ID: 1, Slug: models.ProviderEsimAccess}}}
	logs := &fakeSyncLogStore{}

	svc := NewCatalogSyncService(registry, providers, products, logs)
	err := svc.SyncProvider(context.Background(), models.ProviderEsimAccess)

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrSyncAborted)
	require.Len(t, logs.logs, 1)
	assert.False(t, logs.logs[0].Success)
	// Dispatch stops once the first failure is recorded; at most the
	// in-flight window keeps draining.
	assert.Less(t, products.upsertCalls, len(entries))
}

func TestSyncAllContinuesPastFailingProvider(t *testing.T) {
	broken := &catalogAdapter{
		scriptedAdapter: scriptedAdapter{slug: models.ProviderEsimAccess},
		fetchErr:        errors.New("auth expired"),
	}
	healthy := &catalogAdapter{
		scriptedAdapter: scriptedAdapter{slug: models.ProviderEsimGo},
		entries:         []CatalogEntry{validEntry("B1", "Bundle")},
	}
	registry := NewAdapterRegistry()
	registry.Register(broken)
	registry.Register(healthy)

	products := &fakeCatalogProductStore{}
	providers := &fakeCatalogProviderStore{providers: []models.Provider{
		{ID: 1, Slug: models.ProviderEsimAccess},
		{ID: 2, Slug: models.ProviderEsimGo},
	}}

	svc := NewCatalogSyncService(registry, providers, products, &fakeSyncLogStore{})
	err := svc.SyncAll(context.Background())

	// The healthy provider still synced even though the run reports the
	// failure.
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrSyncAborted)
	require.Len(t, products.upserted, 1)
	assert.Equal(t, 2, products.upserted[0].ProviderID)
}

func TestPruneStaleIsExplicitAndSeparate(t *testing.T) {
	products := &fakeCatalogProductStore{deactivated: 4}
	providers := &fakeCatalogProviderStore{providers: []models.Provider{{ID: 1, Slug: models.ProviderEsimAccess}}}

	svc := NewCatalogSyncService(NewAdapterRegistry(), providers, products, &fakeSyncLogStore{})
	cutoff := time.Now().AddDate(0, 0, -7)
	n, err := svc.PruneStale(models.ProviderEsimAccess, cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, cutoff, products.pruneCutoff)
}
