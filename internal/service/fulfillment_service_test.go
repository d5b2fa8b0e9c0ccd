package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simtrek/esim_api/internal/config"
	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/utils"
)

type scriptedAdapter struct {
	slug models.ProviderSlug
	// results are consumed one per Fulfill call; an entry with err set fails
	// that call.
	results []struct {
		res *FulfillResult
		err error
	}
	clientRefs []string
}

func (a *scriptedAdapter) Slug() models.ProviderSlug { return a.slug }

func (a *scriptedAdapter) FetchCatalog(ctx context.Context) ([]CatalogEntry, error) {
	return nil, nil
}

func (a *scriptedAdapter) Fulfill(ctx context.Context, clientRef, providerProductID string, quantity int) (*FulfillResult, error) {
	a.clientRefs = append(a.clientRefs, clientRef)
	if len(a.results) == 0 {
		return nil, errors.New("no scripted result")
	}
	next := a.results[0]
	a.results = a.results[1:]
	return next.res, next.err
}

func (a *scriptedAdapter) GetBalance(ctx context.Context) (*Balance, error) { return nil, nil }
func (a *scriptedAdapter) CheckHealth(ctx context.Context) error            { return nil }

func (a *scriptedAdapter) succeedWith(res *FulfillResult) {
	a.results = append(a.results, struct {
		res *FulfillResult
		err error
	}{res: res})
}

func (a *scriptedAdapter) failWith(err error) {
	a.results = append(a.results, struct {
		res *FulfillResult
		err error
	}{err: err})
}

type fakeFulfillOfferStore struct {
	offer *models.BestOffer
}

func (f *fakeFulfillOfferStore) GetByKey(key models.OfferKey) (*models.BestOffer, error) {
	return f.offer, nil
}

type fakeFulfillProductStore struct {
	byProvider map[int]*models.ProviderProduct
	equivalent []models.ProviderProduct
}

func (f *fakeFulfillProductStore) FindByProviderAndKey(providerID int, key models.OfferKey) (*models.ProviderProduct, error) {
	return f.byProvider[providerID], nil
}

func (f *fakeFulfillProductStore) FindEquivalent(key models.OfferKey, excludeProviderIDs []int) ([]models.ProviderProduct, error) {
	var out []models.ProviderProduct
	for _, p := range f.equivalent {
		excluded := false
		for _, id := range excludeProviderIDs {
			if p.ProviderID == id {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeFulfillProviderStore struct {
	recorded []bool
}

func (f *fakeFulfillProviderStore) RecordRequest(providerID int, success bool, responseTimeMs int, failureReason string) error {
	f.recorded = append(f.recorded, success)
	return nil
}

type fakeFulfillOrderStore struct {
	fulfillingCalls int
	fulfilledItemID int
	fulfilledICCID  string
	failedReason    string
	itemErrors      []string
	refreshed       []int
}

func (f *fakeFulfillOrderStore) MarkItemFulfilling(itemID int) error {
	f.fulfillingCalls++
	return nil
}

func (f *fakeFulfillOrderStore) MarkItemFulfilled(itemID, providerID int, providerProductID, providerOrderRef, iccid, smdpAddress, matchingID, qrPayload string) error {
	f.fulfilledItemID = itemID
	f.fulfilledICCID = iccid
	return nil
}

func (f *fakeFulfillOrderStore) MarkItemFailed(itemID int, reason string) error {
	f.failedReason = reason
	return nil
}

func (f *fakeFulfillOrderStore) RecordItemError(itemID int, reason string) error {
	f.itemErrors = append(f.itemErrors, reason)
	return nil
}

func (f *fakeFulfillOrderStore) RefreshOrderStatus(orderID int) error {
	f.refreshed = append(f.refreshed, orderID)
	return nil
}

func fulfillConfig() config.FulfillmentConfig {
	return config.FulfillmentConfig{
		MaxAttempts:     3,
		FailoverEnabled: true,
		CallTimeout:     5 * time.Second,
	}
}

func equivalentProduct(id, providerID int, slug models.ProviderSlug) models.ProviderProduct {
	return models.ProviderProduct{
		ID:                id,
		ProviderID:        providerID,
		ProviderSlug:      slug,
		ProviderProductID: "pkg-" + string(slug),
		CountryCode:       "US",
		DataAmountMB:      1024,
		ValidityDays:      7,
		CostPrice:         dec("10"),
		Currency:          "USD",
	}
}

func newTestFulfillment(registry *AdapterRegistry, offers fulfillOfferStore, products fulfillProductStore, providers fulfillProviderStore, orders fulfillOrderStore) *FulfillmentService {
	svc := NewFulfillmentService(registry, offers, products, providers, orders, fulfillConfig())
	svc.sleep = func(time.Duration) {}
	return svc
}

func TestFulfillSucceedsFirstAttempt(t *testing.T) {
	adapter := &scriptedAdapter{slug: models.ProviderEsimAccess}
	adapter.succeedWith(&FulfillResult{
		ProviderOrderRef: "up-1",
		ICCID:            "8901000000000000001",
		SMDPAddress:      "smdp.example.com",
		MatchingID:       "MATCH-1",
		QRPayload:        "LPA:1$smdp.example.com$MATCH-1",
	})
	registry := NewAdapterRegistry()
	registry.Register(adapter)

	offers := &fakeFulfillOfferStore{offer: &models.BestOffer{
		ProviderID: 1, ProviderSlug: models.ProviderEsimAccess, ProviderProductID: "pkg-a",
	}}
	orders := &fakeFulfillOrderStore{}
	providers := &fakeFulfillProviderStore{}

	svc := newTestFulfillment(registry, offers, &fakeFulfillProductStore{}, providers, orders)
	res, err := svc.Fulfill(context.Background(), FulfillmentRequest{
		OrderItemID: 42, OrderID: 7, SKU: "US-1024MB-7D", Quantity: 1, ClientRef: "ord-100",
	})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.ProviderEsimAccess, res.ProviderUsed)
	assert.Equal(t, "8901000000000000001", res.ICCID)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{"ord-100-1"}, adapter.clientRefs)
	assert.Equal(t, 42, orders.fulfilledItemID)
	assert.Equal(t, []int{7}, orders.refreshed)
	assert.Equal(t, []bool{true}, providers.recorded)
}

func TestFulfillFailsOverToEquivalentProvider(t *testing.T) {
	primary := &scriptedAdapter{slug: models.ProviderEsimAccess}
	primary.failWith(errors.New("upstream 500"))
	secondary := &scriptedAdapter{slug: models.ProviderEsimGo}
	secondary.succeedWith(&FulfillResult{ICCID: "8944000000000000002", QRPayload: "LPA:1$x$y"})

	registry := NewAdapterRegistry()
	registry.Register(primary)
	registry.Register(secondary)

	offers := &fakeFulfillOfferStore{offer: &models.BestOffer{
		ProviderID: 1, ProviderSlug: models.ProviderEsimAccess, ProviderProductID: "pkg-a",
	}}
	products := &fakeFulfillProductStore{
		equivalent: []models.ProviderProduct{
			equivalentProduct(1, 1, models.ProviderEsimAccess),
			equivalentProduct(2, 2, models.ProviderEsimGo),
		},
	}
	orders := &fakeFulfillOrderStore{}

	svc := newTestFulfillment(registry, offers, products, &fakeFulfillProviderStore{}, orders)
	res, err := svc.Fulfill(context.Background(), FulfillmentRequest{
		OrderItemID: 1, OrderID: 1, SKU: "US-1024MB-7D", ClientRef: "ord-200",
	})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.ProviderEsimGo, res.ProviderUsed)
	assert.Equal(t, 2, res.Attempts)
	// The failed provider must be excluded from the failover search, so the
	// second attempt goes upstream with the second provider's product.
	assert.Equal(t, []string{"ord-200-1"}, primary.clientRefs)
	assert.Equal(t, []string{"ord-200-2"}, secondary.clientRefs)
	assert.Len(t, orders.itemErrors, 1)
	assert.Empty(t, orders.failedReason)
}

func TestFulfillExhaustsAttemptBudget(t *testing.T) {
	adapter := &scriptedAdapter{slug: models.ProviderEsimAccess}
	adapter.failWith(errors.New("timeout"))
	adapter.failWith(errors.New("timeout"))
	adapter.failWith(errors.New("timeout"))

	registry := NewAdapterRegistry()
	registry.Register(adapter)

	offers := &fakeFulfillOfferStore{offer: &models.BestOffer{
		ProviderID: 1, ProviderSlug: models.ProviderEsimAccess, ProviderProductID: "pkg-a",
	}}
	orders := &fakeFulfillOrderStore{}

	var slept []time.Duration
	svc := NewFulfillmentService(registry, offers, &fakeFulfillProductStore{}, &fakeFulfillProviderStore{}, orders, fulfillConfig())
	svc.sleep = func(d time.Duration) { slept = append(slept, d) }

	res, err := svc.Fulfill(context.Background(), FulfillmentRequest{
		OrderItemID: 9, OrderID: 3, SKU: "US-1024MB-7D", ClientRef: "ord-300",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFulfillmentExhausted)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	// Exactly MaxAttempts upstream calls, each with a fresh idempotency ref.
	assert.Equal(t, []string{"ord-300-1", "ord-300-2", "ord-300-3"}, adapter.clientRefs)
	// No alternative provider exists, so backoff grows linearly between the
	// retries (never after the final one).
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, slept)
	assert.NotEmpty(t, orders.failedReason)
	assert.Len(t, orders.itemErrors, 3)
}

func TestFulfillNoProviderAvailable(t *testing.T) {
	svc := newTestFulfillment(NewAdapterRegistry(), &fakeFulfillOfferStore{}, &fakeFulfillProductStore{}, &fakeFulfillProviderStore{}, &fakeFulfillOrderStore{})

	_, err := svc.Fulfill(context.Background(), FulfillmentRequest{
		OrderItemID: 1, OrderID: 1, SKU: "US-1024MB-7D", ClientRef: "ord-400",
	})

	assert.ErrorIs(t, err, utils.ErrNoProviderAvailable)
}

func TestFulfillInvalidSKU(t *testing.T) {
	svc := newTestFulfillment(NewAdapterRegistry(), &fakeFulfillOfferStore{}, &fakeFulfillProductStore{}, &fakeFulfillProviderStore{}, &fakeFulfillOrderStore{})

	_, err := svc.Fulfill(context.Background(), FulfillmentRequest{
		OrderItemID: 1, OrderID: 1, SKU: "garbage", ClientRef: "ord-500",
	})

	assert.ErrorIs(t, err, utils.ErrInvalidSKU)
}

func TestFulfillUsesPreferredProvider(t *testing.T) {
	preferred := &scriptedAdapter{slug: models.ProviderEsimGo}
	preferred.succeedWith(&FulfillResult{ICCID: "8944000000000000003"})
	other := &scriptedAdapter{slug: models.ProviderEsimAccess}

	registry := NewAdapterRegistry()
	registry.Register(preferred)
	registry.Register(other)

	// The best offer points elsewhere, but the item was priced against
	// provider 2 and that provider still carries the product.
	offers := &fakeFulfillOfferStore{offer: &models.BestOffer{
		ProviderID: 1, ProviderSlug: models.ProviderEsimAccess, ProviderProductID: "pkg-a",
	}}
	prod := equivalentProduct(5, 2, models.ProviderEsimGo)
	products := &fakeFulfillProductStore{byProvider: map[int]*models.ProviderProduct{2: &prod}}

	preferredID := 2
	svc := newTestFulfillment(registry, offers, products, &fakeFulfillProviderStore{}, &fakeFulfillOrderStore{})
	res, err := svc.Fulfill(context.Background(), FulfillmentRequest{
		OrderItemID: 1, OrderID: 1, SKU: "US-1024MB-7D", ClientRef: "ord-600",
		PreferredProviderID: &preferredID,
	})

	require.NoError(t, err)
	assert.Equal(t, models.ProviderEsimGo, res.ProviderUsed)
	assert.Empty(t, other.clientRefs)
}

func TestFulfillRetriesSameProviderWhenFailoverDisabled(t *testing.T) {
	primary := &scriptedAdapter{slug: models.ProviderEsimAccess}
	primary.failWith(errors.New("upstream 500"))
	primary.succeedWith(&FulfillResult{ICCID: "8901000000000000004"})
	secondary := &scriptedAdapter{slug: models.ProviderEsimGo}

	registry := NewAdapterRegistry()
	registry.Register(primary)
	registry.Register(secondary)

	offers := &fakeFulfillOfferStore{offer: &models.BestOffer{
		ProviderID: 1, ProviderSlug: models.ProviderEsimAccess, ProviderProductID: "pkg-a",
	}}
	products := &fakeFulfillProductStore{
		equivalent: []models.ProviderProduct{equivalentProduct(2, 2, models.ProviderEsimGo)},
	}

	cfg := fulfillConfig()
	cfg.FailoverEnabled = false
	svc := NewFulfillmentService(registry, offers, products, &fakeFulfillProviderStore{}, &fakeFulfillOrderStore{}, cfg)
	svc.sleep = func(time.Duration) {}

	res, err := svc.Fulfill(context.Background(), FulfillmentRequest{
		OrderItemID: 1, OrderID: 1, SKU: "US-1024MB-7D", ClientRef: "ord-700",
	})

	require.NoError(t, err)
	assert.Equal(t, models.ProviderEsimAccess, res.ProviderUsed)
	assert.Equal(t, 2, res.Attempts)
	assert.Empty(t, secondary.clientRefs)
}
