package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/simtrek/esim_api/internal/config"
	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/utils"
)

// FulfillmentRequest describes one paid order item to fulfill.
type FulfillmentRequest struct {
	OrderItemID int
	OrderID     int
	SKU         string
	Quantity    int
	// ClientRef seeds the per-attempt idempotency reference sent upstream.
	ClientRef string
	// PreferredProviderID is the provider chosen when the item was priced.
	PreferredProviderID *int
}

// FulfillmentResult is returned to the checkout/webhook layer.
type FulfillmentResult struct {
	Success      bool                `json:"success"`
	ProviderUsed models.ProviderSlug `json:"providerUsed,omitempty"`
	ProviderID   int                 `json:"providerId,omitempty"`
	ICCID        string              `json:"iccid,omitempty"`
	MatchingID   string              `json:"matchingId,omitempty"`
	SMDPAddress  string              `json:"smdpAddress,omitempty"`
	QRPayload    string              `json:"qrPayload,omitempty"`
	Attempts     int                 `json:"attempts"`
	Error        string              `json:"error,omitempty"`
}

// fulfillCandidate is one (provider, product) pair eligible for an attempt.
type fulfillCandidate struct {
	ProviderID        int
	ProviderSlug      models.ProviderSlug
	ProviderProductID string
}

type fulfillOfferStore interface {
	GetByKey(key models.OfferKey) (*models.BestOffer, error)
}

type fulfillProductStore interface {
	FindByProviderAndKey(providerID int, key models.OfferKey) (*models.ProviderProduct, error)
	FindEquivalent(key models.OfferKey, excludeProviderIDs []int) ([]models.ProviderProduct, error)
}

type fulfillProviderStore interface {
	RecordRequest(providerID int, success bool, responseTimeMs int, failureReason string) error
}

type fulfillOrderStore interface {
	MarkItemFulfilling(itemID int) error
	MarkItemFulfilled(itemID, providerID int, providerProductID, providerOrderRef, iccid, smdpAddress, matchingID, qrPayload string) error
	MarkItemFailed(itemID int, reason string) error
	RecordItemError(itemID int, reason string) error
	RefreshOrderStatus(orderID int) error
}

// FulfillmentService executes a paid order item against the best available
// provider, failing over to an equivalent product from another provider when
// an attempt fails, within a bounded total attempt budget.
type FulfillmentService struct {
	registry     *AdapterRegistry
	offerRepo    fulfillOfferStore
	productRepo  fulfillProductStore
	providerRepo fulfillProviderStore
	orderRepo    fulfillOrderStore
	cfg          config.FulfillmentConfig

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewFulfillmentService creates a new FulfillmentService.
func NewFulfillmentService(registry *AdapterRegistry, offerRepo fulfillOfferStore, productRepo fulfillProductStore, providerRepo fulfillProviderStore, orderRepo fulfillOrderStore, cfg config.FulfillmentConfig) *FulfillmentService {
	return &FulfillmentService{
		registry:     registry,
		offerRepo:    offerRepo,
		productRepo:  productRepo,
		providerRepo: providerRepo,
		orderRepo:    orderRepo,
		cfg:          cfg,
		sleep:        time.Sleep,
	}
}

// Fulfill runs the attempt loop for one order item. At most one successful
// upstream order is placed per call. A caller that abandons the request does
// not cancel an in-flight upstream order; each call still runs under its own
// timeout so a hung upstream cannot block forever.
func (s *FulfillmentService) Fulfill(ctx context.Context, req FulfillmentRequest) (*FulfillmentResult, error) {
	key, err := models.ParseSKU(req.SKU)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidSKU, err)
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	current, err := s.resolveProvider(key, req.PreferredProviderID)
	if err != nil {
		return nil, err
	}

	// The upstream call must complete even if the caller goes away;
	// abandoning it mid-flight leaves payment state ambiguous.
	callCtx := context.WithoutCancel(ctx)

	var (
		attempts int
		lastErr  error
		tried    = []int{}
	)

	for attempts < s.cfg.MaxAttempts {
		attempts++
		tried = appendUnique(tried, current.ProviderID)

		if err := s.orderRepo.MarkItemFulfilling(req.OrderItemID); err != nil {
			log.Error().Err(err).Int("item_id", req.OrderItemID).Msg("Failed to mark item fulfilling")
		}

		result, attemptErr := s.attempt(callCtx, current, req, attempts)
		if attemptErr == nil {
			if err := s.orderRepo.MarkItemFulfilled(req.OrderItemID, current.ProviderID,
				current.ProviderProductID, result.ProviderOrderRef, result.ICCID,
				result.SMDPAddress, result.MatchingID, result.QRPayload); err != nil {
				log.Error().Err(err).Int("item_id", req.OrderItemID).Msg("Failed to mark item fulfilled")
			}
			if err := s.orderRepo.RefreshOrderStatus(req.OrderID); err != nil {
				log.Error().Err(err).Int("order_id", req.OrderID).Msg("Failed to refresh order status")
			}

			log.Info().
				Str("sku", req.SKU).
				Str("provider", string(current.ProviderSlug)).
				Int("attempts", attempts).
				Msg("Fulfillment succeeded")

			return &FulfillmentResult{
				Success:      true,
				ProviderUsed: current.ProviderSlug,
				ProviderID:   current.ProviderID,
				ICCID:        result.ICCID,
				MatchingID:   result.MatchingID,
				SMDPAddress:  result.SMDPAddress,
				QRPayload:    result.QRPayload,
				Attempts:     attempts,
			}, nil
		}

		lastErr = attemptErr
		if err := s.orderRepo.RecordItemError(req.OrderItemID, attemptErr.Error()); err != nil {
			log.Error().Err(err).Int("item_id", req.OrderItemID).Msg("Failed to record item error")
		}
		log.Warn().
			Err(attemptErr).
			Str("sku", req.SKU).
			Str("provider", string(current.ProviderSlug)).
			Int("attempt", attempts).
			Msg("Fulfillment attempt failed")

		if attempts >= s.cfg.MaxAttempts {
			break
		}

		if s.cfg.FailoverEnabled {
			if next, ok := s.findFailover(key, tried); ok {
				log.Info().
					Str("from", string(current.ProviderSlug)).
					Str("to", string(next.ProviderSlug)).
					Str("sku", req.SKU).
					Msg("Failing over to equivalent product")
				current = next
				continue
			}
		}

		// No alternative provider: retry the same one with linear backoff.
		s.sleep(time.Duration(attempts) * time.Second)
	}

	reason := fmt.Sprintf("exhausted %d attempts, last provider %s: %v",
		attempts, current.ProviderSlug, lastErr)
	if err := s.orderRepo.MarkItemFailed(req.OrderItemID, reason); err != nil {
		log.Error().Err(err).Int("item_id", req.OrderItemID).Msg("Failed to mark item failed")
	}
	if err := s.orderRepo.RefreshOrderStatus(req.OrderID); err != nil {
		log.Error().Err(err).Int("order_id", req.OrderID).Msg("Failed to refresh order status")
	}

	return &FulfillmentResult{
		Success:      false,
		ProviderUsed: current.ProviderSlug,
		ProviderID:   current.ProviderID,
		Attempts:     attempts,
		Error:        reason,
	}, fmt.Errorf("%w: %s", utils.ErrFulfillmentExhausted, reason)
}

// resolveProvider picks the starting (provider, product) pair: the preferred
// provider from pricing when it still carries the product, else the current
// best offer, else any active provider's catalogue by priority.
func (s *FulfillmentService) resolveProvider(key models.OfferKey, preferredProviderID *int) (fulfillCandidate, error) {
	if preferredProviderID != nil {
		product, err := s.productRepo.FindByProviderAndKey(*preferredProviderID, key)
		if err != nil {
			return fulfillCandidate{}, fmt.Errorf("failed to look up preferred provider product: %w", err)
		}
		if product != nil && s.registry.Get(product.ProviderSlug) != nil {
			return candidateFromProduct(*product), nil
		}
	}

	offer, err := s.offerRepo.GetByKey(key)
	if err != nil {
		return fulfillCandidate{}, fmt.Errorf("failed to look up best offer: %w", err)
	}
	if offer != nil && s.registry.Get(offer.ProviderSlug) != nil {
		return fulfillCandidate{
			ProviderID:        offer.ProviderID,
			ProviderSlug:      offer.ProviderSlug,
			ProviderProductID: offer.ProviderProductID,
		}, nil
	}

	// No materialized offer: scan raw catalogues by provider priority.
	candidates, err := s.productRepo.FindEquivalent(key, nil)
	if err != nil {
		return fulfillCandidate{}, fmt.Errorf("failed to scan provider catalogues: %w", err)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})
	for _, c := range candidates {
		if s.registry.Get(c.ProviderSlug) != nil {
			return candidateFromProduct(c), nil
		}
	}

	return fulfillCandidate{}, utils.ErrNoProviderAvailable
}

// attempt makes exactly one upstream order call, bounded by the per-call
// timeout, and records the outcome against the provider's daily health.
func (s *FulfillmentService) attempt(ctx context.Context, c fulfillCandidate, req FulfillmentRequest, attemptNum int) (*FulfillResult, error) {
	adapter := s.registry.Get(c.ProviderSlug)
	if adapter == nil {
		return nil, fmt.Errorf("%w: adapter %s not registered", utils.ErrNoProviderAvailable, c.ProviderSlug)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	clientRef := fmt.Sprintf("%s-%d", req.ClientRef, attemptNum)
	started := time.Now()
	result, err := adapter.Fulfill(callCtx, clientRef, c.ProviderProductID, req.Quantity)
	elapsed := int(time.Since(started).Milliseconds())

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	if recErr := s.providerRepo.RecordRequest(c.ProviderID, err == nil, elapsed, reason); recErr != nil {
		log.Error().Err(recErr).Int("provider_id", c.ProviderID).Msg("Failed to record provider health")
	}

	return result, err
}

// findFailover searches other providers for an equivalent product: same
// country, at least as much data, at least the same validity; cheapest first
// then highest priority.
func (s *FulfillmentService) findFailover(key models.OfferKey, excludeProviderIDs []int) (fulfillCandidate, bool) {
	candidates, err := s.productRepo.FindEquivalent(key, excludeProviderIDs)
	if err != nil {
		log.Error().Err(err).Str("sku", key.SKU()).Msg("Failed to search equivalent products")
		return fulfillCandidate{}, false
	}
	for _, c := range candidates {
		if s.registry.Get(c.ProviderSlug) != nil {
			return candidateFromProduct(c), true
		}
	}
	return fulfillCandidate{}, false
}

func candidateFromProduct(p models.ProviderProduct) fulfillCandidate {
	return fulfillCandidate{
		ProviderID:        p.ProviderID,
		ProviderSlug:      p.ProviderSlug,
		ProviderProductID: p.ProviderProductID,
	}
}

func appendUnique(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
