package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/simtrek/esim_api/internal/cache"
	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/utils"
)

// Offer scoring weights. Price dominates; reliability and priority are
// tie-breaking nudges. Treated as domain constants, not configuration.
const (
	weightCost        = 1.0
	weightReliability = -5.0
	weightPriority    = -2.0
)

// pricingRebuildLockTTL bounds how long a crashed rebuild can hold the lock.
const pricingRebuildLockTTL = 10 * time.Minute

const pricingRebuildLockKey = "lock:pricing:rebuild"

var hundred = decimal.NewFromInt(100)

// pricingProductStore supplies the candidate set for the rebuild.
type pricingProductStore interface {
	ActiveCandidates() ([]models.ProviderProduct, error)
}

// pricingOfferStore persists the materialized winners.
type pricingOfferStore interface {
	ReplaceAll(offers []models.BestOffer) error
}

// pricingSettingsStore reads the global pricing settings.
type pricingSettingsStore interface {
	Get() (*models.PricingSettings, error)
}

// PricingService rebuilds the best_offers materialized table and computes
// per-request margin prices for checkout display.
type PricingService struct {
	productRepo  pricingProductStore
	offerRepo    pricingOfferStore
	settingsRepo pricingSettingsStore
	redis        *cache.RedisClient
}

// NewPricingService creates a new PricingService.
func NewPricingService(productRepo pricingProductStore, offerRepo pricingOfferStore, settingsRepo pricingSettingsStore, redis *cache.RedisClient) *PricingService {
	return &PricingService{
		productRepo:  productRepo,
		offerRepo:    offerRepo,
		settingsRepo: settingsRepo,
		redis:        redis,
	}
}

// Rebuild recomputes the whole best-offer table from active products and
// current settings, then swaps it in atomically. Concurrent rebuilds are
// rejected via a redis lock.
func (s *PricingService) Rebuild(ctx context.Context) (int, error) {
	if s.redis != nil {
		acquired, err := s.redis.AcquireLock(ctx, pricingRebuildLockKey, pricingRebuildLockTTL)
		if err != nil {
			return 0, fmt.Errorf("failed to acquire rebuild lock: %w", err)
		}
		if !acquired {
			return 0, utils.ErrRebuildInProgress
		}
		defer s.redis.ReleaseLock(ctx, pricingRebuildLockKey)
	}

	started := time.Now()

	settings, err := s.settingsRepo.Get()
	if err != nil {
		return 0, fmt.Errorf("failed to load pricing settings: %w", err)
	}
	candidates, err := s.productRepo.ActiveCandidates()
	if err != nil {
		return 0, fmt.Errorf("failed to load candidates: %w", err)
	}

	offers := ComputeBestOffers(candidates, settings)
	if err := s.offerRepo.ReplaceAll(offers); err != nil {
		return 0, fmt.Errorf("failed to replace best offers: %w", err)
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("offers", len(offers)).
		Dur("took", time.Since(started)).
		Msg("Best offer rebuild completed")
	return len(offers), nil
}

// ComputeBestOffers is the pure transformation behind Rebuild: group active
// products by offer key, pick the lowest-score winner per key, and price it.
// Output order is deterministic.
func ComputeBestOffers(candidates []models.ProviderProduct, settings *models.PricingSettings) []models.BestOffer {
	winners := make(map[models.OfferKey]models.ProviderProduct)
	for _, c := range candidates {
		key := c.Key()
		current, exists := winners[key]
		if !exists || beats(c, current) {
			winners[key] = c
		}
	}

	offers := make([]models.BestOffer, 0, len(winners))
	for key, w := range winners {
		sell := ComputeSellPrice(w.CostPrice, key, settings)
		offers = append(offers, models.BestOffer{
			CountryCode:       key.CountryCode,
			DataAmountMB:      key.DataAmountMB,
			ValidityDays:      key.ValidityDays,
			ProviderID:        w.ProviderID,
			ProviderProductID: w.ProviderProductID,
			CostPrice:         w.CostPrice,
			SellPrice:         sell,
			Margin:            sell.Sub(w.CostPrice),
			Currency:          w.Currency,
		})
	}

	sort.Slice(offers, func(i, j int) bool {
		a, b := offers[i], offers[j]
		if a.CountryCode != b.CountryCode {
			return a.CountryCode < b.CountryCode
		}
		if a.DataAmountMB != b.DataAmountMB {
			return a.DataAmountMB < b.DataAmountMB
		}
		return a.ValidityDays < b.ValidityDays
	})
	return offers
}

// beats reports whether candidate c outranks the current winner: lower score
// wins, ties broken by provider priority descending, then by product id
// ascending so reruns stay deterministic.
func beats(c, current models.ProviderProduct) bool {
	cs, ws := Score(c), Score(current)
	if cs != ws {
		return cs < ws
	}
	if c.Priority != current.Priority {
		return c.Priority > current.Priority
	}
	return c.ID < current.ID
}

// Score computes the weighted cost/quality score of a candidate. Lower is
// better.
func Score(p models.ProviderProduct) float64 {
	cost, _ := p.CostPrice.Float64()
	return cost*weightCost + p.ReliabilityScore*weightReliability + float64(p.Priority)*weightPriority
}

// ComputeSellPrice runs the full batch pricing chain for one winner:
// margin (SKU override > country override > global), auto-discount, then the
// price guard floor. The result never falls below cost.
func ComputeSellPrice(cost decimal.Decimal, key models.OfferKey, settings *models.PricingSettings) decimal.Decimal {
	var standard decimal.Decimal
	if override := settings.SKUOverrides.Find(key.SKU()); override != nil {
		standard = override.Price
	} else {
		standard = ApplyMargin(cost, key.CountryCode, settings)
	}

	discounted := standard
	if settings.AutoDiscount.Enabled && standard.GreaterThanOrEqual(settings.AutoDiscount.Threshold) {
		factor := decimal.NewFromInt(1).Sub(settings.AutoDiscount.Percent.Div(hundred))
		discounted = standard.Mul(factor)
	}

	floorFixed := cost.Add(settings.PriceGuard.MinMarginFixed)
	floorPercent := cost.Mul(decimal.NewFromInt(1).Add(settings.PriceGuard.MinMarginPercent.Div(hundred)))

	final := decimal.Max(discounted, floorFixed, floorPercent)
	return final.Round(2)
}

// ApplyMargin computes the standard margin price for one cost:
// cost * (1 + percent/100) + fixed, using the country override when present,
// otherwise the global pair. It deliberately applies neither the
// auto-discount nor the price guard; those belong only to the batch rebuild.
func ApplyMargin(cost decimal.Decimal, countryCode string, settings *models.PricingSettings) decimal.Decimal {
	percent := settings.MarginPercent
	fixed := settings.MarginFixed
	if rule, ok := settings.CountryMargins[countryCode]; ok {
		percent = rule.Percent
		fixed = rule.Fixed
	}
	return cost.Mul(decimal.NewFromInt(1).Add(percent.Div(hundred))).Add(fixed).Round(2)
}
