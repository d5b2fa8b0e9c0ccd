package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/simtrek/esim_api/internal/models"
)

// ProviderBalance is one provider's balance as seen by the monitor. When the
// upstream balance endpoint fails, the monitor reports a zero fallback with
// OK=false rather than failing the caller.
type ProviderBalance struct {
	ProviderSlug models.ProviderSlug `json:"providerSlug"`
	Balance      decimal.Decimal     `json:"balance"`
	Currency     string              `json:"currency"`
	OK           bool                `json:"ok"`
	Error        string              `json:"error,omitempty"`
}

// BalanceService polls provider balances and raises low-balance alerts.
type BalanceService struct {
	registry     *AdapterRegistry
	settingsRepo pricingSettingsStore
	notifier     Notifier
}

// NewBalanceService creates a new BalanceService.
func NewBalanceService(registry *AdapterRegistry, settingsRepo pricingSettingsStore, notifier Notifier) *BalanceService {
	return &BalanceService{
		registry:     registry,
		settingsRepo: settingsRepo,
		notifier:     notifier,
	}
}

// GetBalances returns the balance of every registered provider. Upstream
// failures degrade to a zero-value entry so an admin dashboard never breaks
// on one dead provider.
func (s *BalanceService) GetBalances(ctx context.Context) []ProviderBalance {
	balances := make([]ProviderBalance, 0, len(s.registry.Slugs()))
	for _, slug := range s.registry.Slugs() {
		adapter := s.registry.Get(slug)
		balance, err := adapter.GetBalance(ctx)
		if err != nil {
			log.Warn().Err(err).Str("provider", string(slug)).Msg("Balance check failed")
			balances = append(balances, ProviderBalance{
				ProviderSlug: slug,
				Balance:      decimal.Zero,
				OK:           false,
				Error:        err.Error(),
			})
			continue
		}
		balances = append(balances, ProviderBalance{
			ProviderSlug: slug,
			Balance:      balance.Amount,
			Currency:     balance.Currency,
			OK:           true,
		})
	}
	return balances
}

// CheckAndAlert polls every provider balance and notifies when one drops
// below the configured threshold. Alert dispatch failures never propagate;
// the returned error covers only settings access.
func (s *BalanceService) CheckAndAlert(ctx context.Context) error {
	settings, err := s.settingsRepo.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.BalanceAlertsEnabled {
		return nil
	}

	for _, b := range s.GetBalances(ctx) {
		if !b.OK {
			s.notifier.Notify(ctx,
				fmt.Sprintf("Balance check failed: %s", b.ProviderSlug),
				b.Error, SeverityWarning)
			continue
		}
		if b.Balance.LessThan(settings.LowBalanceThreshold) {
			log.Warn().
				Str("provider", string(b.ProviderSlug)).
				Str("balance", b.Balance.String()).
				Str("threshold", settings.LowBalanceThreshold.String()).
				Msg("Provider balance below threshold")
			s.notifier.Notify(ctx,
				fmt.Sprintf("Low balance: %s", b.ProviderSlug),
				fmt.Sprintf("Provider %s balance %s %s is below threshold %s",
					b.ProviderSlug, b.Balance.String(), b.Currency,
					settings.LowBalanceThreshold.String()),
				SeverityCritical)
		}
	}
	return nil
}

// CheckHealth probes every registered provider and returns reachability per
// slug. Probe failures are swallowed into false.
func (s *BalanceService) CheckHealth(ctx context.Context) map[models.ProviderSlug]bool {
	health := make(map[models.ProviderSlug]bool, len(s.registry.Slugs()))
	for _, slug := range s.registry.Slugs() {
		err := s.registry.Get(slug).CheckHealth(ctx)
		health[slug] = err == nil
		if err != nil {
			log.Warn().Err(err).Str("provider", string(slug)).Msg("Health probe failed")
		}
	}
	return health
}
