package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/utils"
)

// EsimService exposes optional per-profile provider capabilities: status
// lookup and top-up. Capabilities are probed at call time; a provider that
// lacks one reports unsupported, not an error.
type EsimService struct {
	registry *AdapterRegistry
}

// NewEsimService creates a new EsimService.
func NewEsimService(registry *AdapterRegistry) *EsimService {
	return &EsimService{registry: registry}
}

// GetStatus returns the provisioning state of one profile.
func (s *EsimService) GetStatus(ctx context.Context, slug models.ProviderSlug, iccid string) (*EsimStatus, error) {
	adapter := s.registry.Get(slug)
	if adapter == nil {
		return nil, utils.ErrNoProviderAvailable
	}
	statusProvider, ok := adapter.(EsimStatusProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not expose esim status", utils.ErrUnsupportedCapability, slug)
	}
	return statusProvider.GetEsimStatus(ctx, iccid)
}

// TopUp adds a provider product to an already provisioned profile.
func (s *EsimService) TopUp(ctx context.Context, slug models.ProviderSlug, iccid, providerProductID string) (*FulfillResult, error) {
	adapter := s.registry.Get(slug)
	if adapter == nil {
		return nil, utils.ErrNoProviderAvailable
	}
	topUpProvider, ok := adapter.(TopUpProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not support top-up", utils.ErrUnsupportedCapability, slug)
	}
	return topUpProvider.TopUp(ctx, fmt.Sprintf("topup-%s", uuid.NewString()), iccid, providerProductID)
}
