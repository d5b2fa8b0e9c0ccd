package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/utils"
	"github.com/simtrek/esim_api/pkg/esimaccess"
)

// EsimAccessAdapter normalizes the eSIM Access open API. The upstream
// reports everything as structured fields (MB volume, day duration, ISO
// location, integer cents), so normalization is mostly unit conversion.
type EsimAccessAdapter struct {
	client *esimaccess.Client
}

// NewEsimAccessAdapter wraps an eSIM Access client.
func NewEsimAccessAdapter(client *esimaccess.Client) *EsimAccessAdapter {
	return &EsimAccessAdapter{client: client}
}

func (a *EsimAccessAdapter) Slug() models.ProviderSlug {
	return models.ProviderEsimAccess
}

// FetchCatalog returns the full normalized catalogue.
func (a *EsimAccessAdapter) FetchCatalog(ctx context.Context) ([]CatalogEntry, error) {
	packages, err := a.client.ListAllPackages(ctx)
	if err != nil {
		return nil, utils.NewUpstreamError(string(a.Slug()), "FetchCatalog", 0, err)
	}

	entries := make([]CatalogEntry, 0, len(packages))
	for _, p := range packages {
		entry, ok := normalizeEsimAccessPackage(p)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// normalizeEsimAccessPackage maps one package into a CatalogEntry. Packages
// missing a location or duration are skipped rather than guessed at.
func normalizeEsimAccessPackage(p esimaccess.Package) (CatalogEntry, bool) {
	if p.PackageCode == "" || p.DurationDays <= 0 {
		return CatalogEntry{}, false
	}

	country := normalizeLocation(p.LocationCode)
	if country == "" {
		return CatalogEntry{}, false
	}

	dataMB := p.VolumeMB
	if dataMB <= 0 {
		// Zero volume with an explicit unlimited marker in the name is an
		// unlimited package; otherwise the row is unusable.
		tier, ok := unlimitedTierFromName(p.Name)
		if !ok {
			return CatalogEntry{}, false
		}
		dataMB = tier
	}

	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}

	name := p.Name
	if name == "" {
		name = p.PackageCode
	}

	return CatalogEntry{
		ProviderProductID: p.PackageCode,
		Name:              name,
		CountryCode:       country,
		DataAmountMB:      dataMB,
		ValidityDays:      p.DurationDays,
		CostPrice:         decimal.New(int64(p.PriceCents), -2),
		Currency:          currency,
		Available:         p.Available,
	}, true
}

// normalizeLocation maps the upstream location code to a storefront country
// code. "!GL" is the upstream's global marker; multi-location strings are
// comma separated.
func normalizeLocation(location string) string {
	location = strings.ToUpper(strings.TrimSpace(location))
	switch {
	case location == "":
		return ""
	case location == "!GL", location == "GL":
		return models.CountryGlobal
	case strings.Contains(location, ","):
		return models.CountryMulti
	case len(location) == 2:
		return location
	default:
		return ""
	}
}

// unlimitedTierFromName detects an unlimited tier from the package name.
func unlimitedTierFromName(name string) (int, bool) {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "UNLIMITED PLUS"):
		return models.UnlimitedPlusMB, true
	case strings.Contains(upper, "UNLIMITED ESSENTIAL"):
		return models.UnlimitedEssentialMB, true
	case strings.Contains(upper, "UNLIMITED"):
		return models.UnlimitedLiteMB, true
	default:
		return 0, false
	}
}

// Fulfill places one profile order and parses the LPA activation code into
// its SM-DP+ address and matching ID parts.
func (a *EsimAccessAdapter) Fulfill(ctx context.Context, clientRef, providerProductID string, quantity int) (*FulfillResult, error) {
	result, err := a.client.Order(ctx, clientRef, providerProductID, quantity)
	if err != nil {
		return nil, utils.NewUpstreamError(string(a.Slug()), "Fulfill", 0, err)
	}
	if len(result.EsimList) == 0 {
		return nil, utils.NewUpstreamError(string(a.Slug()), "Fulfill", 0,
			fmt.Errorf("order %s returned no esim profiles", result.OrderNo))
	}

	esim := result.EsimList[0]
	smdp, matchingID, err := parseLPA(esim.ActivationCode)
	if err != nil {
		return nil, utils.NewUpstreamError(string(a.Slug()), "Fulfill", 0, err)
	}

	return &FulfillResult{
		ProviderOrderRef: result.OrderNo,
		ICCID:            esim.ICCID,
		SMDPAddress:      smdp,
		MatchingID:       matchingID,
		QRPayload:        esim.ActivationCode,
	}, nil
}

// parseLPA splits an "LPA:1$<smdp>$<matchingId>" activation code.
func parseLPA(code string) (smdp, matchingID string, err error) {
	parts := strings.Split(code, "$")
	if len(parts) < 3 || !strings.HasPrefix(parts[0], "LPA:") {
		return "", "", fmt.Errorf("malformed activation code %q", code)
	}
	return parts[1], parts[2], nil
}

// GetBalance returns the prepaid account balance.
func (a *EsimAccessAdapter) GetBalance(ctx context.Context) (*Balance, error) {
	result, err := a.client.GetBalance(ctx)
	if err != nil {
		return nil, utils.NewUpstreamError(string(a.Slug()), "GetBalance", 0, err)
	}
	currency := result.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Balance{
		Amount:   decimal.New(int64(result.BalanceCents), -2),
		Currency: currency,
	}, nil
}

// CheckHealth uses the balance endpoint as a cheap reachability probe.
func (a *EsimAccessAdapter) CheckHealth(ctx context.Context) error {
	if _, err := a.client.GetBalance(ctx); err != nil {
		return utils.NewUpstreamError(string(a.Slug()), "CheckHealth", 0, err)
	}
	return nil
}

// GetEsimStatus returns the provisioning state and usage of one profile.
func (a *EsimAccessAdapter) GetEsimStatus(ctx context.Context, iccid string) (*EsimStatus, error) {
	status, err := a.client.QueryEsim(ctx, iccid)
	if err != nil {
		return nil, utils.NewUpstreamError(string(a.Slug()), "GetEsimStatus", 0, err)
	}

	out := &EsimStatus{
		ICCID:   status.ICCID,
		State:   status.Status,
		TotalMB: status.TotalMB,
		UsedMB:  status.UsedMB,
	}
	if status.ExpiredTime != "" {
		if t, err := time.Parse(time.RFC3339, status.ExpiredTime); err == nil {
			out.ExpiresAt = &t
		}
	}
	return out, nil
}

// TopUp adds a package to an existing profile.
func (a *EsimAccessAdapter) TopUp(ctx context.Context, clientRef, iccid, providerProductID string) (*FulfillResult, error) {
	result, err := a.client.TopUp(ctx, clientRef, iccid, providerProductID)
	if err != nil {
		return nil, utils.NewUpstreamError(string(a.Slug()), "TopUp", 0, err)
	}
	return &FulfillResult{ProviderOrderRef: result.OrderNo, ICCID: iccid}, nil
}
