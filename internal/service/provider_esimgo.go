package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/utils"
	"github.com/simtrek/esim_api/pkg/esimgo"
)

// EsimGoAdapter normalizes the eSIM Go API. The upstream leaves much of the
// package shape implicit in bundle name tokens ("ESIM_5GB_30D_US_V2",
// "ESIM_ULP_7D_TR_V2"), so normalization prefers structured fields and
// falls back to token parsing.
type EsimGoAdapter struct {
	client *esimgo.Client
}

// NewEsimGoAdapter wraps an eSIM Go client.
func NewEsimGoAdapter(client *esimgo.Client) *EsimGoAdapter {
	return &EsimGoAdapter{client: client}
}

func (a *EsimGoAdapter) Slug() models.ProviderSlug {
	return models.ProviderEsimGo
}

// FetchCatalog returns the full normalized catalogue.
func (a *EsimGoAdapter) FetchCatalog(ctx context.Context) ([]CatalogEntry, error) {
	bundles, err := a.client.GetCatalogue(ctx)
	if err != nil {
		return nil, utils.NewUpstreamError(string(a.Slug()), "FetchCatalog", 0, err)
	}

	entries := make([]CatalogEntry, 0, len(bundles))
	for _, b := range bundles {
		entry, ok := normalizeEsimGoBundle(b)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// normalizeEsimGoBundle maps one bundle into a CatalogEntry. Precedence per
// field: structured value first, then name token, then skip the bundle.
func normalizeEsimGoBundle(b esimgo.Bundle) (CatalogEntry, bool) {
	if b.Name == "" {
		return CatalogEntry{}, false
	}
	tokens := strings.Split(strings.ToUpper(b.Name), "_")

	country := esimGoCountry(b, tokens)
	if country == "" {
		return CatalogEntry{}, false
	}

	dataMB := b.DataAmountMB
	if dataMB <= 0 {
		// Zero means "not populated" upstream; the name token decides
		// between a data amount and an unlimited tier.
		var ok bool
		dataMB, ok = dataFromTokens(tokens)
		if !ok {
			return CatalogEntry{}, false
		}
	}

	days := parseDurationString(b.Duration)
	if days <= 0 {
		days = durationFromTokens(tokens)
	}
	if days <= 0 {
		return CatalogEntry{}, false
	}

	currency := b.Currency
	if currency == "" {
		currency = "USD"
	}

	name := b.Description
	if name == "" {
		name = b.Name
	}

	return CatalogEntry{
		ProviderProductID: b.Name,
		Name:              name,
		CountryCode:       country,
		DataAmountMB:      dataMB,
		ValidityDays:      days,
		CostPrice:         decimal.NewFromFloat(b.Price),
		Currency:          currency,
		Available:         b.Available,
	}, true
}

// esimGoCountry resolves the storefront country code. A single ISO country
// wins; multiple countries map to MULTI; a free-text region alone means the
// bundle is regional, also MULTI; a country token in the name is the last
// resort.
func esimGoCountry(b esimgo.Bundle, tokens []string) string {
	switch len(b.Countries) {
	case 0:
	case 1:
		return strings.ToUpper(b.Countries[0])
	default:
		return models.CountryMulti
	}

	if strings.EqualFold(strings.TrimSpace(b.Region), "global") {
		return models.CountryGlobal
	}
	if strings.TrimSpace(b.Region) != "" {
		return models.CountryMulti
	}

	// Country token sits after the duration token, e.g. ESIM_5GB_30D_US_V2.
	for i := 1; i < len(tokens); i++ {
		if len(tokens[i]) == 2 && isAlpha(tokens[i]) && strings.HasSuffix(tokens[i-1], "D") {
			return tokens[i]
		}
	}
	return ""
}

// dataFromTokens extracts the data amount from name tokens: "5GB"/"500MB"
// for finite bundles, "UL"/"ULE"/"ULP" for unlimited tiers.
func dataFromTokens(tokens []string) (int, bool) {
	for _, tok := range tokens {
		switch tok {
		case "UL":
			return models.UnlimitedLiteMB, true
		case "ULE":
			return models.UnlimitedEssentialMB, true
		case "ULP":
			return models.UnlimitedPlusMB, true
		}
		if mb, ok := parseDataToken(tok); ok {
			return mb, true
		}
	}
	return 0, false
}

// parseDataToken parses "5GB" or "500MB" into megabytes.
func parseDataToken(tok string) (int, bool) {
	var mult int
	var num string
	switch {
	case strings.HasSuffix(tok, "GB"):
		mult, num = 1024, strings.TrimSuffix(tok, "GB")
	case strings.HasSuffix(tok, "MB"):
		mult, num = 1, strings.TrimSuffix(tok, "MB")
	default:
		return 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n * mult, true
}

// durationFromTokens extracts the validity from a "30D" name token.
func durationFromTokens(tokens []string) int {
	for _, tok := range tokens {
		if !strings.HasSuffix(tok, "D") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSuffix(tok, "D")); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// parseDurationString parses the structured duration field, e.g. "30d".
func parseDurationString(d string) int {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(d, "d"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return len(s) > 0
}

// Fulfill purchases one bundle with immediate assignment.
func (a *EsimGoAdapter) Fulfill(ctx context.Context, clientRef, providerProductID string, quantity int) (*FulfillResult, error) {
	resp, err := a.client.Order(ctx, providerProductID, quantity)
	if err != nil {
		return nil, utils.NewUpstreamError(string(a.Slug()), "Fulfill", 0, err)
	}
	if !strings.EqualFold(resp.Status, "completed") {
		return nil, utils.NewUpstreamError(string(a.Slug()), "Fulfill", 0,
			fmt.Errorf("order %s not completed: status %s: %s", resp.OrderReference, resp.Status, resp.Message))
	}
	if len(resp.Order) == 0 || len(resp.Order[0].Esims) == 0 {
		return nil, utils.NewUpstreamError(string(a.Slug()), "Fulfill", 0,
			fmt.Errorf("order %s returned no esim profiles", resp.OrderReference))
	}

	esim := resp.Order[0].Esims[0]
	return &FulfillResult{
		ProviderOrderRef: resp.OrderReference,
		ICCID:            esim.ICCID,
		SMDPAddress:      esim.SMDPAddress,
		MatchingID:       esim.MatchingID,
		QRPayload:        fmt.Sprintf("LPA:1$%s$%s", esim.SMDPAddress, esim.MatchingID),
	}, nil
}

// GetBalance returns the organisation's prepaid balance.
func (a *EsimGoAdapter) GetBalance(ctx context.Context) (*Balance, error) {
	org, err := a.client.GetOrganisation(ctx)
	if err != nil {
		return nil, utils.NewUpstreamError(string(a.Slug()), "GetBalance", 0, err)
	}
	currency := org.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Balance{
		Amount:   decimal.NewFromFloat(org.Balance),
		Currency: currency,
	}, nil
}

// CheckHealth uses the organisation endpoint as a reachability probe.
func (a *EsimGoAdapter) CheckHealth(ctx context.Context) error {
	if _, err := a.client.GetOrganisation(ctx); err != nil {
		return utils.NewUpstreamError(string(a.Slug()), "CheckHealth", 0, err)
	}
	return nil
}

// GetEsimStatus returns the profile state of one assigned eSIM.
func (a *EsimGoAdapter) GetEsimStatus(ctx context.Context, iccid string) (*EsimStatus, error) {
	details, err := a.client.GetEsim(ctx, iccid)
	if err != nil {
		return nil, utils.NewUpstreamError(string(a.Slug()), "GetEsimStatus", 0, err)
	}
	return &EsimStatus{ICCID: details.ICCID, State: details.ProfileState}, nil
}
