package utils

import (
	"errors"
	"fmt"
)

// Common application errors used across services.
var (
	ErrInvalidToken          = errors.New("INVALID_TOKEN")
	ErrInvalidClient         = errors.New("INVALID_CLIENT")
	ErrInvalidIP             = errors.New("INVALID_IP")
	ErrInvalidSKU            = errors.New("INVALID_SKU")
	ErrOfferNotFound         = errors.New("OFFER_NOT_FOUND")
	ErrNoProviderAvailable   = errors.New("NO_PROVIDER_AVAILABLE")
	ErrPriceGuardViolation   = errors.New("PRICE_GUARD_VIOLATION")
	ErrSyncAborted           = errors.New("SYNC_ABORTED")
	ErrFulfillmentExhausted  = errors.New("FULFILLMENT_EXHAUSTED")
	ErrFulfillmentInFlight   = errors.New("FULFILLMENT_IN_FLIGHT")
	ErrRebuildInProgress     = errors.New("REBUILD_IN_PROGRESS")
	ErrUnsupportedCapability = errors.New("UNSUPPORTED_CAPABILITY")
)

// UpstreamError wraps a failed provider API call. It is always created at
// the adapter boundary; raw network or decode errors never escape past it.
type UpstreamError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream %s: %s returned status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NewUpstreamError builds an UpstreamError for a provider operation.
func NewUpstreamError(provider, op string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{Provider: provider, Op: op, StatusCode: statusCode, Err: err}
}

// IsUpstream reports whether err is (or wraps) an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
