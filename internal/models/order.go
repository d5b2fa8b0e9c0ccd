package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates storefront order item states as seen by the
// fulfillment engine.
type OrderStatus string

const (
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusFulfilling OrderStatus = "fulfilling"
	OrderStatusFulfilled  OrderStatus = "fulfilled"
	OrderStatusFailed     OrderStatus = "failed"
)

// Order is a paid storefront purchase. Created by the checkout/webhook
// layer; the fulfillment engine only mutates its items.
type Order struct {
	ID            int         `db:"id" json:"id"`
	Reference     string      `db:"reference" json:"reference"`
	CustomerEmail string      `db:"customer_email" json:"customerEmail"`
	Status        OrderStatus `db:"status" json:"status"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updatedAt"`
}

// OrderItem carries the purchased SKU, the provider actually used, and the
// activation credentials once fulfillment succeeds. The fulfilled provider
// may differ from the priced one after failover; both are recorded.
type OrderItem struct {
	ID                  int             `db:"id" json:"id"`
	OrderID             int             `db:"order_id" json:"orderId"`
	SKU                 string          `db:"sku" json:"sku"`
	Quantity            int             `db:"quantity" json:"quantity"`
	SellPrice           decimal.Decimal `db:"sell_price" json:"sellPrice"`
	Currency            string          `db:"currency" json:"currency"`
	PricedProviderID    *int            `db:"priced_provider_id" json:"pricedProviderId,omitempty"`
	FulfilledProviderID *int            `db:"fulfilled_provider_id" json:"fulfilledProviderId,omitempty"`
	ProviderProductID   *string         `db:"provider_product_id" json:"providerProductId,omitempty"`
	ProviderOrderRef    *string         `db:"provider_order_ref" json:"providerOrderRef,omitempty"`
	ICCID               *string         `db:"iccid" json:"iccid,omitempty"`
	SMDPAddress         *string         `db:"smdp_address" json:"smdpAddress,omitempty"`
	MatchingID          *string         `db:"matching_id" json:"matchingId,omitempty"`
	QRPayload           *string         `db:"qr_payload" json:"qrPayload,omitempty"`
	Status              OrderStatus     `db:"status" json:"status"`
	Attempts            int             `db:"attempts" json:"attempts"`
	LastError           *string         `db:"last_error" json:"lastError,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"-"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updatedAt"`
}
