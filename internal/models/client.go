package models

import "time"

// Client represents a registered API consumer of the fulfillment engine
// (the storefront checkout layer, typically). Sensitive keys are omitted
// from JSON responses for security.
type Client struct {
	ID          int       `db:"id" json:"id"`
	ClientID    string    `db:"client_id" json:"clientId"`
	Name        string    `db:"name" json:"name"`
	APIKey      string    `db:"api_key" json:"apiKey,omitempty"`
	SandboxKey  string    `db:"sandbox_key" json:"sandboxKey,omitempty"`
	IPWhitelist []string  `db:"ip_whitelist" json:"ipWhitelist"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
