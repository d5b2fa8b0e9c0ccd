package models

import (
	"database/sql/driver"
	"time"
)

// CountryCountMap is a per-country product count breakdown. Stored as JSONB.
type CountryCountMap map[string]int

func (m CountryCountMap) Value() (driver.Value, error) { return jsonbValue(m) }
func (m *CountryCountMap) Scan(src any) error          { return jsonbScan(src, m) }

// CatalogSyncLog is the audit record written after every catalogue sync run,
// successful or aborted.
type CatalogSyncLog struct {
	ID           int             `db:"id" json:"id"`
	ProviderID   int             `db:"provider_id" json:"providerId"`
	Success      bool            `db:"success" json:"success"`
	ProductCount int             `db:"product_count" json:"productCount"`
	ByCountry    CountryCountMap `db:"by_country" json:"byCountry,omitempty"`
	Error        *string         `db:"error" json:"error,omitempty"`
	StartedAt    time.Time       `db:"started_at" json:"startedAt"`
	FinishedAt   time.Time       `db:"finished_at" json:"finishedAt"`
}
