package models

import "time"

// LineageSettings are the per-tenant build settings. A nil LineageClassifications means the
// service default list applies; an empty SupportedZones means no zone restriction.
type LineageSettings struct {
	TenantID               string    `json:"tenant_id"`
	SupportedZones         []string  `json:"supported_zones"`
	LineageClassifications []string  `json:"lineage_classifications"`
	UpdatedBy              string    `json:"updated_by,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// UpdateLineageSettingsRequest replaces a tenant's settings.
type UpdateLineageSettingsRequest struct {
	SupportedZones         []string `json:"supported_zones" validate:"omitempty,dive,required"`
	LineageClassifications []string `json:"lineage_classifications" validate:"omitempty,dive,required"`
}
