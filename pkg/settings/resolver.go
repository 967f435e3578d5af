// Package settings turns per-tenant lineage settings into the caller a build runs as.
package settings

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/internal/repositories/lineagesettings"
	"github.com/Ramsey-B/willow/pkg/lineage"
)

// Defaults apply to tenants without stored settings.
type Defaults struct {
	SupportedZones []string
	// LineageClassifications nil keeps the handler's own list.
	LineageClassifications []string
}

// Resolver builds lineage.Caller values from stored tenant settings.
type Resolver struct {
	repo     lineagesettings.LineageSettingsRepository
	defaults Defaults
	logger   ectologger.Logger
}

func NewResolver(repo lineagesettings.LineageSettingsRepository, defaults Defaults, logger ectologger.Logger) *Resolver {
	return &Resolver{
		repo:     repo,
		defaults: defaults,
		logger:   logger,
	}
}

// Caller returns the caller for userID in tenantID. Stored zones replace the default zones and
// a stored classification list replaces the default list.
func (r *Resolver) Caller(ctx context.Context, tenantID string, userID string) (lineage.Caller, error) {
	caller := lineage.Caller{
		UserID:                 userID,
		SupportedZones:         r.defaults.SupportedZones,
		LineageClassifications: r.defaults.LineageClassifications,
	}
	if tenantID == "" || r.repo == nil {
		return caller, nil
	}

	stored, err := r.repo.Get(ctx, tenantID)
	if err != nil {
		return lineage.Caller{}, err
	}
	if stored == nil {
		r.logger.WithContext(ctx).WithField("tenant_id", tenantID).Debug("No lineage settings stored, using defaults")
		return caller, nil
	}

	caller.SupportedZones = stored.SupportedZones
	if stored.LineageClassifications != nil {
		caller.LineageClassifications = stored.LineageClassifications
	}
	return caller, nil
}
