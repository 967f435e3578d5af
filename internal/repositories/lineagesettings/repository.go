package lineagesettings

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/database"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// LineageSettingsRepository defines the interface for per-tenant lineage settings
type LineageSettingsRepository interface {
	Get(ctx context.Context, tenantID string) (*models.LineageSettings, error)
	Upsert(ctx context.Context, tenantID string, userID string, req models.UpdateLineageSettingsRequest) (*models.LineageSettings, error)
	Delete(ctx context.Context, tenantID string) error
}

// Repository implements LineageSettingsRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new lineage settings repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "lineage_settings"

var columns = []string{"tenant_id", "supported_zones", "lineage_classifications", "updated_by", "created_at", "updated_at"}

type row struct {
	TenantID               string                   `db:"tenant_id"`
	SupportedZones         database.JSONB[[]string] `db:"supported_zones"`
	LineageClassifications database.JSONB[[]string] `db:"lineage_classifications"`
	UpdatedBy              string                   `db:"updated_by"`
	CreatedAt              time.Time                `db:"created_at"`
	UpdatedAt              time.Time                `db:"updated_at"`
}

func (r row) toModel() *models.LineageSettings {
	return &models.LineageSettings{
		TenantID:               r.TenantID,
		SupportedZones:         r.SupportedZones.Data,
		LineageClassifications: r.LineageClassifications.Data,
		UpdatedBy:              r.UpdatedBy,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

// Get returns the tenant's settings, or nil when none are stored
func (r *Repository) Get(ctx context.Context, tenantID string) (*models.LineageSettings, error) {
	ctx, span := tracing.StartSpan(ctx, "LineageSettingsRepository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("tenant_id", tenantID))

	query, args := sb.Build()

	var out row
	if err := r.db.GetContext(ctx, &out, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("failed to get lineage settings")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get lineage settings: %s", err.Error())
	}

	return out.toModel(), nil
}

// Upsert replaces the tenant's settings. A nil LineageClassifications is stored as NULL so the
// service default keeps applying.
func (r *Repository) Upsert(ctx context.Context, tenantID string, userID string, req models.UpdateLineageSettingsRequest) (*models.LineageSettings, error) {
	ctx, span := tracing.StartSpan(ctx, "LineageSettingsRepository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	zones := req.SupportedZones
	if zones == nil {
		zones = []string{}
	}
	var classifications any
	if req.LineageClassifications != nil {
		classifications = database.NewJSONB(req.LineageClassifications)
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(tableName)
	ib.Cols(columns...)
	ib.Values(tenantID, database.NewJSONB(zones), classifications, userID, now, now)
	ib.OnConflict([]string{"tenant_id"}, "supported_zones", "lineage_classifications", "updated_by", "updated_at")

	query, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("failed to upsert lineage settings")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to save lineage settings: %s", err.Error())
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"zones":     len(zones),
	}).Info("saved lineage settings")

	return r.Get(ctx, tenantID)
}

// Delete removes the tenant's settings, reverting it to the service defaults
func (r *Repository) Delete(ctx context.Context, tenantID string) error {
	ctx, span := tracing.StartSpan(ctx, "LineageSettingsRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(tableName)
	db.Where(db.Equal("tenant_id", tenantID))

	query, args := db.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("failed to delete lineage settings")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete lineage settings: %s", err.Error())
	}
	return nil
}
