package lineagesettings

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/willow/internal/repositories/lineagesettings"
	"github.com/Ramsey-B/willow/pkg/context"
	"github.com/Ramsey-B/willow/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler serves the settings of the calling tenant. The repository is resolved per request
// from the active dependency container.
type Handler struct {
	logger ectologger.Logger
}

// NewHandler creates a settings handler
func NewHandler(logger ectologger.Logger) *Handler {
	return &Handler{logger: logger}
}

// Register registers lineage settings routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.GetSettings)
	g.PUT("", h.UpdateSettings)
	g.DELETE("", h.DeleteSettings)
}

func repository(c echo.Context) (lineagesettings.LineageSettingsRepository, error) {
	_, repo, err := ectoinject.GetContext[lineagesettings.LineageSettingsRepository](c.Request().Context())
	if err != nil || repo == nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	return repo, nil
}

func tenantOf(c echo.Context) (string, error) {
	tenantID := context.GetTenantID(c.Request().Context())
	if tenantID == "" {
		return "", httperror.NewHTTPError(http.StatusBadRequest, "tenant id is required")
	}
	return tenantID, nil
}

// GetSettings returns the stored settings of the tenant
func (h *Handler) GetSettings(c echo.Context) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	repo, err := repository(c)
	if err != nil {
		return err
	}

	settings, err := repo.Get(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	if settings == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "no lineage settings stored for tenant")
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdateSettings replaces the tenant's settings
func (h *Handler) UpdateSettings(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}

	var req models.UpdateLineageSettingsRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	repo, err := repository(c)
	if err != nil {
		return err
	}
	settings, err := repo.Upsert(ctx, tenantID, context.GetUserID(ctx), req)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":       tenantID,
		"supported_zones": settings.SupportedZones,
	}).Info("Lineage settings updated")

	return c.JSON(http.StatusOK, settings)
}

// DeleteSettings drops the tenant's settings so the defaults apply again
func (h *Handler) DeleteSettings(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	repo, err := repository(c)
	if err != nil {
		return err
	}

	if err := repo.Delete(ctx, tenantID); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithField("tenant_id", tenantID).Info("Lineage settings deleted")
	return c.NoContent(http.StatusNoContent)
}
