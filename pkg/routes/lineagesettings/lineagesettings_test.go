package lineagesettings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/willow/internal/repositories/lineagesettings"
	"github.com/Ramsey-B/willow/pkg/container"
	"github.com/Ramsey-B/willow/pkg/middleware"
	"github.com/Ramsey-B/willow/pkg/models"
)

type fakeRepo struct {
	stored map[string]*models.LineageSettings
}

func (f *fakeRepo) Get(_ context.Context, tenantID string) (*models.LineageSettings, error) {
	return f.stored[tenantID], nil
}

func (f *fakeRepo) Upsert(_ context.Context, tenantID string, userID string, req models.UpdateLineageSettingsRequest) (*models.LineageSettings, error) {
	s := &models.LineageSettings{
		TenantID:               tenantID,
		SupportedZones:         req.SupportedZones,
		LineageClassifications: req.LineageClassifications,
		UpdatedBy:              userID,
	}
	f.stored[tenantID] = s
	return s, nil
}

func (f *fakeRepo) Delete(_ context.Context, tenantID string) error {
	delete(f.stored, tenantID)
	return nil
}

func newServer(t *testing.T, repo *fakeRepo) *echo.Echo {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	c, err := container.New(uuid.NewString(), logger)
	require.NoError(t, err)
	if repo != nil {
		require.NoError(t, container.Instance[lineagesettings.LineageSettingsRepository](c, repo))
	}

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Inject(c.GetContainerID()))
	e.Use(middleware.Context())
	NewHandler(logger).Register(e.Group("/api/v1/lineage-settings"))
	return e
}

func do(e *echo.Echo, method string, tenantID string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/lineage-settings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tenantID != "" {
		req.Header.Set(middleware.HeaderTenantID, tenantID)
	}
	req.Header.Set(middleware.HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSettingsRoutes(t *testing.T) {
	t.Run("not stored is a 404", func(t *testing.T) {
		e := newServer(t, &fakeRepo{stored: map[string]*models.LineageSettings{}})
		assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "tenant-1", "").Code)
	})

	t.Run("repository missing from the container", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, do(newServer(t, nil), http.MethodGet, "tenant-1", "").Code)
	})

	t.Run("missing tenant", func(t *testing.T) {
		e := newServer(t, &fakeRepo{stored: map[string]*models.LineageSettings{}})
		assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "", "").Code)
	})

	t.Run("update then read", func(t *testing.T) {
		repo := &fakeRepo{stored: map[string]*models.LineageSettings{}}
		e := newServer(t, repo)

		rec := do(e, http.MethodPut, "tenant-1", `{"supported_zones":["landing","raw"]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = do(e, http.MethodGet, "tenant-1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var got models.LineageSettings
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, []string{"landing", "raw"}, got.SupportedZones)
		assert.Nil(t, got.LineageClassifications)
		assert.Equal(t, "user-1", got.UpdatedBy)
	})

	t.Run("blank zone is rejected", func(t *testing.T) {
		repo := &fakeRepo{stored: map[string]*models.LineageSettings{}}
		rec := do(newServer(t, repo), http.MethodPut, "tenant-1", `{"supported_zones":[""]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, repo.stored)
	})

	t.Run("delete", func(t *testing.T) {
		repo := &fakeRepo{stored: map[string]*models.LineageSettings{"tenant-1": {TenantID: "tenant-1"}}}
		rec := do(newServer(t, repo), http.MethodDelete, "tenant-1", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, repo.stored)
	})
}
