package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestChecker(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		e := echo.New()
		c := NewChecker("1.0.0", 0)
		c.AddCheck("graph", func(context.Context) error { return nil })
		c.RegisterRoutes(e)

		rec := get(e, "/api/v1/health")
		require.Equal(t, http.StatusOK, rec.Code)
		var body HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, "healthy", body.Checks["graph"].Status)
	})

	t.Run("one failing check", func(t *testing.T) {
		e := echo.New()
		c := NewChecker("1.0.0", 0)
		c.AddCheck("graph", func(context.Context) error { return nil })
		c.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
		c.RegisterRoutes(e)

		rec := get(e, "/api/v1/health")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "connection refused", body.Checks["redis"].Message)
	})

	t.Run("readiness", func(t *testing.T) {
		e := echo.New()
		c := NewChecker("1.0.0", 0)
		c.RegisterRoutes(e)

		assert.Equal(t, http.StatusServiceUnavailable, get(e, "/api/v1/health/ready").Code)
		c.SetReady(true)
		assert.Equal(t, http.StatusOK, get(e, "/api/v1/health/ready").Code)
		assert.Equal(t, http.StatusOK, get(e, "/api/v1/health/live").Code)
	})
}

func TestChecker_Optional(t *testing.T) {
	e := echo.New()
	c := NewChecker("1.0.0", 0)
	c.AddCheck("graph", func(context.Context) error { return nil })
	c.AddOptionalCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	c.RegisterRoutes(e)

	rec := get(e, "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "degraded", body.Checks["redis"].Status)
}
