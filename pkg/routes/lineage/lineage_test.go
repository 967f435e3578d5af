package lineage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/willow/pkg/container"
	lineagepkg "github.com/Ramsey-B/willow/pkg/lineage"
	"github.com/Ramsey-B/willow/pkg/middleware"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/redis"
)

type fakeCallers struct{}

func (fakeCallers) Caller(_ context.Context, _ string, userID string) (lineagepkg.Caller, error) {
	return lineagepkg.Caller{UserID: userID}, nil
}

type fakeServices struct {
	elements  map[string]*models.Element
	out       *models.LineageContext
	err       error
	syncCalls int
	lastType  models.AssetLineageEventType
}

func (f *fakeServices) EntityDetails(_ context.Context, _ string, guid string, _ string) (*models.Element, error) {
	return f.elements[guid], nil
}

func (f *fakeServices) BuildEntityContext(_ context.Context, _ lineagepkg.Caller, guid string, typeName string) (*models.LineageNode, error) {
	if f.elements[guid] == nil {
		return nil, lineagepkg.NewElementNotFoundError("BuildEntityContext", guid, typeName)
	}
	node := lineagepkg.PropertyConverter{}.ToLineageNode(f.elements[guid])
	return &node, nil
}

func (f *fakeServices) BuildAssetContext(context.Context, lineagepkg.Caller, models.LineageNode) (*models.LineageContext, error) {
	return f.out, f.err
}

func (f *fakeServices) BuildSchemaElementContext(context.Context, lineagepkg.Caller, *models.Element) (*models.LineageContext, error) {
	return f.out, f.err
}

func (f *fakeServices) BuildProcessContext(context.Context, lineagepkg.Caller, *models.Element) (*models.LineageContext, error) {
	return f.out, f.err
}

func (f *fakeServices) GetGlossaryTermDetails(_ context.Context, _ lineagepkg.Caller, guid string) (*models.Element, error) {
	if f.elements[guid] == nil {
		return nil, lineagepkg.NewElementNotFoundError("GetGlossaryTermDetails", guid, "GlossaryTerm")
	}
	return f.elements[guid], nil
}

func (f *fakeServices) BuildGlossaryTermContext(context.Context, lineagepkg.Caller, *models.Element) (map[string]*models.LineageContext, error) {
	return map[string]*models.LineageContext{lineagepkg.SemanticAssignments: f.out}, f.err
}

func (f *fakeServices) BuildClassificationContext(_ context.Context, _ lineagepkg.Caller, _ *models.Element, eventType models.AssetLineageEventType) (map[string]*models.LineageContext, error) {
	f.lastType = eventType
	return map[string]*models.LineageContext{eventType.EventName(): f.out}, f.err
}

func (f *fakeServices) PublishEntitiesUpdatedAfter(context.Context, lineagepkg.Caller, string, time.Time, lineagepkg.SyncPublisher) (int, error) {
	f.syncCalls++
	return 3, nil
}

type busyLocker struct{}

func (busyLocker) WithLock(context.Context, string, time.Duration, func() error) error {
	return redis.ErrLockNotAcquired
}

func newServer(t *testing.T, services *Services) *echo.Echo {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	c, err := container.New(uuid.NewString(), logger)
	require.NoError(t, err)
	if services != nil {
		require.NoError(t, container.Instance(c, services))
	}

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Inject(c.GetContainerID()))
	e.Use(middleware.Context())
	NewHandler(logger).Register(e.Group("/api/v1/lineage"))
	return e
}

func newTestServer(t *testing.T, fake *fakeServices, locker Locker) *echo.Echo {
	return newServer(t, &Services{
		Callers:         fakeCallers{},
		Elements:        fake,
		Converter:       lineagepkg.PropertyConverter{},
		Assets:          fake,
		Processes:       fake,
		Glossary:        fake,
		Classifications: fake,
		Sync:            fake,
		Locker:          locker,
	})
}

func do(e *echo.Echo, method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderTenantID, "tenant-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sampleContext() *models.LineageContext {
	return models.NewLineageContext(models.GraphEdge{
		RelationshipType: "AssetSchemaType",
		RelationshipGUID: "rel-1",
		From:             models.LineageNode{GUID: "topic", TypeName: "KafkaTopic"},
		To:               models.LineageNode{GUID: "schema", TypeName: "TabularSchemaType"},
	})
}

func TestContextRoutes(t *testing.T) {
	fake := &fakeServices{
		elements: map[string]*models.Element{
			"topic":   {GUID: "topic", TypeName: "KafkaTopic"},
			"column":  {GUID: "column", TypeName: "RelationalColumn"},
			"process": {GUID: "process", TypeName: "Process"},
			"term":    {GUID: "term", TypeName: "GlossaryTerm"},
		},
		out: sampleContext(),
	}
	e := newTestServer(t, fake, nil)

	tests := []struct {
		name string
		path string
		root string
		key  string
	}{
		{name: "asset", path: "/api/v1/lineage/assets/KafkaTopic/topic/context", root: "topic", key: "AssetContextEvent"},
		{name: "schema element", path: "/api/v1/lineage/schema-elements/RelationalColumn/column/context", root: "column", key: "ColumnContextEvent"},
		{name: "process", path: "/api/v1/lineage/processes/process/context", root: "process", key: "ProcessLineageEvent"},
		{name: "glossary term", path: "/api/v1/lineage/glossary-terms/term/context", root: "term", key: "SemanticAssignments"},
		{name: "classification", path: "/api/v1/lineage/entities/RelationalColumn/column/classification-context", root: "column", key: "ClassificationContextEvent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var body ContextResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.root, body.Root.GUID)
			require.Contains(t, body.Contexts, tt.key)
			assert.Equal(t, 1, body.Contexts[tt.key].Len())
		})
	}

	t.Run("classification event type from query", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/api/v1/lineage/entities/RelationalColumn/column/classification-context?event_type=DeclassifiedEntityEvent", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.DeclassifiedEntityEvent, fake.lastType)
	})

	t.Run("missing element is a 404", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/api/v1/lineage/schema-elements/RelationalColumn/nope/context", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("services missing from the container", func(t *testing.T) {
		rec := do(newServer(t, nil), http.MethodGet, "/api/v1/lineage/processes/process/context", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("not authorized is a 403", func(t *testing.T) {
		denied := &fakeServices{
			elements: fake.elements,
			err:      lineagepkg.NewNotAuthorizedError("BuildProcessContext", "process", []string{"landing"}),
		}
		rec := do(newTestServer(t, denied, nil), http.MethodGet, "/api/v1/lineage/processes/process/context", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestSyncRoute(t *testing.T) {
	t.Run("runs the sync", func(t *testing.T) {
		fake := &fakeServices{}
		rec := do(newTestServer(t, fake, nil), http.MethodPost, "/api/v1/lineage/sync",
			`{"entity_type":"RelationalTable","updated_after":"2024-01-01T00:00:00Z"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body SyncResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 3, body.Published)
		assert.Equal(t, 1, fake.syncCalls)
	})

	t.Run("validation", func(t *testing.T) {
		fake := &fakeServices{}
		rec := do(newTestServer(t, fake, nil), http.MethodPost, "/api/v1/lineage/sync", `{"entity_type":""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, fake.syncCalls)
	})

	t.Run("sync already running", func(t *testing.T) {
		fake := &fakeServices{}
		rec := do(newTestServer(t, fake, busyLocker{}), http.MethodPost, "/api/v1/lineage/sync",
			`{"entity_type":"RelationalTable","updated_after":"2024-01-01T00:00:00Z"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Zero(t, fake.syncCalls)
	})
}
