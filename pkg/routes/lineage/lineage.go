package lineage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/willow/pkg/context"
	lineagepkg "github.com/Ramsey-B/willow/pkg/lineage"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/redis"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CallerResolver supplies the caller a tenant's builds run as.
type CallerResolver interface {
	Caller(ctx context.Context, tenantID string, userID string) (lineagepkg.Caller, error)
}

type ElementReader interface {
	EntityDetails(ctx context.Context, userID string, guid string, entityType string) (*models.Element, error)
}

type AssetBuilder interface {
	BuildEntityContext(ctx context.Context, caller lineagepkg.Caller, guid string, typeName string) (*models.LineageNode, error)
	BuildAssetContext(ctx context.Context, caller lineagepkg.Caller, node models.LineageNode) (*models.LineageContext, error)
	BuildSchemaElementContext(ctx context.Context, caller lineagepkg.Caller, element *models.Element) (*models.LineageContext, error)
}

type ProcessBuilder interface {
	BuildProcessContext(ctx context.Context, caller lineagepkg.Caller, process *models.Element) (*models.LineageContext, error)
}

type GlossaryBuilder interface {
	GetGlossaryTermDetails(ctx context.Context, caller lineagepkg.Caller, guid string) (*models.Element, error)
	BuildGlossaryTermContext(ctx context.Context, caller lineagepkg.Caller, term *models.Element) (map[string]*models.LineageContext, error)
}

type ClassificationBuilder interface {
	BuildClassificationContext(ctx context.Context, caller lineagepkg.Caller, element *models.Element, eventType models.AssetLineageEventType) (map[string]*models.LineageContext, error)
}

type Syncer interface {
	PublishEntitiesUpdatedAfter(ctx context.Context, caller lineagepkg.Caller, entityType string, updatedAfter time.Time, publish lineagepkg.SyncPublisher) (int, error)
}

// Locker serializes syncs of the same tenant and entity type across replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// Services are the collaborators of the lineage routes.
type Services struct {
	Callers         CallerResolver
	Elements        ElementReader
	Converter       lineagepkg.NodeConverter
	Assets          AssetBuilder
	Processes       ProcessBuilder
	Glossary        GlossaryBuilder
	Classifications ClassificationBuilder
	Sync            Syncer
	SyncPublisher   lineagepkg.SyncPublisher
	Locker          Locker
	SyncLockTTL     time.Duration
}

// Handler handles lineage API endpoints. Its collaborators are resolved per request from the
// active dependency container as a *Services.
type Handler struct {
	logger ectologger.Logger
}

// NewHandler creates a new lineage handler
func NewHandler(logger ectologger.Logger) *Handler {
	return &Handler{logger: logger}
}

// Register registers the lineage routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/assets/:typeName/:guid/context", h.GetAssetContext)
	g.GET("/schema-elements/:typeName/:guid/context", h.GetSchemaElementContext)
	g.GET("/processes/:guid/context", h.GetProcessContext)
	g.GET("/glossary-terms/:guid/context", h.GetGlossaryTermContext)
	g.GET("/entities/:typeName/:guid/classification-context", h.GetClassificationContext)
	g.POST("/sync", h.Sync)
}

// ContextResponse is the body of every context endpoint
type ContextResponse struct {
	Root     models.LineageNode                `json:"root"`
	Contexts map[string]*models.LineageContext `json:"contexts"`
}

// SyncRequest is the request body for a lineage sync
type SyncRequest struct {
	EntityType   string    `json:"entity_type" validate:"required"`
	UpdatedAfter time.Time `json:"updated_after" validate:"required"`
}

// SyncResponse reports how many contexts a sync published
type SyncResponse struct {
	EntityType string `json:"entity_type"`
	Published  int    `json:"published"`
}

// prepare resolves the services and the request's caller.
func (h *Handler) prepare(c echo.Context) (context.Context, *Services, lineagepkg.Caller, error) {
	ctx, svc, err := ectoinject.GetContext[*Services](c.Request().Context())
	if err != nil || svc == nil {
		return ctx, nil, lineagepkg.Caller{}, httperror.NewHTTPError(http.StatusServiceUnavailable, "lineage services unavailable")
	}
	caller, err := svc.Callers.Caller(ctx, appctx.GetTenantID(ctx), appctx.GetUserID(ctx))
	if err != nil {
		return ctx, nil, lineagepkg.Caller{}, err
	}
	return ctx, svc, caller, nil
}

func (h *Handler) element(ctx context.Context, svc *Services, caller lineagepkg.Caller, method string, guid string, typeName string) (*models.Element, error) {
	element, err := svc.Elements.EntityDetails(ctx, caller.UserID, guid, typeName)
	if err != nil {
		return nil, err
	}
	if element == nil {
		return nil, lineagepkg.NewElementNotFoundError(method, guid, typeName)
	}
	return element, nil
}

func single(eventType models.AssetLineageEventType, out *models.LineageContext) map[string]*models.LineageContext {
	return map[string]*models.LineageContext{eventType.EventName(): out}
}

// GetAssetContext builds the asset context of an element
func (h *Handler) GetAssetContext(c echo.Context) error {
	ctx, svc, caller, err := h.prepare(c)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, "lineage_handler.GetAssetContext")
	defer span.End()

	root, err := svc.Assets.BuildEntityContext(ctx, caller, c.Param("guid"), c.Param("typeName"))
	if err != nil {
		return err
	}
	out, err := svc.Assets.BuildAssetContext(ctx, caller, *root)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ContextResponse{Root: *root, Contexts: single(models.AssetContextEvent, out)})
}

// GetSchemaElementContext builds the context of a column
func (h *Handler) GetSchemaElementContext(c echo.Context) error {
	ctx, svc, caller, err := h.prepare(c)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, "lineage_handler.GetSchemaElementContext")
	defer span.End()

	element, err := h.element(ctx, svc, caller, "GetSchemaElementContext", c.Param("guid"), c.Param("typeName"))
	if err != nil {
		return err
	}
	out, err := svc.Assets.BuildSchemaElementContext(ctx, caller, element)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ContextResponse{
		Root:     svc.Converter.ToLineageNode(element),
		Contexts: single(models.ColumnContextEvent, out),
	})
}

// GetProcessContext builds the context of a process
func (h *Handler) GetProcessContext(c echo.Context) error {
	ctx, svc, caller, err := h.prepare(c)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, "lineage_handler.GetProcessContext")
	defer span.End()

	process, err := h.element(ctx, svc, caller, "GetProcessContext", c.Param("guid"), "")
	if err != nil {
		return err
	}
	out, err := svc.Processes.BuildProcessContext(ctx, caller, process)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ContextResponse{
		Root:     svc.Converter.ToLineageNode(process),
		Contexts: single(models.ProcessContextEvent, out),
	})
}

// GetGlossaryTermContext builds the contexts of a glossary term
func (h *Handler) GetGlossaryTermContext(c echo.Context) error {
	ctx, svc, caller, err := h.prepare(c)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, "lineage_handler.GetGlossaryTermContext")
	defer span.End()

	term, err := svc.Glossary.GetGlossaryTermDetails(ctx, caller, c.Param("guid"))
	if err != nil {
		return err
	}
	contexts, err := svc.Glossary.BuildGlossaryTermContext(ctx, caller, term)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ContextResponse{Root: svc.Converter.ToLineageNode(term), Contexts: contexts})
}

// GetClassificationContext builds the classification context of an element. The event_type
// query parameter selects the key, ClassificationContextEvent by default.
func (h *Handler) GetClassificationContext(c echo.Context) error {
	ctx, svc, caller, err := h.prepare(c)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, "lineage_handler.GetClassificationContext")
	defer span.End()

	eventType := models.ClassificationContextEvent
	if raw := c.QueryParam("event_type"); raw != "" {
		eventType = models.AssetLineageEventType(raw)
	}

	element, err := h.element(ctx, svc, caller, "GetClassificationContext", c.Param("guid"), c.Param("typeName"))
	if err != nil {
		return err
	}
	contexts, err := svc.Classifications.BuildClassificationContext(ctx, caller, element, eventType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ContextResponse{Root: svc.Converter.ToLineageNode(element), Contexts: contexts})
}

// Sync republishes the lineage of every entity of a type updated after a point in time. Only
// one sync per tenant and entity type runs at a time.
func (h *Handler) Sync(c echo.Context) error {
	ctx, svc, caller, err := h.prepare(c)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, "lineage_handler.Sync")
	defer span.End()

	var req SyncRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var published int
	run := func() error {
		n, err := svc.Sync.PublishEntitiesUpdatedAfter(ctx, caller, req.EntityType, req.UpdatedAfter, svc.SyncPublisher)
		published = n
		return err
	}

	if svc.Locker != nil {
		key := "sync:" + appctx.GetTenantID(ctx) + ":" + req.EntityType
		err = svc.Locker.WithLock(ctx, key, svc.SyncLockTTL, run)
		if errors.Is(err, redis.ErrLockNotAcquired) {
			return httperror.NewHTTPErrorf(http.StatusConflict, "a sync of %s is already running", req.EntityType)
		}
	} else {
		err = run()
	}
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_type":   req.EntityType,
		"updated_after": req.UpdatedAfter,
		"published":     published,
	}).Info("Lineage sync completed")

	return c.JSON(http.StatusOK, SyncResponse{EntityType: req.EntityType, Published: published})
}
