package lineage

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// ContextFunc builds the context of one element.
type ContextFunc func(ctx context.Context, caller Caller, element *models.Element) (*models.LineageContext, error)

// assetStrategy applies when the element's type is SuperType or one of its subtypes.
type assetStrategy struct {
	SuperType string
	Build     ContextFunc
}

// AssetContextBuilder builds the structural context of assets and schema elements.
type AssetContextBuilder struct {
	handler *Handler
	logger  ectologger.Logger

	// checked in order; the first matching supertype wins
	assetStrategies  []assetStrategy
	schemaStrategies map[string]ContextFunc
}

// NewAssetContextBuilder creates a builder with the table, data store and topic strategies and
// the tabular file column, relational column and tabular column strategies registered.
func NewAssetContextBuilder(handler *Handler, logger ectologger.Logger) *AssetContextBuilder {
	b := &AssetContextBuilder{
		handler:          handler,
		logger:           logger,
		schemaStrategies: map[string]ContextFunc{},
	}

	b.RegisterAssetStrategy(RelationalTable, b.relationalTableContext)
	b.RegisterAssetStrategy(DataStore, b.dataStoreContext)
	b.RegisterAssetStrategy(Topic, b.topicContext)

	b.RegisterSchemaElementStrategy(TabularFileColumn, b.tabularFileColumnContext)
	b.RegisterSchemaElementStrategy(RelationalColumn, b.relationalColumnContext)
	b.RegisterSchemaElementStrategy(TabularColumn, b.tabularColumnContext)
	return b
}

// RegisterAssetStrategy adds a strategy for assets of superType, checked after those already
// registered.
func (b *AssetContextBuilder) RegisterAssetStrategy(superType string, build ContextFunc) {
	b.assetStrategies = append(b.assetStrategies, assetStrategy{SuperType: superType, Build: build})
}

// RegisterSchemaElementStrategy sets the strategy for schema elements of exactly typeName.
func (b *AssetContextBuilder) RegisterSchemaElementStrategy(typeName string, build ContextFunc) {
	b.schemaStrategies[typeName] = build
}

// BuildAssetContext re-reads the asset behind node, checks its zone and walks the context for
// its kind. Kinds without a strategy yield an empty context.
func (b *AssetContextBuilder) BuildAssetContext(ctx context.Context, caller Caller, node models.LineageNode) (out *models.LineageContext, err error) {
	ctx, span := tracing.StartElementSpan(ctx, "lineage.AssetContextBuilder.BuildAssetContext", node.GUID, node.TypeName)
	defer span.End()
	defer func(start time.Time) { observeBuild("asset", start, out, err) }(time.Now())

	if node.GUID == "" {
		return nil, NewInvalidParameterError("BuildAssetContext", "guid")
	}

	element, err := b.handler.EntityDetails(ctx, caller.UserID, node.GUID, node.TypeName)
	if err != nil {
		return nil, err
	}
	if element == nil {
		return nil, NewElementNotFoundError("BuildAssetContext", node.GUID, node.TypeName)
	}
	if err := b.handler.ValidateZone(element, caller.SupportedZones); err != nil {
		return nil, err
	}

	for _, strategy := range b.assetStrategies {
		ok, err := b.handler.IsTypeOf(ctx, element.TypeName, strategy.SuperType)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		out, err = strategy.Build(ctx, caller, element)
		if err != nil {
			return nil, err
		}
		b.logger.WithContext(ctx).WithFields(map[string]any{
			"guid":      element.GUID,
			"type_name": element.TypeName,
			"strategy":  strategy.SuperType,
			"edges":     out.Len(),
		}).Info("Built asset context")
		return out, nil
	}

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"guid":      element.GUID,
		"type_name": element.TypeName,
	}).Debug("No asset context strategy for type")
	return models.NewLineageContext(), nil
}

// BuildSchemaElementContext checks the element's zone and walks the context for its exact type.
// Types without a strategy yield an empty context.
func (b *AssetContextBuilder) BuildSchemaElementContext(ctx context.Context, caller Caller, element *models.Element) (out *models.LineageContext, err error) {
	if element == nil {
		return nil, NewInvalidParameterError("BuildSchemaElementContext", "element")
	}
	ctx, span := tracing.StartElementSpan(ctx, "lineage.AssetContextBuilder.BuildSchemaElementContext", element.GUID, element.TypeName)
	defer span.End()
	defer func(start time.Time) { observeBuild("schema_element", start, out, err) }(time.Now())

	if err := b.handler.ValidateZone(element, caller.SupportedZones); err != nil {
		return nil, err
	}

	build, ok := b.schemaStrategies[element.TypeName]
	if !ok {
		return models.NewLineageContext(), nil
	}
	return build(ctx, caller, element)
}

// BuildEntityContext returns the lineage node of one element without walking anything.
func (b *AssetContextBuilder) BuildEntityContext(ctx context.Context, caller Caller, guid string, typeName string) (*models.LineageNode, error) {
	if guid == "" {
		return nil, NewInvalidParameterError("BuildEntityContext", "guid")
	}
	element, err := b.handler.EntityDetails(ctx, caller.UserID, guid, typeName)
	if err != nil {
		return nil, err
	}
	if element == nil {
		return nil, NewElementNotFoundError("BuildEntityContext", guid, typeName)
	}
	node := b.handler.Converter().ToLineageNode(element)
	return &node, nil
}

// relational table -> schema type -> deployed schema -> database -> connection -> endpoint
func (b *AssetContextBuilder) relationalTableContext(ctx context.Context, caller Caller, element *models.Element) (*models.LineageContext, error) {
	out, _, err := Chain(ctx, caller.UserID, element, b.handler.FollowAll(
		AttributeForSchema,
		AssetSchemaType,
		DataContentForDataSet,
		ConnectionToAsset,
		ConnectionEndpoint,
	)...)
	return out, err
}

// The connection branch and the nested file branch do not depend on each other.
func (b *AssetContextBuilder) dataStoreContext(ctx context.Context, caller Caller, element *models.Element) (*models.LineageContext, error) {
	branches := [][]Hop{
		b.handler.FollowAll(ConnectionToAsset, ConnectionEndpoint),
		b.handler.FollowAll(NestedFile),
	}

	results := make([]*models.LineageContext, len(branches))
	g, gctx := errgroup.WithContext(ctx)
	for i, hops := range branches {
		g.Go(func() error {
			edges, _, err := Chain(gctx, caller.UserID, element, hops...)
			if err != nil {
				return err
			}
			results[i] = edges
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return models.Union(results...), nil
}

func (b *AssetContextBuilder) topicContext(ctx context.Context, caller Caller, element *models.Element) (*models.LineageContext, error) {
	_, edges, err := b.handler.ExtendContext(ctx, caller.UserID, element, AssetSchemaType)
	return edges, err
}

func (b *AssetContextBuilder) tabularFileColumnContext(ctx context.Context, caller Caller, element *models.Element) (*models.LineageContext, error) {
	out, _, err := Chain(ctx, caller.UserID, element, b.handler.FollowAll(AttributeForSchema, AssetSchemaType)...)
	return out, err
}

func (b *AssetContextBuilder) relationalColumnContext(ctx context.Context, caller Caller, element *models.Element) (*models.LineageContext, error) {
	_, edges, err := b.handler.ExtendContext(ctx, caller.UserID, element, NestedSchemaAttribute)
	return edges, err
}

// A tabular column whose schema type is anchored to a port implementation belongs to a process
// port, so the walk stops at the schema type.
func (b *AssetContextBuilder) tabularColumnContext(ctx context.Context, caller Caller, element *models.Element) (*models.LineageContext, error) {
	h := b.handler

	rel, err := h.UniqueRelationshipByType(ctx, caller.UserID, element.GUID, AttributeForSchema, element.TypeName)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return models.NewLineageContext(), nil
	}

	out, err := h.BuildContext(ctx, caller.UserID, element.GUID, []models.Relationship{*rel})
	if err != nil {
		return nil, err
	}
	schemaType, err := h.EntityAtOtherEnd(ctx, caller.UserID, element.GUID, *rel)
	if err != nil {
		return nil, err
	}
	if schemaType == nil {
		return out, nil
	}

	internal, err := b.anchoredToPortImplementation(ctx, caller, rel, schemaType)
	if err != nil {
		return nil, err
	}
	if internal {
		b.logger.WithContext(ctx).WithFields(map[string]any{
			"guid":             element.GUID,
			"schema_type_guid": schemaType.GUID,
		}).Debug("Column belongs to a port implementation, stopping at schema type")
		return out, nil
	}

	_, edges, err := h.ExtendContext(ctx, caller.UserID, schemaType, AssetSchemaType)
	if err != nil {
		return nil, err
	}
	return out.Merge(edges), nil
}

// anchoredToPortImplementation reads the Anchors classification from the attribute-for-schema
// relationship, falling back to the schema type itself.
func (b *AssetContextBuilder) anchoredToPortImplementation(ctx context.Context, caller Caller, rel *models.Relationship, schemaType *models.Element) (bool, error) {
	anchors := rel.Classification(Anchors)
	if anchors == nil {
		anchors = schemaType.Classification(Anchors)
	}
	if anchors == nil {
		return false, nil
	}

	anchorGUID, _ := anchors.Properties[AnchorGUIDProp].(string)
	if anchorGUID == "" {
		return false, nil
	}

	anchorType, _ := anchors.Properties[AnchorTypeNameProp].(string)
	if anchorType == "" {
		anchor, err := b.handler.EntityDetails(ctx, caller.UserID, anchorGUID, "")
		if err != nil {
			return false, err
		}
		if anchor == nil {
			return false, nil
		}
		anchorType = anchor.TypeName
	}

	return b.handler.IsTypeOf(ctx, anchorType, PortImplementation)
}
