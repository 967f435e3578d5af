package lineage

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// SchemaContextSink receives the schema context of every element a glossary term is
// semantically assigned to.
type SchemaContextSink func(ctx context.Context, element *models.Element, schemaContext *models.LineageContext) error

// GlossaryContextBuilder builds the context of glossary terms.
type GlossaryContextBuilder struct {
	handler *Handler
	assets  *AssetContextBuilder
	sink    SchemaContextSink
	logger  ectologger.Logger
}

// NewGlossaryContextBuilder creates a builder. A nil sink discards assigned element contexts.
func NewGlossaryContextBuilder(handler *Handler, assets *AssetContextBuilder, sink SchemaContextSink, logger ectologger.Logger) *GlossaryContextBuilder {
	if sink == nil {
		sink = func(context.Context, *models.Element, *models.LineageContext) error { return nil }
	}
	return &GlossaryContextBuilder{
		handler: handler,
		assets:  assets,
		sink:    sink,
		logger:  logger,
	}
}

// GetGlossaryTermDetails fetches the glossary term guid.
func (b *GlossaryContextBuilder) GetGlossaryTermDetails(ctx context.Context, caller Caller, guid string) (*models.Element, error) {
	if guid == "" {
		return nil, NewInvalidParameterError("GetGlossaryTermDetails", "guid")
	}
	term, err := b.handler.EntityDetails(ctx, caller.UserID, guid, GlossaryTerm)
	if err != nil {
		return nil, err
	}
	if term == nil {
		return nil, NewElementNotFoundError("GetGlossaryTermDetails", guid, GlossaryTerm)
	}
	return term, nil
}

// HasGlossaryTermLineageRelationships reports whether term is semantically assigned to anything.
func (b *GlossaryContextBuilder) HasGlossaryTermLineageRelationships(ctx context.Context, caller Caller, term *models.Element) (bool, error) {
	if term == nil || term.GUID == "" {
		return false, NewInvalidParameterError("HasGlossaryTermLineageRelationships", "guid")
	}
	relationships, err := b.handler.RelationshipsByType(ctx, caller.UserID, term.GUID, SemanticAssignment, term.TypeName)
	if err != nil {
		return false, err
	}
	return len(relationships) > 0, nil
}

// BuildGlossaryTermContext returns the term's contexts keyed by SemanticAssignments,
// TermCategorizations, TermAnchors, CategoryAnchors and ClassificationContext. Keys with no
// edges are left out.
func (b *GlossaryContextBuilder) BuildGlossaryTermContext(ctx context.Context, caller Caller, term *models.Element) (out map[string]*models.LineageContext, err error) {
	if term == nil || term.GUID == "" {
		return nil, NewInvalidParameterError("BuildGlossaryTermContext", "guid")
	}
	ctx, span := tracing.StartElementSpan(ctx, "lineage.GlossaryContextBuilder.BuildGlossaryTermContext", term.GUID, term.TypeName)
	defer span.End()

	defer func(start time.Time) {
		all := models.NewLineageContext()
		for _, c := range out {
			all.Merge(c)
		}
		observeBuild("glossary_term", start, all, err)
	}(time.Now())

	h := b.handler
	out = map[string]*models.LineageContext{}
	put := func(key string, c *models.LineageContext) {
		if !c.IsEmpty() {
			out[key] = c
		}
	}

	assigned, assignments, err := h.RelatedElements(ctx, caller.UserID, term, SemanticAssignment)
	if err != nil {
		return nil, err
	}
	put(SemanticAssignments, assignments)
	for _, element := range assigned {
		if err := b.publishSchemaContext(ctx, caller, element); err != nil {
			return nil, err
		}
	}

	categories, categorizations, err := h.RelatedElements(ctx, caller.UserID, term, TermCategorization)
	if err != nil {
		return nil, err
	}
	put(TermCategorizations, categorizations)

	_, anchors, err := h.ExtendContext(ctx, caller.UserID, term, TermAnchor)
	if err != nil {
		return nil, err
	}
	put(TermAnchors, anchors)

	categoryAnchors := models.NewLineageContext()
	for _, category := range categories {
		_, edges, err := h.ExtendContext(ctx, caller.UserID, category, CategoryAnchor)
		if err != nil {
			return nil, err
		}
		categoryAnchors.Merge(edges)
	}
	put(CategoryAnchors, categoryAnchors)

	put(ClassificationContext, h.BuildClassificationContext(term, caller.classificationFilter()))

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"guid":     term.GUID,
		"keys":     len(out),
		"assigned": len(assigned),
	}).Info("Built glossary term context")
	return out, nil
}

func (b *GlossaryContextBuilder) publishSchemaContext(ctx context.Context, caller Caller, element *models.Element) error {
	schemaContext, err := b.assets.BuildSchemaElementContext(ctx, caller, element)
	if err != nil {
		return err
	}
	return b.sink(ctx, element, schemaContext)
}
