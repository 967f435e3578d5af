// Package lineage builds lineage context graphs by walking typed relationships outward from a
// metadata element. Builds are one-shot reads of the repository: nothing is persisted, retried
// or cached beyond the type hierarchy.
package lineage

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/metrics"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// RepositoryClient is the part of the metadata repository the builders read from.
// GetEntity returns nil, nil when the element does not exist. An empty typeName matches any type.
type RepositoryClient interface {
	GetEntity(ctx context.Context, userID string, guid string, typeName string) (*models.Element, error)
	GetRelationships(ctx context.Context, userID string, guid string, entityTypeName string, relationshipTypeName string) ([]models.Relationship, error)
	FindEntities(ctx context.Context, userID string, typeNames []string, criteria models.SearchCriteria, params models.SearchParams) ([]models.Element, error)
}

// ClassificationFilter reports whether a classification is lineage-significant.
type ClassificationFilter func(classificationName string) bool

// DefaultLineageClassifications are the classifications published when no tenant list is set.
var DefaultLineageClassifications = []string{
	AssetZoneMembership,
	"Confidentiality",
	"Confidence",
	"Criticality",
	"Impact",
	"Retention",
	"SubjectArea",
	"Ownership",
}

// NewClassificationFilter accepts exactly the named classifications.
func NewClassificationFilter(names []string) ClassificationFilter {
	allowed := append([]string(nil), names...)
	return func(classificationName string) bool {
		return ectolinq.Contains(allowed, classificationName)
	}
}

// Config holds the handler settings
type Config struct {
	// MaxPageSize bounds FindEntitiesByType.
	MaxPageSize            int
	LineageClassifications []string
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		MaxPageSize:            500,
		LineageClassifications: DefaultLineageClassifications,
	}
}

// Handler holds the graph primitives every builder is composed from.
type Handler struct {
	repo      RepositoryClient
	hierarchy *TypeHierarchy
	converter NodeConverter
	relevant  ClassificationFilter
	config    Config
	logger    ectologger.Logger
}

// NewHandler creates a handler over repo. A nil converter selects PropertyConverter.
func NewHandler(repo RepositoryClient, hierarchy *TypeHierarchy, converter NodeConverter, cfg Config, logger ectologger.Logger) *Handler {
	if converter == nil {
		converter = PropertyConverter{}
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = DefaultConfig().MaxPageSize
	}
	if cfg.LineageClassifications == nil {
		cfg.LineageClassifications = DefaultLineageClassifications
	}
	return &Handler{
		repo:      repo,
		hierarchy: hierarchy,
		converter: converter,
		relevant:  NewClassificationFilter(cfg.LineageClassifications),
		config:    cfg,
		logger:    logger,
	}
}

// Converter returns the node converter in use.
func (h *Handler) Converter() NodeConverter {
	return h.converter
}

// RelationshipsByType returns every relationshipType relationship of the element. It never
// returns an error for an empty result.
func (h *Handler) RelationshipsByType(ctx context.Context, userID string, guid string, relationshipType string, entityType string) ([]models.Relationship, error) {
	ctx, span := tracing.StartElementSpan(ctx, "lineage.Handler.RelationshipsByType", guid, entityType)
	defer span.End()

	if guid == "" {
		return nil, NewInvalidParameterError("RelationshipsByType", "guid")
	}

	metrics.RelationshipLookupsTotal.WithLabelValues(relationshipType).Inc()
	relationships, err := h.repo.GetRelationships(ctx, userID, guid, entityType, relationshipType)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"guid":              guid,
			"relationship_type": relationshipType,
		}).Error("Failed to get relationships")
		return nil, err
	}
	if relationships == nil {
		relationships = []models.Relationship{}
	}
	return relationships, nil
}

// UniqueRelationshipByType returns the only relationshipType relationship of the element, nil
// when there is none, and a MultipleRelationshipsFound error when there are several.
func (h *Handler) UniqueRelationshipByType(ctx context.Context, userID string, guid string, relationshipType string, entityType string) (*models.Relationship, error) {
	relationships, err := h.RelationshipsByType(ctx, userID, guid, relationshipType, entityType)
	if err != nil {
		return nil, err
	}
	switch len(relationships) {
	case 0:
		return nil, nil
	case 1:
		return &relationships[0], nil
	default:
		return nil, NewMultipleRelationshipsFoundError("UniqueRelationshipByType", guid, relationshipType, len(relationships))
	}
}

// TypeGUID resolves a type name to the repository's type identifier.
func (h *Handler) TypeGUID(ctx context.Context, typeName string) (string, error) {
	if typeName == "" {
		return "", NewInvalidParameterError("TypeGUID", "typeName")
	}
	td, ok, err := h.hierarchy.TypeDef(ctx, typeName)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", NewInvalidParameterError("TypeGUID", "typeName:"+typeName)
	}
	return td.GUID, nil
}

// IsTypeOf reports whether typeName is candidateSuperType or one of its subtypes.
func (h *Handler) IsTypeOf(ctx context.Context, typeName string, candidateSuperType string) (bool, error) {
	return h.hierarchy.IsTypeOf(ctx, typeName, candidateSuperType)
}

// EntityDetails fetches the element. It returns nil, nil when it does not exist.
func (h *Handler) EntityDetails(ctx context.Context, userID string, guid string, entityType string) (*models.Element, error) {
	ctx, span := tracing.StartElementSpan(ctx, "lineage.Handler.EntityDetails", guid, entityType)
	defer span.End()

	if guid == "" {
		return nil, NewInvalidParameterError("EntityDetails", "guid")
	}

	metrics.EntityLookupsTotal.Inc()
	element, err := h.repo.GetEntity(ctx, userID, guid, entityType)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"guid":      guid,
			"type_name": entityType,
		}).Error("Failed to get entity")
		return nil, err
	}
	return element, nil
}

// EntityAtOtherEnd returns the end of relationship whose guid is not originGUID.
func (h *Handler) EntityAtOtherEnd(ctx context.Context, userID string, originGUID string, relationship models.Relationship) (*models.Element, error) {
	var far models.EntityProxy
	switch originGUID {
	case relationship.EntityOne.GUID:
		far = relationship.EntityTwo
	case relationship.EntityTwo.GUID:
		far = relationship.EntityOne
	default:
		return nil, NewEndpointMismatchError("EntityAtOtherEnd", originGUID, relationship.GUID)
	}
	return h.EntityDetails(ctx, userID, far.GUID, far.TypeName)
}

// FindEntitiesByType searches for entities of entityType or any of its subtypes. The page size is
// clamped to the configured maximum and the result is never nil.
func (h *Handler) FindEntitiesByType(ctx context.Context, userID string, entityType string, criteria models.SearchCriteria, params models.SearchParams) ([]models.Element, error) {
	ctx, span := tracing.StartElementSpan(ctx, "lineage.Handler.FindEntitiesByType", "", entityType)
	defer span.End()

	if entityType == "" {
		return nil, NewInvalidParameterError("FindEntitiesByType", "entityType")
	}
	if params.PageSize <= 0 || params.PageSize > h.config.MaxPageSize {
		params.PageSize = h.config.MaxPageSize
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	typeNames, err := h.hierarchy.SubTypes(ctx, entityType)
	if err != nil {
		return nil, err
	}

	elements, err := h.repo.FindEntities(ctx, userID, typeNames, criteria, params)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).WithField("type_name", entityType).Error("Failed to find entities")
		return nil, err
	}
	if elements == nil {
		elements = []models.Element{}
	}
	return elements, nil
}

// ZoneMembership returns the zones listed on the AssetZoneMembership classification.
func ZoneMembership(classifications []models.Classification) []string {
	for _, c := range classifications {
		if c.Name != AssetZoneMembership {
			continue
		}
		switch zones := c.Properties[ZoneMembershipProp].(type) {
		case []string:
			return append([]string(nil), zones...)
		case []any:
			out := make([]string, 0, len(zones))
			for _, z := range zones {
				if s, ok := z.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case string:
			if zones == "" {
				return []string{}
			}
			return strings.Split(zones, ",")
		}
		return []string{}
	}
	return []string{}
}

// SearchAfterUpdateTime matches entities updated strictly after timestamp.
func SearchAfterUpdateTime(timestamp time.Time) models.SearchCriteria {
	return models.SearchCriteria{
		Conditions: []models.SearchCondition{
			{
				Property: UpdateTimeProp,
				Operator: models.SearchOperatorGreaterThan,
				Value:    timestamp.UTC(),
			},
		},
	}
}

// ValidateZone fails unless the element sits in one of supportedZones. No supported zones
// means no restriction.
func (h *Handler) ValidateZone(element *models.Element, supportedZones []string) error {
	if element == nil || element.GUID == "" {
		return NewInvalidParameterError("ValidateZone", "guid")
	}
	if len(supportedZones) == 0 {
		return nil
	}

	zones := ZoneMembership(element.Classifications)
	shared := ectolinq.Filter(zones, func(zone string) bool {
		return ectolinq.Contains(supportedZones, zone)
	})
	if len(shared) == 0 {
		return NewNotAuthorizedError("ValidateZone", element.GUID, zones)
	}
	return nil
}

// BuildContext emits one edge per relationship, from end one to end two. Relationships whose
// ends cannot be resolved are skipped.
func (h *Handler) BuildContext(ctx context.Context, userID string, originGUID string, relationships []models.Relationship) (*models.LineageContext, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Handler.BuildContext")
	defer span.End()

	out := models.NewLineageContext()
	for _, rel := range relationships {
		one, err := h.EntityDetails(ctx, userID, rel.EntityOne.GUID, rel.EntityOne.TypeName)
		if err != nil {
			return nil, err
		}
		two, err := h.EntityDetails(ctx, userID, rel.EntityTwo.GUID, rel.EntityTwo.TypeName)
		if err != nil {
			return nil, err
		}
		if one == nil || two == nil {
			h.logger.WithContext(ctx).WithFields(map[string]any{
				"origin_guid":       originGUID,
				"relationship_guid": rel.GUID,
				"relationship_type": rel.TypeName,
			}).Warn("Skipping relationship with a missing end")
			continue
		}

		out.Add(models.GraphEdge{
			RelationshipType: rel.TypeName,
			RelationshipGUID: rel.GUID,
			From:             h.converter.ToLineageNode(one),
			To:               h.converter.ToLineageNode(two),
		})
	}
	return out, nil
}

// BuildClassificationContext emits one Classification edge per lineage-relevant classification
// of element. A nil relevant uses the configured list.
func (h *Handler) BuildClassificationContext(element *models.Element, relevant ClassificationFilter) *models.LineageContext {
	out := models.NewLineageContext()
	if element == nil {
		return out
	}
	if relevant == nil {
		relevant = h.relevant
	}

	owner := h.converter.ToLineageNode(element)
	for _, c := range element.Classifications {
		if !relevant(c.Name) {
			continue
		}
		out.Add(models.GraphEdge{
			RelationshipType: ClassificationEdgeType,
			RelationshipGUID: c.Name + element.GUID,
			From:             owner,
			To:               classificationNode(element, c),
		})
	}
	return out
}

// RelatedElements follows every relationshipType relationship of element. It returns the far
// ends in relationship order, duplicates removed, with the edges of those relationships.
func (h *Handler) RelatedElements(ctx context.Context, userID string, element *models.Element, relationshipType string) ([]*models.Element, *models.LineageContext, error) {
	if element == nil || element.GUID == "" {
		return nil, nil, NewInvalidParameterError("RelatedElements", "guid")
	}
	relationships, err := h.RelationshipsByType(ctx, userID, element.GUID, relationshipType, element.TypeName)
	if err != nil {
		return nil, nil, err
	}
	if len(relationships) == 0 {
		return nil, models.NewLineageContext(), nil
	}

	edges, err := h.BuildContext(ctx, userID, element.GUID, relationships)
	if err != nil {
		return nil, nil, err
	}

	var related []*models.Element
	seen := map[string]bool{}
	for _, rel := range relationships {
		far, err := h.EntityAtOtherEnd(ctx, userID, element.GUID, rel)
		if err != nil {
			return nil, nil, err
		}
		if far == nil || seen[far.GUID] {
			continue
		}
		seen[far.GUID] = true
		related = append(related, far)
	}
	return related, edges, nil
}

// ExtendContext follows relationshipType from element and returns the far end of the first
// relationship found with the edges of all of them. When there is none it returns a nil
// element and an empty context. The caller merges the edges.
func (h *Handler) ExtendContext(ctx context.Context, userID string, element *models.Element, relationshipType string) (*models.Element, *models.LineageContext, error) {
	if element == nil || element.GUID == "" {
		return nil, nil, NewInvalidParameterError("ExtendContext", "guid")
	}
	related, edges, err := h.RelatedElements(ctx, userID, element, relationshipType)
	if err != nil {
		return nil, nil, err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"guid":              element.GUID,
		"relationship_type": relationshipType,
		"edges":             edges.Len(),
	}).Debug("Extended lineage context")

	if len(related) == 0 {
		return nil, edges, nil
	}
	return related[0], edges, nil
}
