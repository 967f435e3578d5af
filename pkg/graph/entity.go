package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// Repository is the metadata repository held in the graph. Every entity is an :Entity node
// also labelled with its type; every relationship is an edge typed by its relationship type
// running from end one to end two.
type Repository struct {
	client *Client
	logger ectologger.Logger
}

// NewRepository creates a repository over client
func NewRepository(client *Client, logger ectologger.Logger) *Repository {
	return &Repository{
		client: client,
		logger: logger,
	}
}

// GetEntity returns the entity guid, or nil when there is none. Guids are unique, so typeName
// is only used for tracing.
func (r *Repository) GetEntity(ctx context.Context, userID string, guid string, typeName string) (*models.Element, error) {
	ctx, span := tracing.StartElementSpan(ctx, "graph.Repository.GetEntity", guid, typeName)
	defer span.End()

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (e:Entity {guid: $guid})
			RETURN e
		`, map[string]any{"guid": guid})
		if err != nil {
			return nil, err
		}

		if !result.Next(ctx) {
			return nil, result.Err()
		}
		node, ok := result.Record().Get("e")
		if !ok {
			return nil, nil
		}
		return elementFromProps(node.(neo4j.Node).Props)
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"guid":    guid,
			"user_id": userID,
		}).Error("Failed to get entity from graph")
		return nil, fmt.Errorf("failed to get entity from graph: %w", err)
	}

	element, _ := result.(*models.Element)
	return element, nil
}

// FindEntities pages through the entities whose type is one of typeNames matching criteria,
// ordered by guid.
func (r *Repository) FindEntities(ctx context.Context, userID string, typeNames []string, criteria models.SearchCriteria, params models.SearchParams) ([]models.Element, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Repository.FindEntities")
	defer span.End()

	where, queryParams, err := whereClause("e", criteria)
	if err != nil {
		return nil, err
	}
	queryParams["type_names"] = typeNames
	queryParams["offset"] = params.Offset
	queryParams["limit"] = params.PageSize

	cypher := fmt.Sprintf(`
		MATCH (e:Entity)
		WHERE e.type_name IN $type_names AND %s
		RETURN e
		ORDER BY e.guid
		SKIP $offset LIMIT $limit
	`, where)

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, queryParams)
		if err != nil {
			return nil, err
		}

		elements := make([]models.Element, 0)
		for result.Next(ctx) {
			node, ok := result.Record().Get("e")
			if !ok {
				continue
			}
			element, err := elementFromProps(node.(neo4j.Node).Props)
			if err != nil {
				return nil, err
			}
			elements = append(elements, *element)
		}
		return elements, result.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"type_names": typeNames,
			"user_id":    userID,
		}).Error("Failed to search entities in graph")
		return nil, fmt.Errorf("failed to search entities in graph: %w", err)
	}

	return result.([]models.Element), nil
}

// UpsertEntity stores the entity snapshot unless a newer version is already stored.
func (r *Repository) UpsertEntity(ctx context.Context, element *models.Element) error {
	ctx, span := tracing.StartElementSpan(ctx, "graph.Repository.UpsertEntity", element.GUID, element.TypeName)
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"guid":      element.GUID,
		"type_name": element.TypeName,
		"version":   element.Version,
	})

	props, err := elementProps(element)
	if err != nil {
		return err
	}

	cypher := fmt.Sprintf(`
		MERGE (e:Entity {guid: $guid})
		WITH e WHERE coalesce(e.version, -1) <= $version
		SET e = $props, e:%s
		RETURN e.guid
	`, sanitizeLabel(element.TypeName))

	_, err = r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"guid":    element.GUID,
			"version": element.Version,
			"props":   props,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		log.WithError(err).Error("Failed to upsert entity in graph")
		return fmt.Errorf("failed to upsert entity in graph: %w", err)
	}

	log.Debug("Upserted entity in graph")
	return nil
}

// DeleteEntity removes the entity and its relationships.
func (r *Repository) DeleteEntity(ctx context.Context, guid string) error {
	ctx, span := tracing.StartElementSpan(ctx, "graph.Repository.DeleteEntity", guid, "")
	defer span.End()

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (e:Entity {guid: $guid})
			DETACH DELETE e
		`, map[string]any{"guid": guid})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("guid", guid).Error("Failed to delete entity in graph")
		return fmt.Errorf("failed to delete entity in graph: %w", err)
	}
	return nil
}
