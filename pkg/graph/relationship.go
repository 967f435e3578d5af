package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// ErrMissingEnd is returned when a relationship is stored before one of its ends.
var ErrMissingEnd = errors.New("relationship end not found")

// GetRelationships returns every relationshipType relationship touching guid, in either
// direction, ordered by relationship guid.
func (r *Repository) GetRelationships(ctx context.Context, userID string, guid string, entityTypeName string, relationshipTypeName string) ([]models.Relationship, error) {
	ctx, span := tracing.StartElementSpan(ctx, "graph.Repository.GetRelationships", guid, entityTypeName)
	defer span.End()

	cypher := fmt.Sprintf(`
		MATCH (e:Entity {guid: $guid})-[r:%s]-(:Entity)
		WITH DISTINCT r
		MATCH (one:Entity)-[r]->(two:Entity)
		RETURN r, one.guid AS one_guid, one.type_name AS one_type, two.guid AS two_guid, two.type_name AS two_type
		ORDER BY r.guid
	`, sanitizeLabel(relationshipTypeName))

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"guid": guid})
		if err != nil {
			return nil, err
		}

		relationships := make([]models.Relationship, 0)
		for result.Next(ctx) {
			record := result.Record()
			raw, ok := record.Get("r")
			if !ok {
				continue
			}
			one := models.EntityProxy{GUID: recordString(record, "one_guid"), TypeName: recordString(record, "one_type")}
			two := models.EntityProxy{GUID: recordString(record, "two_guid"), TypeName: recordString(record, "two_type")}

			rel, err := relationshipFromProps(raw.(neo4j.Relationship).Props, one, two)
			if err != nil {
				return nil, err
			}
			relationships = append(relationships, *rel)
		}
		return relationships, result.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"guid":              guid,
			"relationship_type": relationshipTypeName,
			"user_id":           userID,
		}).Error("Failed to get relationships from graph")
		return nil, fmt.Errorf("failed to get relationships from graph: %w", err)
	}

	return result.([]models.Relationship), nil
}

// UpsertRelationship stores the relationship between its two ends, which must already exist.
func (r *Repository) UpsertRelationship(ctx context.Context, relationship *models.Relationship) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Repository.UpsertRelationship")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"relationship_guid": relationship.GUID,
		"relationship_type": relationship.TypeName,
		"one_guid":          relationship.EntityOne.GUID,
		"two_guid":          relationship.EntityTwo.GUID,
	})

	props, err := relationshipProps(relationship)
	if err != nil {
		return err
	}

	cypher := fmt.Sprintf(`
		MATCH (one:Entity {guid: $one}), (two:Entity {guid: $two})
		MERGE (one)-[r:%s {guid: $guid}]->(two)
		SET r = $props
		RETURN r.guid AS guid
	`, sanitizeLabel(relationship.TypeName))

	stored, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"one":   relationship.EntityOne.GUID,
			"two":   relationship.EntityTwo.GUID,
			"guid":  relationship.GUID,
			"props": props,
		})
		if err != nil {
			return nil, err
		}
		found := result.Next(ctx)
		if err := result.Err(); err != nil {
			return nil, err
		}
		return found, nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to upsert relationship in graph")
		return fmt.Errorf("failed to upsert relationship in graph: %w", err)
	}
	if found, _ := stored.(bool); !found {
		log.Warn("Relationship end not in graph")
		return fmt.Errorf("%w: %s", ErrMissingEnd, relationship.GUID)
	}

	log.Debug("Upserted relationship in graph")
	return nil
}

func recordString(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
