package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// GetTypeDefs returns every stored type definition.
func (r *Repository) GetTypeDefs(ctx context.Context) ([]models.TypeDef, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Repository.GetTypeDefs")
	defer span.End()

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (t:TypeDef)
			RETURN t
			ORDER BY t.name
		`, nil)
		if err != nil {
			return nil, err
		}

		typeDefs := make([]models.TypeDef, 0)
		for result.Next(ctx) {
			node, ok := result.Record().Get("t")
			if !ok {
				continue
			}
			typeDefs = append(typeDefs, typeDefFromProps(node.(neo4j.Node).Props))
		}
		return typeDefs, result.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get type definitions from graph")
		return nil, fmt.Errorf("failed to get type definitions from graph: %w", err)
	}

	return result.([]models.TypeDef), nil
}

// UpsertTypeDefs stores type definitions by name in one transaction.
func (r *Repository) UpsertTypeDefs(ctx context.Context, typeDefs []models.TypeDef) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Repository.UpsertTypeDefs")
	defer span.End()

	if len(typeDefs) == 0 {
		return nil
	}

	batch := make([]map[string]any, len(typeDefs))
	for i, td := range typeDefs {
		batch[i] = map[string]any{
			propGUID:      td.GUID,
			propName:      td.Name,
			propSuperType: td.SuperType,
		}
	}

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			UNWIND $batch AS td
			MERGE (t:TypeDef {name: td.name})
			SET t.guid = td.guid, t.super_type = td.super_type
		`, map[string]any{"batch": batch})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to upsert type definitions in graph")
		return fmt.Errorf("failed to upsert type definitions in graph: %w", err)
	}

	r.logger.WithContext(ctx).WithField("type_count", len(typeDefs)).Debug("Upserted type definitions in graph")
	return nil
}
