package lineage

import (
	"context"

	"github.com/Ramsey-B/willow/pkg/models"
)

// Hop moves from one element to the next, returning the edges it crossed. A nil element ends
// the chain.
type Hop func(ctx context.Context, userID string, from *models.Element) (*models.Element, *models.LineageContext, error)

// Follow is the hop across relationshipType.
func (h *Handler) Follow(relationshipType string) Hop {
	return func(ctx context.Context, userID string, from *models.Element) (*models.Element, *models.LineageContext, error) {
		return h.ExtendContext(ctx, userID, from, relationshipType)
	}
}

// FollowAll returns one Follow hop per relationship type, in order.
func (h *Handler) FollowAll(relationshipTypes ...string) []Hop {
	hops := make([]Hop, len(relationshipTypes))
	for i, rt := range relationshipTypes {
		hops[i] = h.Follow(rt)
	}
	return hops
}

// Chain runs hops in order, each starting from the element the previous one reached. The first
// hop that reaches nothing stops the chain. It returns the merged edges and the last element
// reached.
func Chain(ctx context.Context, userID string, root *models.Element, hops ...Hop) (*models.LineageContext, *models.Element, error) {
	out := models.NewLineageContext()
	current := root
	for _, hop := range hops {
		if current == nil {
			break
		}
		next, edges, err := hop(ctx, userID, current)
		if err != nil {
			return nil, nil, err
		}
		out.Merge(edges)
		if next == nil {
			return out, current, nil
		}
		current = next
	}
	return out, current, nil
}
