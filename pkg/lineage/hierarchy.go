package lineage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// TypeDefSource lists the repository's type definitions.
type TypeDefSource interface {
	GetTypeDefs(ctx context.Context) ([]models.TypeDef, error)
}

// TypeHierarchy answers type-name and supertype questions from a snapshot of the repository's
// type definitions. The snapshot is loaded on first use and replaced by Reload.
type TypeHierarchy struct {
	source TypeDefSource
	logger ectologger.Logger

	mu     sync.RWMutex
	loaded bool
	byName map[string]models.TypeDef
}

// NewTypeHierarchy creates a hierarchy backed by source.
func NewTypeHierarchy(source TypeDefSource, logger ectologger.Logger) *TypeHierarchy {
	return &TypeHierarchy{
		source: source,
		logger: logger,
	}
}

// NewStaticTypeHierarchy creates an already-loaded hierarchy from the given definitions.
func NewStaticTypeHierarchy(typeDefs []models.TypeDef, logger ectologger.Logger) *TypeHierarchy {
	h := &TypeHierarchy{logger: logger}
	h.swap(typeDefs)
	return h
}

// Reload replaces the snapshot with the source's current definitions.
func (h *TypeHierarchy) Reload(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "lineage.TypeHierarchy.Reload")
	defer span.End()

	if h.source == nil {
		return nil
	}

	typeDefs, err := h.source.GetTypeDefs(ctx)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to load type definitions")
		return fmt.Errorf("failed to load type definitions: %w", err)
	}

	h.swap(typeDefs)
	h.logger.WithContext(ctx).WithFields(map[string]any{
		"type_count": len(typeDefs),
	}).Info("Loaded type hierarchy")
	return nil
}

// RefreshEvery reloads the snapshot every interval until ctx is done. A failed reload keeps the
// previous snapshot.
func (h *TypeHierarchy) RefreshEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Reload logs its own failures
			_ = h.Reload(ctx)
		}
	}
}

func (h *TypeHierarchy) swap(typeDefs []models.TypeDef) {
	byName := make(map[string]models.TypeDef, len(typeDefs))
	for _, td := range typeDefs {
		byName[td.Name] = td
	}

	h.mu.Lock()
	h.byName = byName
	h.loaded = true
	h.mu.Unlock()
}

func (h *TypeHierarchy) ensureLoaded(ctx context.Context) error {
	h.mu.RLock()
	loaded := h.loaded
	h.mu.RUnlock()
	if loaded {
		return nil
	}
	return h.Reload(ctx)
}

// TypeDef returns the definition for typeName.
func (h *TypeHierarchy) TypeDef(ctx context.Context, typeName string) (models.TypeDef, bool, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return models.TypeDef{}, false, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	td, ok := h.byName[typeName]
	return td, ok, nil
}

// IsTypeOf reports whether typeName is superTypeName or inherits from it.
func (h *TypeHierarchy) IsTypeOf(ctx context.Context, typeName string, superTypeName string) (bool, error) {
	if typeName == "" || superTypeName == "" {
		return false, nil
	}
	if typeName == superTypeName {
		return true, nil
	}
	if err := h.ensureLoaded(ctx); err != nil {
		return false, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := map[string]bool{}
	current := typeName
	for current != "" && !seen[current] {
		if current == superTypeName {
			return true, nil
		}
		seen[current] = true
		td, ok := h.byName[current]
		if !ok {
			return false, nil
		}
		current = td.SuperType
	}
	return false, nil
}

// SubTypes returns typeName followed by every type inheriting from it, in name order. A type the
// hierarchy does not know has no subtypes.
func (h *TypeHierarchy) SubTypes(ctx context.Context, typeName string) ([]string, error) {
	if typeName == "" {
		return nil, nil
	}
	if err := h.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.byName))
	for name := range h.byName {
		names = append(names, name)
	}
	h.mu.RUnlock()

	var sub []string
	for _, name := range names {
		if name == typeName {
			continue
		}
		ok, err := h.IsTypeOf(ctx, name, typeName)
		if err != nil {
			return nil, err
		}
		if ok {
			sub = append(sub, name)
		}
	}
	slices.Sort(sub)
	return append([]string{typeName}, sub...), nil
}
