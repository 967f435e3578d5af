package lineage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// SyncPublisher receives one context per synced entity.
type SyncPublisher func(ctx context.Context, element *models.Element, eventType models.AssetLineageEventType, lineageContext *models.LineageContext) error

// SyncService republishes the lineage of entities changed since a point in time.
type SyncService struct {
	handler     *Handler
	assets      *AssetContextBuilder
	processes   *ProcessContextBuilder
	concurrency int
	logger      ectologger.Logger
}

// NewSyncService creates a sync service building up to concurrency contexts at once.
func NewSyncService(handler *Handler, assets *AssetContextBuilder, processes *ProcessContextBuilder, concurrency int, logger ectologger.Logger) *SyncService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SyncService{
		handler:     handler,
		assets:      assets,
		processes:   processes,
		concurrency: concurrency,
		logger:      logger,
	}
}

// PublishEntitiesUpdatedAfter builds the context of every entity of entityType, or of one of its
// subtypes, updated after updatedAfter and hands each to publish. Processes are built as process
// contexts and everything else as asset contexts. Entities outside the caller's zones are skipped. It returns the number
// of contexts published.
func (s *SyncService) PublishEntitiesUpdatedAfter(ctx context.Context, caller Caller, entityType string, updatedAfter time.Time, publish SyncPublisher) (int, error) {
	ctx, span := tracing.StartElementSpan(ctx, "lineage.SyncService.PublishEntitiesUpdatedAfter", "", entityType)
	defer span.End()

	if entityType == "" {
		return 0, NewInvalidParameterError("PublishEntitiesUpdatedAfter", "entityType")
	}
	if publish == nil {
		return 0, NewInvalidParameterError("PublishEntitiesUpdatedAfter", "publish")
	}

	// unknown types are rejected rather than matching nothing
	if _, err := s.handler.TypeGUID(ctx, entityType); err != nil {
		return 0, err
	}

	criteria := SearchAfterUpdateTime(updatedAfter)
	pageSize := s.handler.config.MaxPageSize

	var published atomic.Int64
	for offset := 0; ; offset += pageSize {
		page, err := s.handler.FindEntitiesByType(ctx, caller.UserID, entityType, criteria, models.SearchParams{
			Offset:   offset,
			PageSize: pageSize,
		})
		if err != nil {
			return int(published.Load()), err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for i := range page {
			element := &page[i]
			g.Go(func() error {
				ok, err := s.syncOne(gctx, caller, element, publish)
				if ok {
					published.Add(1)
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return int(published.Load()), err
		}

		if len(page) < pageSize {
			break
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"type_name":     entityType,
		"updated_after": updatedAfter.UTC(),
		"published":     published.Load(),
	}).Info("Lineage sync complete")
	return int(published.Load()), nil
}

func (s *SyncService) syncOne(ctx context.Context, caller Caller, element *models.Element, publish SyncPublisher) (bool, error) {
	isProcess, err := s.handler.IsTypeOf(ctx, element.TypeName, Process)
	if err != nil {
		return false, err
	}

	var edges *models.LineageContext
	if isProcess {
		edges, err = s.processes.BuildProcessContext(ctx, caller, element)
	} else {
		edges, err = s.assets.BuildAssetContext(ctx, caller, s.handler.Converter().ToLineageNode(element))
	}
	if IsNotAuthorized(err) {
		s.logger.WithContext(ctx).WithField("guid", element.GUID).Debug("Skipping entity outside the supported zones")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := publish(ctx, element, models.LineageSyncEvent, edges); err != nil {
		return false, err
	}
	return true, nil
}
