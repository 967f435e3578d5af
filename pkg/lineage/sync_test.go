package lineage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/willow/pkg/models"
)

type syncRecorder struct {
	mu     sync.Mutex
	guids  []string
	events []models.AssetLineageEventType
	err    error
}

func (r *syncRecorder) publish(_ context.Context, element *models.Element, eventType models.AssetLineageEventType, _ *models.LineageContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.guids = append(r.guids, element.GUID)
	r.events = append(r.events, eventType)
	return nil
}

func TestPublishEntitiesUpdatedAfter(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("only entities updated after the cutoff", func(t *testing.T) {
		f := newFixture()
		for _, guid := range []string{"t1", "t2", "t3"} {
			f.repo.addEntity(guid, RelationalTable)
		}
		f.repo.setUpdateTime("t1", cutoff.Add(time.Hour))
		f.repo.setUpdateTime("t2", cutoff)
		f.repo.setUpdateTime("t3", cutoff.Add(48*time.Hour))

		svc := NewSyncService(f.handler, f.assets, f.processes, 2, testLogger())
		rec := &syncRecorder{}

		n, err := svc.PublishEntitiesUpdatedAfter(ctx, Caller{UserID: "user"}, RelationalTable, cutoff, rec.publish)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.ElementsMatch(t, []string{"t1", "t3"}, rec.guids)
		assert.Equal(t, []models.AssetLineageEventType{models.LineageSyncEvent, models.LineageSyncEvent}, rec.events)
	})

	t.Run("pages through the results", func(t *testing.T) {
		repo := newFakeRepository()
		logger := testLogger()
		handler := NewHandler(repo, NewStaticTypeHierarchy(testTypeDefs(), logger), nil, Config{MaxPageSize: 2}, logger)
		assets := NewAssetContextBuilder(handler, logger)
		svc := NewSyncService(handler, assets, NewProcessContextBuilder(handler, assets, logger), 1, logger)
		for _, guid := range []string{"a", "b", "c", "d", "e"} {
			repo.addEntity(guid, Topic)
			repo.setUpdateTime(guid, cutoff.Add(time.Minute))
		}

		rec := &syncRecorder{}
		n, err := svc.PublishEntitiesUpdatedAfter(ctx, Caller{UserID: "user"}, Topic, cutoff, rec.publish)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Len(t, repo.findParams, 3)
	})

	t.Run("processes are built as processes", func(t *testing.T) {
		f := newFixture()
		f.repo.addEntity("p", Process)
		f.repo.setUpdateTime("p", cutoff.Add(time.Minute))

		svc := NewSyncService(f.handler, f.assets, f.processes, 1, testLogger())
		_, err := svc.PublishEntitiesUpdatedAfter(ctx, Caller{UserID: "user"}, Process, cutoff, (&syncRecorder{}).publish)
		require.NoError(t, err)
		assert.Equal(t, 1, f.repo.lookups("p", ProcessPort))
	})

	t.Run("subtypes of the requested type", func(t *testing.T) {
		f := newFixture()
		f.repo.addEntity("file-1", "CSVFile")
		f.repo.addEntity("file-2", DataFile)
		f.repo.addEntity("topic", Topic)
		for _, guid := range []string{"file-1", "file-2", "topic"} {
			f.repo.setUpdateTime(guid, cutoff.Add(time.Minute))
		}

		svc := NewSyncService(f.handler, f.assets, f.processes, 2, testLogger())
		rec := &syncRecorder{}
		n, err := svc.PublishEntitiesUpdatedAfter(ctx, Caller{UserID: "user"}, DataStore, cutoff, rec.publish)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.ElementsMatch(t, []string{"file-1", "file-2"}, rec.guids)
	})

	t.Run("unknown entity type", func(t *testing.T) {
		f := newFixture()
		svc := NewSyncService(f.handler, f.assets, f.processes, 1, testLogger())
		_, err := svc.PublishEntitiesUpdatedAfter(ctx, Caller{UserID: "user"}, "NoSuchType", cutoff, (&syncRecorder{}).publish)
		assert.True(t, IsInvalidParameter(err))
		assert.Empty(t, f.repo.findParams)
	})

	t.Run("entities outside the zones are skipped", func(t *testing.T) {
		f := newFixture()
		f.repo.addEntity("in", Topic, zoneClassification("lake"))
		f.repo.addEntity("out", Topic, zoneClassification("quarantine"))
		f.repo.setUpdateTime("in", cutoff.Add(time.Minute))
		f.repo.setUpdateTime("out", cutoff.Add(time.Minute))

		svc := NewSyncService(f.handler, f.assets, f.processes, 4, testLogger())
		rec := &syncRecorder{}
		n, err := svc.PublishEntitiesUpdatedAfter(ctx, Caller{UserID: "user", SupportedZones: []string{"lake"}}, Topic, cutoff, rec.publish)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"in"}, rec.guids)
	})

	t.Run("publish errors stop the sync", func(t *testing.T) {
		f := newFixture()
		f.repo.addEntity("t", Topic)
		f.repo.setUpdateTime("t", cutoff.Add(time.Minute))

		boom := errors.New("kafka down")
		svc := NewSyncService(f.handler, f.assets, f.processes, 1, testLogger())
		_, err := svc.PublishEntitiesUpdatedAfter(ctx, Caller{UserID: "user"}, Topic, cutoff, (&syncRecorder{err: boom}).publish)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("entity type is required", func(t *testing.T) {
		f := newFixture()
		svc := NewSyncService(f.handler, f.assets, f.processes, 1, testLogger())
		_, err := svc.PublishEntitiesUpdatedAfter(ctx, Caller{UserID: "user"}, "", cutoff, (&syncRecorder{}).publish)
		assert.True(t, IsInvalidParameter(err))
	})
}
