// Package events turns built lineage contexts into events and publishes them
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/willow/pkg/context"
	"github.com/Ramsey-B/willow/pkg/kafka"
	"github.com/Ramsey-B/willow/pkg/lineage"
	"github.com/Ramsey-B/willow/pkg/metrics"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Publisher writes encoded messages to the event stream
type Publisher interface {
	Publish(ctx context.Context, messages ...kafka.OutgoingMessage) error
}

// Emitter handles lineage event emission
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// NewLineageEvent wraps contexts built for root into an event. Tenant and correlation id come
// from ctx.
func NewLineageEvent(ctx context.Context, eventType models.AssetLineageEventType, root models.LineageNode, contexts map[string]*models.LineageContext) *LineageEvent {
	return &LineageEvent{
		BaseEvent: NewBaseEvent(eventType, appctx.GetTenantID(ctx), appctx.GetCorrelationID(ctx)),
		Root:      root,
		Contexts:  contexts,
	}
}

// Emit publishes one lineage event keyed by the root guid
func (e *Emitter) Emit(ctx context.Context, event *LineageEvent) error {
	ctx, span := tracing.StartElementSpan(ctx, "events.Emitter.Emit", event.Root.GUID, event.Root.TypeName)
	defer span.End()

	msg, err := encode(event)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.EventType), "error").Inc()
		e.logger.WithContext(ctx).WithError(err).Error("Failed to encode lineage event")
		return err
	}

	if err := e.publisher.Publish(ctx, msg); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.EventType), "error").Inc()
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": event.EventType,
			"guid":       event.Root.GUID,
		}).Error("Failed to emit lineage event")
		return err
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(event.EventType), "success").Inc()
	return nil
}

// EmitContext builds and publishes a single-context event; the context is stored under the
// event type's name.
func (e *Emitter) EmitContext(ctx context.Context, eventType models.AssetLineageEventType, root models.LineageNode, lineageContext *models.LineageContext) error {
	return e.Emit(ctx, NewLineageEvent(ctx, eventType, root, map[string]*models.LineageContext{
		eventType.EventName(): lineageContext,
	}))
}

func encode(event *LineageEvent) (kafka.OutgoingMessage, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.OutgoingMessage{}, err
	}
	return kafka.OutgoingMessage{
		Key:   event.Root.GUID,
		Value: value,
		Headers: map[string]string{
			kafka.HeaderEventType:     string(event.EventType),
			kafka.HeaderTenantID:      event.TenantID,
			kafka.HeaderCorrelationID: event.CorrelationID,
			kafka.HeaderSchemaVersion: event.SchemaVersion,
		},
	}, nil
}

// ColumnContextSink publishes each non-empty schema context handed over by the glossary builder
// as a column context event.
func (e *Emitter) ColumnContextSink(converter lineage.NodeConverter) lineage.SchemaContextSink {
	return func(ctx context.Context, element *models.Element, schemaContext *models.LineageContext) error {
		if schemaContext.IsEmpty() {
			return nil
		}
		return e.EmitContext(ctx, models.ColumnContextEvent, converter.ToLineageNode(element), schemaContext)
	}
}

// SyncPublisher publishes every synced context, empty ones included, so consumers can reset
// what they hold for the element.
func (e *Emitter) SyncPublisher(converter lineage.NodeConverter) lineage.SyncPublisher {
	return func(ctx context.Context, element *models.Element, eventType models.AssetLineageEventType, lineageContext *models.LineageContext) error {
		return e.EmitContext(ctx, eventType, converter.ToLineageNode(element), lineageContext)
	}
}
