package lineage

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// ClassificationContextBuilder builds the classification context published when an element is
// classified, declassified or reclassified.
type ClassificationContextBuilder struct {
	handler *Handler
	logger  ectologger.Logger
}

func NewClassificationContextBuilder(handler *Handler, logger ectologger.Logger) *ClassificationContextBuilder {
	return &ClassificationContextBuilder{handler: handler, logger: logger}
}

// BuildClassificationContext returns the element's classification edges under eventType's
// event name.
func (b *ClassificationContextBuilder) BuildClassificationContext(ctx context.Context, caller Caller, element *models.Element, eventType models.AssetLineageEventType) (map[string]*models.LineageContext, error) {
	if element == nil || element.GUID == "" {
		return nil, NewInvalidParameterError("BuildClassificationContext", "guid")
	}
	if !eventType.Valid() {
		return nil, NewInvalidParameterError("BuildClassificationContext", "eventType")
	}
	ctx, span := tracing.StartElementSpan(ctx, "lineage.ClassificationContextBuilder.BuildClassificationContext", element.GUID, element.TypeName)
	defer span.End()

	start := time.Now()
	edges := b.handler.BuildClassificationContext(element, caller.classificationFilter())
	observeBuild("classification", start, edges, nil)

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"guid":       element.GUID,
		"event_type": eventType.EventName(),
		"edges":      edges.Len(),
	}).Debug("Built classification context")

	return map[string]*models.LineageContext{eventType.EventName(): edges}, nil
}
