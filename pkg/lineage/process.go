package lineage

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// ProcessContextBuilder builds the context of a process: its collections, its ports and the
// data flows into and out of the columns behind its port implementations.
type ProcessContextBuilder struct {
	handler *Handler
	assets  *AssetContextBuilder
	logger  ectologger.Logger

	portStrategies map[string]ContextFunc
}

// NewProcessContextBuilder creates a builder that delegates data flow ends to assets.
func NewProcessContextBuilder(handler *Handler, assets *AssetContextBuilder, logger ectologger.Logger) *ProcessContextBuilder {
	b := &ProcessContextBuilder{
		handler:        handler,
		assets:         assets,
		logger:         logger,
		portStrategies: map[string]ContextFunc{},
	}
	b.RegisterPortStrategy(PortAlias, b.portAliasContext)
	b.RegisterPortStrategy(PortImplementation, b.portImplementationContext)
	return b
}

// RegisterPortStrategy sets the strategy for ports of exactly typeName.
func (b *ProcessContextBuilder) RegisterPortStrategy(typeName string, build ContextFunc) {
	b.portStrategies[typeName] = build
}

// BuildProcessContext walks the collection membership and ports of process.
func (b *ProcessContextBuilder) BuildProcessContext(ctx context.Context, caller Caller, process *models.Element) (out *models.LineageContext, err error) {
	if process == nil || process.GUID == "" {
		return nil, NewInvalidParameterError("BuildProcessContext", "guid")
	}
	ctx, span := tracing.StartElementSpan(ctx, "lineage.ProcessContextBuilder.BuildProcessContext", process.GUID, process.TypeName)
	defer span.End()
	defer func(start time.Time) { observeBuild("process", start, out, err) }(time.Now())

	if err := b.handler.ValidateZone(process, caller.SupportedZones); err != nil {
		return nil, err
	}

	// the collection itself is not walked
	_, collections, err := b.handler.ExtendContext(ctx, caller.UserID, process, CollectionMembership)
	if err != nil {
		return nil, err
	}
	out = models.NewLineageContext().Merge(collections)

	ports, portEdges, err := b.handler.RelatedElements(ctx, caller.UserID, process, ProcessPort)
	if err != nil {
		return nil, err
	}
	out.Merge(portEdges)

	for _, port := range ports {
		build, ok := b.portStrategies[port.TypeName]
		if !ok {
			b.logger.WithContext(ctx).WithFields(map[string]any{
				"process_guid": process.GUID,
				"port_guid":    port.GUID,
				"type_name":    port.TypeName,
			}).Debug("No port strategy for type")
			continue
		}
		edges, err := build(ctx, caller, port)
		if err != nil {
			return nil, err
		}
		out.Merge(edges)
	}

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"guid":  process.GUID,
		"ports": len(ports),
		"edges": out.Len(),
	}).Info("Built process context")
	return out, nil
}

// Delegations are followed one level only.
func (b *ProcessContextBuilder) portAliasContext(ctx context.Context, caller Caller, port *models.Element) (*models.LineageContext, error) {
	_, edges, err := b.handler.ExtendContext(ctx, caller.UserID, port, PortDelegation)
	return edges, err
}

// port implementation -> schema type -> attributes -> data flows -> far end schema context
func (b *ProcessContextBuilder) portImplementationContext(ctx context.Context, caller Caller, port *models.Element) (*models.LineageContext, error) {
	h := b.handler

	schemaType, out, err := h.ExtendContext(ctx, caller.UserID, port, PortSchema)
	if err != nil {
		return nil, err
	}
	if schemaType == nil {
		return out, nil
	}

	attributes, attributeEdges, err := h.RelatedElements(ctx, caller.UserID, schemaType, AttributeForSchema)
	if err != nil {
		return nil, err
	}
	out.Merge(attributeEdges)

	for _, attribute := range attributes {
		flows, flowEdges, err := h.RelatedElements(ctx, caller.UserID, attribute, DataFlow)
		if err != nil {
			return nil, err
		}
		out.Merge(flowEdges)

		for _, far := range flows {
			// a far end outside the supported zones fails the whole process
			edges, err := b.assets.BuildSchemaElementContext(ctx, caller, far)
			if err != nil {
				return nil, err
			}
			out.Merge(edges)
		}
	}
	return out, nil
}
