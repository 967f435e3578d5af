// Package processor turns entity-change notifications into published lineage events. Each
// notification is mirrored into the graph store, then the context of the touched element is
// rebuilt with the builder matching its type.
package processor

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/willow/pkg/context"
	"github.com/Ramsey-B/willow/pkg/events"
	"github.com/Ramsey-B/willow/pkg/kafka"
	"github.com/Ramsey-B/willow/pkg/lineage"
	"github.com/Ramsey-B/willow/pkg/metrics"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// GraphMirror stores notified elements, relationships and type definitions so later builds
// read them.
type GraphMirror interface {
	UpsertEntity(ctx context.Context, element *models.Element) error
	DeleteEntity(ctx context.Context, guid string) error
	UpsertRelationship(ctx context.Context, relationship *models.Relationship) error
	UpsertTypeDefs(ctx context.Context, typeDefs []models.TypeDef) error
}

// TypeReloader refreshes the type hierarchy builds dispatch on.
type TypeReloader interface {
	Reload(ctx context.Context) error
}

// TypeCache is the shared type definition snapshot replicas read through.
type TypeCache interface {
	Invalidate(ctx context.Context) error
}

// CallerResolver supplies the caller a tenant's builds run as.
type CallerResolver interface {
	Caller(ctx context.Context, tenantID string, userID string) (lineage.Caller, error)
}

// ElementReader is the part of lineage.Handler the processor dispatches with.
type ElementReader interface {
	EntityDetails(ctx context.Context, userID string, guid string, entityType string) (*models.Element, error)
	IsTypeOf(ctx context.Context, typeName string, candidateSuperType string) (bool, error)
	Converter() lineage.NodeConverter
}

type AssetBuilder interface {
	BuildAssetContext(ctx context.Context, caller lineage.Caller, node models.LineageNode) (*models.LineageContext, error)
	BuildSchemaElementContext(ctx context.Context, caller lineage.Caller, element *models.Element) (*models.LineageContext, error)
}

type ProcessBuilder interface {
	BuildProcessContext(ctx context.Context, caller lineage.Caller, process *models.Element) (*models.LineageContext, error)
}

type GlossaryBuilder interface {
	HasGlossaryTermLineageRelationships(ctx context.Context, caller lineage.Caller, term *models.Element) (bool, error)
	BuildGlossaryTermContext(ctx context.Context, caller lineage.Caller, term *models.Element) (map[string]*models.LineageContext, error)
}

type ClassificationBuilder interface {
	BuildClassificationContext(ctx context.Context, caller lineage.Caller, element *models.Element, eventType models.AssetLineageEventType) (map[string]*models.LineageContext, error)
}

type EventEmitter interface {
	Emit(ctx context.Context, event *events.LineageEvent) error
}

// Dependencies are the collaborators of a Processor. Mirror may be nil when the repository
// the builders read is not written by this service, TypeCache when there is no shared cache.
type Dependencies struct {
	Mirror          GraphMirror
	Types           TypeReloader
	TypeCache       TypeCache
	Callers         CallerResolver
	Elements        ElementReader
	Assets          AssetBuilder
	Processes       ProcessBuilder
	Glossary        GlossaryBuilder
	Classifications ClassificationBuilder
	Emitter         EventEmitter
}

// Processor handles entity-change notifications
type Processor struct {
	deps   Dependencies
	logger ectologger.Logger
}

// NewProcessor creates a new notification processor
func NewProcessor(deps Dependencies, logger ectologger.Logger) *Processor {
	return &Processor{
		deps:   deps,
		logger: logger,
	}
}

// HandleMessage is the kafka.MessageHandler for the notification topic. Undecodable messages
// are permanent failures; anything else failing is retried by the consumer.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	var notification events.EntityNotification
	if err := msg.Decode(&notification); err != nil {
		metrics.NotificationsProcessedTotal.WithLabelValues("unknown", "invalid").Inc()
		return fmt.Errorf("%w: decode notification: %v", kafka.ErrPermanent, err)
	}
	if notification.TenantID == "" {
		notification.TenantID = msg.TenantID()
	}
	if correlationID := msg.Headers[kafka.HeaderCorrelationID]; correlationID != "" {
		ctx = appctx.SetCorrelationID(ctx, correlationID)
	}
	return p.Process(ctx, &notification)
}

// Process mirrors the notification and publishes the events it causes. Builds the caller may
// not see are skipped. Builder errors caused by the repository's content are returned as
// kafka.ErrPermanent since redelivering the notification cannot change them.
func (p *Processor) Process(ctx context.Context, n *events.EntityNotification) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Process")
	defer span.End()

	ctx = appctx.SetTenantID(ctx, n.TenantID)
	ctx = appctx.SetUserID(ctx, n.UserID)
	action := string(n.Type)
	fields := appctx.Fields(ctx)
	fields["notification"] = action
	log := p.logger.WithContext(ctx).WithFields(fields)

	if err := validate(n); err != nil {
		metrics.NotificationsProcessedTotal.WithLabelValues(action, "invalid").Inc()
		log.WithError(err).Warn("Dropping invalid notification")
		return err
	}

	if err := p.mirror(ctx, n); err != nil {
		metrics.NotificationsProcessedTotal.WithLabelValues(action, "error").Inc()
		log.WithError(err).Error("Failed to mirror notification into the graph")
		return err
	}

	// nothing is built for these
	switch n.Type {
	case events.NotificationEntityDeleted:
		metrics.NotificationsProcessedTotal.WithLabelValues(action, "success").Inc()
		return nil
	case events.NotificationTypeDefsUpdated:
		if err := p.reloadTypes(ctx); err != nil {
			metrics.NotificationsProcessedTotal.WithLabelValues(action, "error").Inc()
			log.WithError(err).Error("Failed to reload type hierarchy")
			return err
		}
		metrics.NotificationsProcessedTotal.WithLabelValues(action, "success").Inc()
		log.WithField("type_count", len(n.TypeDefs)).Info("Type hierarchy reloaded")
		return nil
	}

	caller, err := p.deps.Callers.Caller(ctx, n.TenantID, n.UserID)
	if err != nil {
		metrics.NotificationsProcessedTotal.WithLabelValues(action, "error").Inc()
		return err
	}

	err = p.dispatch(ctx, caller, n)
	switch {
	case err == nil:
		metrics.NotificationsProcessedTotal.WithLabelValues(action, "success").Inc()
		return nil
	case lineage.IsNotAuthorized(err):
		metrics.NotificationsProcessedTotal.WithLabelValues(action, "skipped").Inc()
		log.WithError(err).Info("Element outside the caller's zones, nothing published")
		return nil
	case lineage.KindOf(err) != "":
		metrics.NotificationsProcessedTotal.WithLabelValues(action, "invalid").Inc()
		log.WithError(err).Warn("Lineage of the notified element cannot be built")
		return fmt.Errorf("%w: %w", kafka.ErrPermanent, err)
	default:
		metrics.NotificationsProcessedTotal.WithLabelValues(action, "error").Inc()
		log.WithError(err).Error("Failed to process notification")
		return err
	}
}

func validate(n *events.EntityNotification) error {
	switch n.Type {
	case events.NotificationEntityClassified, events.NotificationEntityDeclassified,
		events.NotificationEntityReclassified, events.NotificationEntityUpdated,
		events.NotificationEntityDeleted:
		if n.Entity == nil || n.Entity.GUID == "" {
			return fmt.Errorf("%w: %s without entity", kafka.ErrPermanent, n.Type)
		}
	case events.NotificationTypeDefsUpdated:
		if len(n.TypeDefs) == 0 {
			return fmt.Errorf("%w: %s without type definitions", kafka.ErrPermanent, n.Type)
		}
	case events.NotificationRelationshipCreated:
		if n.Relationship == nil || n.Relationship.GUID == "" {
			return fmt.Errorf("%w: %s without relationship", kafka.ErrPermanent, n.Type)
		}
	default:
		return fmt.Errorf("%w: unknown notification type %q", kafka.ErrPermanent, n.Type)
	}
	return nil
}

func (p *Processor) mirror(ctx context.Context, n *events.EntityNotification) error {
	if p.deps.Mirror == nil {
		return nil
	}
	switch n.Type {
	case events.NotificationEntityDeleted:
		return p.deps.Mirror.DeleteEntity(ctx, n.Entity.GUID)
	case events.NotificationTypeDefsUpdated:
		return p.deps.Mirror.UpsertTypeDefs(ctx, n.TypeDefs)
	case events.NotificationRelationshipCreated:
		return p.deps.Mirror.UpsertRelationship(ctx, n.Relationship)
	default:
		return p.deps.Mirror.UpsertEntity(ctx, n.Entity)
	}
}

// reloadTypes drops the shared snapshot before reloading so the hierarchy reads the new
// definitions. A cache that cannot be cleared only delays the change until its ttl.
func (p *Processor) reloadTypes(ctx context.Context) error {
	if p.deps.TypeCache != nil {
		if err := p.deps.TypeCache.Invalidate(ctx); err != nil {
			p.logger.WithContext(ctx).WithError(err).Warn("Failed to invalidate type definition cache")
		}
	}
	if p.deps.Types == nil {
		return nil
	}
	return p.deps.Types.Reload(ctx)
}

func (p *Processor) dispatch(ctx context.Context, caller lineage.Caller, n *events.EntityNotification) error {
	switch n.Type {
	case events.NotificationEntityClassified:
		return p.publishClassification(ctx, caller, n.Entity, models.ClassificationContextEvent)
	case events.NotificationEntityDeclassified:
		return p.publishClassification(ctx, caller, n.Entity, models.DeclassifiedEntityEvent)
	case events.NotificationEntityReclassified:
		return p.publishClassification(ctx, caller, n.Entity, models.ReclassifiedEntityEvent)
	case events.NotificationEntityUpdated:
		return p.publishElement(ctx, caller, n.Entity)
	default:
		return p.publishRelationshipEnds(ctx, caller, n.Relationship)
	}
}

func (p *Processor) publishClassification(ctx context.Context, caller lineage.Caller, element *models.Element, eventType models.AssetLineageEventType) error {
	contexts, err := p.deps.Classifications.BuildClassificationContext(ctx, caller, element, eventType)
	if err != nil {
		return err
	}
	// declassification publishes the remaining, possibly empty, classification set
	return p.emit(ctx, eventType, element, contexts, eventType != models.ClassificationContextEvent)
}

// publishElement rebuilds the element's context with the builder for its type.
func (p *Processor) publishElement(ctx context.Context, caller lineage.Caller, element *models.Element) error {
	kind, err := p.kindOf(ctx, element.TypeName)
	if err != nil {
		return err
	}

	switch kind {
	case kindProcess:
		out, err := p.deps.Processes.BuildProcessContext(ctx, caller, element)
		if err != nil {
			return err
		}
		return p.emitOne(ctx, models.ProcessContextEvent, element, out)

	case kindGlossaryTerm:
		has, err := p.deps.Glossary.HasGlossaryTermLineageRelationships(ctx, caller, element)
		if err != nil {
			return err
		}
		if !has {
			p.logger.WithContext(ctx).WithField("guid", element.GUID).Debug("Glossary term has no semantic assignments")
			return nil
		}
		contexts, err := p.deps.Glossary.BuildGlossaryTermContext(ctx, caller, element)
		if err != nil {
			return err
		}
		return p.emit(ctx, models.GlossaryTermContextEvent, element, contexts, false)

	case kindSchemaElement:
		out, err := p.deps.Assets.BuildSchemaElementContext(ctx, caller, element)
		if err != nil {
			return err
		}
		return p.emitOne(ctx, models.ColumnContextEvent, element, out)

	default:
		out, err := p.deps.Assets.BuildAssetContext(ctx, caller, p.deps.Elements.Converter().ToLineageNode(element))
		if err != nil {
			return err
		}
		return p.emitOne(ctx, models.AssetContextEvent, element, out)
	}
}

// publishRelationshipEnds rebuilds both ends of a new relationship. Ends missing from the
// repository are skipped, as are ends the caller may not see.
func (p *Processor) publishRelationshipEnds(ctx context.Context, caller lineage.Caller, rel *models.Relationship) error {
	for _, end := range []models.EntityProxy{rel.EntityOne, rel.EntityTwo} {
		if end.GUID == "" {
			continue
		}
		element, err := p.deps.Elements.EntityDetails(ctx, caller.UserID, end.GUID, end.TypeName)
		if err != nil {
			return err
		}
		if element == nil {
			p.logger.WithContext(ctx).WithFields(map[string]any{
				"guid":         end.GUID,
				"relationship": rel.GUID,
			}).Debug("Relationship end not in repository")
			continue
		}
		if err := p.publishElement(ctx, caller, element); err != nil {
			if lineage.IsNotAuthorized(err) {
				p.logger.WithContext(ctx).WithField("guid", end.GUID).Debug("Relationship end outside the caller's zones")
				continue
			}
			return err
		}
	}
	return nil
}

func (p *Processor) emitOne(ctx context.Context, eventType models.AssetLineageEventType, element *models.Element, out *models.LineageContext) error {
	return p.emit(ctx, eventType, element, map[string]*models.LineageContext{eventType.EventName(): out}, false)
}

// emit publishes contexts unless every one is empty and publishEmpty is false.
func (p *Processor) emit(ctx context.Context, eventType models.AssetLineageEventType, element *models.Element, contexts map[string]*models.LineageContext, publishEmpty bool) error {
	empty := true
	for _, c := range contexts {
		if !c.IsEmpty() {
			empty = false
			break
		}
	}
	if empty && !publishEmpty {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"guid":       element.GUID,
			"event_type": eventType,
		}).Debug("Empty lineage context, nothing published")
		return nil
	}

	root := p.deps.Elements.Converter().ToLineageNode(element)
	return p.deps.Emitter.Emit(ctx, events.NewLineageEvent(ctx, eventType, root, contexts))
}
