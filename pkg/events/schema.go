package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/willow/pkg/models"
)

// NotificationType is the kind of entity-change notification consumed from the repository
type NotificationType string

const (
	NotificationEntityClassified    NotificationType = "entity.classified"
	NotificationEntityDeclassified  NotificationType = "entity.declassified"
	NotificationEntityReclassified  NotificationType = "entity.reclassified"
	NotificationEntityUpdated       NotificationType = "entity.updated"
	NotificationEntityDeleted       NotificationType = "entity.deleted"
	NotificationRelationshipCreated NotificationType = "relationship.created"
	NotificationTypeDefsUpdated     NotificationType = "typedefs.updated"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID       string                      `json:"event_id"`
	EventType     models.AssetLineageEventType `json:"event_type"`
	SchemaVersion string                      `json:"schema_version"`
	TenantID      string                      `json:"tenant_id"`
	Timestamp     time.Time                   `json:"timestamp"`
	CorrelationID string                      `json:"correlation_id,omitempty"`
}

// NewBaseEvent creates a new base event. A missing correlation id is generated.
func NewBaseEvent(eventType models.AssetLineageEventType, tenantID, correlationID string) BaseEvent {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return BaseEvent{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		TenantID:      tenantID,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// LineageEvent carries the contexts built for one root element
type LineageEvent struct {
	BaseEvent
	Root     models.LineageNode                `json:"root"`
	Contexts map[string]*models.LineageContext `json:"contexts"`
}

// EntityNotification is an entity-change notification published by the metadata repository.
// Entity is set for entity.* notifications, Relationship for relationship.created and TypeDefs
// for typedefs.updated.
type EntityNotification struct {
	Type         NotificationType     `json:"type"`
	TenantID     string               `json:"tenant_id"`
	UserID       string               `json:"user_id"`
	Entity       *models.Element      `json:"entity,omitempty"`
	Relationship *models.Relationship `json:"relationship,omitempty"`
	TypeDefs     []models.TypeDef     `json:"type_defs,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}
