package models

// AssetLineageEventType identifies the kind of lineage event a context is published as.
type AssetLineageEventType string

const (
	ProcessContextEvent        AssetLineageEventType = "ProcessLineageEvent"
	ColumnContextEvent         AssetLineageEventType = "ColumnContextEvent"
	AssetContextEvent          AssetLineageEventType = "AssetContextEvent"
	GlossaryTermContextEvent   AssetLineageEventType = "GlossaryTermContextEvent"
	ClassificationContextEvent AssetLineageEventType = "ClassificationContextEvent"
	DeclassifiedEntityEvent    AssetLineageEventType = "DeclassifiedEntityEvent"
	ReclassifiedEntityEvent    AssetLineageEventType = "ReclassifiedEntityEvent"
	LineageSyncEvent           AssetLineageEventType = "LineageSyncEvent"
)

// EventName is the key a context of this event type is published under.
func (t AssetLineageEventType) EventName() string {
	return string(t)
}

// Valid reports whether t is one of the known event types.
func (t AssetLineageEventType) Valid() bool {
	switch t {
	case ProcessContextEvent, ColumnContextEvent, AssetContextEvent, GlossaryTermContextEvent,
		ClassificationContextEvent, DeclassifiedEntityEvent, ReclassifiedEntityEvent, LineageSyncEvent:
		return true
	}
	return false
}
