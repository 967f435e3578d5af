package lineage

// Relationship type names walked by the builders.
const (
	AttributeForSchema    = "AttributeForSchema"
	AssetSchemaType       = "AssetSchemaType"
	DataContentForDataSet = "DataContentForDataSet"
	ConnectionToAsset     = "ConnectionToAsset"
	ConnectionEndpoint    = "ConnectionEndpoint"
	NestedFile            = "NestedFile"
	NestedSchemaAttribute = "NestedSchemaAttribute"
	CollectionMembership  = "CollectionMembership"
	ProcessPort           = "ProcessPort"
	PortDelegation        = "PortDelegation"
	PortSchema            = "PortSchema"
	DataFlow              = "DataFlow"
	SemanticAssignment    = "SemanticAssignment"
	TermCategorization    = "TermCategorization"
	TermAnchor            = "TermAnchor"
	CategoryAnchor        = "CategoryAnchor"
)

// Entity type names the builders dispatch on.
const (
	RelationalTable    = "RelationalTable"
	DataStore          = "DataStore"
	DataFile           = "DataFile"
	Topic              = "Topic"
	TabularFileColumn  = "TabularFileColumn"
	RelationalColumn   = "RelationalColumn"
	TabularColumn      = "TabularColumn"
	TabularSchemaType  = "TabularSchemaType"
	SchemaAttribute    = "SchemaAttribute"
	Process            = "Process"
	Port               = "Port"
	PortAlias          = "PortAlias"
	PortImplementation = "PortImplementation"
	GlossaryTerm       = "GlossaryTerm"
	GlossaryCategory   = "GlossaryCategory"
)

// Classification names and properties read during traversal.
const (
	ClassificationEdgeType = "Classification"

	AssetZoneMembership = "AssetZoneMembership"
	ZoneMembershipProp  = "zoneMembership"

	Anchors            = "Anchors"
	AnchorGUIDProp     = "anchorGUID"
	AnchorTypeNameProp = "anchorTypeName"
)

// Glossary context keys.
const (
	SemanticAssignments   = "SemanticAssignments"
	TermCategorizations   = "TermCategorizations"
	TermAnchors           = "TermAnchors"
	CategoryAnchors       = "CategoryAnchors"
	ClassificationContext = "ClassificationContext"
)

// UpdateTimeProp is the property searched by SearchAfterUpdateTime.
const UpdateTimeProp = "updateTime"
