package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// LineageNode is the lineage-facing projection of an Element.
type LineageNode struct {
	GUID          string            `json:"guid"`
	TypeName      string            `json:"type_name"`
	QualifiedName string            `json:"qualified_name,omitempty"`
	DisplayName   string            `json:"display_name,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// Key returns a canonical string of every field, so two nodes share a key exactly when their
// fields are equal. Fields are length-prefixed so no value can run into the next.
func (n LineageNode) Key() string {
	var b strings.Builder
	writeKeyField(&b, n.GUID)
	writeKeyField(&b, n.TypeName)
	writeKeyField(&b, n.QualifiedName)
	writeKeyField(&b, n.DisplayName)

	keys := make([]string, 0, len(n.Properties))
	for k := range n.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeKeyField(&b, k)
		writeKeyField(&b, n.Properties[k])
	}
	return b.String()
}

func writeKeyField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

// Equal reports whether two nodes are interchangeable.
func (n LineageNode) Equal(other LineageNode) bool {
	return n.Key() == other.Key()
}

// GraphEdge is one traversal hop materialized into the output graph.
type GraphEdge struct {
	RelationshipType string      `json:"relationship_type"`
	RelationshipGUID string      `json:"relationship_guid"`
	From             LineageNode `json:"from"`
	To               LineageNode `json:"to"`
}

// Key identifies the edge by value across all four fields.
func (e GraphEdge) Key() string {
	var b strings.Builder
	writeKeyField(&b, e.RelationshipType)
	writeKeyField(&b, e.RelationshipGUID)
	writeKeyField(&b, e.From.Key())
	writeKeyField(&b, e.To.Key())
	return b.String()
}

// LineageContext is a set of GraphEdge. Iteration follows first-insertion order.
// The zero value is not usable; use NewLineageContext.
type LineageContext struct {
	edges []GraphEdge
	index map[string]struct{}
}

// NewLineageContext creates a context holding the given edges, duplicates dropped.
func NewLineageContext(edges ...GraphEdge) *LineageContext {
	c := &LineageContext{index: make(map[string]struct{}, len(edges))}
	for _, e := range edges {
		c.Add(e)
	}
	return c
}

// Add inserts the edge unless an equal edge is already present. Reports whether it was added.
func (c *LineageContext) Add(edge GraphEdge) bool {
	key := edge.Key()
	if _, ok := c.index[key]; ok {
		return false
	}
	c.index[key] = struct{}{}
	c.edges = append(c.edges, edge)
	return true
}

// Merge adds every edge of other into c. A nil other is a no-op.
func (c *LineageContext) Merge(other *LineageContext) *LineageContext {
	if other == nil {
		return c
	}
	for _, e := range other.edges {
		c.Add(e)
	}
	return c
}

// Union returns a new context holding the edges of both inputs.
func Union(contexts ...*LineageContext) *LineageContext {
	out := NewLineageContext()
	for _, c := range contexts {
		out.Merge(c)
	}
	return out
}

// Contains reports whether an equal edge is present.
func (c *LineageContext) Contains(edge GraphEdge) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[edge.Key()]
	return ok
}

// Edges returns a copy of the edges in insertion order.
func (c *LineageContext) Edges() []GraphEdge {
	if c == nil {
		return nil
	}
	out := make([]GraphEdge, len(c.edges))
	copy(out, c.edges)
	return out
}

// Len returns the number of distinct edges.
func (c *LineageContext) Len() int {
	if c == nil {
		return 0
	}
	return len(c.edges)
}

// IsEmpty reports whether the context holds no edges.
func (c *LineageContext) IsEmpty() bool {
	return c.Len() == 0
}

// EdgesOfType returns the edges whose relationship type matches.
func (c *LineageContext) EdgesOfType(relationshipType string) []GraphEdge {
	var out []GraphEdge
	for _, e := range c.Edges() {
		if e.RelationshipType == relationshipType {
			out = append(out, e)
		}
	}
	return out
}

// MarshalJSON encodes the context as its edge list.
func (c *LineageContext) MarshalJSON() ([]byte, error) {
	edges := c.Edges()
	if edges == nil {
		edges = []GraphEdge{}
	}
	return json.Marshal(edges)
}

// UnmarshalJSON decodes an edge list, dropping duplicates.
func (c *LineageContext) UnmarshalJSON(data []byte) error {
	var edges []GraphEdge
	if err := json.Unmarshal(data, &edges); err != nil {
		return err
	}
	*c = *NewLineageContext(edges...)
	return nil
}
