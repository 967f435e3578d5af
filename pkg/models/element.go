package models

import "time"

// Classification is a typed property bag attached to an element or relationship.
type Classification struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Element is a metadata record as read from the repository.
type Element struct {
	GUID            string           `json:"guid"`
	TypeName        string           `json:"type_name"`
	Version         int64            `json:"version"`
	Properties      map[string]any   `json:"properties,omitempty"`
	Classifications []Classification `json:"classifications,omitempty"`
	CreatedBy       string           `json:"created_by,omitempty"`
	UpdatedBy       string           `json:"updated_by,omitempty"`
	CreateTime      time.Time        `json:"create_time"`
	UpdateTime      time.Time        `json:"update_time"`
}

// Classification returns the classification with the given name, or nil.
func (e *Element) Classification(name string) *Classification {
	if e == nil {
		return nil
	}
	for i := range e.Classifications {
		if e.Classifications[i].Name == name {
			return &e.Classifications[i]
		}
	}
	return nil
}

// StringProperty returns a property as a string, or "" when absent or not a string.
func (e *Element) StringProperty(key string) string {
	if e == nil || e.Properties == nil {
		return ""
	}
	s, _ := e.Properties[key].(string)
	return s
}

// EntityProxy references one end of a relationship.
type EntityProxy struct {
	GUID     string `json:"guid"`
	TypeName string `json:"type_name"`
}

// Relationship is a typed edge between two elements. EntityOne and EntityTwo are order-significant.
type Relationship struct {
	GUID            string           `json:"guid"`
	TypeName        string           `json:"type_name"`
	EntityOne       EntityProxy      `json:"entity_one"`
	EntityTwo       EntityProxy      `json:"entity_two"`
	Properties      map[string]any   `json:"properties,omitempty"`
	Classifications []Classification `json:"classifications,omitempty"`
}

// Classification returns the relationship classification with the given name, or nil.
func (r *Relationship) Classification(name string) *Classification {
	if r == nil {
		return nil
	}
	for i := range r.Classifications {
		if r.Classifications[i].Name == name {
			return &r.Classifications[i]
		}
	}
	return nil
}

// TypeDef is a repository type definition. SuperType is empty for root types.
type TypeDef struct {
	GUID      string `json:"guid"`
	Name      string `json:"name"`
	SuperType string `json:"super_type,omitempty"`
}
