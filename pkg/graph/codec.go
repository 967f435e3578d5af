package graph

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Ramsey-B/willow/pkg/models"
)

// Node and relationship properties hold only scalars, so nested values are stored as JSON
// strings and times as epoch milliseconds.
const (
	propGUID            = "guid"
	propTypeName        = "type_name"
	propVersion         = "version"
	propProperties      = "properties"
	propClassifications = "classifications"
	propCreatedBy       = "created_by"
	propUpdatedBy       = "updated_by"
	propCreateTime      = "create_time"
	propUpdateTime      = "update_time"
	propName            = "name"
	propSuperType       = "super_type"
)

// searchable maps element property names accepted in search criteria to node properties.
var searchable = map[string]string{
	"guid":       propGUID,
	"version":    propVersion,
	"createTime": propCreateTime,
	"updateTime": propUpdateTime,
	"createdBy":  propCreatedBy,
	"updatedBy":  propUpdatedBy,
}

func elementProps(e *models.Element) (map[string]any, error) {
	properties, err := json.Marshal(e.Properties)
	if err != nil {
		return nil, fmt.Errorf("failed to encode properties of %s: %w", e.GUID, err)
	}
	classifications, err := json.Marshal(e.Classifications)
	if err != nil {
		return nil, fmt.Errorf("failed to encode classifications of %s: %w", e.GUID, err)
	}
	return map[string]any{
		propGUID:            e.GUID,
		propTypeName:        e.TypeName,
		propVersion:         e.Version,
		propProperties:      string(properties),
		propClassifications: string(classifications),
		propCreatedBy:       e.CreatedBy,
		propUpdatedBy:       e.UpdatedBy,
		propCreateTime:      toMillis(e.CreateTime),
		propUpdateTime:      toMillis(e.UpdateTime),
	}, nil
}

func elementFromProps(props map[string]any) (*models.Element, error) {
	e := &models.Element{
		GUID:       stringProp(props, propGUID),
		TypeName:   stringProp(props, propTypeName),
		Version:    intProp(props, propVersion),
		CreatedBy:  stringProp(props, propCreatedBy),
		UpdatedBy:  stringProp(props, propUpdatedBy),
		CreateTime: fromMillis(intProp(props, propCreateTime)),
		UpdateTime: fromMillis(intProp(props, propUpdateTime)),
	}
	if err := decodeJSONProp(props, propProperties, &e.Properties); err != nil {
		return nil, fmt.Errorf("failed to decode properties of %s: %w", e.GUID, err)
	}
	if err := decodeJSONProp(props, propClassifications, &e.Classifications); err != nil {
		return nil, fmt.Errorf("failed to decode classifications of %s: %w", e.GUID, err)
	}
	return e, nil
}

func relationshipProps(r *models.Relationship) (map[string]any, error) {
	properties, err := json.Marshal(r.Properties)
	if err != nil {
		return nil, fmt.Errorf("failed to encode properties of %s: %w", r.GUID, err)
	}
	classifications, err := json.Marshal(r.Classifications)
	if err != nil {
		return nil, fmt.Errorf("failed to encode classifications of %s: %w", r.GUID, err)
	}
	return map[string]any{
		propGUID:            r.GUID,
		propTypeName:        r.TypeName,
		propProperties:      string(properties),
		propClassifications: string(classifications),
	}, nil
}

// relationshipFromProps rebuilds a relationship from its properties and the guid and type of
// its start (end one) and end (end two) nodes.
func relationshipFromProps(props map[string]any, one, two models.EntityProxy) (*models.Relationship, error) {
	r := &models.Relationship{
		GUID:      stringProp(props, propGUID),
		TypeName:  stringProp(props, propTypeName),
		EntityOne: one,
		EntityTwo: two,
	}
	if err := decodeJSONProp(props, propProperties, &r.Properties); err != nil {
		return nil, fmt.Errorf("failed to decode properties of %s: %w", r.GUID, err)
	}
	if err := decodeJSONProp(props, propClassifications, &r.Classifications); err != nil {
		return nil, fmt.Errorf("failed to decode classifications of %s: %w", r.GUID, err)
	}
	return r, nil
}

func typeDefFromProps(props map[string]any) models.TypeDef {
	return models.TypeDef{
		GUID:      stringProp(props, propGUID),
		Name:      stringProp(props, propName),
		SuperType: stringProp(props, propSuperType),
	}
}

// whereClause renders criteria as a Cypher predicate on node alias, with parameters named
// p0, p1, ... An empty criteria renders "true".
func whereClause(alias string, criteria models.SearchCriteria) (string, map[string]any, error) {
	params := map[string]any{}
	if len(criteria.Conditions) == 0 {
		return "true", params, nil
	}

	parts := make([]string, 0, len(criteria.Conditions))
	for i, c := range criteria.Conditions {
		field, ok := searchable[c.Property]
		if !ok {
			return "", nil, fmt.Errorf("property %q is not searchable", c.Property)
		}

		var op string
		switch c.Operator {
		case models.SearchOperatorEqual:
			op = "="
		case models.SearchOperatorGreaterThan:
			op = ">"
		case models.SearchOperatorLessThan:
			op = "<"
		default:
			return "", nil, fmt.Errorf("unsupported search operator %q", c.Operator)
		}

		name := fmt.Sprintf("p%d", i)
		value := c.Value
		if t, ok := value.(time.Time); ok {
			value = toMillis(t)
		}
		params[name] = value
		parts = append(parts, fmt.Sprintf("%s.%s %s $%s", alias, field, op, name))
	}
	return strings.Join(parts, " AND "), params, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func intProp(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func decodeJSONProp(props map[string]any, key string, out any) error {
	raw, ok := props[key].(string)
	if !ok || raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

// sanitizeLabel ensures the label is safe for Cypher
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, c := range label {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "Entity"
	}
	return b.String()
}
