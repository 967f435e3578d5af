package lineage

import (
	"fmt"

	"github.com/Ramsey-B/willow/pkg/models"
)

// NodeConverter projects a repository element to its lineage node.
type NodeConverter interface {
	ToLineageNode(element *models.Element) models.LineageNode
}

// PropertyConverter keeps the element's scalar properties, or only the listed ones when
// Properties is set.
type PropertyConverter struct {
	Properties []string
}

func (c PropertyConverter) ToLineageNode(element *models.Element) models.LineageNode {
	node := models.LineageNode{
		GUID:          element.GUID,
		TypeName:      element.TypeName,
		QualifiedName: element.StringProperty("qualifiedName"),
		DisplayName:   element.StringProperty("displayName"),
		Properties:    map[string]string{},
	}
	if node.DisplayName == "" {
		node.DisplayName = element.StringProperty("name")
	}

	if len(c.Properties) > 0 {
		for _, key := range c.Properties {
			if v, ok := scalarString(element.Properties[key]); ok {
				node.Properties[key] = v
			}
		}
		return node
	}

	for key, value := range element.Properties {
		if key == "qualifiedName" || key == "displayName" {
			continue
		}
		if v, ok := scalarString(value); ok {
			node.Properties[key] = v
		}
	}
	return node
}

// classificationNode builds the synthetic node standing for one classification of owner.
func classificationNode(owner *models.Element, classification models.Classification) models.LineageNode {
	node := models.LineageNode{
		GUID:       classification.Name + owner.GUID,
		TypeName:   classification.Name,
		Properties: map[string]string{},
	}
	for key, value := range classification.Properties {
		if v, ok := scalarString(value); ok {
			node.Properties[key] = v
		} else if value != nil {
			node.Properties[key] = fmt.Sprint(value)
		}
	}
	return node
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case bool, int, int32, int64, float32, float64:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}
