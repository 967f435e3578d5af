package processor

import (
	"context"

	"github.com/Ramsey-B/willow/pkg/lineage"
)

type elementKind int

const (
	kindAsset elementKind = iota
	kindProcess
	kindGlossaryTerm
	kindSchemaElement
)

// kinds is evaluated top-down; the first super type the element's type descends from wins.
var kinds = []struct {
	superType string
	kind      elementKind
}{
	{lineage.Process, kindProcess},
	{lineage.GlossaryTerm, kindGlossaryTerm},
	{lineage.TabularColumn, kindSchemaElement},
	{lineage.RelationalColumn, kindSchemaElement},
}

func (p *Processor) kindOf(ctx context.Context, typeName string) (elementKind, error) {
	for _, k := range kinds {
		ok, err := p.deps.Elements.IsTypeOf(ctx, typeName, k.superType)
		if err != nil {
			return kindAsset, err
		}
		if ok {
			return k.kind, nil
		}
	}
	return kindAsset, nil
}
