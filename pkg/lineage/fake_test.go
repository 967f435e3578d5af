package lineage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/willow/pkg/models"
)

// fakeRepository is an in-memory RepositoryClient that counts relationship lookups per
// (guid, relationship type).
type fakeRepository struct {
	mu            sync.Mutex
	entities      map[string]models.Element
	relationships map[string][]models.Relationship
	relLookups    map[string]int
	entityLookups map[string]int
	findParams    []models.SearchParams
	findTypes     [][]string
	failOn        map[string]error
	relCounter    int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		entities:      map[string]models.Element{},
		relationships: map[string][]models.Relationship{},
		relLookups:    map[string]int{},
		entityLookups: map[string]int{},
		failOn:        map[string]error{},
	}
}

func relKey(guid, relationshipType string) string {
	return guid + "|" + relationshipType
}

func (f *fakeRepository) addEntity(guid, typeName string, classifications ...models.Classification) *models.Element {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := models.Element{
		GUID:            guid,
		TypeName:        typeName,
		Properties:      map[string]any{"qualifiedName": typeName + "::" + guid, "name": guid},
		Classifications: classifications,
		UpdateTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.entities[guid] = e
	return &e
}

func (f *fakeRepository) setUpdateTime(guid string, ts time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entities[guid]
	e.UpdateTime = ts
	f.entities[guid] = e
}

// relate links one (end one) to two (end two) and returns the relationship.
func (f *fakeRepository) relate(relationshipType, one, two string, classifications ...models.Classification) models.Relationship {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relCounter++
	rel := models.Relationship{
		GUID:            fmt.Sprintf("%s-%d", relationshipType, f.relCounter),
		TypeName:        relationshipType,
		EntityOne:       models.EntityProxy{GUID: one, TypeName: f.entities[one].TypeName},
		EntityTwo:       models.EntityProxy{GUID: two, TypeName: f.entities[two].TypeName},
		Classifications: classifications,
	}
	f.relationships[relKey(one, relationshipType)] = append(f.relationships[relKey(one, relationshipType)], rel)
	if one != two {
		f.relationships[relKey(two, relationshipType)] = append(f.relationships[relKey(two, relationshipType)], rel)
	}
	return rel
}

func (f *fakeRepository) lookups(guid, relationshipType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.relLookups[relKey(guid, relationshipType)]
}

func (f *fakeRepository) totalLookups(relationshipType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for k, n := range f.relLookups {
		if strings.HasSuffix(k, "|"+relationshipType) {
			total += n
		}
	}
	return total
}

func (f *fakeRepository) GetEntity(_ context.Context, _ string, guid string, _ string) (*models.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entityLookups[guid]++
	if err := f.failOn[guid]; err != nil {
		return nil, err
	}
	e, ok := f.entities[guid]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeRepository) GetRelationships(_ context.Context, _ string, guid string, _ string, relationshipType string) ([]models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := relKey(guid, relationshipType)
	f.relLookups[key]++
	if err := f.failOn[key]; err != nil {
		return nil, err
	}
	return append([]models.Relationship(nil), f.relationships[key]...), nil
}

func (f *fakeRepository) FindEntities(_ context.Context, _ string, typeNames []string, criteria models.SearchCriteria, params models.SearchParams) ([]models.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findParams = append(f.findParams, params)
	f.findTypes = append(f.findTypes, typeNames)

	var matched []models.Element
	for _, e := range f.entities {
		if !slices.Contains(typeNames, e.TypeName) || !matches(e, criteria) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].GUID < matched[j].GUID })

	if params.Offset >= len(matched) {
		return nil, nil
	}
	end := min(params.Offset+params.PageSize, len(matched))
	return matched[params.Offset:end], nil
}

func matches(e models.Element, criteria models.SearchCriteria) bool {
	for _, c := range criteria.Conditions {
		if c.Property != UpdateTimeProp {
			continue
		}
		ts, _ := c.Value.(time.Time)
		switch c.Operator {
		case models.SearchOperatorGreaterThan:
			if !e.UpdateTime.After(ts) {
				return false
			}
		case models.SearchOperatorLessThan:
			if !e.UpdateTime.Before(ts) {
				return false
			}
		case models.SearchOperatorEqual:
			if !e.UpdateTime.Equal(ts) {
				return false
			}
		}
	}
	return true
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testTypeDefs() []models.TypeDef {
	return []models.TypeDef{
		{GUID: "t-referenceable", Name: "Referenceable"},
		{GUID: "t-asset", Name: "Asset", SuperType: "Referenceable"},
		{GUID: "t-dataset", Name: "DataSet", SuperType: "Asset"},
		{GUID: "t-datastore", Name: DataStore, SuperType: "Asset"},
		{GUID: "t-datafile", Name: DataFile, SuperType: DataStore},
		{GUID: "t-csvfile", Name: "CSVFile", SuperType: DataFile},
		{GUID: "t-topic", Name: Topic, SuperType: "DataSet"},
		{GUID: "t-kafkatopic", Name: "KafkaTopic", SuperType: Topic},
		{GUID: "t-schemaelement", Name: "SchemaElement", SuperType: "Referenceable"},
		{GUID: "t-schemaattribute", Name: SchemaAttribute, SuperType: "SchemaElement"},
		{GUID: "t-relationaltable", Name: RelationalTable, SuperType: SchemaAttribute},
		{GUID: "t-relationalcolumn", Name: RelationalColumn, SuperType: SchemaAttribute},
		{GUID: "t-tabularcolumn", Name: TabularColumn, SuperType: SchemaAttribute},
		{GUID: "t-tabularfilecolumn", Name: TabularFileColumn, SuperType: TabularColumn},
		{GUID: "t-tabularschematype", Name: TabularSchemaType, SuperType: "SchemaElement"},
		{GUID: "t-process", Name: Process, SuperType: "Asset"},
		{GUID: "t-port", Name: Port, SuperType: "Referenceable"},
		{GUID: "t-portalias", Name: PortAlias, SuperType: Port},
		{GUID: "t-portimplementation", Name: PortImplementation, SuperType: Port},
		{GUID: "t-glossaryterm", Name: GlossaryTerm, SuperType: "Referenceable"},
		{GUID: "t-glossarycategory", Name: GlossaryCategory, SuperType: "Referenceable"},
	}
}

type fixture struct {
	repo           *fakeRepository
	handler        *Handler
	assets         *AssetContextBuilder
	processes      *ProcessContextBuilder
	classification *ClassificationContextBuilder
}

func newFixture() *fixture {
	repo := newFakeRepository()
	logger := testLogger()
	handler := NewHandler(repo, NewStaticTypeHierarchy(testTypeDefs(), logger), nil, DefaultConfig(), logger)
	assets := NewAssetContextBuilder(handler, logger)
	return &fixture{
		repo:           repo,
		handler:        handler,
		assets:         assets,
		processes:      NewProcessContextBuilder(handler, assets, logger),
		classification: NewClassificationContextBuilder(handler, logger),
	}
}

func (f *fixture) node(guid string) models.LineageNode {
	e, _ := f.repo.GetEntity(context.Background(), "", guid, "")
	return f.handler.Converter().ToLineageNode(e)
}

func (f *fixture) element(guid string) *models.Element {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	e := f.repo.entities[guid]
	return &e
}

func edgeTypes(c *models.LineageContext) []string {
	var out []string
	for _, e := range c.Edges() {
		out = append(out, e.RelationshipType)
	}
	return out
}
