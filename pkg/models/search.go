package models

// SearchOperator is the comparison applied by a SearchCondition
type SearchOperator string

const (
	SearchOperatorEqual       SearchOperator = "eq"
	SearchOperatorGreaterThan SearchOperator = "gt"
	SearchOperatorLessThan    SearchOperator = "lt"
)

// SearchCondition filters entities on a single property
type SearchCondition struct {
	Property string         `json:"property"`
	Operator SearchOperator `json:"operator"`
	Value    any            `json:"value"`
}

// SearchCriteria is a conjunction of conditions
type SearchCriteria struct {
	Conditions []SearchCondition `json:"conditions"`
}

// SearchParams controls paging of a search
type SearchParams struct {
	Offset   int `json:"offset"`
	PageSize int `json:"page_size"`
}
