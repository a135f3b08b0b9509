package model

// Criteria names one of the fixed priority predicates a user can weight.
type Criteria string

const (
	CriteriaManyComments  Criteria = "many-comments"
	CriteriaManyReactions Criteria = "many-reactions"
	CriteriaAssigned      Criteria = "assigned"
	CriteriaMentioned     Criteria = "mentioned"
	CriteriaReviewRequest Criteria = "review-request"
	CriteriaLabel         Criteria = "label"
	CriteriaState         Criteria = "state"
	CriteriaType          Criteria = "type"
)

// AllCriteria is the single source of truth for valid criteria values.
var AllCriteria = []Criteria{
	CriteriaManyComments,
	CriteriaManyReactions,
	CriteriaAssigned,
	CriteriaMentioned,
	CriteriaReviewRequest,
	CriteriaLabel,
	CriteriaState,
	CriteriaType,
}

// Priority is one user-configured weighted rule. Specifier is only
// meaningful for the label, state and type criteria, where it holds the
// match target.
type Priority struct {
	Criteria  Criteria `json:"criteria" yaml:"criteria"`
	Value     int      `json:"value" yaml:"value"`
	Specifier string   `json:"specifier,omitempty" yaml:"specifier,omitempty"`
}

// NeedsSpecifier reports whether the criteria requires a match target.
func (c Criteria) NeedsSpecifier() bool {
	return c == CriteriaLabel || c == CriteriaState || c == CriteriaType
}

// Valid reports whether c is a known criteria.
func (c Criteria) Valid() bool {
	for _, known := range AllCriteria {
		if c == known {
			return true
		}
	}
	return false
}
