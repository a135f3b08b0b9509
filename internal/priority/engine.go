// Package priority evaluates user-configured weighted rules against a
// candidate notification and produces a single accumulated score with a
// human label for the dominant rule.
package priority

import (
	"github.com/pvannes/gitpulse/internal/model"
)

// manyThreshold is the fixed count above which "many-comments" and
// "many-reactions" match.
const manyThreshold = 5

// Input is the provider-neutral view of a candidate notification and its
// raw resource. Builders populate it explicitly instead of the engine
// sniffing provider payload shapes.
type Input struct {
	Type   model.NotificationType
	Labels []model.Label

	// Resource fields; only meaningful when HasResource is set.
	HasResource bool
	State       string
	Assignees   []string
	Comments    int
	Reactions   int

	// Contextual flags derived from the raw notification.
	Mentioned       bool
	ReviewRequested bool

	// User is the logged-in user's login, for the assigned predicate.
	User string
}

// Score evaluates every rule against in and sums the weights of those that
// match. It returns nil when no rules are configured or when the net score
// is exactly zero: a net-neutral notification is not labeled. The label
// names the single largest-magnitude contribution, ties going to the rule
// listed first.
func Score(rules []model.Priority, in Input) *model.PriorityValue {
	if len(rules) == 0 {
		return nil
	}

	sum := 0
	best := -1
	contributions := make([]int, len(rules))
	for i, rule := range rules {
		v := 0
		if matches(rule, in) {
			v = rule.Value
		}
		contributions[i] = v
		sum += v
		if v != 0 && (best < 0 || abs(v) > abs(contributions[best])) {
			best = i
		}
	}

	if sum == 0 || best < 0 {
		return nil
	}

	return &model.PriorityValue{
		Label: Label(rules[best]),
		Value: sum,
	}
}

func matches(rule model.Priority, in Input) bool {
	switch rule.Criteria {
	case model.CriteriaAssigned:
		if !in.HasResource {
			return false
		}
		for _, login := range in.Assignees {
			if login == in.User {
				return true
			}
		}
		return false

	case model.CriteriaManyComments:
		return in.HasResource && in.Comments > manyThreshold

	case model.CriteriaManyReactions:
		return in.HasResource && in.Reactions > manyThreshold

	case model.CriteriaMentioned:
		return in.Mentioned

	case model.CriteriaReviewRequest:
		return in.ReviewRequested

	case model.CriteriaLabel:
		for _, label := range in.Labels {
			if label.Name == rule.Specifier {
				return true
			}
		}
		return false

	case model.CriteriaState:
		return in.HasResource && in.State == rule.Specifier

	case model.CriteriaType:
		return string(in.Type) == rule.Specifier

	default:
		return false
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
