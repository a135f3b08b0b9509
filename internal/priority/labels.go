package priority

import (
	"regexp"
	"strings"

	"github.com/pvannes/gitpulse/internal/model"
)

// criteriaLabels are the display templates per criteria. Templates ending
// in "..." expect a specifier to be appended.
var criteriaLabels = map[model.Criteria]string{
	model.CriteriaManyComments:  "Has many comments",
	model.CriteriaManyReactions: "Has many reactions",
	model.CriteriaAssigned:      "You are assigned",
	model.CriteriaMentioned:     "You were mentioned",
	model.CriteriaReviewRequest: "Review requested",
	model.CriteriaLabel:         "Has the label...",
	model.CriteriaState:         "State is...",
	model.CriteriaType:          "Type is...",
}

// ReviewRequestLabel is the display label of the review-request criteria,
// exported so the GitHub builder can detect an already-applied
// review-request priority on the stored notification.
const ReviewRequestLabel = "Review requested"

// Label renders the display label for a rule, templating the cleaned
// specifier into criteria that carry one.
func Label(rule model.Priority) string {
	base := criteriaLabels[rule.Criteria]
	if rule.Specifier != "" && rule.Criteria.NeedsSpecifier() {
		base += ` "` + CleanSpecifier(rule.Specifier) + `"`
	}
	return strings.Replace(base, "...", "", 1)
}

var specifierWords = regexp.MustCompile(`[A-Z][a-z]+`)

// CleanSpecifier turns a camelCase specifier into lowercased space-separated
// words ("MergeRequest" -> "merge request"). Specifiers without camelCase
// words pass through unchanged.
func CleanSpecifier(s string) string {
	words := specifierWords.FindAllString(s, -1)
	if len(words) == 0 {
		return s
	}
	return strings.ToLower(strings.Join(words, " "))
}

// DefaultRules is the rule set applied when the user has not configured any.
var DefaultRules = []model.Priority{
	{Criteria: model.CriteriaMentioned, Value: 6},
	{Criteria: model.CriteriaAssigned, Value: 4},
	{Criteria: model.CriteriaReviewRequest, Value: 3},
	{Criteria: model.CriteriaLabel, Value: 2, Specifier: "bug"},
	{Criteria: model.CriteriaType, Value: -2, Specifier: "commit"},
	{Criteria: model.CriteriaState, Value: -8, Specifier: "closed"},
}
