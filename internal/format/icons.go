package format

import "github.com/pvannes/gitpulse/internal/model"

// IssueIcon maps a GitHub issue state pair to its normalized icon tag.
// Closed issues are "completed" only when the provider says so; anything
// else closed (not_planned, reopened-then-closed races) gets the plain
// closed tag.
func IssueIcon(state, stateReason string) model.Icon {
	if state == "open" {
		return model.IconOpenIssue
	}
	if stateReason == "completed" {
		return model.IconCompletedIssue
	}
	return model.IconClosedIssue
}

// PullRequestIcon maps a GitHub pull request state to its icon tag.
func PullRequestIcon(state string, merged, draft bool) model.Icon {
	if state == "open" {
		if draft {
			return model.IconDraftPR
		}
		return model.IconOpenPR
	}
	if merged {
		return model.IconMergedPR
	}
	return model.IconClosedPR
}

// GitLabIssueIcon maps a GitLab issue state ("opened"/"closed") to the same
// decision table GitHub issues use. GitLab has no state_reason; closed
// issues are treated as completed.
func GitLabIssueIcon(state string) model.Icon {
	if state == "opened" {
		return model.IconOpenIssue
	}
	return model.IconCompletedIssue
}

// MergeRequestIcon maps a GitLab merge request state to the pull request
// decision table. GitLab reports "merged" as a first-class state rather
// than a closed+merged flag pair.
func MergeRequestIcon(state string, draft bool) model.Icon {
	switch state {
	case "opened":
		if draft {
			return model.IconDraftPR
		}
		return model.IconOpenPR
	case "merged":
		return model.IconMergedPR
	default:
		return model.IconClosedPR
	}
}
