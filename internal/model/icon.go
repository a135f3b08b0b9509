package model

// Icon is a normalized icon/state tag. The UI layer maps these to actual
// glyphs; this subsystem only guarantees the decision table behind them is
// identical for both providers.
type Icon string

const (
	IconOpenIssue      Icon = "open-issue"
	IconCompletedIssue Icon = "completed-issue"
	IconClosedIssue    Icon = "closed-issue"
	IconOpenPR         Icon = "open-pr"
	IconDraftPR        Icon = "draft-pr"
	IconMergedPR       Icon = "merged-pr"
	IconClosedPR       Icon = "closed-pr"
	IconCommit         Icon = "commit"
	IconRelease        Icon = "release"
	IconDiscussion     Icon = "discussion"
	IconWorkflowPass   Icon = "workflow-success"
	IconWorkflowFail   Icon = "workflow-fail"
	IconUnsupported    Icon = "unsupported"
)
