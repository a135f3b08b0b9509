package gitlab

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pvannes/gitpulse/internal/log"
	glapi "gitlab.com/gitlab-org/api/client-go"
)

// EventGroup clusters the raw activity events that belong to one logical
// notification. All events in a group share a target id or a push ref; at
// most one of Issue/MR is set, fetched exactly once per group.
type EventGroup struct {
	TargetID int
	Ref      string
	Events   []*glapi.ContributionEvent
	Issue    *glapi.Issue
	MR       *glapi.MergeRequest
}

func (g *EventGroup) latest() *glapi.ContributionEvent {
	return g.Events[0]
}

// isIssue reports whether the group's target is an issue rather than a merge
// request, inferred from the events themselves.
func (g *EventGroup) isIssue() bool {
	for _, ev := range g.Events {
		if ev.Note != nil && ev.Note.NoteableType == "Issue" {
			return true
		}
		if ev.TargetType == "Issue" {
			return true
		}
	}
	return false
}

// Group clusters raw events by logical target, fetches each target's
// resource once, then merges push-ref groups into the merge request they
// belong to. Events within each group come back newest-first.
//
// Key precedence: a note's noteable id identifies the thread the comment
// landed on; the event's own target id covers opened/closed/approved events;
// push events only know their ref until the merge pass ties them to an MR.
func Group(ctx context.Context, f ResourceFetcher, events []*glapi.ContributionEvent) ([]*EventGroup, error) {
	var order []string
	byKey := make(map[string]*EventGroup)

	for _, ev := range events {
		key, targetID, ref := groupKey(ev)
		g, ok := byKey[key]
		if !ok {
			g = &EventGroup{TargetID: targetID, Ref: ref}
			byKey[key] = g
			order = append(order, key)
		}
		g.Events = append(g.Events, ev)
	}

	for _, key := range order {
		g := byKey[key]
		if g.TargetID == 0 {
			continue
		}
		if err := fetchResource(ctx, f, g); err != nil {
			return nil, err
		}
	}

	// Merge pass: a push-only group belongs to the MR whose source branch is
	// the pushed ref, once that MR is known.
	groups := make([]*EventGroup, 0, len(order))
	for _, key := range order {
		g := byKey[key]
		if g.Ref != "" {
			if target := findSourceBranch(byKey, order, g.Ref); target != nil {
				target.Events = append(target.Events, g.Events...)
				continue
			}
		}
		groups = append(groups, g)
	}

	for _, g := range groups {
		sort.SliceStable(g.Events, func(i, j int) bool {
			return eventTime(g.Events[i]).After(eventTime(g.Events[j]))
		})
	}
	return groups, nil
}

func groupKey(ev *glapi.ContributionEvent) (key string, targetID int, ref string) {
	if ev.Note != nil && ev.Note.NoteableID != 0 {
		return fmt.Sprintf("target:%d", ev.Note.NoteableID), ev.Note.NoteableID, ""
	}
	if ev.TargetID != 0 {
		return fmt.Sprintf("target:%d", ev.TargetID), ev.TargetID, ""
	}
	if ev.PushData.Ref != "" {
		return "ref:" + ev.PushData.Ref, 0, ev.PushData.Ref
	}
	// No identity at all; the event stands alone.
	return fmt.Sprintf("event:%d", ev.ID), 0, ""
}

func fetchResource(ctx context.Context, f ResourceFetcher, g *EventGroup) error {
	projectID, iid := resourceRef(g)
	if projectID == 0 || iid == 0 {
		return nil
	}

	var err error
	if g.isIssue() {
		g.Issue, err = f.Issue(ctx, projectID, iid)
	} else {
		g.MR, err = f.MergeRequest(ctx, projectID, iid)
	}
	if err != nil {
		// Deleted or restricted targets leave the group resource-less
		// rather than failing the whole poll.
		if errors.Is(err, glapi.ErrNotFound) {
			log.Debug("target resource not found", "project", projectID, "iid", iid)
			return nil
		}
		return err
	}
	return nil
}

// resourceRef extracts the project and iid to fetch from whichever event in
// the group carries them.
func resourceRef(g *EventGroup) (projectID, iid int) {
	for _, ev := range g.Events {
		if ev.ProjectID == 0 {
			continue
		}
		if ev.Note != nil && ev.Note.NoteableIID != 0 {
			return ev.ProjectID, ev.Note.NoteableIID
		}
		if ev.TargetIID != 0 {
			return ev.ProjectID, ev.TargetIID
		}
	}
	return 0, 0
}

func findSourceBranch(byKey map[string]*EventGroup, order []string, ref string) *EventGroup {
	for _, key := range order {
		g := byKey[key]
		if g.MR != nil && g.MR.SourceBranch == ref {
			return g
		}
	}
	return nil
}

func eventTime(ev *glapi.ContributionEvent) (t time.Time) {
	if ev.CreatedAt != nil {
		t = *ev.CreatedAt
	}
	return t
}
