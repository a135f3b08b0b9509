package gitlab

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pvannes/gitpulse/internal/format"
	"github.com/pvannes/gitpulse/internal/log"
	"github.com/pvannes/gitpulse/internal/model"
	"github.com/pvannes/gitpulse/internal/priority"
	glapi "gitlab.com/gitlab-org/api/client-go"
)

const maxBodyLen = 100

// Builder turns one event group plus the previous snapshot into a unified
// feed record. All fetching happened during grouping; building is pure.
type Builder struct {
	user   model.User
	domain string
	rules  []model.Priority
}

// NewBuilder creates a Builder for one GitLab instance.
func NewBuilder(user model.User, domain string, rules []model.Priority) *Builder {
	return &Builder{user: user, domain: domain, rules: rules}
}

// Build produces the feed record for one event group, or nil when the
// group's latest event has no known phrasing. Unlike the GitHub side there
// is no unchanged-description suppression; the events API already only
// reports activity, and callers filter as they see fit.
func (b *Builder) Build(g *EventGroup, prev model.Snapshots) *model.Notification {
	latest := g.latest()

	author, description := b.describe(g, latest)
	if description == "" {
		log.Debug("unknown action name", "action", latest.ActionName, "event", latest.ID)
		return nil
	}

	id := groupID(g)
	var prevSnap *model.Snapshot
	if snap, ok := prev[id]; ok {
		prevSnap = &snap
	}

	n := &model.Notification{
		ID:          id,
		From:        model.ProviderGitLab,
		Status:      b.carryStatus(prevSnap, latest),
		Time:        eventTime(latest),
		Title:       b.title(g, latest),
		Repo:        b.repo(g, latest),
		Author:      author,
		Description: description,
		URL:         b.eventURL(g, latest),
		NotInvolved: b.notInvolved(g),
	}
	n.IsNew = n.Status == model.StatusUnread && (prevSnap == nil || eventTime(latest).After(prevSnap.Time))
	if prevSnap != nil {
		n.Muted = prevSnap.Muted
	}

	switch {
	case g.Issue != nil:
		n.Type = model.TypeIssue
		n.Icon = format.GitLabIssueIcon(g.Issue.State)
		n.Opened = g.Issue.State == "opened"
		n.Number = g.Issue.IID
		n.Creator = issueAuthor(g.Issue)
		n.Labels = labelsFrom(g.Issue.Labels)
	case g.MR != nil:
		n.Type = model.TypePullRequest
		n.Icon = format.MergeRequestIcon(g.MR.State, g.MR.Draft)
		n.Opened = g.MR.State == "opened"
		n.Number = g.MR.IID
		n.Creator = basicUser(g.MR.Author)
		n.Labels = labelsFrom(g.MR.Labels)
		n.Ref = g.MR.SourceBranch
	default:
		n.Type = model.TypeCommit
		n.Icon = model.IconCommit
		n.Ref = g.Ref
	}

	// A burst of events within one poll carries its own history; otherwise
	// fall back to diffing against the previous snapshot.
	if len(g.Events) > 1 {
		second := g.Events[1]
		if a, d := b.describe(g, second); d != "" && d != n.Description {
			n.Previously = &model.Previously{Author: a, Description: d}
		}
	}
	if n.Previously == nil {
		n.Previously = model.CarryPreviously(prevSnap, n.Description)
	}

	n.Priority = priority.Score(b.rules, b.priorityInput(n, g))
	return n
}

// groupID is stable across polls: the shared target id when the group has
// one, otherwise the push ref qualified by the first event so distinct
// branches never collide.
func groupID(g *EventGroup) string {
	if g.TargetID != 0 {
		return strconv.Itoa(g.TargetID)
	}
	latest := g.latest()
	if g.Ref != "" {
		return g.Ref + "-" + strconv.Itoa(latest.ID)
	}
	return strconv.Itoa(latest.ID)
}

// carryStatus keeps the stored status except that a newer event than the
// snapshot's reverts the record to unread. The events API has no read state
// of its own.
func (b *Builder) carryStatus(prev *model.Snapshot, latest *glapi.ContributionEvent) model.Status {
	if prev == nil {
		return model.StatusUnread
	}
	if eventTime(latest).After(prev.Time) {
		return model.StatusUnread
	}
	return prev.Status
}

// describe maps one event to its author and headline via the action-name
// template table. Unknown actions yield an empty description.
func (b *Builder) describe(g *EventGroup, ev *glapi.ContributionEvent) (*model.User, string) {
	author := eventAuthor(ev)
	noun := "issue"
	if g.Issue == nil {
		noun = "pull request"
	}

	switch {
	case ev.ActionName == "opened":
		return author, "*opened* this " + noun
	case ev.ActionName == "closed":
		return author, "*closed* this " + noun
	case ev.ActionName == "accepted":
		return author, "*merged* this pull request"
	case ev.ActionName == "approved":
		return author, "*approved* this pull request"
	case strings.HasPrefix(ev.ActionName, "commented"):
		if ev.Note == nil {
			return author, ""
		}
		return author, b.noteDescription(ev.Note)
	case strings.HasPrefix(ev.ActionName, "pushed"):
		return author, pushDescription(ev)
	default:
		return nil, ""
	}
}

// noteDescription phrases one comment. A diff note left by someone else is a
// change request on the thread, matching how reviews read on the GitHub side.
func (b *Builder) noteDescription(note *glapi.Note) string {
	body, truncated := truncate(format.StripMarkdown(note.Body), maxBodyLen)
	if truncated {
		body += "..."
	}

	if note.Type == "DiffNote" && note.Author.Username != b.user.Login {
		if body == "" {
			return "*requested changes* on this pull request"
		}
		return "*requested changes*: _" + body + "_"
	}
	if body == "" {
		return ""
	}
	return "*commented*: _" + body + "_"
}

func pushDescription(ev *glapi.ContributionEvent) string {
	push := ev.PushData
	if push.CommitCount > 1 {
		return fmt.Sprintf("*pushed* %d commits to %s", push.CommitCount, push.Ref)
	}
	if push.CommitTitle != "" {
		return "*pushed*: _" + push.CommitTitle + "_"
	}
	return "*pushed* to " + push.Ref
}

func (b *Builder) title(g *EventGroup, latest *glapi.ContributionEvent) string {
	switch {
	case g.Issue != nil:
		return g.Issue.Title
	case g.MR != nil:
		return g.MR.Title
	case latest.TargetTitle != "":
		return latest.TargetTitle
	default:
		return latest.PushData.Ref
	}
}

// repo reconstructs the repository identity from the resource's web URL; the
// events API itself only carries a numeric project id.
func (b *Builder) repo(g *EventGroup, latest *glapi.ContributionEvent) model.Repo {
	repo := model.Repo{
		ID:     strconv.Itoa(latest.ProjectID),
		Domain: b.domain,
	}

	var webURL string
	switch {
	case g.Issue != nil:
		webURL = g.Issue.WebURL
	case g.MR != nil:
		webURL = g.MR.WebURL
	}
	if webURL == "" {
		return repo
	}

	u, err := url.Parse(webURL)
	if err != nil {
		return repo
	}
	path, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/-/")
	if owner, name, ok := strings.Cut(path, "/"); ok {
		repo.Owner = owner
		repo.Name = name
	}
	return repo
}

func (b *Builder) eventURL(g *EventGroup, latest *glapi.ContributionEvent) string {
	var webURL string
	switch {
	case g.Issue != nil:
		webURL = g.Issue.WebURL
	case g.MR != nil:
		webURL = g.MR.WebURL
	default:
		return ""
	}
	if latest.Note != nil && latest.Note.ID != 0 {
		return webURL + "#note_" + strconv.Itoa(latest.Note.ID)
	}
	return webURL
}

// notInvolved reports whether the logged-in user has no stake in the thread:
// not the author, not assigned, not a requested reviewer and not mentioned.
// System notes announcing assignments and review requests are skipped by the
// mention scan; the structured fields already cover those.
func (b *Builder) notInvolved(g *EventGroup) bool {
	login := b.user.Login

	switch {
	case g.Issue != nil:
		if g.Issue.Author != nil && g.Issue.Author.Username == login {
			return false
		}
		for _, a := range g.Issue.Assignees {
			if a.Username == login {
				return false
			}
		}
	case g.MR != nil:
		if g.MR.Author != nil && g.MR.Author.Username == login {
			return false
		}
		for _, a := range g.MR.Assignees {
			if a.Username == login {
				return false
			}
		}
		for _, r := range g.MR.Reviewers {
			if r.Username == login {
				return false
			}
		}
	default:
		// Push-only groups are the user's own activity.
		return false
	}

	mention := "@" + login
	for _, ev := range g.Events {
		note := ev.Note
		if note == nil {
			continue
		}
		if note.System && (strings.HasPrefix(note.Body, "assigned to") || strings.HasPrefix(note.Body, "requested review from")) {
			continue
		}
		if strings.Contains(note.Body, mention) {
			return false
		}
	}
	return true
}

func (b *Builder) priorityInput(n *model.Notification, g *EventGroup) priority.Input {
	in := priority.Input{
		Type:      n.Type,
		Labels:    n.Labels,
		Mentioned: b.mentioned(g),
		User:      b.user.Login,
	}

	switch {
	case g.Issue != nil:
		in.HasResource = true
		in.State = g.Issue.State
		in.Assignees = issueAssignees(g.Issue)
		in.Comments = g.Issue.UserNotesCount
		in.Reactions = g.Issue.Upvotes
	case g.MR != nil:
		in.HasResource = true
		in.State = g.MR.State
		in.Assignees = basicUsernames(g.MR.Assignees)
		in.Comments = g.MR.UserNotesCount
		in.Reactions = g.MR.Upvotes
		for _, r := range g.MR.Reviewers {
			if r.Username == b.user.Login {
				in.ReviewRequested = true
			}
		}
	}
	return in
}

func (b *Builder) mentioned(g *EventGroup) bool {
	mention := "@" + b.user.Login
	for _, ev := range g.Events {
		if ev.Note == nil || ev.Note.System {
			continue
		}
		if strings.Contains(ev.Note.Body, mention) {
			return true
		}
	}
	return false
}

func eventAuthor(ev *glapi.ContributionEvent) *model.User {
	if ev.Author.Username == "" {
		return nil
	}
	return &model.User{
		Login:  ev.Author.Username,
		Name:   ev.Author.Name,
		Avatar: ev.Author.AvatarURL,
	}
}

func issueAuthor(issue *glapi.Issue) *model.User {
	if issue.Author == nil {
		return nil
	}
	return &model.User{
		Login:  issue.Author.Username,
		Name:   issue.Author.Name,
		Avatar: issue.Author.AvatarURL,
	}
}

func basicUser(u *glapi.BasicUser) *model.User {
	if u == nil {
		return nil
	}
	return &model.User{
		Login:  u.Username,
		Name:   u.Name,
		Avatar: u.AvatarURL,
	}
}

func basicUsernames(users []*glapi.BasicUser) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

func issueAssignees(issue *glapi.Issue) []string {
	out := make([]string, 0, len(issue.Assignees))
	for _, a := range issue.Assignees {
		out = append(out, a.Username)
	}
	return out
}

func labelsFrom(labels glapi.Labels) []model.Label {
	if len(labels) == 0 {
		return nil
	}
	out := make([]model.Label, 0, len(labels))
	for _, name := range labels {
		out = append(out, model.Label{Name: name})
	}
	return out
}

func truncate(s string, n int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= n {
		return s, false
	}
	return string(runes[:n]), true
}
