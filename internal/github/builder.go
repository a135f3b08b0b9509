package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/pvannes/gitpulse/internal/format"
	"github.com/pvannes/gitpulse/internal/log"
	"github.com/pvannes/gitpulse/internal/model"
	"github.com/pvannes/gitpulse/internal/priority"
)

// freshWindow is how close a resource's created_at/closed_at must be to the
// notification's updated_at to count as "just opened"/"just closed".
const freshWindow = 30 * time.Second

// ProviderClient is the slice of Client the builder needs. It exists so
// builder tests can swap in fakes.
type ProviderClient interface {
	FetcherFor(owner string, private bool) Fetcher
	GraphQL(ctx context.Context, query string, out any) error
}

// Builder turns one raw GitHub notification plus the previous snapshot into
// a unified feed record. It holds read-only per-poll state: the logged-in
// user and the priority rules are explicit inputs, not ambient lookups.
type Builder struct {
	client ProviderClient
	user   model.User
	rules  []model.Priority
	warn   func(msg string)
}

// NewBuilder creates a Builder. warn receives the process-wide user-facing
// warning when a private repository cannot be read; it may be nil.
func NewBuilder(client ProviderClient, user model.User, rules []model.Priority, warn func(string)) *Builder {
	if warn == nil {
		warn = func(string) {}
	}
	return &Builder{client: client, user: user, rules: rules, warn: warn}
}

// resource is the supplementary payload fetched from the notification's
// subject URL, discriminated at decode time by the subject type.
type resource struct {
	issue   *gh.Issue
	pr      *gh.PullRequest
	commit  *gh.RepositoryCommit
	release *gh.RepositoryRelease
}

func (r resource) empty() bool {
	return r.issue == nil && r.pr == nil && r.commit == nil && r.release == nil
}

// Build produces the feed record for one raw notification, or nil when the
// notification is not newsworthy (unchanged description, no signal) or had
// to be skipped for lack of access. Transient fetch failures propagate.
func (b *Builder) Build(ctx context.Context, raw *gh.Notification, prev model.Snapshots, firstPoll bool) (*model.Notification, error) {
	id := raw.GetID()
	var prevSnap *model.Snapshot
	if snap, ok := prev[id]; ok {
		prevSnap = &snap
	}

	repo := raw.GetRepository()
	owner, name, _ := strings.Cut(repo.GetFullName(), "/")
	fetcher := b.client.FetcherFor(owner, repo.GetPrivate())

	res, err := b.fetchResource(ctx, fetcher, raw)
	if err != nil {
		if fe, ok := AsFetchError(err); ok && fe.AccessDenied() {
			b.warn(fmt.Sprintf(
				"At least one notification comes from a private repository (%s) for which you have not configured a personal access token.",
				repo.GetFullName()))
			log.Debug("skipping inaccessible notification", "id", id, "repo", repo.GetFullName(), "status", fe.Status)
			return nil, nil
		}
		return nil, err
	}

	n := &model.Notification{
		ID:     id,
		From:   model.ProviderGitHub,
		Status: carryStatus(raw.GetUnread(), prevSnap),
		IsNew:  raw.GetUnread() && (prevSnap == nil || prevSnap.Status != model.StatusUnread),
		Time:   raw.GetUpdatedAt().Time,
		Title:  raw.GetSubject().GetTitle(),
		Repo: model.Repo{
			ID:     strconv.FormatInt(repo.GetID(), 10),
			Owner:  owner,
			Name:   name,
			Domain: "github.com",
		},
		OwnerAvatar: repo.GetOwner().GetAvatarURL(),
	}
	if prevSnap != nil {
		n.Muted = prevSnap.Muted
	}

	switch raw.GetSubject().GetType() {
	case "Commit":
		b.buildCommit(n, res.commit)
	case "Issue":
		if err := b.buildIssue(ctx, fetcher, n, res.issue, raw); err != nil {
			return nil, err
		}
	case "PullRequest":
		if err := b.buildPullRequest(ctx, fetcher, n, res.pr, raw, prevSnap); err != nil {
			return nil, err
		}
	case "Release":
		b.buildRelease(n, res.release)
	case "Discussion":
		if err := b.buildDiscussion(ctx, n, raw); err != nil {
			return nil, err
		}
	case "CheckSuite":
		b.buildCheckSuite(n, raw)
	default:
		n.Type = model.TypeWorkflow
		n.Icon = model.IconUnsupported
		n.Description = fmt.Sprintf("'%s' notifications are not yet fully supported", raw.GetSubject().GetType())
	}

	// Newsworthiness gate: nothing to say, or nothing changed since the
	// previous poll.
	if n.Description == "" {
		return nil, nil
	}
	if !firstPoll && prevSnap != nil && prevSnap.Description == n.Description {
		return nil, nil
	}

	n.Previously = model.CarryPreviously(prevSnap, n.Description)
	n.Priority = priority.Score(b.rules, b.priorityInput(n, res, raw))
	return n, nil
}

// carryStatus reconciles the provider's unread flag with the stored state:
// a fresh unread always wins, otherwise the previous status is kept.
func carryStatus(unread bool, prev *model.Snapshot) model.Status {
	if unread || prev == nil {
		return model.StatusUnread
	}
	return prev.Status
}

func (b *Builder) fetchResource(ctx context.Context, f Fetcher, raw *gh.Notification) (resource, error) {
	var res resource
	url := raw.GetSubject().GetURL()
	if url == "" {
		return res, nil
	}

	var err error
	switch raw.GetSubject().GetType() {
	case "Issue":
		res.issue = &gh.Issue{}
		err = f.GetJSON(ctx, url, res.issue)
	case "PullRequest":
		res.pr = &gh.PullRequest{}
		err = f.GetJSON(ctx, url, res.pr)
	case "Commit":
		res.commit = &gh.RepositoryCommit{}
		err = f.GetJSON(ctx, url, res.commit)
	case "Release":
		res.release = &gh.RepositoryRelease{}
		err = f.GetJSON(ctx, url, res.release)
	}
	if err != nil {
		return resource{}, err
	}
	return res, nil
}

func (b *Builder) buildCommit(n *model.Notification, commit *gh.RepositoryCommit) {
	n.Type = model.TypeCommit
	n.Icon = model.IconCommit
	n.Description = "*made a commit*"
	if commit == nil {
		return
	}
	n.URL = commit.GetHTMLURL()
	if commit.Author != nil {
		n.Author = userFrom(commit.Author)
	} else {
		n.Author = &model.User{Login: commit.GetCommit().GetAuthor().GetName()}
	}
}

func (b *Builder) buildIssue(ctx context.Context, f Fetcher, n *model.Notification, issue *gh.Issue, raw *gh.Notification) error {
	if issue == nil {
		return nil
	}
	updated := raw.GetUpdatedAt().Time
	state := issue.GetState()

	var author *model.User
	description := ""
	url := issue.GetHTMLURL()

	switch {
	case state == "open" && updated.Sub(issue.GetCreatedAt().Time) < freshWindow:
		author = userFrom(issue.GetUser())
		description = "*opened* this issue"
	case state == "closed" && updated.Sub(issue.GetClosedAt().Time) < freshWindow:
		if closedBy := issue.GetClosedBy(); closedBy != nil {
			author = userFrom(closedBy)
		}
		description = "*closed* this issue"
	case issue.GetComments() > 0:
		ev, err := latestComment(ctx, f, issue.GetCommentsURL())
		if err != nil {
			return err
		}
		if ev != nil {
			author = ev.author
			description = ev.description
			if ev.url != "" {
				url = ev.url
			}
		}
	}

	n.Type = model.TypeIssue
	n.Author = author
	n.Creator = userFrom(issue.GetUser())
	n.Description = description
	n.Icon = format.IssueIcon(state, issue.GetStateReason())
	n.Opened = state == "open"
	n.Number = issue.GetNumber()
	n.Labels = labelsFrom(issue.Labels)
	n.URL = url
	return nil
}

func (b *Builder) buildPullRequest(ctx context.Context, f Fetcher, n *model.Notification, pr *gh.PullRequest, raw *gh.Notification, prevSnap *model.Snapshot) error {
	if pr == nil {
		return nil
	}
	updated := raw.GetUpdatedAt().Time
	state := pr.GetState()
	reason := raw.GetReason()

	var author *model.User
	description := ""
	url := pr.GetHTMLURL()

	// The review-request description only overrides once: re-applying it on
	// every poll would keep resurfacing an unchanged request.
	reviewRequested := func() {
		if prevSnap != nil && prevSnap.Priority != nil && prevSnap.Priority.Label == priority.ReviewRequestLabel {
			return
		}
		author = userFrom(pr.GetUser())
		description = "*requested your review*"
	}

	switch {
	case state == "open" && updated.Sub(pr.GetCreatedAt().Time) < freshWindow && reason != "review_requested":
		author = userFrom(pr.GetUser())
		description = "*opened* this pull request"
	case state == "closed" && updated.Sub(pr.GetClosedAt().Time) < freshWindow:
		if mergedBy := pr.GetMergedBy(); mergedBy != nil {
			author = userFrom(mergedBy)
			description = "*merged* this pull request"
		} else {
			author = userFrom(pr.GetUser())
			description = "*closed* this pull request"
		}
	case pr.GetReviewComments() > 0 || pr.GetComments() > 0 || pr.GetCommits() > 0:
		ev, err := b.latestPullRequestEvent(ctx, f, pr, updated)
		if err != nil {
			return err
		}
		if ev != nil && updated.Sub(ev.time) < freshWindow {
			author = ev.author
			description = ev.description
			if ev.url != "" {
				url = ev.url
			}
		} else if reason == "review_requested" {
			reviewRequested()
		}
	case reason == "review_requested":
		reviewRequested()
	}

	n.Type = model.TypePullRequest
	n.Author = author
	n.Creator = userFrom(pr.GetUser())
	n.Description = description
	n.Icon = format.PullRequestIcon(state, pr.GetMerged(), pr.GetDraft())
	n.Opened = state == "open"
	n.Number = pr.GetNumber()
	n.Labels = labelsFrom(pr.Labels)
	n.URL = url
	return nil
}

func (b *Builder) buildRelease(n *model.Notification, release *gh.RepositoryRelease) {
	n.Type = model.TypeRelease
	n.Icon = model.IconRelease
	n.Description = "made a release"
	if release == nil {
		return
	}
	n.Author = userFrom(release.GetAuthor())
	n.URL = release.GetHTMLURL()
	n.Labels = []model.Label{{Name: release.GetTagName(), Color: "FFFFFF"}}
	if release.GetPrerelease() {
		n.Labels = append(n.Labels, model.Label{Name: "pre-release", Color: "FFA723"})
	}
}

// buildCheckSuite parses the workflow name, status and branch out of the
// notification title by word position. GitHub gives no structured payload
// for workflow notifications, so this inherits the provider's fragility.
func (b *Builder) buildCheckSuite(n *model.Notification, raw *gh.Notification) {
	n.Type = model.TypeWorkflow

	title := raw.GetSubject().GetTitle()
	words := strings.Split(title, " ")
	if len(words) < 5 {
		n.Icon = model.IconUnsupported
		n.Description = "Workflow run"
		return
	}

	workflow := words[0]
	status := words[3]
	branch := words[len(words)-2]

	n.Title = workflow + " for " + branch
	n.Description = "Workflow run " + status
	n.URL = fmt.Sprintf("https://github.com/%s/pull/%s", raw.GetRepository().GetFullName(), branch)
	n.Ref = branch

	switch {
	case strings.Contains(title, "succeeded"):
		n.Icon = model.IconWorkflowPass
	case strings.Contains(title, "failed"):
		n.Icon = model.IconWorkflowFail
	default:
		n.Icon = model.IconClosedIssue
	}
}

func (b *Builder) priorityInput(n *model.Notification, res resource, raw *gh.Notification) priority.Input {
	reason := raw.GetReason()
	in := priority.Input{
		Type:            n.Type,
		Labels:          n.Labels,
		Mentioned:       reason == "mention" || reason == "team_mention",
		ReviewRequested: reason == "review_requested",
		User:            b.user.Login,
	}

	switch {
	case res.issue != nil:
		in.HasResource = true
		in.State = res.issue.GetState()
		in.Assignees = logins(res.issue.Assignees)
		in.Comments = res.issue.GetComments()
		in.Reactions = res.issue.GetReactions().GetTotalCount()
	case res.pr != nil:
		in.HasResource = true
		in.State = res.pr.GetState()
		in.Assignees = logins(res.pr.Assignees)
		in.Comments = res.pr.GetComments()
	}
	return in
}

func userFrom(u *gh.User) *model.User {
	if u == nil {
		return nil
	}
	return &model.User{
		Login:  u.GetLogin(),
		Avatar: u.GetAvatarURL(),
		Bot:    u.GetType() == "Bot",
	}
}

func labelsFrom(labels []*gh.Label) []model.Label {
	if len(labels) == 0 {
		return nil
	}
	out := make([]model.Label, 0, len(labels))
	for _, l := range labels {
		out = append(out, model.Label{Name: l.GetName(), Color: l.GetColor()})
	}
	return out
}

func logins(users []*gh.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.GetLogin())
	}
	return out
}
