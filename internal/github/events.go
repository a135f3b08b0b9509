package github

import (
	"context"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/pvannes/gitpulse/internal/format"
	"github.com/pvannes/gitpulse/internal/model"
	"golang.org/x/sync/errgroup"
)

// maxBodyLen caps how much of a comment or review body ends up in the
// one-line description.
const maxBodyLen = 100

// latestEvent is the most recent comment, commit or review on a thread,
// reduced to headline form.
type latestEvent struct {
	author      *model.User
	description string
	time        time.Time
	url         string
}

// latestPullRequestEvent fans out to the PR's comment, review-comment,
// commit and review feeds concurrently, then picks whichever latest entry
// sits closest in time to the notification's updated_at.
func (b *Builder) latestPullRequestEvent(ctx context.Context, f Fetcher, pr *gh.PullRequest, updated time.Time) (*latestEvent, error) {
	candidates := make([]*latestEvent, 4)
	g, gctx := errgroup.WithContext(ctx)

	if pr.GetReviewComments() > 0 {
		g.Go(func() error {
			ev, err := latestComment(gctx, f, pr.GetReviewCommentsURL())
			candidates[0] = ev
			return err
		})
	}
	if pr.GetComments() > 0 {
		g.Go(func() error {
			ev, err := latestComment(gctx, f, pr.GetCommentsURL())
			candidates[1] = ev
			return err
		})
	}
	if pr.GetCommits() > 0 {
		g.Go(func() error {
			ev, err := latestCommit(gctx, f, pr.GetCommitsURL())
			candidates[2] = ev
			return err
		})
	}
	g.Go(func() error {
		ev, err := latestReview(gctx, f, pr.GetURL())
		candidates[3] = ev
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return closestTo(candidates, updated), nil
}

// closestTo returns the candidate whose time has the smallest absolute
// delta to the reference time. Ordering among the fetches carries no
// meaning; only the delta decides.
func closestTo(candidates []*latestEvent, ref time.Time) *latestEvent {
	var best *latestEvent
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if best == nil || absDelta(c.time, ref) < absDelta(best.time, ref) {
			best = c
		}
	}
	return best
}

func absDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

func latestComment(ctx context.Context, f Fetcher, url string) (*latestEvent, error) {
	var comments []*gh.IssueComment
	if err := f.GetJSON(ctx, url, &comments); err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return nil, nil
	}

	c := comments[len(comments)-1]
	return &latestEvent{
		author:      userFrom(c.GetUser()),
		description: commentDescription(c.GetBody()),
		time:        c.GetCreatedAt().Time,
		url:         c.GetHTMLURL(),
	}, nil
}

func latestCommit(ctx context.Context, f Fetcher, url string) (*latestEvent, error) {
	var commits []*gh.RepositoryCommit
	if err := f.GetJSON(ctx, url, &commits); err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, nil
	}

	c := commits[len(commits)-1]
	ev := &latestEvent{
		description: "*committed*: _" + c.GetCommit().GetMessage() + "_",
		time:        c.GetCommit().GetAuthor().GetDate().Time,
	}
	if c.Author != nil {
		ev.author = userFrom(c.Author)
	} else {
		ev.author = &model.User{Login: c.GetCommit().GetAuthor().GetName()}
	}
	return ev, nil
}

func latestReview(ctx context.Context, f Fetcher, apiURL string) (*latestEvent, error) {
	var reviews []*gh.PullRequestReview
	if err := f.GetJSON(ctx, apiURL+"/reviews", &reviews); err != nil {
		return nil, err
	}
	if len(reviews) == 0 {
		return nil, nil
	}

	r := reviews[len(reviews)-1]
	body, truncated := truncate(format.StripMarkdown(r.GetBody()), maxBodyLen)

	var description string
	switch r.GetState() {
	case "APPROVED":
		description = "*approved*"
	case "CHANGES_REQUESTED":
		description = "*requested changes*"
	case "COMMENTED":
		description = "*reviewed*"
	case "DISMISSED":
		description = "*dismissed review*"
	default:
		return nil, nil
	}

	if body != "" {
		if truncated {
			body += "..."
		}
		description += ": _" + body + "_"
	} else {
		switch r.GetState() {
		case "CHANGES_REQUESTED", "DISMISSED":
			description += " on this pull request"
		default:
			description += " this pull request"
		}
	}

	return &latestEvent{
		author:      userFrom(r.GetUser()),
		description: description,
		time:        r.GetSubmittedAt().Time,
		url:         r.GetHTMLURL(),
	}, nil
}

// commentDescription renders a stripped, length-capped comment body as a
// headline.
func commentDescription(body string) string {
	text, truncated := truncate(format.StripMarkdown(body), maxBodyLen)
	if truncated {
		text += "..."
	}
	return "*commented*: _" + text + "_"
}

func truncate(s string, n int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= n {
		return s, false
	}
	return string(runes[:n]), true
}
