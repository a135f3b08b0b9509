package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/pvannes/gitpulse/internal/model"
)

type fakeFetcher struct {
	payloads map[string]any
}

func (f *fakeFetcher) GetJSON(_ context.Context, url string, v any) error {
	p, ok := f.payloads[url]
	if !ok {
		return &FetchError{URL: url, Status: http.StatusNotFound, Err: errors.New("not found")}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type fakeClient struct {
	fetcher Fetcher
	graphql func(query string, out any) error
}

func (c *fakeClient) FetcherFor(string, bool) Fetcher {
	return c.fetcher
}

func (c *fakeClient) GraphQL(_ context.Context, query string, out any) error {
	if c.graphql == nil {
		return nil
	}
	return c.graphql(query, out)
}

func rawNotification(id, subjectType, title, url string, updated time.Time) *gh.Notification {
	return &gh.Notification{
		ID:        gh.String(id),
		Unread:    gh.Bool(true),
		Reason:    gh.String("subscribed"),
		UpdatedAt: &gh.Timestamp{Time: updated},
		Repository: &gh.Repository{
			ID:       gh.Int64(77),
			FullName: gh.String("acme/widgets"),
			Private:  gh.Bool(false),
			Owner:    &gh.User{Login: gh.String("acme")},
		},
		Subject: &gh.NotificationSubject{
			Title: gh.String(title),
			URL:   gh.String(url),
			Type:  gh.String(subjectType),
		},
	}
}

func newTestBuilder(payloads map[string]any) *Builder {
	client := &fakeClient{fetcher: &fakeFetcher{payloads: payloads}}
	return NewBuilder(client, model.User{Login: "me"}, nil, nil)
}

func TestBuildJustClosedIssue(t *testing.T) {
	updated := time.Date(2026, 1, 2, 10, 0, 5, 0, time.UTC)
	closed := updated.Add(-5 * time.Second)
	issueURL := "https://api.github.com/repos/acme/widgets/issues/12"

	b := newTestBuilder(map[string]any{
		issueURL: &gh.Issue{
			State:       gh.String("closed"),
			StateReason: gh.String("completed"),
			Number:      gh.Int(12),
			CreatedAt:   &gh.Timestamp{Time: updated.Add(-48 * time.Hour)},
			ClosedAt:    &gh.Timestamp{Time: closed},
			ClosedBy:    &gh.User{Login: gh.String("alice")},
			User:        &gh.User{Login: gh.String("bob")},
			HTMLURL:     gh.String("https://github.com/acme/widgets/issues/12"),
		},
	})

	raw := rawNotification("n1", "Issue", "Widget breaks", issueURL, updated)
	n, err := b.Build(context.Background(), raw, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil {
		t.Fatal("expected a notification")
	}
	if n.Description != "*closed* this issue" {
		t.Errorf("description: got %q", n.Description)
	}
	if n.Author == nil || n.Author.Login != "alice" {
		t.Errorf("author: got %+v, want alice", n.Author)
	}
	if n.Creator == nil || n.Creator.Login != "bob" {
		t.Errorf("creator: got %+v, want bob", n.Creator)
	}
	if n.Icon != model.IconCompletedIssue {
		t.Errorf("icon: got %q", n.Icon)
	}
	if n.Opened {
		t.Error("closed issue should not be marked opened")
	}
	if n.Repo.Owner != "acme" || n.Repo.Name != "widgets" || n.Repo.Domain != "github.com" {
		t.Errorf("repo: got %+v", n.Repo)
	}
}

func TestBuildIssueLatestComment(t *testing.T) {
	updated := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	issueURL := "https://api.github.com/repos/acme/widgets/issues/3"
	commentsURL := issueURL + "/comments"

	b := newTestBuilder(map[string]any{
		issueURL: &gh.Issue{
			State:       gh.String("open"),
			Number:      gh.Int(3),
			Comments:    gh.Int(2),
			CommentsURL: gh.String(commentsURL),
			CreatedAt:   &gh.Timestamp{Time: updated.Add(-72 * time.Hour)},
			User:        &gh.User{Login: gh.String("bob")},
			HTMLURL:     gh.String("https://github.com/acme/widgets/issues/3"),
		},
		commentsURL: []*gh.IssueComment{
			{
				User:      &gh.User{Login: gh.String("carol")},
				Body:      gh.String("first"),
				CreatedAt: &gh.Timestamp{Time: updated.Add(-time.Hour)},
			},
			{
				User:      &gh.User{Login: gh.String("dave")},
				Body:      gh.String("**Looks** broken to me"),
				CreatedAt: &gh.Timestamp{Time: updated.Add(-time.Minute)},
				HTMLURL:   gh.String("https://github.com/acme/widgets/issues/3#issuecomment-9"),
			},
		},
	})

	raw := rawNotification("n2", "Issue", "Flaky test", issueURL, updated)
	n, err := b.Build(context.Background(), raw, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil {
		t.Fatal("expected a notification")
	}
	if n.Description != "*commented*: _Looks broken to me_" {
		t.Errorf("description: got %q", n.Description)
	}
	if n.Author == nil || n.Author.Login != "dave" {
		t.Errorf("author: got %+v, want dave", n.Author)
	}
	if !strings.Contains(n.URL, "#issuecomment-9") {
		t.Errorf("url should point at the comment, got %q", n.URL)
	}
	if n.Icon != model.IconOpenIssue || !n.Opened {
		t.Errorf("open issue state: icon %q opened %v", n.Icon, n.Opened)
	}
}

func TestBuildSuppressesUnchangedDescription(t *testing.T) {
	updated := time.Date(2026, 1, 2, 10, 0, 5, 0, time.UTC)
	issueURL := "https://api.github.com/repos/acme/widgets/issues/12"
	payloads := map[string]any{
		issueURL: &gh.Issue{
			State:     gh.String("closed"),
			ClosedAt:  &gh.Timestamp{Time: updated.Add(-5 * time.Second)},
			CreatedAt: &gh.Timestamp{Time: updated.Add(-48 * time.Hour)},
			ClosedBy:  &gh.User{Login: gh.String("alice")},
			User:      &gh.User{Login: gh.String("bob")},
		},
	}
	prev := model.Snapshots{
		"n1": {ID: "n1", Description: "*closed* this issue", Status: model.StatusRead},
	}

	b := newTestBuilder(payloads)
	raw := rawNotification("n1", "Issue", "Widget breaks", issueURL, updated)

	n, err := b.Build(context.Background(), raw, prev, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != nil {
		t.Errorf("unchanged description should be suppressed, got %+v", n)
	}

	// The first poll after startup rebuilds everything, even unchanged.
	n, err = b.Build(context.Background(), raw, prev, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil {
		t.Fatal("first poll should not suppress")
	}
	if n.Previously != nil {
		t.Errorf("same description should not chain a previously, got %+v", n.Previously)
	}
}

func TestBuildPreviouslyOneLevelDeep(t *testing.T) {
	updated := time.Date(2026, 1, 2, 10, 0, 5, 0, time.UTC)
	issueURL := "https://api.github.com/repos/acme/widgets/issues/12"
	b := newTestBuilder(map[string]any{
		issueURL: &gh.Issue{
			State:     gh.String("closed"),
			ClosedAt:  &gh.Timestamp{Time: updated.Add(-5 * time.Second)},
			CreatedAt: &gh.Timestamp{Time: updated.Add(-48 * time.Hour)},
			ClosedBy:  &gh.User{Login: gh.String("alice")},
			User:      &gh.User{Login: gh.String("bob")},
		},
	})
	prev := model.Snapshots{
		"n1": {
			ID:          "n1",
			Author:      &model.User{Login: "dave"},
			Description: "*commented*: _ship it_",
			Previously:  &model.Previously{Author: &model.User{Login: "bob"}, Description: "*opened* this issue"},
		},
	}

	raw := rawNotification("n1", "Issue", "Widget breaks", issueURL, updated)
	n, err := b.Build(context.Background(), raw, prev, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil {
		t.Fatal("expected a notification")
	}
	if n.Previously == nil || n.Previously.Description != "*commented*: _ship it_" {
		t.Errorf("previously: got %+v", n.Previously)
	}
	if n.Previously.Author == nil || n.Previously.Author.Login != "dave" {
		t.Errorf("previously author: got %+v", n.Previously.Author)
	}
}

func TestBuildSkipsInaccessibleRepository(t *testing.T) {
	updated := time.Now()
	issueURL := "https://api.github.com/repos/acme/secret/issues/1"

	var warned string
	client := &fakeClient{fetcher: &fakeFetcher{payloads: map[string]any{}}}
	b := NewBuilder(client, model.User{Login: "me"}, nil, func(msg string) { warned = msg })

	raw := rawNotification("n3", "Issue", "hidden", issueURL, updated)
	raw.Repository.Private = gh.Bool(true)

	n, err := b.Build(context.Background(), raw, nil, true)
	if err != nil {
		t.Fatalf("denied fetch should not error: %v", err)
	}
	if n != nil {
		t.Errorf("expected notification to be skipped, got %+v", n)
	}
	if warned == "" {
		t.Error("expected a user-facing warning")
	}
}

func TestBuildReviewRequestOverridesOnce(t *testing.T) {
	updated := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	prURL := "https://api.github.com/repos/acme/widgets/pulls/8"
	pr := &gh.PullRequest{
		State:     gh.String("open"),
		Number:    gh.Int(8),
		CreatedAt: &gh.Timestamp{Time: updated.Add(-24 * time.Hour)},
		User:      &gh.User{Login: gh.String("bob")},
		HTMLURL:   gh.String("https://github.com/acme/widgets/pull/8"),
	}

	rules := []model.Priority{{Criteria: model.CriteriaReviewRequest, Value: 3}}
	client := &fakeClient{fetcher: &fakeFetcher{payloads: map[string]any{prURL: pr}}}
	b := NewBuilder(client, model.User{Login: "me"}, rules, nil)

	raw := rawNotification("n4", "PullRequest", "Add gadgets", prURL, updated)
	raw.Reason = gh.String("review_requested")

	n, err := b.Build(context.Background(), raw, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil {
		t.Fatal("expected a notification")
	}
	if n.Description != "*requested your review*" {
		t.Errorf("description: got %q", n.Description)
	}
	if n.Priority == nil || n.Priority.Label != "Review requested" {
		t.Errorf("priority: got %+v", n.Priority)
	}

	// A second poll with the request still pending must not resurface it.
	prev := model.Snapshots{"n4": n.ToSnapshot()}
	n2, err := b.Build(context.Background(), raw, prev, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n2 != nil {
		t.Errorf("pending review request should not resurface, got %+v", n2)
	}
}

func TestBuildMergedPullRequest(t *testing.T) {
	updated := time.Date(2026, 1, 2, 10, 0, 3, 0, time.UTC)
	prURL := "https://api.github.com/repos/acme/widgets/pulls/9"
	b := newTestBuilder(map[string]any{
		prURL: &gh.PullRequest{
			State:     gh.String("closed"),
			Merged:    gh.Bool(true),
			Number:    gh.Int(9),
			CreatedAt: &gh.Timestamp{Time: updated.Add(-24 * time.Hour)},
			ClosedAt:  &gh.Timestamp{Time: updated.Add(-3 * time.Second)},
			MergedBy:  &gh.User{Login: gh.String("alice")},
			User:      &gh.User{Login: gh.String("bob")},
			HTMLURL:   gh.String("https://github.com/acme/widgets/pull/9"),
		},
	})

	raw := rawNotification("n5", "PullRequest", "Fix race", prURL, updated)
	n, err := b.Build(context.Background(), raw, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil {
		t.Fatal("expected a notification")
	}
	if n.Description != "*merged* this pull request" {
		t.Errorf("description: got %q", n.Description)
	}
	if n.Author == nil || n.Author.Login != "alice" {
		t.Errorf("author: got %+v, want alice", n.Author)
	}
	if n.Icon != model.IconMergedPR {
		t.Errorf("icon: got %q", n.Icon)
	}
}

func TestBuildCheckSuite(t *testing.T) {
	updated := time.Now()
	raw := rawNotification("n6", "CheckSuite", "CI workflow run failed for main branch", "", updated)

	b := newTestBuilder(nil)
	n, err := b.Build(context.Background(), raw, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil {
		t.Fatal("expected a notification")
	}
	if n.Type != model.TypeWorkflow {
		t.Errorf("type: got %q", n.Type)
	}
	if n.Icon != model.IconWorkflowFail {
		t.Errorf("icon: got %q", n.Icon)
	}
	if n.Title != "CI for main" {
		t.Errorf("title: got %q", n.Title)
	}
	if n.Ref != "main" {
		t.Errorf("ref: got %q", n.Ref)
	}
}

func TestBuildUnsupportedSubject(t *testing.T) {
	raw := rawNotification("n7", "RepositoryInvitation", "join us", "", time.Now())

	b := newTestBuilder(nil)
	n, err := b.Build(context.Background(), raw, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil {
		t.Fatal("expected a notification")
	}
	if n.Icon != model.IconUnsupported {
		t.Errorf("icon: got %q", n.Icon)
	}
	if !strings.Contains(n.Description, "RepositoryInvitation") {
		t.Errorf("description: got %q", n.Description)
	}
}

func TestBuildDiscussionLatestReply(t *testing.T) {
	updated := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	raw := rawNotification("n8", "Discussion", "Roadmap", "", updated)

	client := &fakeClient{
		fetcher: &fakeFetcher{},
		graphql: func(query string, out any) error {
			if !strings.Contains(query, `\"Roadmap\" in:title repo:acme/widgets`) {
				t.Errorf("query missing title/repo filter: %s", query)
			}
			payload := `{"search":{"nodes":[{
				"title":"Roadmap",
				"url":"https://github.com/acme/widgets/discussions/2",
				"viewerSubscription":"SUBSCRIBED",
				"author":{"login":"bob"},
				"comments":{"nodes":[
					{"body":"early","createdAt":"2026-01-02T08:00:00Z","databaseId":100,"author":{"login":"carol"},
					 "replies":{"nodes":[{"body":"late reply","createdAt":"2026-01-02T09:59:00Z","databaseId":101,"author":{"login":"dave"}}]}}
				]}
			}]}}`
			return json.Unmarshal([]byte(payload), out)
		},
	}
	b := NewBuilder(client, model.User{Login: "me"}, nil, nil)

	n, err := b.Build(context.Background(), raw, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil {
		t.Fatal("expected a notification")
	}
	if n.Description != "*commented*: _late reply_" {
		t.Errorf("description: got %q", n.Description)
	}
	if n.Author == nil || n.Author.Login != "dave" {
		t.Errorf("author: got %+v, want dave", n.Author)
	}
	if n.URL != "https://github.com/acme/widgets/discussions/2#discussioncomment-101" {
		t.Errorf("url: got %q", n.URL)
	}
}

func TestLatestPullRequestEventPicksClosest(t *testing.T) {
	updated := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	prURL := "https://api.github.com/repos/acme/widgets/pulls/4"
	pr := &gh.PullRequest{
		URL:               gh.String(prURL),
		Comments:          gh.Int(1),
		Commits:           gh.Int(1),
		CommentsURL:       gh.String(prURL + "/comments"),
		CommitsURL:        gh.String(prURL + "/commits"),
		ReviewCommentsURL: gh.String(prURL + "/review-comments"),
	}

	f := &fakeFetcher{payloads: map[string]any{
		prURL + "/comments": []*gh.IssueComment{{
			User:      &gh.User{Login: gh.String("carol")},
			Body:      gh.String("stale comment"),
			CreatedAt: &gh.Timestamp{Time: updated.Add(-time.Hour)},
		}},
		prURL + "/commits": []*gh.RepositoryCommit{{
			Author: &gh.User{Login: gh.String("dave")},
			Commit: &gh.Commit{
				Message: gh.String("fix flake"),
				Author:  &gh.CommitAuthor{Date: &gh.Timestamp{Time: updated.Add(-10 * time.Second)}},
			},
		}},
		prURL + "/reviews": []*gh.PullRequestReview{},
	}}

	b := newTestBuilder(nil)
	ev, err := b.latestPullRequestEvent(context.Background(), f, pr, updated)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.description != "*committed*: _fix flake_" {
		t.Errorf("description: got %q", ev.description)
	}
	if ev.author == nil || ev.author.Login != "dave" {
		t.Errorf("author: got %+v, want dave", ev.author)
	}
}

func TestReviewDescriptions(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		state    string
		body     string
		expected string
	}{
		{"approved with body", "APPROVED", "nice", "*approved*: _nice_"},
		{"approved bare", "APPROVED", "", "*approved* this pull request"},
		{"changes requested bare", "CHANGES_REQUESTED", "", "*requested changes* on this pull request"},
		{"commented", "COMMENTED", "hmm", "*reviewed*: _hmm_"},
		{"dismissed bare", "DISMISSED", "", "*dismissed review* on this pull request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{payloads: map[string]any{
				"pr/reviews": []*gh.PullRequestReview{{
					State:       gh.String(tt.state),
					Body:        gh.String(tt.body),
					User:        &gh.User{Login: gh.String("erin")},
					SubmittedAt: &gh.Timestamp{Time: now},
				}},
			}}
			ev, err := latestReview(context.Background(), f, "pr")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev == nil {
				t.Fatal("expected an event")
			}
			if ev.description != tt.expected {
				t.Errorf("got %q, want %q", ev.description, tt.expected)
			}
		})
	}
}
