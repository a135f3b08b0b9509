// Package feed orchestrates one poll cycle: fetch raw activity from both
// providers in parallel, build unified notification records against the
// previous snapshots, and hand back a sorted feed plus the state to persist.
package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/pvannes/gitpulse/internal/github"
	"github.com/pvannes/gitpulse/internal/gitlab"
	"github.com/pvannes/gitpulse/internal/model"
	glapi "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc is called as provider fetches complete.
type ProgressFunc func(completed, total int)

// GitHubSource is the slice of the GitHub client the service needs.
type GitHubSource interface {
	github.ProviderClient
	AuthenticatedUser(ctx context.Context) (model.User, error)
	ListNotifications(ctx context.Context, since time.Time, all bool) ([]*gh.Notification, error)
}

// GitLabSource is the slice of the GitLab client the service needs.
type GitLabSource interface {
	gitlab.ResourceFetcher
	AuthenticatedUser(ctx context.Context) (model.User, error)
	ListEvents(ctx context.Context, since time.Time) ([]*glapi.ContributionEvent, error)
	Domain() string
}

// State is the snapshot set callers persist between polls, one namespace per
// provider so ids never collide across them.
type State struct {
	GitHub []model.Snapshot `json:"github"`
	GitLab []model.Snapshot `json:"gitlab"`
}

// Empty reports whether this is the feed's first-ever poll.
func (s State) Empty() bool {
	return len(s.GitHub) == 0 && len(s.GitLab) == 0
}

// Result is the outcome of one poll cycle.
type Result struct {
	Notifications []*model.Notification
	State         State
	// Warnings is the partial-failure side channel: user-facing strings for
	// notifications that had to be skipped, deduplicated.
	Warnings []string
}

// Service runs poll cycles. Either provider may be absent.
type Service struct {
	github      GitHubSource
	gitlab      GitLabSource
	rules       []model.Priority
	concurrency int
	onProgress  ProgressFunc
}

// NewService creates a Service. concurrency bounds per-notification builds;
// values below 1 fall back to 8. onProgress may be nil.
func NewService(ghSource GitHubSource, glSource GitLabSource, rules []model.Priority, concurrency int, onProgress ProgressFunc) *Service {
	if concurrency < 1 {
		concurrency = 8
	}
	return &Service{
		github:      ghSource,
		gitlab:      glSource,
		rules:       rules,
		concurrency: concurrency,
		onProgress:  onProgress,
	}
}

func (s *Service) reportProgress(completed, total int) {
	if s.onProgress != nil {
		s.onProgress(completed, total)
	}
}

// Poll runs one cycle. prev is the persisted state from the last cycle (zero
// value on first run); since bounds the provider queries (zero means
// provider defaults). Partial results are discarded wholesale on error.
func (s *Service) Poll(ctx context.Context, prev State, since time.Time) (*Result, error) {
	firstPoll := prev.Empty()

	total := 0
	if s.github != nil {
		total++
	}
	if s.gitlab != nil {
		total++
	}
	s.reportProgress(0, total)

	var (
		mu        sync.Mutex
		completed int
		ghList    []*model.Notification
		glList    []*model.Notification
		warnings  = make(map[string]struct{})
	)
	warn := func(msg string) {
		mu.Lock()
		warnings[msg] = struct{}{}
		mu.Unlock()
	}
	done := func() {
		mu.Lock()
		completed++
		c := completed
		mu.Unlock()
		s.reportProgress(c, total)
	}

	g, gctx := errgroup.WithContext(ctx)

	if s.github != nil {
		g.Go(func() error {
			list, err := s.pollGitHub(gctx, model.MakeSnapshots(prev.GitHub), since, firstPoll, warn)
			if err != nil {
				return fmt.Errorf("github: %w", err)
			}
			mu.Lock()
			ghList = list
			mu.Unlock()
			done()
			return nil
		})
	}

	if s.gitlab != nil {
		g.Go(func() error {
			list, err := s.pollGitLab(gctx, model.MakeSnapshots(prev.GitLab), since)
			if err != nil {
				return fmt.Errorf("gitlab: %w", err)
			}
			mu.Lock()
			glList = list
			mu.Unlock()
			done()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Notifications: append(ghList, glList...),
		State: State{
			GitHub: nextSnapshots(prev.GitHub, ghList),
			GitLab: nextSnapshots(prev.GitLab, glList),
		},
	}
	for msg := range warnings {
		result.Warnings = append(result.Warnings, msg)
	}
	sort.Strings(result.Warnings)
	Sort(result.Notifications)
	return result, nil
}

func (s *Service) pollGitHub(ctx context.Context, prev model.Snapshots, since time.Time, firstPoll bool, warn func(string)) ([]*model.Notification, error) {
	user, err := s.github.AuthenticatedUser(ctx)
	if err != nil {
		return nil, err
	}
	raws, err := s.github.ListNotifications(ctx, since, true)
	if err != nil {
		return nil, err
	}

	builder := github.NewBuilder(s.github, user, s.rules, warn)
	results := make([]*model.Notification, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, raw := range raws {
		g.Go(func() error {
			n, err := builder.Build(gctx, raw, prev, firstPoll)
			if err != nil {
				return err
			}
			results[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return compact(results), nil
}

func (s *Service) pollGitLab(ctx context.Context, prev model.Snapshots, since time.Time) ([]*model.Notification, error) {
	user, err := s.gitlab.AuthenticatedUser(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.gitlab.ListEvents(ctx, since)
	if err != nil {
		return nil, err
	}
	groups, err := gitlab.Group(ctx, s.gitlab, events)
	if err != nil {
		return nil, err
	}

	builder := gitlab.NewBuilder(user, s.gitlab.Domain(), s.rules)
	var out []*model.Notification
	for _, group := range groups {
		if n := builder.Build(group, prev); n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// nextSnapshots folds this cycle's builds over the previous state. Snapshots
// for units that were suppressed or absent this cycle survive untouched, so
// an unchanged thread stays suppressed on the next poll too.
func nextSnapshots(prev []model.Snapshot, built []*model.Notification) []model.Snapshot {
	index := make(map[string]int, len(prev))
	out := make([]model.Snapshot, len(prev))
	copy(out, prev)
	for i, snap := range out {
		index[snap.ID] = i
	}

	for _, n := range built {
		snap := n.ToSnapshot()
		if i, ok := index[snap.ID]; ok {
			out[i] = snap
		} else {
			out = append(out, snap)
		}
	}
	return out
}

// Sort orders a feed in place: pinned first, then by priority value
// descending, then most recent first.
func Sort(list []*model.Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		pi := list[i].Status == model.StatusPinned
		pj := list[j].Status == model.StatusPinned
		if pi != pj {
			return pi
		}
		vi := priorityValue(list[i])
		vj := priorityValue(list[j])
		if vi != vj {
			return vi > vj
		}
		return list[i].Time.After(list[j].Time)
	})
}

func priorityValue(n *model.Notification) int {
	if n.Priority == nil {
		return 0
	}
	return n.Priority.Value
}

func compact(list []*model.Notification) []*model.Notification {
	out := list[:0]
	for _, n := range list {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
