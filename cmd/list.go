package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pvannes/gitpulse/config"
	"github.com/pvannes/gitpulse/internal/duration"
	"github.com/pvannes/gitpulse/internal/feed"
	"github.com/pvannes/gitpulse/internal/github"
	"github.com/pvannes/gitpulse/internal/gitlab"
	"github.com/pvannes/gitpulse/internal/log"
	"github.com/pvannes/gitpulse/internal/model"
	"github.com/pvannes/gitpulse/internal/output"
	"github.com/spf13/cobra"
)

// NewCmdList creates the list command.
func NewCmdList(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the unified activity feed (same as bare gitpulse)",
		Long: `Polls GitHub notifications and GitLab events, diffs them against the
state persisted from the previous run, and prints the merged feed
sorted by priority.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, opts)
		},
	}

	addListFlags(cmd, opts)
	return cmd
}

// addListFlags adds the list-specific flags to a command.
func addListFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.Format, "output", "o", "", "Output format (table, json, markdown)")
	cmd.Flags().StringVarP(&opts.Since, "since", "s", "", "How far back to poll (e.g. 2d, 1w); defaults to config lookback")
	cmd.Flags().CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Concurrent notification builds (0 = config value)")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "Discard persisted state and poll fresh")
	cmd.Flags().BoolVar(&opts.NoGitHub, "no-github", false, "Skip the GitHub provider for this run")
	cmd.Flags().BoolVar(&opts.NoGitLab, "no-gitlab", false, "Skip the GitLab provider for this run")
}

func runList(cmd *cobra.Command, opts *Options) error {
	ctx := cmd.Context()
	log.Initialize(opts.Verbosity, os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	since, err := pollWindow(opts, cfg)
	if err != nil {
		return err
	}

	var state feed.State
	if !opts.Reset {
		state = loadState()
	}

	ghSource, glSource, err := buildSources(cmd, opts, cfg)
	if err != nil {
		return err
	}

	concurrency := opts.Concurrency
	if concurrency == 0 {
		concurrency = cfg.Concurrency
	}

	svc := feed.NewService(ghSource, glSource, cfg.Rules(), concurrency, func(completed, total int) {
		log.Progress("Polling providers: %d/%d...", completed, total)
	})

	result, err := svc.Poll(ctx, state, since)
	if err != nil {
		log.ProgressClear()
		return err
	}
	log.ProgressDone()

	for _, warning := range result.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", warning)
	}

	list := excludeRepos(result.Notifications, cfg)
	log.Info("feed built", "notifications", len(list), "excluded", len(result.Notifications)-len(list))

	if err := saveState(result.State); err != nil {
		log.Warn("could not persist state", "error", err)
	}

	format := output.Format(opts.Format)
	if format == "" {
		format = output.Format(cfg.DefaultFormat)
	}
	return output.NewFormatter(format).Format(list, os.Stdout)
}

// pollWindow resolves the poll lower bound: the --since flag wins, then the
// config lookback, then one week.
func pollWindow(opts *Options, cfg *config.Config) (time.Time, error) {
	sinceStr := opts.Since
	if sinceStr == "" {
		sinceStr = cfg.Lookback
	}
	if sinceStr == "" {
		sinceStr = "1w"
	}
	since, err := duration.Parse(sinceStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration: %w", err)
	}
	return since, nil
}

// buildSources constructs a client per enabled provider. A provider with no
// token is skipped with a debug log rather than failing the whole run, but at
// least one provider must come up.
func buildSources(cmd *cobra.Command, opts *Options, cfg *config.Config) (feed.GitHubSource, feed.GitLabSource, error) {
	var ghSource feed.GitHubSource
	var glSource feed.GitLabSource

	if cfg.GitHubEnabled() && !opts.NoGitHub {
		if token := cfg.GitHubToken(); token != "" {
			var pats []github.PAT
			for owner, pat := range cfg.ResolvePATs() {
				pats = append(pats, github.PAT{Owner: owner, Token: pat})
			}
			client, err := github.NewClient(cmd.Context(), token, pats)
			if err != nil {
				return nil, nil, err
			}
			ghSource = client
		} else {
			log.Debug("GITHUB_TOKEN not set, skipping GitHub")
		}
	}

	if cfg.GitLabEnabled() && !opts.NoGitLab {
		if token := cfg.GitLabToken(); token != "" {
			client, err := gitlab.NewClient(token, cfg.GitLab.Domain)
			if err != nil {
				return nil, nil, err
			}
			glSource = client
		} else {
			log.Debug("GITLAB_TOKEN not set, skipping GitLab")
		}
	}

	if ghSource == nil && glSource == nil {
		return nil, nil, fmt.Errorf("no providers available: set GITHUB_TOKEN and/or GITLAB_TOKEN")
	}
	return ghSource, glSource, nil
}

func excludeRepos(list []*model.Notification, cfg *config.Config) []*model.Notification {
	if len(cfg.ExcludeRepos) == 0 {
		return list
	}
	out := list[:0]
	for _, n := range list {
		if cfg.IsRepoExcluded(n.Repo.Owner + "/" + n.Repo.Name) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// loadState reads the persisted snapshot state. A missing or unreadable file
// means a first poll, never a failed run.
func loadState() feed.State {
	var state feed.State
	data, err := os.ReadFile(config.StatePath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("could not read state file", "error", err)
		}
		return feed.State{}
	}
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn("state file is corrupt, starting fresh", "error", err)
		return feed.State{}
	}
	return state
}

func saveState(state feed.State) error {
	if err := os.MkdirAll(config.DefaultConfigDir(), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(config.StatePath(), data, 0600)
}
