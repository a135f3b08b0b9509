// Package config loads the application configuration: tokens come from the
// environment (optionally via a .env file), everything else from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pvannes/gitpulse/internal/model"
	"github.com/pvannes/gitpulse/internal/priority"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	DefaultFormat string   `yaml:"default_format,omitempty"`
	Lookback      string   `yaml:"lookback,omitempty"`
	Concurrency   int      `yaml:"concurrency,omitempty"`
	ExcludeRepos  []string `yaml:"exclude_repos,omitempty"`

	GitHub     GitHubConfig     `yaml:"github,omitempty"`
	GitLab     GitLabConfig     `yaml:"gitlab,omitempty"`
	Priorities []model.Priority `yaml:"priorities,omitempty"`
}

// GitHubConfig holds GitHub-specific settings. The primary token comes from
// GITHUB_TOKEN; per-owner personal access tokens for private repositories
// name the environment variable holding the token rather than the token
// itself, so the YAML file stays safe to commit.
type GitHubConfig struct {
	Enabled *bool            `yaml:"enabled,omitempty"`
	PATs    map[string]string `yaml:"pats,omitempty"`
}

// GitLabConfig holds GitLab-specific settings. The token comes from
// GITLAB_TOKEN; setting a domain enables self-hosted instances.
type GitLabConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Domain  string `yaml:"domain,omitempty"`
}

// GitHubEnabled reports whether the GitHub provider should poll. A provider
// is on unless explicitly disabled.
func (c *Config) GitHubEnabled() bool {
	return c.GitHub.Enabled == nil || *c.GitHub.Enabled
}

// GitLabEnabled reports whether the GitLab provider should poll.
func (c *Config) GitLabEnabled() bool {
	return c.GitLab.Enabled == nil || *c.GitLab.Enabled
}

// GitHubToken returns the primary GitHub token from the environment.
func (c *Config) GitHubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

// GitLabToken returns the GitLab token from the environment.
func (c *Config) GitLabToken() string {
	return os.Getenv("GITLAB_TOKEN")
}

// ResolvePATs maps repository owners to tokens, resolving each configured
// environment variable name. Owners whose variable is unset are dropped.
func (c *Config) ResolvePATs() map[string]string {
	if len(c.GitHub.PATs) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.GitHub.PATs))
	for owner, envName := range c.GitHub.PATs {
		if token := os.Getenv(envName); token != "" {
			out[owner] = token
		}
	}
	return out
}

// IsRepoExcluded checks if a repository is in the exclude list.
func (c *Config) IsRepoExcluded(fullName string) bool {
	for _, excluded := range c.ExcludeRepos {
		if excluded == fullName {
			return true
		}
	}
	return false
}

// Rules returns the configured priority rules, falling back to the built-in
// defaults.
func (c *Config) Rules() []model.Priority {
	if len(c.Priorities) > 0 {
		return c.Priorities
	}
	return priority.DefaultRules
}

// Validate rejects configs whose priority rules the engine cannot evaluate.
func (c *Config) Validate() error {
	for i, p := range c.Priorities {
		if !p.Criteria.Valid() {
			return fmt.Errorf("priorities[%d]: invalid criteria %q", i, p.Criteria)
		}
		if p.Criteria.NeedsSpecifier() && p.Specifier == "" {
			return fmt.Errorf("priorities[%d]: criteria %q requires a specifier", i, p.Criteria)
		}
		if p.Value == 0 {
			return fmt.Errorf("priorities[%d]: zero-valued rule has no effect", i)
		}
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	switch c.DefaultFormat {
	case "", "table", "json", "markdown":
	default:
		return fmt.Errorf("unknown default_format %q", c.DefaultFormat)
	}
	return nil
}

// DefaultConfigDir returns the default config directory.
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".gitpulse"
	}
	return filepath.Join(configDir, "gitpulse")
}

// ConfigPath returns the path to the global config file.
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current
// directory.
func LocalConfigPath() string {
	return ".gitpulse.yaml"
}

// StatePath returns the path of the persisted snapshot state.
func StatePath() string {
	return filepath.Join(DefaultConfigDir(), "state.json")
}

// Load reads the configuration: a .env file if present, then the global
// config, then a local .gitpulse.yaml merged on top.
func Load() (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := &Config{DefaultFormat: "table"}

	if data, err := os.ReadFile(ConfigPath()); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse global config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read global config: %w", err)
	}

	if data, err := os.ReadFile(LocalConfigPath()); err == nil {
		var local Config
		if err := yaml.Unmarshal(data, &local); err != nil {
			return nil, fmt.Errorf("parse local config: %w", err)
		}
		merge(cfg, &local)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read local config: %w", err)
	}

	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = "table"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays local values onto the global config. Set local values win;
// unset ones keep the global value.
func merge(global, local *Config) {
	if local.DefaultFormat != "" {
		global.DefaultFormat = local.DefaultFormat
	}
	if local.Lookback != "" {
		global.Lookback = local.Lookback
	}
	if local.Concurrency != 0 {
		global.Concurrency = local.Concurrency
	}
	if len(local.ExcludeRepos) > 0 {
		global.ExcludeRepos = local.ExcludeRepos
	}
	if len(local.Priorities) > 0 {
		global.Priorities = local.Priorities
	}
	if local.GitHub.Enabled != nil {
		global.GitHub.Enabled = local.GitHub.Enabled
	}
	if len(local.GitHub.PATs) > 0 {
		global.GitHub.PATs = local.GitHub.PATs
	}
	if local.GitLab.Enabled != nil {
		global.GitLab.Enabled = local.GitLab.Enabled
	}
	if local.GitLab.Domain != "" {
		global.GitLab.Domain = local.GitLab.Domain
	}
}

// Save writes the configuration to the global config path.
func (c *Config) Save() error {
	if err := os.MkdirAll(DefaultConfigDir(), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ToYAML returns the config as a YAML string.
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// MinimalConfig returns a starter config file template.
func MinimalConfig() string {
	return `# gitpulse configuration file
# Tokens come from the environment: GITHUB_TOKEN and GITLAB_TOKEN
# (a .env file next to the binary is loaded automatically).

# Output format: table, json or markdown
default_format: table

# How far back to poll, e.g. 2d or 1w (optional)
# lookback: 1w

# Self-hosted GitLab (optional)
# gitlab:
#   domain: gitlab.example.com

# Personal access tokens for private repositories, by owner.
# Values name the environment variable holding the token.
# github:
#   pats:
#     my-org: GITPULSE_PAT_MY_ORG

# Priority rules; each matched rule adds its value to the score.
# priorities:
#   - criteria: mentioned
#     value: 6
#   - criteria: label
#     specifier: bug
#     value: 2
#   - criteria: state
#     specifier: closed
#     value: -8
`
}
