package cmd

import (
	"testing"
	"time"

	"github.com/pvannes/gitpulse/config"
	"github.com/pvannes/gitpulse/internal/model"
	"github.com/spf13/cobra"
)

func TestNew(t *testing.T) {
	cmd := New()
	if cmd == nil {
		t.Fatal("New() returned nil")
	}
	if cmd.Use != "gitpulse" {
		t.Errorf("expected Use to be 'gitpulse', got %q", cmd.Use)
	}
}

func TestNewCmdList(t *testing.T) {
	cmd := NewCmdList(&Options{})
	if cmd == nil {
		t.Fatal("NewCmdList() returned nil")
	}
	if cmd.Use != "list" {
		t.Errorf("expected Use to be 'list', got %q", cmd.Use)
	}
}

func TestNewCmdConfig(t *testing.T) {
	cmd := NewCmdConfig()
	if cmd == nil {
		t.Fatal("NewCmdConfig() returned nil")
	}
	if cmd.Use != "config" {
		t.Errorf("expected Use to be 'config', got %q", cmd.Use)
	}
}

func TestNewCmdVersion(t *testing.T) {
	cmd := NewCmdVersion()
	if cmd == nil {
		t.Fatal("NewCmdVersion() returned nil")
	}
	if cmd.Use != "version" {
		t.Errorf("expected Use to be 'version', got %q", cmd.Use)
	}
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.0.0", "abc123", "2024-01-01")
	if version != "1.0.0" || commit != "abc123" || date != "2024-01-01" {
		t.Errorf("version info not applied: %s %s %s", version, commit, date)
	}
}

func TestPollWindow(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		lookback string
		wantErr  bool
		checkAge time.Duration
	}{
		{"flag wins", "1d", "1w", false, 24 * time.Hour},
		{"config fallback", "", "2d", false, 48 * time.Hour},
		{"builtin default", "", "", false, 7 * 24 * time.Hour},
		{"invalid flag", "soon", "", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &Options{Since: tt.flag}
			cfg := &config.Config{Lookback: tt.lookback}
			since, err := pollWindow(opts, cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			age := time.Since(since)
			if age < tt.checkAge-time.Second || age > tt.checkAge+time.Second {
				t.Errorf("expected age ~%v, got %v", tt.checkAge, age)
			}
		})
	}
}

func TestExcludeRepos(t *testing.T) {
	list := []*model.Notification{
		{ID: "1", Repo: model.Repo{Owner: "acme", Name: "widgets"}},
		{ID: "2", Repo: model.Repo{Owner: "acme", Name: "noisy"}},
	}
	cfg := &config.Config{ExcludeRepos: []string{"acme/noisy"}}

	out := excludeRepos(list, cfg)
	if len(out) != 1 || out[0].ID != "1" {
		t.Errorf("got %+v", out)
	}
}

func TestBuildSourcesWithoutTokens(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITLAB_TOKEN", "")

	_, _, err := buildSources(&cobra.Command{}, &Options{}, &config.Config{})
	if err == nil {
		t.Fatal("expected an error when no provider token is available")
	}
}
