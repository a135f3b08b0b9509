package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/pvannes/gitpulse/internal/model"
)

func sampleFeed() []*model.Notification {
	now := time.Now()
	return []*model.Notification{
		{
			ID:          "1",
			From:        model.ProviderGitHub,
			Status:      model.StatusUnread,
			IsNew:       true,
			Time:        now.Add(-5 * time.Minute),
			Title:       "Widget breaks under load",
			Type:        model.TypeIssue,
			Repo:        model.Repo{Owner: "acme", Name: "widgets", Domain: "github.com"},
			Author:      &model.User{Login: "alice"},
			Description: "*closed* this issue",
			Icon:        model.IconCompletedIssue,
			Priority:    &model.PriorityValue{Label: "You are assigned", Value: 4},
			URL:         "https://github.com/acme/widgets/issues/12",
		},
		{
			ID:          "42",
			From:        model.ProviderGitLab,
			Status:      model.StatusRead,
			Time:        now.Add(-3 * time.Hour),
			Title:       "Add gadget pipeline",
			Type:        model.TypePullRequest,
			Repo:        model.Repo{Owner: "acme", Name: "gadgets", Domain: "gitlab.com"},
			Author:      &model.User{Login: "bob"},
			Description: "*requested changes* on this pull request",
			Icon:        model.IconOpenPR,
			NotInvolved: true,
		},
	}
}

func TestTableFormat(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf strings.Builder
	if err := (&TableFormatter{}).Format(sampleFeed(), &buf); err != nil {
		t.Fatalf("Format() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"acme/widgets",
		"alice closed this issue",
		"You are assigned (+4)",
		"bob requested changes on this pull request (not involved)",
		"2 notifications, 1 unread",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}

	// Markdown emphasis must not leak into the table.
	if strings.Contains(out, "*closed*") {
		t.Errorf("raw markdown in output:\n%s", out)
	}
}

func TestTableFormatEmpty(t *testing.T) {
	var buf strings.Builder
	if err := (&TableFormatter{}).Format(nil, &buf); err != nil {
		t.Fatalf("Format() error: %v", err)
	}
	if !strings.Contains(buf.String(), "No notifications.") {
		t.Errorf("got %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf strings.Builder
	if err := (&JSONFormatter{}).Format(sampleFeed(), &buf); err != nil {
		t.Fatalf("Format() error: %v", err)
	}

	var decoded []*model.Notification
	if err := json.Unmarshal([]byte(buf.String()), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].ID != "1" || decoded[1].ID != "42" {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestJSONFormatEmptyIsArray(t *testing.T) {
	var buf strings.Builder
	if err := (&JSONFormatter{}).Format(nil, &buf); err != nil {
		t.Fatalf("Format() error: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty feed should encode as [], got %q", buf.String())
	}
}

func TestMarkdownFormatGroupsByRepo(t *testing.T) {
	var buf strings.Builder
	if err := (&MarkdownFormatter{}).Format(sampleFeed(), &buf); err != nil {
		t.Fatalf("Format() error: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "## acme/widgets") || !strings.Contains(out, "## acme/gadgets") {
		t.Errorf("missing repository sections:\n%s", out)
	}
	if !strings.Contains(out, "[Widget breaks under load](https://github.com/acme/widgets/issues/12)") {
		t.Errorf("missing linked title:\n%s", out)
	}
}
