package output

import (
	"fmt"
	"io"
	"time"

	"github.com/pvannes/gitpulse/internal/format"
	"github.com/pvannes/gitpulse/internal/model"
)

// MarkdownFormatter renders the feed as a Markdown report, grouped by
// repository.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(list []*model.Notification, w io.Writer) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return nil
	}

	fmt.Fprintln(w, "# Notifications")
	fmt.Fprintf(w, "\n*Generated: %s*\n", time.Now().Format("2006-01-02 15:04"))

	// Group by repository, preserving feed order within and across groups.
	var repos []string
	grouped := make(map[string][]*model.Notification)
	for _, n := range list {
		key := n.Repo.Owner + "/" + n.Repo.Name
		if _, ok := grouped[key]; !ok {
			repos = append(repos, key)
		}
		grouped[key] = append(grouped[key], n)
	}

	for _, repo := range repos {
		fmt.Fprintf(w, "\n## %s\n\n", repo)
		for _, n := range grouped[repo] {
			f.formatItem(n, w)
		}
	}
	return nil
}

func (f *MarkdownFormatter) formatItem(n *model.Notification, w io.Writer) {
	title := n.Title
	if n.URL != "" {
		title = fmt.Sprintf("[%s](%s)", n.Title, n.URL)
	}
	fmt.Fprintf(w, "- %s: %s", title, headline(n))
	if n.Priority != nil {
		fmt.Fprintf(w, " *(%s, %+d)*", n.Priority.Label, n.Priority.Value)
	}
	fmt.Fprintf(w, " · %s\n", format.Age(time.Since(n.Time)))
	if n.Previously != nil {
		prev := format.StripMarkdown(n.Previously.Description)
		if n.Previously.Author != nil {
			prev = n.Previously.Author.Login + " " + prev
		}
		fmt.Fprintf(w, "  - previously: %s\n", prev)
	}
}
