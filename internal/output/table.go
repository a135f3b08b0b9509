package output

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/pvannes/gitpulse/internal/format"
	"github.com/pvannes/gitpulse/internal/model"
)

// ansiRegex matches ANSI escape sequences.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// TableFormatter renders the feed as a terminal table.
type TableFormatter struct{}

// hyperlink wraps text in an OSC 8 terminal hyperlink. color.NoColor doubles
// as the "plain output" signal, so piped output stays clean.
func hyperlink(text, url string) string {
	if color.NoColor || url == "" {
		return text
	}
	return fmt.Sprintf("\033]8;;%s\033\\%s\033]8;;\033\\", url, text)
}

func stripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// displayWidth returns the visible width of a string in terminal columns,
// accounting for wide runes and ignoring ANSI escapes.
func displayWidth(s string) int {
	return runewidth.StringWidth(stripAnsi(s))
}

// truncateToWidth cuts a string down to maxWidth display columns, appending
// an ellipsis when it had to cut.
func truncateToWidth(s string, maxWidth int) string {
	plain := stripAnsi(s)
	if runewidth.StringWidth(plain) <= maxWidth {
		return s
	}
	return runewidth.Truncate(plain, maxWidth, "...")
}

func padRight(s string, targetWidth int) string {
	if w := displayWidth(s); w < targetWidth {
		return s + strings.Repeat(" ", targetWidth-w)
	}
	return s
}

var iconGlyphs = map[model.Icon]string{
	model.IconOpenIssue:      "●",
	model.IconCompletedIssue: "✓",
	model.IconClosedIssue:    "⊘",
	model.IconOpenPR:         "▶",
	model.IconDraftPR:        "▷",
	model.IconMergedPR:       "◆",
	model.IconClosedPR:       "▶",
	model.IconCommit:         "⟳",
	model.IconRelease:        "⚑",
	model.IconDiscussion:     "☰",
	model.IconWorkflowPass:   "✓",
	model.IconWorkflowFail:   "✗",
}

func iconGlyph(icon model.Icon) string {
	glyph, ok := iconGlyphs[icon]
	if !ok {
		return "?"
	}
	switch icon {
	case model.IconOpenIssue, model.IconOpenPR, model.IconWorkflowPass:
		return color.GreenString(glyph)
	case model.IconCompletedIssue, model.IconMergedPR:
		return color.MagentaString(glyph)
	case model.IconClosedIssue, model.IconClosedPR, model.IconWorkflowFail:
		return color.RedString(glyph)
	default:
		return glyph
	}
}

func statusMarker(n *model.Notification) string {
	switch {
	case n.Status == model.StatusPinned:
		return color.YellowString("*")
	case n.Status == model.StatusUnread && n.IsNew:
		return color.CyanString("+")
	case n.Status == model.StatusUnread:
		return color.CyanString("•")
	default:
		return " "
	}
}

// headline renders "who did what", flattening the description's markdown for
// the terminal.
func headline(n *model.Notification) string {
	text := format.StripMarkdown(n.Description)
	if n.Author != nil && n.Author.Login != "" {
		text = n.Author.Login + " " + text
	}
	if n.NotInvolved {
		text += " (not involved)"
	}
	return text
}

func priorityCell(p *model.PriorityValue) string {
	if p == nil {
		return ""
	}
	cell := fmt.Sprintf("%s (%+d)", p.Label, p.Value)
	if p.Value > 0 {
		return color.YellowString(cell)
	}
	return cell
}

// Format renders the feed, one row per notification, already in feed order.
func (f *TableFormatter) Format(list []*model.Notification, w io.Writer) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return nil
	}

	const (
		colAge      = 5
		colRepo     = 24
		colTitle    = 36
		colHeadline = 44
	)

	fmt.Fprintf(w, "   %-*s  %-*s    %-*s  %-*s  %s\n",
		colAge, "Age",
		colRepo, "Repository",
		colTitle, "Title",
		colHeadline, "Update",
		"Priority")
	fmt.Fprintln(w, strings.Repeat("-", colAge+colRepo+colTitle+colHeadline+25))

	unread := 0
	for _, n := range list {
		if n.Status == model.StatusUnread {
			unread++
		}

		repo := truncateToWidth(n.Repo.Owner+"/"+n.Repo.Name, colRepo)
		title := hyperlink(truncateToWidth(n.Title, colTitle), n.URL)
		update := truncateToWidth(headline(n), colHeadline)

		fmt.Fprintf(w, "%s  %-*s  %s  %s  %s  %s  %s\n",
			statusMarker(n),
			colAge, format.Age(time.Since(n.Time)),
			padRight(repo, colRepo),
			iconGlyph(n.Icon),
			padRight(title, colTitle),
			padRight(update, colHeadline),
			priorityCell(n.Priority),
		)
	}

	fmt.Fprintf(w, "\n%d notifications, %d unread\n", len(list), unread)
	return nil
}
