// Package output renders a built feed for the terminal.
package output

import (
	"io"

	"github.com/pvannes/gitpulse/internal/model"
)

// Format selects an output renderer.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders a feed to a writer.
type Formatter interface {
	Format(list []*model.Notification, w io.Writer) error
}

// NewFormatter creates a formatter for the given format, defaulting to the
// table renderer.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}
