// Package format provides pure text and state-classification helpers shared
// by the provider builders.
package format

import (
	"regexp"
	"strings"
)

// markdownRules is an ordered rewrite table. Order matters: emphasis must be
// unwrapped before list markers so "* item" bullets are not confused with
// "*bold*" spans that regexp backreferences already consumed.
var markdownRules = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`#+\s`), ""},                      // headers
	{regexp.MustCompile(`(\*{1,2})(.*?)(\*{1,2})`), "$2"}, // emphasis and bold
	{regexp.MustCompile(`~~(.*?)~~`), "$1"},               // strikethrough
	{regexp.MustCompile(`\[(.*?)\]\((.*?)\)`), "$1"},      // links, keep text
	{regexp.MustCompile(`\n- (.*)`), "$1"},                // unordered lists
	{regexp.MustCompile(`\n\d+\. (.*)`), "$1"},            // ordered lists
	{regexp.MustCompile(`(?m)^>\s(.*)$`), ""},             // blockquotes
	{regexp.MustCompile(`(?m)^\[vc\]: #[^\r\n]*`), ""},    // deploy-bot metadata line
}

// StripMarkdown removes markdown syntax from a comment body so it can be
// shown as a one-line plain-text description.
func StripMarkdown(markdown string) string {
	for _, rule := range markdownRules {
		markdown = rule.re.ReplaceAllString(markdown, rule.replacement)
	}
	return strings.TrimSpace(markdown)
}
