package web

import (
	"regexp"
	"strings"
)

// blockClosingTags are replaced with a newline before tags are stripped, so
// block-level structure survives as line breaks.
var blockClosingTags = regexp.MustCompile(`(?i)</(p|div|br|li|tr|h[1-6]|section|article|header|footer)\s*>`)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

var blankLines = regexp.MustCompile(`\n{3,}`)

// entities is the fixed decode set; &amp; must be decoded last so a
// literal "&amp;lt;" doesn't double-unescape into "<".
var entities = []struct{ from, to string }{
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", "\""},
	{"&apos;", "'"},
	{"&#39;", "'"},
	{"&#x27;", "'"},
	{"&nbsp;", " "},
	{"&amp;", "&"},
}

// StripHTML converts HTML to plain text via a two-pass state machine:
// replace block-closing tags with newlines, drop remaining <...> spans,
// decode a fixed entity set, then collapse blank lines. It is idempotent on
// already-plain text: no tags and no entities from the decoded set survive
// a second pass.
func StripHTML(html string) string {
	withBreaks := blockClosingTags.ReplaceAllString(html, "\n")
	stripped := tagPattern.ReplaceAllString(withBreaks, "")
	for _, e := range entities {
		stripped = strings.ReplaceAll(stripped, e.from, e.to)
	}
	collapsed := blankLines.ReplaceAllString(stripped, "\n\n")
	lines := strings.Split(collapsed, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
