package scan

import (
	"regexp"
	"strings"
)

// Markdown stripping mirrors what the message renderer removes before URL
// extraction: formatting characters go away, link and image targets are
// kept as the visible text only.
var (
	codeFenceRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`([^`]*)`")
	imageRe      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	emphasisRe   = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)([^*_~]+)(\*{1,3}|_{1,3}|~~)`)
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	blockquoteRe = regexp.MustCompile(`(?m)^[ \t]*>+[ \t]?`)
	listMarkerRe = regexp.MustCompile(`(?m)^[ \t]*([-*+]|\d+\.)[ \t]+`)
	horizontalRe = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
)

// StripMarkdown removes markdown formatting from a message body so that the
// URL extractor sees plain text. Link syntax keeps both the label and the
// target, since either may carry the URL being scanned.
func StripMarkdown(s string) string {
	s = codeFenceRe.ReplaceAllString(s, " ")
	s = imageRe.ReplaceAllString(s, "$1")
	s = linkRe.ReplaceAllString(s, "$1 $2")
	s = inlineCodeRe.ReplaceAllString(s, "$1")
	s = horizontalRe.ReplaceAllString(s, "")
	s = headingRe.ReplaceAllString(s, "")
	s = blockquoteRe.ReplaceAllString(s, "")
	s = listMarkerRe.ReplaceAllString(s, "")
	// Emphasis can nest ("***bold italic***"); two passes cover that.
	s = emphasisRe.ReplaceAllString(s, "$2")
	s = emphasisRe.ReplaceAllString(s, "$2")
	return strings.TrimSpace(s)
}
