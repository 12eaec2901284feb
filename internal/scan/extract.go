package scan

import "regexp"

// Candidate is one URL-like substring found in a message, with the pieces
// the pipeline cares about split out.
type Candidate struct {
	Raw    string // the full match as it appeared in the text
	Scheme string // "https://", "//" etc., empty for bare domains
	Domain string // full domain incl. subdomains, or IPv4 literal; empty for scheme://host matches without a dot
	Path   string // "/x", "?q" or "#f" tail, empty when absent
}

// urlPattern matches bare domains, domain+path forms, IPv4 literals and
// scheme://host forms without a TLD. Unicode domain labels (\x{00a1} and
// up) are accepted so IDN domains are not missed.
var urlPattern = regexp.MustCompile(
	`(?P<scheme>(?:[a-z]{4,5}:)?//)?` +
		`(?:\S+@)?` +
		`(?P<domain>(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]\d|\d)(?:\.(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]\d|\d)){3}` +
		`|(?:[a-z\x{00a1}-\x{ffff}0-9_-]+\.)+[a-z\x{00a1}-\x{ffff}]{2,})` +
		`(?::\d{2,5})?` +
		`(?P<path>[/?#][^\s"]*)?` +
		`|(?P<bare>(?:[a-z]{4,5}:)?//[a-z\x{00a1}-\x{ffff}0-9_-]+)`,
)

var (
	schemeIdx = urlPattern.SubexpIndex("scheme")
	domainIdx = urlPattern.SubexpIndex("domain")
	pathIdx   = urlPattern.SubexpIndex("path")
	bareIdx   = urlPattern.SubexpIndex("bare")
)

// ExtractURLs returns every URL candidate in the text, in left-to-right
// order. Re-running on the same text yields an identical sequence. No
// matches means an empty slice, never an error. Candidates from the
// scheme://host alternative carry an empty Domain; the pipeline skips
// those, matching how the extractor treats TLD-less hosts as unscannable.
func ExtractURLs(text string) []Candidate {
	matches := urlPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		c := Candidate{
			Raw:    m[0],
			Scheme: m[schemeIdx],
			Domain: m[domainIdx],
			Path:   m[pathIdx],
		}
		if c.Domain == "" && m[bareIdx] != "" {
			c.Raw = m[bareIdx]
		}
		candidates = append(candidates, c)
	}
	return candidates
}
