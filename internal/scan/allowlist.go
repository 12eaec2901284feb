package scan

import "strings"

// allowlist is the fixed set of operationally trusted domains. Links to
// these never reach the classification providers, which keeps external API
// usage bounded. Comparison is exact (no suffix matching): a lookalike
// subdomain like "github.com.evil.example" still gets scanned.
var allowlist = map[string]struct{}{
	"matrix.org":      {},
	"matrix.to":       {},
	"spec.matrix.org": {},
	"view.matrix.org": {},
	"youtube.com":     {},
	"youtu.be":        {},
	"sec.gov":         {},
	"github.com":      {},
	"gitlab.com":      {},
	"tenor.com":       {},
}

// Allowlisted reports whether the domain is statically known-safe.
// Case-insensitive.
func Allowlisted(domain string) bool {
	_, ok := allowlist[strings.ToLower(domain)]
	return ok
}
