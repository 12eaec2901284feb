package scan

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Verdict is a positive classification result from one provider.
type Verdict struct {
	Provider string // provider name, shown as the detection method
	Category string // raw scam category (e.g. "phish")
	ScanID   string // correlation id threaded through the whole scan
}

// Provider classifies a single domain. A nil verdict with a nil error means
// the provider has no opinion; errors are treated the same way by the
// aggregator, so providers should only return them for logging value.
type Provider interface {
	Name() string
	Classify(ctx context.Context, domain, scanID string) (*Verdict, error)
}

// Aggregator queries providers in fixed priority order and short-circuits
// on the first positive verdict. It performs no negative caching itself;
// an optional VerdictCache can suppress repeat scans of recently-clean
// domains.
type Aggregator struct {
	providers []Provider
	limiter   *rate.Limiter
	cache     *VerdictCache // nil when disabled
}

// NewAggregator creates an aggregator. ratePerMinute bounds provider calls
// across all concurrent scans (0 disables limiting). cache may be nil.
func NewAggregator(providers []Provider, ratePerMinute int, cache *VerdictCache) *Aggregator {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), ratePerMinute)
	}
	return &Aggregator{providers: providers, limiter: limiter, cache: cache}
}

// Scan returns the first positive verdict for the domain, or nil when every
// provider reports no opinion. Provider failures (network errors, timeouts,
// malformed responses) are logged and treated as no opinion.
func (a *Aggregator) Scan(ctx context.Context, domain, scanID string) *Verdict {
	if a.cache.IsClean(ctx, domain) {
		slog.Debug("domain recently scanned clean, skipping providers",
			"domain", domain, "scan_id", scanID)
		return nil
	}

	start := time.Now()
	for _, p := range a.providers {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil
		}

		verdict, err := p.Classify(ctx, domain, scanID)
		if err != nil {
			slog.Error("provider error, continuing",
				"provider", p.Name(), "domain", domain, "scan_id", scanID, "error", err)
			continue
		}
		if verdict != nil {
			slog.Info("positive verdict",
				"provider", p.Name(), "domain", domain, "category", verdict.Category,
				"scan_id", scanID, "elapsed", time.Since(start))
			return verdict
		}
		slog.Info("no opinion from provider",
			"provider", p.Name(), "domain", domain, "scan_id", scanID)
	}

	a.cache.MarkClean(ctx, domain)
	slog.Info("scan completed, domain clean",
		"domain", domain, "scan_id", scanID, "elapsed", time.Since(start))
	return nil
}
