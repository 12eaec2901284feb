package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const providerTimeout = 10 * time.Second

// FishFish queries the FishFish domain database. A domain is positive iff
// its category is "phishing".
type FishFish struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewFishFish creates a FishFish provider against the given base URL
// (e.g. "https://api.fishfish.gg").
func NewFishFish(baseURL, userAgent string) *FishFish {
	return &FishFish{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: providerTimeout},
	}
}

func (f *FishFish) Name() string { return "FishFish" }

// Classify looks the domain up. Unknown domains come back 404, which is a
// no-opinion, not an error.
func (f *FishFish) Classify(ctx context.Context, domain, scanID string) (*Verdict, error) {
	endpoint := f.baseURL + "/v1/domains/" + url.PathEscape(domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fishfish request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Not listed (404) or provider trouble; either way, no opinion.
		return nil, nil
	}

	var out struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("fishfish response: %w", err)
	}

	if strings.EqualFold(out.Category, "phishing") {
		return &Verdict{Provider: f.Name(), Category: "phish", ScanID: scanID}, nil
	}
	return nil, nil
}
