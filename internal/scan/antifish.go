package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// AntiFish posts the domain to the Anti-Fish checker. Positive iff the
// response reports a match.
type AntiFish struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewAntiFish creates an AntiFish provider against the given base URL
// (e.g. "https://anti-fish.bitflow.dev").
func NewAntiFish(baseURL, userAgent string) *AntiFish {
	return &AntiFish{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: providerTimeout},
	}
}

func (a *AntiFish) Name() string { return "AntiFish" }

func (a *AntiFish) Classify(ctx context.Context, domain, scanID string) (*Verdict, error) {
	body, err := json.Marshal(map[string]string{"message": domain})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/check", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("antifish request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var out struct {
		Match bool `json:"match"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("antifish response: %w", err)
	}

	if out.Match {
		return &Verdict{Provider: a.Name(), Category: "phish", ScanID: scanID}, nil
	}
	return nil, nil
}
