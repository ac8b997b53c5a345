package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// negativeMarkers force a fetched page to be treated as dead even when the
// server answered 200.
var negativeMarkers = []string{
	"not found",
	"page doesn't exist",
	"page you requested doesn't exist",
	"no longer available",
}

// positiveMarkers are route-page content indicators. At least one must be
// present for a link to count as live.
var positiveMarkers = []string{
	"yds",
	"avg stars",
	"fa:",
	"page views",
}

// LinkValidator probes each candidate's external link and keeps only the
// routes whose pages are live route pages.
type LinkValidator struct {
	client    *http.Client
	converter *md.Converter
	limiter   *RateLimiter
	delay     time.Duration
}

// NewLinkValidator builds a validator with the configured pacing.
func NewLinkValidator(config *Config) *LinkValidator {
	return &LinkValidator{
		client:    &http.Client{Timeout: 30 * time.Second},
		converter: md.NewConverter("", true, nil),
		limiter:   NewRateLimiter(config.Settings.Validator.RequestsPerMinute, time.Minute),
		delay:     time.Duration(config.Settings.Validator.RequestDelayMs) * time.Millisecond,
	}
}

// Validate checks every candidate sequentially with a fixed inter-request
// delay and returns only the routes that passed. A failed fetch marks the
// route invalid; it is never fatal to the batch.
func (v *LinkValidator) Validate(candidates []CandidateRoute) []ValidatedRoute {
	log.Printf("  → Validating %d route links...", len(candidates))

	valid := make([]ValidatedRoute, 0, len(candidates))
	for i, candidate := range candidates {
		if err := v.checkLink(candidate.Link); err != nil {
			log.Printf("  ✗ Dropping %q: %v", candidate.Name, err)
		} else {
			valid = append(valid, ValidatedRoute{CandidateRoute: candidate, Valid: true})
		}

		if i < len(candidates)-1 {
			time.Sleep(v.delay)
		}
	}

	log.Printf("✓ %d of %d routes passed link validation", len(valid), len(candidates))
	return valid
}

// checkLink fetches the link and applies the content heuristic: no negative
// marker present and at least one positive marker present.
func (v *LinkValidator) checkLink(link string) error {
	content, err := v.fetch(link)
	if err != nil {
		return err
	}

	if markdown, err := v.converter.ConvertString(content); err == nil {
		content = markdown
	}
	content = strings.ToLower(content)

	for _, marker := range negativeMarkers {
		if strings.Contains(content, marker) {
			return fmt.Errorf("page contains %q", marker)
		}
	}
	for _, marker := range positiveMarkers {
		if strings.Contains(content, marker) {
			return nil
		}
	}
	return fmt.Errorf("page has no route content markers")
}

func (v *LinkValidator) fetch(link string) (string, error) {
	v.pace(link)

	resp, err := v.client.Get(link)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: link}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", link, err)
	}
	return string(body), nil
}

// pace blocks until the link's host has request budget left.
func (v *LinkValidator) pace(link string) {
	parsed, err := url.Parse(link)
	if err != nil {
		return
	}
	for !v.limiter.Allow(parsed.Host) {
		wait := v.limiter.Wait(parsed.Host)
		if wait <= 0 {
			wait = 100 * time.Millisecond
		}
		time.Sleep(wait)
	}
}
