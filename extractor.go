package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
)

// gradePattern recognizes YDS rock grades, V-scale boulder grades, and the
// common ice/mixed/aid tokens.
var gradePattern = regexp.MustCompile(`^(5\.\d{1,2}[a-d]?(/[a-d])?[+-]?|V(B|\d{1,2})[+-]?|WI\d[+-]?|M\d{1,2}|[AC]\d[+-]?)$`)

// routeHosts are the accepted link hosts for candidate routes.
var routeHosts = map[string]bool{
	"www.mountainproject.com": true,
	"mountainproject.com":     true,
}

// Extractor converts unstructured research text into schema-validated
// candidate routes via the generation service.
type Extractor struct {
	gen       Generator
	prompt    string
	maxTokens int
}

// NewExtractor builds an extractor. The prompt template must contain the
// {{.Area}} and {{.Research}} variables.
func NewExtractor(config *Config, gen Generator) (*Extractor, error) {
	prompt := config.GetExtractorPrompt()
	if !strings.Contains(prompt, "{{.Area}}") {
		return nil, fmt.Errorf("extractor prompt template must contain {{.Area}} variable")
	}
	if !strings.Contains(prompt, "{{.Research}}") {
		return nil, fmt.Errorf("extractor prompt template must contain {{.Research}} variable")
	}

	return &Extractor{
		gen:       gen,
		prompt:    prompt,
		maxTokens: config.Settings.Generation.MaxTokens,
	}, nil
}

// Extract returns either a fully valid candidate list or an empty list with
// a logged cause. A single malformed record invalidates the whole batch.
func (e *Extractor) Extract(area, research string) ([]CandidateRoute, error) {
	log.Printf("  → Extracting routes...")

	prompt := strings.ReplaceAll(e.prompt, "{{.Area}}", area)
	prompt = strings.ReplaceAll(prompt, "{{.Research}}", research)

	response, err := e.gen.Complete(prompt, e.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}

	payload := stripCodeFence(response)
	debugf("extraction payload: %d bytes", len(payload))

	var candidates []CandidateRoute
	if err := json.Unmarshal([]byte(payload), &candidates); err != nil {
		log.Printf("✗ Extraction payload is not a valid route list: %v", err)
		return nil, nil
	}

	for i, candidate := range candidates {
		if err := validateCandidate(candidate); err != nil {
			log.Printf("✗ Extraction rejected: record %d (%q): %v", i+1, candidate.Name, err)
			return nil, nil
		}
	}

	log.Printf("✓ Extracted %d candidate routes", len(candidates))
	return candidates, nil
}

// validateCandidate checks one record against the candidate schema.
func validateCandidate(r CandidateRoute) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("empty name")
	}
	if !gradePattern.MatchString(strings.TrimSpace(r.Grade)) {
		return fmt.Errorf("unrecognized grade %q", r.Grade)
	}
	if !isKnownStyle(r.Style) {
		return fmt.Errorf("unknown style %q", r.Style)
	}
	if strings.TrimSpace(r.Location) == "" {
		return fmt.Errorf("empty location")
	}
	return validateRouteLink(r.Link)
}

func isKnownStyle(s Style) bool {
	for _, known := range KnownStyles {
		if s == known {
			return true
		}
	}
	return false
}

// validateRouteLink requires a well-formed Mountain Project route or area
// URL.
func validateRouteLink(link string) error {
	parsed, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("malformed link %q: %w", link, err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("link %q: unsupported scheme %q", link, parsed.Scheme)
	}
	if !routeHosts[parsed.Host] {
		return fmt.Errorf("link %q: unexpected host %q", link, parsed.Host)
	}
	if !strings.HasPrefix(parsed.Path, "/route/") && !strings.HasPrefix(parsed.Path, "/area/") {
		return fmt.Errorf("link %q: path does not match a known pattern", link)
	}
	return nil
}
