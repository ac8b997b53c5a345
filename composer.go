package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// Composer turns a curated set into the final guide body: a writing pass
// that renders the literal document, then a review pass that re-checks it.
// At most two generation calls per item, never more.
type Composer struct {
	gen          Generator
	introPrompt  string
	reviewPrompt string
	maxTokens    int
	totals       Totals
}

// introPayload is the structured response of the introduction call.
type introPayload struct {
	Intro    string            `json:"intro"`
	Sections map[string]string `json:"sections"`
}

// NewComposer builds a composer from settings and the embedded prompts.
func NewComposer(config *Config, gen Generator) (*Composer, error) {
	introPrompt := config.GetIntroPrompt()
	if !strings.Contains(introPrompt, "{{.Area}}") || !strings.Contains(introPrompt, "{{.Categories}}") {
		return nil, fmt.Errorf("intro prompt template must contain {{.Area}} and {{.Categories}} variables")
	}
	reviewPrompt := config.GetReviewPrompt()
	if !strings.Contains(reviewPrompt, "{{.Draft}}") || !strings.Contains(reviewPrompt, "{{.Routes}}") {
		return nil, fmt.Errorf("review prompt template must contain {{.Draft}} and {{.Routes}} variables")
	}

	return &Composer{
		gen:          gen,
		introPrompt:  introPrompt,
		reviewPrompt: reviewPrompt,
		maxTokens:    config.Settings.Generation.MaxTokens,
		totals:       config.Settings.Totals,
	}, nil
}

// Compose runs the writing pass and the review pass and returns the final
// document body.
func (cp *Composer) Compose(area string, set CuratedSet) (string, error) {
	draft, err := cp.WriteDraft(area, set)
	if err != nil {
		return "", err
	}
	return cp.Review(area, draft, set)
}

// WriteDraft renders the literal-format document: one heading and intro
// sentence per non-empty category, one fixed two-line entry per route.
func (cp *Composer) WriteDraft(area string, set CuratedSet) (string, error) {
	log.Printf("  → Writing draft...")

	intros, err := cp.generateIntros(area, set)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s Climbing Guide\n\n", area)
	b.WriteString(strings.TrimSpace(intros.Intro))
	b.WriteString("\n")

	for _, category := range CategoryOrder {
		routes := set[category]
		if len(routes) == 0 {
			continue
		}

		b.WriteString("\n---\n\n")
		fmt.Fprintf(&b, "## %s\n\n", CategoryHeadings[category])

		if sentence := strings.TrimSpace(intros.Sections[category]); sentence != "" {
			b.WriteString(sentence)
			b.WriteString("\n\n")
		}

		for _, route := range routes {
			fmt.Fprintf(&b, "- **%s** (%s, %s, %s)\n", route.Name, route.Grade, route.Style, route.Location)
			fmt.Fprintf(&b, "- [View on Mountain Project →](%s)\n", route.Link)
		}
	}

	return b.String(), nil
}

// generateIntros asks the generation service for the area introduction and
// one sentence per non-empty category. A malformed response falls back to
// stock intros; only the transport failure is fatal.
func (cp *Composer) generateIntros(area string, set CuratedSet) (*introPayload, error) {
	var categories []string
	for _, category := range CategoryOrder {
		if len(set[category]) > 0 {
			categories = append(categories, category)
		}
	}

	prompt := strings.ReplaceAll(cp.introPrompt, "{{.Area}}", area)
	prompt = strings.ReplaceAll(prompt, "{{.Categories}}", strings.Join(categories, ", "))

	response, err := cp.gen.Complete(prompt, cp.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("intro request: %w", err)
	}

	var intros introPayload
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &intros); err != nil {
		log.Printf("  ⚠ Intro payload unparseable, using stock intros: %v", err)
		return stockIntros(area, categories), nil
	}
	if strings.TrimSpace(intros.Intro) == "" {
		intros.Intro = stockIntros(area, categories).Intro
	}
	return &intros, nil
}

func stockIntros(area string, categories []string) *introPayload {
	sections := make(map[string]string, len(categories))
	for _, category := range categories {
		sections[category] = fmt.Sprintf("A selection of %s at %s.",
			strings.ToLower(CategoryHeadings[category]), area)
	}
	return &introPayload{
		Intro:    fmt.Sprintf("%s offers climbing across the full range of grades and styles.", area),
		Sections: sections,
	}
}

// Review re-submits the draft plus the curated set with the formatting and
// quota checklist and accepts the corrected document as final.
func (cp *Composer) Review(area, draft string, set CuratedSet) (string, error) {
	log.Printf("  → Reviewing draft...")

	routes, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding curated set: %w", err)
	}

	prompt := strings.ReplaceAll(cp.reviewPrompt, "{{.Area}}", area)
	prompt = strings.ReplaceAll(prompt, "{{.TotalMin}}", fmt.Sprintf("%d", cp.totals.Min))
	prompt = strings.ReplaceAll(prompt, "{{.TotalMax}}", fmt.Sprintf("%d", cp.totals.Max))
	prompt = strings.ReplaceAll(prompt, "{{.ClassicHeading}}", CategoryHeadings[CategoryClassic])
	prompt = strings.ReplaceAll(prompt, "{{.Routes}}", string(routes))
	prompt = strings.ReplaceAll(prompt, "{{.Draft}}", draft)

	response, err := cp.gen.Complete(prompt, cp.maxTokens)
	if err != nil {
		return "", fmt.Errorf("review request: %w", err)
	}

	final := stripCodeFence(response)
	log.Printf("✓ Draft reviewed")
	return final, nil
}
