package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"
)

// Stage seams. Each pipeline stage sits behind a narrow interface so the
// orchestrator's failure handling is testable without remote services.
type researcher interface {
	Research(area string) (string, error)
}

type routeExtractor interface {
	Extract(area, research string) ([]CandidateRoute, error)
}

type linkChecker interface {
	Validate(candidates []CandidateRoute) []ValidatedRoute
}

type routeCurator interface {
	Allocate(area string, routes []ValidatedRoute) (*CurationResult, error)
	Reallocate(area string, routes []ValidatedRoute, prev *CurationResult) (*CurationResult, error)
	Totals() Totals
}

type guideComposer interface {
	Compose(area string, set CuratedSet) (string, error)
}

// GuideProcessor sequences the pipeline stages for each queue item and
// owns failure handling, persistence, and queue advancement.
type GuideProcessor struct {
	queue      *WorkQueue
	researcher researcher
	extractor  routeExtractor
	validator  linkChecker
	curator    routeCurator
	composer   guideComposer
	config     *Config
	itemDelay  time.Duration
	limit      int
}

// NewGuideProcessor wires the production stages from configuration.
func NewGuideProcessor(config *Config, exaKey, anthropicKey string, limit int) (*GuideProcessor, error) {
	queue, err := NewWorkQueue(config.Settings.QueueFile)
	if err != nil {
		return nil, err
	}

	research, err := NewResearchClient(config, exaKey)
	if err != nil {
		return nil, fmt.Errorf("creating research client: %w", err)
	}

	gen := NewAnthropicGenerator(config, anthropicKey)

	extractor, err := NewExtractor(config, gen)
	if err != nil {
		return nil, fmt.Errorf("creating extractor: %w", err)
	}
	curator, err := NewCurator(config, gen)
	if err != nil {
		return nil, fmt.Errorf("creating curator: %w", err)
	}
	composer, err := NewComposer(config, gen)
	if err != nil {
		return nil, fmt.Errorf("creating composer: %w", err)
	}

	return &GuideProcessor{
		queue:      queue,
		researcher: research,
		extractor:  extractor,
		validator:  NewLinkValidator(config),
		curator:    curator,
		composer:   composer,
		config:     config,
		itemDelay:  time.Duration(config.Settings.ItemDelaySeconds) * time.Second,
		limit:      limit,
	}, nil
}

// Run processes queue items one at a time until the queue is exhausted (or
// the item limit is reached) and returns the per-item results.
func (gp *GuideProcessor) Run() ([]ProcessingResult, error) {
	var results []ProcessingResult

	for {
		if gp.limit > 0 && len(results) >= gp.limit {
			log.Printf("Reached item limit (%d), stopping", gp.limit)
			break
		}

		area, err := gp.queue.NextPending()
		if err != nil {
			return results, err
		}
		if area == "" {
			log.Printf("✓ No unprocessed areas left in %s", gp.queue.Path)
			break
		}

		if len(results) > 0 {
			time.Sleep(gp.itemDelay)
		}

		log.Printf("📍 Processing area: %s", area)
		filename, err := gp.ProcessArea(area)
		if err != nil {
			log.Printf("✗ Failed %s: %v", area, err)
			results = append(results, ProcessingResult{Area: area, Status: StatusFailed, Error: err})
			if markErr := gp.queue.MarkFailed(area); markErr != nil {
				return results, fmt.Errorf("marking %q failed: %w", area, markErr)
			}
			continue
		}

		log.Printf("✓ Generated: %s", filename)
		results = append(results, ProcessingResult{Area: area, Status: StatusSuccess, Filename: filename})
		if err := gp.queue.MarkDone(area); err != nil {
			return results, fmt.Errorf("marking %q done: %w", area, err)
		}
	}

	gp.logSummary(results)
	return results, nil
}

func (gp *GuideProcessor) logSummary(results []ProcessingResult) {
	succeeded, failed := 0, 0
	for _, result := range results {
		if result.Status == StatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}
	log.Printf("Done: %d succeeded, %d failed", succeeded, failed)
}

// ProcessArea runs the stages for one area in strict sequence and persists
// the resulting guide. Any error is terminal for this area only.
func (gp *GuideProcessor) ProcessArea(area string) (string, error) {
	research, err := gp.researcher.Research(area)
	if err != nil {
		return "", fmt.Errorf("researching: %w", err)
	}

	candidates, err := gp.extractor.Extract(area, research)
	if err != nil {
		return "", fmt.Errorf("extracting: %w", err)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no valid routes extracted for %q", area)
	}

	validated := gp.validator.Validate(candidates)
	if len(validated) == 0 {
		return "", fmt.Errorf("no routes passed link validation for %q", area)
	}

	result, err := gp.curate(area, validated)
	if err != nil {
		return "", fmt.Errorf("curating: %w", err)
	}

	body, err := gp.composer.Compose(area, result.Set)
	if err != nil {
		return "", fmt.Errorf("composing: %w", err)
	}

	filename := gp.guideFilename(area)
	if err := gp.saveGuide(filename, buildGuide(area, body)); err != nil {
		return "", fmt.Errorf("saving guide: %w", err)
	}
	return filename, nil
}

// curate composes the curation attempt with its single compensating retry:
// one stricter re-allocation when the total falls short of the global
// minimum and enough validated routes exist to plausibly reach it. A retry
// that still falls short loses to the original, which is then accepted
// with a warning.
func (gp *GuideProcessor) curate(area string, validated []ValidatedRoute) (*CurationResult, error) {
	result, err := gp.curator.Allocate(area, validated)
	if err != nil {
		return nil, err
	}

	totals := gp.curator.Totals()
	if result.Set.Total() < totals.Min && len(validated) >= totals.Min {
		retry, err := gp.curator.Reallocate(area, validated, result)
		if err != nil {
			return nil, err
		}
		if retry.Set.Total() >= totals.Min {
			result = retry
		}
	}

	if result.Set.Total() == 0 {
		return nil, fmt.Errorf("curation produced an empty set")
	}
	if result.Set.Total() < totals.Min {
		warning := fmt.Sprintf("accepting %d routes, below the global minimum of %d", result.Set.Total(), totals.Min)
		log.Printf("  ⚠ %s", warning)
		result.Warnings = append(result.Warnings, warning)
	}

	return result, nil
}

var nonFilenameChars = regexp.MustCompile(`[^a-z0-9-]`)

// guideFilename derives the output path from the area name: lowercased,
// whitespace removed, every non-alphanumeric except hyphen stripped.
func (gp *GuideProcessor) guideFilename(area string) string {
	slug := strings.ToLower(area)
	slug = strings.Join(strings.Fields(slug), "")
	slug = nonFilenameChars.ReplaceAllString(slug, "")
	return filepath.Join(gp.config.Settings.ContentDir, slug+".mdx")
}

// buildGuide assembles the frontmatter metadata around the reviewed body.
func buildGuide(area, body string) *Guide {
	now := time.Now()
	return &Guide{
		Title:       area + " Climbing Guide",
		Description: fmt.Sprintf("A curated route guide to %s.", area),
		Date:        now.Format("2006-01-02"),
		Tags:        []string{"area", strings.ToLower(area), "trad", "sport", "bouldering"},
		Published:   true,
		Body:        body,
		CreatedAt:   now,
	}
}

// saveGuide renders the guide through the output template and writes it.
func (gp *GuideProcessor) saveGuide(filename string, guide *Guide) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	tmpl, err := template.New("guide").Parse(gp.config.GetGuideTemplate())
	if err != nil {
		return fmt.Errorf("parsing guide template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, guide); err != nil {
		return fmt.Errorf("executing guide template: %w", err)
	}

	return os.WriteFile(filename, buf.Bytes(), 0644)
}
