package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// dedupePriority decides which category keeps a route allocated twice:
// classic wins, then document order.
var dedupePriority = []string{
	CategoryClassic,
	CategoryBeginner,
	CategoryIntermediate,
	CategoryHard,
	CategoryEpic,
	CategoryBoulders,
}

// trimPriority is the order categories give up routes when the total
// exceeds the hard maximum. Classic is never trimmed.
var trimPriority = []string{
	CategoryBoulders,
	CategoryEpic,
	CategoryHard,
	CategoryIntermediate,
	CategoryBeginner,
}

// CurationResult is a finalized allocation plus any warnings recorded while
// enforcing the set invariants.
type CurationResult struct {
	Set      CuratedSet
	Warnings []string
}

// Curator allocates validated routes into quota-bounded categories by
// delegating the allocation choice to the generation service and enforcing
// the curated-set invariants on whatever comes back.
type Curator struct {
	gen         Generator
	quotas      map[string]Quota
	totals      Totals
	prompt      string
	retryPrompt string
	maxTokens   int
}

type allocationPayload struct {
	Allocation map[string][]allocationRef `json:"allocation"`
}

type allocationRef struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// NewCurator builds a curator from settings and the embedded prompts.
func NewCurator(config *Config, gen Generator) (*Curator, error) {
	prompt := config.GetCuratorPrompt()
	retryPrompt := config.GetRetryPrompt()
	for _, variable := range []string{"{{.Area}}", "{{.Quotas}}", "{{.Routes}}"} {
		if !strings.Contains(prompt, variable) {
			return nil, fmt.Errorf("curator prompt template must contain %s variable", variable)
		}
		if !strings.Contains(retryPrompt, variable) {
			return nil, fmt.Errorf("curator retry prompt template must contain %s variable", variable)
		}
	}

	return &Curator{
		gen:         gen,
		quotas:      config.Settings.Quotas,
		totals:      config.Settings.Totals,
		prompt:      prompt,
		retryPrompt: retryPrompt,
		maxTokens:   config.Settings.Generation.MaxTokens,
	}, nil
}

// Totals exposes the global count constraints for the retry decision.
func (c *Curator) Totals() Totals {
	return c.totals
}

// Allocate is the first curation attempt.
func (c *Curator) Allocate(area string, routes []ValidatedRoute) (*CurationResult, error) {
	log.Printf("  → Curating %d routes...", len(routes))

	prompt := c.fillPrompt(c.prompt, area, routes)
	return c.curate(prompt, routes)
}

// Reallocate is the single compensating attempt after a quota shortfall,
// with a stricter prompt demanding the global minimum be met.
func (c *Curator) Reallocate(area string, routes []ValidatedRoute, prev *CurationResult) (*CurationResult, error) {
	log.Printf("  → Curation total %d below minimum %d, retrying once...", prev.Set.Total(), c.totals.Min)

	prompt := c.fillPrompt(c.retryPrompt, area, routes)
	prompt = strings.ReplaceAll(prompt, "{{.PreviousTotal}}", strconv.Itoa(prev.Set.Total()))
	prompt = strings.ReplaceAll(prompt, "{{.AvailableCount}}", strconv.Itoa(len(routes)))
	return c.curate(prompt, routes)
}

func (c *Curator) fillPrompt(template, area string, routes []ValidatedRoute) string {
	prompt := strings.ReplaceAll(template, "{{.Area}}", area)
	prompt = strings.ReplaceAll(prompt, "{{.Quotas}}", c.quotaRules())
	prompt = strings.ReplaceAll(prompt, "{{.TotalMin}}", strconv.Itoa(c.totals.Min))
	prompt = strings.ReplaceAll(prompt, "{{.TotalMax}}", strconv.Itoa(c.totals.Max))
	prompt = strings.ReplaceAll(prompt, "{{.TotalHardMax}}", strconv.Itoa(c.totals.HardMax))
	prompt = strings.ReplaceAll(prompt, "{{.Routes}}", routesJSON(routes))
	return prompt
}

func (c *Curator) quotaRules() string {
	var rules []string
	for _, category := range CategoryOrder {
		quota, ok := c.quotas[category]
		if !ok {
			continue
		}
		rules = append(rules, fmt.Sprintf("- %s: between %d and %d routes", category, quota.Min, quota.Max))
	}
	return strings.Join(rules, "\n")
}

func routesJSON(routes []ValidatedRoute) string {
	records := make([]CandidateRoute, len(routes))
	for i, route := range routes {
		records[i] = route.CandidateRoute
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// curate runs one generation call and turns the response into a finalized
// curated set.
func (c *Curator) curate(prompt string, routes []ValidatedRoute) (*CurationResult, error) {
	response, err := c.gen.Complete(prompt, c.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("curation request: %w", err)
	}

	debugf("allocation response: %d bytes", len(response))

	var payload allocationPayload
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &payload); err != nil {
		return nil, fmt.Errorf("parsing curation payload: %w", err)
	}

	set, err := c.resolve(payload, routes)
	if err != nil {
		return nil, err
	}

	return c.finalize(set), nil
}

// resolve maps allocation references back onto the validated routes.
// Unknown category names fail the allocation; references to routes that
// were never validated are dropped with a log line.
func (c *Curator) resolve(payload allocationPayload, routes []ValidatedRoute) (CuratedSet, error) {
	byIdentity := make(map[string]ValidatedRoute, len(routes))
	for _, route := range routes {
		byIdentity[route.Identity()] = route
	}

	set := make(CuratedSet)
	for category, refs := range payload.Allocation {
		if _, ok := c.quotas[category]; !ok {
			return nil, fmt.Errorf("allocation references unknown category %q", category)
		}
		for _, ref := range refs {
			route, ok := byIdentity[ref.Name+"|"+ref.Link]
			if !ok {
				log.Printf("  ⚠ Dropping fabricated allocation entry %q (%s)", ref.Name, ref.Link)
				continue
			}
			set[category] = append(set[category], route)
		}
	}
	return set, nil
}

// finalize enforces the curated-set invariants: cross-category uniqueness,
// per-category maximums, classic dominance, and the global hard maximum.
func (c *Curator) finalize(set CuratedSet) *CurationResult {
	result := &CurationResult{Set: set}

	c.dedupe(result)
	c.enforceCategoryMax(result)
	c.enforceClassicDominance(result)
	c.enforceHardMax(result)

	for _, category := range CategoryOrder {
		quota, ok := c.quotas[category]
		if !ok {
			continue
		}
		if len(set[category]) < quota.Min {
			result.warn("category %s has %d routes, below its minimum of %d",
				category, len(set[category]), quota.Min)
		}
	}

	return result
}

// dedupe keeps each route identity in exactly one category.
func (c *Curator) dedupe(result *CurationResult) {
	seen := make(map[string]string)
	for _, category := range dedupePriority {
		routes := result.Set[category]
		kept := routes[:0]
		for _, route := range routes {
			if owner, dup := seen[route.Identity()]; dup {
				result.warn("route %q allocated to both %s and %s, keeping %s",
					route.Name, owner, category, owner)
				continue
			}
			seen[route.Identity()] = category
			kept = append(kept, route)
		}
		if len(kept) == 0 {
			delete(result.Set, category)
		} else {
			result.Set[category] = kept
		}
	}
}

func (c *Curator) enforceCategoryMax(result *CurationResult) {
	for category, quota := range c.quotas {
		if routes := result.Set[category]; len(routes) > quota.Max {
			result.warn("category %s has %d routes, trimming to its maximum of %d",
				category, len(routes), quota.Max)
			result.Set[category] = routes[:quota.Max]
		}
	}
}

// enforceClassicDominance caps every other category at the classic count so
// classic is always tied for the largest section.
func (c *Curator) enforceClassicDominance(result *CurationResult) {
	classicCount := len(result.Set[CategoryClassic])
	for category, routes := range result.Set {
		if category == CategoryClassic || len(routes) <= classicCount {
			continue
		}
		result.warn("category %s has %d routes, trimming to classic count %d",
			category, len(routes), classicCount)
		if classicCount == 0 {
			delete(result.Set, category)
		} else {
			result.Set[category] = routes[:classicCount]
		}
	}
}

// enforceHardMax trims overflow from the lowest-priority categories until
// the total fits under the hard ceiling. No retry happens for oversupply.
func (c *Curator) enforceHardMax(result *CurationResult) {
	total := result.Set.Total()
	if total <= c.totals.HardMax {
		return
	}
	result.warn("total %d exceeds hard maximum %d, truncating", total, c.totals.HardMax)

	for _, category := range trimPriority {
		for total > c.totals.HardMax && len(result.Set[category]) > 0 {
			routes := result.Set[category]
			result.Set[category] = routes[:len(routes)-1]
			total--
		}
		if len(result.Set[category]) == 0 {
			delete(result.Set, category)
		}
	}
}

func (r *CurationResult) warn(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	log.Printf("  ⚠ %s", message)
	r.Warnings = append(r.Warnings, message)
}
