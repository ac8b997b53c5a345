package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func testCurator(gen Generator, quotas map[string]Quota, totals Totals) *Curator {
	return &Curator{
		gen:         gen,
		quotas:      quotas,
		totals:      totals,
		prompt:      "Curate {{.Area}} with {{.Quotas}} between {{.TotalMin}} and {{.TotalMax}}:\n{{.Routes}}",
		retryPrompt: "Retry {{.Area}} with {{.Quotas}}: previous {{.PreviousTotal}} of {{.AvailableCount}} available, need {{.TotalMin}}-{{.TotalMax}}.\n{{.Routes}}",
		maxTokens:   2000,
	}
}

func openQuotas() map[string]Quota {
	quotas := make(map[string]Quota, len(CategoryOrder))
	for _, category := range CategoryOrder {
		quotas[category] = Quota{Min: 0, Max: 20}
	}
	return quotas
}

func makeRoutes(category string, count int) []ValidatedRoute {
	routes := make([]ValidatedRoute, count)
	for i := range routes {
		name := fmt.Sprintf("%s-route-%d", category, i+1)
		routes[i] = ValidatedRoute{
			CandidateRoute: CandidateRoute{
				Name:     name,
				Grade:    "5.8",
				Style:    StyleTrad,
				Location: "Main Wall",
				Link:     fmt.Sprintf("https://www.mountainproject.com/route/%s/%d", category, i+1),
			},
			Valid: true,
		}
	}
	return routes
}

// allocationResponse builds the JSON the curation prompt asks the model for.
func allocationResponse(t *testing.T, allocation map[string][]ValidatedRoute) string {
	t.Helper()
	payload := allocationPayload{Allocation: make(map[string][]allocationRef)}
	for category, routes := range allocation {
		for _, route := range routes {
			payload.Allocation[category] = append(payload.Allocation[category],
				allocationRef{Name: route.Name, Link: route.Link})
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling allocation fixture: %v", err)
	}
	return string(data)
}

func flatten(groups ...[]ValidatedRoute) []ValidatedRoute {
	var all []ValidatedRoute
	for _, group := range groups {
		all = append(all, group...)
	}
	return all
}

func TestAllocateHappyPath(t *testing.T) {
	classic := makeRoutes(CategoryClassic, 3)
	beginner := makeRoutes(CategoryBeginner, 2)
	routes := flatten(classic, beginner)

	response := allocationResponse(t, map[string][]ValidatedRoute{
		CategoryClassic:  classic,
		CategoryBeginner: beginner,
	})
	gen := &mockGenerator{responses: []string{"```json\n" + response + "\n```"}}
	c := testCurator(gen, openQuotas(), Totals{Min: 3, Max: 10, HardMax: 12})

	result, err := c.Allocate("Rock Canyon", routes)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if result.Set.Total() != 5 {
		t.Errorf("Total() = %d, want 5", result.Set.Total())
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}

	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "Rock Canyon") || !strings.Contains(prompt, classic[0].Name) {
		t.Errorf("prompt missing substituted variables: %q", prompt)
	}
}

func TestAllocateUnknownCategory(t *testing.T) {
	routes := makeRoutes(CategoryClassic, 2)
	response := `{"allocation": {"alpine": [{"name": "` + routes[0].Name + `", "link": "` + routes[0].Link + `"}]}}`
	gen := &mockGenerator{responses: []string{response}}
	c := testCurator(gen, openQuotas(), Totals{Min: 1, Max: 10, HardMax: 12})

	_, err := c.Allocate("Rock Canyon", routes)
	if err == nil || !strings.Contains(err.Error(), "alpine") {
		t.Fatalf("Allocate() error = %v, want unknown category error", err)
	}
}

func TestAllocateDropsFabricatedRoutes(t *testing.T) {
	routes := makeRoutes(CategoryClassic, 2)
	fabricated := ValidatedRoute{CandidateRoute: CandidateRoute{
		Name: "Invented Line",
		Link: "https://www.mountainproject.com/route/999/invented",
	}}

	response := allocationResponse(t, map[string][]ValidatedRoute{
		CategoryClassic: append(routes, fabricated),
	})
	gen := &mockGenerator{responses: []string{response}}
	c := testCurator(gen, openQuotas(), Totals{Min: 1, Max: 10, HardMax: 12})

	result, err := c.Allocate("Rock Canyon", routes)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if got := len(result.Set[CategoryClassic]); got != 2 {
		t.Errorf("classic has %d routes, want 2 (fabricated entry dropped)", got)
	}
}

func TestAllocateDeduplicatesClassicFirst(t *testing.T) {
	classic := makeRoutes(CategoryClassic, 2)
	// Allocate one classic route into intermediate as well.
	response := allocationResponse(t, map[string][]ValidatedRoute{
		CategoryClassic:      classic,
		CategoryIntermediate: {classic[0]},
	})
	gen := &mockGenerator{responses: []string{response}}
	c := testCurator(gen, openQuotas(), Totals{Min: 1, Max: 10, HardMax: 12})

	result, err := c.Allocate("Rock Canyon", classic)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if got := len(result.Set[CategoryClassic]); got != 2 {
		t.Errorf("classic has %d routes, want 2", got)
	}
	if _, ok := result.Set[CategoryIntermediate]; ok {
		t.Error("intermediate should lose its duplicate and be dropped when empty")
	}
	if len(result.Warnings) == 0 {
		t.Error("duplicate allocation should record a warning")
	}
}

func TestAllocateEnforcesCategoryMax(t *testing.T) {
	classic := makeRoutes(CategoryClassic, 4)
	quotas := openQuotas()
	quotas[CategoryClassic] = Quota{Min: 1, Max: 2}

	response := allocationResponse(t, map[string][]ValidatedRoute{CategoryClassic: classic})
	gen := &mockGenerator{responses: []string{response}}
	c := testCurator(gen, quotas, Totals{Min: 1, Max: 10, HardMax: 12})

	result, err := c.Allocate("Rock Canyon", classic)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if got := len(result.Set[CategoryClassic]); got != 2 {
		t.Errorf("classic has %d routes, want 2 after trimming", got)
	}
	if len(result.Warnings) == 0 {
		t.Error("category overflow should record a warning")
	}
}

func TestAllocateEnforcesClassicDominance(t *testing.T) {
	classic := makeRoutes(CategoryClassic, 1)
	beginner := makeRoutes(CategoryBeginner, 3)

	response := allocationResponse(t, map[string][]ValidatedRoute{
		CategoryClassic:  classic,
		CategoryBeginner: beginner,
	})
	gen := &mockGenerator{responses: []string{response}}
	c := testCurator(gen, openQuotas(), Totals{Min: 1, Max: 10, HardMax: 12})

	result, err := c.Allocate("Rock Canyon", flatten(classic, beginner))
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if got := len(result.Set[CategoryBeginner]); got != 1 {
		t.Errorf("beginner has %d routes, want 1 (capped at classic count)", got)
	}
}

func TestAllocateEmptyClassicCollapsesSet(t *testing.T) {
	beginner := makeRoutes(CategoryBeginner, 2)
	response := allocationResponse(t, map[string][]ValidatedRoute{CategoryBeginner: beginner})
	gen := &mockGenerator{responses: []string{response}}
	c := testCurator(gen, openQuotas(), Totals{Min: 1, Max: 10, HardMax: 12})

	result, err := c.Allocate("Rock Canyon", beginner)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if result.Set.Total() != 0 {
		t.Errorf("Total() = %d, want 0 when no classic routes exist", result.Set.Total())
	}
}

func TestAllocateEnforcesHardMax(t *testing.T) {
	classic := makeRoutes(CategoryClassic, 3)
	epic := makeRoutes(CategoryEpic, 3)
	boulders := makeRoutes(CategoryBoulders, 2)

	response := allocationResponse(t, map[string][]ValidatedRoute{
		CategoryClassic:  classic,
		CategoryEpic:     epic,
		CategoryBoulders: boulders,
	})
	gen := &mockGenerator{responses: []string{response}}
	c := testCurator(gen, openQuotas(), Totals{Min: 1, Max: 5, HardMax: 6})

	result, err := c.Allocate("Rock Canyon", flatten(classic, epic, boulders))
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if result.Set.Total() != 6 {
		t.Errorf("Total() = %d, want 6 after truncation", result.Set.Total())
	}
	if _, ok := result.Set[CategoryBoulders]; ok {
		t.Error("boulders should be trimmed away first")
	}
	if got := len(result.Set[CategoryClassic]); got != 3 {
		t.Errorf("classic has %d routes, want 3 (never trimmed)", got)
	}
}

func TestAllocateWarnsOnCategoryShortfall(t *testing.T) {
	classic := makeRoutes(CategoryClassic, 1)
	quotas := openQuotas()
	quotas[CategoryClassic] = Quota{Min: 2, Max: 5}

	response := allocationResponse(t, map[string][]ValidatedRoute{CategoryClassic: classic})
	gen := &mockGenerator{responses: []string{response}}
	c := testCurator(gen, quotas, Totals{Min: 1, Max: 10, HardMax: 12})

	result, err := c.Allocate("Rock Canyon", classic)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if got := len(result.Set[CategoryClassic]); got != 1 {
		t.Errorf("classic has %d routes, want 1 (shortfall keeps routes)", got)
	}
	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "below its minimum") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a shortfall warning", result.Warnings)
	}
}

func TestAllocateBadPayload(t *testing.T) {
	gen := &mockGenerator{responses: []string{"I would allocate the routes as follows..."}}
	c := testCurator(gen, openQuotas(), Totals{Min: 1, Max: 10, HardMax: 12})

	_, err := c.Allocate("Rock Canyon", makeRoutes(CategoryClassic, 1))
	if err == nil {
		t.Fatal("Allocate() should fail on an unparseable payload")
	}
}

func TestReallocatePromptVariables(t *testing.T) {
	classic := makeRoutes(CategoryClassic, 3)
	response := allocationResponse(t, map[string][]ValidatedRoute{CategoryClassic: classic})
	gen := &mockGenerator{responses: []string{response}}
	c := testCurator(gen, openQuotas(), Totals{Min: 5, Max: 10, HardMax: 12})

	prev := &CurationResult{Set: CuratedSet{CategoryClassic: classic[:2]}}
	if _, err := c.Reallocate("Rock Canyon", classic, prev); err != nil {
		t.Fatalf("Reallocate() error = %v", err)
	}

	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "previous 2 of 3 available") {
		t.Errorf("retry prompt missing shortfall context: %q", prompt)
	}
}
