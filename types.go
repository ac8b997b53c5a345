package main

import "time"

// Style is the closed set of climbing styles a route can carry.
type Style string

const (
	StyleTrad    Style = "trad"
	StyleSport   Style = "sport"
	StyleBoulder Style = "boulder"
	StyleMixed   Style = "mixed"
)

// KnownStyles lists every accepted style value.
var KnownStyles = []Style{StyleTrad, StyleSport, StyleBoulder, StyleMixed}

// CandidateRoute is a structured fact record extracted from research text.
// Candidates are never mutated after extraction; they are either promoted
// to ValidatedRoute or discarded.
type CandidateRoute struct {
	Name     string `json:"name"`
	Grade    string `json:"grade"`
	Style    Style  `json:"style"`
	Location string `json:"location"`
	Link     string `json:"link"`
}

// Identity returns the name+link pair that identifies a route across the
// curated set. Two entries with the same identity are the same route.
func (r CandidateRoute) Identity() string {
	return r.Name + "|" + r.Link
}

// ValidatedRoute is a CandidateRoute plus the outcome of link validation.
type ValidatedRoute struct {
	CandidateRoute
	Valid bool `json:"valid"`
}

// Category names form a closed set. Order here is rendering order.
const (
	CategoryBeginner     = "beginner"
	CategoryIntermediate = "intermediate"
	CategoryHard         = "hard"
	CategoryClassic      = "classic"
	CategoryEpic         = "epic"
	CategoryBoulders     = "boulders"
)

// CategoryOrder is the fixed section order of the final guide.
var CategoryOrder = []string{
	CategoryBeginner,
	CategoryIntermediate,
	CategoryHard,
	CategoryClassic,
	CategoryEpic,
	CategoryBoulders,
}

// CategoryHeadings maps category names to their section headings.
var CategoryHeadings = map[string]string{
	CategoryBeginner:     "Beginner Routes (5.6–5.9)",
	CategoryIntermediate: "Intermediate Routes (5.10–5.11)",
	CategoryHard:         "Expert Routes (5.12+)",
	CategoryClassic:      "Classic & Iconic Routes",
	CategoryEpic:         "Epic & Long Routes",
	CategoryBoulders:     "Best Boulders",
}

// CuratedSet maps category names to their allocated routes. Accepted sets
// satisfy: no route identity in two categories, classic count tied-or-greater
// than every other category, and the total within the global range (or a
// recorded warning).
type CuratedSet map[string][]ValidatedRoute

// Total returns the route count across all categories.
func (s CuratedSet) Total() int {
	n := 0
	for _, routes := range s {
		n += len(routes)
	}
	return n
}

// Guide is the final artifact for one area: frontmatter metadata plus the
// reviewed markdown body.
type Guide struct {
	Title       string
	Description string
	Date        string
	Tags        []string
	Published   bool
	Body        string
	CreatedAt   time.Time
}

// ProcessingStatus represents the outcome of processing one queue item.
type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "success"
	StatusFailed  ProcessingStatus = "failed"
)

// ProcessingResult tracks the outcome of processing each area.
type ProcessingResult struct {
	Area     string
	Status   ProcessingStatus
	Filename string
	Error    error
}
