package showcase

import (
	"errors"
	"strconv"
	"time"
)

// Sentinel is written for any field that could not be resolved.
const Sentinel = "N/A"

// NameRetrievalFailed replaces the name when resolving it broke outright.
const NameRetrievalFailed = "Error retrieving name"

// ErrFetchFailed is wrapped by fetchers for timeouts and transport errors.
var ErrFetchFailed = errors.New("page fetch failed")

// Columns is the fixed dataset schema, in column order.
var Columns = []string{"link", "name", "description", "event", "has_prize", "prize_count"}

// Project is one showcase entry. Build it with NewProject so unresolved
// fields carry the sentinel instead of the zero value.
type Project struct {
	Link        string
	Name        string
	Description string
	Event       string
	HasPrize    bool
	PrizeCount  int
	// PrizesResolved is false when the prize icons could not be counted.
	// HasPrize and PrizeCount are then zero and serialize as the sentinel.
	PrizesResolved bool
}

// NewProject returns a record with every string field set to the sentinel.
func NewProject() Project {
	return Project{
		Link:        Sentinel,
		Name:        Sentinel,
		Description: Sentinel,
		Event:       Sentinel,
	}
}

// SetPrizes records the number of prize icons found for the project.
func (p *Project) SetPrizes(count int) {
	if count < 0 {
		count = 0
	}
	p.PrizeCount = count
	p.HasPrize = count > 0
	p.PrizesResolved = true
}

// Row serializes the project in Columns order.
func (p Project) Row() []string {
	hasPrize, prizeCount := Sentinel, Sentinel
	if p.PrizesResolved {
		hasPrize = formatBool(p.HasPrize)
		prizeCount = strconv.Itoa(p.PrizeCount)
	}
	return []string{p.Link, p.Name, p.Description, p.Event, hasPrize, prizeCount}
}

// formatBool uses the capitalised literals found in the existing dataset files.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Content is a rendered listing page handed from the fetcher to the extractor.
type Content struct {
	Page      int
	URL       string
	HTML      []byte
	FetchedIn time.Duration
}

// PageURL appends the page index to the listing base URL.
func PageURL(base string, page int) string {
	return base + strconv.Itoa(page)
}
