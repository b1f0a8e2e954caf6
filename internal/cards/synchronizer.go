// Package cards reconciles a category page's cards with the desired
// content Structure.
package cards

import (
	"fmt"

	"github.com/dziadu-dev/cardsync/internal/content"
	"github.com/dziadu-dev/cardsync/internal/logging"
)

// Result describes what one synchronization changed.
type Result struct {
	Added           int
	Removed         int
	SectionsRemoved int
	Failed          int

	AddedTitles     []string
	RemovedURLs     []string
	RemovedSections []string

	Before Stats
	After  Stats
}

// Changed reports whether the page was structurally modified.
func (r *Result) Changed() bool {
	return r.Added > 0 || r.Removed > 0 || r.SectionsRemoved > 0
}

// String formats the result as "+added -removed ~sections".
func (r *Result) String() string {
	return fmt.Sprintf("+%d -%d ~%d", r.Added, r.Removed, r.SectionsRemoved)
}

// Synchronizer applies a Structure to a Document.
type Synchronizer struct {
	logger *logging.Logger
}

// NewSynchronizer creates a Synchronizer. A nil logger discards output.
func NewSynchronizer(logger *logging.Logger) *Synchronizer {
	return &Synchronizer{logger: logger}
}

// Synchronize makes doc publish exactly the tasks of structure.
//
// Missing cards are appended to their section and subsection, obsolete
// cards are removed, and sections left without cards are dropped. A card's
// URL is its identity; when the page already holds the same URL twice only
// the first occurrence is considered. Insertion failures are counted in the
// result and do not stop the run.
//
// Without a content root ErrNoContainer is returned and doc is untouched.
func (s *Synchronizer) Synchronize(doc Document, structure content.Structure) (*Result, error) {
	if !doc.HasContainer() {
		return nil, ErrNoContainer
	}

	result := &Result{Before: doc.Stats()}

	observedOrder := doc.CardURLs()
	observed := make(map[string]bool, len(observedOrder))
	for _, url := range observedOrder {
		observed[url] = true
	}

	desired := make(map[string]bool)
	for _, p := range structure.Placements() {
		desired[p.Task.URL] = true
		if observed[p.Task.URL] {
			continue
		}

		err := doc.InsertCard(p.Section, p.Subsection, Card{
			Title:       p.Task.Title,
			Description: p.Task.Description,
			URL:         p.Task.URL,
		})
		if err != nil {
			result.Failed++
			s.logger.Printf("Warning: failed to add card %s: %v", p.Task.URL, err)
			continue
		}
		observed[p.Task.URL] = true
		result.Added++
		result.AddedTitles = append(result.AddedTitles, p.Task.Title)
	}

	for _, url := range observedOrder {
		if desired[url] {
			continue
		}
		if doc.RemoveCardByURL(url) {
			result.Removed++
			result.RemovedURLs = append(result.RemovedURLs, url)
			s.logger.Printf("Removed card: %s", url)
		}
	}

	for _, name := range doc.RemoveEmptySections() {
		result.SectionsRemoved++
		result.RemovedSections = append(result.RemovedSections, name)
		s.logger.Printf("Removed empty section: %s", name)
	}

	result.After = doc.Stats()
	return result, nil
}
