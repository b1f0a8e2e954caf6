package cards

import "errors"

// fakeDocument is an in-memory Document used to test the synchronization
// algorithm without HTML.
type fakeDocument struct {
	container bool
	sections  []*fakeSection
	failURLs  map[string]bool
}

type fakeSection struct {
	name  string
	cards []fakeCard
}

type fakeCard struct {
	subsection string
	card       Card
}

func newFakeDocument() *fakeDocument {
	return &fakeDocument{container: true, failURLs: make(map[string]bool)}
}

func (f *fakeDocument) HasContainer() bool { return f.container }

func (f *fakeDocument) CardURLs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range f.sections {
		for _, c := range s.cards {
			if !seen[c.card.URL] {
				seen[c.card.URL] = true
				out = append(out, c.card.URL)
			}
		}
	}
	return out
}

func (f *fakeDocument) section(name string) *fakeSection {
	for _, s := range f.sections {
		if s.name == name {
			return s
		}
	}
	return nil
}

func (f *fakeDocument) FindSection(name string) bool { return f.section(name) != nil }

func (f *fakeDocument) InsertCard(section, subsection string, card Card) error {
	if f.failURLs[card.URL] {
		return errors.New("insertion point broken")
	}
	s := f.section(section)
	if s == nil {
		s = &fakeSection{name: section}
		f.sections = append(f.sections, s)
	}
	s.cards = append(s.cards, fakeCard{subsection: subsection, card: card})
	return nil
}

func (f *fakeDocument) RemoveCardByURL(url string) bool {
	for _, s := range f.sections {
		for i, c := range s.cards {
			if c.card.URL == url {
				s.cards = append(s.cards[:i], s.cards[i+1:]...)
				return true
			}
		}
	}
	return false
}

func (f *fakeDocument) RemoveEmptySections() []string {
	var removed []string
	kept := f.sections[:0]
	for _, s := range f.sections {
		if len(s.cards) == 0 {
			removed = append(removed, s.name)
			continue
		}
		kept = append(kept, s)
	}
	f.sections = kept
	return removed
}

func (f *fakeDocument) Stats() Stats {
	st := Stats{Sections: len(f.sections)}
	for _, s := range f.sections {
		st.Cards += len(s.cards)
	}
	return st
}
