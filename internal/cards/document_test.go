package cards

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dziadu-dev/cardsync/internal/content"
)

const emptyPage = `<!DOCTYPE html>
<html lang="pl"><head><meta charset="utf-8"><title>TSiAI</title></head>
<body><nav class="navbar">menu</nav>
<div class="content-wrapper">
<div class="mb-4 intro"><p>Materiały do zajęć.</p></div>
</div>
<footer>stopka</footer>
</body></html>`

func parse(t *testing.T, page string) *HTMLDocument {
	t.Helper()
	doc, err := ParseDocument(strings.NewReader(page))
	if err != nil {
		t.Fatalf("ParseDocument() error: %v", err)
	}
	return doc
}

func render(t *testing.T, doc *HTMLDocument) string {
	t.Helper()
	b, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	return string(b)
}

func sortedURLs(s content.Structure) []string {
	var urls []string
	for _, p := range s.Placements() {
		urls = append(urls, p.Task.URL)
	}
	sort.Strings(urls)
	return urls
}

func TestHTMLRoundTripCardPresence(t *testing.T) {
	doc := parse(t, emptyPage)
	structure := sampleStructure()

	res, err := NewSynchronizer(nil).Synchronize(doc, structure)
	if err != nil {
		t.Fatalf("Synchronize() error: %v", err)
	}
	if !res.Changed() || res.Added != structure.TaskCount() {
		t.Fatalf("result = %s, want +%d", res, structure.TaskCount())
	}

	reparsed := parse(t, render(t, doc))
	got := reparsed.CardURLs()
	sort.Strings(got)
	if diff := cmp.Diff(sortedURLs(structure), got); diff != "" {
		t.Errorf("card URLs mismatch (-want +got):\n%s", diff)
	}
	if st := reparsed.Stats(); st.Cards != 4 || st.Sections != 2 {
		t.Errorf("Stats() = %+v, want 4 cards in 2 sections", st)
	}
	if !reparsed.FindSection("Pozostałe") || !reparsed.FindSection("sekcja1") {
		t.Error("section headings missing after round trip")
	}
}

func TestHTMLIdempotentAndByteStable(t *testing.T) {
	s := NewSynchronizer(nil)
	doc := parse(t, emptyPage)
	if _, err := s.Synchronize(doc, sampleStructure()); err != nil {
		t.Fatal(err)
	}
	first := render(t, doc)

	doc = parse(t, first)
	res, err := s.Synchronize(doc, sampleStructure())
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed() {
		t.Errorf("second run changed the page: %s", res)
	}
	if second := render(t, doc); second != first {
		t.Errorf("page bytes not stable:\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestHTMLCardMarkup(t *testing.T) {
	doc := parse(t, emptyPage)
	url := "https://prakt.dziadu.dev/WiAI/Moduł%201/Lab%20A/index.html"
	if err := doc.InsertCard("Moduł 1", "Lab A", Card{Title: "Lab A", Description: "Lab A", URL: url}); err != nil {
		t.Fatal(err)
	}
	out := render(t, doc)

	for _, want := range []string{
		`<div class="mb-4"><h3 class="subsection-title fs-4 fw-semibold mb-3">Moduł 1</h3><h4 class="subsection-subtitle fs-5 mt-4 mb-3 ms-3">Lab A</h4><div class="row g-3"><div class="col-sm-6 col-lg-4">`,
		`<a class="stretched-link" href="` + url + `" target="_blank"></a>`,
		`<h3 class="mb-3 fs-5 fw-semibold">Lab A</h3><p class="mb-3">Lab A</p>`,
		`download="" href="` + url + `" onclick="event.stopPropagation();" style="z-index: 2;"><span>⬇️</span> Pobierz</a>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered page missing %s\n%s", want, out)
		}
	}
	if !strings.Contains(out, "<footer>stopka</footer>") || !strings.Contains(out, `<nav class="navbar">menu</nav>`) {
		t.Error("content outside the container was altered")
	}
}

func TestHTMLDirectCardsPrecedeSubsections(t *testing.T) {
	doc := parse(t, emptyPage)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(doc.InsertCard("sekcja1", "grupa", Card{Title: "p1", URL: "u-p1"}))
	must(doc.InsertCard("sekcja1", "", Card{Title: "zad1", URL: "u-zad1"}))
	must(doc.InsertCard("sekcja1", "inna", Card{Title: "q1", URL: "u-q1"}))
	must(doc.InsertCard("sekcja1", "grupa", Card{Title: "p2", URL: "u-p2"}))
	must(doc.InsertCard("sekcja1", "", Card{Title: "zad2", URL: "u-zad2"}))

	want := []string{"u-zad1", "u-zad2", "u-p1", "u-p2", "u-q1"}
	if diff := cmp.Diff(want, doc.CardURLs()); diff != "" {
		t.Errorf("card order mismatch (-want +got):\n%s", diff)
	}
	if st := doc.Stats(); st.Sections != 1 {
		t.Errorf("Stats().Sections = %d, want 1", st.Sections)
	}
}

func TestHTMLDeletionRemovesEmptiedSection(t *testing.T) {
	doc := parse(t, emptyPage)
	doc.InsertCard("sekcja1", "", Card{Title: "zad1", URL: "https://prakt.dziadu.dev/TSiAI/sekcja1/zad1.html"})
	doc.InsertCard("stara", "", Card{Title: "old", URL: "https://prakt.dziadu.dev/TSiAI/stara/old.html"})
	doc = parse(t, render(t, doc))

	structure := content.Structure{
		"sekcja1": {{Task: task("zad1", "https://prakt.dziadu.dev/TSiAI/sekcja1/zad1.html")}},
	}
	res, err := NewSynchronizer(nil).Synchronize(doc, structure)
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 0 || res.Removed != 1 || res.SectionsRemoved != 1 {
		t.Fatalf("result = %s, want +0 -1 ~1", res)
	}
	if diff := cmp.Diff([]string{"stara"}, res.RemovedSections); diff != "" {
		t.Errorf("RemovedSections mismatch (-want +got):\n%s", diff)
	}

	out := render(t, doc)
	if strings.Contains(out, "stara") || strings.Contains(out, "old.html") {
		t.Errorf("obsolete card or heading still rendered:\n%s", out)
	}
	if !strings.Contains(out, `<div class="mb-4 intro"><p>Materiały do zajęć.</p></div>`) {
		t.Error("non-section block inside the container was removed")
	}
}

func TestHTMLDuplicateURLFirstMatch(t *testing.T) {
	doc := parse(t, emptyPage)
	dup := "https://prakt.dziadu.dev/TSiAI/a/dup.html"
	doc.InsertCard("a", "", Card{Title: "dup", URL: dup})
	doc.InsertCard("b", "", Card{Title: "dup again", URL: dup})
	doc = parse(t, render(t, doc))

	if got := doc.CardURLs(); len(got) != 1 {
		t.Fatalf("CardURLs() = %v, want one entry", got)
	}

	res, err := NewSynchronizer(nil).Synchronize(doc, content.Structure{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Removed != 1 || res.SectionsRemoved != 1 {
		t.Errorf("result = %s, want -1 ~1", res)
	}
	if doc.FindSection("a") || !doc.FindSection("b") {
		t.Error("only the first duplicate should be removed")
	}
}

func TestHTMLNoContainer(t *testing.T) {
	page := `<html><body><div class="content"></div></body></html>`
	doc := parse(t, page)
	before := render(t, doc)

	if doc.HasContainer() {
		t.Fatal("HasContainer() = true")
	}
	if _, err := NewSynchronizer(nil).Synchronize(doc, sampleStructure()); !errors.Is(err, ErrNoContainer) {
		t.Fatalf("err = %v, want ErrNoContainer", err)
	}
	if err := doc.InsertCard("x", "", Card{URL: "u"}); !errors.Is(err, ErrNoContainer) {
		t.Errorf("InsertCard() err = %v, want ErrNoContainer", err)
	}
	if after := render(t, doc); after != before {
		t.Error("document modified without container")
	}
}

func TestInsertCardWithoutURL(t *testing.T) {
	doc := parse(t, emptyPage)
	if err := doc.InsertCard("a", "", Card{Title: "broken"}); err == nil {
		t.Fatal("expected error for card without url")
	}
	if doc.FindSection("a") {
		t.Error("section created for rejected card")
	}
}

func TestRenderWriter(t *testing.T) {
	doc := parse(t, emptyPage)
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "<!DOCTYPE html>") {
		t.Errorf("rendered page lost its doctype: %.40s", buf.String())
	}
}
