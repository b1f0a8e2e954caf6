// Package describe turns raw file and folder names from the content
// repository into the human-readable descriptions printed on cards.
package describe

import (
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fallback is returned when nothing printable is left of a name.
const Fallback = "Brak opisu"

// specialNames are matched case-insensitively against the whole name.
var specialNames = map[string]string{
	"index":    "Strona główna",
	"readme":   "README",
	"template": "Szablon",
	"example":  "Przykład",
	"sample":   "Przykład",
	"main":     "Główny plik",
	"start":    "Start",
	"begin":    "Początek",
}

type rewriteRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// numberedRules rewrite numbered-item prefixes. Order matters: "zadanie"
// must be tried before "zad".
var numberedRules = []rewriteRule{
	{regexp.MustCompile(`(?i)^zadanie(\d+)`), "Zadanie $1"},
	{regexp.MustCompile(`(?i)^zad(\d+)`), "Zadanie $1"},
	{regexp.MustCompile(`(?i)^ćwiczenie(\d+)`), "Ćwiczenie $1"},
	{regexp.MustCompile(`(?i)^cw(\d+)`), "Ćwiczenie $1"},
	{regexp.MustCompile(`(?i)^lab(\d+)`), "Laboratorium $1"},
	{regexp.MustCompile(`(?i)^projekt(\d+)`), "Projekt $1"},
	{regexp.MustCompile(`(?i)^test(\d+)`), "Test $1"},
	{regexp.MustCompile(`(?i)^quiz(\d+)`), "Quiz $1"},
	{regexp.MustCompile(`(?i)^lekcja(\d+)`), "Lekcja $1"},
	{regexp.MustCompile(`(?i)^rozdzial(\d+)`), "Rozdział $1"},
	{regexp.MustCompile(`(?i)^chapter(\d+)`), "Chapter $1"},
}

var separators = strings.NewReplacer("-", " ", "_", " ", ".", " ")

// Deriver memoizes descriptions keyed by the exact input name.
// It is safe for concurrent use.
type Deriver struct {
	mu    sync.Mutex
	cache map[string]string
}

// New returns a Deriver with an empty cache.
func New() *Deriver {
	return &Deriver{cache: make(map[string]string)}
}

// Derive returns the description for name, computing and caching it on
// first use.
func (d *Deriver) Derive(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc, ok := d.cache[name]; ok {
		return desc
	}

	desc := derive(name)
	d.cache[name] = desc
	return desc
}

// Cached reports the memoized description for name, if any.
func (d *Deriver) Cached(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.cache[name]
	return desc, ok
}

// Len returns the number of memoized names.
func (d *Deriver) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}

func derive(name string) string {
	if special, ok := specialNames[strings.ToLower(name)]; ok {
		return special
	}

	desc := separators.Replace(name)
	for _, rule := range numberedRules {
		desc = rule.pattern.ReplaceAllString(desc, rule.replacement)
	}

	desc = strings.Join(strings.Fields(desc), " ")
	if desc == "" {
		return Fallback
	}

	// Casers carry state, so one is built per call.
	return cases.Title(language.Polish).String(desc)
}
