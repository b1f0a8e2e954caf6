package describe

import (
	"strings"
	"sync"
	"testing"
)

func TestDeriveSpecialNames(t *testing.T) {
	d := New()

	tests := []struct {
		name string
		want string
	}{
		{"index", "Strona główna"},
		{"INDEX", "Strona główna"},
		{"readme", "README"},
		{"ReadMe", "README"},
		{"template", "Szablon"},
		{"example", "Przykład"},
		{"sample", "Przykład"},
		{"main", "Główny plik"},
		{"start", "Start"},
		{"begin", "Początek"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Derive(tt.name); got != tt.want {
				t.Errorf("Derive(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestDeriveNumberedPrefixes(t *testing.T) {
	d := New()

	tests := []struct {
		name string
		want string
	}{
		{"zadanie1", "Zadanie 1"},
		{"zad1", "Zadanie 1"},
		{"ZAD12", "Zadanie 12"},
		{"ćwiczenie3", "Ćwiczenie 3"},
		{"cw4", "Ćwiczenie 4"},
		{"lab1", "Laboratorium 1"},
		{"projekt2", "Projekt 2"},
		{"test3", "Test 3"},
		{"quiz9", "Quiz 9"},
		{"lekcja5", "Lekcja 5"},
		{"rozdzial7", "Rozdział 7"},
		{"chapter2", "Chapter 2"},
		{"zad1_funkcje", "Zadanie 1 Funkcje"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Derive(tt.name); got != tt.want {
				t.Errorf("Derive(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestDeriveSeparatorsAndTitleCase(t *testing.T) {
	d := New()

	tests := []struct {
		name string
		want string
	}{
		{"my-file_name", "My File Name"},
		{"sieci.komputerowe", "Sieci Komputerowe"},
		{"pętle", "Pętle"},
		{"---", Fallback},
		{"", Fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Derive(tt.name); got != tt.want {
				t.Errorf("Derive(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestDeriveCachesUnderRawName(t *testing.T) {
	d := New()

	first := d.Derive("zadanie5")
	second := d.Derive("zadanie5")
	if first != second {
		t.Fatalf("Derive() not stable: %q then %q", first, second)
	}
	if !strings.Contains(first, "Zadanie") || !strings.Contains(first, "5") {
		t.Errorf("Derive(zadanie5) = %q, want it to mention Zadanie and 5", first)
	}

	cached, ok := d.Cached("zadanie5")
	if !ok {
		t.Fatal("zadanie5 not cached")
	}
	if cached != first {
		t.Errorf("cached = %q, want %q", cached, first)
	}

	// Keys are not normalized.
	if _, ok := d.Cached("ZADANIE5"); ok {
		t.Error("ZADANIE5 should not be cached before it is derived")
	}

	d.Derive("index")
	if _, ok := d.Cached("index"); !ok {
		t.Error("special names should be cached too")
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
}

func TestDeriveConcurrent(t *testing.T) {
	d := New()
	names := []string{"zad1", "lab2", "index", "my-file", "cw3"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, n := range names {
				d.Derive(n)
			}
		}()
	}
	wg.Wait()

	if d.Len() != len(names) {
		t.Errorf("Len() = %d, want %d", d.Len(), len(names))
	}
}
