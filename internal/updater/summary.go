package updater

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dziadu-dev/cardsync/internal/cards"
)

// CommitHeader is the first line of every generated commit message.
const CommitHeader = "Update site content"

// Changes is a point-in-time copy of a Summary.
type Changes struct {
	Added        []string `json:"added"`
	Removed      []string `json:"removed"`
	Modified     []string `json:"modified"`
	Folders      []string `json:"folders_updated"`
	RemovedCards int      `json:"removed_cards"`
}

// Summary accumulates what one run changed. Workers record into it
// concurrently.
type Summary struct {
	mu       sync.Mutex
	added    []string
	removed  []string
	modified []string
	folders  []string
}

// Record notes a page that was rewritten for folder.
func (s *Summary) Record(page, folder string, res *cards.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.modified = append(s.modified, page)
	s.folders = append(s.folders, folder)
	if res != nil {
		s.added = append(s.added, res.AddedTitles...)
		s.removed = append(s.removed, res.RemovedURLs...)
	}
}

// Empty reports whether nothing was recorded.
func (s *Summary) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.modified) == 0
}

// Snapshot returns the recorded changes with pages and folders
// deduplicated and sorted.
func (s *Summary) Snapshot() Changes {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Changes{
		Added:        append([]string(nil), s.added...),
		Removed:      append([]string(nil), s.removed...),
		Modified:     uniqueSorted(s.modified),
		Folders:      uniqueSorted(s.folders),
		RemovedCards: len(uniqueSorted(s.removed)),
	}
}

// CommitMessage builds the commit message for the recorded changes.
func (s *Summary) CommitMessage() string {
	c := s.Snapshot()

	var b strings.Builder
	b.WriteString(CommitHeader)
	b.WriteString("\n")

	if len(c.Modified) > 0 {
		b.WriteString("\nUpdated pages:\n")
		for _, page := range c.Modified {
			fmt.Fprintf(&b, "  - %s\n", page)
		}
	}
	if len(c.Folders) > 0 {
		fmt.Fprintf(&b, "\nFolders: %s\n", strings.Join(c.Folders, ", "))
	}
	if c.RemovedCards > 0 {
		fmt.Fprintf(&b, "\nRemoved: %d cards\n", c.RemovedCards)
	}
	return strings.TrimRight(b.String(), "\n")
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
