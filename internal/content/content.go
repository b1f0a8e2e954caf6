// Package content scans the source repository into the desired-state
// Structure of one category page and caches it between runs.
//
// A category folder is classified with a fixed three-level taxonomy:
//
//	<category>/page.html                  -> task in section "Pozostałe"
//	<category>/<section>/page.html        -> task in <section>
//	<category>/<section>/<sub>/index.html -> folder task <sub> in subsection <sub>
//	<category>/<section>/<sub>/<dir>/     -> folder task <dir> in subsection <sub>
//
// Section and subsection names are printed verbatim as headings on the
// target page, so they must match the folder names exactly.
package content

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Categories are the top-level content folders eligible for synchronization.
// Each has a matching <category>.html page in the target repository.
var Categories = []string{"TSiAI", "WiAI", "desktopy", "informatyka"}

// CatchAllSection holds html files placed directly in a category folder.
const CatchAllSection = "Pozostałe"

// DefaultBaseURL is the published site root.
const DefaultBaseURL = "https://prakt.dziadu.dev"

// Kind tells whether a task was derived from a file or a folder.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Task is a leaf unit of content that becomes exactly one card.
type Task struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Kind        Kind   `json:"type"`
}

// Subsection groups folder tasks under a second-level heading.
type Subsection struct {
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}

// Entry is one item of a section: either a Task or a Subsection.
type Entry struct {
	Task       *Task
	Subsection *Subsection
}

const subsectionType = "subsection"

type subsectionJSON struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}

// MarshalJSON writes the entry in the flat cache file format.
func (e Entry) MarshalJSON() ([]byte, error) {
	switch {
	case e.Subsection != nil:
		tasks := e.Subsection.Tasks
		if tasks == nil {
			tasks = []Task{}
		}
		return json.Marshal(subsectionJSON{Type: subsectionType, Name: e.Subsection.Name, Tasks: tasks})
	case e.Task != nil:
		return json.Marshal(e.Task)
	default:
		return nil, fmt.Errorf("empty structure entry")
	}
}

// UnmarshalJSON reads the flat cache file format.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if probe.Type == subsectionType {
		var sub subsectionJSON
		if err := json.Unmarshal(data, &sub); err != nil {
			return err
		}
		*e = Entry{Subsection: &Subsection{Name: sub.Name, Tasks: sub.Tasks}}
		return nil
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return err
	}
	*e = Entry{Task: &task}
	return nil
}

// Structure maps a section name to its ordered entries.
type Structure map[string][]Entry

// SectionNames returns the section names in lexicographic order.
func (s Structure) SectionNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Placement locates a task inside a Structure.
type Placement struct {
	Section    string
	Subsection string
	Task       Task
}

// Placements lists every task in synchronization order: sections
// lexicographically, entries in scan order.
func (s Structure) Placements() []Placement {
	var out []Placement
	for _, section := range s.SectionNames() {
		for _, entry := range s[section] {
			switch {
			case entry.Subsection != nil:
				for _, task := range entry.Subsection.Tasks {
					out = append(out, Placement{Section: section, Subsection: entry.Subsection.Name, Task: task})
				}
			case entry.Task != nil:
				out = append(out, Placement{Section: section, Task: *entry.Task})
			}
		}
	}
	return out
}

// TaskCount returns the number of tasks in the structure.
func (s Structure) TaskCount() int {
	return len(s.Placements())
}

// addTask files task under section, and under subsection when it is set.
func (s Structure) addTask(section, subsection string, task Task) {
	if section == "" {
		section = CatchAllSection
	}

	if subsection == "" {
		s[section] = append(s[section], Entry{Task: &task})
		return
	}

	for _, entry := range s[section] {
		if entry.Subsection != nil && entry.Subsection.Name == subsection {
			entry.Subsection.Tasks = append(entry.Subsection.Tasks, task)
			return
		}
	}
	s[section] = append(s[section], Entry{Subsection: &Subsection{Name: subsection, Tasks: []Task{task}}})
}
