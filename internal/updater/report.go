package updater

import (
	"context"
	"time"

	"github.com/dziadu-dev/cardsync/internal/cards"
)

// Status is the end state of a run.
type Status string

const (
	StatusUpToDate Status = "up_to_date"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
)

// State is a step of the run state machine.
type State string

const (
	StateValidating    State = "validating"
	StatePulling       State = "pulling"
	StateSynchronizing State = "synchronizing"
	StateCommitting    State = "committing"
	StateNoChange      State = "no_change"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// CategoryResult is the outcome for one category page.
type CategoryResult struct {
	Category string        `json:"category"`
	Page     string        `json:"page"`
	Result   *cards.Result `json:"result,omitempty"`
	CacheHit bool          `json:"cache_hit"`
	Skipped  string        `json:"skipped,omitempty"`
	Err      error         `json:"-"`
}

// Changed reports whether the page was rewritten.
func (c CategoryResult) Changed() bool {
	return c.Err == nil && c.Result != nil && c.Result.Changed()
}

// Report describes a finished run.
type Report struct {
	Status        Status           `json:"status"`
	Started       time.Time        `json:"started"`
	Duration      time.Duration    `json:"duration"`
	Summary       Changes          `json:"summary"`
	CommitMessage string           `json:"commit_message,omitempty"`
	Categories    []CategoryResult `json:"categories"`
	CacheHits     int              `json:"cache_hits"`
	Log           []string         `json:"log"`

	// Push is set when a commit was started. The run does not wait for it.
	Push *PushHandle `json:"-"`

	// Err is set when Status is StatusFailed.
	Err error `json:"-"`
}

// Changed reports whether any page was rewritten.
func (r *Report) Changed() bool {
	for _, c := range r.Categories {
		if c.Changed() {
			return true
		}
	}
	return false
}

// Totals sums the per-page card counts.
func (r *Report) Totals() (added, removed, sectionsRemoved int) {
	for _, c := range r.Categories {
		if c.Result == nil {
			continue
		}
		added += c.Result.Added
		removed += c.Result.Removed
		sectionsRemoved += c.Result.SectionsRemoved
	}
	return added, removed, sectionsRemoved
}

// ErrorMessage returns the failure message, or "".
func (r *Report) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// PushHandle tracks a background commit and push.
type PushHandle struct {
	done      chan struct{}
	committed bool
	err       error
}

func newPushHandle() *PushHandle {
	return &PushHandle{done: make(chan struct{})}
}

func (h *PushHandle) finish(committed bool, err error) {
	h.committed, h.err = committed, err
	close(h.done)
}

// Done is closed when the commit and push have finished.
func (h *PushHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the push finishes or ctx ends. It reports whether a
// commit was made and the commit or push error.
func (h *PushHandle) Wait(ctx context.Context) (bool, error) {
	select {
	case <-h.done:
		return h.committed, h.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
