package progress

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dziadu-dev/cardsync/internal/logging"
	"github.com/dziadu-dev/cardsync/internal/updater"
)

// LogData carries one log line.
type LogData struct {
	Line string `json:"line"`
}

// StateData carries the current run state.
type StateData struct {
	State updater.State `json:"state"`
}

// RunData summarizes a finished run.
type RunData struct {
	Status          updater.Status `json:"status"`
	DurationMS      int64          `json:"duration_ms"`
	Added           int            `json:"added"`
	Removed         int            `json:"removed"`
	SectionsRemoved int            `json:"sections_removed"`
	Modified        []string       `json:"modified"`
	CacheHits       int            `json:"cache_hits"`
	CommitMessage   string         `json:"commit_message,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Handler turns log lines and run events into broadcasts. It is a
// logging.Sink and an updater.Notifier.
type Handler struct {
	server *Server

	mu    sync.Mutex
	state updater.State
	last  *RunData
}

var (
	_ logging.Sink     = (*Handler)(nil)
	_ updater.Notifier = (*Handler)(nil)
)

// NewHandler creates a handler broadcasting through server. New clients
// are greeted with the handler's latest state and run.
func NewHandler(server *Server) *Handler {
	h := &Handler{server: server}
	server.hello = h.hello
	return h
}

// WriteLine implements logging.Sink.
func (h *Handler) WriteLine(line string) {
	h.send(MessageTypeLog, LogData{Line: line})
}

// StateChanged implements updater.Notifier.
func (h *Handler) StateChanged(state updater.State) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
	h.send(MessageTypeState, StateData{State: state})
}

// RunFinished implements updater.Notifier.
func (h *Handler) RunFinished(report *updater.Report) {
	data := runData(report)
	h.mu.Lock()
	h.last = &data
	h.mu.Unlock()
	h.send(MessageTypeRunFinished, data)
}

func (h *Handler) send(typ MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: data})
}

func (h *Handler) hello() Message {
	h.mu.Lock()
	payload := struct {
		State   updater.State `json:"state,omitempty"`
		LastRun *RunData      `json:"last_run,omitempty"`
	}{h.state, h.last}
	h.mu.Unlock()

	data, _ := json.Marshal(payload)
	return Message{Type: MessageTypeHello, Timestamp: time.Now(), Data: data}
}

func runData(report *updater.Report) RunData {
	added, removed, sections := report.Totals()
	return RunData{
		Status:          report.Status,
		DurationMS:      report.Duration.Milliseconds(),
		Added:           added,
		Removed:         removed,
		SectionsRemoved: sections,
		Modified:        report.Summary.Modified,
		CacheHits:       report.CacheHits,
		CommitMessage:   report.CommitMessage,
		Error:           report.ErrorMessage(),
	}
}
