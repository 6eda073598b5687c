package dashboard

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNoActiveRun is returned when a log is requested before a run is selected.
var ErrNoActiveRun = errors.New("no active run selected")

// PreconditionError reports an operation invoked before the selection
// allowed it. The operation is refused; nothing is sent to the gateway.
type PreconditionError struct {
	Op  string
	Err error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// tokenSeq hands out generation tokens. It is process-wide so that results
// issued under one detail view can never match a later one.
var tokenSeq atomic.Uint64

func nextToken() uint64 {
	return tokenSeq.Add(1)
}

// SelectionPhase is the run-level state of a Selection.
type SelectionPhase int

const (
	PhasePipelineOnly SelectionPhase = iota // No run chosen yet.
	PhaseRunSelected                        // A run is chosen; tasks follow it.
)

// Selection is the single source of truth for what the detail view shows.
// Only user-action handlers change it; fetch results are matched against
// its tokens and never modify it.
type Selection struct {
	pipeline   string
	run        string
	pendingLog *LogRequest
	logOpen    bool

	pipelineToken uint64
	runToken      uint64
	logToken      uint64
}

// NewSelection returns a Selection for pipeline in PhasePipelineOnly.
func NewSelection(pipeline string) Selection {
	return Selection{pipeline: pipeline, pipelineToken: nextToken()}
}

// Pipeline returns the active pipeline id.
func (s Selection) Pipeline() string { return s.pipeline }

// Run returns the active run id, or "" when none is selected.
func (s Selection) Run() string { return s.run }

// Phase reports whether a run is selected.
func (s Selection) Phase() SelectionPhase {
	if s.run == "" {
		return PhasePipelineOnly
	}
	return PhaseRunSelected
}

// LogOpen reports whether the log overlay is open.
func (s Selection) LogOpen() bool { return s.logOpen }

// PendingLog returns the most recent log request, if any.
func (s Selection) PendingLog() (LogRequest, bool) {
	if s.pendingLog == nil {
		return LogRequest{}, false
	}
	return *s.pendingLog, true
}

// PipelineToken is the token pipeline-scoped fetches are tagged with.
func (s Selection) PipelineToken() uint64 { return s.pipelineToken }

// RunToken is the token task-list fetches are tagged with; 0 when no run.
func (s Selection) RunToken() uint64 { return s.runToken }

// LogToken is the token log fetches are tagged with; 0 before the first request.
func (s Selection) LogToken() uint64 { return s.logToken }

// SelectRun makes id the active run under a fresh run token.
func (s Selection) SelectRun(id string) Selection {
	s.run = id
	s.runToken = nextToken()
	return s
}

// Refresh reissues the pipeline token, and the run token when a run is
// selected, so in-flight results from before the refresh are discarded.
func (s Selection) Refresh() Selection {
	s.pipelineToken = nextToken()
	if s.run != "" {
		s.runToken = nextToken()
	}
	return s
}

// OpenLog records a log request for task under a fresh log token and opens
// the overlay. Attempts below 1 become 1. Fails with a PreconditionError
// when no run is selected.
func (s Selection) OpenLog(task string, attempt int) (Selection, LogRequest, error) {
	if s.run == "" {
		return s, LogRequest{}, &PreconditionError{Op: "request log", Err: ErrNoActiveRun}
	}
	if attempt < 1 {
		attempt = 1
	}
	req := LogRequest{Pipeline: s.pipeline, Run: s.run, Task: task, Attempt: attempt}
	s.pendingLog = &req
	s.logOpen = true
	s.logToken = nextToken()
	return s, req, nil
}

// CloseLog closes the overlay. The run selection is kept and any in-flight
// log request is left to arrive (and be matched by token).
func (s Selection) CloseLog() Selection {
	s.logOpen = false
	return s
}
