// Package dashboard implements the airscope TUI: a pipeline list and a
// pipeline detail view with runs, tasks, SLA and lineage panels plus a
// task log overlay. All gateway calls run as tea.Cmds; their results come
// back as messages tagged with the selection token they were issued under.
package dashboard

import (
	"context"

	"github.com/smileynet/airscope/internal/lineage"
)

// Mode represents the current top-level screen.
type Mode int

const (
	ModeList   Mode = iota // Pipeline list.
	ModeDetail             // Pipeline detail with panels and log overlay.
)

// Focus represents which detail pane has keyboard focus.
type Focus int

const (
	PaneRuns  Focus = iota // Run list has focus.
	PaneTasks              // Task list has focus.
)

// Pipeline is a DAG entry from the list view.
type Pipeline struct {
	ID       string
	Schedule string // Empty when the gateway sends no description.
}

// RunState classifies a run's raw state.
type RunState string

const (
	RunSuccess RunState = "success"
	RunFailure RunState = "failure"
	RunRunning RunState = "running"
	RunOther   RunState = "other"
)

// ParseRunState maps a gateway state string onto a RunState.
func ParseRunState(raw string) RunState {
	switch raw {
	case "success":
		return RunSuccess
	case "failed", "failure", "upstream_failed":
		return RunFailure
	case "running", "restarting":
		return RunRunning
	default:
		return RunOther
	}
}

// Run is one execution of a pipeline.
type Run struct {
	ID       string
	State    RunState
	RawState string // Displayed verbatim.
}

// Task is one step of a pipeline.
type Task struct {
	ID string
}

// SLASnapshot is the daily SLA view of a pipeline. CompliancePct is kept as
// the literal number text so it renders without reformatting.
type SLASnapshot struct {
	Expected      int
	Successes     int
	Misses        *int
	CompliancePct string
}

// LogRequest identifies one task attempt's log.
type LogRequest struct {
	Pipeline string
	Run      string
	Task     string
	Attempt  int
}

// --- Consumer-side interface ---

// Gateway is the read-only remote data source the dashboard queries.
type Gateway interface {
	ListPipelines(ctx context.Context) ([]Pipeline, error)
	ListRuns(ctx context.Context, pipelineID string) ([]Run, error)
	ListTasks(ctx context.Context, pipelineID string) ([]Task, error)
	SLA(ctx context.Context, pipelineID string) (SLASnapshot, error)
	Lineage(ctx context.Context, pipelineID string) (lineage.Payload, error)
	TaskLog(ctx context.Context, req LogRequest) (string, error)
}

// --- tea.Msg types ---

// PipelinesLoadedMsg carries the result of Gateway.ListPipelines.
type PipelinesLoadedMsg struct {
	Pipelines []Pipeline
	Err       error
}

// SelectPipelineMsg signals the user chose a pipeline in the list.
type SelectPipelineMsg struct {
	PipelineID string
}

// NavigateBackMsg signals the user left the detail view. It has no payload.
type NavigateBackMsg struct{}

// RefreshPipelinesMsg signals that the pipeline list should be reloaded.
type RefreshPipelinesMsg struct{}

// RunsLoadedMsg carries a run list issued under pipeline token Token.
type RunsLoadedMsg struct {
	Token uint64
	Runs  []Run
	Err   error
}

// TasksLoadedMsg carries a task list issued under run token Token.
type TasksLoadedMsg struct {
	Token uint64
	Tasks []Task
	Err   error
}

// SLALoadedMsg carries an SLA snapshot issued under pipeline token Token.
type SLALoadedMsg struct {
	Token uint64
	SLA   SLASnapshot
	Err   error
}

// LineageLoadedMsg carries a built lineage graph issued under pipeline token Token.
type LineageLoadedMsg struct {
	Token uint64
	Graph lineage.Graph
	Err   error
}

// LogLoadedMsg carries task log text issued under log token Token.
type LogLoadedMsg struct {
	Token   uint64
	Request LogRequest
	Text    string
	Err     error
}
