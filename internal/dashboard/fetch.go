package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/airscope/internal/lineage"
)

// defaultRequestTimeout bounds each gateway call issued by a command.
const defaultRequestTimeout = 30 * time.Second

// fetcher builds the tea.Cmds that call the gateway. Each command runs off
// the update loop and returns a message tagged with the token it was
// issued under; nothing here touches model state.
type fetcher struct {
	gw      Gateway
	timeout time.Duration
}

func (f fetcher) context() (context.Context, context.CancelFunc) {
	timeout := f.timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

// pipelines returns a tea.Cmd that lists pipelines.
func (f fetcher) pipelines() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := f.context()
		defer cancel()
		pipelines, err := f.gw.ListPipelines(ctx)
		return PipelinesLoadedMsg{Pipelines: pipelines, Err: err}
	}
}

// pipelineScoped returns the three independent commands issued whenever the
// pipeline token changes: runs, SLA and lineage.
func (f fetcher) pipelineScoped(pipelineID string, token uint64) []tea.Cmd {
	return []tea.Cmd{
		f.runs(pipelineID, token),
		f.sla(pipelineID, token),
		f.lineage(pipelineID, token),
	}
}

func (f fetcher) runs(pipelineID string, token uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := f.context()
		defer cancel()
		runs, err := f.gw.ListRuns(ctx, pipelineID)
		return RunsLoadedMsg{Token: token, Runs: runs, Err: err}
	}
}

func (f fetcher) sla(pipelineID string, token uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := f.context()
		defer cancel()
		snap, err := f.gw.SLA(ctx, pipelineID)
		return SLALoadedMsg{Token: token, SLA: snap, Err: err}
	}
}

func (f fetcher) lineage(pipelineID string, token uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := f.context()
		defer cancel()
		payload, err := f.gw.Lineage(ctx, pipelineID)
		if err != nil {
			return LineageLoadedMsg{Token: token, Err: err}
		}
		return LineageLoadedMsg{Token: token, Graph: lineage.Build(payload)}
	}
}

// tasks returns a tea.Cmd for the task list. The list is pipeline scoped;
// the run token only decides whether the result is still wanted.
func (f fetcher) tasks(pipelineID string, runToken uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := f.context()
		defer cancel()
		tasks, err := f.gw.ListTasks(ctx, pipelineID)
		return TasksLoadedMsg{Token: runToken, Tasks: tasks, Err: err}
	}
}

func (f fetcher) log(req LogRequest, token uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := f.context()
		defer cancel()
		text, err := f.gw.TaskLog(ctx, req)
		return LogLoadedMsg{Token: token, Request: req, Text: text, Err: err}
	}
}
