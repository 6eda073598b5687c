package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/smileynet/airscope/internal/lineage"
)

// panel is one independently loaded block of the detail view.
type panel[T any] struct {
	loading bool
	data    T
	err     error
}

// start clears previous data and enters the loading state.
func (panel[T]) start() panel[T] {
	return panel[T]{loading: true}
}

// finish records a fetch result.
func (p panel[T]) finish(data T, err error) panel[T] {
	if err != nil {
		return panel[T]{err: err}
	}
	return panel[T]{data: data}
}

// detailState is the pipeline detail view. The Selection decides which
// results are current; every loaded message is checked against its token
// before it touches a panel.
type detailState struct {
	sel      Selection
	schedule string
	fetch    fetcher
	logger   *zap.Logger

	runs    panel[[]Run]
	tasks   panel[[]Task]
	sla     panel[SLASnapshot]
	lineage panel[lineage.Graph]
	logs    logViewer

	focus      Focus
	runCursor  int
	taskCursor int
	notice     string
}

// newDetailState returns the detail view for pipeline with its
// pipeline-scoped panels loading, plus the commands that fill them.
func newDetailState(p Pipeline, f fetcher, logger *zap.Logger) (detailState, tea.Cmd) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ds := detailState{
		sel:      NewSelection(p.ID),
		schedule: p.Schedule,
		fetch:    f,
		logger:   logger,
		logs:     newLogViewer(),
	}
	return ds.loadPipeline()
}

// loadPipeline puts the pipeline-scoped panels into loading and issues
// their fetches under the current pipeline token.
func (ds detailState) loadPipeline() (detailState, tea.Cmd) {
	ds.runs = ds.runs.start()
	ds.sla = ds.sla.start()
	ds.lineage = ds.lineage.start()
	ds.runCursor = 0
	cmds := ds.fetch.pipelineScoped(ds.sel.Pipeline(), ds.sel.PipelineToken())
	ds.logger.Debug("loading pipeline",
		zap.String("pipeline", ds.sel.Pipeline()),
		zap.Uint64("token", ds.sel.PipelineToken()))
	return ds, tea.Batch(cmds...)
}

// Selection returns the current selection.
func (ds detailState) Selection() Selection { return ds.sel }

// SelectRun makes id the active run, clears the task list and fetches it
// again under a fresh run token.
func (ds detailState) SelectRun(id string) (detailState, tea.Cmd) {
	ds.sel = ds.sel.SelectRun(id)
	ds.tasks = ds.tasks.start()
	ds.taskCursor = 0
	ds.notice = ""
	ds.logger.Debug("run selected",
		zap.String("pipeline", ds.sel.Pipeline()),
		zap.String("run", id),
		zap.Uint64("token", ds.sel.RunToken()))
	return ds, ds.fetch.tasks(ds.sel.Pipeline(), ds.sel.RunToken())
}

// RequestLog opens the log overlay for task at attempt and fetches the log.
// It fails without side effects when no run is selected.
func (ds detailState) RequestLog(task string, attempt int) (detailState, tea.Cmd, error) {
	sel, req, err := ds.sel.OpenLog(task, attempt)
	if err != nil {
		return ds, nil, err
	}
	ds.sel = sel
	ds.logs = ds.logs.begin(req)
	ds.logger.Debug("log requested",
		zap.String("pipeline", req.Pipeline),
		zap.String("run", req.Run),
		zap.String("task", req.Task),
		zap.Int("attempt", req.Attempt))
	return ds, ds.fetch.log(req, ds.sel.LogToken()), nil
}

// CloseLog closes the log overlay and keeps the run selection.
func (ds detailState) CloseLog() detailState {
	ds.sel = ds.sel.CloseLog()
	return ds
}

// Refresh reloads the pipeline-scoped panels and, when a run is selected,
// the task list. Results issued before the refresh are discarded.
func (ds detailState) Refresh() (detailState, tea.Cmd) {
	ds.sel = ds.sel.Refresh()
	ds.notice = ""
	ds, cmd := ds.loadPipeline()
	if ds.sel.Phase() != PhaseRunSelected {
		return ds, cmd
	}
	ds.tasks = ds.tasks.start()
	ds.taskCursor = 0
	return ds, tea.Batch(cmd, ds.fetch.tasks(ds.sel.Pipeline(), ds.sel.RunToken()))
}

// Update applies loaded messages and key presses.
func (ds detailState) Update(msg tea.Msg) (detailState, tea.Cmd) {
	switch msg := msg.(type) {
	case RunsLoadedMsg:
		if !ds.current("runs", msg.Token, ds.sel.PipelineToken()) {
			return ds, nil
		}
		ds.runs = ds.runs.finish(msg.Runs, ds.logFailure("runs", msg.Err))
		ds.runCursor = clampCursor(ds.runCursor, len(ds.runs.data))
		return ds, nil

	case SLALoadedMsg:
		if !ds.current("sla", msg.Token, ds.sel.PipelineToken()) {
			return ds, nil
		}
		ds.sla = ds.sla.finish(msg.SLA, ds.logFailure("sla", msg.Err))
		return ds, nil

	case LineageLoadedMsg:
		if !ds.current("lineage", msg.Token, ds.sel.PipelineToken()) {
			return ds, nil
		}
		ds.lineage = ds.lineage.finish(msg.Graph, ds.logFailure("lineage", msg.Err))
		if msg.Err == nil && msg.Graph.Dropped > 0 {
			ds.logger.Debug("dangling lineage edges dropped",
				zap.String("pipeline", ds.sel.Pipeline()),
				zap.Int("dropped", msg.Graph.Dropped))
		}
		return ds, nil

	case TasksLoadedMsg:
		if !ds.current("tasks", msg.Token, ds.sel.RunToken()) {
			return ds, nil
		}
		ds.tasks = ds.tasks.finish(msg.Tasks, ds.logFailure("tasks", msg.Err))
		ds.taskCursor = clampCursor(ds.taskCursor, len(ds.tasks.data))
		return ds, nil

	case LogLoadedMsg:
		if !ds.current("log", msg.Token, ds.sel.LogToken()) {
			return ds, nil
		}
		ds.logFailure("log", msg.Err)
		ds.logs = ds.logs.apply(msg)
		return ds, nil

	case tea.KeyMsg:
		if ds.sel.LogOpen() {
			return ds.handleLogKey(msg)
		}
		return ds.handleKey(msg)
	}
	return ds, nil
}

// current reports whether a result tagged with token is still wanted.
func (ds detailState) current(kind string, token, want uint64) bool {
	if token == want {
		return true
	}
	ds.logger.Debug("discarding stale result",
		zap.String("kind", kind),
		zap.String("pipeline", ds.sel.Pipeline()),
		zap.Uint64("token", token),
		zap.Uint64("current", want))
	return false
}

// logFailure records a fetch failure and returns err unchanged.
func (ds detailState) logFailure(kind string, err error) error {
	if err != nil {
		ds.logger.Warn("fetch failed",
			zap.String("kind", kind),
			zap.String("pipeline", ds.sel.Pipeline()),
			zap.String("run", ds.sel.Run()),
			zap.Error(err))
	}
	return err
}

func (ds detailState) handleKey(msg tea.KeyMsg) (detailState, tea.Cmd) {
	keys := DetailKeyMap()
	switch {
	case key.Matches(msg, keys.Up):
		ds.moveCursor(-1)
		return ds, nil

	case key.Matches(msg, keys.Down):
		ds.moveCursor(1)
		return ds, nil

	case key.Matches(msg, keys.Tab):
		if ds.focus == PaneRuns && ds.sel.Phase() == PhaseRunSelected {
			ds.focus = PaneTasks
		} else {
			ds.focus = PaneRuns
		}
		return ds, nil

	case key.Matches(msg, keys.Enter):
		if ds.focus == PaneTasks {
			return ds.openTaskLog()
		}
		if id := ds.cursorRun(); id != "" {
			var cmd tea.Cmd
			ds, cmd = ds.SelectRun(id)
			ds.focus = PaneTasks
			return ds, cmd
		}
		return ds, nil

	case key.Matches(msg, keys.Logs):
		return ds.openTaskLog()

	case key.Matches(msg, keys.Refresh):
		return ds.Refresh()

	case key.Matches(msg, keys.Back):
		return ds, func() tea.Msg { return NavigateBackMsg{} }
	}
	return ds, nil
}

func (ds detailState) handleLogKey(msg tea.KeyMsg) (detailState, tea.Cmd) {
	keys := LogKeyMap()
	req, _ := ds.sel.PendingLog()
	switch {
	case key.Matches(msg, keys.Close):
		return ds.CloseLog(), nil

	case key.Matches(msg, keys.PrevAttempt):
		if req.Attempt <= 1 {
			return ds, nil
		}
		next, cmd, _ := ds.RequestLog(req.Task, req.Attempt-1)
		return next, cmd

	case key.Matches(msg, keys.NextAttempt):
		next, cmd, _ := ds.RequestLog(req.Task, req.Attempt+1)
		return next, cmd
	}

	var cmd tea.Cmd
	ds.logs, cmd = ds.logs.Update(msg)
	return ds, cmd
}

// openTaskLog requests attempt 1 of the task under the task cursor.
func (ds detailState) openTaskLog() (detailState, tea.Cmd) {
	task := ds.cursorTask()
	if ds.sel.Phase() == PhaseRunSelected && task == "" {
		return ds, nil
	}
	next, cmd, err := ds.RequestLog(task, 1)
	if err != nil {
		var pe *PreconditionError
		if errors.As(err, &pe) {
			ds.notice = "Select a run before opening logs"
		}
		return ds, nil
	}
	return next, cmd
}

func (ds *detailState) moveCursor(delta int) {
	switch ds.focus {
	case PaneTasks:
		ds.taskCursor = wrapCursor(ds.taskCursor+delta, len(ds.tasks.data))
	default:
		ds.runCursor = wrapCursor(ds.runCursor+delta, len(ds.runs.data))
	}
}

func (ds detailState) cursorRun() string {
	if ds.runs.loading || ds.runCursor >= len(ds.runs.data) {
		return ""
	}
	return ds.runs.data[ds.runCursor].ID
}

func (ds detailState) cursorTask() string {
	if ds.tasks.loading || ds.taskCursor >= len(ds.tasks.data) {
		return ""
	}
	return ds.tasks.data[ds.taskCursor].ID
}

func wrapCursor(c, n int) int {
	if n == 0 {
		return 0
	}
	if c < 0 {
		return n - 1
	}
	if c >= n {
		return 0
	}
	return c
}

func clampCursor(c, n int) int {
	if c >= n {
		return 0
	}
	return c
}

// resize fits the log overlay to the terminal.
func (ds detailState) resize(width, height int) detailState {
	ds.logs = ds.logs.resize(width, height)
	return ds
}

// View renders the detail view, with the log overlay on top when open.
func (ds detailState) View(width, height int, spinnerView string) string {
	if ds.sel.LogOpen() {
		return ds.logs.place(width, height, spinnerView)
	}

	var header strings.Builder
	header.WriteString(titleText.Render("DAG: " + ds.sel.Pipeline()))
	schedule := ds.schedule
	if schedule == "" {
		schedule = "N/A"
	}
	header.WriteString("\n" + mutedText.Render("Schedule: "+schedule))
	if ds.notice != "" {
		header.WriteString("\n" + errorText.Render(ds.notice))
	}

	leftWidth, rightWidth := ColumnWidths(width)
	innerLeft := max(leftWidth-2, 0)
	innerRight := max(rightWidth-2, 0)

	runsBox := ds.borderFor(PaneRuns).Width(innerLeft).Render(ds.runsView(spinnerView))
	tasksBox := ds.borderFor(PaneTasks).Width(innerLeft).Render(ds.tasksView(spinnerView))
	slaBox := UnfocusedBorder().Width(innerRight).Render(ds.slaView(spinnerView))
	lineageBox := UnfocusedBorder().Width(innerRight).Render(ds.lineageView(spinnerView))

	left := lipgloss.JoinVertical(lipgloss.Left, runsBox, tasksBox)
	right := lipgloss.JoinVertical(lipgloss.Left, slaBox, lineageBox)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	return header.String() + "\n\n" + body
}

func (ds detailState) borderFor(f Focus) lipgloss.Style {
	if ds.focus == f {
		return FocusedBorder()
	}
	return UnfocusedBorder()
}

func (ds detailState) runsView(spinnerView string) string {
	var b strings.Builder
	b.WriteString(headingText.Render("Runs") + "\n")
	switch {
	case ds.runs.loading:
		fmt.Fprintf(&b, "%s Loading runs...", spinnerView)
	case ds.runs.err != nil:
		b.WriteString(errorText.Render(fmt.Sprintf("Error: %s", ds.runs.err)))
	case len(ds.runs.data) == 0:
		b.WriteString(mutedText.Render("No runs"))
	default:
		for i, r := range ds.runs.data {
			if i > 0 {
				b.WriteByte('\n')
			}
			if ds.focus == PaneRuns && i == ds.runCursor {
				b.WriteString(CursorMarker)
			} else {
				b.WriteString("  ")
			}
			id := r.ID
			if id == ds.sel.Run() {
				id = selectedText.Render(id)
			}
			b.WriteString(id + " " + RunStateBadge(r))
		}
	}
	return b.String()
}

func (ds detailState) tasksView(spinnerView string) string {
	var b strings.Builder
	if ds.sel.Phase() != PhaseRunSelected {
		b.WriteString(headingText.Render("Tasks") + "\n")
		b.WriteString(mutedText.Render("Select a run to see its tasks"))
		return b.String()
	}
	b.WriteString(headingText.Render("Tasks for run "+ds.sel.Run()) + "\n")
	switch {
	case ds.tasks.loading:
		fmt.Fprintf(&b, "%s Loading tasks...", spinnerView)
	case ds.tasks.err != nil:
		b.WriteString(errorText.Render(fmt.Sprintf("Error: %s", ds.tasks.err)))
	case len(ds.tasks.data) == 0:
		b.WriteString(mutedText.Render("No tasks"))
	default:
		for i, t := range ds.tasks.data {
			if i > 0 {
				b.WriteByte('\n')
			}
			if ds.focus == PaneTasks && i == ds.taskCursor {
				b.WriteString(CursorMarker)
			} else {
				b.WriteString("  ")
			}
			b.WriteString(t.ID + " " + mutedText.Render("[logs]"))
		}
	}
	return b.String()
}

func (ds detailState) slaView(spinnerView string) string {
	var b strings.Builder
	b.WriteString(headingText.Render("Daily SLA") + "\n")
	switch {
	case ds.sla.loading:
		fmt.Fprintf(&b, "%s Loading SLA...", spinnerView)
	case ds.sla.err != nil:
		b.WriteString(errorText.Render(fmt.Sprintf("Error: %s", ds.sla.err)))
	default:
		s := ds.sla.data
		fmt.Fprintf(&b, "Expected:   %d\n", s.Expected)
		fmt.Fprintf(&b, "Successes:  %d\n", s.Successes)
		if s.Misses != nil {
			fmt.Fprintf(&b, "Misses:     %d\n", *s.Misses)
		}
		fmt.Fprintf(&b, "Compliance: %s%%", s.CompliancePct)
	}
	return b.String()
}

func (ds detailState) lineageView(spinnerView string) string {
	var b strings.Builder
	b.WriteString(headingText.Render("Lineage") + "\n")
	switch {
	case ds.lineage.loading:
		fmt.Fprintf(&b, "%s Loading lineage...", spinnerView)
	case ds.lineage.err != nil:
		b.WriteString(errorText.Render(fmt.Sprintf("Error: %s", ds.lineage.err)))
	default:
		b.WriteString(lineage.Render(ds.lineage.data))
	}
	return b.String()
}
