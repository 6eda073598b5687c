package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/airscope/internal/lineage"
)

// stripANSI removes ANSI escape sequences from a string.
func stripANSI(s string) string {
	var out []byte
	i := 0
	for i < len(s) {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 'A' || s[j] > 'Z') && (s[j] < 'a' || s[j] > 'z') {
				j++
			}
			if j < len(s) {
				j++
			}
			i = j
		} else {
			out = append(out, s[i])
			i++
		}
	}
	return string(out)
}

// containsPlainText checks if s contains sub after stripping ANSI escapes.
func containsPlainText(s, sub string) bool {
	return strings.Contains(stripANSI(s), sub)
}

// execBatch executes a tea.Cmd, handling both single commands and batch
// commands. It returns all resulting messages. Spinner ticks are skipped
// to avoid infinite recursion.
func execBatch(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			if c == nil {
				continue
			}
			msgs = append(msgs, execBatch(t, c)...)
		}
		return msgs
	}
	if _, isTick := msg.(spinner.TickMsg); isTick {
		return nil
	}
	return []tea.Msg{msg}
}

// applyAll feeds msgs to ds in order.
func applyAll(ds detailState, msgs []tea.Msg) detailState {
	for _, msg := range msgs {
		ds, _ = ds.Update(msg)
	}
	return ds
}

// msgOf returns the first message of type T in msgs.
func msgOf[T any](t *testing.T, msgs []tea.Msg) T {
	t.Helper()
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v
		}
	}
	var zero T
	t.Fatalf("no %T in %v", zero, msgs)
	return zero
}

// stubGateway is an in-memory Gateway. Task responses can be queued per
// call so that overlapping task requests return different lists.
type stubGateway struct {
	mu sync.Mutex

	pipelines    []Pipeline
	pipelinesErr error
	runs         map[string][]Run
	runsErr      error
	tasks        map[string][]Task
	taskQueue    [][]Task
	tasksErr     error
	sla          map[string]SLASnapshot
	slaErr       error
	lineage      map[string]lineage.Payload
	lineageErr   error
	logs         map[LogRequest]string
	logErr       error

	calls    map[string]int
	logCalls []LogRequest
}

func newStubGateway() *stubGateway {
	oneMiss := 1
	return &stubGateway{
		pipelines: []Pipeline{
			{ID: "etl_daily", Schedule: "At 02:00"},
			{ID: "reporting"},
		},
		runs: map[string][]Run{
			"etl_daily": {
				{ID: "r1", State: RunSuccess, RawState: "success"},
				{ID: "r2", State: RunFailure, RawState: "failed"},
			},
			"reporting": {
				{ID: "rep1", State: RunRunning, RawState: "running"},
			},
		},
		tasks: map[string][]Task{
			"etl_daily": {{ID: "extract"}, {ID: "load"}},
			"reporting": {{ID: "render"}},
		},
		sla: map[string]SLASnapshot{
			"etl_daily": {Expected: 10, Successes: 9, Misses: &oneMiss, CompliancePct: "90"},
			"reporting": {Expected: 4, Successes: 4, CompliancePct: "100.0"},
		},
		lineage: map[string]lineage.Payload{
			"etl_daily": lineage.NewPayload(
				[]string{"extract", "load"},
				[]lineage.EdgeRef{{From: "extract", To: "load"}},
			),
		},
		logs: map[LogRequest]string{
			{Pipeline: "etl_daily", Run: "r2", Task: "load", Attempt: 1}:    "attempt one\nboom",
			{Pipeline: "etl_daily", Run: "r2", Task: "load", Attempt: 2}:    "attempt two",
			{Pipeline: "etl_daily", Run: "r2", Task: "extract", Attempt: 1}: "extracted 42 rows",
		},
		calls: make(map[string]int),
	}
}

func (g *stubGateway) record(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
}

func (g *stubGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *stubGateway) ListPipelines(context.Context) ([]Pipeline, error) {
	g.record("pipelines")
	return g.pipelines, g.pipelinesErr
}

func (g *stubGateway) ListRuns(_ context.Context, id string) ([]Run, error) {
	g.record("runs")
	return g.runs[id], g.runsErr
}

func (g *stubGateway) ListTasks(_ context.Context, id string) ([]Task, error) {
	g.record("tasks")
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.taskQueue) > 0 {
		next := g.taskQueue[0]
		g.taskQueue = g.taskQueue[1:]
		return next, g.tasksErr
	}
	return g.tasks[id], g.tasksErr
}

func (g *stubGateway) SLA(_ context.Context, id string) (SLASnapshot, error) {
	g.record("sla")
	return g.sla[id], g.slaErr
}

func (g *stubGateway) Lineage(_ context.Context, id string) (lineage.Payload, error) {
	g.record("lineage")
	return g.lineage[id], g.lineageErr
}

func (g *stubGateway) TaskLog(_ context.Context, req LogRequest) (string, error) {
	g.record("log")
	g.mu.Lock()
	g.logCalls = append(g.logCalls, req)
	g.mu.Unlock()
	if g.logErr != nil {
		return "", g.logErr
	}
	text, ok := g.logs[req]
	if !ok {
		return "", errors.New("status 404: log not found")
	}
	return text, nil
}

// newLoadedDetail returns a detail view for pipeline with its
// pipeline-scoped results applied.
func newLoadedDetail(t *testing.T, gw *stubGateway, pipeline string) detailState {
	t.Helper()
	ds, cmd := newDetailState(Pipeline{ID: pipeline}, fetcher{gw: gw}, nil)
	return applyAll(ds, execBatch(t, cmd))
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}
