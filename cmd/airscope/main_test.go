package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/airscope/internal/dashboard"
	"github.com/smileynet/airscope/internal/gateway"
)

// errExitCalled is a sentinel used to catch kong's os.Exit calls in tests.
var errExitCalled = errors.New("exit called")

// fakeGatewayRoutes are the canned responses served by newFakeGateway,
// keyed by request URI.
var fakeGatewayRoutes = map[string]string{
	"/dags":                                     `{"dags":[{"dag_id":"etl_daily","timetable_description":"At 02:00"},{"dag_id":"adhoc","timetable_description":null}]}`,
	"/dags/etl_daily/runs":                      `{"dag_runs":[{"dag_run_id":"r1","state":"success"},{"dag_run_id":"r2","state":"upstream_failed"}]}`,
	"/dags/etl_daily/tasks":                     `{"tasks":[{"task_id":"extract"},{"task_id":"load"}]}`,
	"/sla/etl_daily?interval=daily":             `{"expected":10,"successes":9,"misses":1,"compliance_pct":90}`,
	"/lineage/etl_daily":                        `{"nodes":["a","b"],"edges":[{"from":"a","to":"b"},{"from":"a","to":"c"}]}`,
	"/dags/etl_daily/runs/r2/tasks/load/logs/1": "line1\nline2\n",
	"/dags/etl_daily/runs/r2/tasks/load/logs/2": "retry ok\n",
}

func newFakeGateway(t *testing.T) *gateway.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := fakeGatewayRoutes[r.URL.RequestURI()]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return gateway.New(srv.URL, gateway.WithTimeout(2*time.Second))
}

func TestFeature_CLISkeleton(t *testing.T) {
	t.Run("version flag prints version commit and date", func(t *testing.T) {
		// Given: a CLI parser with version, commit, and date fields
		var cli CLI
		var buf bytes.Buffer
		versionStr := "v1.0.0 abc1234 2026-01-01T00:00:00Z"
		k, err := kong.New(&cli,
			kong.Vars{"version": versionStr},
			kong.Writers(&buf, &buf),
			kong.Exit(func(int) { panic(errExitCalled) }),
		)
		if err != nil {
			t.Fatal(err)
		}

		// When: --version flag is passed
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("expected panic from --version flag")
			}
			err, ok := r.(error)
			if !ok || !errors.Is(err, errExitCalled) {
				panic(r)
			}

			// Then: version, commit, and date are all present in output
			output := buf.String()
			for _, want := range []string{"v1.0.0", "abc1234", "2026-01-01T00:00:00Z"} {
				if !strings.Contains(output, want) {
					t.Errorf("version output = %q, want to contain %q", output, want)
				}
			}
		}()

		k.Parse([]string{"--version"}) //nolint:errcheck // --version triggers panic via Exit hook
	})

	t.Run("no args shows usage and errors", func(t *testing.T) {
		var cli CLI
		k, err := kong.New(&cli, kong.Vars{"version": "test"})
		if err != nil {
			t.Fatal(err)
		}

		_, err = k.Parse([]string{})
		if err == nil {
			t.Fatal("expected error when no command provided")
		}
	})

	t.Run("commands and global flags parse", func(t *testing.T) {
		tests := []struct {
			args    []string
			command string
		}{
			{[]string{"dags"}, "dags"},
			{[]string{"runs", "etl_daily"}, "runs <dag>"},
			{[]string{"tasks", "etl_daily"}, "tasks <dag>"},
			{[]string{"sla", "etl_daily"}, "sla <dag>"},
			{[]string{"lineage", "etl_daily"}, "lineage <dag>"},
			{[]string{"logs", "etl_daily", "r2", "load", "--attempt", "2"}, "logs <dag> <run> <task>"},
		}
		for _, tt := range tests {
			var cli CLI
			k, err := kong.New(&cli, kong.Vars{"version": "test"})
			if err != nil {
				t.Fatal(err)
			}
			ctx, err := k.Parse(append([]string{"--api-url", "http://gw:9000", "--timeout", "5s"}, tt.args...))
			if err != nil {
				t.Fatalf("Parse(%v): %v", tt.args, err)
			}
			if ctx.Command() != tt.command {
				t.Errorf("Parse(%v) command = %q, want %q", tt.args, ctx.Command(), tt.command)
			}
			if cli.APIURL != "http://gw:9000" || cli.Timeout != 5*time.Second {
				t.Errorf("globals = %+v, want api-url and timeout set", cli.Globals)
			}
		}
	})

	t.Run("dashboard takes an optional dag", func(t *testing.T) {
		var cli CLI
		k, err := kong.New(&cli, kong.Vars{"version": "test"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := k.Parse([]string{"dashboard", "etl_daily"}); err != nil {
			t.Fatal(err)
		}
		if cli.Dashboard.DagID != "etl_daily" {
			t.Errorf("DagID = %q, want %q", cli.Dashboard.DagID, "etl_daily")
		}
	})

	t.Run("logs attempt defaults to 1", func(t *testing.T) {
		var cli CLI
		k, err := kong.New(&cli, kong.Vars{"version": "test"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := k.Parse([]string{"logs", "etl_daily", "r2", "load"}); err != nil {
			t.Fatal(err)
		}
		if cli.Logs.Attempt != 1 {
			t.Errorf("Attempt = %d, want 1", cli.Logs.Attempt)
		}
	})
}

func TestPlainCommands(t *testing.T) {
	api := newFakeGateway(t)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(context.Context, *bytes.Buffer) error
		want []string
	}{
		{
			name: "dags shows schedule or N/A",
			run: func(ctx context.Context, w *bytes.Buffer) error {
				return (&DagsCmd{}).run(ctx, w, api)
			},
			want: []string{"etl_daily  At 02:00", "adhoc      N/A"},
		},
		{
			name: "runs shows raw state",
			run: func(ctx context.Context, w *bytes.Buffer) error {
				return (&RunsCmd{DagID: "etl_daily"}).run(ctx, w, api)
			},
			want: []string{"r1  success", "r2  upstream_failed"},
		},
		{
			name: "tasks one per line",
			run: func(ctx context.Context, w *bytes.Buffer) error {
				return (&TasksCmd{DagID: "etl_daily"}).run(ctx, w, api)
			},
			want: []string{"extract\nload\n"},
		},
		{
			name: "sla numbers as given",
			run: func(ctx context.Context, w *bytes.Buffer) error {
				return (&SLACmd{DagID: "etl_daily"}).run(ctx, w, api)
			},
			want: []string{"Expected:   10", "Successes:  9", "Misses:     1", "Compliance: 90%"},
		},
		{
			name: "lineage drops dangling edge",
			run: func(ctx context.Context, w *bytes.Buffer) error {
				return (&LineageCmd{DagID: "etl_daily"}).run(ctx, w, api)
			},
			want: []string{"a → b", "(1 dangling edge(s) dropped)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.run(ctx, &buf); err != nil {
				t.Fatalf("run: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output = %q, want to contain %q", buf.String(), want)
				}
			}
		})
	}
}

func TestLogsCmd_PrintsVerbatim(t *testing.T) {
	api := newFakeGateway(t)

	for attempt, want := range map[int]string{1: "line1\nline2\n", 2: "retry ok\n"} {
		var buf bytes.Buffer
		cmd := &LogsCmd{DagID: "etl_daily", RunID: "r2", TaskID: "load", Attempt: attempt}
		if err := cmd.run(context.Background(), &buf, api); err != nil {
			t.Fatalf("attempt %d: %v", attempt, err)
		}
		if buf.String() != want {
			t.Errorf("attempt %d output = %q, want %q", attempt, buf.String(), want)
		}
	}
}

func TestLogsCmd_MissingLogIsGatewayFailure(t *testing.T) {
	api := newFakeGateway(t)
	cmd := &LogsCmd{DagID: "etl_daily", RunID: "r2", TaskID: "load", Attempt: 9}

	err := cmd.run(context.Background(), &bytes.Buffer{}, api)

	var se *gateway.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *gateway.StatusError", err)
	}
	if got := exitCode(fmt.Errorf("logs: %w", err)); got != exitGateway {
		t.Errorf("exitCode = %d, want %d", got, exitGateway)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"transport", fmt.Errorf("runs: %w", &gateway.TransportError{Op: "list runs", Err: errors.New("refused")}), exitGateway},
		{"decode", &gateway.DecodeError{Op: "sla", Err: errors.New("bad json")}, exitGateway},
		{"status", &gateway.StatusError{Op: "dags", StatusCode: 500}, exitGateway},
		{"setup", &setupError{errors.New("config: invalid base_url")}, exitSetup},
		{"empty id", fmt.Errorf("runs: %w", gateway.ErrEmptyID), exitSetup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestGlobals_SetupAppliesFlagOverrides(t *testing.T) {
	// Given: an empty home and working directory with logging disabled
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	t.Setenv("AIRSCOPE_API_URL", "http://from-env:8000")
	t.Setenv("AIRSCOPE_LOG_PATH", "")

	// When: setup runs with flag overrides
	g := &Globals{APIURL: "http://from-flag:9000", Timeout: 3 * time.Second}
	e, err := g.setup("dags")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	// Then: flags win over the environment
	if e.cfg.Gateway.BaseURL != "http://from-flag:9000" {
		t.Errorf("BaseURL = %q, want flag value", e.cfg.Gateway.BaseURL)
	}
	if e.cfg.Gateway.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", e.cfg.Gateway.Timeout)
	}
	if e.client == nil || e.logger == nil {
		t.Error("setup should build a client and logger")
	}
}

func TestGlobals_SetupLogsOutsideWorkingDir(t *testing.T) {
	// Given: default logging with separate home, cache and working dirs
	home := t.TempDir()
	cache := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", cache)
	t.Setenv("AIRSCOPE_LOG_PATH", "")
	os.Unsetenv("AIRSCOPE_LOG_PATH")
	t.Chdir(work)

	// When: a plain command sets up
	g := &Globals{APIURL: "http://localhost:8000"}
	e, err := g.setup("dags")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer func() { _ = e.logger.Sync() }()

	// Then: nothing is created in the working directory
	entries, err := os.ReadDir(work)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("working dir has %d entries, want none", len(entries))
	}
	if !filepath.IsAbs(e.cfg.Log.Path) {
		t.Errorf("log path = %q, want an absolute path", e.cfg.Log.Path)
	}
}

func TestGlobals_SetupRejectsInvalidURL(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	t.Setenv("AIRSCOPE_LOG_PATH", "")

	g := &Globals{APIURL: "not a url"}
	_, err := g.setup("dags")

	var se *setupError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *setupError", err)
	}
	if exitCode(err) != exitSetup {
		t.Errorf("exitCode = %d, want %d", exitCode(err), exitSetup)
	}
}

// fakeRunner records whether the program was run.
type fakeRunner struct {
	ran bool
	err error
}

func (f *fakeRunner) Run() (tea.Model, error) {
	f.ran = true
	return nil, f.err
}

func TestDashboardCmd_Run(t *testing.T) {
	t.Run("requires a TTY", func(t *testing.T) {
		r := &fakeRunner{}
		err := (&DashboardCmd{}).run(false, r)
		if err == nil || !strings.Contains(err.Error(), "requires a terminal") {
			t.Errorf("err = %v, want TTY error", err)
		}
		if r.ran {
			t.Error("program should not run without a TTY")
		}
	})

	t.Run("runs the program", func(t *testing.T) {
		r := &fakeRunner{}
		if err := (&DashboardCmd{}).run(true, r); err != nil {
			t.Fatalf("run: %v", err)
		}
		if !r.ran {
			t.Error("program should run")
		}
	})

	t.Run("propagates program errors", func(t *testing.T) {
		want := errors.New("boom")
		err := (&DashboardCmd{}).run(true, &fakeRunner{err: want})
		if !errors.Is(err, want) {
			t.Errorf("err = %v, want %v", err, want)
		}
	})
}

func TestDashboardGatewayAdapter(t *testing.T) {
	a := &dashboardGatewayAdapter{client: newFakeGateway(t)}
	ctx := context.Background()

	t.Run("pipelines carry schedule", func(t *testing.T) {
		got, err := a.ListPipelines(ctx)
		if err != nil {
			t.Fatal(err)
		}
		want := []dashboard.Pipeline{{ID: "etl_daily", Schedule: "At 02:00"}, {ID: "adhoc"}}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("pipelines = %+v, want %+v", got, want)
		}
	})

	t.Run("runs classify state and keep raw text", func(t *testing.T) {
		got, err := a.ListRuns(ctx, "etl_daily")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Fatalf("runs = %+v, want 2", got)
		}
		if got[1].State != dashboard.RunFailure || got[1].RawState != "upstream_failed" {
			t.Errorf("run = %+v, want failure class with raw upstream_failed", got[1])
		}
	})

	t.Run("sla compliance kept as text", func(t *testing.T) {
		got, err := a.SLA(ctx, "etl_daily")
		if err != nil {
			t.Fatal(err)
		}
		if got.Expected != 10 || got.Successes != 9 || got.CompliancePct != "90" {
			t.Errorf("sla = %+v", got)
		}
		if got.Misses == nil || *got.Misses != 1 {
			t.Errorf("misses = %v, want 1", got.Misses)
		}
	})

	t.Run("tasks and logs", func(t *testing.T) {
		tasks, err := a.ListTasks(ctx, "etl_daily")
		if err != nil {
			t.Fatal(err)
		}
		if len(tasks) != 2 || tasks[0].ID != "extract" {
			t.Errorf("tasks = %+v", tasks)
		}
		text, err := a.TaskLog(ctx, dashboard.LogRequest{Pipeline: "etl_daily", Run: "r2", Task: "load", Attempt: 1})
		if err != nil {
			t.Fatal(err)
		}
		if text != "line1\nline2\n" {
			t.Errorf("log = %q", text)
		}
	})

	t.Run("lineage payload passes through", func(t *testing.T) {
		p, err := a.Lineage(ctx, "etl_daily")
		if err != nil {
			t.Fatal(err)
		}
		if len(p.Nodes) != 2 || len(p.Edges) != 2 {
			t.Errorf("payload = %+v", p)
		}
	})
}
