package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/smileynet/airscope/internal/config"
	"github.com/smileynet/airscope/internal/dashboard"
	"github.com/smileynet/airscope/internal/gateway"
	"github.com/smileynet/airscope/internal/lineage"
	"github.com/smileynet/airscope/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Globals holds flags shared by every command. They override config files
// and environment variables.
type Globals struct {
	APIURL  string        `name:"api-url" help:"Gateway base URL."`
	Timeout time.Duration `help:"Per-request timeout (e.g. 10s)."`
}

// CLI is the top-level command structure for airscope.
type CLI struct {
	Globals

	Version   kong.VersionFlag `help:"Show version." short:"V"`
	Dashboard DashboardCmd     `cmd:"" help:"Open interactive dashboard TUI."`
	Dags      DagsCmd          `cmd:"" help:"List DAGs."`
	Runs      RunsCmd          `cmd:"" help:"List runs of a DAG."`
	Tasks     TasksCmd         `cmd:"" help:"List tasks of a DAG."`
	SLA       SLACmd           `cmd:"" name:"sla" help:"Show the daily SLA of a DAG."`
	Lineage   LineageCmd       `cmd:"" help:"Show the lineage graph of a DAG."`
	Logs      LogsCmd          `cmd:"" help:"Print the log of one task attempt."`
}

// gatewayAPI is the subset of *gateway.Client the plain-text commands use.
type gatewayAPI interface {
	ListDAGs(ctx context.Context) ([]gateway.DAG, error)
	ListRuns(ctx context.Context, dagID string) ([]gateway.DAGRun, error)
	ListTasks(ctx context.Context, dagID string) ([]gateway.Task, error)
	SLA(ctx context.Context, dagID, interval string) (gateway.SLAReport, error)
	Lineage(ctx context.Context, dagID string) (lineage.Payload, error)
	TaskLog(ctx context.Context, dagID, runID, taskID string, attempt int) (string, error)
}

// setupError marks failures before any gateway call (config, logging).
type setupError struct {
	err error
}

func (e *setupError) Error() string { return e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/airscope/config.yaml"),
		".airscope/config.yaml",
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env is what a command needs after setup.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	client *gateway.Client
}

// setup loads configuration, applies flag overrides and builds the logger
// and gateway client.
func (g *Globals) setup(cmd string) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, &setupError{fmt.Errorf("%s: %w", cmd, err)}
	}
	if g.APIURL != "" {
		cfg.Gateway.BaseURL = g.APIURL
	}
	if g.Timeout > 0 {
		cfg.Gateway.Timeout = g.Timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, &setupError{fmt.Errorf("%s: %w", cmd, err)}
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, &setupError{fmt.Errorf("%s: %w", cmd, err)}
	}

	client := gateway.New(cfg.Gateway.BaseURL,
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithRateLimit(cfg.Gateway.RateLimit, cfg.Gateway.Burst),
		gateway.WithLogger(logger),
	)
	return &env{cfg: cfg, logger: logger, client: client}, nil
}

// runPlain sets up and runs a plain-text command against stdout.
func (g *Globals) runPlain(cmd string, fn func(ctx context.Context, w io.Writer, api gatewayAPI) error) error {
	e, err := g.setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := fn(ctx, os.Stdout, e.client); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

// --- Plain-text commands ---

// DagsCmd lists pipelines with their schedule.
type DagsCmd struct{}

// Run executes the dags command.
func (c *DagsCmd) Run(g *Globals) error {
	return g.runPlain("dags", c.run)
}

func (c *DagsCmd) run(ctx context.Context, w io.Writer, api gatewayAPI) error {
	dags, err := api.ListDAGs(ctx)
	if err != nil {
		return err
	}
	if len(dags) == 0 {
		_, _ = fmt.Fprintln(w, "No DAGs found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, d := range dags {
		schedule := "N/A"
		if d.TimetableDescription != nil {
			schedule = *d.TimetableDescription
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", d.DagID, schedule)
	}
	return tw.Flush()
}

// RunsCmd lists the runs of a pipeline.
type RunsCmd struct {
	DagID string `arg:"" name:"dag" help:"DAG ID."`
}

// Run executes the runs command.
func (c *RunsCmd) Run(g *Globals) error {
	return g.runPlain("runs", c.run)
}

func (c *RunsCmd) run(ctx context.Context, w io.Writer, api gatewayAPI) error {
	runs, err := api.ListRuns(ctx, c.DagID)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", r.DagRunID, r.State)
	}
	return tw.Flush()
}

// TasksCmd lists the tasks of a pipeline.
type TasksCmd struct {
	DagID string `arg:"" name:"dag" help:"DAG ID."`
}

// Run executes the tasks command.
func (c *TasksCmd) Run(g *Globals) error {
	return g.runPlain("tasks", c.run)
}

func (c *TasksCmd) run(ctx context.Context, w io.Writer, api gatewayAPI) error {
	tasks, err := api.ListTasks(ctx, c.DagID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(w, "No tasks")
		return nil
	}
	for _, t := range tasks {
		_, _ = fmt.Fprintln(w, t.TaskID)
	}
	return nil
}

// SLACmd prints the daily SLA snapshot of a pipeline.
type SLACmd struct {
	DagID string `arg:"" name:"dag" help:"DAG ID."`
}

// Run executes the sla command.
func (c *SLACmd) Run(g *Globals) error {
	return g.runPlain("sla", c.run)
}

func (c *SLACmd) run(ctx context.Context, w io.Writer, api gatewayAPI) error {
	r, err := api.SLA(ctx, c.DagID, gateway.IntervalDaily)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Expected:   %d\n", r.Expected)
	_, _ = fmt.Fprintf(w, "Successes:  %d\n", r.Successes)
	if r.Misses != nil {
		_, _ = fmt.Fprintf(w, "Misses:     %d\n", *r.Misses)
	}
	_, _ = fmt.Fprintf(w, "Compliance: %s%%\n", r.CompliancePct)
	return nil
}

// LineageCmd prints the lineage graph of a pipeline.
type LineageCmd struct {
	DagID string `arg:"" name:"dag" help:"DAG ID."`
}

// Run executes the lineage command.
func (c *LineageCmd) Run(g *Globals) error {
	return g.runPlain("lineage", c.run)
}

func (c *LineageCmd) run(ctx context.Context, w io.Writer, api gatewayAPI) error {
	payload, err := api.Lineage(ctx, c.DagID)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, lineage.Render(lineage.Build(payload)))
	return nil
}

// LogsCmd prints one task attempt's log verbatim.
type LogsCmd struct {
	DagID   string `arg:"" name:"dag" help:"DAG ID."`
	RunID   string `arg:"" name:"run" help:"Run ID."`
	TaskID  string `arg:"" name:"task" help:"Task ID."`
	Attempt int    `help:"Attempt number (1-based)." default:"1"`
}

// Run executes the logs command.
func (c *LogsCmd) Run(g *Globals) error {
	return g.runPlain("logs", c.run)
}

func (c *LogsCmd) run(ctx context.Context, w io.Writer, api gatewayAPI) error {
	text, err := api.TaskLog(ctx, c.DagID, c.RunID, c.TaskID, c.Attempt)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}

// --- Dashboard command ---

// DashboardCmd opens the interactive dashboard TUI.
type DashboardCmd struct {
	DagID string `arg:"" optional:"" name:"dag" help:"Open this DAG's detail view directly."`
}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run builds real dependencies and launches the dashboard TUI.
func (d *DashboardCmd) Run(g *Globals) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return &setupError{fmt.Errorf("dashboard: requires a terminal (TTY)")}
	}

	e, err := g.setup("dashboard")
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	m := dashboard.NewModel(
		dashboard.WithGateway(&dashboardGatewayAdapter{client: e.client}),
		dashboard.WithLogger(e.logger),
		dashboard.WithRequestTimeout(e.cfg.Gateway.Timeout),
		dashboard.WithInitialPipeline(d.DagID),
	)

	e.logger.Info("dashboard starting",
		zap.String("base_url", e.cfg.Gateway.BaseURL),
		zap.String("version", version))

	prog := tea.NewProgram(m, tea.WithAltScreen())
	return d.run(true, prog)
}

// run executes the tea program, enabling testable wiring.
func (d *DashboardCmd) run(isTTY bool, prog teaRunner) error {
	if !isTTY {
		return &setupError{fmt.Errorf("dashboard: requires a terminal (TTY)")}
	}
	_, err := prog.Run()
	return err
}

// --- Dashboard adapter ---

// dashboardGatewayAdapter implements dashboard.Gateway on top of
// *gateway.Client.
type dashboardGatewayAdapter struct {
	client *gateway.Client
}

func (a *dashboardGatewayAdapter) ListPipelines(ctx context.Context) ([]dashboard.Pipeline, error) {
	dags, err := a.client.ListDAGs(ctx)
	if err != nil {
		return nil, err
	}
	pipelines := make([]dashboard.Pipeline, len(dags))
	for i, d := range dags {
		pipelines[i] = dashboard.Pipeline{ID: d.DagID}
		if d.TimetableDescription != nil {
			pipelines[i].Schedule = *d.TimetableDescription
		}
	}
	return pipelines, nil
}

func (a *dashboardGatewayAdapter) ListRuns(ctx context.Context, pipelineID string) ([]dashboard.Run, error) {
	runs, err := a.client.ListRuns(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	out := make([]dashboard.Run, len(runs))
	for i, r := range runs {
		out[i] = dashboard.Run{
			ID:       r.DagRunID,
			State:    dashboard.ParseRunState(r.State),
			RawState: r.State,
		}
	}
	return out, nil
}

func (a *dashboardGatewayAdapter) ListTasks(ctx context.Context, pipelineID string) ([]dashboard.Task, error) {
	tasks, err := a.client.ListTasks(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	out := make([]dashboard.Task, len(tasks))
	for i, t := range tasks {
		out[i] = dashboard.Task{ID: t.TaskID}
	}
	return out, nil
}

func (a *dashboardGatewayAdapter) SLA(ctx context.Context, pipelineID string) (dashboard.SLASnapshot, error) {
	r, err := a.client.SLA(ctx, pipelineID, gateway.IntervalDaily)
	if err != nil {
		return dashboard.SLASnapshot{}, err
	}
	return dashboard.SLASnapshot{
		Expected:      r.Expected,
		Successes:     r.Successes,
		Misses:        r.Misses,
		CompliancePct: r.CompliancePct.String(),
	}, nil
}

func (a *dashboardGatewayAdapter) Lineage(ctx context.Context, pipelineID string) (lineage.Payload, error) {
	return a.client.Lineage(ctx, pipelineID)
}

func (a *dashboardGatewayAdapter) TaskLog(ctx context.Context, req dashboard.LogRequest) (string, error) {
	return a.client.TaskLog(ctx, req.Pipeline, req.Run, req.Task, req.Attempt)
}

// Exit codes.
const (
	exitSuccess = 0
	exitGateway = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var (
		te *gateway.TransportError
		de *gateway.DecodeError
		se *gateway.StatusError
	)
	if errors.As(err, &te) || errors.As(err, &de) || errors.As(err, &se) {
		return exitGateway
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("airscope"),
		kong.Description("Terminal dashboard for a data-pipeline orchestration gateway."),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run(&cli.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
