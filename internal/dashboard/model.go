package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// helpBarHeight is the number of lines reserved for the help bar at the bottom.
const helpBarHeight = 1

// Model is the root Bubble Tea model for the dashboard TUI.
// It routes messages between the pipeline list and the detail view.
type Model struct {
	mode    Mode
	width   int
	height  int
	list    listState
	detail  detailState
	cache   *Cache
	fetch   fetcher
	gw      Gateway
	logger  *zap.Logger
	initial string
	spinner spinner.Model
	help    help.Model
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithGateway sets the data source for all panels.
func WithGateway(gw Gateway) ModelOption {
	return func(m *Model) {
		m.gw = gw
	}
}

// WithLogger sets the logger for fetch failures and discarded results.
func WithLogger(l *zap.Logger) ModelOption {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRequestTimeout bounds each gateway call.
func WithRequestTimeout(d time.Duration) ModelOption {
	return func(m *Model) {
		m.fetch.timeout = d
	}
}

// WithInitialPipeline opens the detail view for id once the pipeline list
// has loaded, so the header can show its schedule.
func WithInitialPipeline(id string) ModelOption {
	return func(m *Model) {
		m.initial = id
	}
}

// NewModel creates a dashboard Model in list mode.
func NewModel(opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		mode:    ModeList,
		list:    newListState(),
		cache:   NewCache(),
		logger:  zap.NewNop(),
		spinner: s,
		help:    help.New(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.fetch.gw = m.gw
	return m
}

// Init starts the spinner and loads the pipeline list.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.gw != nil {
		cmds = append(cmds, m.fetch.pipelines())
	}
	return tea.Batch(cmds...)
}

// Mode returns the current screen.
func (m Model) Mode() Mode { return m.mode }

// Update handles incoming messages with mode-based routing.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if m.mode == ModeDetail {
			m.detail = m.detail.resize(m.width, m.contentHeight())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PipelinesLoadedMsg:
		if msg.Err != nil {
			m.logger.Warn("listing pipelines failed", zap.Error(msg.Err))
		} else {
			m.cache.Fill(msg.Pipelines)
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		if m.initial != "" {
			id := m.initial
			m.initial = ""
			cmd = tea.Batch(cmd, func() tea.Msg { return SelectPipelineMsg{PipelineID: id} })
		}
		return m, cmd

	case RefreshPipelinesMsg:
		m.cache.Invalidate()
		if m.gw == nil {
			return m, nil
		}
		m.list.loading = true
		return m, m.fetch.pipelines()

	case SelectPipelineMsg:
		return m.openDetail(msg.PipelineID)

	case NavigateBackMsg:
		m.mode = ModeList
		m.detail = detailState{}
		return m, nil

	case RunsLoadedMsg, TasksLoadedMsg, SLALoadedMsg, LineageLoadedMsg, LogLoadedMsg:
		if m.mode != ModeDetail {
			m.logger.Debug("discarding result outside detail view")
			return m, nil
		}
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	return m, nil
}

// openDetail switches to the detail view for id. The schedule comes from
// the cached list entry when there is one.
func (m Model) openDetail(id string) (tea.Model, tea.Cmd) {
	if m.gw == nil || id == "" {
		return m, nil
	}
	p := Pipeline{ID: id}
	if cached, ok := m.cache.Get(id); ok {
		p = *cached
	}
	var cmd tea.Cmd
	m.detail, cmd = newDetailState(p, m.fetch, m.logger)
	m.detail = m.detail.resize(m.width, m.contentHeight())
	m.mode = ModeDetail
	m.logger.Info("opened pipeline", zap.String("pipeline", id))
	return m, cmd
}

// handleKey processes key messages with global and mode-specific routing.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	var cmd tea.Cmd
	switch m.mode {
	case ModeDetail:
		m.detail, cmd = m.detail.Update(msg)
	default:
		if msg.String() == "q" {
			return m, tea.Quit
		}
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

// contentHeight returns the usable height above the help bar.
func (m Model) contentHeight() int {
	h := m.height - helpBarHeight
	if h < 1 {
		return 1
	}
	return h
}

// View renders the current screen with the help bar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var content string
	switch m.mode {
	case ModeDetail:
		content = m.detail.View(m.width, m.contentHeight(), m.spinner.View())
	default:
		content = m.list.View(m.spinner.View())
	}

	helpView := m.help.View(HelpBindings(m.mode, m.mode == ModeDetail && m.detail.sel.LogOpen()))
	return lipgloss.JoinVertical(lipgloss.Left, content, helpView)
}
