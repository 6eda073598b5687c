package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LogLoadingText is the placeholder shown while a log request is in flight.
const LogLoadingText = "Loading..."

// logChrome is the number of lines the overlay border and header take.
const logChrome = 4

// logViewer holds the log overlay content. Which request it belongs to is
// decided by the detail state's log token before apply is called.
type logViewer struct {
	req      LogRequest
	loading  bool
	text     string
	err      error
	viewport viewport.Model
}

func newLogViewer() logViewer {
	return logViewer{viewport: viewport.New(0, 0)}
}

// begin shows the loading placeholder for req.
func (lv logViewer) begin(req LogRequest) logViewer {
	lv.req = req
	lv.loading = true
	lv.text = ""
	lv.err = nil
	lv.viewport.SetContent(LogLoadingText)
	lv.viewport.GotoTop()
	return lv
}

// apply replaces the placeholder with the log text, or with an error
// message derived from the failure.
func (lv logViewer) apply(msg LogLoadedMsg) logViewer {
	lv.loading = false
	if msg.Err != nil {
		lv.err = msg.Err
		lv.text = ""
	} else {
		lv.err = nil
		lv.text = msg.Text
	}
	lv.viewport.SetContent(lv.Content())
	lv.viewport.GotoTop()
	return lv
}

// Content returns the overlay body: the placeholder, the error message,
// or the log text verbatim.
func (lv logViewer) Content() string {
	switch {
	case lv.loading:
		return LogLoadingText
	case lv.err != nil:
		return fmt.Sprintf("Error: %s", lv.err)
	default:
		return lv.text
	}
}

// resize fits the viewport inside a width x height overlay.
func (lv logViewer) resize(width, height int) logViewer {
	w := width - 8
	if w < 10 {
		w = 10
	}
	h := height - 4 - logChrome
	if h < 3 {
		h = 3
	}
	lv.viewport.Width = w
	lv.viewport.Height = h
	return lv
}

// Update forwards scroll keys to the viewport.
func (lv logViewer) Update(msg tea.Msg) (logViewer, tea.Cmd) {
	var cmd tea.Cmd
	lv.viewport, cmd = lv.viewport.Update(msg)
	return lv, cmd
}

// View renders the overlay box.
func (lv logViewer) View(spinnerView string) string {
	var b strings.Builder
	b.WriteString(titleText.Render("Task Logs"))
	fmt.Fprintf(&b, "  %s", mutedText.Render(fmt.Sprintf("%s · run %s · attempt %d", lv.req.Task, lv.req.Run, lv.req.Attempt)))
	b.WriteString("\n\n")

	switch {
	case lv.loading:
		fmt.Fprintf(&b, "%s %s", spinnerView, LogLoadingText)
	case lv.err != nil:
		b.WriteString(errorText.Render(lv.Content()))
	default:
		b.WriteString(lv.viewport.View())
	}

	return ModalBorder().Width(lv.viewport.Width + 2).Render(b.String())
}

// place centers the overlay over a width x height area.
func (lv logViewer) place(width, height int, spinnerView string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, lv.View(spinnerView))
}
