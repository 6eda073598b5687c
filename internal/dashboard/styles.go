package dashboard

import (
	"github.com/charmbracelet/lipgloss"
)

// MinColumnWidth is the minimum character width for a detail column.
const MinColumnWidth = 28

// Run state colors: success=green, failure=red, running=yellow, other=gray.
var runStateColors = map[RunState]lipgloss.AdaptiveColor{
	RunSuccess: {Light: "2", Dark: "10"},
	RunFailure: {Light: "1", Dark: "9"},
	RunRunning: {Light: "3", Dark: "11"},
	RunOther:   {Light: "240", Dark: "245"},
}

var (
	mutedText    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	errorText    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"})
	titleText    = lipgloss.NewStyle().Bold(true)
	headingText  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
	selectedText = lipgloss.NewStyle().Bold(true).Underline(true)
)

// RunStateBadge returns the run's raw state text colored by its class.
func RunStateBadge(r Run) string {
	color, ok := runStateColors[r.State]
	if !ok {
		color = runStateColors[RunOther]
	}
	label := r.RawState
	if label == "" {
		label = string(r.State)
	}
	return lipgloss.NewStyle().Foreground(color).Render(label)
}

// FocusedBorder returns a lipgloss style with an accent-colored rounded border.
func FocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
}

// UnfocusedBorder returns a lipgloss style with a dim rounded border.
func UnfocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "240", Dark: "240"})
}

// ModalBorder returns the style for the log overlay box.
func ModalBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "5", Dark: "13"}).
		Padding(0, 1)
}

// ColumnWidths splits a total width into the left (runs, tasks) and right
// (SLA, lineage) detail columns. Left gets half (minimum MinColumnWidth).
func ColumnWidths(totalWidth int) (left, right int) {
	if totalWidth <= 0 {
		return 0, 0
	}
	left = totalWidth / 2
	if left < MinColumnWidth {
		left = MinColumnWidth
	}
	right = totalWidth - left
	if right < 0 {
		right = 0
	}
	return left, right
}
