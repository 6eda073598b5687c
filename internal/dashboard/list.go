package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// CursorMarker is the prefix shown on the selected row.
const CursorMarker = "▸ "

// listState manages the pipeline list, cursor, and loading/error states.
type listState struct {
	pipelines []Pipeline
	cursor    int
	loading   bool
	err       error
}

// newListState returns a listState in the loading state.
func newListState() listState {
	return listState{loading: true}
}

// Update processes messages for the list state.
func (ls listState) Update(msg tea.Msg) (listState, tea.Cmd) {
	switch msg := msg.(type) {
	case PipelinesLoadedMsg:
		return ls.applyPipelines(msg.Pipelines, msg.Err), nil

	case tea.KeyMsg:
		if ls.loading {
			return ls, nil
		}
		return ls.handleKey(msg)
	}

	return ls, nil
}

// applyPipelines applies a fetched pipeline list (or error), clearing the
// loading indicator. The cursor stays on the same pipeline when it is
// still listed.
func (ls listState) applyPipelines(pipelines []Pipeline, err error) listState {
	ls.loading = false
	if err != nil {
		ls.err = err
		ls.pipelines = nil
		ls.cursor = 0
		return ls
	}
	prev := ls.SelectedID()
	ls.err = nil
	ls.pipelines = append([]Pipeline(nil), pipelines...)
	ls.cursor = 0
	for i, p := range ls.pipelines {
		if p.ID == prev {
			ls.cursor = i
			break
		}
	}
	return ls
}

func (ls listState) handleKey(msg tea.KeyMsg) (listState, tea.Cmd) {
	keys := ListKeyMap()
	switch {
	case key.Matches(msg, keys.Up):
		if len(ls.pipelines) > 0 {
			ls.cursor = wrapCursor(ls.cursor-1, len(ls.pipelines))
		}
		return ls, nil

	case key.Matches(msg, keys.Down):
		if len(ls.pipelines) > 0 {
			ls.cursor = wrapCursor(ls.cursor+1, len(ls.pipelines))
		}
		return ls, nil

	case key.Matches(msg, keys.Enter):
		if id := ls.SelectedID(); id != "" {
			return ls, func() tea.Msg { return SelectPipelineMsg{PipelineID: id} }
		}
		return ls, nil

	case key.Matches(msg, keys.Refresh):
		ls.loading = true
		ls.err = nil
		return ls, func() tea.Msg { return RefreshPipelinesMsg{} }
	}

	return ls, nil
}

// SelectedID returns the pipeline ID at the current cursor position,
// or "" if the list is empty or still loading.
func (ls listState) SelectedID() string {
	if len(ls.pipelines) == 0 || ls.cursor < 0 || ls.cursor >= len(ls.pipelines) {
		return ""
	}
	return ls.pipelines[ls.cursor].ID
}

// View renders the pipeline list.
// spinnerView is the current spinner frame (may be empty when spinner is inactive).
func (ls listState) View(spinnerView string) string {
	var b strings.Builder
	b.WriteString(titleText.Render("DAGs"))
	b.WriteString("\n\n")

	if ls.loading {
		fmt.Fprintf(&b, "%s Loading DAGs...", spinnerView)
		return b.String()
	}

	if ls.err != nil {
		fmt.Fprintf(&b, "Error: %s\n\nPress r to retry", ls.err)
		return b.String()
	}

	if len(ls.pipelines) == 0 {
		b.WriteString("No DAGs found. Press r to refresh")
		return b.String()
	}

	for i, p := range ls.pipelines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if i == ls.cursor {
			b.WriteString(CursorMarker)
		} else {
			b.WriteString("  ")
		}
		schedule := p.Schedule
		if schedule == "" {
			schedule = "N/A"
		}
		b.WriteString(p.ID + "  " + mutedText.Render("Schedule: "+schedule))
	}
	return b.String()
}
