package dashboard

import "github.com/charmbracelet/bubbles/key"

// listKeys holds key bindings for the pipeline list.
type listKeys struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns the list bindings for the help bar.
func (k listKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Refresh, k.Quit}
}

// FullHelp returns the list bindings grouped for expanded help.
func (k listKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Refresh, k.Quit},
	}
}

// detailKeys holds key bindings for the pipeline detail view.
type detailKeys struct {
	Up      key.Binding
	Down    key.Binding
	Tab     key.Binding
	Enter   key.Binding
	Logs    key.Binding
	Refresh key.Binding
	Back    key.Binding
}

// ShortHelp returns the detail bindings for the help bar.
func (k detailKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Tab, k.Enter, k.Logs, k.Refresh, k.Back}
}

// FullHelp returns the detail bindings grouped for expanded help.
func (k detailKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Tab},
		{k.Enter, k.Logs},
		{k.Refresh, k.Back},
	}
}

// logKeys holds key bindings for the log overlay.
type logKeys struct {
	Scroll      key.Binding
	PrevAttempt key.Binding
	NextAttempt key.Binding
	Close       key.Binding
}

// ShortHelp returns the log overlay bindings for the help bar.
func (k logKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Scroll, k.PrevAttempt, k.NextAttempt, k.Close}
}

// FullHelp returns the log overlay bindings grouped for expanded help.
func (k logKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Scroll},
		{k.PrevAttempt, k.NextAttempt, k.Close},
	}
}

// ListKeyMap returns the key bindings for the pipeline list.
func ListKeyMap() listKeys {
	return listKeys{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// DetailKeyMap returns the key bindings for the pipeline detail view.
func DetailKeyMap() detailKeys {
	return detailKeys{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "runs/tasks"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Logs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "view logs"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
	}
}

// LogKeyMap returns the key bindings for the log overlay.
func LogKeyMap() logKeys {
	return logKeys{
		// Scrolling is handled by the viewport's own key map; this binding
		// only documents it in the help bar.
		Scroll: key.NewBinding(
			key.WithKeys("up", "down", "pgup", "pgdown"),
			key.WithHelp("↑/↓", "scroll"),
		),
		PrevAttempt: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "prev attempt"),
		),
		NextAttempt: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next attempt"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc", "q"),
			key.WithHelp("esc", "close"),
		),
	}
}
