package dashboard

import "github.com/charmbracelet/bubbles/help"

// HelpBindings returns the help.KeyMap for the given mode,
// providing context-aware help bar content.
func HelpBindings(mode Mode, logOpen bool) help.KeyMap {
	switch {
	case mode == ModeDetail && logOpen:
		return LogKeyMap()
	case mode == ModeDetail:
		return DetailKeyMap()
	default:
		return ListKeyMap()
	}
}
