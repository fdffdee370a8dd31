package tui

// Keybinding constants
const (
	KeyEnter    = "enter"
	KeyToggle   = "ctrl+o"
	KeyClose    = "esc"
	KeyCopy     = "ctrl+y"
	KeyCtrlC    = "ctrl+c"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyPageUp   = "pgup"
	KeyPageDown = "pgdown"
)

// HelpView returns a one-line help bar for the given widget state.
func HelpView(open bool) string {
	if !open {
		return StyleHelp.Render("enter/ctrl+o: open chat | ctrl+c: quit")
	}
	return StyleHelp.Render("enter: send | up/down: scroll | ctrl+y: copy reply | esc: close | ctrl+o: toggle | ctrl+c: quit")
}
