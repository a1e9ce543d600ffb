package surface

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the control surface
type KeyMap struct {
	Toggle  key.Binding
	Cancel  key.Binding
	Close   key.Binding
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Presets key.Binding
	Custom  key.Binding
	Fill    key.Binding
	Refresh key.Binding
	Copy    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap mirrors the board shortcuts: alt+e toggles estimate mode and
// esc backs out one level.
var DefaultKeyMap = KeyMap{
	Toggle: key.NewBinding(
		key.WithKeys("e", "alt+e"),
		key.WithHelp("e", "estimate mode"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Close: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "close"),
	),
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "edit"),
	),
	Presets: key.NewBinding(
		key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
		key.WithHelp("1-9", "preset"),
	),
	Custom: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "custom"),
	),
	Fill: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "fill unestimated"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rescan"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy link"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
