package dashboard

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the dashboard.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Toggle   key.Binding
	Increase key.Binding
	Decrease key.Binding
	Eco      key.Binding
	Arm      key.Binding
	Away     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap is the default set of keybindings.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" ", "enter"),
		key.WithHelp("space", "on/off"),
	),
	Increase: key.NewBinding(
		key.WithKeys("+", "=", "right", "l"),
		key.WithHelp("+/→", "brighter/warmer"),
	),
	Decrease: key.NewBinding(
		key.WithKeys("-", "left", "h"),
		key.WithHelp("-/←", "dimmer/cooler"),
	),
	Eco: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "eco mode"),
	),
	Arm: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "arm/disarm"),
	),
	Away: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "home/away"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "quit"),
	),
}

// ShortHelp returns keybindings to be shown in the compact help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Increase, k.Decrease, k.Help, k.Quit}
}

// FullHelp returns keybindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle},
		{k.Increase, k.Decrease, k.Eco},
		{k.Arm, k.Away},
		{k.Help, k.Quit},
	}
}
