package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left    key.Binding
	Right   key.Binding
	Up      key.Binding
	Down    key.Binding
	Grab    key.Binding
	Drop    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "columna anterior")),
		Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "columna siguiente")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "arriba")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "abajo")),
		Grab:    key.NewBinding(key.WithKeys(" "), key.WithHelp("espacio", "mover documento")),
		Drop:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "soltar")),
		Confirm: key.NewBinding(key.WithKeys("enter", "y"), key.WithHelp("enter/y", "confirmar")),
		Cancel:  key.NewBinding(key.WithKeys("esc", "n"), key.WithHelp("esc/n", "cancelar")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "recargar")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "ayuda")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "salir")),
	}
}

// ShortHelp implementa help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Grab, k.Refresh, k.Help, k.Quit}
}

// FullHelp implementa help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Grab, k.Drop, k.Confirm, k.Cancel},
		{k.Refresh, k.Help, k.Quit},
	}
}
