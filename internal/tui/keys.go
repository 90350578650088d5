package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start key.Binding
	Pause key.Binding
	Stop  key.Binding
	Wake  key.Binding
	Next  key.Binding
	Prev  key.Binding
	Quit  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Start: key.NewBinding(key.WithKeys("s", "enter"), key.WithHelp("s", "start")),
		Pause: key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause")),
		Stop:  key.NewBinding(key.WithKeys("x", "esc"), key.WithHelp("x", "stop")),
		Wake:  key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "wake alarm")),
		Next:  key.NewBinding(key.WithKeys("tab", "right"), key.WithHelp("tab", "next field")),
		Prev:  key.NewBinding(key.WithKeys("shift+tab", "left"), key.WithHelp("shift+tab", "prev field")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Pause, k.Stop, k.Wake, k.Next, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Pause, k.Stop},
		{k.Wake, k.Next, k.Prev, k.Quit},
	}
}
