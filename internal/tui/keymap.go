package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	// Navigation
	Up   key.Binding
	Down key.Binding

	// Review actions
	Edit    key.Binding
	Accept  key.Binding
	Discard key.Binding
	Save    key.Binding
	Reset   key.Binding
	Load    key.Binding

	// Editor
	Apply     key.Binding
	Cancel    key.Binding
	NextField key.Binding
	PrevField key.Binding

	// Application
	Help      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),

		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit"),
		),
		Accept: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "mark ready"),
		),
		Discard: key.NewBinding(
			key.WithKeys("d", "x"),
			key.WithHelp("d", "discard"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save all"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset"),
		),
		Load: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "load"),
		),

		Apply: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "apply"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("Tab", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("Shift+Tab", "previous field"),
		),

		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("Ctrl+C", "force quit"),
		),
	}
}

// ReviewHelp returns the bindings shown while reviewing.
func (k KeyMap) ReviewHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Edit, k.Accept, k.Discard, k.Save, k.Reset, k.Quit}
}

// EditHelp returns the bindings shown in the editor.
func (k KeyMap) EditHelp() []key.Binding {
	return []key.Binding{k.NextField, k.PrevField, k.Apply, k.Cancel}
}

// DoneHelp returns the bindings shown once a save has finished.
func (k KeyMap) DoneHelp() []key.Binding {
	return []key.Binding{k.Reset, k.Quit}
}

// IdleHelp returns the bindings shown with no batch loaded.
func (k KeyMap) IdleHelp() []key.Binding {
	return []key.Binding{k.Load, k.Quit}
}
