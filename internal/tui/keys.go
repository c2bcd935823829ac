package tui

import "github.com/charmbracelet/bubbles/key"

type browseKeys struct {
	Left, Right, Up, Down key.Binding
	Grab                  key.Binding
	Add, Edit, Delete     key.Binding
	Reload, Quit          key.Binding
}

type grabKeys struct {
	Left, Right, Up, Down key.Binding
	Drop, Cancel          key.Binding
}

type inputKeys struct {
	Submit, Cancel key.Binding
}

var (
	browse = browseKeys{
		Left:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/l", "lane")),
		Right:  key.NewBinding(key.WithKeys("l", "right")),
		Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "select")),
		Down:   key.NewBinding(key.WithKeys("j", "down")),
		Grab:   key.NewBinding(key.WithKeys(" ", "m"), key.WithHelp("space/m", "grab")),
		Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete: key.NewBinding(key.WithKeys("x", "d"), key.WithHelp("x", "delete")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
	grab = grabKeys{
		Left:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/l", "hover lane")),
		Right:  key.NewBinding(key.WithKeys("l", "right")),
		Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "hover todo")),
		Down:   key.NewBinding(key.WithKeys("j", "down")),
		Drop:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop")),
		Cancel: key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel")),
	}
	typing = inputKeys{
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "next")),
		Cancel: key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel")),
	}
)

func (k browseKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Up, k.Grab, k.Add, k.Edit, k.Delete, k.Reload, k.Quit}
}

func (k browseKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

func (k grabKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Up, k.Drop, k.Cancel}
}

func (k grabKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

func (k inputKeys) ShortHelp() []key.Binding { return []key.Binding{k.Submit, k.Cancel} }

func (k inputKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
