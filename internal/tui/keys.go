package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Down        key.Binding
	Up          key.Binding
	Earlier     key.Binding
	Later       key.Binding
	StartEarly  key.Binding
	StartLate   key.Binding
	EndEarly    key.Binding
	EndLate     key.Binding
	Meter       key.Binding
	Refresh     key.Binding
	Cancel      key.Binding
	DismissNote key.Binding
	Quit        key.Binding

	Accept  key.Binding
	Decline key.Binding
}

var keys = keyMap{
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/k", "選択")),
	Up:          key.NewBinding(key.WithKeys("up", "k")),
	Earlier:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("h/l", "移動")),
	Later:       key.NewBinding(key.WithKeys("right", "l")),
	StartEarly:  key.NewBinding(key.WithKeys("["), key.WithHelp("[ ]", "開始")),
	StartLate:   key.NewBinding(key.WithKeys("]")),
	EndEarly:    key.NewBinding(key.WithKeys("{"), key.WithHelp("{ }", "終了")),
	EndLate:     key.NewBinding(key.WithKeys("}")),
	Meter:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "使用状況")),
	Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "再読込")),
	Cancel:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "取消")),
	DismissNote: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "通知を閉じる")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "終了")),

	Accept:  key.NewBinding(key.WithKeys("y", "Y", "enter"), key.WithHelp("y", "保存")),
	Decline: key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "やめる")),
}

// ShortHelp lists one binding per pair; the partner key is named in its help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Earlier, k.StartEarly, k.EndEarly, k.Meter, k.Refresh, k.DismissNote, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Down, k.Earlier, k.StartEarly, k.EndEarly},
		{k.Meter, k.Refresh, k.Cancel, k.DismissNote, k.Quit},
	}
}

// promptKeys is shown while an overbooking confirmation waits for an answer.
type promptKeys struct{}

func (promptKeys) ShortHelp() []key.Binding  { return []key.Binding{keys.Accept, keys.Decline} }
func (promptKeys) FullHelp() [][]key.Binding { return [][]key.Binding{{keys.Accept, keys.Decline}} }
