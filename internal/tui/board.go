// Package tui is the interactive board: three lanes, keyboard drag and drop,
// inline add and edit.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/kanban/internal/gesture"
	"github.com/idilsaglam/kanban/internal/model"
	"github.com/idilsaglam/kanban/internal/notify"
	"github.com/idilsaglam/kanban/internal/reconcile"
	"github.com/idilsaglam/kanban/internal/ui"
)

const toastTTL = 4 * time.Second

// Controller is the part of reconcile.Controller the board drives.
type Controller interface {
	Snapshot() reconcile.Snapshot
	Changes() <-chan struct{}
	LoadAll()
	Add(title, description string) error
	Edit(id, title, description string) error
	Delete(id string) error
	DragStart(todoID string) error
	DragOver(targetID string, kind gesture.TargetKind) (bool, error)
	DragEnd() (model.Todo, bool)
	DragCancel()
}

// Toasts yields the newest notification.
type Toasts interface {
	Latest() (notify.Notification, bool)
}

type mode int

const (
	modeBrowse mode = iota
	modeGrab
	modeAddTitle
	modeAddDesc
	modeEditTitle
	modeEditDesc
)

type (
	changedMsg struct{}
	tickMsg    struct{}
)

type Model struct {
	ctrl   Controller
	toasts Toasts
	now    func() time.Time

	snap    reconcile.Snapshot
	lane    int
	cursor  []int
	hoverID string

	mode       mode
	input      textinput.Model
	draftTitle string
	editID     string
	flash      string

	help    help.Model
	spinner spinner.Model
	width   int
	height  int
}

func New(ctrl Controller, toasts Toasts) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = accentStyle

	h := help.New()
	h.Styles.ShortKey = helpStyle.Bold(true)
	h.Styles.ShortDesc = helpStyle
	h.Styles.ShortSeparator = helpStyle

	w, ht := ui.TermSize()
	m := Model{
		ctrl:    ctrl,
		toasts:  toasts,
		now:     time.Now,
		input:   ti,
		help:    h,
		spinner: sp,
		width:   w,
		height:  ht,
	}
	m.refresh()
	return m
}

// Run starts loading and blocks until the user quits.
func Run(ctrl Controller, toasts Toasts) error {
	ctrl.LoadAll()
	_, err := tea.NewProgram(New(ctrl, toasts), tea.WithAltScreen()).Run()
	return err
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.ctrl.Changes()), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		m.refresh()
		cmds := []tea.Cmd{waitForChange(m.ctrl.Changes())}
		if _, ok := m.toast(); ok {
			cmds = append(cmds, tea.Tick(toastTTL, func(time.Time) tea.Msg { return tickMsg{} }))
		}
		return m, tea.Batch(cmds...)

	case tickMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case modeGrab:
			return m.updateGrab(msg)
		case modeAddTitle, modeAddDesc, modeEditTitle, modeEditDesc:
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""
	lanes := m.snap.Lanes
	switch {
	case key.Matches(msg, browse.Quit):
		return m, tea.Quit

	case key.Matches(msg, browse.Left):
		if m.lane > 0 {
			m.lane--
		}
	case key.Matches(msg, browse.Right):
		if m.lane < len(lanes)-1 {
			m.lane++
		}
	case key.Matches(msg, browse.Up):
		if m.cursor[m.lane] > 0 {
			m.cursor[m.lane]--
		}
	case key.Matches(msg, browse.Down):
		if m.cursor[m.lane] < len(lanes[m.lane].Todos)-1 {
			m.cursor[m.lane]++
		}

	case key.Matches(msg, browse.Grab):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.ctrl.DragStart(t.ID); err != nil {
			m.flash = err.Error()
			return m, nil
		}
		m.mode = modeGrab
		m.hoverID = ""
		m.refresh()

	case key.Matches(msg, browse.Add):
		m.mode = modeAddTitle
		m.draftTitle = ""
		return m, m.prompt("New todo title...", "")

	case key.Matches(msg, browse.Edit):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeEditTitle
		m.editID = t.ID
		m.draftTitle = ""
		return m, m.prompt("Edit title...", t.Title)

	case key.Matches(msg, browse.Delete):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.ctrl.Delete(t.ID); err != nil {
			m.flash = err.Error()
		}
		m.refresh()

	case key.Matches(msg, browse.Reload):
		m.ctrl.LoadAll()
		m.refresh()
	}
	return m, nil
}

func (m Model) updateGrab(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lanes := m.snap.Lanes
	switch {
	case key.Matches(msg, grab.Left), key.Matches(msg, grab.Right):
		target := m.lane - 1
		if key.Matches(msg, grab.Right) {
			target = m.lane + 1
		}
		if target < 0 || target >= len(lanes) {
			return m, nil
		}
		m.hoverID = ""
		m.over(string(lanes[target].ID), gesture.TargetLane)
		m.lane = target

	case key.Matches(msg, grab.Up), key.Matches(msg, grab.Down):
		step := 1
		if key.Matches(msg, grab.Up) {
			step = -1
		}
		if id, ok := m.nextHover(step); ok {
			m.hoverID = id
			m.over(id, gesture.TargetTodo)
		}

	case key.Matches(msg, grab.Drop):
		m.ctrl.DragEnd()
		m.mode = modeBrowse
		m.hoverID = ""
		m.refresh()

	case key.Matches(msg, grab.Cancel):
		m.ctrl.DragCancel()
		m.mode = modeBrowse
		m.hoverID = ""
		m.refresh()
	}
	return m, nil
}

func (m *Model) over(targetID string, kind gesture.TargetKind) {
	if _, err := m.ctrl.DragOver(targetID, kind); err != nil {
		m.flash = err.Error()
	}
	m.refresh()
}

// nextHover cycles through the other todos of the focused lane.
func (m Model) nextHover(step int) (string, bool) {
	var others []string
	for _, t := range m.snap.Lanes[m.lane].Todos {
		if t.ID != m.snap.Dragging {
			others = append(others, t.ID)
		}
	}
	if len(others) == 0 {
		return "", false
	}
	i := -1
	for j, id := range others {
		if id == m.hoverID {
			i = j
		}
	}
	switch {
	case i < 0 && step < 0:
		i = len(others) - 1
	case i < 0:
		i = 0
	default:
		i = (i + step + len(others)) % len(others)
	}
	return others[i], true
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, typing.Cancel):
		m.mode = modeBrowse
		m.flash = ""
		m.input.Blur()
		m.input.SetValue("")
		return m, nil

	case key.Matches(msg, typing.Submit):
		value := strings.TrimSpace(m.input.Value())
		switch m.mode {
		case modeAddTitle, modeEditTitle:
			if value == "" {
				m.flash = "Title cannot be empty"
				return m, nil
			}
			m.flash = ""
			m.draftTitle = value
			if m.mode == modeAddTitle {
				m.mode = modeAddDesc
				return m, m.prompt("Description (optional)...", "")
			}
			desc := ""
			if t, ok := m.find(m.editID); ok {
				desc = t.Description
			}
			m.mode = modeEditDesc
			return m, m.prompt("Description (optional)...", desc)

		case modeAddDesc:
			if err := m.ctrl.Add(m.draftTitle, value); err != nil {
				m.flash = err.Error()
			}
		case modeEditDesc:
			if err := m.ctrl.Edit(m.editID, m.draftTitle, value); err != nil {
				m.flash = err.Error()
			}
		}
		m.mode = modeBrowse
		m.input.Blur()
		m.input.SetValue("")
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) prompt(placeholder, value string) tea.Cmd {
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

// refresh pulls a new snapshot and keeps the selection in range. While
// grabbing, focus follows the dragged todo.
func (m *Model) refresh() {
	m.snap = m.ctrl.Snapshot()
	lanes := m.snap.Lanes
	if len(m.cursor) != len(lanes) {
		m.cursor = make([]int, len(lanes))
	}
	if m.mode == modeGrab {
		if m.snap.Dragging == "" {
			m.mode = modeBrowse
			m.hoverID = ""
		} else {
			for li, l := range lanes {
				for ti, t := range l.Todos {
					if t.ID == m.snap.Dragging {
						m.lane, m.cursor[li] = li, ti
					}
				}
			}
		}
	}
	m.lane = max(0, min(m.lane, len(lanes)-1))
	for i, l := range lanes {
		m.cursor[i] = max(0, min(m.cursor[i], len(l.Todos)-1))
	}
}

func (m Model) selected() (model.Todo, bool) {
	if m.lane >= len(m.snap.Lanes) {
		return model.Todo{}, false
	}
	todos := m.snap.Lanes[m.lane].Todos
	if i := m.cursor[m.lane]; i < len(todos) {
		return todos[i], true
	}
	return model.Todo{}, false
}

func (m Model) find(id string) (model.Todo, bool) {
	for _, l := range m.snap.Lanes {
		for _, t := range l.Todos {
			if t.ID == id {
				return t, true
			}
		}
	}
	return model.Todo{}, false
}

func (m Model) toast() (notify.Notification, bool) {
	if m.toasts == nil {
		return notify.Notification{}, false
	}
	n, ok := m.toasts.Latest()
	if !ok || m.now().Sub(n.At) > toastTTL {
		return notify.Notification{}, false
	}
	return n, true
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	if m.snap.LoadErr != nil {
		msg := "Failed to load todos. Press r to retry."
		if m.snap.Loaded {
			msg += " Showing the last known board."
		}
		b.WriteString(bannerStyle.Render(msg))
		b.WriteString("\n")
	}

	if !m.snap.Loaded && m.snap.Loading {
		b.WriteString(m.spinner.View() + " Loading todos...\n")
	} else {
		b.WriteString(m.lanesView())
		b.WriteString("\n")
	}

	if bar := m.inputView(); bar != "" {
		b.WriteString(bar)
		b.WriteString("\n")
	}
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	var keys help.KeyMap = browse
	switch m.mode {
	case modeGrab:
		keys = grab
	case modeAddTitle, modeAddDesc, modeEditTitle, modeEditDesc:
		keys = typing
	}
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) header() string {
	counts := make([]string, 0, len(m.snap.Lanes))
	total := 0
	for _, l := range m.snap.Lanes {
		counts = append(counts, fmt.Sprintf("%s %d", laneTitleStyle(l.ID).Render(l.Title), len(l.Todos)))
		total += len(l.Todos)
	}
	line := fmt.Sprintf("%s   %s   %s %d", titleStyle.Render("Board"), strings.Join(counts, "  "), accentStyle.Render("Total"), total)
	if m.snap.Loading {
		line += "  " + m.spinner.View()
	}
	if m.mode == modeGrab {
		line += "  " + draggedStyle.Render(" moving ")
	}
	return line
}

func (m Model) lanesView() string {
	n := max(1, len(m.snap.Lanes))
	width := max(18, m.width/n-4)
	views := make([]string, 0, n)
	for i, l := range m.snap.Lanes {
		views = append(views, m.laneView(i, l, width))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

func (m Model) laneView(index int, l model.Lane, width int) string {
	var s strings.Builder
	s.WriteString(laneTitleStyle(l.ID).Render(fmt.Sprintf("%s (%d)", l.Title, len(l.Todos))))
	s.WriteString("\n\n")
	if len(l.Todos) == 0 {
		s.WriteString(mutedStyle.Render("(empty)"))
	}
	for i, t := range l.Todos {
		if i > 0 {
			s.WriteString("\n")
		}
		s.WriteString(m.cardView(index, i, t, width))
	}

	style := laneStyle
	switch {
	case m.mode == modeGrab && index == m.lane:
		style = dropLaneStyle
	case index == m.lane:
		style = focusedLaneStyle
	}
	return style.Width(width).Render(s.String())
}

func (m Model) cardView(laneIdx, i int, t model.Todo, width int) string {
	title := ui.Truncate(t.Title, width-4)
	line := fmt.Sprintf("%s %s", box(t.Status), title)
	switch {
	case t.ID == m.snap.Dragging:
		line = draggedStyle.Render("⇅ " + title)
	case t.ID == m.hoverID:
		line = hoverStyle.Render(line)
	case m.mode != modeGrab && laneIdx == m.lane && i == m.cursor[laneIdx]:
		line = selectedStyle.Render("> " + title)
	case t.Status == model.StatusCompleted:
		line = fmt.Sprintf("%s %s", box(t.Status), doneStyle.Render(title))
	}
	if t.Description != "" {
		line += "\n  " + mutedStyle.Render(ui.Truncate(t.Description, width-4))
	}
	return line
}

func (m Model) inputView() string {
	var title string
	switch m.mode {
	case modeAddTitle:
		title = "Add todo: title"
	case modeAddDesc:
		title = "Add todo: description for " + fmt.Sprintf("%q", m.draftTitle)
	case modeEditTitle:
		title = "Edit #" + m.editID + ": title"
	case modeEditDesc:
		title = "Edit #" + m.editID + ": description"
	default:
		return ""
	}
	return inputBarStyle.Render(title + "\n" + m.input.View())
}

func (m Model) statusLine() string {
	if m.flash != "" {
		return errorStyle.Render("✖ " + m.flash)
	}
	if n, ok := m.toast(); ok {
		return toastStyle(n.Level).Render(n.Message)
	}
	return ""
}
