// Package tui is the interactive mascot screen.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amirbrooks/fivetask/internal/mood"
	"github.com/amirbrooks/fivetask/internal/store"
	"github.com/amirbrooks/fivetask/internal/task"
)

type mode int

const (
	modeNormal mode = iota
	modeAdd
	modeEdit
	modeConfirmClear
	modeAlert
)

const maxTextLen = 120

type Options struct {
	IdleAfter time.Duration
	ASCII     bool
	// Copy writes to the system clipboard. Defaults to clipboard.WriteAll.
	Copy func(string) error
}

type snapshotMsg store.Snapshot

type idleMsg struct{ seq int }

type Model struct {
	st      *store.Store
	notices mood.Notices
	snap    store.Snapshot
	keys    keyMap
	help    help.Model
	input   textinput.Model

	mode     mode
	cursor   int
	editID   string
	alert    string
	status   string
	width    int
	quitting bool

	idleAfter time.Duration
	idleSeq   int
	ascii     bool
	copyText  func(string) error
}

func New(st *store.Store, opts Options) Model {
	ti := textinput.New()
	ti.CharLimit = maxTextLen
	ti.Prompt = "> "
	ti.Width = 48

	copyText := opts.Copy
	if copyText == nil {
		copyText = clipboard.WriteAll
	}
	return Model{
		st:        st,
		notices:   st.Notices(),
		snap:      st.Snapshot(),
		keys:      defaultKeys(),
		help:      help.New(),
		input:     ti,
		width:     80,
		idleAfter: opts.IdleAfter,
		ascii:     opts.ASCII,
		copyText:  copyText,
	}
}

// Run blocks until the user quits.
func Run(st *store.Store, opts Options) error {
	_, err := tea.NewProgram(New(st, opts), tea.WithAltScreen()).Run()
	return err
}

func waitForSnapshot(ch <-chan store.Snapshot) tea.Cmd {
	return func() tea.Msg { return snapshotMsg(<-ch) }
}

func (m Model) idleTick() tea.Cmd {
	if m.idleAfter <= 0 {
		return nil
	}
	seq := m.idleSeq
	return tea.Tick(m.idleAfter, func(time.Time) tea.Msg { return idleMsg{seq: seq} })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.st.Updates()), m.idleTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		m.setSnapshot(store.Snapshot(msg))
		return m, waitForSnapshot(m.st.Updates())

	case idleMsg:
		if msg.seq == m.idleSeq {
			m.st.Idle()
			m.refresh()
		}
		return m, nil

	case tea.KeyMsg:
		m.idleSeq++
		var cmd tea.Cmd
		switch m.mode {
		case modeAdd, modeEdit:
			m, cmd = m.updateInput(msg)
		case modeConfirmClear:
			m = m.updateConfirm(msg)
		case modeAlert:
			m.mode = modeNormal
			m.alert = ""
		default:
			m, cmd = m.updateNormal(msg)
		}
		if m.quitting {
			return m, tea.Quit
		}
		return m, tea.Batch(cmd, m.idleTick())
	}
	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (Model, tea.Cmd) {
	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.snap.Tasks)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Add):
		m.mode = modeAdd
		m.input.SetValue("")
		m.input.Placeholder = "What needs doing?"
		if m.snap.Full() {
			m.input.Placeholder = m.notices.ListFull
		}
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Toggle):
		if t, ok := m.selected(); ok {
			m.report(m.st.ToggleComplete(t.ID))
		}
	case key.Matches(msg, m.keys.Edit):
		t, ok := m.selected()
		if !ok || t.Completed {
			return m, nil
		}
		m.mode = modeEdit
		m.editID = t.ID
		m.input.Placeholder = ""
		m.input.SetValue(t.Text)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Delete):
		if t, ok := m.selected(); ok {
			_, err := m.st.Delete(t.ID)
			m.report(err)
		}
	case key.Matches(msg, m.keys.Undo):
		err := m.st.UndoDelete()
		if errors.Is(err, store.ErrFull) {
			m.mode = modeAlert
			m.alert = m.notices.UndoFull
		} else if !errors.Is(err, store.ErrNothingToUndo) {
			m.report(err)
		}
	case key.Matches(msg, m.keys.Dismiss):
		m.st.DismissUndo()
	case key.Matches(msg, m.keys.Clear):
		if len(m.snap.Tasks) > 0 {
			m.mode = modeConfirmClear
		}
	case key.Matches(msg, m.keys.Copy):
		if t, ok := m.selected(); ok {
			if err := m.copyText(t.Text); err != nil {
				m.status = "copy failed: " + err.Error()
				return m, nil
			}
			m.status = "copied"
		}
	}
	m.refresh()
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.leaveInput()
		return m, nil
	case tea.KeyEnter:
		text := m.input.Value()
		var err error
		if m.mode == modeEdit {
			err = m.st.EditText(m.editID, text)
		} else {
			_, err = m.st.Add(text)
		}
		switch {
		case errors.Is(err, store.ErrInvalid):
			// Keep the input open for empty text.
			return m, nil
		case errors.Is(err, store.ErrFull):
			m.leaveInput()
			m.refresh()
			return m, nil
		}
		m.report(err)
		if m.mode == modeAdd && err == nil {
			m.cursor = 0
		}
		m.leaveInput()
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) Model {
	answer := false
	switch msg.String() {
	case "y", "Y", "enter":
		answer = true
	case "n", "N", "esc", "q":
	default:
		return m
	}
	m.mode = modeNormal
	err := m.st.ClearAll(store.ConfirmFunc(func(string) bool { return answer }))
	if !errors.Is(err, store.ErrCanceled) {
		m.report(err)
	}
	m.refresh()
	return m
}

func (m *Model) leaveInput() {
	m.mode = modeNormal
	m.editID = ""
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) report(err error) {
	if err != nil {
		m.status = err.Error()
	}
}

func (m *Model) refresh() {
	m.setSnapshot(m.st.Snapshot())
}

func (m *Model) setSnapshot(s store.Snapshot) {
	m.snap = s
	if m.cursor >= len(s.Tasks) {
		m.cursor = len(s.Tasks) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() (task.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Tasks) {
		return task.Task{}, false
	}
	return m.snap.Tasks[m.cursor], true
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("fivetask"))
	b.WriteString("\n\n")
	b.WriteString(renderMascot(m.snap.Mood, m.snap.Quote, m.width, m.ascii))
	b.WriteString("\n\n")

	slots := fmt.Sprintf("Slots: %d / %d", m.snap.Remaining, store.Capacity)
	if m.snap.Full() {
		slots = slotsFull.Render(slots)
	} else {
		slots = slotsStyle.Render(slots)
	}
	b.WriteString(headerStyle.Render("MISSIONS") + "   " + slots + "\n")
	b.WriteString(m.viewList())

	switch m.mode {
	case modeAdd, modeEdit:
		b.WriteString("\n")
		if m.mode == modeAdd && m.snap.Full() {
			b.WriteString(slotsFull.Render(m.notices.ListFull) + "\n")
		}
		b.WriteString(m.input.View() + "\n")
	case modeConfirmClear:
		b.WriteString("\n" + dialogStyle(m.ascii).Render(m.notices.ClearConfirm+"\n\n[y] yes   [n] no") + "\n")
	case modeAlert:
		b.WriteString("\n" + dialogStyle(m.ascii).Render(m.alert+"\n\npress any key") + "\n")
	}

	if m.snap.Undo != nil {
		toast := m.notices.Deleted + " " + lipgloss.NewStyle().Italic(true).Render(m.snap.Undo.Text) +
			"  " + toastKeyStyle.Render("u") + " undo  " + toastKeyStyle.Render("esc") + " close"
		b.WriteString("\n" + toastStyle.Render(toast) + "\n")
	}
	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys) + "\n")
	return b.String()
}

func (m Model) viewList() string {
	if len(m.snap.Tasks) == 0 {
		return emptyStyle.Render(m.notices.Empty) + "\n"
	}
	var b strings.Builder
	for i, t := range m.snap.Tasks {
		pointer := "  "
		if i == m.cursor && m.mode == modeNormal {
			pointer = cursorStyle.Render("> ")
		}
		box := "[ ]"
		text := t.Text
		if t.Completed {
			box = "[x]"
			text = doneStyle.Render(text)
		}
		line := fmt.Sprintf("%s%d. %s %s  %s", pointer, i+1, box, text, ageStyle.Render(t.Age(m.snap.Now)))
		if m.snap.IsStale(t) {
			line += " " + staleStyle.Render(m.notices.Stale)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
