package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/niklasbrandt/openzero/internal/models"
	"github.com/niklasbrandt/openzero/pkg/bus"
	"github.com/niklasbrandt/openzero/pkg/config"
	"github.com/niklasbrandt/openzero/pkg/state"
	"github.com/niklasbrandt/openzero/pkg/view"
)

// programRelay forwards messages from outside the event loop (fetch results,
// bus broadcasts) into the running program. Messages arriving before the
// program is attached are dropped; nothing produces them that early.
type programRelay struct {
	mu      sync.Mutex
	program *tea.Program
}

func (r *programRelay) attach(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.program = p
}

func (r *programRelay) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

type snapshotMsg struct {
	result state.FetchResult
}

type busRefreshMsg struct {
	refresh bus.Refresh
}

type busOpenMsg struct{}

type refreshTickMsg time.Time

type errMsg struct {
	err error
}

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeEdit
	modeConfirmDelete
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	headerStyle   = lipgloss.NewStyle().Faint(true)
	todayStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	cursorStyle   = lipgloss.NewStyle().Bold(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

type model struct {
	controller *state.Controller
	agendaCfg  config.AgendaConfig
	logger     *slog.Logger

	mode    mode
	cursor  int
	status  string
	width   int
	height  int
	editID  string
	pending models.CalendarEvent

	summaryInput textinput.Model
	startInput   textinput.Model
}

func newModel(controller *state.Controller, agendaCfg config.AgendaConfig, logger *slog.Logger) model {
	summary := textinput.New()
	summary.Placeholder = "Event title"
	summary.CharLimit = 120
	summary.Width = 40

	start := textinput.New()
	start.Placeholder = "2006-01-02T15:04"
	start.CharLimit = 16
	start.Width = 40

	return model{
		controller:   controller,
		agendaCfg:    agendaCfg,
		logger:       logger,
		summaryInput: summary,
		startInput:   start,
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.refreshCmd()}
	if m.agendaCfg.RefreshInterval > 0 {
		cmds = append(cmds, m.tickCmd())
	}
	return tea.Batch(cmds...)
}

func (m model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		m.controller.Refresh(context.Background())
		return nil
	}
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.agendaCfg.RefreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m model) agenda() []view.AgendaEntry {
	snap := m.controller.View()
	return view.BuildAgenda(snap.Year, snap.Month, snap.SelectedDay, snap.Events, m.agendaCfg.MaxEntries)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case snapshotMsg:
		m.controller.Apply(msg.result)
		if msg.result.Err != nil {
			m.status = fmt.Sprintf("Fetch failed: %v", msg.result.Err)
		} else {
			m.status = ""
		}
		m.clampCursor()
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case busRefreshMsg:
		if msg.refresh.Wants(state.RefreshActionCalendar) {
			return m, m.refreshCmd()
		}
		return m, nil

	case busOpenMsg:
		m.controller.ResetToMonth(context.Background(), time.Now())
		m.cursor = 0
		return m, nil

	case errMsg:
		m.status = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeBrowse:
			return m.updateBrowse(msg)
		case modeAdd, modeEdit:
			return m.updateForm(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		}
	}

	return m, nil
}

func (m model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.controller.Cancel()
		return m, tea.Quit

	case "left", "h":
		m.controller.ChangeMonth(context.Background(), -1)
		m.cursor = 0
		return m, nil

	case "right", "l":
		m.controller.ChangeMonth(context.Background(), 1)
		m.cursor = 0
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		m.cursor++
		m.clampCursor()
		return m, nil

	case "enter":
		if entry, ok := m.cursorEntry(); ok {
			m.controller.SelectDay(entry.Event.Start.Day())
			m.cursor = 0
		}
		return m, nil

	case "esc":
		m.controller.SelectDay(0)
		m.cursor = 0
		return m, nil

	case "t":
		m.controller.ResetToMonth(context.Background(), time.Now())
		m.cursor = 0
		return m, nil

	case "r":
		return m, m.refreshCmd()

	case "a":
		return m.enterAddMode()

	case "e":
		entry, ok := m.cursorEntry()
		if !ok || !entry.Editable {
			m.status = "Only local, non-birthday events can be edited"
			return m, nil
		}
		m.mode = modeEdit
		m.editID = entry.Event.ID
		m.summaryInput.SetValue(entry.Event.Summary)
		m.summaryInput.Focus()
		return m, textinput.Blink

	case "d":
		entry, ok := m.cursorEntry()
		if !ok || !entry.Editable {
			m.status = "Only local, non-birthday events can be deleted"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.pending = entry.Event
		return m, nil
	}

	return m, nil
}

func (m model) enterAddMode() (tea.Model, tea.Cmd) {
	snap := m.controller.View()

	day := snap.SelectedDay
	if day == 0 {
		now := time.Now()
		if now.Year() == snap.Year && now.Month() == snap.Month {
			day = now.Day()
		} else {
			day = 1
		}
	}

	m.mode = modeAdd
	m.summaryInput.SetValue("")
	m.startInput.SetValue(view.PrefillStart(snap.Year, snap.Month, day))
	m.startInput.Blur()
	m.summaryInput.Focus()
	return m, textinput.Blink
}

func (m model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.summaryInput.Blur()
		m.startInput.Blur()
		return m, nil

	case "tab", "shift+tab":
		if m.mode == modeAdd {
			if m.summaryInput.Focused() {
				m.summaryInput.Blur()
				m.startInput.Focus()
			} else {
				m.startInput.Blur()
				m.summaryInput.Focus()
			}
		}
		return m, textinput.Blink

	case "enter":
		return m.submitForm()
	}

	var cmd tea.Cmd
	if m.summaryInput.Focused() {
		m.summaryInput, cmd = m.summaryInput.Update(msg)
	} else {
		m.startInput, cmd = m.startInput.Update(msg)
	}
	return m, cmd
}

func (m model) submitForm() (tea.Model, tea.Cmd) {
	summary := strings.TrimSpace(m.summaryInput.Value())
	if summary == "" {
		m.status = "A title is required"
		return m, nil
	}

	if m.mode == modeEdit {
		id := m.editID
		m.mode = modeBrowse
		m.summaryInput.Blur()
		return m, func() tea.Msg {
			if err := m.controller.UpdateLocal(context.Background(), id, summary); err != nil {
				return errMsg{err}
			}
			return nil
		}
	}

	start, err := models.ParseEventTime(m.startInput.Value())
	if err != nil {
		m.status = fmt.Sprintf("Invalid start time: %v", err)
		return m, nil
	}

	input := models.LocalEventInput{
		Summary:   summary,
		StartTime: start,
		IsAllDay:  start.Hour() == 0 && start.Minute() == 0,
	}

	m.mode = modeBrowse
	m.summaryInput.Blur()
	m.startInput.Blur()
	return m, func() tea.Msg {
		if err := m.controller.CreateLocal(context.Background(), input); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	event := m.pending
	m.mode = modeBrowse
	m.pending = models.CalendarEvent{}

	if msg.String() != "y" {
		return m, nil
	}

	return m, func() tea.Msg {
		if err := m.controller.DeleteLocal(context.Background(), event); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m *model) clampCursor() {
	if last := len(m.agenda()) - 1; m.cursor > last {
		if last < 0 {
			last = 0
		}
		m.cursor = last
	}
}

func (m model) cursorEntry() (view.AgendaEntry, bool) {
	entries := m.agenda()
	if m.cursor < 0 || m.cursor >= len(entries) {
		return view.AgendaEntry{}, false
	}
	return entries[m.cursor], true
}

func (m model) View() string {
	snap := m.controller.View()
	grid := view.BuildMonthGrid(snap.Year, snap.Month, time.Now(), snap.Events, snap.SelectedDay)

	var b strings.Builder
	b.WriteString(titleStyle.Render(grid.Title()))
	b.WriteString("\n\n")
	b.WriteString(renderGrid(grid))
	b.WriteString("\n")
	b.WriteString(titleStyle.Render(view.AgendaTitle(snap.Month, snap.SelectedDay)))
	b.WriteString("\n")
	b.WriteString(m.renderAgenda())

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	switch m.mode {
	case modeAdd:
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("New event"))
		b.WriteString("\n")
		b.WriteString("Title: " + m.summaryInput.View() + "\n")
		b.WriteString("Start: " + m.startInput.View() + "\n")
		b.WriteString(helpStyle.Render("tab switch field / enter save / esc cancel"))
	case modeEdit:
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Edit title"))
		b.WriteString("\n")
		b.WriteString("Title: " + m.summaryInput.View() + "\n")
		b.WriteString(helpStyle.Render("enter save / esc cancel"))
	case modeConfirmDelete:
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(fmt.Sprintf("Delete %q? (y/N)", m.pending.Summary)))
	default:
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("←/→ month / ↑/↓ move / enter pick day / esc all / a add / e edit / d delete / r refresh / t today / q quit"))
	}

	b.WriteString("\n")
	return b.String()
}

func renderGrid(grid view.MonthGrid) string {
	var b strings.Builder

	for _, name := range view.Weekdays {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%4s", name)))
	}
	b.WriteString("\n")

	for _, week := range grid.Weeks() {
		for _, cell := range week {
			if cell.Day == 0 {
				b.WriteString("    ")
				continue
			}

			label := fmt.Sprintf("%3d", cell.Day)
			switch {
			case cell.IsSelected:
				label = selectedStyle.Render(label)
			case cell.IsToday:
				label = todayStyle.Render(label)
			}
			if cell.HasEvent {
				label += "•"
			} else {
				label += " "
			}
			b.WriteString(label)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m model) renderAgenda() string {
	entries := m.agenda()
	if len(entries) == 0 {
		return helpStyle.Render("No events") + "\n"
	}

	var b strings.Builder
	for i, entry := range entries {
		line := fmt.Sprintf("%-7s  %s", entry.TimeLabel, entry.Event.Summary)
		if entry.Person != "" {
			line = fmt.Sprintf("%s (%s)", line, entry.Person)
		}
		if entry.Editable {
			line += " *"
		}

		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}
