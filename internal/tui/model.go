package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mescon/gptimer/internal/timer"
)

// Engine is what the terminal UI drives.
type Engine interface {
	timer.Controls
	Status() timer.Status
	SetWakeEnabled(enabled bool) error
}

const (
	fieldHours = iota
	fieldMinutes
	fieldSeconds
	fieldCount
)

var fieldNames = [fieldCount]string{"h", "m", "s"}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F7DC6F")).
			Padding(1, 2)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)

	stateStyles = map[timer.State]lipgloss.Style{
		timer.StateIdle:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		timer.StateRunning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
		timer.StatePaused:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Bold(true),
		timer.StateFinished: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	}

	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(timer.TickPeriod, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the bubbletea model of the countdown widget.
type Model struct {
	engine   Engine
	display  *Display
	inputs   [fieldCount]textinput.Model
	focus    int
	progress progress.Model
	help     help.Model
	keys     keyMap
	status   timer.Status
	snap     Snapshot
	notice   string
	width    int
}

// New builds the model with the fields set to the engine's configured
// duration.
func New(engine Engine, display *Display) Model {
	m := Model{
		engine:   engine,
		display:  display,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		help:     help.New(),
		keys:     defaultKeyMap(),
	}
	m.refresh()

	values := [fieldCount]uint32{m.status.Config.Hours, m.status.Config.Minutes, m.status.Config.Seconds}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 2
		ti.Width = 2
		ti.Placeholder = "00"
		ti.SetValue(fmt.Sprintf("%02d", values[i]))
		m.inputs[i] = ti
	}
	m.inputs[m.focus].Focus()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd())
}

func (m *Model) refresh() {
	m.status = m.engine.Status()
	m.snap = m.display.Snapshot()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.refresh()
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Start):
		m.display.ClearError()
		m.engine.OnStart()

	case key.Matches(msg, m.keys.Pause):
		m.engine.OnPause()

	case key.Matches(msg, m.keys.Stop):
		m.engine.OnStop()

	case key.Matches(msg, m.keys.Wake):
		m.toggleWake()

	case key.Matches(msg, m.keys.Next):
		m.moveFocus(1)

	case key.Matches(msg, m.keys.Prev):
		m.moveFocus(-1)

	default:
		return m.editField(msg)
	}

	m.refresh()
	return m, nil
}

func (m *Model) toggleWake() {
	if m.snap.WakeDisabled {
		m.notice = "Wake alarm not supported on this system"
		return
	}
	enable := !m.engine.Status().WakeEnabled
	if err := m.engine.SetWakeEnabled(enable); err != nil {
		m.notice = err.Error()
	}
}

func (m *Model) moveFocus(delta int) {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + fieldCount) % fieldCount
	m.inputs[m.focus].Focus()
	m.inputs[m.focus].CursorEnd()
}

// editField feeds digits and deletions to the focused field and applies the
// new duration. Fields are read-only while the countdown runs.
func (m Model) editField(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !editKey(msg) {
		return m, nil
	}
	if m.engine.Status().State == timer.StateRunning {
		m.notice = "Pause or stop the countdown to change the duration"
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)

	h, mi, s := m.fieldValues()
	m.engine.OnDurationChanged(h, mi, s)
	m.refresh()
	return m, cmd
}

func editKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete:
		return true
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if r < '0' || r > '9' {
				return false
			}
		}
		return len(msg.Runes) > 0
	}
	return false
}

// fieldValues parses the three fields; an empty field counts as zero.
func (m Model) fieldValues() (hours, minutes, seconds uint32) {
	var v [fieldCount]uint32
	for i, in := range m.inputs {
		n, err := strconv.ParseUint(strings.TrimSpace(in.Value()), 10, 32)
		if err == nil && n <= timer.MaxField {
			v[i] = uint32(n)
		}
	}
	return v[fieldHours], v[fieldMinutes], v[fieldSeconds]
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("gptimer"))
	b.WriteString("  ")
	stateStyle, ok := stateStyles[m.status.State]
	if !ok {
		stateStyle = dimStyle
	}
	b.WriteString(stateStyle.Render(strings.ToUpper(string(m.status.State))))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render(m.snap.Label()))
	b.WriteString("\n")
	b.WriteString(m.progress.ViewAs(m.snap.Fraction()))
	b.WriteString("\n\n")

	fields := make([]string, 0, fieldCount)
	for i, in := range m.inputs {
		fields = append(fields, in.View()+dimStyle.Render(fieldNames[i]))
	}
	b.WriteString(boxStyle.Render(strings.Join(fields, " ")))
	b.WriteString("\n")

	b.WriteString(m.wakeLine())
	b.WriteString("\n")

	if m.snap.Err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("%s: %v", m.snap.ErrTitle, m.snap.Err)))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(dimStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) wakeLine() string {
	switch {
	case m.snap.WakeDisabled:
		return dimStyle.Render("[-] wake from suspend (unavailable)")
	case m.status.WakeArmed:
		return "[x] wake from suspend (armed)"
	case m.status.WakeEnabled:
		return "[x] wake from suspend"
	}
	return "[ ] wake from suspend"
}
