// ABOUTME: Bubbletea model for the render progress TUI
// ABOUTME: Tracks session events and draws the progress panel
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Sendspin/offline-render/pkg/render"
)

const barWidth = 40

// SessionInfo describes the session shown in the panel
type SessionInfo struct {
	ID          string
	Source      string
	Destination string
	Format      string
	TotalFrames int64
	SampleRate  float64
	Monitor     string
}

// Model represents the TUI state
type Model struct {
	info SessionInfo

	state    render.State
	progress float64
	frames   int64
	errText  string

	started time.Time
	elapsed time.Duration

	quitting bool
	cancel   chan struct{}

	// Dimensions
	width  int
	height int
}

// EventMsg carries a session event into the model
type EventMsg render.Event

type tickMsg time.Time

// Init starts the elapsed-time ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		if m.state.Terminal() || m.quitting {
			return m, nil
		}
		m.elapsed = time.Time(msg).Sub(m.started)
		return m, tickEvery()
	case EventMsg:
		m.applyEvent(render.Event(msg))
		if m.state.Terminal() {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		if !m.state.Terminal() {
			m.quitting = true
			select {
			case m.cancel <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) applyEvent(e render.Event) {
	switch e.Kind {
	case render.EventProgress:
		m.state = render.Rendering
	case render.EventCompleted:
		m.state = render.Completed
	case render.EventFailed:
		m.state = render.Failed
		if e.Err != nil {
			m.errText = e.Err.Error()
		}
	}
	if e.Progress > m.progress {
		m.progress = e.Progress
	}
	m.frames = e.Frames
}

// State returns the last state seen by the model
func (m Model) State() render.State { return m.state }

// Progress returns the last progress seen by the model
func (m Model) Progress() float64 { return m.progress }

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Cancelling render...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Offline Render"))
	b.WriteString("\n\n")

	field(&b, "Source: ", m.info.Source)
	field(&b, "Destination: ", m.info.Destination)
	field(&b, "Format: ", m.info.Format)
	if m.info.Monitor != "" {
		field(&b, "Monitor: ", m.info.Monitor)
	}
	b.WriteString("\n")

	b.WriteString(m.renderProgress())
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("Press 'q' or Ctrl+C to cancel"))

	return b.String()
}

func field(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(name))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

func (m Model) renderProgress() string {
	if m.info.TotalFrames < 0 {
		return fmt.Sprintf("%s %s", renderBar(0, barWidth), formatFrames(m.frames, m.info.SampleRate))
	}
	return fmt.Sprintf("%s %5.1f%%  %s",
		renderBar(m.progress, barWidth), m.progress*100, formatFrames(m.frames, m.info.SampleRate))
}

func (m Model) renderStatus() string {
	switch m.state {
	case render.Completed:
		return doneStyle.Render("Completed in " + m.elapsed.Round(time.Millisecond).String())
	case render.Failed:
		return failStyle.Render("Failed: " + truncate(m.errText, 72))
	default:
		return valueStyle.Render(fmt.Sprintf("%s for %s", m.state, m.elapsed.Round(time.Second)))
	}
}

func renderBar(fraction float64, width int) string {
	filled := min(max(int(fraction*float64(width)), 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatFrames(frames int64, rate float64) string {
	if rate <= 0 {
		return fmt.Sprintf("%d frames", frames)
	}
	d := time.Duration(float64(frames) / rate * float64(time.Second))
	return fmt.Sprintf("%d frames (%s)", frames, d.Round(time.Millisecond))
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
