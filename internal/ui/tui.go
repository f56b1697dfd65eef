// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and forwards session events to it
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sendspin/offline-render/pkg/render"
)

// NewModel creates a new TUI model. cancel receives a value when the user
// asks to stop the render; it may be nil.
func NewModel(info SessionInfo, cancel chan struct{}) Model {
	return Model{
		info:    info,
		state:   render.Idle,
		started: time.Now(),
		cancel:  cancel,
	}
}

// TUI runs the progress panel for one session
type TUI struct {
	program *tea.Program
	cancel  chan struct{}
}

// New creates a TUI for the session described by info
func New(info SessionInfo, opts ...tea.ProgramOption) *TUI {
	t := &TUI{cancel: make(chan struct{}, 1)}
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	t.program = tea.NewProgram(NewModel(info, t.cancel), opts...)
	return t
}

// OnEvent forwards session events to the program
func (t *TUI) OnEvent(_ *render.Session, e render.Event) {
	t.program.Send(EventMsg(e))
}

// Run blocks until the session finishes or the user quits
func (t *TUI) Run() (Model, error) {
	final, err := t.program.Run()
	if err != nil {
		return Model{}, err
	}
	m, _ := final.(Model)
	return m, nil
}

// CancelChan signals when the user asked to stop rendering
func (t *TUI) CancelChan() <-chan struct{} {
	return t.cancel
}

// Quit stops the program from outside, e.g. on SIGTERM
func (t *TUI) Quit() {
	t.program.Quit()
}
