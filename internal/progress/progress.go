// Package progress shows a live completed/total counter while a load run is
// in flight.
package progress

import (
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 40

type doneMsg int

type finishedMsg struct{}

type model struct {
	total    int
	done     int
	started  time.Time
	now      func() time.Time
	finished bool
	aborted  bool
	onAbort  func()
	bar      lipgloss.Style
}

func newModel(total int, onAbort func()) model {
	return model{
		total:   total,
		started: time.Now(),
		now:     time.Now,
		onAbort: onAbort,
		bar:     lipgloss.NewStyle().Foreground(lipgloss.Color("63")),
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		if int(msg) > m.done {
			m.done = int(msg)
		}
		return m, nil
	case finishedMsg:
		m.finished = true
		m.done = m.total
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.aborted = true
			if m.onAbort != nil {
				m.onAbort()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	filled := 0
	if m.total > 0 {
		filled = m.done * barWidth / m.total
	}
	bar := m.bar.Render(strings.Repeat("█", filled)) + strings.Repeat("░", barWidth-filled)
	line := fmt.Sprintf("%s %d/%d  %s", bar, m.done, m.total, m.now().Sub(m.started).Round(time.Millisecond))
	if m.aborted {
		return line + "  aborted\n"
	}
	return line + "\n"
}

// Tracker drives a progress view from a running load.
type Tracker struct {
	program *tea.Program
	done    chan error
}

// Start launches the view writing to out. onAbort is called when the user
// presses ctrl+c.
func Start(total int, out io.Writer, in io.Reader, onAbort func()) *Tracker {
	p := tea.NewProgram(newModel(total, onAbort), tea.WithOutput(out), tea.WithInput(in))
	t := &Tracker{program: p, done: make(chan error, 1)}
	go func() {
		_, err := p.Run()
		t.done <- err
	}()
	return t
}

// Done records n completed requests. Safe for concurrent use.
func (t *Tracker) Done(n int) {
	t.program.Send(doneMsg(n))
}

// Finish stops the view and waits for it to exit.
func (t *Tracker) Finish() error {
	t.program.Send(finishedMsg{})
	return <-t.done
}
