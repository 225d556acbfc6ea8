package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/golang/geo/r3"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/bottlecap/internal/telemetry"
)

const (
	canvasWidth     = 40
	canvasHeight    = 16
	historyCapacity = 300
	tracePad        = 0.005
)

// StatusSource is polled for the controller's last published tick.
type StatusSource interface {
	Status(ctx context.Context) (telemetry.Status, error)
}

type statusMsg struct {
	status telemetry.Status
	err    error
}

type pollMsg time.Time

// Monitor is a bubbletea model showing the live controller state: phase,
// contact angle history and a top view of the end-effector trace.
type Monitor struct {
	src      StatusSource
	robot    string
	interval time.Duration

	status   telemetry.Status
	err      error
	polls    int
	theta    []float64
	trace    []r3.Vector
	canvas   *Canvas
	paused   bool
	showHelp bool
	theme    Theme
	styles   styles
}

func NewMonitor(src StatusSource, robot string, interval time.Duration) Monitor {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return Monitor{
		src:      src,
		robot:    robot,
		interval: interval,
		theta:    make([]float64, 0, historyCapacity),
		trace:    make([]r3.Vector, 0, historyCapacity),
		canvas:   NewCanvas(canvasWidth, canvasHeight),
		theme:    Themes[0],
		styles:   newStyles(Themes[0]),
	}
}

func (m Monitor) Init() tea.Cmd {
	return m.fetch
}

func (m Monitor) fetch() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()
	st, err := m.src.Status(ctx)
	return statusMsg{status: st, err: err}
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "c":
			m.theta = m.theta[:0]
			m.trace = m.trace[:0]
		case "t":
			m.theme = m.theme.Next()
			m.styles = newStyles(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
	case statusMsg:
		m.polls++
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			if !m.paused && msg.status.Phase != "" {
				m.record(msg.status)
			}
		}
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return pollMsg(t) })
	case pollMsg:
		return m, m.fetch
	}
	return m, nil
}

func (m *Monitor) record(st telemetry.Status) {
	if len(m.theta) == historyCapacity {
		copy(m.theta, m.theta[1:])
		m.theta = m.theta[:historyCapacity-1]
	}
	m.theta = append(m.theta, st.Theta)

	if len(m.trace) == historyCapacity {
		copy(m.trace, m.trace[1:])
		m.trace = m.trace[:historyCapacity-1]
	}
	m.trace = append(m.trace, st.EEPos)
}

// History returns the recorded contact angles, oldest first.
func (m Monitor) History() []float64 { return m.theta }

func (m Monitor) draw() {
	m.canvas.Clear()
	xs := make([]float64, 0, len(m.trace)+1)
	ys := make([]float64, 0, len(m.trace)+1)
	for _, p := range m.trace {
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}
	b := Fit(append(xs, m.status.EEPosDes.X), append(ys, m.status.EEPosDes.Y), tracePad)
	m.canvas.DrawPath(b, xs, ys)
	if m.status.Phase != "" {
		m.canvas.DrawCross(b, m.status.EEPosDes.X, m.status.EEPosDes.Y)
	}
}

func (m Monitor) View() string {
	st := m.styles
	m.draw()

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.robot)+" CONTROLLER") + "\n")

	switch {
	case m.err != nil:
		s.WriteString(st.err.Render("store unreachable: "+m.err.Error()) + "\n")
	case m.status.Phase == "":
		s.WriteString(st.label.Render("waiting for the controller...") + "\n")
	default:
		status := m.theme.phase(m.status.Phase).Render(m.status.Phase)
		if m.paused {
			status += st.label.Render("  (paused)")
		}
		s.WriteString(status + "\n")
	}
	s.WriteString("\n")

	if len(m.theta) > 1 {
		chart := asciigraph.Plot(m.theta, asciigraph.Height(5), asciigraph.Width(36), asciigraph.Caption("contact angle (rad)"))
		s.WriteString(st.graph.Render(chart) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Theta", fmt.Sprintf("%.4f rad", m.status.Theta))
	row("|tau|", fmt.Sprintf("%.3f Nm", floats.Norm(m.status.Torque, 2)))
	row("EE", formatVec(m.status.EEPos))
	row("EE des", formatVec(m.status.EEPosDes))
	row("Error", fmt.Sprintf("%.2f mm", m.status.EEPos.Sub(m.status.EEPosDes).Norm()*1000))
	row("Pivot", formatVec(m.status.Pivot))
	if len(m.status.Wrench) == 6 {
		row("Force", fmt.Sprintf("% .3f % .3f % .3f", m.status.Wrench[0], m.status.Wrench[1], m.status.Wrench[2]))
		row("Moment", fmt.Sprintf("% .3f % .3f % .3f", m.status.Wrench[3], m.status.Wrench[4], m.status.Wrench[5]))
	}
	row("History", ProgressBar(float64(len(m.theta))/historyCapacity, 20))
	row("Polls", fmt.Sprintf("%d", m.polls))
	s.WriteString(st.help.Render("SP:Pause C:Clear T:Theme ?:Help Q:Quit"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, st.canvas.Render(m.canvas.String()), st.panel.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + main
	}
	return main
}

const helpText = `
  Space  pause/resume recording history
  C      clear theta history and EE trace
  T      cycle themes (lab, retro, minimal)
  ?      toggle this help
  Q      quit
`

func formatVec(v r3.Vector) string {
	return fmt.Sprintf("% .4f % .4f % .4f", v.X, v.Y, v.Z)
}
