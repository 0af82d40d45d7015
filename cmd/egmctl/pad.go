package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/go-egm/pkg/egm"
	"github.com/teslashibe/go-egm/pkg/protocol"
	"github.com/teslashibe/go-egm/pkg/robot"
)

// padBackend is what the jog pad drives. apiClient implements it.
type padBackend interface {
	State(ctx context.Context) (robot.State, error)
	Jog(ctx context.Context, axis egm.Axis, delta float64) (protocol.AckData, error)
	JogJoint(ctx context.Context, index int, delta float64) (protocol.AckData, error)
}

// padMode selects what the pad jogs.
type padMode int

const (
	modeCartesian padMode = iota
	modeJoint
)

func (m padMode) String() string {
	if m == modeJoint {
		return "joint"
	}
	return "cartesian"
}

// Step sizes cycled with +/-; mm or degrees.
var padSteps = []float64{0.5, 1, 5, 10, 50}

const (
	padJoints       = 6
	defaultStepIdx  = 3
	defaultPollRate = 200 * time.Millisecond
)

// pollMsg triggers a state refresh.
type pollMsg time.Time

// stateMsg carries a fetched snapshot or the fetch error.
type stateMsg struct {
	state robot.State
	err   error
}

// ackMsg carries the result of a jog.
type ackMsg struct {
	label string
	ack   protocol.AckData
	err   error
}

var (
	padTitle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	padSelected = lipgloss.NewStyle().Bold(true).Reverse(true)
	padBox      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// padModel is the bubbletea model behind "egmctl pad".
type padModel struct {
	backend  padBackend
	pollRate time.Duration

	mode     padMode
	selected int
	stepIdx  int

	state    robot.State
	hasState bool
	last     string
	err      error
}

func newPadModel(b padBackend, pollRate time.Duration) padModel {
	if pollRate <= 0 {
		pollRate = defaultPollRate
	}
	return padModel{backend: b, pollRate: pollRate, stepIdx: defaultStepIdx}
}

func (m padModel) step() float64 { return padSteps[m.stepIdx] }

func (m padModel) pollCmd() tea.Cmd {
	return tea.Tick(m.pollRate, func(t time.Time) tea.Msg { return pollMsg(t) })
}

func (m padModel) fetchCmd() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s, err := b.State(ctx)
		return stateMsg{state: s, err: err}
	}
}

func (m padModel) jogCmd(sign float64) tea.Cmd {
	b := m.backend
	delta := sign * m.step()
	mode, sel := m.mode, m.selected
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if mode == modeJoint {
			ack, err := b.JogJoint(ctx, sel, delta)
			return ackMsg{label: fmt.Sprintf("j%d %+g", sel+1, delta), ack: ack, err: err}
		}
		axis := egm.Axis(sel)
		ack, err := b.Jog(ctx, axis, delta)
		return ackMsg{label: fmt.Sprintf("%s %+g", axis, delta), ack: ack, err: err}
	}
}

// Init implements tea.Model.
func (m padModel) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.pollCmd())
}

// Update implements tea.Model.
func (m padModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case pollMsg:
		return m, tea.Batch(m.fetchCmd(), m.pollCmd())
	case stateMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.state, m.hasState, m.err = msg.state, true, nil
	case ackMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.last = fmt.Sprintf("%s (seqno %d)", msg.label, msg.ack.Seqno)
		return m, m.fetchCmd()
	}
	return m, nil
}

func (m padModel) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.mode == modeCartesian {
			m.mode = modeJoint
		} else {
			m.mode = modeCartesian
		}
	case "up", "k":
		m.selected = (m.selected + 5) % padJoints
	case "down", "j":
		m.selected = (m.selected + 1) % padJoints
	case "1", "2", "3", "4", "5", "6":
		m.selected = int(k.String()[0] - '1')
	case "+", "=":
		if m.stepIdx < len(padSteps)-1 {
			m.stepIdx++
		}
	case "-", "_":
		if m.stepIdx > 0 {
			m.stepIdx--
		}
	case "right", "l":
		return m, m.jogCmd(1)
	case "left", "h":
		return m, m.jogCmd(-1)
	}
	return m, nil
}

// View implements tea.Model.
func (m padModel) View() string {
	var b strings.Builder
	b.WriteString(padTitle.Render("EGM jog pad"))
	fmt.Fprintf(&b, "  mode=%s step=%g\n\n", m.mode, m.step())

	for i := 0; i < padJoints; i++ {
		label, value := m.axisRow(i)
		line := fmt.Sprintf("%-4s %10s", label, value)
		if i == m.selected {
			line = padSelected.Render(line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	if m.hasState {
		fmt.Fprintf(&b, "state %s  motors %s  rapid %s\n",
			formatProtocolState(m.state.ProtocolState), m.state.MotorState, m.state.RapidState)
	} else {
		b.WriteString(dimStyle.Render("waiting for state") + "\n")
	}
	if m.last != "" {
		b.WriteString("last: " + m.last + "\n")
	}
	if m.err != nil {
		b.WriteString(badStyle.Render("error: "+m.err.Error()) + "\n")
	}
	b.WriteString(dimStyle.Render("←/→ jog  ↑/↓ select  +/- step  tab mode  q quit"))
	return padBox.Render(b.String())
}

func (m padModel) axisRow(i int) (string, string) {
	fb := m.state.Feedback
	if m.mode == modeJoint {
		label := fmt.Sprintf("j%d", i+1)
		if i < len(fb.Joints) {
			return label, fmt.Sprintf("%.2f", fb.Joints[i])
		}
		return label, "-"
	}
	axis := egm.Axis(i)
	if fb.Pose == nil {
		return axis.String(), "-"
	}
	return axis.String(), fmt.Sprintf("%.2f", fb.Pose.Get(axis))
}
