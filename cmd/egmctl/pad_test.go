package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teslashibe/go-egm/pkg/egm"
	"github.com/teslashibe/go-egm/pkg/protocol"
	"github.com/teslashibe/go-egm/pkg/robot"
)

type jogCall struct {
	joint bool
	index int
	delta float64
}

type fakeBackend struct {
	mu    sync.Mutex
	state robot.State
	err   error
	calls []jogCall
	seq   uint32
}

func (f *fakeBackend) State(ctx context.Context) (robot.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.err
}

func (f *fakeBackend) Jog(ctx context.Context, axis egm.Axis, delta float64) (protocol.AckData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return protocol.AckData{}, f.err
	}
	f.calls = append(f.calls, jogCall{index: int(axis), delta: delta})
	f.seq++
	return protocol.AckData{Seqno: f.seq}, nil
}

func (f *fakeBackend) JogJoint(ctx context.Context, index int, delta float64) (protocol.AckData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return protocol.AckData{}, f.err
	}
	f.calls = append(f.calls, jogCall{joint: true, index: index, delta: delta})
	f.seq++
	return protocol.AckData{Seqno: f.seq}, nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds keys to the model and runs whatever command the last one
// returned, feeding its message back in.
func press(m padModel, keys ...string) padModel {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(padModel)
	}
	if cmd != nil {
		if msg := cmd(); msg != nil {
			next, _ := m.Update(msg)
			m = next.(padModel)
		}
	}
	return m
}

func TestPadCartesianJog(t *testing.T) {
	fb := &fakeBackend{}
	m := newPadModel(fb, 0)

	m = press(m, "down", "down", "right") // z, +10
	m = press(m, "-", "left")             // z, -5

	want := []jogCall{
		{index: int(egm.AxisZ), delta: 10},
		{index: int(egm.AxisZ), delta: -5},
	}
	if len(fb.calls) != len(want) {
		t.Fatalf("calls = %+v, want %+v", fb.calls, want)
	}
	for i := range want {
		if fb.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, fb.calls[i], want[i])
		}
	}
	if !strings.Contains(m.last, "z -5") || !strings.Contains(m.last, "seqno 2") {
		t.Errorf("last = %q", m.last)
	}
}

func TestPadJointJog(t *testing.T) {
	fb := &fakeBackend{}
	m := newPadModel(fb, 0)

	m = press(m, "tab", "4", "+", "l")
	if m.mode != modeJoint {
		t.Fatalf("mode = %v, want joint", m.mode)
	}
	if len(fb.calls) != 1 {
		t.Fatalf("calls = %+v", fb.calls)
	}
	if got := fb.calls[0]; got != (jogCall{joint: true, index: 3, delta: 50}) {
		t.Errorf("call = %+v", got)
	}
}

func TestPadSelectionWraps(t *testing.T) {
	m := newPadModel(&fakeBackend{}, 0)
	m = press(m, "up")
	if m.selected != padJoints-1 {
		t.Errorf("selected = %d after up from 0, want %d", m.selected, padJoints-1)
	}
	m = press(m, "down")
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0", m.selected)
	}

	m = press(m, "-", "-", "-", "-", "-", "-")
	if m.step() != padSteps[0] {
		t.Errorf("step = %v, want clamp at %v", m.step(), padSteps[0])
	}
}

func TestPadStateAndErrors(t *testing.T) {
	pose := egm.Pose{X: 512.25, Y: 1, Z: 2}
	fb := &fakeBackend{state: robot.State{
		ProtocolState: robot.StateRunning,
		Feedback:      egm.Feedback{Pose: &pose, Joints: egm.Joints{1, 2, 3, 4, 5, 6}},
	}}
	m := newPadModel(fb, 0)

	if !strings.Contains(m.View(), "waiting for state") {
		t.Error("view should wait for state before the first fetch")
	}
	next, _ := m.Update(m.fetchCmd()())
	m = next.(padModel)
	view := m.View()
	if !strings.Contains(view, "512.25") || !strings.Contains(view, "running") {
		t.Errorf("view missing state:\n%s", view)
	}

	fb.err = errors.New("http 409: no feedback received yet")
	m = press(m, "right")
	if m.err == nil || !strings.Contains(m.View(), "no feedback") {
		t.Errorf("view should show the jog error:\n%s", m.View())
	}
}

func TestPadQuit(t *testing.T) {
	m := newPadModel(&fakeBackend{}, 0)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
