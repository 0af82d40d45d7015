package robot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-egm/pkg/egm"
)

// mockSender records every resend for testing.
type mockSender struct {
	mu     sync.Mutex
	target egm.Target
	sends  int
	err    error
}

func (m *mockSender) Send(_ context.Context, target egm.Target) (egm.Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return egm.Header{}, m.err
	}
	m.sends++
	m.target = target
	return egm.Header{Seqno: uint32(m.sends)}, nil
}

func (m *mockSender) LastTarget() egm.Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

func (m *mockSender) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sends
}

func TestStreamer_SkipsWithoutTarget(t *testing.T) {
	mock := &mockSender{}
	s := NewStreamer(mock, time.Millisecond, quietLogger())

	s.tick(context.Background())
	s.tick(context.Background())

	if mock.sendCount() != 0 {
		t.Errorf("sends = %d, want 0", mock.sendCount())
	}
	if got := s.Stats(); got.Ticks != 2 || got.Skipped != 2 {
		t.Errorf("Stats() = %+v, want 2 ticks 2 skipped", got)
	}
}

func TestStreamer_ResendsTarget(t *testing.T) {
	mock := &mockSender{target: egm.Pose{X: 1}}
	s := NewStreamer(mock, time.Millisecond, quietLogger())

	s.tick(context.Background())

	if mock.sendCount() != 1 {
		t.Errorf("sends = %d, want 1", mock.sendCount())
	}
	if mock.LastTarget() != (egm.Pose{X: 1}) {
		t.Errorf("target = %v, want x=1", mock.LastTarget())
	}
}

func TestStreamer_CountsErrors(t *testing.T) {
	mock := &mockSender{target: egm.Pose{}, err: errors.New("down")}
	s := NewStreamer(mock, time.Millisecond, quietLogger())

	for i := 0; i < 3; i++ {
		s.tick(context.Background())
	}
	if got := s.Stats().Errors; got != 3 {
		t.Errorf("Errors = %d, want 3", got)
	}
}

func TestStreamer_RunUntilCancel(t *testing.T) {
	mock := &mockSender{target: egm.Joints{1, 2, 3}}
	s := NewStreamer(mock, 5*time.Millisecond, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Streamer did not stop within timeout")
	}

	if mock.sendCount() < 5 {
		t.Errorf("Expected at least 5 sends, got %d", mock.sendCount())
	}
	if got := s.Stats(); got.Ticks < 5 || got.Skipped != 0 {
		t.Errorf("Stats() = %+v, want 5+ ticks none skipped", got)
	}
}

func TestStreamer_StopsOnContext(t *testing.T) {
	mock := &mockSender{}
	s := NewStreamer(mock, time.Millisecond, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Streamer ignored context cancellation")
	}
}
