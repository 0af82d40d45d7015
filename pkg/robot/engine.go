package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-egm/pkg/egm"
	"github.com/teslashibe/go-egm/pkg/transport"
)

var (
	ErrNotConnected     = errors.New("robot: not connected")
	ErrAlreadyConnected = errors.New("robot: already connected")
	ErrNoPeer           = errors.New("robot: robot address not known yet")
	ErrNoFeedback       = errors.New("robot: no feedback received yet")
	ErrJointIndex       = errors.New("robot: joint index out of range")
	ErrEmptyJoints      = errors.New("robot: empty joint vector")
)

// malformedLogEvery throttles malformed-datagram warnings.
const malformedLogEvery = 100

// LinkFunc adapts a function to the Link interface.
type LinkFunc func(ctx context.Context, data []byte) (int, error)

// Send calls f.
func (f LinkFunc) Send(ctx context.Context, data []byte) (int, error) {
	return f(ctx, data)
}

// Option configures an Engine.
type Option func(*Engine)

// WithDialer replaces the UDP dialer, typically with transport.MemoryDialer.
func WithDialer(d transport.Dialer) Option {
	return func(e *Engine) { e.dial = d }
}

// WithSequencer replaces the command sequencer.
func WithSequencer(s *egm.Sequencer) Option {
	return func(e *Engine) { e.seq = s }
}

// Engine is the sensor side of an EGM session: it receives robot telemetry
// on a background loop and sends corrections on request.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	dial    transport.Dialer
	seq     *egm.Sequencer
	tracker *Tracker
	disp    *Dispatcher

	mu   sync.Mutex
	conn *connection

	reconnects atomic.Uint64
}

// Stats describes the engine and its current session.
type Stats struct {
	SessionID    string `json:"session_id,omitempty"`
	Connected    bool   `json:"connected"`
	LocalAddr    string `json:"local_addr,omitempty"`
	Peer         string `json:"peer,omitempty"`
	NextSequence uint32 `json:"next_sequence"`
	Reconnects   uint64 `json:"reconnects"`
	TrackerStats

	// Streamer is set while a session streams at Config.StreamRate.
	Streamer *StreamerStats `json:"streamer,omitempty"`
}

// New creates an engine. It does not open any socket until Connect.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:    cfg,
		logger: logger.With("component", "egm"),
		dial:   transport.UDPDialer(cfg.LocalPort, cfg.ReadBufferSize),
		seq:    egm.NewSequencer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tracker = NewTracker(e.logger)
	e.disp = NewDispatcher(e.seq, e.tracker, LinkFunc(e.transmit), e.logger)
	return e, nil
}

// Connect opens the transport and starts the receive loop. Empty address
// and zero port fall back to the configured values; with no address at all
// the engine replies to whoever sends it valid telemetry.
func (e *Engine) Connect(ctx context.Context, address string, port int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn != nil {
		select {
		case <-e.conn.done:
		default:
			return ErrAlreadyConnected
		}
	}

	if address == "" {
		address = e.cfg.RobotAddress
	}
	if port == 0 {
		port = e.cfg.RobotPort
	}
	var remote net.Addr
	if address != "" {
		addr, err := transport.ResolveUDP(address, port)
		if err != nil {
			return err
		}
		remote = addr
	}

	tr, err := e.dial(ctx, remote)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &connection{
		id:     uuid.NewString(),
		remote: remote,
		tr:     tr,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if e.cfg.StreamRate > 0 {
		c.streamer = NewStreamer(e.disp, e.cfg.StreamRate, e.logger)
	}
	e.conn = c
	e.tracker.MarkConnecting()
	e.logger.Info("egm session started",
		"session", c.id,
		"local", tr.LocalAddr(),
		"robot", addrString(remote),
	)

	go e.run(loopCtx, c)
	return nil
}

// Disconnect stops the receive loop, waits for it to exit and releases the
// transport.
func (e *Engine) Disconnect() error {
	e.mu.Lock()
	c := e.conn
	e.conn = nil
	e.mu.Unlock()

	if c == nil {
		return ErrNotConnected
	}
	c.cancel()
	<-c.done
	return c.closeTransport()
}

// Done is closed when the current session's receive loop has exited for
// good. With no session it returns a closed channel.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return e.conn.done
}

// Snapshot returns a consistent copy of the robot state.
func (e *Engine) Snapshot() State {
	return e.tracker.Snapshot()
}

// Subscribe streams state snapshots; call the returned func to stop.
func (e *Engine) Subscribe() (<-chan State, func()) {
	return e.tracker.Subscribe()
}

// SendPose commands a Cartesian target.
func (e *Engine) SendPose(ctx context.Context, p egm.Pose) (egm.Header, error) {
	return e.disp.SendPose(ctx, p)
}

// SendJoints commands joint positions.
func (e *Engine) SendJoints(ctx context.Context, j egm.Joints) (egm.Header, error) {
	return e.disp.SendJoints(ctx, j)
}

// Jog offsets one axis of the last reported pose.
func (e *Engine) Jog(ctx context.Context, axis egm.Axis, delta float64) (egm.Header, error) {
	return e.disp.Jog(ctx, axis, delta)
}

// JogJoint offsets one joint of the last reported joint vector.
func (e *Engine) JogJoint(ctx context.Context, index int, delta float64) (egm.Header, error) {
	return e.disp.JogJoint(ctx, index, delta)
}

// Stats returns counters and session details.
func (e *Engine) Stats() Stats {
	s := Stats{
		NextSequence: e.seq.Peek(),
		Reconnects:   e.reconnects.Load(),
		TrackerStats: e.tracker.Stats(),
	}
	e.mu.Lock()
	c := e.conn
	e.mu.Unlock()
	if c == nil {
		return s
	}
	s.SessionID = c.id
	if c.streamer != nil {
		st := c.streamer.Stats()
		s.Streamer = &st
	}
	tr, dst := c.route()
	if tr != nil {
		s.Connected = true
		s.LocalAddr = addrString(tr.LocalAddr())
	}
	s.Peer = addrString(dst)
	return s
}

func (e *Engine) transmit(ctx context.Context, data []byte) (int, error) {
	e.mu.Lock()
	c := e.conn
	e.mu.Unlock()
	if c == nil {
		return 0, ErrNotConnected
	}
	tr, dst := c.route()
	if tr == nil {
		return 0, ErrNotConnected
	}
	if dst == nil {
		return 0, ErrNoPeer
	}
	return tr.Send(ctx, dst, data)
}

// run supervises one session. Every exit of the receive loop marks the
// session disconnected exactly once.
func (e *Engine) run(ctx context.Context, c *connection) {
	var wg sync.WaitGroup
	defer close(c.done)
	defer wg.Wait()
	defer c.cancel()

	if c.streamer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.streamer.Run(ctx)
		}()
	}

	for {
		err := e.receive(ctx, c)
		e.tracker.MarkDisconnected()
		if ctx.Err() != nil {
			e.logger.Info("egm session stopped", "session", c.id)
			return
		}

		e.logger.Error("receive loop failed", "session", c.id, "error", err)
		if cerr := c.closeTransport(); cerr != nil {
			e.logger.Debug("close transport", "error", cerr)
		}
		if e.cfg.Reconnect != ReconnectAuto {
			return
		}

		tr, err := e.redial(ctx, c)
		if err != nil {
			e.logger.Error("giving up on reconnect", "session", c.id, "error", err)
			return
		}
		c.setTransport(tr)
		e.tracker.MarkConnecting()
	}
}

func (e *Engine) receive(ctx context.Context, c *connection) error {
	tr, _ := c.route()
	if tr == nil {
		return net.ErrClosed
	}
	for {
		data, from, err := tr.Receive(ctx)
		if err != nil {
			return err
		}

		tel, err := egm.DecodeTelemetry(data)
		if err != nil {
			n := e.tracker.countMalformed()
			if n == 1 || n%malformedLogEvery == 0 {
				e.logger.Warn("dropping malformed datagram",
					"from", addrString(from),
					"bytes", len(data),
					"error", err,
					"malformed_total", n,
				)
			}
			continue
		}
		if err := e.tracker.Record(tel); err != nil {
			continue
		}
		c.learnPeer(from)
	}
}

func (e *Engine) redial(ctx context.Context, c *connection) (transport.Transport, error) {
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.cfg.ReconnectInterval):
		}

		e.reconnects.Add(1)
		tr, err := e.dial(ctx, c.remote)
		if err == nil {
			e.logger.Info("egm session reconnected", "session", c.id, "attempt", attempt)
			return tr, nil
		}
		if e.cfg.MaxReconnectAttempts > 0 && attempt >= e.cfg.MaxReconnectAttempts {
			return nil, fmt.Errorf("max reconnect attempts (%d) reached: %w", e.cfg.MaxReconnectAttempts, err)
		}
		e.logger.Warn("reconnect failed, retrying",
			"error", err,
			"attempt", attempt,
			"retry_in", e.cfg.ReconnectInterval,
		)
	}
}

// connection is one Connect..Disconnect session. Its transport is swapped on
// automatic reconnect.
type connection struct {
	id       string
	remote   net.Addr
	streamer *Streamer
	cancel   context.CancelFunc
	done     chan struct{}

	mu     sync.RWMutex
	tr     transport.Transport
	peer   net.Addr
	closed bool
}

// route returns the live transport and destination. tr is nil once the
// transport has been closed.
func (c *connection) route() (tr transport.Transport, dst net.Addr) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, nil
	}
	if c.remote != nil {
		return c.tr, c.remote
	}
	return c.tr, c.peer
}

func (c *connection) learnPeer(from net.Addr) {
	if c.remote != nil || from == nil {
		return
	}
	c.mu.Lock()
	c.peer = from
	c.mu.Unlock()
}

func (c *connection) setTransport(tr transport.Transport) {
	c.mu.Lock()
	c.tr = tr
	c.closed = false
	c.mu.Unlock()
}

func (c *connection) closeTransport() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.tr.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
