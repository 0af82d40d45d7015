// Package sim is a robot-side EGM peer: it streams feedback and follows the
// corrections it receives. It stands in for a controller in tests and demos.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-egm/pkg/egm"
	"github.com/teslashibe/go-egm/pkg/transport"
)

// Config holds simulator configuration.
type Config struct {
	// Rate is the feedback period.
	Rate time.Duration `yaml:"rate" json:"rate"`

	// Joints is the number of robot axes reported.
	Joints int `yaml:"joints" json:"joints"`

	// Home is the pose reported before any correction arrives.
	Home egm.Pose `yaml:"home" json:"home"`
}

// DefaultConfig returns a six-axis robot reporting every 4ms.
func DefaultConfig() Config {
	return Config{
		Rate:   4 * time.Millisecond,
		Joints: 6,
		Home:   egm.Pose{X: 500, Y: 0, Z: 600, RX: 0, RY: 90, RZ: 0},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %s", c.Rate)
	}
	if c.Joints <= 0 {
		return fmt.Errorf("joints must be positive, got %d", c.Joints)
	}
	return nil
}

// Robot simulates an EGM controller.
type Robot struct {
	cfg    Config
	tr     transport.Transport
	logger *slog.Logger
	seq    *egm.Sequencer
	start  time.Time

	mu      sync.RWMutex
	sensor  net.Addr
	pose    egm.Pose
	joints  egm.Joints
	running bool

	commands atomic.Uint64
	rejected atomic.Uint64
	sent     atomic.Uint64
}

// New creates a simulator on tr. sensor is where feedback goes; when nil the
// simulator waits for the first command and replies to its source.
func New(tr transport.Transport, sensor net.Addr, cfg Config, logger *slog.Logger) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Robot{
		cfg:    cfg,
		tr:     tr,
		logger: logger.With("component", "sim"),
		seq:    egm.NewSequencer(),
		start:  time.Now(),
		sensor: sensor,
		pose:   cfg.Home,
		joints: make(egm.Joints, cfg.Joints),
	}, nil
}

// Run streams feedback and applies commands until ctx is done or the
// transport fails.
func (r *Robot) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.emit(ctx) })
	g.Go(func() error { return r.receive(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Robot) emit(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		tel, dst := r.telemetry()
		if dst == nil {
			continue
		}
		if _, err := r.tr.Send(ctx, dst, egm.EncodeTelemetry(tel)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			r.logger.Debug("feedback send failed", "error", err)
			continue
		}
		r.sent.Add(1)
	}
}

func (r *Robot) receive(ctx context.Context) error {
	for {
		data, from, err := r.tr.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		cmd, err := egm.DecodeCommand(data)
		if err != nil || !cmd.Header.Valid() {
			n := r.rejected.Add(1)
			r.logger.Debug("rejected command", "from", from, "error", err, "rejected_total", n)
			continue
		}
		r.apply(cmd, from)
	}
}

func (r *Robot) apply(cmd egm.Command, from net.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch t := cmd.Target.(type) {
	case egm.Pose:
		r.pose = t
	case egm.Joints:
		n := copy(r.joints, t)
		if n < len(t) {
			r.logger.Debug("ignoring extra joints", "got", len(t), "axes", len(r.joints))
		}
	}
	if !r.running {
		r.logger.Info("first correction received", "seqno", cmd.Header.Seqno)
	}
	r.running = true
	if r.sensor == nil {
		r.sensor = from
	}
	r.commands.Add(1)
}

func (r *Robot) telemetry() (egm.Telemetry, net.Addr) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	elapsed := time.Since(r.start)
	pose := r.pose
	fb := egm.Feedback{
		Pose:   &pose,
		Joints: r.joints.Clone(),
		Time: &egm.Clock{
			Sec:  uint64(elapsed / time.Second),
			Usec: uint64((elapsed % time.Second) / time.Microsecond),
		},
	}
	state := egm.TokenMCIStopped
	if r.running {
		state = egm.TokenMCIRunning
	}
	return egm.Telemetry{
		Header:         r.seq.Next(egm.MsgData),
		Feedback:       fb,
		Planned:        fb.Clone(),
		State:          state,
		MotorState:     egm.MotorsOn,
		RapidState:     egm.RapidRunning,
		ConvergenceMet: r.running,
	}, r.sensor
}

// Pose returns the current simulated pose.
func (r *Robot) Pose() egm.Pose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pose
}

// Joints returns the current simulated joint positions.
func (r *Robot) Joints() egm.Joints {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.joints.Clone()
}

// Stats counts simulator traffic.
type Stats struct {
	Commands uint64 `json:"commands"`
	Rejected uint64 `json:"rejected"`
	Sent     uint64 `json:"sent"`
}

// Stats returns traffic counters.
func (r *Robot) Stats() Stats {
	return Stats{
		Commands: r.commands.Load(),
		Rejected: r.rejected.Load(),
		Sent:     r.sent.Load(),
	}
}
