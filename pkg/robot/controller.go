package robot

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-egm/pkg/egm"
)

// heartbeatTicks is how often the streamer logs its counters.
const heartbeatTicks = 1000

// TargetSender is what the Streamer needs from a dispatcher.
type TargetSender interface {
	Send(ctx context.Context, target egm.Target) (egm.Header, error)
	LastTarget() egm.Target
}

// Streamer resends the last commanded target at a fixed rate. EGM expects a
// steady stream of corrections; without one the controller times out the
// motion even when the target has not changed.
type Streamer struct {
	sender TargetSender
	rate   time.Duration
	logger *slog.Logger

	tickCount     atomic.Uint64
	skippedTicks  atomic.Uint64
	errorCount    atomic.Uint64
	lastErrorTime time.Time
}

// StreamerStats counts streamer activity.
type StreamerStats struct {
	Ticks   uint64 `json:"ticks"`
	Skipped uint64 `json:"skipped"`
	Errors  uint64 `json:"errors"`
}

// NewStreamer creates a streamer ticking at rate. A typical EGM rate is 4ms.
func NewStreamer(sender TargetSender, rate time.Duration, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		sender: sender,
		rate:   rate,
		logger: logger,
	}
}

// Run blocks until ctx is done.
func (s *Streamer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick resends the held target, if there is one.
func (s *Streamer) tick(ctx context.Context) {
	ticks := s.tickCount.Add(1)

	target := s.sender.LastTarget()
	if target == nil {
		s.skippedTicks.Add(1)
	} else if _, err := s.sender.Send(ctx, target); err != nil && ctx.Err() == nil {
		errs := s.errorCount.Add(1)
		// At most one warning every 5 seconds.
		if s.lastErrorTime.IsZero() || time.Since(s.lastErrorTime) > 5*time.Second {
			s.logger.Warn("stream send failed", "error", err, "errors_total", errs)
			s.lastErrorTime = time.Now()
		}
	}

	if ticks%heartbeatTicks == 0 {
		s.logger.Debug("streamer heartbeat",
			"ticks", ticks,
			"skipped", s.skippedTicks.Load(),
			"errors", s.errorCount.Load(),
		)
	}
}

// Stats returns tick counters.
func (s *Streamer) Stats() StreamerStats {
	return StreamerStats{
		Ticks:   s.tickCount.Load(),
		Skipped: s.skippedTicks.Load(),
		Errors:  s.errorCount.Load(),
	}
}
