package robot

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-egm/pkg/egm"
)

// Tracker owns the engine's view of the robot. One mutex guards the whole
// record; readers only ever see copies.
type Tracker struct {
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	state State
	subs  map[chan State]struct{}

	valid      atomic.Uint64
	invalid    atomic.Uint64
	malformed  atomic.Uint64
	sent       atomic.Uint64
	sendFailed atomic.Uint64
}

// TrackerStats counts what the tracker has seen.
type TrackerStats struct {
	Valid      uint64 `json:"valid"`
	Invalid    uint64 `json:"invalid"`
	Malformed  uint64 `json:"malformed"`
	Sent       uint64 `json:"sent"`
	SendFailed uint64 `json:"send_failed"`
}

// NewTracker creates a tracker in StateUndefined.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger: logger,
		now:    time.Now,
		subs:   make(map[chan State]struct{}),
	}
}

// Record applies valid telemetry. A message whose header lacks the sequence
// number or timestamp leaves the state untouched, is counted as invalid and
// returns egm.ErrInvalidHeader.
func (t *Tracker) Record(tel egm.Telemetry) error {
	if !tel.Header.Valid() {
		n := t.invalid.Add(1)
		t.logger.Warn("invalid message received",
			"has_seqno", tel.Header.HasSeqno,
			"has_tm", tel.Header.HasTm,
			"invalid_total", n,
		)
		return fmt.Errorf("seqno present=%t, tm present=%t: %w",
			tel.Header.HasSeqno, tel.Header.HasTm, egm.ErrInvalidHeader)
	}
	t.valid.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !tel.Feedback.Empty() {
		t.state.Feedback = tel.Feedback.Clone()
	}
	if ps, ok := ParseProtocolState(tel.State); ok {
		if ps != t.state.ProtocolState {
			t.logger.Info("protocol state changed",
				"from", t.state.ProtocolState,
				"to", ps,
				"token", tel.State,
			)
		}
		t.state.ProtocolState = ps
	}
	t.state.LastHeader = tel.Header
	if tel.HasMotorState {
		t.state.MotorState = tel.MotorState
	}
	if tel.HasRapidState {
		t.state.RapidState = tel.RapidState
	}
	t.state.UpdatedAt = t.now()
	t.publishLocked()
	return nil
}

// RecordSent stores the sequence number of a successfully sent command.
// Sends may complete out of order, so an older number never replaces a
// newer one. The comparison is modulo 2^32 to survive wraparound.
func (t *Tracker) RecordSent(seq uint32) {
	t.sent.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.HasSent && int32(seq-t.state.LastSequenceSent) <= 0 {
		return
	}
	t.state.LastSequenceSent = seq
	t.state.HasSent = true
	t.publishLocked()
}

// MarkDisconnected records that the receive channel is gone.
func (t *Tracker) MarkDisconnected() {
	t.setProtocolState(StateDisconnected)
}

// MarkConnecting resets the protocol state for a fresh session. Last known
// feedback is kept.
func (t *Tracker) MarkConnecting() {
	t.setProtocolState(StateUndefined)
}

func (t *Tracker) setProtocolState(ps ProtocolState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.ProtocolState = ps
	t.state.UpdatedAt = t.now()
	t.publishLocked()
}

// Snapshot returns a deep copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.clone()
}

// Subscribe returns a channel that receives a snapshot after every change,
// plus a function that cancels the subscription and closes the channel.
// Updates are dropped for a subscriber whose buffer is full; the next one
// carries the complete state.
func (t *Tracker) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 16)

	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, ch)
			close(ch)
			t.mu.Unlock()
		})
	}
}

// publishLocked offers the current state to subscribers. Called with mu held
// so subscribers observe changes in order.
func (t *Tracker) publishLocked() {
	if len(t.subs) == 0 {
		return
	}
	snap := t.state.clone()
	for ch := range t.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (t *Tracker) countMalformed() uint64 {
	return t.malformed.Add(1)
}

func (t *Tracker) countSendFailed() uint64 {
	return t.sendFailed.Add(1)
}

// Stats returns message counters.
func (t *Tracker) Stats() TrackerStats {
	return TrackerStats{
		Valid:      t.valid.Load(),
		Invalid:    t.invalid.Load(),
		Malformed:  t.malformed.Load(),
		Sent:       t.sent.Load(),
		SendFailed: t.sendFailed.Load(),
	}
}
