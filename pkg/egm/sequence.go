package egm

import (
	"sync/atomic"
	"time"
)

// Sequencer issues message headers with a monotonically increasing sequence
// number. The first header has Seqno 0; the counter wraps at 2^32.
type Sequencer struct {
	next atomic.Uint32
	now  func() time.Time
}

// NewSequencer returns a Sequencer starting at 0.
func NewSequencer() *Sequencer {
	return &Sequencer{now: time.Now}
}

// NewSequencerAt returns a Sequencer whose next header carries start.
// Used to resume a stream or to exercise wraparound.
func NewSequencerAt(start uint32) *Sequencer {
	s := NewSequencer()
	s.next.Store(start)
	return s
}

// Next atomically takes the next sequence number and stamps the current time
// in milliseconds, truncated to 32 bits.
func (s *Sequencer) Next(mtype MessageType) Header {
	seq := s.next.Add(1) - 1
	return Header{
		Seqno:    seq,
		Tm:       uint32(s.now().UnixMilli()),
		Type:     mtype,
		HasSeqno: true,
		HasTm:    true,
	}
}

// Peek returns the sequence number the next header will carry.
func (s *Sequencer) Peek() uint32 {
	return s.next.Load()
}
