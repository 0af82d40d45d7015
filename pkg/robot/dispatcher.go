package robot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-egm/pkg/egm"
)

// Link delivers an encoded command to the robot.
type Link interface {
	Send(ctx context.Context, data []byte) (int, error)
}

// Dispatcher turns targets into sequenced, encoded commands.
type Dispatcher struct {
	seq     *egm.Sequencer
	tracker *Tracker
	link    Link
	logger  *slog.Logger

	mu      sync.RWMutex
	last    egm.Target
	lastSeq uint32
}

// NewDispatcher wires a dispatcher to a sequencer, tracker and link.
func NewDispatcher(seq *egm.Sequencer, tracker *Tracker, link Link, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{seq: seq, tracker: tracker, link: link, logger: logger}
}

// Send encodes target under the next sequence number and transmits it. The
// sequence number is consumed whether or not the send succeeds; only a
// successful send updates LastSequenceSent. Concurrent sends may complete in
// any order; the held target is the one with the newest sequence number.
func (d *Dispatcher) Send(ctx context.Context, target egm.Target) (egm.Header, error) {
	h := d.seq.Next(egm.MsgCorrection)
	data := egm.EncodeCommand(egm.Command{Header: h, Target: target})

	n, err := d.link.Send(ctx, data)
	if err == nil && n <= 0 {
		err = fmt.Errorf("transport wrote %d of %d bytes", n, len(data))
	}
	if err != nil {
		failed := d.tracker.countSendFailed()
		d.logger.Debug("command send failed", "seqno", h.Seqno, "error", err, "failed_total", failed)
		return h, fmt.Errorf("seqno %d: %w: %w", h.Seqno, egm.ErrSendFailed, err)
	}

	d.tracker.RecordSent(h.Seqno)
	d.mu.Lock()
	if d.last == nil || int32(h.Seqno-d.lastSeq) > 0 {
		d.last, d.lastSeq = cloneTarget(target), h.Seqno
	}
	d.mu.Unlock()
	return h, nil
}

// SendPose commands a Cartesian target.
func (d *Dispatcher) SendPose(ctx context.Context, p egm.Pose) (egm.Header, error) {
	return d.Send(ctx, p)
}

// SendJoints commands joint positions in degrees.
func (d *Dispatcher) SendJoints(ctx context.Context, j egm.Joints) (egm.Header, error) {
	if len(j) == 0 {
		return egm.Header{}, fmt.Errorf("send joints: %w", ErrEmptyJoints)
	}
	return d.Send(ctx, j.Clone())
}

// Jog offsets one axis of the last reported pose by delta and sends the
// result. It never accumulates onto a previous command.
func (d *Dispatcher) Jog(ctx context.Context, axis egm.Axis, delta float64) (egm.Header, error) {
	snap := d.tracker.Snapshot()
	if snap.Feedback.Pose == nil {
		return egm.Header{}, fmt.Errorf("jog %s: %w", axis, ErrNoFeedback)
	}
	return d.Send(ctx, snap.Feedback.Pose.Add(axis, delta))
}

// JogJoint offsets joint index of the last reported joint vector by delta.
func (d *Dispatcher) JogJoint(ctx context.Context, index int, delta float64) (egm.Header, error) {
	snap := d.tracker.Snapshot()
	joints := snap.Feedback.Joints
	if len(joints) == 0 {
		return egm.Header{}, fmt.Errorf("jog joint %d: %w", index, ErrNoFeedback)
	}
	if index < 0 || index >= len(joints) {
		return egm.Header{}, fmt.Errorf("jog joint %d of %d: %w", index, len(joints), ErrJointIndex)
	}
	joints[index] += delta
	return d.Send(ctx, joints)
}

// LastTarget returns the most recent successfully sent target, or nil.
func (d *Dispatcher) LastTarget() egm.Target {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneTarget(d.last)
}

func cloneTarget(t egm.Target) egm.Target {
	switch v := t.(type) {
	case egm.Joints:
		return v.Clone()
	case *egm.Pose:
		if v == nil {
			return nil
		}
		return *v
	default:
		return t
	}
}
