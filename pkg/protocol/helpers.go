package protocol

import (
	"time"

	"github.com/teslashibe/go-egm/pkg/egm"
)

// =============================================================================
// Conversions between wire commands and EGM targets
// =============================================================================

// Pose converts the command to an EGM pose.
func (p PoseCommand) Pose() egm.Pose {
	return egm.Pose{X: p.X, Y: p.Y, Z: p.Z, RX: p.RX, RY: p.RY, RZ: p.RZ}
}

// FromPose converts an EGM pose to a command.
func FromPose(p egm.Pose) PoseCommand {
	return PoseCommand{X: p.X, Y: p.Y, Z: p.Z, RX: p.RX, RY: p.RY, RZ: p.RZ}
}

// Target parses the axis name.
func (j JogCommand) Target() (egm.Axis, error) {
	return egm.ParseAxis(j.Axis)
}

// NewAck builds the acknowledgement for a sent header.
func NewAck(h egm.Header) AckData {
	return AckData{Seqno: h.Seqno, Tm: h.Tm}
}

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewStateMessage wraps a state snapshot. state is typically a robot.State.
func NewStateMessage(state any) (*Message, error) {
	return NewMessage(TypeState, state)
}

// NewStatsMessage wraps engine counters.
func NewStatsMessage(stats any) (*Message, error) {
	return NewMessage(TypeStats, stats)
}

// NewAckMessage acknowledges a command sent under h.
func NewAckMessage(h egm.Header) (*Message, error) {
	return NewMessage(TypeAck, NewAck(h))
}

// NewErrorMessage reports err to the client.
func NewErrorMessage(err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Error: err.Error()})
}

// NewJogMessage creates a Cartesian jog request.
func NewJogMessage(axis egm.Axis, delta float64) (*Message, error) {
	return NewMessage(TypeJog, JogCommand{Axis: axis.String(), Delta: delta})
}

// NewJogJointMessage creates a joint jog request.
func NewJogJointMessage(index int, delta float64) (*Message, error) {
	return NewMessage(TypeJogJoint, JogJointCommand{Index: index, Delta: delta})
}

// NewPingMessage creates a ping message.
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: time.Now().UnixMilli()})
}

// NewPongMessage answers ping.
func NewPongMessage(ping PingData) (*Message, error) {
	now := time.Now().UnixMilli()
	return NewMessage(TypePong, PongData{
		ID:        ping.ID,
		PingTS:    ping.Timestamp,
		PongTS:    now,
		LatencyMs: now - ping.Timestamp,
	})
}
