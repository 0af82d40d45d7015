package robot

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-egm/pkg/egm"
)

// ProtocolState is what the engine believes about the EGM session.
type ProtocolState int

const (
	StateUndefined ProtocolState = iota
	StateConnected
	StateRunning
	StateError
	StateDisconnected
)

var protocolStateNames = [...]string{"undefined", "connected", "running", "error", "disconnected"}

func (s ProtocolState) String() string {
	if s < StateUndefined || s > StateDisconnected {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return protocolStateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s ProtocolState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ProtocolState) UnmarshalText(b []byte) error {
	for i, name := range protocolStateNames {
		if name == string(b) {
			*s = ProtocolState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown protocol state %q", b)
}

// stateTokens maps robot state tokens to protocol states. The mapping is
// firmware-defined; only tokens observed in practice are listed.
var stateTokens = map[string]ProtocolState{
	egm.TokenMCIRunning: StateRunning,
	"RAPID_RUNNING":     StateRunning,
	"RAPID_EXECUTING":   StateRunning,
	egm.TokenMCIStopped: StateConnected,
	"RAPID_STOPPED":     StateConnected,
	egm.TokenMCIError:   StateError,
}

// ParseProtocolState maps a robot state token to a ProtocolState.
// Unrecognized tokens map to StateUndefined. ok is false only for the empty
// token, meaning the message carried no state.
func ParseProtocolState(token string) (state ProtocolState, ok bool) {
	if token == "" {
		return StateUndefined, false
	}
	if s, found := stateTokens[token]; found {
		return s, true
	}
	return StateUndefined, true
}

// State is a point-in-time copy of everything known about the robot.
type State struct {
	Feedback         egm.Feedback   `json:"feedback"`
	ProtocolState    ProtocolState  `json:"protocol_state"`
	LastSequenceSent uint32         `json:"last_sequence_sent"`
	HasSent          bool           `json:"has_sent"`
	LastHeader       egm.Header     `json:"last_header"`
	MotorState       egm.MotorState `json:"motor_state"`
	RapidState       egm.RapidState `json:"rapid_state"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (s State) clone() State {
	s.Feedback = s.Feedback.Clone()
	return s
}
