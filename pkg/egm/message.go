// Package egm implements the Externally Guided Motion (EGM) wire protocol
// spoken between a sensor application and an ABB robot controller.
//
// The sensor sends EgmSensor messages carrying a planned pose or joint
// configuration; the robot answers with EgmRobot messages carrying feedback
// and state. Both are protobuf (proto2) messages; this package encodes and
// decodes them with protowire so field numbering matches the controller's
// egm.proto exactly.
package egm

import "fmt"

// MessageType identifies the purpose of a message (EgmHeader.mtype).
type MessageType uint32

const (
	MsgUndefined      MessageType = 0
	MsgCommand        MessageType = 1 // reserved by the controller
	MsgData           MessageType = 2 // sent by the robot controller
	MsgCorrection     MessageType = 3 // sent by the sensor for position guidance
	MsgPathCorrection MessageType = 4 // sent by the sensor for path correction
)

var messageTypeNames = map[MessageType]string{
	MsgUndefined:      "MSGTYPE_UNDEFINED",
	MsgCommand:        "MSGTYPE_COMMAND",
	MsgData:           "MSGTYPE_DATA",
	MsgCorrection:     "MSGTYPE_CORRECTION",
	MsgPathCorrection: "MSGTYPE_PATH_CORRECTION",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MSGTYPE_%d", uint32(t))
}

// Header is the envelope present on every message.
// The Has* flags record field presence, which proto2 keeps on the wire.
type Header struct {
	Seqno    uint32      `json:"seqno"`
	Tm       uint32      `json:"tm"`
	Type     MessageType `json:"mtype"`
	HasSeqno bool        `json:"-"`
	HasTm    bool        `json:"-"`
}

// Valid reports whether both the sequence number and timestamp are present.
// A message without either must not be trusted.
func (h Header) Valid() bool {
	return h.HasSeqno && h.HasTm
}

// Axis selects one Cartesian component of a Pose.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisRX
	AxisRY
	AxisRZ
)

var axisNames = [...]string{"x", "y", "z", "rx", "ry", "rz"}

func (a Axis) String() string {
	if a < AxisX || a > AxisRZ {
		return fmt.Sprintf("axis(%d)", int(a))
	}
	return axisNames[a]
}

// ParseAxis converts "x", "y", "z", "rx", "ry" or "rz" to an Axis.
func ParseAxis(s string) (Axis, error) {
	for i, name := range axisNames {
		if name == s {
			return Axis(i), nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// Pose is a Cartesian target or feedback: position in mm and Euler
// orientation in degrees.
type Pose struct {
	X  float64 `json:"x" yaml:"x" toml:"x"`
	Y  float64 `json:"y" yaml:"y" toml:"y"`
	Z  float64 `json:"z" yaml:"z" toml:"z"`
	RX float64 `json:"rx" yaml:"rx" toml:"rx"`
	RY float64 `json:"ry" yaml:"ry" toml:"ry"`
	RZ float64 `json:"rz" yaml:"rz" toml:"rz"`
}

// Get returns the component selected by axis.
func (p Pose) Get(axis Axis) float64 {
	switch axis {
	case AxisX:
		return p.X
	case AxisY:
		return p.Y
	case AxisZ:
		return p.Z
	case AxisRX:
		return p.RX
	case AxisRY:
		return p.RY
	case AxisRZ:
		return p.RZ
	}
	return 0
}

// Add returns a copy of p with delta added to exactly one axis.
func (p Pose) Add(axis Axis, delta float64) Pose {
	switch axis {
	case AxisX:
		p.X += delta
	case AxisY:
		p.Y += delta
	case AxisZ:
		p.Z += delta
	case AxisRX:
		p.RX += delta
	case AxisRY:
		p.RY += delta
	case AxisRZ:
		p.RZ += delta
	}
	return p
}

// Quaternion is the optional quaternion orientation a robot may report.
type Quaternion struct {
	U0 float64 `json:"u0"`
	U1 float64 `json:"u1"`
	U2 float64 `json:"u2"`
	U3 float64 `json:"u3"`
}

// Joints is a joint configuration in degrees. Index 0 is joint 1.
type Joints []float64

// Clone returns an independent copy, or nil for nil.
func (j Joints) Clone() Joints {
	if j == nil {
		return nil
	}
	out := make(Joints, len(j))
	copy(out, j)
	return out
}

// Target is the planned value of a command: either a Pose or Joints.
type Target interface {
	isTarget()
}

func (Pose) isTarget()   {}
func (Joints) isTarget() {}

// Command is an outgoing correction (EgmSensor).
type Command struct {
	Header Header
	Target Target
}

// Clock is the controller time attached to feedback.
type Clock struct {
	Sec  uint64 `json:"sec"`
	Usec uint64 `json:"usec"`
}

// Feedback is a robot position report (EgmFeedBack / EgmPlanned).
// Controllers usually send both Pose and Joints; either may be absent.
type Feedback struct {
	Pose           *Pose       `json:"pose,omitempty"`
	Orientation    *Quaternion `json:"orientation,omitempty"`
	Joints         Joints      `json:"joints,omitempty"`
	ExternalJoints Joints      `json:"external_joints,omitempty"`
	Time           *Clock      `json:"time,omitempty"`
}

// Clone returns a deep copy.
func (f Feedback) Clone() Feedback {
	out := Feedback{
		Joints:         f.Joints.Clone(),
		ExternalJoints: f.ExternalJoints.Clone(),
	}
	if f.Pose != nil {
		p := *f.Pose
		out.Pose = &p
	}
	if f.Orientation != nil {
		q := *f.Orientation
		out.Orientation = &q
	}
	if f.Time != nil {
		c := *f.Time
		out.Time = &c
	}
	return out
}

// Empty reports whether the feedback carries no position data.
func (f Feedback) Empty() bool {
	return f.Pose == nil && f.Joints == nil
}

// MotorState mirrors EgmMotorState.MotorStateType.
type MotorState uint32

const (
	MotorsUndefined MotorState = 0
	MotorsOn        MotorState = 1
	MotorsOff       MotorState = 2
)

func (s MotorState) String() string {
	switch s {
	case MotorsUndefined:
		return "MOTORS_UNDEFINED"
	case MotorsOn:
		return "MOTORS_ON"
	case MotorsOff:
		return "MOTORS_OFF"
	}
	return fmt.Sprintf("MOTORS_%d", uint32(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s MotorState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *MotorState) UnmarshalText(b []byte) error {
	for _, v := range []MotorState{MotorsUndefined, MotorsOn, MotorsOff} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown motor state %q", b)
}

// RapidState mirrors EgmRapidCtrlExecState.RapidCtrlExecStateType.
type RapidState uint32

const (
	RapidUndefined RapidState = 0
	RapidStopped   RapidState = 1
	RapidRunning   RapidState = 2
)

func (s RapidState) String() string {
	switch s {
	case RapidUndefined:
		return "RAPID_UNDEFINED"
	case RapidStopped:
		return "RAPID_STOPPED"
	case RapidRunning:
		return "RAPID_RUNNING"
	}
	return fmt.Sprintf("RAPID_%d", uint32(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s RapidState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *RapidState) UnmarshalText(b []byte) error {
	for _, v := range []RapidState{RapidUndefined, RapidStopped, RapidRunning} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown rapid state %q", b)
}

// MCI state tokens as named by egm.proto (EgmMCIState.MCIStateType).
const (
	TokenMCIUndefined = "MCI_UNDEFINED"
	TokenMCIError     = "MCI_ERROR"
	TokenMCIStopped   = "MCI_STOPPED"
	TokenMCIRunning   = "MCI_RUNNING"
)

var mciTokens = []string{TokenMCIUndefined, TokenMCIError, TokenMCIStopped, TokenMCIRunning}

func mciToken(v uint64) string {
	if v < uint64(len(mciTokens)) {
		return mciTokens[v]
	}
	return fmt.Sprintf("MCI_STATE_%d", v)
}

func mciValue(token string) (uint64, bool) {
	for i, t := range mciTokens {
		if t == token {
			return uint64(i), true
		}
	}
	return 0, false
}

// Telemetry is an incoming robot message (EgmRobot).
type Telemetry struct {
	Header   Header
	Feedback Feedback
	Planned  Feedback

	// State is the robot's state token, e.g. "MCI_RUNNING". Empty when the
	// message carried no MCI state.
	State string

	// HasMotorState and HasRapidState report whether the message carried
	// those fields; absent ones decode as the UNDEFINED value.
	MotorState      MotorState
	HasMotorState   bool
	RapidState      RapidState
	HasRapidState   bool
	ConvergenceMet  bool
	TestSignals     []float64
	UtilizationRate float64
	MoveIndex       uint32
}
