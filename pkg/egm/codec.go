package egm

import (
	"errors"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from egm.proto. They must never change.
const (
	// EgmHeader
	fieldHeaderSeqno protowire.Number = 1
	fieldHeaderTm    protowire.Number = 2
	fieldHeaderMtype protowire.Number = 3

	// EgmCartesian / EgmEuler
	fieldX protowire.Number = 1
	fieldY protowire.Number = 2
	fieldZ protowire.Number = 3

	// EgmQuaternion
	fieldU0 protowire.Number = 1
	fieldU1 protowire.Number = 2
	fieldU2 protowire.Number = 3
	fieldU3 protowire.Number = 4

	// EgmPose
	fieldPosePos    protowire.Number = 1
	fieldPoseOrient protowire.Number = 2
	fieldPoseEuler  protowire.Number = 3

	// EgmJoints
	fieldJointsValues protowire.Number = 1

	// EgmClock
	fieldClockSec  protowire.Number = 1
	fieldClockUsec protowire.Number = 2

	// EgmPlanned / EgmFeedBack
	fieldPlanJoints    protowire.Number = 1
	fieldPlanCartesian protowire.Number = 2
	fieldPlanExternal  protowire.Number = 3
	fieldPlanTime      protowire.Number = 4

	// EgmMotorState / EgmMCIState / EgmRapidCtrlExecState
	fieldStateValue protowire.Number = 1

	// EgmTestSignals
	fieldSignals protowire.Number = 1

	// EgmSensor
	fieldSensorHeader  protowire.Number = 1
	fieldSensorPlanned protowire.Number = 2

	// EgmRobot
	fieldRobotHeader          protowire.Number = 1
	fieldRobotFeedback        protowire.Number = 2
	fieldRobotPlanned         protowire.Number = 3
	fieldRobotMotorState      protowire.Number = 4
	fieldRobotMCIState        protowire.Number = 5
	fieldRobotConvergenceMet  protowire.Number = 6
	fieldRobotTestSignals     protowire.Number = 7
	fieldRobotRapidExecState  protowire.Number = 8
	fieldRobotUtilizationRate protowire.Number = 10
	fieldRobotMoveIndex       protowire.Number = 11
)

// =============================================================================
// Encoding
// =============================================================================

// EncodeCommand serializes cmd as an EgmSensor message.
// A nil Target produces a message with a header and no planned section.
func EncodeCommand(cmd Command) []byte {
	b := make([]byte, 0, 128)
	b = appendMessage(b, fieldSensorHeader, appendHeader(nil, cmd.Header))

	var planned []byte
	switch t := cmd.Target.(type) {
	case Pose:
		planned = appendMessage(planned, fieldPlanCartesian, appendPose(nil, t, nil))
	case *Pose:
		if t != nil {
			planned = appendMessage(planned, fieldPlanCartesian, appendPose(nil, *t, nil))
		}
	case Joints:
		planned = appendMessage(planned, fieldPlanJoints, appendDoubles(nil, fieldJointsValues, t))
	}
	if planned != nil {
		b = appendMessage(b, fieldSensorPlanned, planned)
	}
	return b
}

// EncodeTelemetry serializes t as an EgmRobot message. The robot side of the
// protocol uses it; a sensor application only decodes telemetry.
//
// The MCI state is written only when State is one of the MCI_* tokens.
func EncodeTelemetry(t Telemetry) []byte {
	b := make([]byte, 0, 256)
	b = appendMessage(b, fieldRobotHeader, appendHeader(nil, t.Header))
	if fb := appendFeedback(nil, t.Feedback); fb != nil {
		b = appendMessage(b, fieldRobotFeedback, fb)
	}
	if pl := appendFeedback(nil, t.Planned); pl != nil {
		b = appendMessage(b, fieldRobotPlanned, pl)
	}
	if t.HasMotorState || t.MotorState != MotorsUndefined {
		b = appendMessage(b, fieldRobotMotorState, appendVarint(nil, fieldStateValue, uint64(t.MotorState)))
	}
	if v, ok := mciValue(t.State); ok {
		b = appendMessage(b, fieldRobotMCIState, appendVarint(nil, fieldStateValue, v))
	}
	if t.ConvergenceMet {
		b = appendVarint(b, fieldRobotConvergenceMet, 1)
	}
	if len(t.TestSignals) > 0 {
		b = appendMessage(b, fieldRobotTestSignals, appendDoubles(nil, fieldSignals, t.TestSignals))
	}
	if t.HasRapidState || t.RapidState != RapidUndefined {
		b = appendMessage(b, fieldRobotRapidExecState, appendVarint(nil, fieldStateValue, uint64(t.RapidState)))
	}
	if t.UtilizationRate != 0 {
		b = appendDouble(b, fieldRobotUtilizationRate, t.UtilizationRate)
	}
	if t.MoveIndex != 0 {
		b = appendVarint(b, fieldRobotMoveIndex, uint64(t.MoveIndex))
	}
	return b
}

func appendHeader(b []byte, h Header) []byte {
	if h.HasSeqno {
		b = appendVarint(b, fieldHeaderSeqno, uint64(h.Seqno))
	}
	if h.HasTm {
		b = appendVarint(b, fieldHeaderTm, uint64(h.Tm))
	}
	if h.Type != MsgUndefined {
		b = appendVarint(b, fieldHeaderMtype, uint64(h.Type))
	}
	return b
}

// appendPose writes pos and euler (always, they are required sub-fields) and
// the quaternion only when given.
func appendPose(b []byte, p Pose, q *Quaternion) []byte {
	pos := appendDouble(nil, fieldX, p.X)
	pos = appendDouble(pos, fieldY, p.Y)
	pos = appendDouble(pos, fieldZ, p.Z)
	b = appendMessage(b, fieldPosePos, pos)

	if q != nil {
		orient := appendDouble(nil, fieldU0, q.U0)
		orient = appendDouble(orient, fieldU1, q.U1)
		orient = appendDouble(orient, fieldU2, q.U2)
		orient = appendDouble(orient, fieldU3, q.U3)
		b = appendMessage(b, fieldPoseOrient, orient)
	}

	euler := appendDouble(nil, fieldX, p.RX)
	euler = appendDouble(euler, fieldY, p.RY)
	euler = appendDouble(euler, fieldZ, p.RZ)
	return appendMessage(b, fieldPoseEuler, euler)
}

func appendFeedback(b []byte, f Feedback) []byte {
	if f.Joints != nil {
		b = appendMessage(b, fieldPlanJoints, appendDoubles(nil, fieldJointsValues, f.Joints))
	}
	if f.Pose != nil {
		b = appendMessage(b, fieldPlanCartesian, appendPose(nil, *f.Pose, f.Orientation))
	}
	if f.ExternalJoints != nil {
		b = appendMessage(b, fieldPlanExternal, appendDoubles(nil, fieldJointsValues, f.ExternalJoints))
	}
	if f.Time != nil {
		clock := appendVarint(nil, fieldClockSec, f.Time.Sec)
		clock = appendVarint(clock, fieldClockUsec, f.Time.Usec)
		b = appendMessage(b, fieldPlanTime, clock)
	}
	return b
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// appendDoubles writes a proto2 repeated double unpacked, one tag per value.
func appendDoubles(b []byte, num protowire.Number, vs []float64) []byte {
	for _, v := range vs {
		b = appendDouble(b, num, v)
	}
	return b
}

// appendMessage writes a length-delimited sub-message, even when empty.
func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// =============================================================================
// Decoding
// =============================================================================

// DecodeTelemetry parses an EgmRobot message. It does not check header
// completeness; use Header.Valid for that. Unknown fields are skipped, but a
// message with no EgmRobot field at all is malformed, since most byte
// strings parse as some protobuf message.
func DecodeTelemetry(b []byte) (Telemetry, error) {
	var (
		t     Telemetry
		known bool
	)
	err := eachField(b, "", func(f field) error {
		switch {
		case f.is(fieldRobotHeader, protowire.BytesType):
			known = true
			h, err := decodeHeader(f.b, "header")
			t.Header = h
			return err
		case f.is(fieldRobotFeedback, protowire.BytesType):
			known = true
			fb, err := decodeFeedback(f.b, "feedBack")
			t.Feedback = fb
			return err
		case f.is(fieldRobotPlanned, protowire.BytesType):
			known = true
			pl, err := decodeFeedback(f.b, "planned")
			t.Planned = pl
			return err
		case f.is(fieldRobotMotorState, protowire.BytesType):
			known = true
			v, err := decodeStateValue(f.b, "motorState")
			t.MotorState, t.HasMotorState = MotorState(v), true
			return err
		case f.is(fieldRobotMCIState, protowire.BytesType):
			known = true
			v, err := decodeStateValue(f.b, "mciState")
			t.State = mciToken(v)
			return err
		case f.is(fieldRobotConvergenceMet, protowire.VarintType):
			known = true
			t.ConvergenceMet = f.v != 0
		case f.is(fieldRobotTestSignals, protowire.BytesType):
			known = true
			return eachField(f.b, "testSignals", func(s field) error {
				if s.num != fieldSignals {
					return nil
				}
				vs, err := s.doubles(&t.TestSignals)
				if err != nil {
					return err
				}
				t.TestSignals = vs
				return nil
			})
		case f.is(fieldRobotRapidExecState, protowire.BytesType):
			known = true
			v, err := decodeStateValue(f.b, "rapidExecState")
			t.RapidState, t.HasRapidState = RapidState(v), true
			return err
		case f.is(fieldRobotUtilizationRate, protowire.Fixed64Type):
			known = true
			t.UtilizationRate = math.Float64frombits(f.v)
		case f.is(fieldRobotMoveIndex, protowire.VarintType):
			known = true
			t.MoveIndex = uint32(f.v)
		}
		return nil
	})
	if err != nil {
		return Telemetry{}, err
	}
	if !known {
		return Telemetry{}, &DecodeError{Offset: len(b), Err: errNoRobotFields}
	}
	return t, nil
}

// DecodeCommand parses an EgmSensor message. When the planned section holds
// both joints and a pose, the pose wins.
func DecodeCommand(b []byte) (Command, error) {
	var cmd Command
	err := eachField(b, "", func(f field) error {
		switch {
		case f.is(fieldSensorHeader, protowire.BytesType):
			h, err := decodeHeader(f.b, "header")
			cmd.Header = h
			return err
		case f.is(fieldSensorPlanned, protowire.BytesType):
			pl, err := decodeFeedback(f.b, "planned")
			if err != nil {
				return err
			}
			switch {
			case pl.Pose != nil:
				cmd.Target = *pl.Pose
			case pl.Joints != nil:
				cmd.Target = pl.Joints
			}
		}
		return nil
	})
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func decodeHeader(b []byte, path string) (Header, error) {
	var h Header
	err := eachField(b, path, func(f field) error {
		switch {
		case f.is(fieldHeaderSeqno, protowire.VarintType):
			h.Seqno, h.HasSeqno = uint32(f.v), true
		case f.is(fieldHeaderTm, protowire.VarintType):
			h.Tm, h.HasTm = uint32(f.v), true
		case f.is(fieldHeaderMtype, protowire.VarintType):
			h.Type = MessageType(f.v)
		}
		return nil
	})
	return h, err
}

func decodeFeedback(b []byte, path string) (Feedback, error) {
	var fb Feedback
	err := eachField(b, path, func(f field) error {
		switch {
		case f.is(fieldPlanJoints, protowire.BytesType):
			j, err := decodeJoints(f.b, path+".joints")
			fb.Joints = j
			return err
		case f.is(fieldPlanCartesian, protowire.BytesType):
			p, q, err := decodePose(f.b, path+".cartesian")
			fb.Pose, fb.Orientation = &p, q
			return err
		case f.is(fieldPlanExternal, protowire.BytesType):
			j, err := decodeJoints(f.b, path+".externalJoints")
			fb.ExternalJoints = j
			return err
		case f.is(fieldPlanTime, protowire.BytesType):
			var c Clock
			err := eachField(f.b, path+".time", func(cf field) error {
				switch {
				case cf.is(fieldClockSec, protowire.VarintType):
					c.Sec = cf.v
				case cf.is(fieldClockUsec, protowire.VarintType):
					c.Usec = cf.v
				}
				return nil
			})
			fb.Time = &c
			return err
		}
		return nil
	})
	return fb, err
}

func decodeJoints(b []byte, path string) (Joints, error) {
	j := Joints{}
	err := eachField(b, path, func(f field) error {
		if f.num != fieldJointsValues {
			return nil
		}
		vs, err := f.doubles((*[]float64)(&j))
		if err != nil {
			return &DecodeError{Path: path, Err: err}
		}
		j = vs
		return nil
	})
	return j, err
}

func decodePose(b []byte, path string) (Pose, *Quaternion, error) {
	var (
		p Pose
		q *Quaternion
	)
	err := eachField(b, path, func(f field) error {
		switch {
		case f.is(fieldPosePos, protowire.BytesType):
			return eachField(f.b, path+".pos", func(c field) error {
				switch {
				case c.is(fieldX, protowire.Fixed64Type):
					p.X = math.Float64frombits(c.v)
				case c.is(fieldY, protowire.Fixed64Type):
					p.Y = math.Float64frombits(c.v)
				case c.is(fieldZ, protowire.Fixed64Type):
					p.Z = math.Float64frombits(c.v)
				}
				return nil
			})
		case f.is(fieldPoseEuler, protowire.BytesType):
			return eachField(f.b, path+".euler", func(c field) error {
				switch {
				case c.is(fieldX, protowire.Fixed64Type):
					p.RX = math.Float64frombits(c.v)
				case c.is(fieldY, protowire.Fixed64Type):
					p.RY = math.Float64frombits(c.v)
				case c.is(fieldZ, protowire.Fixed64Type):
					p.RZ = math.Float64frombits(c.v)
				}
				return nil
			})
		case f.is(fieldPoseOrient, protowire.BytesType):
			q = &Quaternion{}
			return eachField(f.b, path+".orient", func(c field) error {
				switch {
				case c.is(fieldU0, protowire.Fixed64Type):
					q.U0 = math.Float64frombits(c.v)
				case c.is(fieldU1, protowire.Fixed64Type):
					q.U1 = math.Float64frombits(c.v)
				case c.is(fieldU2, protowire.Fixed64Type):
					q.U2 = math.Float64frombits(c.v)
				case c.is(fieldU3, protowire.Fixed64Type):
					q.U3 = math.Float64frombits(c.v)
				}
				return nil
			})
		}
		return nil
	})
	return p, q, err
}

func decodeStateValue(b []byte, path string) (uint64, error) {
	var v uint64
	err := eachField(b, path, func(f field) error {
		if f.is(fieldStateValue, protowire.VarintType) {
			v = f.v
		}
		return nil
	})
	return v, err
}

// field is one decoded tag/value pair.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64 // varint, fixed32 or fixed64 payload
	b   []byte // length-delimited payload
}

func (f field) is(num protowire.Number, typ protowire.Type) bool {
	return f.num == num && f.typ == typ
}

var errPackedLength = errors.New("packed doubles length is not a multiple of 8")

// doubles appends a repeated double element to dst, accepting both the
// unpacked (fixed64) and packed (bytes) encodings.
func (f field) doubles(dst *[]float64) ([]float64, error) {
	out := *dst
	switch f.typ {
	case protowire.Fixed64Type:
		return append(out, math.Float64frombits(f.v)), nil
	case protowire.BytesType:
		if len(f.b)%8 != 0 {
			return out, errPackedLength
		}
		for b := f.b; len(b) > 0; {
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return out, protowire.ParseError(n)
			}
			out = append(out, math.Float64frombits(v))
			b = b[n:]
		}
	}
	return out, nil
}

// eachField walks every field of a message, calling fn for each. Groups are
// skipped; any wire-level error is reported as a *DecodeError.
func eachField(b []byte, path string, fn func(field) error) error {
	off := 0
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return &DecodeError{Path: path, Offset: off, Err: protowire.ParseError(n)}
		}
		b, off = b[n:], off+n

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.v, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.v = uint64(v)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return &DecodeError{Path: path, Offset: off, Err: protowire.ParseError(n)}
		}
		b, off = b[n:], off+n

		if err := fn(f); err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				return err
			}
			return &DecodeError{Path: path, Offset: off, Err: err}
		}
	}
	return nil
}
