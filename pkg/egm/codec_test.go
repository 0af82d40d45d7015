package egm

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"
)

func validHeader(seq, tm uint32) Header {
	return Header{Seqno: seq, Tm: tm, Type: MsgCorrection, HasSeqno: true, HasTm: true}
}

func TestEncodeCommandPoseWireFormat(t *testing.T) {
	cmd := Command{
		Header: validHeader(1, 2),
		Target: Pose{X: 1},
	}

	zero := []byte{0, 0, 0, 0, 0, 0, 0, 0}
	one := []byte{0, 0, 0, 0, 0, 0, 0xF0, 0x3F}

	var pos []byte
	pos = append(pos, 0x09)
	pos = append(pos, one...)
	pos = append(pos, 0x11)
	pos = append(pos, zero...)
	pos = append(pos, 0x19)
	pos = append(pos, zero...)

	var euler []byte
	euler = append(euler, 0x09)
	euler = append(euler, zero...)
	euler = append(euler, 0x11)
	euler = append(euler, zero...)
	euler = append(euler, 0x19)
	euler = append(euler, zero...)

	var pose []byte
	pose = append(pose, 0x0A, byte(len(pos)))
	pose = append(pose, pos...)
	pose = append(pose, 0x1A, byte(len(euler)))
	pose = append(pose, euler...)

	planned := append([]byte{0x12, byte(len(pose))}, pose...)

	want := []byte{0x0A, 0x06, 0x08, 0x01, 0x10, 0x02, 0x18, 0x03}
	want = append(want, 0x12, byte(len(planned)))
	want = append(want, planned...)

	got := EncodeCommand(cmd)
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeCommand() =\n% x\nwant\n% x", got, want)
	}
}

func TestEncodeCommandJointsUnpacked(t *testing.T) {
	cmd := Command{Header: validHeader(0, 0), Target: Joints{1.5}}

	joints := []byte{0x09, 0, 0, 0, 0, 0, 0, 0xF8, 0x3F}
	planned := append([]byte{0x0A, byte(len(joints))}, joints...)

	want := []byte{0x0A, 0x06, 0x08, 0x00, 0x10, 0x00, 0x18, 0x03}
	want = append(want, 0x12, byte(len(planned)))
	want = append(want, planned...)

	got := EncodeCommand(cmd)
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeCommand() =\n% x\nwant\n% x", got, want)
	}
}

func TestCommandRoundTripThroughTelemetry(t *testing.T) {
	tests := []struct {
		name   string
		target Target
	}{
		{"zero pose", Pose{}},
		{"pose", Pose{X: 512.25, Y: -33.125, Z: 1e-9, RX: 180, RY: -0.0, RZ: math.Pi}},
		{"extreme pose", Pose{X: math.MaxFloat64, Y: -math.SmallestNonzeroFloat64, Z: math.Inf(1)}},
		{"six joints", Joints{10, 20, 30, 40, 50, 60}},
		{"seven joints", Joints{0.1, -0.2, 0.3, -0.4, 0.5, -0.6, 0.7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Command{Header: validHeader(42, 123456), Target: tt.target}

			got, err := DecodeTelemetry(EncodeCommand(cmd))
			if err != nil {
				t.Fatalf("DecodeTelemetry() error = %v", err)
			}
			if got.Header != cmd.Header {
				t.Errorf("Header = %+v, want %+v", got.Header, cmd.Header)
			}

			switch want := tt.target.(type) {
			case Pose:
				if got.Feedback.Pose == nil {
					t.Fatal("Feedback.Pose is nil")
				}
				assertPoseBits(t, *got.Feedback.Pose, want)
			case Joints:
				if len(got.Feedback.Joints) != len(want) {
					t.Fatalf("len(Joints) = %d, want %d", len(got.Feedback.Joints), len(want))
				}
				for i := range want {
					if math.Float64bits(got.Feedback.Joints[i]) != math.Float64bits(want[i]) {
						t.Errorf("Joints[%d] = %v, want %v", i, got.Feedback.Joints[i], want[i])
					}
				}
			}
		})
	}
}

func assertPoseBits(t *testing.T, got, want Pose) {
	t.Helper()
	for axis := AxisX; axis <= AxisRZ; axis++ {
		if math.Float64bits(got.Get(axis)) != math.Float64bits(want.Get(axis)) {
			t.Errorf("%s = %v, want %v", axis, got.Get(axis), want.Get(axis))
		}
	}
}

func TestDecodeCommand(t *testing.T) {
	cmd := Command{Header: validHeader(7, 99), Target: Joints{1, 2, 3, 4, 5, 6}}

	got, err := DecodeCommand(EncodeCommand(cmd))
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	if !reflect.DeepEqual(got, cmd) {
		t.Errorf("DecodeCommand() = %+v, want %+v", got, cmd)
	}
}

func TestTelemetryRoundTrip(t *testing.T) {
	orig := Telemetry{
		Header: Header{Seqno: 5, Tm: 123456, Type: MsgData, HasSeqno: true, HasTm: true},
		Feedback: Feedback{
			Pose:           &Pose{X: 10, Y: 20, Z: 30, RX: 1, RY: 2, RZ: 3},
			Orientation:    &Quaternion{U0: 1},
			Joints:         Joints{1, 2, 3, 4, 5, 6},
			ExternalJoints: Joints{7},
			Time:           &Clock{Sec: 1700000000, Usec: 250},
		},
		Planned: Feedback{
			Joints: Joints{6, 5, 4, 3, 2, 1},
		},
		State:           TokenMCIRunning,
		MotorState:      MotorsOn,
		HasMotorState:   true,
		RapidState:      RapidRunning,
		HasRapidState:   true,
		ConvergenceMet:  true,
		TestSignals:     []float64{0.5, 0.25},
		UtilizationRate: 42.5,
		MoveIndex:       9,
	}

	got, err := DecodeTelemetry(EncodeTelemetry(orig))
	if err != nil {
		t.Fatalf("DecodeTelemetry() error = %v", err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Errorf("DecodeTelemetry() =\n%+v\nwant\n%+v", got, orig)
	}
}

func TestDecodeTelemetryMissingHeaderFields(t *testing.T) {
	tel := Telemetry{
		Header:   Header{Seqno: 5, HasSeqno: true, Type: MsgData},
		Feedback: Feedback{Pose: &Pose{X: 1}},
	}

	got, err := DecodeTelemetry(EncodeTelemetry(tel))
	if err != nil {
		t.Fatalf("DecodeTelemetry() error = %v", err)
	}
	if got.Header.HasTm {
		t.Error("HasTm should be false when tm was not sent")
	}
	if got.Header.Valid() {
		t.Error("Header.Valid() should be false without tm")
	}
}

func TestDecodeTelemetryPackedJoints(t *testing.T) {
	// header {seqno:1 tm:1}, feedBack { joints { joints: [packed 2.0, 4.0] } }
	packed := []byte{0x0A, 0x10,
		0, 0, 0, 0, 0, 0, 0x00, 0x40,
		0, 0, 0, 0, 0, 0, 0x10, 0x40,
	}
	joints := append([]byte{0x0A, byte(len(packed))}, packed...)
	data := []byte{0x0A, 0x04, 0x08, 0x01, 0x10, 0x01}
	data = append(data, 0x12, byte(len(joints)))
	data = append(data, joints...)

	got, err := DecodeTelemetry(data)
	if err != nil {
		t.Fatalf("DecodeTelemetry() error = %v", err)
	}
	want := Joints{2, 4}
	if !reflect.DeepEqual(got.Feedback.Joints, want) {
		t.Errorf("Joints = %v, want %v", got.Feedback.Joints, want)
	}
}

func TestDecodeTelemetryIgnoresUnknownFields(t *testing.T) {
	data := EncodeTelemetry(Telemetry{
		Header: validHeader(3, 4),
		State:  TokenMCIStopped,
	})
	// field 12 (CollisionInfo) as bytes, field 99 as varint, field 13 as fixed32
	data = append(data, 0x62, 0x02, 0x08, 0x01)
	data = append(data, 0x98, 0x06, 0x2A)
	data = append(data, 0x6D, 1, 2, 3, 4)

	got, err := DecodeTelemetry(data)
	if err != nil {
		t.Fatalf("DecodeTelemetry() error = %v", err)
	}
	if got.State != TokenMCIStopped {
		t.Errorf("State = %q, want %q", got.State, TokenMCIStopped)
	}
	if got.Header.Seqno != 3 {
		t.Errorf("Seqno = %d, want 3", got.Header.Seqno)
	}
}

func TestDecodeTelemetryUnknownMCIValue(t *testing.T) {
	data := []byte{0x2A, 0x02, 0x08, 0x07} // mciState { state: 7 }

	got, err := DecodeTelemetry(data)
	if err != nil {
		t.Fatalf("DecodeTelemetry() error = %v", err)
	}
	if got.State != "MCI_STATE_7" {
		t.Errorf("State = %q, want MCI_STATE_7", got.State)
	}
}

func TestDecodeTelemetryMalformed(t *testing.T) {
	valid := EncodeTelemetry(Telemetry{
		Header:   validHeader(1, 1),
		Feedback: Feedback{Pose: &Pose{X: 1, Y: 2, Z: 3}},
		State:    TokenMCIRunning,
	})

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", valid[:len(valid)-1]},
		{"truncated inside feedback", valid[:12]},
		{"zero field number", []byte{0x00, 0x01}},
		{"varint overflow", []byte{0x08, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}},
		{"length past end", []byte{0x0A, 0x7F, 0x08}},
		{"stray end group", []byte{0x0C}},
		{"packed joints not multiple of 8", []byte{0x12, 0x05, 0x0A, 0x03, 0x0A, 0x01, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTelemetry(tt.data)
			if err == nil {
				t.Fatal("DecodeTelemetry() error = nil, want malformed")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("errors.Is(err, ErrMalformed) = false for %v", err)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Errorf("error %T is not a *DecodeError", err)
			}
		})
	}
}

func TestDecodeTelemetryWithoutRobotFields(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"ascii text", []byte("hahahaha")},
		{"unknown varint field", []byte{0x98, 0x06, 0x2A}},
		{"unknown bytes field", []byte{0x62, 0x02, 0x08, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTelemetry(tt.data)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("DecodeTelemetry(%q) error = %v, want ErrMalformed", tt.data, err)
			}
		})
	}
}

func TestDecodeTelemetryStatePresence(t *testing.T) {
	tests := []struct {
		name      string
		tel       Telemetry
		wantMotor bool
		wantRapid bool
	}{
		{"absent", Telemetry{Header: validHeader(1, 1)}, false, false},
		{"set values", Telemetry{Header: validHeader(1, 1), MotorState: MotorsOff, RapidState: RapidStopped}, true, true},
		{"explicit undefined", Telemetry{Header: validHeader(1, 1), HasMotorState: true}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTelemetry(EncodeTelemetry(tt.tel))
			if err != nil {
				t.Fatalf("DecodeTelemetry() error = %v", err)
			}
			if got.HasMotorState != tt.wantMotor || got.HasRapidState != tt.wantRapid {
				t.Errorf("HasMotorState=%t HasRapidState=%t, want %t %t",
					got.HasMotorState, got.HasRapidState, tt.wantMotor, tt.wantRapid)
			}
			if got.MotorState != tt.tel.MotorState || got.RapidState != tt.tel.RapidState {
				t.Errorf("motor/rapid = %v/%v, want %v/%v",
					got.MotorState, got.RapidState, tt.tel.MotorState, tt.tel.RapidState)
			}
		})
	}
}

func TestPoseAdd(t *testing.T) {
	p := Pose{X: 1, Y: 2, Z: 3, RX: 4, RY: 5, RZ: 6}

	for axis := AxisX; axis <= AxisRZ; axis++ {
		got := p.Add(axis, 10)
		for other := AxisX; other <= AxisRZ; other++ {
			want := p.Get(other)
			if other == axis {
				want += 10
			}
			if got.Get(other) != want {
				t.Errorf("Add(%s).%s = %v, want %v", axis, other, got.Get(other), want)
			}
		}
	}
}

func TestParseAxis(t *testing.T) {
	for axis := AxisX; axis <= AxisRZ; axis++ {
		got, err := ParseAxis(axis.String())
		if err != nil {
			t.Fatalf("ParseAxis(%q) error = %v", axis.String(), err)
		}
		if got != axis {
			t.Errorf("ParseAxis(%q) = %v, want %v", axis.String(), got, axis)
		}
	}
	if _, err := ParseAxis("w"); err == nil {
		t.Error("ParseAxis(\"w\") should fail")
	}
}

func TestFeedbackCloneIsIndependent(t *testing.T) {
	orig := Feedback{Pose: &Pose{X: 1}, Joints: Joints{1, 2}}
	c := orig.Clone()

	c.Pose.X = 99
	c.Joints[0] = 99

	if orig.Pose.X != 1 {
		t.Error("Clone shares Pose with original")
	}
	if orig.Joints[0] != 1 {
		t.Error("Clone shares Joints with original")
	}
}
