package protocol

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-egm/pkg/egm"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    any
		wantErr bool
	}{
		{
			name:    "jog message",
			msgType: TypeJog,
			data:    JogCommand{Axis: "x", Delta: 10},
		},
		{
			name:    "pose message",
			msgType: TypePose,
			data:    PoseCommand{X: 1, Y: 2, Z: 3},
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
		},
		{
			name:    "unencodable data",
			msgType: TypeState,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewJogMessage(egm.AxisRZ, -2.5)
	if err != nil {
		t.Fatalf("NewJogMessage() error = %v", err)
	}
	data, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeJog {
		t.Errorf("Type = %v, want %v", parsed.Type, TypeJog)
	}

	var jog JogCommand
	if err := parsed.ParseData(&jog); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	axis, err := jog.Target()
	if err != nil {
		t.Fatalf("Target() error = %v", err)
	}
	if axis != egm.AxisRZ || jog.Delta != -2.5 {
		t.Errorf("jog = %v %v, want rz -2.5", axis, jog.Delta)
	}
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"missing type", `{"data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMessage([]byte(tt.data)); err == nil {
				t.Errorf("ParseMessage(%s) should fail", tt.data)
			}
		})
	}
}

func TestPoseConversion(t *testing.T) {
	p := egm.Pose{X: 1, Y: 2, Z: 3, RX: 4, RY: 5, RZ: 6}
	if got := FromPose(p).Pose(); got != p {
		t.Errorf("FromPose().Pose() = %v, want %v", got, p)
	}
}

func TestAckAndError(t *testing.T) {
	msg, err := NewAckMessage(egm.Header{Seqno: 7, Tm: 99})
	if err != nil {
		t.Fatalf("NewAckMessage() error = %v", err)
	}
	var ack AckData
	msg.ParseData(&ack)
	if ack.Seqno != 7 || ack.Tm != 99 {
		t.Errorf("ack = %+v, want seqno 7 tm 99", ack)
	}

	msg, _ = NewErrorMessage(errors.New("boom"))
	var e ErrorData
	msg.ParseData(&e)
	if e.Error != "boom" {
		t.Errorf("error = %q, want boom", e.Error)
	}
}

func TestPingPong(t *testing.T) {
	ping, _ := NewPingMessage("abc")
	var pd PingData
	ping.ParseData(&pd)

	pong, err := NewPongMessage(pd)
	if err != nil {
		t.Fatalf("NewPongMessage() error = %v", err)
	}
	var pg PongData
	pong.ParseData(&pg)
	if pg.ID != "abc" || pg.PingTS != pd.Timestamp {
		t.Errorf("pong = %+v, want id abc ping_ts %d", pg, pd.Timestamp)
	}
	if pg.LatencyMs < 0 {
		t.Errorf("LatencyMs = %d, want >= 0", pg.LatencyMs)
	}
}
