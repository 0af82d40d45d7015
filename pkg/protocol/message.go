// Package protocol defines the JSON messages exchanged between the egmctl
// control server and its clients, over HTTP bodies and the state WebSocket.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → client
	TypeState MessageType = "state" // Robot state snapshot
	TypeStats MessageType = "stats" // Engine counters
	TypeAck   MessageType = "ack"   // Command accepted
	TypeError MessageType = "error" // Command rejected

	// Client → server
	TypePose     MessageType = "pose"      // Cartesian target
	TypeJoints   MessageType = "joints"    // Joint target
	TypeJog      MessageType = "jog"       // Cartesian jog
	TypeJogJoint MessageType = "jog_joint" // Joint jog

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Client → Server
// =============================================================================

// ConnectRequest opens an EGM session. Empty fields use the server's config.
type ConnectRequest struct {
	Address string `json:"address,omitempty"`
	Port    int    `json:"port,omitempty"`
}

// PoseCommand is a Cartesian target in millimetres and degrees.
type PoseCommand struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	RX float64 `json:"rx"`
	RY float64 `json:"ry"`
	RZ float64 `json:"rz"`
}

// JointsCommand is a joint target in degrees.
type JointsCommand struct {
	Joints []float64 `json:"joints"`
}

// JogCommand offsets one Cartesian axis of the current pose.
type JogCommand struct {
	Axis  string  `json:"axis"` // x, y, z, rx, ry, rz
	Delta float64 `json:"delta"`
}

// JogJointCommand offsets one joint of the current joint vector.
type JogJointCommand struct {
	Index int     `json:"index"`
	Delta float64 `json:"delta"`
}

// =============================================================================
// Server → Client
// =============================================================================

// AckData reports the header a command was sent under.
type AckData struct {
	Seqno uint32 `json:"seqno"`
	Tm    uint32 `json:"tm"`
}

// ErrorData describes a rejected request.
type ErrorData struct {
	Error string `json:"error"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
