package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/go-egm/pkg/egm"
	"github.com/teslashibe/go-egm/pkg/protocol"
	"github.com/teslashibe/go-egm/pkg/robot"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(16)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// row writes one "label value" line.
func row(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s%v\n", labelStyle.Render(label), value)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatPose(p *egm.Pose) string {
	if p == nil {
		return dimStyle.Render("-")
	}
	return fmt.Sprintf("x=%.2f y=%.2f z=%.2f rx=%.2f ry=%.2f rz=%.2f", p.X, p.Y, p.Z, p.RX, p.RY, p.RZ)
}

func formatJoints(j egm.Joints) string {
	if len(j) == 0 {
		return dimStyle.Render("-")
	}
	parts := make([]string, len(j))
	for i, v := range j {
		parts[i] = fmt.Sprintf("j%d=%.2f", i+1, v)
	}
	return strings.Join(parts, " ")
}

func formatProtocolState(s robot.ProtocolState) string {
	switch s {
	case robot.StateRunning, robot.StateConnected:
		return okStyle.Render(s.String())
	case robot.StateError, robot.StateDisconnected:
		return badStyle.Render(s.String())
	}
	return s.String()
}

func printStats(w io.Writer, s statsResponse) {
	e := s.Engine
	row(w, "connected", e.Connected)
	if e.SessionID != "" {
		row(w, "session", e.SessionID)
	}
	if e.LocalAddr != "" {
		row(w, "local", e.LocalAddr)
	}
	if e.Peer != "" {
		row(w, "peer", e.Peer)
	}
	row(w, "next seqno", e.NextSequence)
	row(w, "reconnects", e.Reconnects)
	row(w, "telemetry", fmt.Sprintf("valid=%d invalid=%d malformed=%d", e.Valid, e.Invalid, e.Malformed))
	row(w, "commands", fmt.Sprintf("sent=%d failed=%d", e.Sent, e.SendFailed))
	if st := e.Streamer; st != nil {
		row(w, "streamer", fmt.Sprintf("ticks=%d skipped=%d errors=%d", st.Ticks, st.Skipped, st.Errors))
	}
	if !s.Hub.Running {
		row(w, "ws clients", badStyle.Render("hub stopped"))
		return
	}
	row(w, "ws clients", fmt.Sprintf("%d (dropped %d)", s.Hub.Clients, s.Hub.Dropped))
}

func printState(w io.Writer, s robot.State) {
	row(w, "state", formatProtocolState(s.ProtocolState))
	row(w, "motors", s.MotorState)
	row(w, "rapid", s.RapidState)
	row(w, "pose", formatPose(s.Feedback.Pose))
	row(w, "joints", formatJoints(s.Feedback.Joints))
	if s.HasSent {
		row(w, "last sent", s.LastSequenceSent)
	}
}

func printAck(w io.Writer, ack protocol.AckData) {
	fmt.Fprintf(w, "sent seqno=%d tm=%d\n", ack.Seqno, ack.Tm)
}
