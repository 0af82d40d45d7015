package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-egm/pkg/protocol"
	"github.com/teslashibe/go-egm/pkg/robot"
)

// newWatchCmd creates the "egmctl watch" subcommand.
func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		count  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream state snapshots from /ws/state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			wsURL, err := stateStreamURL(c.baseURL())
			if err != nil {
				return err
			}
			return watch(cmd.Context(), wsURL, cmd.OutOrStdout(), count, asJSON)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after n snapshots (0 = until interrupted)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print each message as received")
	return cmd
}

// stateStreamURL turns an http(s) API base into the ws(s) state stream URL.
func stateStreamURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid api url %q: %w", base, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/state"
	return u.String(), nil
}

// watch prints state messages until ctx is done, the server closes the
// stream or count snapshots have been printed.
func watch(ctx context.Context, wsURL string, w io.Writer, count int, asJSON bool) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the command is interrupted.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	seen := 0
	for count == 0 || seen < count {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			return err
		}
		if msg.Type != protocol.TypeState {
			continue
		}
		if asJSON {
			fmt.Fprintln(w, string(data))
		} else {
			var s robot.State
			if err := msg.ParseData(&s); err != nil {
				return fmt.Errorf("decode state: %w", err)
			}
			fmt.Fprintln(w, stateLine(s))
		}
		seen++
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return nil
}

// stateLine renders a snapshot on one line.
func stateLine(s robot.State) string {
	ts, seq := "--:--:--.---", "-"
	if !s.UpdatedAt.IsZero() {
		ts = s.UpdatedAt.Format("15:04:05.000")
	}
	// Header presence flags are not sent over JSON. Feedback is only stored
	// from valid telemetry, so it implies a real sequence number.
	if !s.Feedback.Empty() {
		seq = fmt.Sprint(s.LastHeader.Seqno)
	}
	return fmt.Sprintf("%s %-12s seq=%-8s pose[%s] joints[%s]",
		ts, s.ProtocolState, seq, formatPose(s.Feedback.Pose), formatJoints(s.Feedback.Joints))
}
