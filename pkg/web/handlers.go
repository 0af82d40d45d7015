package web

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-egm/pkg/egm"
	"github.com/teslashibe/go-egm/pkg/hub"
	"github.com/teslashibe/go-egm/pkg/protocol"
	"github.com/teslashibe/go-egm/pkg/robot"
)

// errBadRequest marks client input errors.
var errBadRequest = errors.New("bad request")

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, errBadRequest),
		errors.Is(err, robot.ErrJointIndex),
		errors.Is(err, robot.ErrEmptyJoints):
		return fiber.StatusBadRequest
	case errors.Is(err, robot.ErrNotConnected),
		errors.Is(err, robot.ErrAlreadyConnected),
		errors.Is(err, robot.ErrNoPeer),
		errors.Is(err, robot.ErrNoFeedback):
		return fiber.StatusConflict
	case errors.Is(err, egm.ErrSendFailed):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// handleError renders every handler error as {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(protocol.ErrorData{Error: err.Error()})
}

func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// handleState returns the current robot state
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Snapshot())
}

// handleStats returns engine counters
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"engine": s.ctrl.Stats(),
		"hub": fiber.Map{
			"running": s.hub.IsRunning(),
			"clients": s.hub.ClientCount(),
			"dropped": s.hub.Dropped(),
		},
	})
}

// handleConnect opens the EGM session
func (s *Server) handleConnect(c *fiber.Ctx) error {
	var req protocol.ConnectRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	if err := s.ctrl.Connect(c.UserContext(), req.Address, req.Port); err != nil {
		return err
	}
	return c.JSON(s.ctrl.Stats())
}

// handleDisconnect closes the EGM session
func (s *Server) handleDisconnect(c *fiber.Ctx) error {
	if err := s.ctrl.Disconnect(); err != nil {
		return err
	}
	return c.JSON(s.ctrl.Snapshot())
}

func (s *Server) handlePose(c *fiber.Ctx) error {
	var req protocol.PoseCommand
	if err := parseBody(c, &req); err != nil {
		return err
	}
	h, err := s.ctrl.SendPose(c.UserContext(), req.Pose())
	if err != nil {
		return err
	}
	return c.JSON(protocol.NewAck(h))
}

func (s *Server) handleJoints(c *fiber.Ctx) error {
	var req protocol.JointsCommand
	if err := parseBody(c, &req); err != nil {
		return err
	}
	h, err := s.ctrl.SendJoints(c.UserContext(), req.Joints)
	if err != nil {
		return err
	}
	return c.JSON(protocol.NewAck(h))
}

func (s *Server) handleJog(c *fiber.Ctx) error {
	var req protocol.JogCommand
	if err := parseBody(c, &req); err != nil {
		return err
	}
	h, err := s.jog(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(protocol.NewAck(h))
}

func (s *Server) handleJogJoint(c *fiber.Ctx) error {
	var req protocol.JogJointCommand
	if err := parseBody(c, &req); err != nil {
		return err
	}
	h, err := s.ctrl.JogJoint(c.UserContext(), req.Index, req.Delta)
	if err != nil {
		return err
	}
	return c.JSON(protocol.NewAck(h))
}

func (s *Server) jog(ctx context.Context, req protocol.JogCommand) (egm.Header, error) {
	axis, err := req.Target()
	if err != nil {
		return egm.Header{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return s.ctrl.Jog(ctx, axis, req.Delta)
}

// handleStateWS streams state snapshots and accepts commands on the same
// socket. The first frame is always the current state.
func (s *Server) handleStateWS(conn *websocket.Conn) {
	msg, err := protocol.NewStateMessage(s.ctrl.Snapshot())
	if err == nil {
		if data, err := msg.Bytes(); err == nil {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}

	client := hub.NewClient(s.hub, conn, s.handleWSMessage)
	client.Run()
}

// handleWSMessage executes one client request and replies with ack, error
// or pong.
func (s *Server) handleWSMessage(client *hub.Client, data []byte) {
	reply := func(m *protocol.Message, err error) {
		if err != nil {
			s.logger.Error("encode reply", "error", err)
			return
		}
		b, err := m.Bytes()
		if err != nil {
			s.logger.Error("encode reply", "error", err)
			return
		}
		client.Reply(hub.Message{Data: b})
	}

	msg, err := protocol.ParseMessage(data)
	if err != nil {
		reply(protocol.NewErrorMessage(err))
		return
	}

	ctx := context.Background()
	var h egm.Header
	switch msg.Type {
	case protocol.TypePing:
		var ping protocol.PingData
		if err := msg.ParseData(&ping); err != nil {
			reply(protocol.NewErrorMessage(err))
			return
		}
		reply(protocol.NewPongMessage(ping))
		return
	case protocol.TypePose:
		var req protocol.PoseCommand
		if err = msg.ParseData(&req); err == nil {
			h, err = s.ctrl.SendPose(ctx, req.Pose())
		}
	case protocol.TypeJoints:
		var req protocol.JointsCommand
		if err = msg.ParseData(&req); err == nil {
			h, err = s.ctrl.SendJoints(ctx, req.Joints)
		}
	case protocol.TypeJog:
		var req protocol.JogCommand
		if err = msg.ParseData(&req); err == nil {
			h, err = s.jog(ctx, req)
		}
	case protocol.TypeJogJoint:
		var req protocol.JogJointCommand
		if err = msg.ParseData(&req); err == nil {
			h, err = s.ctrl.JogJoint(ctx, req.Index, req.Delta)
		}
	default:
		err = fmt.Errorf("%w: unsupported message type %q", errBadRequest, msg.Type)
	}

	if err != nil {
		reply(protocol.NewErrorMessage(err))
		return
	}
	reply(protocol.NewAckMessage(h))
}
