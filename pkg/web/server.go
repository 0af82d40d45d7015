// Package web serves the EGM control API: JSON endpoints for state and
// commands plus a WebSocket stream of state snapshots.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-egm/pkg/hub"
	"github.com/teslashibe/go-egm/pkg/protocol"
	"github.com/teslashibe/go-egm/pkg/robot"
)

// Server is the control API server
type Server struct {
	app    *fiber.App
	ctrl   robot.Controller
	hub    *hub.Hub
	logger *slog.Logger
}

// NewServer creates a control server for ctrl.
func NewServer(ctrl robot.Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")
	s := &Server{
		ctrl:   ctrl,
		hub:    hub.New("state", logger),
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "egmctl",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	// CORS for browser dashboards
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/stats", s.handleStats)
	api.Post("/connect", s.handleConnect)
	api.Post("/disconnect", s.handleDisconnect)
	api.Post("/pose", s.handlePose)
	api.Post("/joints", s.handleJoints)
	api.Post("/jog", s.handleJog)
	api.Post("/jog/joint", s.handleJogJoint)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the state broadcast hub.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Run serves on addr until ctx is done. It also runs the hub and forwards
// every state change to WebSocket clients.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.logger.Info("control API listening", "addr", ln.Addr().String())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.forward(ctx)
		return nil
	})
	g.Go(func() error {
		if err := s.app.Listener(ln); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		err := s.app.Shutdown()
		// Shutdown only knows listeners Serve has registered.
		ln.Close()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Start runs the hub and state forwarding without binding a listener. Use
// with App().Listener or tests; cancel ctx to stop.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
	go s.forward(ctx)
}

// forward pushes state snapshots to the hub until ctx is done.
func (s *Server) forward(ctx context.Context) {
	states, cancel := s.ctrl.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			msg, err := protocol.NewStateMessage(state)
			if err != nil {
				s.logger.Error("encode state", "error", err)
				continue
			}
			if err := s.hub.BroadcastJSON(msg); err != nil {
				s.logger.Error("encode state", "error", err)
			}
		}
	}
}
