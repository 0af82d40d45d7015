package main

import (
	"context"

	"github.com/teslashibe/go-egm/internal/httpc"
	"github.com/teslashibe/go-egm/pkg/egm"
	"github.com/teslashibe/go-egm/pkg/protocol"
	"github.com/teslashibe/go-egm/pkg/robot"
)

// statsResponse is the body of GET /api/stats.
type statsResponse struct {
	Engine robot.Stats `json:"engine"`
	Hub    struct {
		Running bool   `json:"running"`
		Clients int    `json:"clients"`
		Dropped uint64 `json:"dropped"`
	} `json:"hub"`
}

// apiClient wraps the control API routes served by pkg/web.
type apiClient struct {
	api *httpc.API
}

func (c *apiClient) baseURL() string { return c.api.BaseURL }

func (c *apiClient) State(ctx context.Context) (robot.State, error) {
	var s robot.State
	err := c.api.GetJSON(ctx, "/api/state", &s)
	return s, err
}

func (c *apiClient) Stats(ctx context.Context) (statsResponse, error) {
	var s statsResponse
	err := c.api.GetJSON(ctx, "/api/stats", &s)
	return s, err
}

func (c *apiClient) Connect(ctx context.Context, address string, port int) (robot.Stats, error) {
	var s robot.Stats
	err := c.api.PostJSON(ctx, "/api/connect", protocol.ConnectRequest{Address: address, Port: port}, &s)
	return s, err
}

func (c *apiClient) Disconnect(ctx context.Context) error {
	return c.api.PostJSON(ctx, "/api/disconnect", nil, nil)
}

func (c *apiClient) Pose(ctx context.Context, p egm.Pose) (protocol.AckData, error) {
	var ack protocol.AckData
	err := c.api.PostJSON(ctx, "/api/pose", protocol.FromPose(p), &ack)
	return ack, err
}

func (c *apiClient) Joints(ctx context.Context, j egm.Joints) (protocol.AckData, error) {
	var ack protocol.AckData
	err := c.api.PostJSON(ctx, "/api/joints", protocol.JointsCommand{Joints: j}, &ack)
	return ack, err
}

func (c *apiClient) Jog(ctx context.Context, axis egm.Axis, delta float64) (protocol.AckData, error) {
	var ack protocol.AckData
	err := c.api.PostJSON(ctx, "/api/jog", protocol.JogCommand{Axis: axis.String(), Delta: delta}, &ack)
	return ack, err
}

func (c *apiClient) JogJoint(ctx context.Context, index int, delta float64) (protocol.AckData, error) {
	var ack protocol.AckData
	err := c.api.PostJSON(ctx, "/api/jog/joint", protocol.JogJointCommand{Index: index, Delta: delta}, &ack)
	return ack, err
}
