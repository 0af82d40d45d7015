// Package robot runs the sensor side of an EGM session: it tracks robot
// telemetry and sends sequenced corrections.
//
// The package follows the Interface Segregation Principle by defining small,
// focused interfaces that can be composed as needed. Consumers should depend
// only on the interfaces they actually use.
package robot

import (
	"context"

	"github.com/teslashibe/go-egm/pkg/egm"
)

// Commander sends motion commands.
// Use this minimal interface when only motion is needed (e.g., a jog pad).
type Commander interface {
	SendPose(ctx context.Context, p egm.Pose) (egm.Header, error)
	SendJoints(ctx context.Context, j egm.Joints) (egm.Header, error)
	Jog(ctx context.Context, axis egm.Axis, delta float64) (egm.Header, error)
	JogJoint(ctx context.Context, index int, delta float64) (egm.Header, error)
}

// StateReader provides robot state.
type StateReader interface {
	Snapshot() State
	Subscribe() (<-chan State, func())
}

// Connector opens and closes the EGM session.
type Connector interface {
	Connect(ctx context.Context, address string, port int) error
	Disconnect() error
}

// StatsReader provides session counters.
type StatsReader interface {
	Stats() Stats
}

// Controller is the composite interface for full robot control.
type Controller interface {
	Commander
	StateReader
	Connector
	StatsReader
}

var (
	_ Controller   = (*Engine)(nil)
	_ Commander    = (*Dispatcher)(nil)
	_ TargetSender = (*Dispatcher)(nil)
	_ StateReader  = (*Tracker)(nil)
)
