package robot

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-egm/pkg/transport"
)

// Reconnect policies.
const (
	ReconnectManual = "manual"
	ReconnectAuto   = "auto"
)

// Config holds engine configuration.
type Config struct {
	// RobotAddress is the controller's host. When empty, commands go to the
	// source address of the most recent valid telemetry.
	RobotAddress string `yaml:"robot_address" json:"robot_address"`

	// RobotPort is the controller's EGM port.
	RobotPort int `yaml:"robot_port" json:"robot_port"`

	// LocalPort is the port the engine binds to receive telemetry.
	LocalPort int `yaml:"local_port" json:"local_port"`

	// ReadBufferSize bounds a single datagram.
	ReadBufferSize int `yaml:"read_buffer_size" json:"read_buffer_size"`

	// StreamRate resends the last target at this interval while connected.
	// 0 disables streaming.
	StreamRate time.Duration `yaml:"stream_rate" json:"stream_rate"`

	// Reconnect controls what happens when the receive loop fails.
	// Options: "manual", "auto"
	Reconnect string `yaml:"reconnect" json:"reconnect"`

	// ReconnectInterval is the delay between automatic reconnect attempts.
	ReconnectInterval time.Duration `yaml:"reconnect_interval" json:"reconnect_interval"`

	// MaxReconnectAttempts caps automatic reconnects. 0 means unlimited.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
}

// DefaultConfig returns a Config with the conventional EGM ports.
func DefaultConfig() Config {
	return Config{
		RobotPort:         transport.DefaultPort,
		LocalPort:         transport.DefaultPort,
		ReadBufferSize:    transport.DefaultReadBufferSize,
		Reconnect:         ReconnectManual,
		ReconnectInterval: 2 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.RobotPort <= 0 || c.RobotPort > 65535 {
		return fmt.Errorf("robot_port must be in 1..65535, got %d", c.RobotPort)
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return fmt.Errorf("local_port must be in 0..65535, got %d", c.LocalPort)
	}
	if c.ReadBufferSize < 0 {
		return fmt.Errorf("read_buffer_size must not be negative, got %d", c.ReadBufferSize)
	}
	if c.StreamRate < 0 {
		return fmt.Errorf("stream_rate must not be negative, got %s", c.StreamRate)
	}
	switch c.Reconnect {
	case ReconnectManual:
	case ReconnectAuto:
		if c.ReconnectInterval <= 0 {
			return fmt.Errorf("reconnect_interval must be positive for auto reconnect")
		}
	default:
		return fmt.Errorf("reconnect must be 'manual' or 'auto', got '%s'", c.Reconnect)
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max_reconnect_attempts must not be negative, got %d", c.MaxReconnectAttempts)
	}
	return nil
}
