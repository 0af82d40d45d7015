// Package config loads egmctl configuration from a YAML or TOML file and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-egm/pkg/egm"
	"github.com/teslashibe/go-egm/pkg/robot"
	"github.com/teslashibe/go-egm/pkg/sim"
)

// Defaults for the control API.
const (
	DefaultListen   = ":8080"
	DefaultLogLevel = "info"
)

// Environment overrides, applied after the file.
const (
	EnvRobotIP   = "ROBOT_IP"
	EnvPort      = "EGM_PORT"
	EnvLocalPort = "EGM_LOCAL_PORT"
	EnvListen    = "EGM_LISTEN"
	EnvLogLevel  = "LOG_LEVEL"
)

// ErrUnknownFormat is returned for config files that are neither YAML nor TOML.
var ErrUnknownFormat = errors.New("unknown config format")

// File is the on-disk configuration.
type File struct {
	Engine EngineConfig `yaml:"engine" toml:"engine"`
	Server ServerConfig `yaml:"server" toml:"server"`
	Sim    SimConfig    `yaml:"sim" toml:"sim"`
	Log    LogConfig    `yaml:"log" toml:"log"`
}

// EngineConfig configures the EGM session.
type EngineConfig struct {
	RobotAddress   string          `yaml:"robot_address" toml:"robot_address"`
	RobotPort      int             `yaml:"robot_port" toml:"robot_port"`
	LocalPort      int             `yaml:"local_port" toml:"local_port"`
	ReadBufferSize int             `yaml:"read_buffer_size" toml:"read_buffer_size"`
	StreamRate     Duration        `yaml:"stream_rate" toml:"stream_rate"`
	Reconnect      ReconnectConfig `yaml:"reconnect" toml:"reconnect"`
}

// ReconnectConfig selects what happens when the receive loop fails.
type ReconnectConfig struct {
	Policy      string   `yaml:"policy" toml:"policy"`
	Interval    Duration `yaml:"interval" toml:"interval"`
	MaxAttempts int      `yaml:"max_attempts" toml:"max_attempts"`
}

// ServerConfig configures the HTTP control API.
type ServerConfig struct {
	Listen string `yaml:"listen" toml:"listen"`
}

// SimConfig configures the simulated robot.
type SimConfig struct {
	// Listen is the UDP address the simulator binds.
	Listen string `yaml:"listen" toml:"listen"`

	// Sensor is where feedback is sent. Empty means reply to the first
	// command's source.
	Sensor string   `yaml:"sensor" toml:"sensor"`
	Rate   Duration `yaml:"rate" toml:"rate"`
	Joints int      `yaml:"joints" toml:"joints"`
	Home   egm.Pose `yaml:"home" toml:"home"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	rc := robot.DefaultConfig()
	sc := sim.DefaultConfig()
	return File{
		Engine: EngineConfig{
			RobotAddress:   rc.RobotAddress,
			RobotPort:      rc.RobotPort,
			LocalPort:      rc.LocalPort,
			ReadBufferSize: rc.ReadBufferSize,
			StreamRate:     Duration(rc.StreamRate),
			Reconnect: ReconnectConfig{
				Policy:      rc.Reconnect,
				Interval:    Duration(rc.ReconnectInterval),
				MaxAttempts: rc.MaxReconnectAttempts,
			},
		},
		Server: ServerConfig{Listen: DefaultListen},
		Sim: SimConfig{
			Listen: fmt.Sprintf("127.0.0.1:%d", rc.RobotPort),
			Sensor: fmt.Sprintf("127.0.0.1:%d", rc.LocalPort),
			Rate:   Duration(sc.Rate),
			Joints: sc.Joints,
			Home:   sc.Home,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (File, error) {
	f := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, filepath.Ext(path), &f); err != nil {
			return File{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := f.applyEnv(); err != nil {
		return File{}, err
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Parse decodes data in the format named by ext (".yaml", ".yml" or
// ".toml") on top of the defaults. The environment is not consulted.
func Parse(data []byte, ext string) (File, error) {
	f := Default()
	if err := decode(data, ext, &f); err != nil {
		return File{}, err
	}
	return f, nil
}

func decode(data []byte, ext string, f *File) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(f)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
}

func (f *File) applyEnv() error {
	f.Engine.RobotAddress = RobotIP(f.Engine.RobotAddress)
	if err := envInt(EnvPort, &f.Engine.RobotPort); err != nil {
		return err
	}
	if err := envInt(EnvLocalPort, &f.Engine.LocalPort); err != nil {
		return err
	}
	if v := os.Getenv(EnvListen); v != "" {
		f.Server.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		f.Log.Level = v
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks every section.
func (f *File) Validate() error {
	rc := f.Robot()
	if err := rc.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	sc := f.Simulator()
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("sim: %w", err)
	}
	switch f.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: level must be debug, info, warn or error, got %q", f.Log.Level)
	}
	return nil
}

// Robot returns the engine section as a robot.Config.
func (f *File) Robot() robot.Config {
	return robot.Config{
		RobotAddress:         f.Engine.RobotAddress,
		RobotPort:            f.Engine.RobotPort,
		LocalPort:            f.Engine.LocalPort,
		ReadBufferSize:       f.Engine.ReadBufferSize,
		StreamRate:           time.Duration(f.Engine.StreamRate),
		Reconnect:            f.Engine.Reconnect.Policy,
		ReconnectInterval:    time.Duration(f.Engine.Reconnect.Interval),
		MaxReconnectAttempts: f.Engine.Reconnect.MaxAttempts,
	}
}

// Simulator returns the sim section as a sim.Config.
func (f *File) Simulator() sim.Config {
	return sim.Config{
		Rate:   time.Duration(f.Sim.Rate),
		Joints: f.Sim.Joints,
		Home:   f.Sim.Home,
	}
}

// RobotIP returns the robot IP from the ROBOT_IP env var.
// Falls back to the provided default if not set.
func RobotIP(defaultIP string) string {
	if ip := os.Getenv(EnvRobotIP); ip != "" {
		return ip
	}
	return defaultIP
}

// APIURL returns the base URL of a control API listening on listen.
// A listen address without a host resolves to loopback.
func APIURL(listen string) string {
	if strings.HasPrefix(listen, "http://") || strings.HasPrefix(listen, "https://") {
		return strings.TrimRight(listen, "/")
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
