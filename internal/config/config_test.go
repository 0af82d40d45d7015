package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-egm/pkg/robot"
)

func TestDefaultIsValid(t *testing.T) {
	f := Default()
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := f.Robot(); got != robot.DefaultConfig() {
		t.Errorf("Robot() = %+v, want %+v", got, robot.DefaultConfig())
	}
}

const yamlConfig = `
engine:
  robot_address: 192.168.125.1
  robot_port: 6511
  stream_rate: 4ms
  reconnect:
    policy: auto
    interval: 500ms
    max_attempts: 3
server:
  listen: ":9090"
sim:
  rate: 12ms
  home: {x: 1, y: 2, z: 3}
log:
  level: debug
`

const tomlConfig = `
[engine]
robot_address = "192.168.125.1"
robot_port = 6511
stream_rate = "4ms"

[engine.reconnect]
policy = "auto"
interval = "500ms"
max_attempts = 3

[server]
listen = ":9090"

[sim]
rate = "12ms"

[sim.home]
x = 1.0
y = 2.0
z = 3.0

[log]
level = "debug"
`

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
	}{
		{"yaml", ".yaml", yamlConfig},
		{"yml", ".yml", yamlConfig},
		{"toml", ".toml", tomlConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.data), tt.ext)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			rc := f.Robot()
			if rc.RobotAddress != "192.168.125.1" || rc.RobotPort != 6511 {
				t.Errorf("robot = %s:%d", rc.RobotAddress, rc.RobotPort)
			}
			if rc.LocalPort != robot.DefaultConfig().LocalPort {
				t.Errorf("LocalPort = %d, want default kept", rc.LocalPort)
			}
			if rc.StreamRate != 4*time.Millisecond {
				t.Errorf("StreamRate = %v, want 4ms", rc.StreamRate)
			}
			if rc.Reconnect != robot.ReconnectAuto || rc.ReconnectInterval != 500*time.Millisecond || rc.MaxReconnectAttempts != 3 {
				t.Errorf("reconnect = %s/%v/%d", rc.Reconnect, rc.ReconnectInterval, rc.MaxReconnectAttempts)
			}
			if f.Server.Listen != ":9090" {
				t.Errorf("Listen = %q", f.Server.Listen)
			}
			sc := f.Simulator()
			if sc.Rate != 12*time.Millisecond || sc.Joints != 6 {
				t.Errorf("sim = %v/%d", sc.Rate, sc.Joints)
			}
			if sc.Home.X != 1 || sc.Home.Z != 3 || sc.Home.RY != 0 {
				t.Errorf("Home = %+v", sc.Home)
			}
			if f.Log.Level != "debug" {
				t.Errorf("Level = %q", f.Log.Level)
			}
			if err := f.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
	}{
		{"unknown yaml key", ".yaml", "engine:\n  robot_ip: x\n"},
		{"unknown toml key", ".toml", "[engine]\nrobot_ip = \"x\"\n"},
		{"bad duration", ".yaml", "engine:\n  stream_rate: fast\n"},
		{"bad toml duration", ".toml", "[engine]\nstream_rate = \"fast\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data), tt.ext); err == nil {
				t.Error("Parse() should fail")
			}
		})
	}

	if _, err := Parse([]byte("{}"), ".json"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Parse(.json) error = %v, want ErrUnknownFormat", err)
	}
}

func TestParseEmptyYAML(t *testing.T) {
	f, err := Parse(nil, ".yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f != Default() {
		t.Errorf("empty file should keep defaults")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "egm.yaml")
	if err := os.WriteFile(path, []byte(yamlConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvRobotIP, "10.0.0.5")
	t.Setenv(EnvPort, "7000")
	t.Setenv(EnvLocalPort, "7001")
	t.Setenv(EnvListen, "127.0.0.1:9999")
	t.Setenv(EnvLogLevel, "warn")

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.Engine.RobotAddress != "10.0.0.5" || f.Engine.RobotPort != 7000 || f.Engine.LocalPort != 7001 {
		t.Errorf("engine = %+v", f.Engine)
	}
	if f.Server.Listen != "127.0.0.1:9999" {
		t.Errorf("Listen = %q", f.Server.Listen)
	}
	if f.Log.Level != "warn" {
		t.Errorf("Level = %q", f.Log.Level)
	}
}

func TestLoadRejects(t *testing.T) {
	t.Run("bad env port", func(t *testing.T) {
		t.Setenv(EnvPort, "abc")
		if _, err := Load(""); err == nil {
			t.Error("Load() should fail on a non-numeric port")
		}
	})
	t.Run("port out of range", func(t *testing.T) {
		t.Setenv(EnvPort, "70000")
		if _, err := Load(""); err == nil {
			t.Error("Load() should fail on an out-of-range port")
		}
	})
	t.Run("bad log level", func(t *testing.T) {
		t.Setenv(EnvLogLevel, "loud")
		if _, err := Load(""); err == nil {
			t.Error("Load() should fail on an unknown level")
		}
	})
	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("Load() should fail on a missing file")
		}
	})
}

func TestRobotIP(t *testing.T) {
	t.Setenv(EnvRobotIP, "")
	if got := RobotIP("192.168.125.1"); got != "192.168.125.1" {
		t.Errorf("RobotIP() = %q, want fallback", got)
	}
	t.Setenv(EnvRobotIP, "10.1.1.1")
	if got := RobotIP("192.168.125.1"); got != "10.1.1.1" {
		t.Errorf("RobotIP() = %q, want env value", got)
	}
}

func TestAPIURL(t *testing.T) {
	tests := []struct {
		listen string
		want   string
	}{
		{":8080", "http://127.0.0.1:8080"},
		{"0.0.0.0:8080", "http://127.0.0.1:8080"},
		{"10.0.0.2:8080", "http://10.0.0.2:8080"},
		{"http://robot:8080/", "http://robot:8080"},
		{"robot", "http://robot"},
	}
	for _, tt := range tests {
		if got := APIURL(tt.listen); got != tt.want {
			t.Errorf("APIURL(%q) = %q, want %q", tt.listen, got, tt.want)
		}
	}
}
