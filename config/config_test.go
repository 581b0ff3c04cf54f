// File: config/config_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "DS.GREENPOWER", cfg.Bus.Subscribe)
	assert.Equal(t, "DS.GATEWAY", cfg.Bus.Publish)
	assert.Equal(t, "PKT", cfg.Bus.PayloadField)
	assert.Equal(t, 10*time.Millisecond, cfg.Bus.StepInterval.Std())
	assert.Equal(t, "192.168.0.230:19000", cfg.Socket.Addr())
	assert.Equal(t, 1024, cfg.Socket.ReadBufferSize)
	assert.Equal(t, 8*time.Second, cfg.Socket.IOTimeout.Std())
	assert.Equal(t, 20*time.Second, cfg.Heartbeat.Std())
	assert.Equal(t, -1, cfg.Reactor.CPU)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "relay.yaml", `
bus:
  socket: /tmp/bus.sock
  reconnect: false
socket:
  host: 10.0.0.5
  port: 7000
  io_timeout: 2s
  write_delimiter: "\n"
  backoff:
    initial: 250ms
    max: 4s
log:
  level: debug
  format: json
heartbeat: 0s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/bus.sock", cfg.Bus.Socket)
	assert.False(t, cfg.Bus.Reconnect)
	assert.Equal(t, "DS.GREENPOWER", cfg.Bus.Subscribe, "unset keys keep defaults")
	assert.Equal(t, "10.0.0.5:7000", cfg.Socket.Addr())
	assert.Equal(t, 2*time.Second, cfg.Socket.IOTimeout.Std())
	assert.Equal(t, "\n", cfg.Socket.WriteDelimiter)
	assert.Equal(t, 250*time.Millisecond, cfg.Socket.Backoff.Initial.Std())
	assert.Equal(t, 2.0, cfg.Socket.Backoff.Factor)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Zero(t, cfg.Heartbeat)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "relay.toml", `
heartbeat = "1m"

[bus]
publish = "DS.OTHER"
step_interval = "25ms"

[socket]
host = "gw.local"
port = 19001
send_terminator = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DS.OTHER", cfg.Bus.Publish)
	assert.Equal(t, 25*time.Millisecond, cfg.Bus.StepInterval.Std())
	assert.Equal(t, "gw.local:19001", cfg.Socket.Addr())
	assert.False(t, cfg.Socket.SendTerminator)
	assert.Equal(t, time.Minute, cfg.Heartbeat.Std())
}

func TestLoad_EmptyYAMLKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]struct{ name, body string }{
		"unknown yaml key": {"a.yaml", "socket:\n  hostname: x\n"},
		"unknown toml key": {"a.toml", "[socket]\nhostname = \"x\"\n"},
		"bad duration":     {"a.yaml", "heartbeat: soon\n"},
		"invalid port":     {"a.toml", "[socket]\nport = 70000\n"},
		"bad level":        {"a.yaml", "log:\n  level: loud\n"},
		"bad backoff":      {"a.yaml", "startup:\n  factor: 0.5\n"},
		"extension":        {"a.ini", "x=1"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.name, tc.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	mutations := map[string]func(*Config){
		"no subscribe":  func(c *Config) { c.Bus.Subscribe = "" },
		"no host":       func(c *Config) { c.Socket.Host = "" },
		"neg retries":   func(c *Config) { c.Socket.Retries = -1 },
		"zero buffer":   func(c *Config) { c.Socket.ReadBufferSize = 0 },
		"zero step":     func(c *Config) { c.Socket.StepInterval = 0 },
		"jitter":        func(c *Config) { c.Bus.Backoff.Jitter = 2 },
		"max < initial": func(c *Config) { c.Socket.Backoff.Max = Duration(time.Millisecond) },
		"format":        func(c *Config) { c.Log.Format = "xml" },
		"cpu":           func(c *Config) { c.Reactor.CPU = -2 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBackoff_New(t *testing.T) {
	b := Backoff{Initial: Duration(time.Second), Max: Duration(4 * time.Second), Factor: 2}.New()
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
}
